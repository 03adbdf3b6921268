// Package extraction turns uploaded files into searchable text through an
// Apache Tika server.
package extraction

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-tika/tika"

	domainerrors "github.com/crisrs/cris-server/internal/errors"
	"github.com/crisrs/cris-server/internal/multilingual"
)

// maxFileSize bounds how much of a file is buffered for the two Tika calls.
const maxFileSize = 64 << 20

// Extractor returns the plain text of a file and its detected language code.
type Extractor interface {
	Extract(ctx context.Context, r io.Reader) (text, language string, err error)
}

// plainTextTransport asks Tika for text/plain; without an Accept header the
// server answers /tika with XHTML.
type plainTextTransport struct {
	base http.RoundTripper
}

func (t plainTextTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	r.Header.Set("Accept", "text/plain")
	return t.base.RoundTrip(r)
}

// TikaExtractor calls a Tika server for text and language detection.
type TikaExtractor struct {
	client *tika.Client
}

// NewTikaExtractor creates an extractor for the Tika server at url.
func NewTikaExtractor(url string, timeout time.Duration) *TikaExtractor {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	httpClient := &http.Client{
		Timeout:   timeout,
		Transport: plainTextTransport{base: http.DefaultTransport},
	}
	return &TikaExtractor{client: tika.NewClient(httpClient, url)}
}

// Extract implements Extractor. Language detection runs on the extracted text.
func (e *TikaExtractor) Extract(ctx context.Context, r io.Reader) (string, string, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxFileSize+1))
	if err != nil {
		return "", "", fmt.Errorf("read file: %w", err)
	}
	if len(data) > maxFileSize {
		return "", "", domainerrors.Validationf("file exceeds %d bytes", maxFileSize)
	}

	text, err := e.client.Parse(ctx, bytes.NewReader(data))
	if err != nil {
		return "", "", domainerrors.Wrap(err, domainerrors.CodeUnavailable, "tika parse")
	}
	// Older servers ignore Accept and still return XHTML.
	text = strings.TrimSpace(multilingual.StripHTML(text))
	if text == "" {
		return "", "", nil
	}

	language, err := e.client.Language(ctx, strings.NewReader(text))
	if err != nil {
		return "", "", domainerrors.Wrap(err, domainerrors.CodeUnavailable, "tika language")
	}
	return text, strings.ToLower(strings.TrimSpace(language)), nil
}
