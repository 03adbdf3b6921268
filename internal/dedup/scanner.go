// Package dedup scans the index for entries that look like the same work and
// records them as suggestions for a human to resolve.
package dedup

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/crisrs/cris-server/internal/domain"
	domainerrors "github.com/crisrs/cris-server/internal/errors"
	"github.com/crisrs/cris-server/internal/id"
	"github.com/crisrs/cris-server/internal/metrics"
	"github.com/crisrs/cris-server/internal/search"
)

// Defaults used when Config leaves a field zero.
const (
	DefaultChunkSize     = 10
	DefaultMaxCandidates = 2
)

// EntrySource is the part of the search index the scanner reads.
type EntrySource interface {
	All(ctx context.Context, page search.PageRequest) (*search.Page, error)
	Run(ctx context.Context, q query.Query, page search.PageRequest) (*search.Page, error)
}

// SuggestionStore persists findings.
type SuggestionStore interface {
	SaveDuplicateSuggestion(ctx context.Context, d domain.DuplicateSuggestion) error
}

// Config controls the size of a scan step.
type Config struct {
	ChunkSize     int // entries per page
	MaxCandidates int // candidates fetched per entry
}

// Result summarizes one run.
type Result struct {
	RunID   string
	Pages   int
	Scanned int // entries evaluated as scan subjects
	Pairs   int // suggestions recorded
}

// Scanner walks the index page by page. It is not safe to Run one Scanner
// concurrently; jobs.Periodic guarantees a job never overlaps itself.
type Scanner struct {
	entries     EntrySource
	suggestions SuggestionStore
	cfg         Config
	metrics     *metrics.Metrics
	logger      *slog.Logger
	now         func() time.Time
}

// NewScanner creates a scanner.
func NewScanner(entries EntrySource, suggestions SuggestionStore, cfg Config, m *metrics.Metrics, logger *slog.Logger) *Scanner {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = DefaultMaxCandidates
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{
		entries:     entries,
		suggestions: suggestions,
		cfg:         cfg,
		metrics:     m,
		logger:      logger,
		now:         time.Now,
	}
}

// Run performs one full scan. Entries already reported as a duplicate
// target earlier in the run are not evaluated again. The scan stops at the
// first short page; any I/O error aborts the run and keeps what was written.
func (s *Scanner) Run(ctx context.Context) (Result, error) {
	runID, err := id.Generate(id.PrefixDedup)
	if err != nil {
		return Result{}, err
	}
	res := Result{RunID: runID}
	found := make(map[int64]struct{})

	log := s.logger.With("run_id", runID)
	log.Debug("duplicate scan started")

	for number := 0; ; number++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		page, err := s.entries.All(ctx, search.PageRequest{Number: number, Size: s.cfg.ChunkSize})
		if err != nil {
			return res, fmt.Errorf("load page %d: %w", number, err)
		}
		res.Pages++

		for _, e := range page.Entries {
			if _, seen := found[e.DatabaseID]; seen {
				continue
			}
			res.Scanned++

			pairs, err := s.check(ctx, runID, e, found)
			if err != nil {
				return res, err
			}
			res.Pairs += pairs
		}

		if page.IsLast() {
			break
		}
	}

	s.metrics.DuplicateFound(res.Pairs)
	log.Info("duplicate scan finished", "pages", res.Pages, "scanned", res.Scanned, "pairs", res.Pairs)
	return res, nil
}

// check looks up candidates for one entry and records any it finds.
func (s *Scanner) check(ctx context.Context, runID string, e *search.Entry, found map[int64]struct{}) (int, error) {
	q := CandidateQuery(e)
	if q == nil {
		return 0, nil
	}

	candidates, err := s.entries.Run(ctx, q, search.PageRequest{Size: s.cfg.MaxCandidates})
	if err != nil {
		return 0, fmt.Errorf("find candidates for %d: %w", e.DatabaseID, err)
	}

	var pairs int
	for _, c := range candidates.Entries {
		found[c.DatabaseID] = struct{}{}
		if err := s.suggestions.SaveDuplicateSuggestion(ctx, domain.DuplicateSuggestion{
			DocumentID:  e.DatabaseID,
			DuplicateID: c.DatabaseID,
			RunID:       runID,
			FoundAt:     s.now(),
		}); err != nil {
			if domainerrors.Is(err, domainerrors.ErrNotFound) {
				// Entry outlived its document; the next reindex drops it.
				s.logger.Warn("skipping duplicate of missing document",
					"run_id", runID, "document_id", e.DatabaseID, "duplicate_id", c.DatabaseID)
				continue
			}
			return pairs, fmt.Errorf("record duplicate %d/%d: %w", e.DatabaseID, c.DatabaseID, err)
		}
		pairs++

		s.logger.Warn("possible duplicate document",
			"run_id", runID,
			"document_id", e.DatabaseID,
			"duplicate_id", c.DatabaseID,
			"type", e.Type,
			"title", firstNonEmpty(e.TitleOther, e.TitleSr),
		)
	}
	return pairs, nil
}

// CandidateQuery matches entries of the same type whose title buckets contain
// either of e's titles as a phrase, excluding e itself. It returns nil when e
// has no title to compare.
func CandidateQuery(e *search.Entry) query.Query {
	var titles []query.Query
	for field, text := range map[string]string{
		search.FieldTitleSr:    e.TitleSr,
		search.FieldTitleOther: e.TitleOther,
	} {
		if strings.TrimSpace(text) == "" {
			continue
		}
		pq := bleve.NewMatchPhraseQuery(text)
		pq.SetField(field)
		titles = append(titles, pq)
	}
	if len(titles) == 0 {
		return nil
	}

	sameType := bleve.NewTermQuery(string(e.Type))
	sameType.SetField(search.FieldType)

	self := bleve.NewDocIDQuery([]string{e.DocID()})

	q := bleve.NewBooleanQuery()
	q.AddMust(sameType, bleve.NewDisjunctionQuery(titles...))
	q.AddMustNot(self)
	return q
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
