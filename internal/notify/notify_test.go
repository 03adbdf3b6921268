package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaDispatcher_Notify(t *testing.T) {
	w := &recordingWriter{}
	d := newKafkaDispatcher(w, nil)
	sentAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return sentAt }

	err := d.Notify(context.Background(), 42, Payload{Kind: KindClaimsDiscovered, Count: 3, RunID: "claims-abc"})
	require.NoError(t, err)

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "42", string(w.msgs[0].Key))

	var got Message
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, Message{
		UserID:  42,
		Payload: Payload{Kind: KindClaimsDiscovered, Count: 3, RunID: "claims-abc"},
		SentAt:  sentAt,
	}, got)

	require.NoError(t, d.Close())
	assert.True(t, w.closed)
}

func TestKafkaDispatcher_WriteError(t *testing.T) {
	d := newKafkaDispatcher(&recordingWriter{err: errors.New("broker unreachable")}, nil)

	err := d.Notify(context.Background(), 1, Payload{Kind: KindClaimsDiscovered, Count: 1})
	assert.ErrorContains(t, err, "broker unreachable")
}

func TestLogDispatcher(t *testing.T) {
	var buf bytes.Buffer
	d := NewLogDispatcher(slog.New(slog.NewJSONHandler(&buf, nil)))

	require.NoError(t, d.Notify(context.Background(), 7, Payload{Kind: KindClaimsDiscovered, Count: 2}))

	assert.Contains(t, buf.String(), `"user_id":7`)
	assert.Contains(t, buf.String(), `"count":2`)
}
