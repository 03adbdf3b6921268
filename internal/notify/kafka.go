package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

// messageWriter is the subset of *kafka.Writer the dispatcher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaDispatcher publishes notifications as JSON to a Kafka topic, keyed by
// user id so one user's messages stay ordered on one partition.
type KafkaDispatcher struct {
	writer messageWriter
	logger *slog.Logger
	now    func() time.Time
}

// NewKafkaDispatcher creates a dispatcher writing to topic on brokers.
func NewKafkaDispatcher(brokers []string, topic string, logger *slog.Logger) *KafkaDispatcher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		MaxAttempts:  3,
		RequiredAcks: kafka.RequireAll,
	}
	return newKafkaDispatcher(w, logger)
}

func newKafkaDispatcher(w messageWriter, logger *slog.Logger) *KafkaDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaDispatcher{
		writer: w,
		logger: logger.With("component", "kafka-notify"),
		now:    time.Now,
	}
}

// Notify publishes one message synchronously.
func (d *KafkaDispatcher) Notify(ctx context.Context, userID int64, p Payload) error {
	value, err := json.Marshal(Message{UserID: userID, Payload: p, SentAt: d.now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(userID, 10)),
		Value: value,
	}
	if err := d.writer.WriteMessages(ctx, msg); err != nil {
		d.logger.Error("failed to publish notification", "user_id", userID, "error", err)
		return fmt.Errorf("publish notification: %w", err)
	}

	d.logger.Debug("notification published", "user_id", userID, "kind", p.Kind)
	return nil
}

// Close flushes pending writes and closes the writer.
func (d *KafkaDispatcher) Close() error {
	return d.writer.Close()
}
