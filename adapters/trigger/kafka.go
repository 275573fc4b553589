package trigger

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Skryldev/photo-processor/config"
	"github.com/Skryldev/photo-processor/core"
)

// Kafka consumes trigger messages from a topic as part of a consumer group.
// Offsets are committed only after the outcome is recorded, so a crash
// mid-photo redelivers it.
type Kafka struct {
	reader  messageReader
	handler Handler
	logger  core.Logger
	// MaxBackoff caps the wait between attempts when a status write fails.
	MaxBackoff time.Duration
	// FetchBackoff is the pause after a failed fetch.
	FetchBackoff time.Duration
}

// messageReader is the subset of *kafka.Reader the consumer uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafka creates a consumer for cfg.Topic.
func NewKafka(cfg config.KafkaConfig, h Handler, logger core.Logger) *Kafka {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return &Kafka{
		reader:       reader,
		handler:      h,
		logger:       logger,
		MaxBackoff:   30 * time.Second,
		FetchBackoff: time.Second,
	}
}

// Run consumes until ctx is cancelled.
func (k *Kafka) Run(ctx context.Context) error {
	defer k.reader.Close()
	for {
		msg, err := k.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			k.logger.Error("kafka.fetch", "error", err.Error())
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(k.FetchBackoff):
			}
			continue
		}

		if !k.process(ctx, msg) {
			return nil
		}
		if err := k.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			k.logger.Error("kafka.commit", "offset", msg.Offset, "error", err.Error())
		}
	}
}

// process retries the message until its outcome is recorded. It reports
// false when ctx ended first and the message must stay uncommitted.
func (k *Kafka) process(ctx context.Context, msg kafka.Message) bool {
	trig, err := DecodeTrigger(msg.Value)
	if err != nil {
		k.logger.Warn("kafka.trigger.invalid",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err.Error(),
		)
		return true
	}

	backoff := time.Second
	for {
		_, err := k.handler.Handle(ctx, trig)
		if err == nil {
			return true
		}
		k.logger.Error("kafka.trigger.uncommitted",
			"path", trig.ObjectPath,
			"retry_in", backoff.String(),
			"error", err.Error(),
		)
		select {
		case <-ctx.Done():
			return false
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, k.MaxBackoff)
	}
}
