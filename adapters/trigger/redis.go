package trigger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Skryldev/photo-processor/config"
	"github.com/Skryldev/photo-processor/core"
	apperrors "github.com/Skryldev/photo-processor/errors"
)

// payloadField is the stream entry field carrying the trigger JSON.
const payloadField = "payload"

// RedisStream reads triggers from a Redis Stream consumer group and runs
// them on the processor's worker pool. Entries are acknowledged once their
// outcome is recorded; anything else stays pending and is reclaimed with
// XAUTOCLAIM on the next start.
type RedisStream struct {
	rc     redis.UniversalClient
	cfg    config.RedisConfig
	pool   Submitter
	logger core.Logger
}

// NewRedisStream creates a consumer. pool is usually a started Processor.
func NewRedisStream(rc redis.UniversalClient, cfg config.RedisConfig, pool Submitter, logger core.Logger) *RedisStream {
	return &RedisStream{rc: rc, cfg: cfg, pool: pool, logger: logger}
}

// EnsureGroup creates the stream and group if they do not exist yet.
func (r *RedisStream) EnsureGroup(ctx context.Context) error {
	err := r.rc.XGroupCreateMkStream(ctx, r.cfg.Stream, r.cfg.Group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

// Run consumes until ctx is cancelled.
func (r *RedisStream) Run(ctx context.Context) error {
	if err := r.EnsureGroup(ctx); err != nil {
		return fmt.Errorf("redis stream: ensure group: %w", err)
	}
	r.logger.Info("redis.consume", "stream", r.cfg.Stream, "group", r.cfg.Group, "consumer", r.cfg.Consumer)

	if err := r.reclaim(ctx); err != nil && ctx.Err() == nil {
		r.logger.Warn("redis.autoclaim", "error", err.Error())
	}

	for {
		streams, err := r.rc.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    r.cfg.Group,
			Consumer: r.cfg.Consumer,
			Streams:  []string{r.cfg.Stream, ">"},
			Count:    1,
			Block:    r.cfg.BlockTimeout,
		}).Result()
		if ctx.Err() != nil {
			return nil
		}
		if err != nil && !errors.Is(err, redis.Nil) {
			r.logger.Error("redis.read", "error", err.Error())
			time.Sleep(time.Second)
			continue
		}
		for _, s := range streams {
			for _, m := range s.Messages {
				if err := r.dispatch(ctx, m); err != nil {
					return nil
				}
			}
		}
	}
}

// reclaim adopts entries another consumer left pending for longer than MinIdle.
func (r *RedisStream) reclaim(ctx context.Context) error {
	minIdle := r.cfg.MinIdle
	if minIdle <= 0 {
		minIdle = 10 * time.Minute
	}
	next := "0-0"
	for {
		msgs, start, err := r.rc.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   r.cfg.Stream,
			Group:    r.cfg.Group,
			Consumer: r.cfg.Consumer,
			MinIdle:  minIdle,
			Start:    next,
			Count:    100,
		}).Result()
		if err != nil {
			return err
		}
		for _, m := range msgs {
			if err := r.dispatch(ctx, m); err != nil {
				return err
			}
		}
		if start == "0-0" || len(msgs) == 0 {
			return nil
		}
		next = start
	}
}

// dispatch submits one entry, waiting while the pool is full. It only fails
// when ctx ends.
func (r *RedisStream) dispatch(ctx context.Context, m redis.XMessage) error {
	raw, _ := m.Values[payloadField].(string)
	trig, err := DecodeTrigger([]byte(raw))
	if err != nil {
		r.logger.Warn("redis.trigger.invalid", "id", m.ID, "error", err.Error())
		r.ack(m.ID)
		return nil
	}

	job := core.Job{
		ID:      m.ID,
		// Shutdown stops intake; photos already submitted run to completion.
		Ctx:     context.WithoutCancel(ctx),
		Trigger: trig,
		Done: func(_ core.Result, err error) {
			if err != nil {
				r.logger.Error("redis.trigger.uncommitted", "id", m.ID, "path", trig.ObjectPath, "error", err.Error())
				return
			}
			r.ack(m.ID)
		},
	}
	for {
		err := r.pool.Submit(job)
		if err == nil {
			return nil
		}
		if !errors.Is(err, apperrors.ErrWorkerPoolFull) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}

func (r *RedisStream) ack(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.rc.XAck(ctx, r.cfg.Stream, r.cfg.Group, id).Err(); err != nil {
		r.logger.Error("redis.ack", "id", id, "error", err.Error())
	}
}
