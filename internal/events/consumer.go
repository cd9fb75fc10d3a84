package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// StreamReader is the subset of the Redis client a consumer group needs.
type StreamReader interface {
	XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd
	XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd
	XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd
	XAutoClaim(ctx context.Context, a *redis.XAutoClaimArgs) *redis.XAutoClaimCmd
}

// UploadedHandler processes one uploaded event. A returned error leaves the
// message pending; it is claimed again once it has been idle for ReclaimIdle.
type UploadedHandler func(ctx context.Context, event UploadedEvent) error

var errMalformed = errors.New("malformed message")

type ConsumerConfig struct {
	Stream   string
	Group    string
	Consumer string
	Block    time.Duration
	// ReclaimIdle is how long a message may stay unacknowledged before it is
	// delivered again. It is also the interval between reclaim passes.
	ReclaimIdle time.Duration
}

// Consumer reads uploaded events from a stream through a consumer group.
type Consumer struct {
	redis   StreamReader
	cfg     ConsumerConfig
	handler UploadedHandler
	logger  *slog.Logger
}

func NewConsumer(client StreamReader, cfg ConsumerConfig, handler UploadedHandler, logger *slog.Logger) *Consumer {
	if cfg.Stream == "" {
		cfg.Stream = DefaultStream
	}
	if cfg.Group == "" {
		cfg.Group = "listing-consumer-group"
	}
	if cfg.Consumer == "" {
		cfg.Consumer = "consumer-1"
	}
	if cfg.Block <= 0 {
		cfg.Block = 5 * time.Second
	}
	if cfg.ReclaimIdle <= 0 {
		cfg.ReclaimIdle = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		redis:   client,
		cfg:     cfg,
		handler: handler,
		logger:  logger.With("component", "consumer", "stream", cfg.Stream),
	}
}

// Run consumes until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	err := c.redis.XGroupCreateMkStream(ctx, c.cfg.Stream, c.cfg.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	c.logger.Info("starting consumer", "group", c.cfg.Group)

	var lastReclaim time.Time
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if time.Since(lastReclaim) >= c.cfg.ReclaimIdle {
			if err := c.reclaim(ctx); err != nil && ctx.Err() == nil {
				c.logger.Error("failed to reclaim pending messages", "error", err)
			}
			lastReclaim = time.Now()
		}

		if err := c.poll(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Error("failed to read from stream", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
		}
	}
}

func (c *Consumer) poll(ctx context.Context) error {
	streams, err := c.redis.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		Streams:  []string{c.cfg.Stream, ">"},
		Count:    10,
		Block:    c.cfg.Block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}

	for _, stream := range streams {
		c.handle(ctx, stream.Messages)
	}
	return nil
}

// reclaim takes over messages that stayed pending longer than ReclaimIdle,
// either after a failed handler run or a consumer that died, and handles them again.
func (c *Consumer) reclaim(ctx context.Context) error {
	start := "0-0"
	for {
		msgs, next, err := c.redis.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   c.cfg.Stream,
			Group:    c.cfg.Group,
			Consumer: c.cfg.Consumer,
			MinIdle:  c.cfg.ReclaimIdle,
			Start:    start,
			Count:    10,
		}).Result()
		if err != nil {
			return err
		}

		if len(msgs) > 0 {
			c.logger.Info("reclaimed pending messages", "count", len(msgs))
			c.handle(ctx, msgs)
		}

		if next == "" || next == "0-0" {
			return nil
		}
		start = next
	}
}

func (c *Consumer) handle(ctx context.Context, msgs []redis.XMessage) {
	for _, msg := range msgs {
		if err := c.process(ctx, msg); err != nil {
			if !errors.Is(err, errMalformed) {
				c.logger.Error("failed to process message", "id", msg.ID, "error", err)
				continue
			}
			c.logger.Error("dropping malformed message", "id", msg.ID, "error", err)
		}
		if err := c.redis.XAck(ctx, c.cfg.Stream, c.cfg.Group, msg.ID).Err(); err != nil {
			c.logger.Error("failed to acknowledge message", "id", msg.ID, "error", err)
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg redis.XMessage) error {
	if t, _ := msg.Values["type"].(string); t != EventTypeUploaded {
		return nil
	}

	event, err := decodeUploaded(msg)
	if err != nil {
		return err
	}

	c.logger.Info("processing event", "id", msg.ID, "source_url", event.SourceURL, "articles", len(event.Articles))
	return c.handler(ctx, event)
}

func decodeUploaded(msg redis.XMessage) (UploadedEvent, error) {
	data, ok := msg.Values["data"].(string)
	if !ok {
		return UploadedEvent{}, fmt.Errorf("%w: no data in %s", errMalformed, msg.ID)
	}

	var envelope struct {
		Payload UploadedEvent `json:"payload"`
	}
	if err := json.Unmarshal([]byte(data), &envelope); err != nil {
		return UploadedEvent{}, fmt.Errorf("%w: %s: %v", errMalformed, msg.ID, err)
	}
	return envelope.Payload, nil
}
