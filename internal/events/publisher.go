package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultStream     = "stream:listings"
	EventTypeUploaded = "LISTINGS_UPLOADED"
)

// RedisClient interface for Redis operations (for testing)
type RedisClient interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
	Close() error
}

// UploadedEvent describes one successful create-products run.
type UploadedEvent struct {
	SourceURL string   `json:"source_url"`
	OfferIDs  []string `json:"offer_ids"`
	Articles  []string `json:"articles"`
	TaskIDs   []int64  `json:"task_ids"`
}

type Publisher interface {
	PublishUploaded(ctx context.Context, event UploadedEvent) error
	Close() error
}

// RedisPublisher appends events to a Redis stream.
type RedisPublisher struct {
	redis  RedisClient
	stream string
	logger *slog.Logger
	now    func() time.Time
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string
}

// New returns a Redis publisher, or a no-op publisher when no address is
// configured.
func New(cfg RedisConfig, logger *slog.Logger) Publisher {
	if cfg.Addr == "" {
		return NopPublisher{}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewRedisPublisher(client, cfg.Stream, logger)
}

func NewRedisPublisher(client RedisClient, stream string, logger *slog.Logger) *RedisPublisher {
	if stream == "" {
		stream = DefaultStream
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisPublisher{
		redis:  client,
		stream: stream,
		logger: logger.With("component", "events"),
		now:    time.Now,
	}
}

func (p *RedisPublisher) PublishUploaded(ctx context.Context, event UploadedEvent) error {
	id := uuid.New()
	createdAt := p.now().UTC()

	streamData := map[string]interface{}{
		"id":        id.String(),
		"type":      EventTypeUploaded,
		"timestamp": createdAt.Format(time.RFC3339),
		"payload":   event,
		"metadata": map[string]interface{}{
			"source": "applicability-scraper",
		},
	}

	dataJSON, err := json.Marshal(streamData)
	if err != nil {
		return fmt.Errorf("failed to marshal stream data: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"data":       string(dataJSON),
			"type":       EventTypeUploaded,
			"timestamp":  fmt.Sprintf("%d", createdAt.UnixNano()),
			"event_id":   id.String(),
			"source_url": event.SourceURL,
			"count":      len(event.OfferIDs),
		},
	}

	streamID, err := p.redis.XAdd(ctx, args).Result()
	if err != nil {
		return fmt.Errorf("failed to publish to redis: %w", err)
	}

	p.logger.Info("event published",
		"event_id", id,
		"stream", p.stream,
		"stream_id", streamID,
		"listings", len(event.OfferIDs))
	return nil
}

func (p *RedisPublisher) Close() error {
	return p.redis.Close()
}

// NopPublisher discards events.
type NopPublisher struct{}

func (NopPublisher) PublishUploaded(context.Context, UploadedEvent) error { return nil }

func (NopPublisher) Close() error { return nil }
