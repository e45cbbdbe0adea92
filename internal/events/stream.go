package events

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"

	"github.com/paymentstack/autopilot/internal/config"
	"github.com/paymentstack/autopilot/internal/models"
)

var json = jsoniter.ConfigFastest

const streamReadBlock = 2 * time.Second

// StreamSource consumes payment events from a Redis Stream through a
// consumer group, acknowledging each entry once decoded.
type StreamSource struct {
	client *redis.Client
	logger *slog.Logger

	stream   string
	group    string
	consumer string

	pending []models.PaymentEvent
}

// NewStreamSource connects to Redis and ensures the consumer group exists.
func NewStreamSource(ctx context.Context, cfg config.EventsConfig, logger *slog.Logger) (*StreamSource, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	err = client.XGroupCreateMkStream(ctx, cfg.Stream, cfg.ConsumerGroup, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		client.Close()
		return nil, fmt.Errorf("create consumer group: %w", err)
	}

	return &StreamSource{
		client:   client,
		logger:   logger,
		stream:   cfg.Stream,
		group:    cfg.ConsumerGroup,
		consumer: cfg.ConsumerName,
	}, nil
}

// Next returns the next decoded event, reading a fresh batch from the
// stream when the local buffer is drained.
func (s *StreamSource) Next(ctx context.Context) (models.PaymentEvent, error) {
	for len(s.pending) == 0 {
		if err := ctx.Err(); err != nil {
			return models.PaymentEvent{}, err
		}

		streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    s.group,
			Consumer: s.consumer,
			Streams:  []string{s.stream, ">"},
			Count:    64,
			Block:    streamReadBlock,
		}).Result()
		if err != nil {
			if err == redis.Nil {
				continue
			}
			return models.PaymentEvent{}, fmt.Errorf("read stream: %w", err)
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				event, ok := s.decode(msg)
				if err := s.client.XAck(ctx, s.stream, s.group, msg.ID).Err(); err != nil {
					s.logger.Warn("stream ack failed",
						slog.String("id", msg.ID),
						slog.Any("error", err),
					)
				}
				if ok {
					s.pending = append(s.pending, event)
				}
			}
		}
	}

	event := s.pending[0]
	s.pending = s.pending[1:]
	return event, nil
}

// decode unpacks the payload field of one stream entry. Malformed entries
// are acknowledged and dropped so they cannot wedge the group.
func (s *StreamSource) decode(msg redis.XMessage) (models.PaymentEvent, bool) {
	raw, ok := msg.Values["payload"].(string)
	if !ok {
		s.logger.Warn("stream entry missing payload", slog.String("id", msg.ID))
		return models.PaymentEvent{}, false
	}
	var event models.PaymentEvent
	if err := json.UnmarshalFromString(raw, &event); err != nil {
		s.logger.Warn("stream entry decode failed",
			slog.String("id", msg.ID),
			slog.Any("error", err),
		)
		return models.PaymentEvent{}, false
	}
	return event, true
}

// Close releases the Redis connection.
func (s *StreamSource) Close() error {
	return s.client.Close()
}

// Publisher appends payment events to the Redis Stream consumed by
// StreamSource. Used by the local event producer.
type Publisher struct {
	client *redis.Client
	stream string
}

// NewPublisher connects to Redis for stream publishing.
func NewPublisher(ctx context.Context, redisURL, stream string) (*Publisher, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Publisher{client: client, stream: stream}, nil
}

// Publish appends one event to the stream.
func (p *Publisher) Publish(ctx context.Context, event models.PaymentEvent) error {
	payload, err := json.MarshalToString(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Approx: true,
		MaxLen: 100000,
		Values: map[string]interface{}{"payload": payload},
	}).Err()
}

// Close releases the Redis connection.
func (p *Publisher) Close() error {
	return p.client.Close()
}
