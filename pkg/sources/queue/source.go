// Package queue consumes messenger traffic from a Redis Stream and feeds it
// to the trigger matcher as message source events. A consumer group lets
// several API or worker instances share one stream without double-delivery.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/flowhire/flowhire/pkg/models"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const (
	defaultStream        = "flowhire:messages"
	defaultConsumerGroup = "flowhire-engine"
	readBlock            = time.Second
	readCount            = 16
)

// MatchCallback receives each decoded source event.
type MatchCallback func(ctx context.Context, event *models.SourceEvent) error

type Source struct {
	Stream        string
	ConsumerGroup string
	ConsumerName  string

	client   redis.UniversalClient
	callback MatchCallback
	logger   *slog.Logger
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewSource(config map[string]string, logger *slog.Logger) *Source {
	stream := config["stream"]
	if stream == "" {
		stream = defaultStream
	}

	group := config["consumer_group"]
	if group == "" {
		group = defaultConsumerGroup
	}

	addr := config["addr"]
	if addr == "" {
		addr = "localhost:6379"
	}

	return &Source{
		Stream:        stream,
		ConsumerGroup: group,
		ConsumerName:  "consumer-" + uuid.NewString(),
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config["password"],
		}),
		stopCh: make(chan struct{}),
		logger: logger.With(
			"module", "queue_source",
			"stream", stream,
			"consumer_group", group,
		),
	}
}

func (s *Source) Start(ctx context.Context, callback MatchCallback) error {
	s.callback = callback

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	// BUSYGROUP means another instance created the group first.
	err := s.client.XGroupCreateMkStream(ctx, s.Stream, s.ConsumerGroup, "$").Err()
	if err != nil && !isBusyGroup(err) {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	s.wg.Add(1)

	go s.consume(ctx)

	s.logger.InfoContext(ctx, "Queue source started", "consumer", s.ConsumerName)

	return nil
}

func (s *Source) Stop(ctx context.Context) error {
	close(s.stopCh)
	s.wg.Wait()

	if err := s.client.Close(); err != nil {
		s.logger.ErrorContext(ctx, "Error closing Redis client", "error", err)
	}

	s.logger.InfoContext(ctx, "Queue source stopped")

	return nil
}

func (s *Source) consume(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		default:
			if err := s.readBatch(ctx); err != nil {
				s.logger.ErrorContext(ctx, "Error reading from stream", "error", err)
				time.Sleep(time.Second)
			}
		}
	}
}

func (s *Source) readBatch(ctx context.Context) error {
	streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    s.ConsumerGroup,
		Consumer: s.ConsumerName,
		Streams:  []string{s.Stream, ">"},
		Count:    readCount,
		Block:    readBlock,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
			return nil
		}

		return err
	}

	for _, stream := range streams {
		for _, message := range stream.Messages {
			event := s.decode(message)

			if err := s.callback(ctx, event); err != nil {
				s.logger.ErrorContext(ctx, "Error matching message event",
					"message_id", message.ID,
					"error", err)

				continue
			}

			if err := s.client.XAck(ctx, s.Stream, s.ConsumerGroup, message.ID).Err(); err != nil {
				s.logger.ErrorContext(ctx, "Failed to ack message", "message_id", message.ID, "error", err)
			}
		}
	}

	return nil
}

// decode maps a stream entry to a message source event. The payload field, if
// present, must be a JSON object; a bare text entry still matches keywords.
func (s *Source) decode(message redis.XMessage) *models.SourceEvent {
	event := &models.SourceEvent{
		ID:          message.ID,
		TriggerType: models.TriggerTypeMessage,
		ReceivedAt:  time.Now().UTC(),
	}

	if text, ok := message.Values["text"].(string); ok {
		event.Text = text
	}

	if channelID, ok := message.Values["channel_id"].(string); ok {
		event.ChannelID = channelID
	}

	if raw, ok := message.Values["payload"].(string); ok && raw != "" {
		var data map[string]any
		if err := json.Unmarshal([]byte(raw), &data); err != nil {
			s.logger.Warn("Discarding malformed message payload", "message_id", message.ID, "error", err)
		} else {
			event.Data = data
		}
	}

	if event.Data == nil {
		event.Data = map[string]any{}
	}

	event.Data["text"] = event.Text

	return event
}

func isBusyGroup(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP")
}
