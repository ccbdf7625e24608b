package audit

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/segmentio/kafka-go"
)

// KafkaSink publishes events as JSON messages keyed by account id, so all
// events for one account land on the same partition.
type KafkaSink struct {
	writer *kafka.Writer
}

func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
		},
	}
}

func (s *KafkaSink) Record(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.AccountID),
		Value: data,
	})
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}

// LogSink writes events to the process log. Fallback when Kafka is not
// configured; keeps single-binary deployments auditable.
type LogSink struct {
	Log *slog.Logger
}

func (s *LogSink) Record(_ context.Context, event Event) error {
	l := s.Log
	if l == nil {
		l = slog.Default()
	}
	l.Info("audit",
		"action", event.Action,
		"outcome", event.Outcome,
		"account_id", event.AccountID,
		"description", event.Description,
		"metadata", event.Metadata,
	)
	return nil
}

// ChannelSink hands events to a buffered channel. Test helper.
type ChannelSink struct {
	events chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{events: make(chan Event, buffer)}
}

func (s *ChannelSink) Record(ctx context.Context, event Event) error {
	select {
	case s.events <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *ChannelSink) Events() <-chan Event {
	return s.events
}
