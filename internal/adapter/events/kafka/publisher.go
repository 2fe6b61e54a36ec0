package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/V4T54L/agent-relay/internal/domain"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// TaskEventPublisher publishes finished SolveTasks to a Kafka topic, keyed by
// task ID. It implements domain.TaskEventPublisher.
type TaskEventPublisher struct {
	writer messageWriter
	topic  string
	logger *slog.Logger
}

func NewTaskEventPublisher(brokers []string, topic string, logger *slog.Logger) *TaskEventPublisher {
	return &TaskEventPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 50 * time.Millisecond,
		},
		topic:  topic,
		logger: logger.With("component", "task_events"),
	}
}

func (p *TaskEventPublisher) PublishTaskEvent(ctx context.Context, event domain.TaskEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal task event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.TaskID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "status", Value: []byte(event.Status)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to publish task event to %s: %w", p.topic, err)
	}
	p.logger.DebugContext(ctx, "task event published", "task_id", event.TaskID, "topic", p.topic, "status", event.Status)
	return nil
}

func (p *TaskEventPublisher) Topic() string {
	return p.topic
}

func (p *TaskEventPublisher) Close() error {
	return p.writer.Close()
}
