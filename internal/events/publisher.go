// Package events publishes filter changes of live sessions to Kafka.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"catalogfacets/internal/controller"
	"catalogfacets/internal/query"
	"catalogfacets/internal/urlcodec"
)

const (
	TopicFilterChanged = "catalog.filters.changed"
	TypeFilterChanged  = "filter.changed"
)

// FilterChanged is emitted after every successful mutation of a session.
type FilterChanged struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	SessionID  string      `json:"session_id"`
	Query      string      `json:"query"`
	State      query.State `json:"state"`
	OccurredAt time.Time   `json:"occurred_at"`
}

// MessageWriter is the part of kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaWriter builds an asynchronous producer for topic.
func NewKafkaWriter(broker, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(broker),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
	}
}

type Publisher struct {
	writer  MessageWriter
	logger  *zap.Logger
	timeout time.Duration
}

func NewPublisher(writer MessageWriter, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{writer: writer, logger: logger, timeout: 5 * time.Second}
}

// Publish writes one event keyed by session so a session's changes stay ordered.
func (p *Publisher) Publish(ctx context.Context, event FilterChanged) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Type == "" {
		event.Type = TypeFilterChanged
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.SessionID),
		Value: data,
		Time:  event.OccurredAt,
	})
}

// Attach publishes a FilterChanged event for every state c notifies.
func (p *Publisher) Attach(sessionID string, c *controller.Controller) func() {
	return c.Subscribe(func(state query.State) {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()

		event := FilterChanged{
			SessionID: sessionID,
			Query:     urlcodec.EncodeQuery(state),
			State:     state,
		}
		if err := p.Publish(ctx, event); err != nil {
			p.logger.Warn("failed to publish filter change",
				zap.String("session_id", sessionID), zap.Error(err))
		}
	})
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
