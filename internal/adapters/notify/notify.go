// Package notify publishes score updates to downstream consumers.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/okian/devrank/internal/adapters/repository"
	"github.com/okian/devrank/internal/domain/techstack"
	"github.com/okian/devrank/pkg/logger"
	"github.com/okian/devrank/pkg/metrics"
)

// DefaultTopic receives one message per stored score.
const DefaultTopic = "devrank.scores"

// Publisher announces that a developer record was stored.
type Publisher interface {
	Publish(ctx context.Context, rec repository.Record) error
	Close() error
}

// ScoreEvent is the JSON value written for every published record.
type ScoreEvent struct {
	DeveloperID   string            `json:"developer_id"`
	Mode          string            `json:"mode"`
	Grade         string            `json:"grade"`
	RawPercentile float64           `json:"raw_percentile"`
	SmoothedScore float64           `json:"smoothed_score"`
	Points        int64             `json:"points,omitempty"`
	Stacks        []techstack.Stack `json:"stacks,omitempty"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// EventOf builds the event for a stored record.
func EventOf(rec repository.Record) ScoreEvent {
	return ScoreEvent{
		DeveloperID:   rec.DeveloperID,
		Mode:          string(rec.Result.Mode),
		Grade:         rec.Result.Grade,
		RawPercentile: rec.Result.RawPercentile,
		SmoothedScore: rec.Result.SmoothedScore,
		Points:        rec.Result.Points,
		Stacks:        rec.Stacks,
		UpdatedAt:     rec.UpdatedAt,
	}
}

// messageWriter is the subset of *kafka.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes ScoreEvents keyed by developer id.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	now    func() time.Time
	log    logger.Logger
}

// NewKafkaPublisher creates a publisher for the given brokers.
func NewKafkaPublisher(brokers []string, opts ...Option) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, ErrNoBrokers
	}
	p := &KafkaPublisher{
		topic: DefaultTopic,
		now:   time.Now,
		log:   logger.GetOrNop().Named("notify"),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.writer == nil {
		p.writer = &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        p.topic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 10 * time.Millisecond,
			RequiredAcks: kafka.RequireAll,
		}
	}
	return p, nil
}

// Publish sends one message for rec.
func (p *KafkaPublisher) Publish(ctx context.Context, rec repository.Record) error {
	value, err := json.Marshal(EventOf(rec))
	if err != nil {
		metrics.RecordNotificationError()
		return fmt.Errorf("marshal score event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(rec.DeveloperID),
		Value: value,
		Time:  p.now(),
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		metrics.RecordNotificationError()
		p.log.Warn(ctx, "publish failed",
			logger.String("topic", p.topic),
			logger.String("developer_id", rec.DeveloperID),
			logger.Error(err),
		)
		return fmt.Errorf("write to %s: %w", p.topic, err)
	}
	metrics.RecordNotificationPublished()
	return nil
}

// Close flushes pending messages and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher drops every record.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, repository.Record) error { return nil }
func (NopPublisher) Close() error                                     { return nil }

var (
	_ Publisher = (*KafkaPublisher)(nil)
	_ Publisher = NopPublisher{}
)
