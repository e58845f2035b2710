package notify

import (
	"time"

	"github.com/okian/devrank/pkg/logger"
)

// Option configures a KafkaPublisher.
type Option func(*KafkaPublisher)

// WithTopic overrides DefaultTopic.
func WithTopic(topic string) Option {
	return func(p *KafkaPublisher) {
		if topic != "" {
			p.topic = topic
		}
	}
}

// WithLogger sets the publisher logger.
func WithLogger(l logger.Logger) Option {
	return func(p *KafkaPublisher) {
		if l != nil {
			p.log = l
		}
	}
}

// WithNow sets the clock used for message timestamps.
func WithNow(now func() time.Time) Option {
	return func(p *KafkaPublisher) {
		if now != nil {
			p.now = now
		}
	}
}

func withWriter(w messageWriter) Option {
	return func(p *KafkaPublisher) { p.writer = w }
}
