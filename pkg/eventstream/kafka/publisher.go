// Package kafka publishes seed events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/papercomputeco/corpus/pkg/eventstream"
)

// Config configures a Kafka publisher.
type Config struct {
	Brokers []string
	Topic   string

	// ClientID is sent as a message header so consumers can tell producers apart.
	ClientID string
}

// MessageWriter is the part of kafka-go's Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher writes events keyed by dataset location, so events for one
// dataset land on one partition in order.
type Publisher struct {
	writer   MessageWriter
	clientID string
}

var _ eventstream.Publisher = (*Publisher)(nil)

// NewPublisher creates a publisher writing to c.Topic.
func NewPublisher(c Config) (*Publisher, error) {
	brokers := make([]string, 0, len(c.Brokers))
	for _, b := range c.Brokers {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	if len(brokers) == 0 {
		return nil, errors.New("kafka publisher requires at least one broker")
	}
	if c.Topic == "" {
		return nil, errors.New("kafka publisher requires a topic")
	}

	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Topic:                  c.Topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireOne,
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return NewPublisherWithWriter(w, c.ClientID), nil
}

// NewPublisherWithWriter wraps an existing writer.
func NewPublisherWithWriter(w MessageWriter, clientID string) *Publisher {
	return &Publisher{writer: w, clientID: clientID}
}

// Publish writes event as one JSON message.
func (p *Publisher) Publish(ctx context.Context, event *eventstream.SeedEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}

	headers := []kafkago.Header{
		{Key: "event_type", Value: []byte(event.EventType)},
	}
	if p.clientID != "" {
		headers = append(headers, kafkago.Header{Key: "client_id", Value: []byte(p.clientID)})
	}

	msg := kafkago.Message{
		Key:     []byte(event.Source.Location),
		Value:   payload,
		Headers: headers,
		Time:    event.EmittedAt,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publishing %s: %w", event.EventType, err)
	}
	return nil
}

// Close flushes pending messages and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
