package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaPublisher implements Publisher using segmentio/kafka-go.
// Events are keyed by chat id so one chat's events stay ordered.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher creates a publisher for topic on the comma-separated brokers.
func NewKafkaPublisher(brokers, topic string) (*KafkaPublisher, error) {
	var brokerList []string
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokerList = append(brokerList, b)
		}
	}
	if len(brokerList) == 0 {
		return nil, fmt.Errorf("kafka publisher: no brokers configured")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka publisher: topic is required")
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokerList...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			BatchTimeout:           50 * time.Millisecond,
			AllowAutoTopicCreation: true,
		},
	}, nil
}

// Publish writes one event.
func (p *KafkaPublisher) Publish(ctx context.Context, evt Event) error {
	value, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(evt.ChatID, 10)),
		Value: value,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write %s: %w", evt.Type, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// ChannelPublisher is a test/in-process Publisher backed by a Go channel.
type ChannelPublisher struct {
	ch chan Event
}

// NewChannelPublisher creates an in-process publisher with the given buffer.
func NewChannelPublisher(buffer int) *ChannelPublisher {
	return &ChannelPublisher{ch: make(chan Event, buffer)}
}

// Publish pushes evt, failing if ctx ends while the buffer is full.
func (p *ChannelPublisher) Publish(ctx context.Context, evt Event) error {
	select {
	case p.ch <- evt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Events returns the event channel.
func (p *ChannelPublisher) Events() <-chan Event { return p.ch }

// Close closes the channel.
func (p *ChannelPublisher) Close() error {
	close(p.ch)
	return nil
}
