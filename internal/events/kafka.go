package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/2beens/fittrack/internal/telemetry/metrics"
	"github.com/2beens/fittrack/internal/telemetry/tracing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/multierr"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events to kafka, one lazily created writer per topic.
type KafkaPublisher struct {
	brokers        []string
	topics         map[string]string
	metricsManager *metrics.Manager

	mu      sync.Mutex
	writers map[string]messageWriter
	// ability to inject a writer (for unit tests)
	newWriter func(topic string) messageWriter
}

// NewKafkaPublisher maps each event type to a topic.
func NewKafkaPublisher(brokers []string, topics map[string]string, metricsManager *metrics.Manager) *KafkaPublisher {
	p := &KafkaPublisher{
		brokers:        brokers,
		topics:         topics,
		metricsManager: metricsManager,
		writers:        make(map[string]messageWriter),
	}
	p.newWriter = p.kafkaWriter
	return p
}

func (p *KafkaPublisher) kafkaWriter(topic string) messageWriter {
	return &kafka.Writer{
		Addr:                   kafka.TCP(p.brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		Compression:            kafka.Snappy,
		AllowAutoTopicCreation: true,
	}
}

func (p *KafkaPublisher) writerForTopic(topic string) messageWriter {
	p.mu.Lock()
	defer p.mu.Unlock()

	if writer, ok := p.writers[topic]; ok {
		return writer
	}
	writer := p.newWriter(topic)
	p.writers[topic] = writer
	return writer
}

func (p *KafkaPublisher) Publish(ctx context.Context, event Event) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "events.kafka.publish")
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
		}
		p.metricsManager.CounterEventsPublished.With(prometheus.Labels{
			"type":   event.Type,
			"status": status,
		}).Inc()
		tracing.EndSpanWithErrCheck(span, err)
	}()

	topic, ok := p.topics[event.Type]
	if !ok {
		return fmt.Errorf("no topic for event type %q", event.Type)
	}
	span.SetAttributes(
		attribute.String("event.type", event.Type),
		attribute.String("event.topic", topic),
	)

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", event.ID, err)
	}

	msg := kafka.Message{
		Key:   []byte(event.Key),
		Value: value,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(event.Type)},
			{Key: "event-id", Value: []byte(event.ID)},
		},
	}
	if err := p.writerForTopic(topic).WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write event %s to %s: %w", event.ID, topic, err)
	}

	log.Debugf("event published: %s [%s] -> %s", event.ID, event.Type, topic)
	return nil
}

// Close releases all writers.
func (p *KafkaPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var err error
	for topic, writer := range p.writers {
		err = multierr.Append(err, writer.Close())
		delete(p.writers, topic)
	}
	return err
}
