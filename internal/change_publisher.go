package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/lychee-technology/dataeditor"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaPublisherConfig configures the kafka change publisher.
type KafkaPublisherConfig struct {
	Brokers      []string
	Topic        string
	BatchTimeout time.Duration
}

type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type kafkaPublisher struct {
	writer kafkaWriter
	topic  string

	mu     sync.RWMutex
	closed bool
}

// NewKafkaPublisher returns a publisher that writes change events to a kafka topic,
// keyed by model so the events of one model stay ordered within a partition.
func NewKafkaPublisher(cfg KafkaPublisherConfig) (dataeditor.ChangePublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one kafka broker is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: cfg.BatchTimeout,
		RequiredAcks: kafka.RequireOne,
		MaxAttempts:  3,
	}
	zap.S().Infow("Kafka change publisher ready", "brokers", cfg.Brokers, "topic", cfg.Topic)
	return newKafkaPublisher(writer, cfg.Topic), nil
}

func newKafkaPublisher(writer kafkaWriter, topic string) *kafkaPublisher {
	return &kafkaPublisher{writer: writer, topic: topic}
}

func (p *kafkaPublisher) Publish(ctx context.Context, events ...dataeditor.ChangeEvent) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return fmt.Errorf("kafka publisher for topic %s is closed", p.topic)
	}
	if len(events) == 0 {
		return nil
	}

	messages := make([]kafka.Message, 0, len(events))
	for _, event := range events {
		if event.Timestamp.IsZero() {
			event.Timestamp = time.Now()
		}
		value, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("failed to marshal change event: %w", err)
		}
		messages = append(messages, kafka.Message{
			Key:   []byte(event.Model),
			Value: value,
			Time:  event.Timestamp,
			Headers: []kafka.Header{
				{Key: "operation", Value: []byte(event.Operation)},
				{Key: "model", Value: []byte(event.Model)},
			},
		})
	}
	if err := p.writer.WriteMessages(ctx, messages...); err != nil {
		return fmt.Errorf("failed to write change events to %s: %w", p.topic, err)
	}
	return nil
}

func (p *kafkaPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.writer.Close()
}

type noopPublisher struct{}

// NewNoopPublisher returns a publisher that drops every event.
func NewNoopPublisher() dataeditor.ChangePublisher { return noopPublisher{} }

func (noopPublisher) Publish(context.Context, ...dataeditor.ChangeEvent) error { return nil }
func (noopPublisher) Close() error                                            { return nil }

type publishingAdapter struct {
	next      dataeditor.Adapter
	model     string
	pk        string
	publisher dataeditor.ChangePublisher
	nowFunc   func() time.Time
}

// NewPublishingAdapter emits a change event after every successful mutation of next.
// Publish failures are logged and never fail the mutation.
func NewPublishingAdapter(next dataeditor.Adapter, model, primaryKey string, publisher dataeditor.ChangePublisher) dataeditor.Adapter {
	if publisher == nil {
		return next
	}
	if primaryKey == "" {
		primaryKey = "id"
	}
	return &publishingAdapter{
		next:      next,
		model:     model,
		pk:        primaryKey,
		publisher: publisher,
		nowFunc:   time.Now,
	}
}

func (a *publishingAdapter) emit(ctx context.Context, event dataeditor.ChangeEvent) {
	event.Model = a.model
	event.Timestamp = a.nowFunc()
	if err := a.publisher.Publish(ctx, event); err != nil {
		zap.S().Warnw("Failed to publish change event", "model", a.model, "operation", event.Operation, "key", event.Key, "error", err)
	}
}

func (a *publishingAdapter) List(ctx context.Context) ([]dataeditor.Record, error) {
	return a.next.List(ctx)
}

func (a *publishingAdapter) Read(ctx context.Context, id string) (dataeditor.Record, error) {
	return a.next.Read(ctx, id)
}

func (a *publishingAdapter) Create(ctx context.Context, data dataeditor.Record) (dataeditor.Record, error) {
	record, err := a.next.Create(ctx, data)
	if err != nil {
		return nil, err
	}
	a.emit(ctx, dataeditor.ChangeEvent{
		Operation: dataeditor.ChangeCreate,
		Key:       RecordKey(record, a.pk),
		Data:      dataeditor.CloneRecord(record),
	})
	return record, nil
}

func (a *publishingAdapter) Update(ctx context.Context, id string, data dataeditor.Record) (dataeditor.Record, error) {
	record, err := a.next.Update(ctx, id, data)
	if err != nil {
		return nil, err
	}
	event := dataeditor.ChangeEvent{
		Operation: dataeditor.ChangeUpdate,
		Key:       RecordKey(record, a.pk),
		Data:      dataeditor.CloneRecord(record),
	}
	if event.Key != id {
		event.PreviousKey = id
	}
	a.emit(ctx, event)
	return record, nil
}

func (a *publishingAdapter) Delete(ctx context.Context, id string) error {
	if err := a.next.Delete(ctx, id); err != nil {
		return err
	}
	a.emit(ctx, dataeditor.ChangeEvent{Operation: dataeditor.ChangeDelete, Key: id})
	return nil
}
