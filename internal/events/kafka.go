// Package events publishes accepted rate snapshots to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"fxledger/internal/domain"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const DefaultTopic = "fxledger.rates.refreshed"

// MessageWriter is satisfied by *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// RefreshEvent is the message value for one successful refresh.
type RefreshEvent struct {
	ID            string                 `json:"id"`
	Timestamp     time.Time              `json:"timestamp"`
	Pivot         domain.Code            `json:"pivot"`
	Sources       []domain.Source        `json:"sources"`
	FailedSources []domain.SourceFailure `json:"failed_sources,omitempty"`
	Rates         []RateValue            `json:"rates"`
}

type RateValue struct {
	Code       domain.Code   `json:"code"`
	Rate       string        `json:"rate"`
	Source     domain.Source `json:"source"`
	ObservedAt time.Time     `json:"observed_at"`
}

type KafkaPublisher struct {
	writer MessageWriter
	tracer trace.Tracer
}

func NewKafkaPublisher(writer MessageWriter, tracer trace.Tracer) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, tracer: tracer}
}

// NewWriter builds a synchronous writer for a comma-separated broker list.
func NewWriter(brokers, topic string) *kafka.Writer {
	if topic == "" {
		topic = DefaultTopic
	}
	var addrs []string
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			addrs = append(addrs, b)
		}
	}
	return &kafka.Writer{
		Addr:         kafka.TCP(addrs...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
}

// PublishRefresh writes entry keyed by pivot so one pivot's snapshots stay ordered.
func (p *KafkaPublisher) PublishRefresh(ctx context.Context, entry domain.HistoryEntry) error {
	ctx, span := p.tracer.Start(ctx, "events.publish-refresh")
	defer span.End()
	span.SetAttributes(attribute.String("history_id", entry.ID), attribute.Int("points", len(entry.Points)))

	ev := RefreshEvent{
		ID:            entry.ID,
		Timestamp:     entry.Timestamp,
		Pivot:         entry.Pivot,
		Sources:       entry.Sources,
		FailedSources: entry.FailedSources,
		Rates:         make([]RateValue, 0, len(entry.Points)),
	}
	for _, pt := range entry.Points {
		ev.Rates = append(ev.Rates, RateValue{
			Code:       pt.From,
			Rate:       pt.Value.String(),
			Source:     pt.Source,
			ObservedAt: pt.ObservedAt,
		})
	}
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode refresh event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(entry.Pivot),
		Value: value,
		Time:  entry.Timestamp,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		span.RecordError(err)
		return fmt.Errorf("publish refresh %s: %w", entry.ID, err)
	}
	return nil
}
