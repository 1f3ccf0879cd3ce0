package kafkarelay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability/logctx"
)

const (
	peerKafka       = "kafka"
	headerEventType = "event_type"
)

var ErrUnkeyedEvent = errors.New("kafkarelay: event has no aggregate id")

// MessageWriter is the subset of *kafka.Writer the relay needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Config struct {
	Brokers []string
	Topic   string
}

// NewWriter builds a writer that hashes keys so one order always lands on the same partition.
func NewWriter(cfg Config) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

// Relay forwards domain events from the in-process bus to a Kafka topic.
type Relay struct {
	writer MessageWriter
	topic  string
	tel    observability.Observability
}

func New(writer MessageWriter, topic string, tel observability.Observability) *Relay {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Relay{writer: writer, topic: topic, tel: tel}
}

// Register subscribes the relay to each named event.
func (r *Relay) Register(sub domoutbox.Subscriber, wrap func(string, domoutbox.Handler) domoutbox.Handler, events ...string) {
	for _, name := range events {
		h := domoutbox.Handler(r.Handle)
		if wrap != nil {
			h = wrap(name, h)
		}
		sub.Subscribe(name, h)
	}
}

func (r *Relay) Handle(ctx context.Context, e domoutbox.Event) error {
	msg, err := encode(e)
	if err != nil {
		return err
	}

	start := time.Now()
	err = r.writer.WriteMessages(ctx, msg)
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	r.tel.Metrics().Counter(observability.MExternalRequests).Add(1,
		observability.L("peer", peerKafka),
		observability.L("endpoint", r.topic),
		observability.L("outcome", outcome),
	)
	r.tel.Metrics().Histogram(observability.MExternalRequestDuration).Observe(time.Since(start).Seconds(),
		observability.L("peer", peerKafka),
		observability.L("endpoint", r.topic),
	)

	logger := logctx.FromOr(ctx, r.tel.Logger())
	if err != nil {
		logger.Warn("event_relay_failed", observability.F("key", string(msg.Key)), observability.F("error", err))
		return fmt.Errorf("write %s: %w", e.EventName(), err)
	}
	logger.Debug("event_relayed", observability.F("key", string(msg.Key)))
	return nil
}

func encode(e domoutbox.Event) (kafka.Message, error) {
	keyed, ok := e.(domoutbox.Keyed)
	if !ok || keyed.AggregateID() == "" {
		return kafka.Message{}, ErrUnkeyedEvent
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode %s: %w", e.EventName(), err)
	}
	return kafka.Message{
		Key:   []byte(keyed.AggregateID()),
		Value: payload,
		Headers: []kafka.Header{
			{Key: headerEventType, Value: []byte(e.EventName())},
		},
	}, nil
}
