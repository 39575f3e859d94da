package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/cfnotifier/cfnotifier/internal/types"
)

// Kafka publishes notifications to a topic, keyed by zone id
type Kafka struct {
	writer *kafka.Writer
	logger zerolog.Logger
	now    func() time.Time
}

// kafkaRecord is the message value
type kafkaRecord struct {
	ID       string       `json:"id"`
	ZoneID   string       `json:"zone_id"`
	ZoneName string       `json:"zone_name"`
	Title    string       `json:"title"`
	Body     string       `json:"body"`
	Embed    *types.Embed `json:"embed,omitempty"`
	SentAt   time.Time    `json:"sent_at"`
}

// NewKafka creates a kafka channel writing to topic on brokers
func NewKafka(brokers []string, topic string, logger zerolog.Logger) *Kafka {
	return &Kafka{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			RequiredAcks: kafka.RequireAll,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 10 * time.Millisecond,
		},
		logger: logger.With().Str("channel", "kafka").Str("topic", topic).Logger(),
		now:    time.Now,
	}
}

// Name implements Channel
func (k *Kafka) Name() string {
	return "kafka"
}

// Send implements Channel
func (k *Kafka) Send(ctx context.Context, n types.Notification) error {
	msg, err := kafkaMessage(n, k.now())
	if err != nil {
		return err
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write kafka message: %w", err)
	}
	k.logger.Debug().Str("notification_id", n.ID).Msg("Published notification")
	return nil
}

// Close flushes and closes the writer
func (k *Kafka) Close() error {
	return k.writer.Close()
}

func kafkaMessage(n types.Notification, now time.Time) (kafka.Message, error) {
	data, err := json.Marshal(kafkaRecord{
		ID:       n.ID,
		ZoneID:   n.ZoneID,
		ZoneName: n.ZoneName,
		Title:    n.Title,
		Body:     n.Body,
		Embed:    n.Embed,
		SentAt:   now.UTC(),
	})
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal notification: %w", err)
	}
	return kafka.Message{
		Key:   []byte(n.ZoneID),
		Value: data,
		Time:  now,
	}, nil
}
