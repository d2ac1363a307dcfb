package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IBM/sarama"

	"chathub/internal/config"
)

// NewSyncProducer builds the producer used for notification events.
func NewSyncProducer(cfg config.KafkaConfig) (sarama.SyncProducer, error) {
	sc := sarama.NewConfig()
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Retry.Max = cfg.MaxRetries
	sc.Producer.Return.Successes = true
	sc.Producer.Compression = sarama.CompressionSnappy
	sc.Producer.Partitioner = sarama.NewHashPartitioner
	sc.Version = sarama.V2_0_0_0
	sc.ClientID = cfg.ClientID

	return sarama.NewSyncProducer(cfg.Brokers, sc)
}

// MailEvent is what the mail worker consumes from the notification topic.
type MailEvent struct {
	To       string    `json:"to"`
	Subject  string    `json:"subject"`
	Body     string    `json:"body"`
	QueuedAt time.Time `json:"queuedAt"`
}

// MailPublisher publishes outbound mail to Kafka; the mail worker owns
// actual SMTP delivery.
type MailPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

func NewMailPublisher(producer sarama.SyncProducer, topic string) *MailPublisher {
	return &MailPublisher{producer: producer, topic: topic}
}

func (p *MailPublisher) PublishMail(_ context.Context, to, subject, body string) error {
	payload, err := json.Marshal(MailEvent{
		To:       to,
		Subject:  subject,
		Body:     body,
		QueuedAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	_, _, err = p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(to),
		Value: sarama.ByteEncoder(payload),
	})
	return err
}
