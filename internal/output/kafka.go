package output

import (
	"context"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/chrisdamba/menustats/internal/analytics"
)

// KafkaSink publishes every report message to <topic>.<message topic>,
// keyed so rows of the same entity land on the same partition.
type KafkaSink struct {
	producer sarama.SyncProducer
	topic    string
}

func NewSaramaConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Retry.Backoff = 100 * time.Millisecond
	cfg.Producer.Return.Successes = true
	cfg.Producer.Compression = sarama.CompressionSnappy
	cfg.Producer.Idempotent = true
	cfg.Net.MaxOpenRequests = 1
	cfg.Net.DialTimeout = 30 * time.Second
	cfg.Net.ReadTimeout = 30 * time.Second
	cfg.Net.WriteTimeout = 30 * time.Second
	cfg.Version = sarama.V2_1_0_0
	return cfg
}

func NewKafkaSink(brokers []string, topic string) (*KafkaSink, error) {
	producer, err := sarama.NewSyncProducer(brokers, NewSaramaConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create Sarama producer: %w", err)
	}
	log.Infof("kafka producer connected to %v", brokers)
	return NewKafkaSinkWithProducer(producer, topic), nil
}

func NewKafkaSinkWithProducer(producer sarama.SyncProducer, topic string) *KafkaSink {
	return &KafkaSink{producer: producer, topic: topic}
}

func (k *KafkaSink) Write(ctx context.Context, report *analytics.Report) error {
	if k.producer == nil {
		return fmt.Errorf("kafka producer is closed")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	msgs, err := Messages(report)
	if err != nil {
		return err
	}

	batch := make([]*sarama.ProducerMessage, 0, len(msgs))
	for _, m := range msgs {
		batch = append(batch, &sarama.ProducerMessage{
			Topic: k.topic + "." + m.Topic,
			Key:   sarama.StringEncoder(m.Key),
			Value: sarama.ByteEncoder(m.Value),
			Headers: []sarama.RecordHeader{
				{Key: []byte("run_id"), Value: []byte(report.RunID)},
			},
			Timestamp: report.GeneratedAt,
		})
	}
	if err := k.producer.SendMessages(batch); err != nil {
		return fmt.Errorf("failed to publish report %s: %w", report.RunID, err)
	}
	log.Infof("published %d messages for report %s", len(batch), report.RunID)
	return nil
}

func (k *KafkaSink) Close() error {
	if k.producer == nil {
		return nil
	}
	err := k.producer.Close()
	k.producer = nil
	return err
}
