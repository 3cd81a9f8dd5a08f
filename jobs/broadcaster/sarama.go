package broadcaster

import (
	"context"

	"github.com/IBM/sarama"
)

// SaramaPublisher publishes through a synchronous sarama producer that
// waits for every in-sync replica.
type SaramaPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

func NewSaramaPublisher(brokers []string, topic string) (*SaramaPublisher, error) {
	producer, err := sarama.NewSyncProducer(brokers, SaramaConfig())
	if err != nil {
		return nil, err
	}
	return NewSaramaPublisherWith(producer, topic), nil
}

// NewSaramaPublisherWith wraps an existing producer.
func NewSaramaPublisherWith(producer sarama.SyncProducer, topic string) *SaramaPublisher {
	return &SaramaPublisher{producer: producer, topic: topic}
}

func SaramaConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	return cfg
}

func (p *SaramaPublisher) Publish(_ context.Context, key, value []byte) error {
	_, _, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.ByteEncoder(key),
		Value: sarama.ByteEncoder(value),
	})
	return err
}

func (p *SaramaPublisher) Close() error {
	return p.producer.Close()
}
