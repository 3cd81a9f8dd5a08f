package kafka

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/segmentio/kafka-go"
)

// ErrPublish marks every error returned by Publish.
var ErrPublish = errors.New("kafka: publish failed")

type Config struct {
	Brokers []string
	Topic   string
	// MaxAttempts per Publish before the writer gives up; the broadcaster
	// counts retries across ticks on top of this.
	MaxAttempts  int
	BatchTimeout time.Duration
	WriteTimeout time.Duration
}

func DefaultConfig(brokers []string, topic string) Config {
	return Config{
		Brokers:      brokers,
		Topic:        topic,
		MaxAttempts:  3,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 5 * time.Second,
	}
}

// Producer publishes cycle reports with a synchronous kafka-go writer.
// Reports are keyed instance/cycle and hashed so one reclaimer's reports
// stay ordered on one partition.
type Producer struct {
	writer *kafka.Writer
}

func NewProducer(cfg Config) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: no brokers")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka: no topic")
	}
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			MaxAttempts:  cfg.MaxAttempts,
			BatchTimeout: cfg.BatchTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
	}, nil
}

// Publish writes one report and blocks until every in-sync replica has it.
func (p *Producer) Publish(ctx context.Context, key, value []byte) error {
	err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:     key,
		Value:   value,
		Headers: []kafka.Header{{Key: "content-type", Value: []byte("application/x-protobuf")}},
	})
	if err != nil {
		return errors.Wrapf(errors.Mark(err, ErrPublish), "kafka: report %s to %s", key, p.writer.Topic)
	}
	return nil
}

func (p *Producer) Topic() string { return p.writer.Topic }

func (p *Producer) Close() error {
	return errors.Wrap(p.writer.Close(), "kafka: close writer")
}
