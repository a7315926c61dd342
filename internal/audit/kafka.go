package audit

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaPublisher produces lifecycle events onto a topic, keyed by uid so one
// case's events stay ordered within a partition.
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
	log    *slog.Logger
}

func NewKafka(brokers []string, topic string, log *slog.Logger) (*KafkaPublisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchMaxBytes(1<<20),
		kgo.ProduceRequestTimeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &KafkaPublisher{client: client, topic: topic, log: log}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, event Event) {
	payload := marshal(event, p.log)
	if payload == nil {
		return
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(strconv.FormatInt(event.UID, 10)),
		Value: payload,
	}
	p.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			p.log.Warn("audit publish failed",
				"uid", event.UID, "status", event.Status, "error", err)
		}
	})
}

func (p *KafkaPublisher) Close() {
	p.client.Close()
}
