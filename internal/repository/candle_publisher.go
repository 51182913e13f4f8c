package repository

import (
	"context"

	"KlineScope/internal/domain/models"
	"KlineScope/internal/domain/repository"
	pkgkafka "KlineScope/pkg/kafka"
)

// KafkaCandlePublisher writes closed candles as JSON keyed by symbol.
type KafkaCandlePublisher struct {
	producer *pkgkafka.Producer
}

var _ repository.CandlePublisher = (*KafkaCandlePublisher)(nil)

func NewKafkaCandlePublisher(producer *pkgkafka.Producer) *KafkaCandlePublisher {
	return &KafkaCandlePublisher{producer: producer}
}

func (p *KafkaCandlePublisher) Publish(ctx context.Context, c *models.StreamCandle) error {
	return p.PublishBatch(ctx, []*models.StreamCandle{c})
}

func (p *KafkaCandlePublisher) PublishBatch(ctx context.Context, candles []*models.StreamCandle) error {
	msgs := make([]pkgkafka.Message, 0, len(candles))
	for _, c := range candles {
		if c == nil {
			continue
		}
		msgs = append(msgs, pkgkafka.Message{Key: []byte(c.Symbol), Value: c})
	}
	return p.producer.PublishBatch(ctx, msgs)
}

func (p *KafkaCandlePublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
