package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"stockledger/internal/domain/model"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Kafkaのトピックに投げる。キーは商品@倉庫（同じキーは同じパーティション）
type KafkaSink struct {
	writer messageWriter
}

func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
}

func NewKafkaSink(writer messageWriter) *KafkaSink {
	return &KafkaSink{writer: writer}
}

func (s *KafkaSink) Notify(ctx context.Context, a model.LowStockAlert) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("could not marshal alert: %w", err)
	}
	key := model.StockKey{ProductID: a.ProductID, WarehouseID: a.WarehouseID}
	return s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key.String()),
		Value: payload,
		Time:  a.DetectedAt,
	})
}
