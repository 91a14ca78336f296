package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"stockledger/internal/domain/model"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const exchangeType = "topic"

// 接続とexchangeの宣言。起動直後はブローカーが未起動のことがあるので数回試す
func SetupConn(url, exchange string, logger *zap.Logger) (*amqp.Connection, *amqp.Channel, error) {
	var conn *amqp.Connection
	var err error

	for i := 0; i < 5; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			break
		}
		logger.Warn("rabbitmq connect failed", zap.Int("attempt", i+1), zap.Error(err))
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("could not connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("could not open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange,     // name
		exchangeType, // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, fmt.Errorf("could not declare exchange: %w", err)
	}

	return conn, ch, nil
}

// RabbitMQのtopic exchangeに投げる。
// routing key: inventory.low_stock.<warehouse>.<product>
type RabbitMQSink struct {
	mu       sync.Mutex // amqp.Channelはgoroutine間で共有しない
	ch       *amqp.Channel
	exchange string
}

func NewRabbitMQSink(ch *amqp.Channel, exchange string) *RabbitMQSink {
	return &RabbitMQSink{ch: ch, exchange: exchange}
}

func RoutingKey(a model.LowStockAlert) string {
	return fmt.Sprintf("inventory.low_stock.%s.%s", a.WarehouseID, a.ProductID)
}

func (s *RabbitMQSink) Notify(ctx context.Context, a model.LowStockAlert) error {
	body, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("could not marshal alert: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ch.PublishWithContext(ctx,
		s.exchange,    // exchange
		RoutingKey(a), // routing key
		false,         // mandatory
		false,         // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    a.DetectedAt,
			Body:         body,
		},
	)
}
