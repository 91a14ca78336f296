package usecase

import (
	"context"
	"time"

	"stockledger/internal/domain/model"
)

// IDを作る
type IDGenerator interface {
	NewID() string
}

// 現在の時間
type Clock interface {
	Now() time.Time
}

// 在庫下限の通知先（RabbitMQ / Kafka / ログ）
type AlertSink interface {
	Notify(ctx context.Context, alert model.LowStockAlert) error
}

// 商品カタログの存在確認。参考程度にしか使わない
type CatalogChecker interface {
	ProductExists(ctx context.Context, productID string) (bool, error)
}
