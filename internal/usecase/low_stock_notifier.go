package usecase

import (
	"context"
	"sync"
	"time"

	"stockledger/internal/domain/model"

	"go.uber.org/zap"
)

// 在庫が下限を下回った瞬間だけ通知する。
// 送信は非同期で、失敗しても在庫操作には影響しない。
type LowStockNotifier struct {
	sink    AlertSink
	clock   Clock
	logger  *zap.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewLowStockNotifier(sink AlertSink, clock Clock, logger *zap.Logger, timeout time.Duration) *LowStockNotifier {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &LowStockNotifier{
		sink:    sink,
		clock:   clock,
		logger:  logger,
		timeout: timeout,
	}
}

// 下限以上 → 下限未満 に変わったときだけtrue。下回ったままの変更では鳴らさない
func CrossedBelowThreshold(prev, next model.InventoryRecord) bool {
	return prev.Available() >= next.MinThreshold && next.Available() < next.MinThreshold
}

// 通知を投げたらtrue
func (n *LowStockNotifier) Observe(prev, next model.InventoryRecord) bool {
	if n == nil || n.sink == nil {
		return false
	}
	if !CrossedBelowThreshold(prev, next) {
		return false
	}

	alert := model.LowStockAlert{
		ProductID:   next.ProductID,
		WarehouseID: next.WarehouseID,
		Available:   next.Available(),
		Threshold:   next.MinThreshold,
		DetectedAt:  n.clock.Now(),
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		//呼び出し元のctxとは切り離す
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()

		if err := n.sink.Notify(ctx, alert); err != nil {
			n.logger.Warn("low stock alert not delivered",
				zap.String("product_id", alert.ProductID),
				zap.String("warehouse_id", alert.WarehouseID),
				zap.Int64("available", alert.Available),
				zap.Int64("threshold", alert.Threshold),
				zap.Error(err),
			)
		}
	}()
	return true
}

// 送信中の通知を待つ（停止時・テスト用）
func (n *LowStockNotifier) Wait() {
	if n == nil {
		return
	}
	n.wg.Wait()
}
