package alert

import (
	"context"

	"stockledger/internal/domain/model"

	"go.uber.org/zap"
)

// ログに出すだけ（ブローカー無しの環境用）
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Notify(_ context.Context, a model.LowStockAlert) error {
	s.logger.Warn("low stock",
		zap.String("product_id", a.ProductID),
		zap.String("warehouse_id", a.WarehouseID),
		zap.Int64("available", a.Available),
		zap.Int64("threshold", a.Threshold),
		zap.Time("detected_at", a.DetectedAt),
	)
	return nil
}
