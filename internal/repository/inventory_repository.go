package repository

import (
	"context"

	"stockledger/internal/domain/model"
)

// 在庫の現在値の約束。
type InventoryRepository interface {
	FindByKey(ctx context.Context, key model.StockKey) (model.InventoryRecord, error)

	// expectedVersionが一致するときだけ書く。0なら新規作成
	SaveIfVersion(ctx context.Context, rec model.InventoryRecord, expectedVersion int64) error
}
