package repository

import (
	"context"
	"time"

	"stockledger/internal/domain/model"
)

// 在庫履歴の絞り込み条件。
type MovementQuery struct {
	Key model.StockKey

	//続きから読むためのカーソル（このsequenceより後）
	AfterSequence int64

	FromSequence *int64
	ToSequence   *int64
	From         *time.Time
	To           *time.Time
	Limit        int
}

// 追記専用。更新・削除は持たない
type MovementRepository interface {
	// e.Sequence は保存時に採番される
	Append(ctx context.Context, e *model.MovementEntry) error

	// sequence昇順
	List(ctx context.Context, q MovementQuery) ([]model.MovementEntry, error)
}
