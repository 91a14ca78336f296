package repository

import (
	"context"
	"time"

	"stockledger/internal/domain/model"
)

type ReservationRepository interface {
	FindByID(ctx context.Context, id string) (model.Reservation, error)
	Create(ctx context.Context, r model.Reservation) error

	// PENDINGのときだけ状態を変える。既に動いていたらErrVersionConflict
	ResolvePending(ctx context.Context, id string, status model.ReservationStatus, at time.Time) error

	// 期限切れのPENDINGを期限の古い順に最大limit件
	ListDue(ctx context.Context, now time.Time, limit int) ([]model.Reservation, error)

	// キーごとのPENDING数量の合計（照合用）
	SumPending(ctx context.Context, key model.StockKey) (int64, error)
}
