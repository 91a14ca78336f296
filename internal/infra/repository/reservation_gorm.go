package repository

import (
	"context"
	"time"

	"stockledger/internal/domain/model"
	repo "stockledger/internal/repository"

	"gorm.io/gorm"
)

type ReservationGormRepository struct {
	db *gorm.DB
}

func NewReservationGormRepository(db *gorm.DB) *ReservationGormRepository {
	return &ReservationGormRepository{db: db}
}

func (r *ReservationGormRepository) FindByID(ctx context.Context, id string) (model.Reservation, error) {
	var res model.Reservation
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&res).Error
	if isNotFound(err) {
		return model.Reservation{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Reservation{}, err
	}
	return res, nil
}

func (r *ReservationGormRepository) Create(ctx context.Context, res model.Reservation) error {
	return r.db.WithContext(ctx).Create(&res).Error
}

// PENDINGのときだけ状態を変える
func (r *ReservationGormRepository) ResolvePending(ctx context.Context, id string, status model.ReservationStatus, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&model.Reservation{}).
		Where("id = ? AND status = ?", id, model.ReservationStatusPending).
		Updates(map[string]interface{}{
			"status":      status,
			"resolved_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrVersionConflict
	}
	return nil
}

// (status, expires_at) のindexを使う
func (r *ReservationGormRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]model.Reservation, error) {
	var items []model.Reservation
	err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at <= ?", model.ReservationStatusPending, now).
		Order("expires_at asc").
		Order("id asc").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return []model.Reservation{}, err
	}
	return items, nil
}

func (r *ReservationGormRepository) SumPending(ctx context.Context, key model.StockKey) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&model.Reservation{}).
		Select("COALESCE(SUM(quantity), 0)").
		Where("product_id = ? AND warehouse_id = ? AND status = ?", key.ProductID, key.WarehouseID, model.ReservationStatusPending).
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

var _ repo.ReservationRepository = (*ReservationGormRepository)(nil)

