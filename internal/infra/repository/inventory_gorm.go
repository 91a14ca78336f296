package repository

import (
	"context"
	"errors"

	"stockledger/internal/domain/model"
	repo "stockledger/internal/repository"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const pgUniqueViolation = "23505"

type InventoryGormRepository struct {
	db *gorm.DB
}

func NewInventoryGormRepository(db *gorm.DB) *InventoryGormRepository {
	return &InventoryGormRepository{db: db}
}

func (r *InventoryGormRepository) FindByKey(ctx context.Context, key model.StockKey) (model.InventoryRecord, error) {
	var rec model.InventoryRecord
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND warehouse_id = ?", key.ProductID, key.WarehouseID).
		First(&rec).Error
	if isNotFound(err) {
		return model.InventoryRecord{}, repo.ErrNotFound
	}
	if err != nil {
		return model.InventoryRecord{}, err
	}
	return rec, nil
}

// versionが一致するときだけ更新（CAS）
func (r *InventoryGormRepository) SaveIfVersion(ctx context.Context, rec model.InventoryRecord, expectedVersion int64) error {
	if expectedVersion == 0 {
		//初回入荷。同時に作られたら一意制約で落ちる
		if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
			if isUniqueViolation(err) {
				return repo.ErrVersionConflict
			}
			return err
		}
		return nil
	}

	res := r.db.WithContext(ctx).
		Model(&model.InventoryRecord{}).
		Where("product_id = ? AND warehouse_id = ? AND version = ?", rec.ProductID, rec.WarehouseID, expectedVersion).
		Updates(map[string]interface{}{
			"on_hand":       rec.OnHand,
			"reserved":      rec.Reserved,
			"min_threshold": rec.MinThreshold,
			"max_threshold": rec.MaxThreshold,
			"version":       rec.Version,
			"updated_at":    rec.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrVersionConflict
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
