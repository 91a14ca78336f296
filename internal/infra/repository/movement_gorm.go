package repository

import (
	"context"

	"stockledger/internal/domain/model"
	repo "stockledger/internal/repository"

	"gorm.io/gorm"
)

const maxMovementPage = 500

type MovementGormRepository struct {
	db *gorm.DB
}

func NewMovementGormRepository(db *gorm.DB) *MovementGormRepository {
	return &MovementGormRepository{db: db}
}

// sequenceはbigserialで採番され、RETURNINGでeに戻る
func (r *MovementGormRepository) Append(ctx context.Context, e *model.MovementEntry) error {
	if err := r.db.WithContext(ctx).Create(e).Error; err != nil {
		if isUniqueViolation(err) {
			//同じversionのエントリが既にある = 他で先に書かれた
			return repo.ErrVersionConflict
		}
		return err
	}
	return nil
}

func (r *MovementGormRepository) List(ctx context.Context, q repo.MovementQuery) ([]model.MovementEntry, error) {
	tx := r.db.WithContext(ctx).
		Model(&model.MovementEntry{}).
		Where("product_id = ? AND warehouse_id = ?", q.Key.ProductID, q.Key.WarehouseID)

	if q.AfterSequence > 0 {
		tx = tx.Where("sequence > ?", q.AfterSequence)
	}
	//範囲
	if q.FromSequence != nil {
		tx = tx.Where("sequence >= ?", *q.FromSequence)
	}
	if q.ToSequence != nil {
		tx = tx.Where("sequence <= ?", *q.ToSequence)
	}
	if q.From != nil {
		tx = tx.Where("created_at >= ?", *q.From)
	}
	if q.To != nil {
		tx = tx.Where("created_at <= ?", *q.To)
	}

	limit := q.Limit
	if limit <= 0 || limit > maxMovementPage {
		limit = maxMovementPage
	}

	var items []model.MovementEntry
	if err := tx.Order("sequence asc").Limit(limit).Find(&items).Error; err != nil {
		return []model.MovementEntry{}, err
	}
	return items, nil
}
