package repository

import (
	"context"

	repo "stockledger/internal/repository"

	"gorm.io/gorm"
)

type txReposGorm struct {
	inventory    repo.InventoryRepository
	reservations repo.ReservationRepository
	movements    repo.MovementRepository
	auditLogs    repo.AuditLogRepository
}

func (r *txReposGorm) Inventory() repo.InventoryRepository       { return r.inventory }
func (r *txReposGorm) Reservations() repo.ReservationRepository { return r.reservations }
func (r *txReposGorm) Movements() repo.MovementRepository       { return r.movements }
func (r *txReposGorm) AuditLogs() repo.AuditLogRepository       { return r.auditLogs }

type TxManagerGorm struct {
	db *gorm.DB
}

func NewTxManagerGorm(db *gorm.DB) *TxManagerGorm {
	return &TxManagerGorm{db: db}
}

func (tm *TxManagerGorm) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	return tm.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		//repoはtxを持ったDBで作り直す
		r := &txReposGorm{
			inventory:    NewInventoryGormRepository(tx),
			reservations: NewReservationGormRepository(tx),
			movements:    NewMovementGormRepository(tx),
			auditLogs:    NewAuditLogGormRepository(tx),
		}
		return fn(r)
	})
}
