package repository

import "context"

// トランザクション内で使う約束
type TxRepos interface {
	Inventory() InventoryRepository
	Reservations() ReservationRepository
	Movements() MovementRepository
	AuditLogs() AuditLogRepository
}

// UsecaseからTxの開始/commit/rollbackを隠す。
// fnがエラーを返したら何も残らない。
type TransactionManager interface {
	WithinTx(ctx context.Context, fn func(r TxRepos) error) error
}
