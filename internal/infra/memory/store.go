package memory

import (
	"context"
	"sync"

	"stockledger/internal/domain/model"
	repo "stockledger/internal/repository"
)

// プロセス内だけで完結するストア（ローカル起動・テスト用）。
// WithinTx は全体を1つのロックで直列化し、fnが成功したときだけ反映する。
type Store struct {
	mu           sync.Mutex
	records      map[model.StockKey]model.InventoryRecord
	reservations map[string]model.Reservation
	movements    []model.MovementEntry
	auditLogs    []model.AuditLog
}

func NewStore() *Store {
	return &Store{
		records:      make(map[model.StockKey]model.InventoryRecord),
		reservations: make(map[string]model.Reservation),
	}
}

func (s *Store) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t := newTx(s)
	if err := fn(t); err != nil {
		//捨てるだけ
		return err
	}
	t.commit()
	return nil
}

// Tx外から使う repo（1操作 = 1Tx）
func (s *Store) Inventory() repo.InventoryRepository       { return inventoryView{s: s} }
func (s *Store) Reservations() repo.ReservationRepository { return reservationView{s: s} }
func (s *Store) Movements() repo.MovementRepository       { return movementView{s: s} }
func (s *Store) AuditLogs() repo.AuditLogRepository       { return auditLogView{s: s} }

type tx struct {
	s            *Store
	records      map[model.StockKey]model.InventoryRecord
	reservations map[string]model.Reservation
	movements    []model.MovementEntry
	auditLogs    []model.AuditLog
}

func newTx(s *Store) *tx {
	return &tx{
		s:            s,
		records:      make(map[model.StockKey]model.InventoryRecord),
		reservations: make(map[string]model.Reservation),
	}
}

func (t *tx) Inventory() repo.InventoryRepository       { return txInventory{t} }
func (t *tx) Reservations() repo.ReservationRepository { return txReservations{t} }
func (t *tx) Movements() repo.MovementRepository       { return txMovements{t} }
func (t *tx) AuditLogs() repo.AuditLogRepository       { return txAuditLogs{t} }

func (t *tx) commit() {
	for k, rec := range t.records {
		t.s.records[k] = rec
	}
	for id, r := range t.reservations {
		t.s.reservations[id] = r
	}
	t.s.movements = append(t.s.movements, t.movements...)
	t.s.auditLogs = append(t.s.auditLogs, t.auditLogs...)
}

func cloneRecord(rec model.InventoryRecord) model.InventoryRecord {
	if rec.MaxThreshold != nil {
		v := *rec.MaxThreshold
		rec.MaxThreshold = &v
	}
	return rec
}

func cloneReservation(r model.Reservation) model.Reservation {
	if r.ResolvedAt != nil {
		v := *r.ResolvedAt
		r.ResolvedAt = &v
	}
	return r
}
