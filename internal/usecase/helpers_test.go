package usecase_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"stockledger/internal/domain/model"
	"stockledger/internal/infra/memory"
	repo "stockledger/internal/repository"
	"stockledger/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// =====================
// 時計・ID
// =====================

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type seqIDs struct{ n atomic.Int64 }

func (g *seqIDs) NewID() string {
	return fmt.Sprintf("id-%04d", g.n.Add(1))
}

// =====================
// 通知先（受け取った順に記録）
// =====================

type recordingSink struct {
	mu     sync.Mutex
	alerts []model.LowStockAlert
}

func (s *recordingSink) Notify(_ context.Context, a model.LowStockAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, a)
	return nil
}

func (s *recordingSink) All() []model.LowStockAlert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.LowStockAlert(nil), s.alerts...)
}

// =====================
// 障害注入（競合 / 永続化失敗）
// =====================

type faultyTx struct {
	inner repo.TransactionManager

	// SaveIfVersionを何回競合させるか
	conflicts atomic.Int32
	// Appendで返すエラー
	appendErr error
}

func (f *faultyTx) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	return f.inner.WithinTx(ctx, func(r repo.TxRepos) error {
		return fn(&faultyRepos{TxRepos: r, f: f})
	})
}

type faultyRepos struct {
	repo.TxRepos
	f *faultyTx
}

func (r *faultyRepos) Inventory() repo.InventoryRepository {
	return &faultyInventory{InventoryRepository: r.TxRepos.Inventory(), f: r.f}
}

func (r *faultyRepos) Movements() repo.MovementRepository {
	return &faultyMovements{MovementRepository: r.TxRepos.Movements(), f: r.f}
}

type faultyInventory struct {
	repo.InventoryRepository
	f *faultyTx
}

func (i *faultyInventory) SaveIfVersion(ctx context.Context, rec model.InventoryRecord, expected int64) error {
	if i.f.conflicts.Add(-1) >= 0 {
		return repo.ErrVersionConflict
	}
	return i.InventoryRepository.SaveIfVersion(ctx, rec, expected)
}

type faultyMovements struct {
	repo.MovementRepository
	f *faultyTx
}

func (m *faultyMovements) Append(ctx context.Context, e *model.MovementEntry) error {
	if m.f.appendErr != nil {
		return m.f.appendErr
	}
	return m.MovementRepository.Append(ctx, e)
}

// =====================
// 組み立て
// =====================

type harness struct {
	store        *memory.Store
	tx           *faultyTx
	clock        *fakeClock
	sink         *recordingSink
	notifier     *usecase.LowStockNotifier
	coord        *usecase.StockCoordinator
	inventory    *usecase.InventoryUsecase
	reservations *usecase.ReservationUsecase
	sweeper      *usecase.ExpirationSweeper
}

type harnessOpts struct {
	maxAttempts   int
	catalog       usecase.CatalogChecker
	strictCatalog bool
}

func newHarness(t *testing.T) *harness {
	return newHarnessWith(t, harnessOpts{})
}

func newHarnessWith(t *testing.T, o harnessOpts) *harness {
	t.Helper()
	if o.maxAttempts == 0 {
		o.maxAttempts = 5
	}

	logger := zaptest.NewLogger(t)
	store := memory.NewStore()
	tx := &faultyTx{inner: store}
	clock := newFakeClock()
	sink := &recordingSink{}
	ids := &seqIDs{}

	notifier := usecase.NewLowStockNotifier(sink, clock, logger, time.Second)
	coord := usecase.NewStockCoordinator(tx, store.Reservations(), notifier, clock, ids, logger,
		usecase.CoordinatorConfig{MaxAttempts: o.maxAttempts})

	h := &harness{
		store:    store,
		tx:       tx,
		clock:    clock,
		sink:     sink,
		notifier: notifier,
		coord:    coord,
		inventory: usecase.NewInventoryUsecase(coord, store.Inventory(), store.Reservations(), store.Movements(),
			store.AuditLogs(), o.catalog,
			usecase.InventoryConfig{StrictCatalog: o.strictCatalog}, logger),
		reservations: usecase.NewReservationUsecase(coord, store.Reservations(), usecase.ReservationConfig{
			DefaultTTL: 15 * time.Minute,
			MaxTTL:     time.Hour,
		}),
		sweeper: usecase.NewExpirationSweeper(store.Reservations(), coord, clock, logger, usecase.SweeperConfig{
			Interval:  10 * time.Millisecond,
			BatchSize: 100,
		}),
	}
	t.Cleanup(notifier.Wait)
	return h
}

var keyA = model.StockKey{ProductID: "sku-1", WarehouseID: "wh-tokyo"}

// 入荷して在庫を作る
func (h *harness) receive(t *testing.T, key model.StockKey, qty int64) model.InventoryRecord {
	t.Helper()
	res, err := h.coord.AdjustOnHand(context.Background(), key, usecase.AdjustInput{
		Delta:  qty,
		Type:   model.MovementInbound,
		Reason: "initial receipt",
		Actor:  "tester",
	})
	require.NoError(t, err)
	return res.Record
}

func (h *harness) record(t *testing.T, key model.StockKey) model.InventoryRecord {
	t.Helper()
	rec, err := h.store.Inventory().FindByKey(context.Background(), key)
	require.NoError(t, err)
	return rec
}

func (h *harness) ledger(t *testing.T, key model.StockKey) []model.MovementEntry {
	t.Helper()
	items, err := h.store.Movements().List(context.Background(), repo.MovementQuery{Key: key})
	require.NoError(t, err)
	return items
}

// 履歴を再生した結果が現在値と一致すること
func assertLedgerMatches(t *testing.T, h *harness, key model.StockKey) {
	t.Helper()
	rec := h.record(t, key)

	var onHand, reserved int64
	for _, e := range h.ledger(t, key) {
		onHand, reserved = model.ApplyMovement(onHand, reserved, e)
		assert.Equal(t, onHand, e.ResultingOnHand, "entry %d", e.Sequence)
		assert.Equal(t, reserved, e.ResultingReserved, "entry %d", e.Sequence)
	}
	assert.Equal(t, rec.OnHand, onHand)
	assert.Equal(t, rec.Reserved, reserved)
	assert.Equal(t, rec.OnHand, rec.Available()+rec.Reserved)

	pending, err := h.store.Reservations().SumPending(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, rec.Reserved, pending)
}

func assertErrContains(t *testing.T, err error, wantSubstr string) {
	t.Helper()
	if assert.Error(t, err) {
		assert.True(t, strings.Contains(err.Error(), wantSubstr), "err=%q want contains %q", err.Error(), wantSubstr)
	}
}
