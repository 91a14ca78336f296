package usecase_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"stockledger/internal/domain/model"
	"stockledger/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpirationSweeper_SweepOnce_ReleasesExpired(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.receive(t, keyA, 10)

	short := hold(t, h, keyA, 3, time.Second)
	long := hold(t, h, keyA, 2, time.Hour)
	assert.Equal(t, int64(5), h.record(t, keyA).Available())

	res, err := h.sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, usecase.SweepResult{}, res)

	h.clock.Advance(time.Second)
	res, err = h.sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, usecase.SweepResult{Scanned: 1, Expired: 1}, res)

	assert.Equal(t, int64(8), h.record(t, keyA).Available())

	got, err := h.reservations.Get(ctx, short.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationStatusExpired, got.Status)
	require.NotNil(t, got.ResolvedAt)

	got, err = h.reservations.Get(ctx, long.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationStatusPending, got.Status)

	ledger := h.ledger(t, keyA)
	last := ledger[len(ledger)-1]
	assert.Equal(t, model.MovementReservationRelease, last.Type)
	assert.Equal(t, short.ID, last.Reference)
	assertLedgerMatches(t, h, keyA)
}

func TestExpirationSweeper_SweepOnce_RespectsBatchSize(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.receive(t, keyA, 500)

	for i := 0; i < 120; i++ {
		hold(t, h, keyA, 1, time.Second)
	}
	h.clock.Advance(time.Second)

	res, err := h.sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 100, res.Scanned)
	assert.Equal(t, 100, res.Expired)

	res, err = h.sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20, res.Expired)
	assert.Equal(t, int64(0), h.record(t, keyA).Reserved)
}

func TestExpirationSweeper_Run_ReturnsStockWithinInterval(t *testing.T) {
	h := newHarness(t)
	h.receive(t, keyA, 10)
	hold(t, h, keyA, 4, time.Second)
	h.clock.Advance(time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.sweeper.Run(ctx) }()

	assert.Eventually(t, func() bool {
		return h.record(t, keyA).Available() == 10
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestExpirationSweeper_ConfirmedBeforeSweepIsUntouched(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.receive(t, keyA, 10)
	r := hold(t, h, keyA, 4, time.Second)

	_, err := h.reservations.Confirm(ctx, r.ID, "checkout")
	require.NoError(t, err)

	h.clock.Advance(time.Minute)
	res, err := h.sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Scanned)
	assert.Equal(t, int64(6), h.record(t, keyA).OnHand)
}

// 複数インスタンスが同時に掃除しても1件は1回だけ解放される
func TestExpirationSweeper_ParallelSweepsReleaseOnce(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.receive(t, keyA, 50)

	ids := make([]string, 0, 20)
	for i := 0; i < 20; i++ {
		ids = append(ids, hold(t, h, keyA, 2, time.Second).ID)
	}
	h.clock.Advance(time.Second)

	const sweepers = 3
	results := make([]usecase.SweepResult, sweepers)
	var wg sync.WaitGroup
	for i := 0; i < sweepers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := h.sweeper.SweepOnce(ctx)
			assert.NoError(t, err)
			results[i] = res
		}()
	}
	wg.Wait()

	expired := 0
	for _, res := range results {
		assert.Zero(t, res.Failed)
		assert.Equal(t, res.Scanned, res.Expired+res.Skipped)
		expired += res.Expired
	}
	assert.Equal(t, len(ids), expired)

	for _, id := range ids {
		got, err := h.reservations.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, model.ReservationStatusExpired, got.Status)
	}

	//入荷1 + 引当20 + 解放20
	assert.Len(t, h.ledger(t, keyA), 41)
	assert.Equal(t, int64(50), h.record(t, keyA).Available())
	assertLedgerMatches(t, h, keyA)
}

// 期限切れの解放と利用者の確定 / 取消しが競合しても解放は1回だけ
func TestExpirationSweeper_ReleaseRacesClient(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.receive(t, keyA, 100)

	confirms := make([]model.Reservation, 0, 10)
	cancels := make([]model.Reservation, 0, 10)
	for i := 0; i < 10; i++ {
		confirms = append(confirms, hold(t, h, keyA, 1, time.Second))
		cancels = append(cancels, hold(t, h, keyA, 1, time.Second))
	}
	h.clock.Advance(time.Second)

	var wg sync.WaitGroup
	for i := range confirms {
		wg.Add(4)
		go func() {
			defer wg.Done()
			_, err := h.coord.Release(ctx, confirms[i].ID)
			if err != nil {
				assert.ErrorIs(t, err, usecase.ErrNotFound)
			}
		}()
		go func() {
			defer wg.Done()
			//期限を過ぎた予約は確定できない
			_, err := h.reservations.Confirm(ctx, confirms[i].ID, "checkout")
			if !errors.Is(err, usecase.ErrReservationExpired) {
				assert.ErrorIs(t, err, usecase.ErrNotFound)
			}
		}()
		go func() {
			defer wg.Done()
			_, err := h.coord.Release(ctx, cancels[i].ID)
			if err != nil {
				assert.ErrorIs(t, err, usecase.ErrReservationNotPending)
			}
		}()
		go func() {
			defer wg.Done()
			//EXPIRED済みなら何もせず成功
			_, err := h.reservations.Cancel(ctx, cancels[i].ID, "buyer")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	for _, r := range confirms {
		got, err := h.reservations.Get(ctx, r.ID)
		require.NoError(t, err)
		assert.Equal(t, model.ReservationStatusExpired, got.Status)
	}

	released := map[string]int{}
	for _, e := range h.ledger(t, keyA) {
		if e.Type == model.MovementReservationRelease || e.Type == model.MovementReservationConfirm {
			released[e.Reference]++
		}
	}
	for _, r := range append(confirms, cancels...) {
		assert.Equal(t, 1, released[r.ID], r.ID)
	}

	res, err := h.sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, usecase.SweepResult{}, res)

	assert.Equal(t, int64(100), h.record(t, keyA).Available())
	assertLedgerMatches(t, h, keyA)
}
