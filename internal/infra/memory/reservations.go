package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"stockledger/internal/domain/model"
	repo "stockledger/internal/repository"
)

type txReservations struct{ t *tx }

func (r txReservations) FindByID(_ context.Context, id string) (model.Reservation, error) {
	if res, ok := r.t.reservations[id]; ok {
		return cloneReservation(res), nil
	}
	if res, ok := r.t.s.reservations[id]; ok {
		return cloneReservation(res), nil
	}
	return model.Reservation{}, repo.ErrNotFound
}

func (r txReservations) Create(ctx context.Context, res model.Reservation) error {
	if _, err := r.FindByID(ctx, res.ID); err == nil {
		return fmt.Errorf("reservation %s already exists", res.ID)
	}
	r.t.reservations[res.ID] = cloneReservation(res)
	return nil
}

func (r txReservations) ResolvePending(ctx context.Context, id string, status model.ReservationStatus, at time.Time) error {
	res, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if res.Status != model.ReservationStatusPending {
		return repo.ErrVersionConflict
	}
	res.Status = status
	res.ResolvedAt = &at
	r.t.reservations[id] = res
	return nil
}

func (r txReservations) ListDue(_ context.Context, now time.Time, limit int) ([]model.Reservation, error) {
	items := make([]model.Reservation, 0)
	for _, res := range r.all() {
		if res.Status == model.ReservationStatusPending && !res.ExpiresAt.After(now) {
			items = append(items, res)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].ExpiresAt.Equal(items[j].ExpiresAt) {
			return items[i].ID < items[j].ID
		}
		return items[i].ExpiresAt.Before(items[j].ExpiresAt)
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (r txReservations) SumPending(_ context.Context, key model.StockKey) (int64, error) {
	var total int64
	for _, res := range r.all() {
		if res.Key() == key && res.Status == model.ReservationStatusPending {
			total += res.Quantity
		}
	}
	return total, nil
}

// 反映済み + このTxの変更
func (r txReservations) all() map[string]model.Reservation {
	out := make(map[string]model.Reservation, len(r.t.s.reservations)+len(r.t.reservations))
	for id, res := range r.t.s.reservations {
		out[id] = cloneReservation(res)
	}
	for id, res := range r.t.reservations {
		out[id] = cloneReservation(res)
	}
	return out
}

type reservationView struct{ s *Store }

func (v reservationView) FindByID(ctx context.Context, id string) (model.Reservation, error) {
	var res model.Reservation
	err := v.s.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		res, err = r.Reservations().FindByID(ctx, id)
		return err
	})
	return res, err
}

func (v reservationView) Create(ctx context.Context, res model.Reservation) error {
	return v.s.WithinTx(ctx, func(r repo.TxRepos) error {
		return r.Reservations().Create(ctx, res)
	})
}

func (v reservationView) ResolvePending(ctx context.Context, id string, status model.ReservationStatus, at time.Time) error {
	return v.s.WithinTx(ctx, func(r repo.TxRepos) error {
		return r.Reservations().ResolvePending(ctx, id, status, at)
	})
}

func (v reservationView) ListDue(ctx context.Context, now time.Time, limit int) ([]model.Reservation, error) {
	var items []model.Reservation
	err := v.s.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		items, err = r.Reservations().ListDue(ctx, now, limit)
		return err
	})
	return items, err
}

func (v reservationView) SumPending(ctx context.Context, key model.StockKey) (int64, error) {
	var total int64
	err := v.s.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		total, err = r.Reservations().SumPending(ctx, key)
		return err
	})
	return total, err
}
