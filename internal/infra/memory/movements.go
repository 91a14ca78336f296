package memory

import (
	"context"

	"stockledger/internal/domain/model"
	repo "stockledger/internal/repository"
)

const maxMovementPage = 500

type txMovements struct{ t *tx }

func (r txMovements) Append(_ context.Context, e *model.MovementEntry) error {
	key := model.StockKey{ProductID: e.ProductID, WarehouseID: e.WarehouseID}
	for _, m := range r.all() {
		if m.ProductID == key.ProductID && m.WarehouseID == key.WarehouseID && m.RecordVersion == e.RecordVersion {
			return repo.ErrVersionConflict
		}
	}

	e.Sequence = int64(len(r.t.s.movements) + len(r.t.movements) + 1)
	r.t.movements = append(r.t.movements, *e)
	return nil
}

func (r txMovements) List(_ context.Context, q repo.MovementQuery) ([]model.MovementEntry, error) {
	limit := q.Limit
	if limit <= 0 || limit > maxMovementPage {
		limit = maxMovementPage
	}

	items := make([]model.MovementEntry, 0)
	for _, m := range r.all() {
		if len(items) >= limit {
			break
		}
		if m.ProductID != q.Key.ProductID || m.WarehouseID != q.Key.WarehouseID {
			continue
		}
		if m.Sequence <= q.AfterSequence {
			continue
		}
		if q.FromSequence != nil && m.Sequence < *q.FromSequence {
			continue
		}
		if q.ToSequence != nil && m.Sequence > *q.ToSequence {
			continue
		}
		if q.From != nil && m.CreatedAt.Before(*q.From) {
			continue
		}
		if q.To != nil && m.CreatedAt.After(*q.To) {
			continue
		}
		items = append(items, m)
	}
	return items, nil
}

// sequence順（反映済みのあとにこのTxの分）
func (r txMovements) all() []model.MovementEntry {
	out := make([]model.MovementEntry, 0, len(r.t.s.movements)+len(r.t.movements))
	out = append(out, r.t.s.movements...)
	return append(out, r.t.movements...)
}

type movementView struct{ s *Store }

func (v movementView) Append(ctx context.Context, e *model.MovementEntry) error {
	return v.s.WithinTx(ctx, func(r repo.TxRepos) error {
		return r.Movements().Append(ctx, e)
	})
}

func (v movementView) List(ctx context.Context, q repo.MovementQuery) ([]model.MovementEntry, error) {
	var items []model.MovementEntry
	err := v.s.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		items, err = r.Movements().List(ctx, q)
		return err
	})
	return items, err
}
