package memory

import (
	"context"

	"stockledger/internal/domain/model"
	repo "stockledger/internal/repository"
)

type txInventory struct{ t *tx }

func (r txInventory) FindByKey(_ context.Context, key model.StockKey) (model.InventoryRecord, error) {
	if rec, ok := r.t.records[key]; ok {
		return cloneRecord(rec), nil
	}
	if rec, ok := r.t.s.records[key]; ok {
		return cloneRecord(rec), nil
	}
	return model.InventoryRecord{}, repo.ErrNotFound
}

func (r txInventory) SaveIfVersion(ctx context.Context, rec model.InventoryRecord, expectedVersion int64) error {
	cur, err := r.FindByKey(ctx, rec.Key())
	switch {
	case err == repo.ErrNotFound:
		if expectedVersion != 0 {
			return repo.ErrVersionConflict
		}
	case err != nil:
		return err
	default:
		//既にある（新規作成の競合 or versionずれ）
		if expectedVersion == 0 || cur.Version != expectedVersion {
			return repo.ErrVersionConflict
		}
	}

	r.t.records[rec.Key()] = cloneRecord(rec)
	return nil
}

type inventoryView struct{ s *Store }

func (v inventoryView) FindByKey(ctx context.Context, key model.StockKey) (model.InventoryRecord, error) {
	var rec model.InventoryRecord
	err := v.s.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		rec, err = r.Inventory().FindByKey(ctx, key)
		return err
	})
	return rec, err
}

func (v inventoryView) SaveIfVersion(ctx context.Context, rec model.InventoryRecord, expectedVersion int64) error {
	return v.s.WithinTx(ctx, func(r repo.TxRepos) error {
		return r.Inventory().SaveIfVersion(ctx, rec, expectedVersion)
	})
}
