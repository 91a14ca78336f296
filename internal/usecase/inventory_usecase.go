package usecase

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"iter"
	"strconv"
	"strings"
	"time"

	"stockledger/internal/domain/model"
	repo "stockledger/internal/repository"

	"go.uber.org/zap"
)

const (
	defaultMovementPage = 100
	maxMovementPage     = 500

	defaultAuditPage = 50
	maxAuditPage     = 200
)

type InventoryUsecase struct {
	coordinator  *StockCoordinator
	inventory    repo.InventoryRepository
	reservations repo.ReservationRepository
	movements    repo.MovementRepository
	audits       repo.AuditLogRepository
	catalog      CatalogChecker
	cfg          InventoryConfig
	logger       *zap.Logger
}

type InventoryConfig struct {
	// trueならカタログに無い商品の新規入荷を拒否する
	StrictCatalog bool
}

// DI。catalogはnilでもよい
func NewInventoryUsecase(
	coordinator *StockCoordinator,
	inventory repo.InventoryRepository,
	reservations repo.ReservationRepository,
	movements repo.MovementRepository,
	audits repo.AuditLogRepository,
	catalog CatalogChecker,
	cfg InventoryConfig,
	logger *zap.Logger,
) *InventoryUsecase {
	return &InventoryUsecase{
		coordinator:  coordinator,
		inventory:    inventory,
		reservations: reservations,
		movements:    movements,
		audits:       audits,
		catalog:      catalog,
		cfg:          cfg,
		logger:       logger,
	}
}

type AdjustStockInput struct {
	ProductID   string
	WarehouseID string
	Delta       int64
	Type        model.MovementType
	Reason      string
	Actor       string
}

type MovementRange struct {
	FromSequence *int64
	ToSequence   *int64
	From         *time.Time
	To           *time.Time
}

type MovementPage struct {
	Items      []model.MovementEntry `json:"items"`
	NextCursor string                `json:"next_cursor,omitempty"`
}

type AuditPage struct {
	Items []model.AuditLog `json:"items"`
	// 次のページはこのIDより古いもの。0なら終わり
	NextBefore int64 `json:"next_before,omitempty"`
}

type ReconcileReport struct {
	Record           model.InventoryRecord `json:"record"`
	Entries          int                   `json:"entries"`
	ReplayedOnHand   int64                 `json:"replayed_on_hand"`
	ReplayedReserved int64                 `json:"replayed_reserved"`
	PendingReserved  int64                 `json:"pending_reserved"`
	Consistent       bool                  `json:"consistent"`
}

// 入荷・出荷・棚卸し調整
func (u *InventoryUsecase) AdjustStock(ctx context.Context, in AdjustStockInput) (MutationResult, error) {
	key := model.StockKey{
		ProductID:   strings.TrimSpace(in.ProductID),
		WarehouseID: strings.TrimSpace(in.WarehouseID),
	}
	if key.ProductID == "" || key.WarehouseID == "" {
		return MutationResult{}, fmt.Errorf("%w: product_id and warehouse_id required", ErrInvalidInput)
	}

	if in.Delta > 0 {
		if err := u.checkCatalog(ctx, key); err != nil {
			return MutationResult{}, err
		}
	}

	return u.coordinator.AdjustOnHand(ctx, key, AdjustInput{
		Delta:  in.Delta,
		Type:   in.Type,
		Reason: in.Reason,
		Actor:  in.Actor,
	})
}

// 新しいキーを作るときだけカタログを見る。
// 調べられなかったときは通す（在庫の受け入れを止めない）。
// カタログに無い商品はStrictCatalogのときだけ拒否し、それ以外は警告して通す
func (u *InventoryUsecase) checkCatalog(ctx context.Context, key model.StockKey) error {
	if u.catalog == nil {
		return nil
	}

	_, err := u.inventory.FindByKey(ctx, key)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return classify(err)
	}

	ok, err := u.catalog.ProductExists(ctx, key.ProductID)
	if err != nil {
		u.logger.Warn("catalog lookup failed, accepting stock",
			zap.String("product_id", key.ProductID),
			zap.Error(err),
		)
		return nil
	}
	if ok {
		return nil
	}
	if u.cfg.StrictCatalog {
		return fmt.Errorf("%w: product %s is not in the catalog", ErrNotFound, key.ProductID)
	}
	u.logger.Warn("product not in catalog, accepting stock",
		zap.String("product_id", key.ProductID),
		zap.String("warehouse_id", key.WarehouseID),
	)
	return nil
}

func (u *InventoryUsecase) GetInventory(ctx context.Context, key model.StockKey) (model.InventoryRecord, error) {
	if key.ProductID == "" || key.WarehouseID == "" {
		return model.InventoryRecord{}, fmt.Errorf("%w: product_id and warehouse_id required", ErrInvalidInput)
	}
	rec, err := u.inventory.FindByKey(ctx, key)
	if errors.Is(err, repo.ErrNotFound) {
		return model.InventoryRecord{}, fmt.Errorf("%w: no inventory for %s", ErrNotFound, key)
	}
	if err != nil {
		return model.InventoryRecord{}, classify(err)
	}
	return rec, nil
}

func (u *InventoryUsecase) SetThresholds(ctx context.Context, key model.StockKey, in ThresholdInput) (model.InventoryRecord, error) {
	res, err := u.coordinator.SetThresholds(ctx, key, in)
	if err != nil {
		return model.InventoryRecord{}, err
	}
	return res.Record, nil
}

// 1ページぶん。cursorは前ページのNextCursor（空なら先頭から）
func (u *InventoryUsecase) ListMovements(ctx context.Context, key model.StockKey, rng MovementRange, cursor string, limit int) (MovementPage, error) {
	if key.ProductID == "" || key.WarehouseID == "" {
		return MovementPage{}, fmt.Errorf("%w: product_id and warehouse_id required", ErrInvalidInput)
	}
	if limit <= 0 {
		limit = defaultMovementPage
	}
	if limit > maxMovementPage {
		limit = maxMovementPage
	}
	if rng.From != nil && rng.To != nil && rng.To.Before(*rng.From) {
		return MovementPage{}, fmt.Errorf("%w: to must not be before from", ErrInvalidInput)
	}

	after, err := decodeCursor(cursor)
	if err != nil {
		return MovementPage{}, err
	}

	items, err := u.movements.List(ctx, repo.MovementQuery{
		Key:           key,
		AfterSequence: after,
		FromSequence:  rng.FromSequence,
		ToSequence:    rng.ToSequence,
		From:          rng.From,
		To:            rng.To,
		Limit:         limit,
	})
	if err != nil {
		return MovementPage{}, classify(err)
	}

	page := MovementPage{Items: items}
	if len(items) == limit {
		page.NextCursor = encodeCursor(items[len(items)-1].Sequence)
	}
	return page, nil
}

// 範囲内の履歴を順に返す。ページングは内部でやる
func (u *InventoryUsecase) Movements(ctx context.Context, key model.StockKey, rng MovementRange) iter.Seq2[model.MovementEntry, error] {
	return func(yield func(model.MovementEntry, error) bool) {
		cursor := ""
		for {
			page, err := u.ListMovements(ctx, key, rng, cursor, maxMovementPage)
			if err != nil {
				yield(model.MovementEntry{}, err)
				return
			}
			for _, e := range page.Items {
				if !yield(e, nil) {
					return
				}
			}
			if page.NextCursor == "" {
				return
			}
			cursor = page.NextCursor
		}
	}
}

// キーに対する数量以外の変更履歴（新しい順）
func (u *InventoryUsecase) AuditTrail(ctx context.Context, key model.StockKey, beforeID int64, limit int) (AuditPage, error) {
	if key.ProductID == "" || key.WarehouseID == "" {
		return AuditPage{}, fmt.Errorf("%w: product_id and warehouse_id required", ErrInvalidInput)
	}
	if beforeID < 0 {
		return AuditPage{}, fmt.Errorf("%w: before must be >= 0", ErrInvalidInput)
	}
	if limit <= 0 {
		limit = defaultAuditPage
	}
	if limit > maxAuditPage {
		limit = maxAuditPage
	}

	items, err := u.audits.List(ctx, repo.AuditLogQuery{
		ResourceType: model.AuditResourceInventory,
		ResourceID:   key.String(),
		BeforeID:     beforeID,
		Limit:        limit,
	})
	if err != nil {
		return AuditPage{}, classify(err)
	}

	page := AuditPage{Items: items}
	if len(items) == limit {
		page.NextBefore = items[len(items)-1].ID
	}
	return page, nil
}

// 履歴を最初から再生して現在値と突き合わせる
func (u *InventoryUsecase) Reconcile(ctx context.Context, key model.StockKey) (ReconcileReport, error) {
	var report ReconcileReport
	err := u.coordinator.withKey(ctx, key, func() error {
		rec, err := u.GetInventory(ctx, key)
		if err != nil {
			return err
		}

		var onHand, reserved int64
		n := 0
		for e, err := range u.Movements(ctx, key, MovementRange{}) {
			if err != nil {
				return err
			}
			//読んでいる間に書かれた分は数えない
			if e.RecordVersion > rec.Version {
				break
			}
			onHand, reserved = model.ApplyMovement(onHand, reserved, e)
			n++
		}

		pending, err := u.reservations.SumPending(ctx, key)
		if err != nil {
			return classify(err)
		}

		report = ReconcileReport{
			Record:           rec,
			Entries:          n,
			ReplayedOnHand:   onHand,
			ReplayedReserved: reserved,
			PendingReserved:  pending,
			Consistent: onHand == rec.OnHand &&
				reserved == rec.Reserved &&
				pending == rec.Reserved,
		}
		return nil
	})
	if err != nil {
		return ReconcileReport{}, err
	}

	if !report.Consistent {
		u.logger.Error("inventory does not match ledger",
			zap.String("key", key.String()),
			zap.Int64("on_hand", report.Record.OnHand),
			zap.Int64("replayed_on_hand", report.ReplayedOnHand),
			zap.Int64("reserved", report.Record.Reserved),
			zap.Int64("replayed_reserved", report.ReplayedReserved),
			zap.Int64("pending_reserved", report.PendingReserved),
		)
	}
	return report, nil
}

func encodeCursor(seq int64) string {
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.FormatInt(seq, 10)))
}

func decodeCursor(cursor string) (int64, error) {
	if cursor == "" {
		return 0, nil
	}
	b, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return 0, fmt.Errorf("%w: bad cursor", ErrInvalidInput)
	}
	seq, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil || seq < 0 {
		return 0, fmt.Errorf("%w: bad cursor", ErrInvalidInput)
	}
	return seq, nil
}
