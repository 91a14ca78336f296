package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"stockledger/internal/domain/model"
	repo "stockledger/internal/repository"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	ActorSystem  = "system"
	ActorSweeper = "system:sweeper"
)

type CoordinatorConfig struct {
	// 競合時の最大試行回数（1回目を含む）
	MaxAttempts int
	// n回目の失敗後に n*RetryBackoff 待つ
	RetryBackoff time.Duration
}

// 在庫を変える操作はすべてここを通る。
// キーごとに直列化し、レコード更新と履歴1件を同じTxで書く。
type StockCoordinator struct {
	tx           repo.TransactionManager
	reservations repo.ReservationRepository
	notifier     *LowStockNotifier
	clock        Clock
	ids          IDGenerator
	logger       *zap.Logger
	tracer       trace.Tracer
	locks        *keyLock
	cfg          CoordinatorConfig
}

// DI
func NewStockCoordinator(
	tx repo.TransactionManager,
	reservations repo.ReservationRepository,
	notifier *LowStockNotifier,
	clock Clock,
	ids IDGenerator,
	logger *zap.Logger,
	cfg CoordinatorConfig,
) *StockCoordinator {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	return &StockCoordinator{
		tx:           tx,
		reservations: reservations,
		notifier:     notifier,
		clock:        clock,
		ids:          ids,
		logger:       logger,
		tracer:       otel.Tracer("stockledger/usecase"),
		locks:        newKeyLock(),
		cfg:          cfg,
	}
}

type AdjustInput struct {
	Delta  int64
	Type   model.MovementType // INBOUND / OUTBOUND / ADJUSTMENT（空ならADJUSTMENT）
	Reason string
	Actor  string
}

type HoldInput struct {
	Quantity int64
	OrderRef string
	TTL      time.Duration
	Actor    string
}

type ThresholdInput struct {
	Min   int64
	Max   *int64
	Actor string
}

// Applied=false は冪等な再実行（何も書いていない）
type MutationResult struct {
	Previous    model.InventoryRecord
	Record      model.InventoryRecord
	Reservation *model.Reservation
	Movement    *model.MovementEntry
	Applied     bool
}

type mutationPlan struct {
	next        model.InventoryRecord
	movement    *model.MovementEntry
	createRes   *model.Reservation
	resolveRes  *model.Reservation
	audit       *model.AuditLog
	reservation *model.Reservation
	noop        bool
}

type planFunc func(ctx context.Context, r repo.TxRepos, cur model.InventoryRecord, exists bool, now time.Time) (mutationPlan, error)

// on_handの増減（入荷 / 出荷 / 棚卸し調整）
func (c *StockCoordinator) AdjustOnHand(ctx context.Context, key model.StockKey, in AdjustInput) (MutationResult, error) {
	if in.Type == "" {
		in.Type = model.MovementAdjustment
	}
	in.Reason = strings.TrimSpace(in.Reason)
	in.Actor = actorOrSystem(in.Actor)

	if err := validateAdjust(in); err != nil {
		return MutationResult{}, err
	}

	return c.apply(ctx, "adjust", key, func(_ context.Context, _ repo.TxRepos, cur model.InventoryRecord, _ bool, _ time.Time) (mutationPlan, error) {
		next := cur
		next.OnHand = cur.OnHand + in.Delta
		if next.OnHand < 0 {
			return mutationPlan{}, fmt.Errorf("%w: on_hand %d %+d would be negative", ErrInvalidQuantity, cur.OnHand, in.Delta)
		}
		if next.OnHand < cur.Reserved {
			return mutationPlan{}, fmt.Errorf("%w: on_hand %d would drop below reserved %d", ErrInvalidQuantity, next.OnHand, cur.Reserved)
		}

		return mutationPlan{
			next: next,
			movement: &model.MovementEntry{
				Type:          in.Type,
				QuantityDelta: in.Delta,
				Reference:     in.Reason,
				Actor:         in.Actor,
			},
		}, nil
	})
}

func validateAdjust(in AdjustInput) error {
	if in.Delta == 0 {
		return fmt.Errorf("%w: delta must not be 0", ErrInvalidQuantity)
	}
	switch in.Type {
	case model.MovementInbound:
		if in.Delta < 0 {
			return fmt.Errorf("%w: inbound delta must be positive", ErrInvalidQuantity)
		}
	case model.MovementOutbound:
		if in.Delta > 0 {
			return fmt.Errorf("%w: outbound delta must be negative", ErrInvalidQuantity)
		}
	case model.MovementAdjustment:
	default:
		return fmt.Errorf("%w: type %q cannot be used for adjustments", ErrInvalidInput, in.Type)
	}
	if in.Reason == "" {
		return fmt.Errorf("%w: reason required", ErrInvalidInput)
	}
	return nil
}

// availableから引き当ててPENDING予約を作る
func (c *StockCoordinator) Hold(ctx context.Context, key model.StockKey, in HoldInput) (MutationResult, error) {
	if in.Quantity <= 0 {
		return MutationResult{}, fmt.Errorf("%w: quantity must be positive", ErrInvalidQuantity)
	}
	if in.TTL <= 0 {
		return MutationResult{}, fmt.Errorf("%w: ttl must be positive", ErrInvalidInput)
	}
	in.OrderRef = strings.TrimSpace(in.OrderRef)
	if in.OrderRef == "" {
		return MutationResult{}, fmt.Errorf("%w: order reference required", ErrInvalidInput)
	}
	in.Actor = actorOrSystem(in.Actor)

	return c.apply(ctx, "hold", key, func(_ context.Context, _ repo.TxRepos, cur model.InventoryRecord, exists bool, now time.Time) (mutationPlan, error) {
		if !exists {
			return mutationPlan{}, fmt.Errorf("%w: no inventory for %s", ErrNotFound, key)
		}
		if in.Quantity > cur.Available() {
			return mutationPlan{}, fmt.Errorf("%w: requested %d, available %d", ErrInsufficientStock, in.Quantity, cur.Available())
		}

		res := model.Reservation{
			ID:          c.ids.NewID(),
			ProductID:   key.ProductID,
			WarehouseID: key.WarehouseID,
			Quantity:    in.Quantity,
			OrderRef:    in.OrderRef,
			Status:      model.ReservationStatusPending,
			CreatedAt:   now,
			ExpiresAt:   now.Add(in.TTL),
		}

		next := cur
		next.Reserved += in.Quantity

		return mutationPlan{
			next: next,
			movement: &model.MovementEntry{
				Type:          model.MovementReservationHold,
				QuantityDelta: in.Quantity,
				Reference:     res.ID,
				Actor:         in.Actor,
			},
			createRes:   &res,
			reservation: &res,
		}, nil
	})
}

// 予約を確定（reservedとon_handの両方から消える）
func (c *StockCoordinator) Confirm(ctx context.Context, reservationID string, actor string) (MutationResult, error) {
	return c.resolve(ctx, "confirm", reservationID, model.ReservationStatusConfirmed, actorOrSystem(actor))
}

// 利用者による取り消し
func (c *StockCoordinator) Cancel(ctx context.Context, reservationID string, actor string) (MutationResult, error) {
	return c.resolve(ctx, "cancel", reservationID, model.ReservationStatusCancelled, actorOrSystem(actor))
}

// 期限切れの解放（sweeperから呼ぶ）
func (c *StockCoordinator) Release(ctx context.Context, reservationID string) (MutationResult, error) {
	return c.resolve(ctx, "release", reservationID, model.ReservationStatusExpired, ActorSweeper)
}

func (c *StockCoordinator) resolve(ctx context.Context, op string, id string, target model.ReservationStatus, actor string) (MutationResult, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return MutationResult{}, fmt.Errorf("%w: reservation id required", ErrInvalidInput)
	}

	//キーを知るために先に読む（ロックの外）
	found, err := c.reservations.FindByID(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return MutationResult{}, fmt.Errorf("%w: reservation %s", ErrNotFound, id)
	}
	if err != nil {
		return MutationResult{}, classify(err)
	}

	return c.apply(ctx, op, found.Key(), func(ctx context.Context, r repo.TxRepos, cur model.InventoryRecord, exists bool, now time.Time) (mutationPlan, error) {
		res, err := r.Reservations().FindByID(ctx, id)
		if errors.Is(err, repo.ErrNotFound) {
			return mutationPlan{}, fmt.Errorf("%w: reservation %s", ErrNotFound, id)
		}
		if err != nil {
			return mutationPlan{}, err
		}

		if res.Status.Terminal() {
			if sameOutcome(target, res.Status) {
				return mutationPlan{noop: true, reservation: &res}, nil
			}
			return mutationPlan{}, notPending(id, res.Status)
		}

		switch target {
		case model.ReservationStatusConfirmed:
			if res.ExpiredAt(now) {
				return mutationPlan{}, fmt.Errorf("%w: reservation %s expired at %s", ErrReservationExpired, id, res.ExpiresAt.Format(time.RFC3339))
			}
		case model.ReservationStatusExpired:
			if !res.ExpiredAt(now) {
				return mutationPlan{}, fmt.Errorf("%w: reservation %s expires at %s", ErrReservationNotDue, id, res.ExpiresAt.Format(time.RFC3339))
			}
		}
		if !exists {
			return mutationPlan{}, fmt.Errorf("inventory record %s missing for reservation %s", res.Key(), id)
		}

		next := cur
		next.Reserved -= res.Quantity
		mv := &model.MovementEntry{
			Type:          model.MovementReservationRelease,
			QuantityDelta: -res.Quantity,
			Reference:     res.ID,
			Actor:         actor,
		}
		if target == model.ReservationStatusConfirmed {
			next.OnHand -= res.Quantity
			mv.Type = model.MovementReservationConfirm
		}

		resolved := res
		resolved.Status = target
		resolved.ResolvedAt = &now

		return mutationPlan{
			next:        next,
			movement:    mv,
			resolveRes:  &resolved,
			reservation: &resolved,
		}, nil
	})
}

// PENDINGの予約が無いという意味でErrNotFoundとしても扱える
func notPending(id string, status model.ReservationStatus) error {
	return fmt.Errorf("%w: %w: reservation %s is %s", ErrNotFound, ErrReservationNotPending, id, status)
}

// 同じ結果になる再実行は成功扱い。EXPIREDへのCancelも解放済みなので同じ
func sameOutcome(target, current model.ReservationStatus) bool {
	if target == current {
		return true
	}
	return target == model.ReservationStatusCancelled && current == model.ReservationStatusExpired
}

// しきい値の変更。数量は変わらないので履歴ではなく監査ログに残す
func (c *StockCoordinator) SetThresholds(ctx context.Context, key model.StockKey, in ThresholdInput) (MutationResult, error) {
	if in.Min < 0 {
		return MutationResult{}, fmt.Errorf("%w: min_threshold must be >= 0", ErrInvalidInput)
	}
	if in.Max != nil && *in.Max < in.Min {
		return MutationResult{}, fmt.Errorf("%w: max_threshold must be >= min_threshold", ErrInvalidInput)
	}
	in.Actor = actorOrSystem(in.Actor)

	return c.apply(ctx, "thresholds", key, func(_ context.Context, _ repo.TxRepos, cur model.InventoryRecord, exists bool, now time.Time) (mutationPlan, error) {
		if !exists {
			return mutationPlan{}, fmt.Errorf("%w: no inventory for %s", ErrNotFound, key)
		}

		next := cur
		next.MinThreshold = in.Min
		next.MaxThreshold = in.Max

		return mutationPlan{
			next: next,
			audit: &model.AuditLog{
				Actor:        in.Actor,
				Action:       model.AuditActionUpdateThresholds,
				ResourceType: model.AuditResourceInventory,
				ResourceID:   key.String(),
				BeforeJSON:   thresholdsJSON(cur),
				AfterJSON:    thresholdsJSON(next),
				CreatedAt:    now,
			},
		}, nil
	})
}

func thresholdsJSON(rec model.InventoryRecord) string {
	b, _ := json.Marshal(struct {
		Min int64  `json:"min_threshold"`
		Max *int64 `json:"max_threshold"`
	}{rec.MinThreshold, rec.MaxThreshold})
	return string(b)
}

func (c *StockCoordinator) apply(ctx context.Context, op string, key model.StockKey, plan planFunc) (MutationResult, error) {
	if strings.TrimSpace(key.ProductID) == "" || strings.TrimSpace(key.WarehouseID) == "" {
		return MutationResult{}, fmt.Errorf("%w: product_id and warehouse_id required", ErrInvalidInput)
	}

	ctx, span := c.tracer.Start(ctx, "stock."+op, trace.WithAttributes(
		attribute.String("inventory.product_id", key.ProductID),
		attribute.String("inventory.warehouse_id", key.WarehouseID),
	))
	defer span.End()

	release, err := c.locks.Acquire(ctx, key)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return MutationResult{}, err
	}
	defer release()

	for attempt := 1; ; attempt++ {
		res, err := c.attempt(ctx, key, plan)
		if err == nil {
			span.SetAttributes(
				attribute.Int("mutation.attempts", attempt),
				attribute.Bool("mutation.applied", res.Applied),
			)
			if res.Applied {
				c.notifier.Observe(res.Previous, res.Record)
			}
			return res, nil
		}

		if !errors.Is(err, repo.ErrVersionConflict) {
			err = classify(err)
			span.SetStatus(codes.Error, err.Error())
			if errors.Is(err, ErrTransient) {
				c.logger.Error("stock mutation failed",
					zap.String("op", op),
					zap.String("key", key.String()),
					zap.Error(err),
				)
			}
			return MutationResult{}, err
		}

		if attempt >= c.cfg.MaxAttempts {
			c.logger.Warn("stock mutation gave up after version conflicts",
				zap.String("op", op),
				zap.String("key", key.String()),
				zap.Int("attempts", attempt),
			)
			span.SetStatus(codes.Error, "conflict")
			return MutationResult{}, fmt.Errorf("%w: %s on %s after %d attempts", ErrConflict, op, key, attempt)
		}

		c.logger.Debug("version conflict, retrying",
			zap.String("op", op),
			zap.String("key", key.String()),
			zap.Int("attempt", attempt),
		)
		if err := sleepCtx(ctx, time.Duration(attempt)*c.cfg.RetryBackoff); err != nil {
			return MutationResult{}, err
		}
	}
}

// 1回分: 読む → 計画 → レコード(CAS) + 予約 + 履歴 を同じTxで書く
func (c *StockCoordinator) attempt(ctx context.Context, key model.StockKey, plan planFunc) (MutationResult, error) {
	now := c.clock.Now()

	var out MutationResult
	err := c.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		cur, err := r.Inventory().FindByKey(ctx, key)
		exists := true
		if errors.Is(err, repo.ErrNotFound) {
			cur, exists = model.NewInventoryRecord(key), false
		} else if err != nil {
			return err
		}

		p, err := plan(ctx, r, cur, exists, now)
		if err != nil {
			return err
		}
		if p.noop {
			out = MutationResult{Previous: cur, Record: cur, Reservation: p.reservation}
			return nil
		}

		next := p.next
		next.ProductID, next.WarehouseID = key.ProductID, key.WarehouseID
		next.Version = cur.Version + 1
		next.UpdatedAt = now
		if !exists {
			next.CreatedAt = now
		}
		if !next.Valid() {
			return fmt.Errorf("%w: on_hand %d reserved %d", ErrInvalidQuantity, next.OnHand, next.Reserved)
		}

		if err := r.Inventory().SaveIfVersion(ctx, next, cur.Version); err != nil {
			return err
		}
		if p.createRes != nil {
			if err := r.Reservations().Create(ctx, *p.createRes); err != nil {
				return err
			}
		}
		if p.resolveRes != nil {
			if err := r.Reservations().ResolvePending(ctx, p.resolveRes.ID, p.resolveRes.Status, now); err != nil {
				return err
			}
		}

		var mv *model.MovementEntry
		if p.movement != nil {
			e := *p.movement
			e.ID = c.ids.NewID()
			e.ProductID, e.WarehouseID = key.ProductID, key.WarehouseID
			e.ResultingOnHand = next.OnHand
			e.ResultingReserved = next.Reserved
			e.RecordVersion = next.Version
			e.CreatedAt = now
			if err := r.Movements().Append(ctx, &e); err != nil {
				return err
			}
			mv = &e
		}

		if p.audit != nil {
			if err := r.AuditLogs().Create(ctx, *p.audit); err != nil {
				return err
			}
		}

		out = MutationResult{
			Previous:    cur,
			Record:      next,
			Reservation: p.reservation,
			Movement:    mv,
			Applied:     true,
		}
		return nil
	})
	if err != nil {
		return MutationResult{}, err
	}
	return out, nil
}

// キーのロックを持ったままfnを実行（照合などの読み取り用）
func (c *StockCoordinator) withKey(ctx context.Context, key model.StockKey, fn func() error) error {
	release, err := c.locks.Acquire(ctx, key)
	if err != nil {
		return err
	}
	defer release()
	return fn()
}

func actorOrSystem(actor string) string {
	if a := strings.TrimSpace(actor); a != "" {
		return a
	}
	return ActorSystem
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
