package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"stockledger/internal/domain/model"
	repo "stockledger/internal/repository"

	"golang.org/x/sync/errgroup"
)

type ReservationConfig struct {
	DefaultTTL time.Duration
	MaxTTL     time.Duration
	// 一括確定の同時実行数
	BatchConcurrency int
}

type ReservationUsecase struct {
	coordinator  *StockCoordinator
	reservations repo.ReservationRepository
	cfg          ReservationConfig
}

// DI
func NewReservationUsecase(coordinator *StockCoordinator, reservations repo.ReservationRepository, cfg ReservationConfig) *ReservationUsecase {
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = 15 * time.Minute
	}
	if cfg.MaxTTL <= 0 {
		cfg.MaxTTL = 24 * time.Hour
	}
	if cfg.BatchConcurrency <= 0 {
		cfg.BatchConcurrency = 8
	}
	return &ReservationUsecase{
		coordinator:  coordinator,
		reservations: reservations,
		cfg:          cfg,
	}
}

type CreateReservationInput struct {
	ProductID   string
	WarehouseID string
	Quantity    int64
	OrderRef    string
	// 0ならデフォルト
	TTL   time.Duration
	Actor string
}

type BatchItemResult struct {
	Reservation *model.Reservation `json:"reservation,omitempty"`
	Err         error              `json:"-"`
}

// 在庫を引き当ててPENDING予約を作る
func (u *ReservationUsecase) Create(ctx context.Context, in CreateReservationInput) (model.Reservation, error) {
	ttl := in.TTL
	if ttl == 0 {
		ttl = u.cfg.DefaultTTL
	}
	if ttl < 0 || ttl > u.cfg.MaxTTL {
		return model.Reservation{}, fmt.Errorf("%w: ttl must be between 1s and %s", ErrInvalidInput, u.cfg.MaxTTL)
	}

	key := model.StockKey{
		ProductID:   strings.TrimSpace(in.ProductID),
		WarehouseID: strings.TrimSpace(in.WarehouseID),
	}
	res, err := u.coordinator.Hold(ctx, key, HoldInput{
		Quantity: in.Quantity,
		OrderRef: in.OrderRef,
		TTL:      ttl,
		Actor:    in.Actor,
	})
	if err != nil {
		return model.Reservation{}, err
	}
	return *res.Reservation, nil
}

// 何度呼んでも同じ結果（CONFIRMED済みなら成功）
func (u *ReservationUsecase) Confirm(ctx context.Context, id string, actor string) (model.Reservation, error) {
	res, err := u.coordinator.Confirm(ctx, id, actor)
	if err != nil {
		return model.Reservation{}, err
	}
	return *res.Reservation, nil
}

// 何度呼んでも同じ結果（CANCELLED / EXPIRED済みなら成功）
func (u *ReservationUsecase) Cancel(ctx context.Context, id string, actor string) (model.Reservation, error) {
	res, err := u.coordinator.Cancel(ctx, id, actor)
	if err != nil {
		return model.Reservation{}, err
	}
	return *res.Reservation, nil
}

func (u *ReservationUsecase) Get(ctx context.Context, id string) (model.Reservation, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return model.Reservation{}, fmt.Errorf("%w: reservation id required", ErrInvalidInput)
	}
	r, err := u.reservations.FindByID(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Reservation{}, fmt.Errorf("%w: reservation %s", ErrNotFound, id)
	}
	if err != nil {
		return model.Reservation{}, classify(err)
	}
	return r, nil
}

// IDごとに独立して確定する。1件の失敗は他に影響しない。
// 重複IDは1回だけ処理する。
func (u *ReservationUsecase) ConfirmBatch(ctx context.Context, ids []string, actor string) (map[string]BatchItemResult, error) {
	uniq := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		uniq = append(uniq, id)
	}
	if len(uniq) == 0 {
		return nil, fmt.Errorf("%w: no reservation ids", ErrInvalidInput)
	}

	results := make([]BatchItemResult, len(uniq))

	var g errgroup.Group
	g.SetLimit(u.cfg.BatchConcurrency)
	for i, id := range uniq {
		g.Go(func() error {
			r, err := u.Confirm(ctx, id, actor)
			if err != nil {
				results[i] = BatchItemResult{Err: err}
				return nil
			}
			results[i] = BatchItemResult{Reservation: &r}
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string]BatchItemResult, len(uniq))
	for i, id := range uniq {
		out[id] = results[i]
	}
	return out, nil
}
