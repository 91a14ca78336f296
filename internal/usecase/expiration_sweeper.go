package usecase

import (
	"context"
	"errors"
	"time"

	repo "stockledger/internal/repository"

	"go.uber.org/zap"
)

type SweeperConfig struct {
	Interval  time.Duration
	BatchSize int
}

type SweepResult struct {
	Scanned int
	Expired int
	Skipped int
	Failed  int
}

// 期限切れのPENDING予約を定期的にEXPIREDにして在庫を戻す。
// 解放はStockCoordinator経由なので、複数台で動かしても二重には戻らない。
type ExpirationSweeper struct {
	reservations repo.ReservationRepository
	coordinator  *StockCoordinator
	clock        Clock
	logger       *zap.Logger
	cfg          SweeperConfig
}

func NewExpirationSweeper(reservations repo.ReservationRepository, coordinator *StockCoordinator, clock Clock, logger *zap.Logger, cfg SweeperConfig) *ExpirationSweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &ExpirationSweeper{
		reservations: reservations,
		coordinator:  coordinator,
		clock:        clock,
		logger:       logger,
		cfg:          cfg,
	}
}

// ctxが終わるまで回る。取りこぼしたtickは捨てる
func (s *ExpirationSweeper) Run(ctx context.Context) error {
	s.logger.Info("expiration sweeper started",
		zap.Duration("interval", s.cfg.Interval),
		zap.Int("batch_size", s.cfg.BatchSize),
	)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("expiration sweeper stopped")
			return nil
		case <-ticker.C:
			res, err := s.SweepOnce(ctx)
			if err != nil {
				if ctx.Err() != nil {
					continue
				}
				//次の周期で拾う
				s.logger.Error("sweep cycle failed", zap.Error(err))
				continue
			}
			if res.Scanned > 0 {
				s.logger.Info("sweep cycle done",
					zap.Int("scanned", res.Scanned),
					zap.Int("expired", res.Expired),
					zap.Int("skipped", res.Skipped),
					zap.Int("failed", res.Failed),
				)
			}
		}
	}
}

// 1周期ぶん。期限の古い順に最大BatchSize件
func (s *ExpirationSweeper) SweepOnce(ctx context.Context) (SweepResult, error) {
	due, err := s.reservations.ListDue(ctx, s.clock.Now(), s.cfg.BatchSize)
	if err != nil {
		return SweepResult{}, classify(err)
	}

	res := SweepResult{Scanned: len(due)}
	for _, r := range due {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		out, err := s.coordinator.Release(ctx, r.ID)
		switch {
		case err == nil && out.Applied:
			res.Expired++
		case err == nil:
			res.Skipped++
		case errors.Is(err, ErrNotFound),
			errors.Is(err, ErrReservationNotDue):
			//別の経路で先に解決された（NotPendingもErrNotFoundに含まれる）
			res.Skipped++
		default:
			res.Failed++
			s.logger.Warn("release failed",
				zap.String("reservation_id", r.ID),
				zap.Error(err),
			)
		}
	}
	return res, nil
}
