package usecase

import (
	"context"
	"errors"
	"fmt"
)

var (
	//400 数量が不正（0以下 / on_handがマイナスになる）。リトライしない
	ErrInvalidQuantity = errors.New("invalid quantity")
	//400 入力不足
	ErrInvalidInput = errors.New("invalid input")
	//409 在庫が足りない。呼び出し側で判断する
	ErrInsufficientStock = errors.New("insufficient stock")
	//409 楽観ロックの競合がリトライ上限を超えた
	ErrConflict = errors.New("conflict")
	//404
	ErrNotFound = errors.New("not found")
	//409 予約がPENDINGではない。常にErrNotFoundと一緒に包んで返す
	ErrReservationNotPending = errors.New("reservation is not pending")
	//410 期限切れ（まだ掃除されていない）
	ErrReservationExpired = errors.New("reservation expired")
	//期限前のReleaseは何もしない
	ErrReservationNotDue = errors.New("reservation not due")
	//503 永続化の失敗。部分的には反映されていない
	ErrTransient = errors.New("transient persistence error")
)

var domainErrors = []error{
	ErrInvalidQuantity,
	ErrInvalidInput,
	ErrInsufficientStock,
	ErrConflict,
	ErrNotFound,
	ErrReservationNotPending,
	ErrReservationExpired,
	ErrReservationNotDue,
	ErrTransient,
	context.Canceled,
	context.DeadlineExceeded,
}

// 業務エラー以外は一時的な永続化エラーとして包む
func classify(err error) error {
	if err == nil {
		return nil
	}
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", ErrTransient, err)
}
