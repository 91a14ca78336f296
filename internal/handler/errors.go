package handler

import (
	"context"
	"errors"
	"net/http"

	"stockledger/internal/usecase"

	"github.com/labstack/echo/v4"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

// 業務エラー → HTTPステータス
func statusOf(err error) int {
	switch {
	case errors.Is(err, usecase.ErrInvalidQuantity),
		errors.Is(err, usecase.ErrInvalidInput):
		return http.StatusBadRequest
	//NotPendingはErrNotFoundも満たすので先に見る
	case errors.Is(err, usecase.ErrReservationNotPending):
		return http.StatusConflict
	case errors.Is(err, usecase.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, usecase.ErrInsufficientStock),
		errors.Is(err, usecase.ErrConflict),
		errors.Is(err, usecase.ErrReservationNotDue):
		return http.StatusConflict
	case errors.Is(err, usecase.ErrReservationExpired):
		return http.StatusGone
	case errors.Is(err, usecase.ErrTransient),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}
	status := statusOf(err)
	switch status {
	case http.StatusServiceUnavailable:
		//中身は出さない
		return c.JSON(status, ErrorResponse{Error: "temporarily unavailable"})
	case http.StatusInternalServerError:
		return c.JSON(status, ErrorResponse{Error: "internal error"})
	}
	return c.JSON(status, ErrorResponse{Error: err.Error()})
}
