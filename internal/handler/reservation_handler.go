package handler

import (
	"math"
	"net/http"
	"time"

	"stockledger/internal/config"
	"stockledger/internal/domain/model"
	"stockledger/internal/middleware"
	"stockledger/internal/usecase"

	"github.com/labstack/echo/v4"
)

type CreateReservationRequest struct {
	ProductID      string `json:"product_id"`
	WarehouseID    string `json:"warehouse_id"`
	Quantity       int64  `json:"quantity"`
	OrderReference string `json:"order_reference"`
	// 0 / 省略ならデフォルト
	TTLSeconds int64 `json:"ttl_seconds"`
}

// time.Durationに直してもあふれない上限
const maxTTLSeconds = int64(math.MaxInt64 / int64(time.Second))

type ConfirmBatchRequest struct {
	ReservationIDs []string `json:"reservation_ids"`
}

type BatchItemResponse struct {
	OK          bool               `json:"ok"`
	Reservation *model.Reservation `json:"reservation,omitempty"`
	Error       string             `json:"error,omitempty"`
	Status      int                `json:"status"`
}

type ConfirmBatchResponse struct {
	Results map[string]BatchItemResponse `json:"results"`
}

// /reservations
type ReservationHandler struct {
	uc *usecase.ReservationUsecase
}

// DI
func NewReservationHandler(uc *usecase.ReservationUsecase) *ReservationHandler {
	return &ReservationHandler{uc: uc}
}

func (h *ReservationHandler) RegisterRoutes(e *echo.Echo, cfg config.Config) {
	g := e.Group("/reservations")
	g.Use(middleware.AuthJWT(cfg))

	g.POST("", h.create)
	g.POST("/confirm-batch", h.confirmBatch)
	g.GET("/:id", h.get)
	g.POST("/:id/confirm", h.confirm)
	g.POST("/:id/cancel", h.cancel)
}

func (h *ReservationHandler) create(c echo.Context) error {
	var req CreateReservationRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if req.TTLSeconds < 0 || req.TTLSeconds > maxTTLSeconds {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid ttl_seconds"})
	}

	r, err := h.uc.Create(c.Request().Context(), usecase.CreateReservationInput{
		ProductID:   req.ProductID,
		WarehouseID: req.WarehouseID,
		Quantity:    req.Quantity,
		OrderRef:    req.OrderReference,
		TTL:         time.Duration(req.TTLSeconds) * time.Second,
		Actor:       middleware.Actor(c),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, r)
}

func (h *ReservationHandler) get(c echo.Context) error {
	r, err := h.uc.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *ReservationHandler) confirm(c echo.Context) error {
	r, err := h.uc.Confirm(c.Request().Context(), c.Param("id"), middleware.Actor(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *ReservationHandler) cancel(c echo.Context) error {
	r, err := h.uc.Cancel(c.Request().Context(), c.Param("id"), middleware.Actor(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, r)
}

// 1件ごとに成功/失敗を返す。全体としては常に200
func (h *ReservationHandler) confirmBatch(c echo.Context) error {
	var req ConfirmBatchRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	results, err := h.uc.ConfirmBatch(c.Request().Context(), req.ReservationIDs, middleware.Actor(c))
	if err != nil {
		return writeError(c, err)
	}

	out := ConfirmBatchResponse{Results: make(map[string]BatchItemResponse, len(results))}
	for id, r := range results {
		if r.Err != nil {
			status := statusOf(r.Err)
			msg := r.Err.Error()
			if status >= http.StatusInternalServerError {
				msg = "temporarily unavailable"
			}
			out.Results[id] = BatchItemResponse{Status: status, Error: msg}
			continue
		}
		out.Results[id] = BatchItemResponse{OK: true, Status: http.StatusOK, Reservation: r.Reservation}
	}
	return c.JSON(http.StatusOK, out)
}
