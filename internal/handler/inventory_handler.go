package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"stockledger/internal/config"
	"stockledger/internal/domain/model"
	"stockledger/internal/middleware"
	"stockledger/internal/usecase"

	"github.com/labstack/echo/v4"
)

// 在庫調整の入力
type AdjustmentRequest struct {
	Delta  int64  `json:"delta"`
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

type ThresholdsRequest struct {
	MinThreshold int64  `json:"min_threshold"`
	MaxThreshold *int64 `json:"max_threshold"`
}

type InventoryResponse struct {
	model.InventoryRecord
	Available int64 `json:"available"`
}

type AdjustmentResponse struct {
	Inventory InventoryResponse    `json:"inventory"`
	Movement  *model.MovementEntry `json:"movement"`
}

func toInventoryResponse(rec model.InventoryRecord) InventoryResponse {
	return InventoryResponse{InventoryRecord: rec, Available: rec.Available()}
}

// /inventory/:product_id/:warehouse_id
type InventoryHandler struct {
	uc *usecase.InventoryUsecase
}

// DI
func NewInventoryHandler(uc *usecase.InventoryUsecase) *InventoryHandler {
	return &InventoryHandler{uc: uc}
}

func (h *InventoryHandler) RegisterRoutes(e *echo.Echo, cfg config.Config) {
	g := e.Group("/inventory/:product_id/:warehouse_id")
	g.Use(middleware.AuthJWT(cfg))

	g.GET("", h.get)
	g.POST("/adjustments", h.adjust)
	g.GET("/movements", h.movements)

	//管理系はADMINだけ
	g.PUT("/thresholds", h.setThresholds, middleware.RequireRole(middleware.RoleAdmin))
	g.GET("/reconcile", h.reconcile, middleware.RequireRole(middleware.RoleAdmin))
	g.GET("/audit-logs", h.auditLogs, middleware.RequireRole(middleware.RoleAdmin))
}

func stockKey(c echo.Context) model.StockKey {
	return model.StockKey{
		ProductID:   strings.TrimSpace(c.Param("product_id")),
		WarehouseID: strings.TrimSpace(c.Param("warehouse_id")),
	}
}

func (h *InventoryHandler) get(c echo.Context) error {
	rec, err := h.uc.GetInventory(c.Request().Context(), stockKey(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toInventoryResponse(rec))
}

func (h *InventoryHandler) adjust(c echo.Context) error {
	var req AdjustmentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	key := stockKey(c)
	res, err := h.uc.AdjustStock(c.Request().Context(), usecase.AdjustStockInput{
		ProductID:   key.ProductID,
		WarehouseID: key.WarehouseID,
		Delta:       req.Delta,
		Type:        model.MovementType(strings.ToUpper(strings.TrimSpace(req.Type))),
		Reason:      req.Reason,
		Actor:       middleware.Actor(c),
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, AdjustmentResponse{
		Inventory: toInventoryResponse(res.Record),
		Movement:  res.Movement,
	})
}

func (h *InventoryHandler) setThresholds(c echo.Context) error {
	var req ThresholdsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	rec, err := h.uc.SetThresholds(c.Request().Context(), stockKey(c), usecase.ThresholdInput{
		Min:   req.MinThreshold,
		Max:   req.MaxThreshold,
		Actor: middleware.Actor(c),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toInventoryResponse(rec))
}

func (h *InventoryHandler) movements(c echo.Context) error {
	var rng usecase.MovementRange

	fromSeq, err := queryInt64(c, "from_sequence")
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid from_sequence"})
	}
	toSeq, err := queryInt64(c, "to_sequence")
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid to_sequence"})
	}
	from, err := queryTime(c, "from")
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid from"})
	}
	to, err := queryTime(c, "to")
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid to"})
	}
	rng.FromSequence, rng.ToSequence, rng.From, rng.To = fromSeq, toSeq, from, to

	// limit（default 100）
	limit := 0
	if v := c.QueryParam("limit"); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil || l < 0 {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
		}
		limit = l
	}

	page, err := h.uc.ListMovements(c.Request().Context(), stockKey(c), rng, c.QueryParam("cursor"), limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, page)
}

func (h *InventoryHandler) reconcile(c echo.Context) error {
	report, err := h.uc.Reconcile(c.Request().Context(), stockKey(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, report)
}

// ?before=<id>&limit=<n>
func (h *InventoryHandler) auditLogs(c echo.Context) error {
	before, err := queryInt64(c, "before")
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid before"})
	}
	var beforeID int64
	if before != nil {
		beforeID = *before
	}

	limit := 0
	if v := c.QueryParam("limit"); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil || l < 0 {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
		}
		limit = l
	}

	page, err := h.uc.AuditTrail(c.Request().Context(), stockKey(c), beforeID, limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, page)
}

func queryInt64(c echo.Context, name string) (*int64, error) {
	v := c.QueryParam(name)
	if v == "" {
		return nil, nil
	}
	x, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, err
	}
	return &x, nil
}

// RFC3339
func queryTime(c echo.Context, name string) (*time.Time, error) {
	v := c.QueryParam(name)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
