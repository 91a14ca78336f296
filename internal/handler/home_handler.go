package handler

import (
	"net/http"

	"stockledger/internal/config"

	"github.com/labstack/echo/v4"
)

type ServiceInfo struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description"`
	Environment string `json:"environment"`
}

// / と /version
type HomeHandler struct {
	info ServiceInfo
}

func NewHomeHandler(cfg config.Config) *HomeHandler {
	return &HomeHandler{info: ServiceInfo{
		Name:        cfg.ServiceName,
		Version:     cfg.ServiceVersion,
		Description: "stock reservation and movement ledger",
		Environment: cfg.GoEnv,
	}}
}

func (h *HomeHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/", h.home)
	e.GET("/version", h.version)
}

func (h *HomeHandler) home(c echo.Context) error {
	return c.JSON(http.StatusOK, h.info)
}

func (h *HomeHandler) version(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"version": h.info.Version})
}
