package server

import (
	"stockledger/internal/config"
	"stockledger/internal/handler"

	"github.com/labstack/echo/v4"
)

type Handlers struct {
	Home        *handler.HomeHandler
	Inventory   *handler.InventoryHandler
	Reservation *handler.ReservationHandler
}

func RegisterRoutes(e *echo.Echo, cfg config.Config, h Handlers) {
	h.Home.RegisterRoutes(e)
	h.Inventory.RegisterRoutes(e, cfg)
	h.Reservation.RegisterRoutes(e, cfg)
}
