package model

import "time"

// 在庫が下限を下回ったときの通知
type LowStockAlert struct {
	ProductID   string    `json:"product_id"`
	WarehouseID string    `json:"warehouse_id"`
	Available   int64     `json:"available"`
	Threshold   int64     `json:"threshold"`
	DetectedAt  time.Time `json:"detected_at"`
}
