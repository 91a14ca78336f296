package model

import "time"

type ReservationStatus string

const (
	ReservationStatusPending   ReservationStatus = "PENDING"
	ReservationStatusConfirmed ReservationStatus = "CONFIRMED"
	ReservationStatusCancelled ReservationStatus = "CANCELLED"
	ReservationStatusExpired   ReservationStatus = "EXPIRED"
)

// PENDING以外は終端
func (s ReservationStatus) Terminal() bool {
	return s != ReservationStatusPending
}

// 期限付きの在庫引当
type Reservation struct {
	ID          string            `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ProductID   string            `gorm:"type:varchar(64);not null;index:idx_reservations_key" json:"product_id"`
	WarehouseID string            `gorm:"type:varchar(64);not null;index:idx_reservations_key" json:"warehouse_id"`
	Quantity    int64             `gorm:"not null" json:"quantity"`
	OrderRef    string            `gorm:"type:varchar(255);not null;index" json:"order_reference"`
	Status      ReservationStatus `gorm:"type:varchar(20);not null;index:idx_reservations_due,priority:1" json:"status"`
	CreatedAt   time.Time         `gorm:"not null" json:"created_at"`

	//PENDINGのときだけ意味がある
	ExpiresAt time.Time `gorm:"not null;index:idx_reservations_due,priority:2" json:"expires_at"`

	//PENDINGを抜けた時刻
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

func (r Reservation) Key() StockKey {
	return StockKey{ProductID: r.ProductID, WarehouseID: r.WarehouseID}
}

func (r Reservation) ExpiredAt(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}
