package model

import "time"

// 在庫のキー（商品 × 倉庫）
type StockKey struct {
	ProductID   string `json:"product_id"`
	WarehouseID string `json:"warehouse_id"`
}

func (k StockKey) String() string {
	return k.ProductID + "@" + k.WarehouseID
}

// 在庫の現在値。変更は StockCoordinator 経由のみ。
// 0 <= Reserved <= OnHand を常に満たす。
type InventoryRecord struct {
	ProductID   string `gorm:"primaryKey;type:varchar(64)" json:"product_id"`
	WarehouseID string `gorm:"primaryKey;type:varchar(64)" json:"warehouse_id"`

	//倉庫にある数量
	OnHand int64 `gorm:"not null;default:0" json:"on_hand"`

	//引当済み（PENDING予約の合計）
	Reserved int64 `gorm:"not null;default:0" json:"reserved"`

	MinThreshold int64  `gorm:"not null;default:0" json:"min_threshold"`
	MaxThreshold *int64 `json:"max_threshold"`

	//楽観ロック用。書き込みごとに+1
	Version int64 `gorm:"not null;default:0" json:"version"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func NewInventoryRecord(key StockKey) InventoryRecord {
	return InventoryRecord{ProductID: key.ProductID, WarehouseID: key.WarehouseID}
}

func (r InventoryRecord) Key() StockKey {
	return StockKey{ProductID: r.ProductID, WarehouseID: r.WarehouseID}
}

// 新規の引当に使える数量
func (r InventoryRecord) Available() int64 {
	return r.OnHand - r.Reserved
}

func (r InventoryRecord) Valid() bool {
	return r.Reserved >= 0 && r.OnHand >= r.Reserved
}
