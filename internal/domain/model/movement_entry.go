package model

import "time"

type MovementType string

const (
	MovementInbound            MovementType = "INBOUND"
	MovementOutbound           MovementType = "OUTBOUND"
	MovementAdjustment         MovementType = "ADJUSTMENT"
	MovementReservationHold    MovementType = "RESERVATION_HOLD"
	MovementReservationRelease MovementType = "RESERVATION_RELEASE"
	MovementReservationConfirm MovementType = "RESERVATION_CONFIRM"
)

func (t MovementType) Valid() bool {
	switch t {
	case MovementInbound, MovementOutbound, MovementAdjustment,
		MovementReservationHold, MovementReservationRelease, MovementReservationConfirm:
		return true
	}
	return false
}

// 在庫変動の履歴（追記のみ、更新・削除しない）
type MovementEntry struct {
	ID string `gorm:"primaryKey;type:varchar(36)" json:"id"`

	//全体で単調増加。並び順はこれで決まる
	Sequence int64 `gorm:"autoIncrement;uniqueIndex;not null" json:"sequence"`

	ProductID   string       `gorm:"type:varchar(64);not null;index:idx_movements_key_seq,priority:1;uniqueIndex:idx_movements_key_version,priority:1" json:"product_id"`
	WarehouseID string       `gorm:"type:varchar(64);not null;index:idx_movements_key_seq,priority:2;uniqueIndex:idx_movements_key_version,priority:2" json:"warehouse_id"`
	Type        MovementType `gorm:"type:varchar(32);not null" json:"type"`

	QuantityDelta     int64 `gorm:"not null" json:"quantity_delta"`
	ResultingOnHand   int64 `gorm:"not null" json:"resulting_on_hand"`
	ResultingReserved int64 `gorm:"not null" json:"resulting_reserved"`

	//このエントリで作られたレコードのversion（キーごとに一意）
	RecordVersion int64 `gorm:"not null;uniqueIndex:idx_movements_key_version,priority:3" json:"record_version"`

	//予約ID / 注文ID / 調整理由
	Reference string    `gorm:"type:varchar(255);not null" json:"reference"`
	Actor     string    `gorm:"type:varchar(255);not null" json:"actor"`
	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}

// 1件ぶん在庫を再生する
func ApplyMovement(onHand, reserved int64, e MovementEntry) (int64, int64) {
	switch e.Type {
	case MovementInbound, MovementOutbound, MovementAdjustment:
		onHand += e.QuantityDelta
	case MovementReservationHold, MovementReservationRelease:
		reserved += e.QuantityDelta
	case MovementReservationConfirm:
		onHand += e.QuantityDelta
		reserved += e.QuantityDelta
	}
	return onHand, reserved
}
