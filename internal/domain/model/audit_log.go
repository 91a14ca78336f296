package model

import "time"

// 在庫数量以外の変更（しきい値など）
type AuditAction string

const (
	//しきい値を更新した操作。
	AuditActionUpdateThresholds AuditAction = "UPDATE_THRESHOLDS"
)

// 何に対する操作か
type AuditResourceType string

const (
	//在庫レコードに対する操作。
	AuditResourceInventory AuditResourceType = "inventory"
)

// 監査ログ。
// 「誰が」「何を」「どの対象に」「どう変えたか」を残す。
// 数量の変化は movement_entries に残るのでここには入れない。
type AuditLog struct {
	ID int64 `gorm:"primaryKey;autoIncrement" json:"id"`

	//操作した人（JWTのsub or system:xxx）
	Actor string `gorm:"type:varchar(255);not null;index" json:"actor"`

	Action       AuditAction       `gorm:"type:varchar(50);not null;index" json:"action"`
	ResourceType AuditResourceType `gorm:"type:varchar(50);not null;index" json:"resource_type"`

	//対象のキー（product@warehouse）
	ResourceID string `gorm:"type:varchar(255);not null;index" json:"resource_id"`

	//JSON文字列で保存する。
	BeforeJSON string `gorm:"type:text" json:"before_json"`
	AfterJSON  string `gorm:"type:text" json:"after_json"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}
