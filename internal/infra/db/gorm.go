package db

import (
	"stockledger/internal/config"
	"stockledger/internal/domain/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect はDBに接続して *gorm.DB を返す。
func Connect(cfg config.Config) (*gorm.DB, error) {
	gcfg := &gorm.Config{TranslateError: true}
	if cfg.IsProduction() {
		gcfg.Logger = logger.Default.LogMode(logger.Warn)
	}
	return gorm.Open(postgres.Open(cfg.PostgresDSN()), gcfg)
}

// テーブル作成（inventory_records / reservations / movement_entries / audit_logs / products）
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.InventoryRecord{},
		&model.Reservation{},
		&model.MovementEntry{},
		&model.AuditLog{},
		&model.Product{},
	)
}
