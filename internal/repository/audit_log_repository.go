package repository

import (
	"context"

	"stockledger/internal/domain/model"
)

// 監査ログの絞り込み。空の項目は条件にしない。
// 新しい順に返し、BeforeIDより古いものだけを対象にする（0なら最新から）。
type AuditLogQuery struct {
	ResourceType model.AuditResourceType
	ResourceID   string
	Actor        string
	Action       model.AuditAction
	BeforeID     int64
	Limit        int
}

type AuditLogRepository interface {
	Create(ctx context.Context, log model.AuditLog) error
	List(ctx context.Context, q AuditLogQuery) ([]model.AuditLog, error)
}
