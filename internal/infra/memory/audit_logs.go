package memory

import (
	"context"

	"stockledger/internal/domain/model"
	repo "stockledger/internal/repository"
)

type txAuditLogs struct{ t *tx }

func (r txAuditLogs) Create(_ context.Context, log model.AuditLog) error {
	log.ID = int64(len(r.t.s.auditLogs) + len(r.t.auditLogs) + 1)
	r.t.auditLogs = append(r.t.auditLogs, log)
	return nil
}

func (r txAuditLogs) List(_ context.Context, q repo.AuditLogQuery) ([]model.AuditLog, error) {
	all := append(append([]model.AuditLog{}, r.t.s.auditLogs...), r.t.auditLogs...)

	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	//新しい順
	out := make([]model.AuditLog, 0)
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		if matchAudit(all[i], q) {
			out = append(out, all[i])
		}
	}
	return out, nil
}

func matchAudit(l model.AuditLog, q repo.AuditLogQuery) bool {
	switch {
	case q.ResourceType != "" && l.ResourceType != q.ResourceType:
		return false
	case q.ResourceID != "" && l.ResourceID != q.ResourceID:
		return false
	case q.Actor != "" && l.Actor != q.Actor:
		return false
	case q.Action != "" && l.Action != q.Action:
		return false
	case q.BeforeID > 0 && l.ID >= q.BeforeID:
		return false
	}
	return true
}

type auditLogView struct{ s *Store }

func (v auditLogView) Create(ctx context.Context, log model.AuditLog) error {
	return v.s.WithinTx(ctx, func(r repo.TxRepos) error {
		return r.AuditLogs().Create(ctx, log)
	})
}

func (v auditLogView) List(ctx context.Context, q repo.AuditLogQuery) ([]model.AuditLog, error) {
	var logs []model.AuditLog
	err := v.s.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		logs, err = r.AuditLogs().List(ctx, q)
		return err
	})
	return logs, err
}
