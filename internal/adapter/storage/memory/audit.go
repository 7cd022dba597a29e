package memory

import (
	"context"

	"wager-ledger/internal/core/domain"
)

// AuditRepo implements ports.AuditRepository.
type AuditRepo struct {
	s *Store
}

func (a *AuditRepo) Create(_ context.Context, log *domain.AuditLog) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()

	a.s.audit = append(a.s.audit, *log)
	return nil
}

// Entries returns a copy of the recorded audit log.
func (a *AuditRepo) Entries() []domain.AuditLog {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()

	return append([]domain.AuditLog(nil), a.s.audit...)
}
