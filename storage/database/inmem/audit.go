package inmemdb

import (
	"context"
	"strings"

	"github.com/edufam/edufam/core"
	"github.com/edufam/edufam/core/audit"
)

var auditComparators = comparators[audit.Entry]{
	"action":     func(a, b audit.Entry) int { return strings.Compare(a.Action, b.Action) },
	"created_at": func(a, b audit.Entry) int { return cmpTime(a.CreatedAt, b.CreatedAt) },
}

type auditRepository struct {
	db *table[audit.Entry]
}

var _ audit.Repository = (*auditRepository)(nil)

func NewAuditRepository(db *DB) audit.Repository {
	return &auditRepository{db: db.audit}
}

func (repo *auditRepository) CreateEntry(_ context.Context, entry audit.Entry, _ ...core.DBExecutor) (audit.Entry, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	entry.ID = core.NewID()
	repo.db.insert(entry.ID, entry)
	return entry, nil
}

func (repo *auditRepository) QueryEntries(_ context.Context, filter *audit.QueryFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]audit.Entry, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	entries := repo.db.filter(func(e audit.Entry) bool {
		if filter == nil {
			return true
		}
		if !filter.From.IsZero() && e.CreatedAt.Before(filter.From) {
			return false
		}
		if !filter.To.IsZero() && e.CreatedAt.After(filter.To) {
			return false
		}
		return eq(filter.SchoolID, e.SchoolID) && eq(filter.ActorID, e.ActorID) && eq(filter.Action, e.Action) &&
			eq(filter.Resource, e.Resource) && eq(filter.ResourceID, e.ResourceID)
	})
	sortRows(entries, ordering, auditComparators, desc("created_at"))
	return entries, nil
}
