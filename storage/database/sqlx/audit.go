package sqlxrepos

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/edufam/edufam/core"
	"github.com/edufam/edufam/core/audit"
)

type auditRow struct {
	ID         string      `db:"id"`
	SchoolID   null.String `db:"school_id"`
	ActorID    null.String `db:"actor_id"`
	Action     string      `db:"action"`
	Resource   string      `db:"resource"`
	ResourceID string      `db:"resource_id"`
	Metadata   []byte      `db:"metadata"`
	IP         string      `db:"ip"`
	CreatedAt  time.Time   `db:"created_at"`
}

func toAuditRow(e audit.Entry) (auditRow, error) {
	meta := e.Metadata
	if meta == nil {
		meta = map[string]interface{}{}
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return auditRow{}, errors.Wrap(err, "marshalling audit metadata")
	}
	return auditRow{
		ID:         e.ID,
		SchoolID:   nullID(e.SchoolID),
		ActorID:    nullID(e.ActorID),
		Action:     e.Action,
		Resource:   e.Resource,
		ResourceID: e.ResourceID,
		Metadata:   b,
		IP:         e.IP,
		CreatedAt:  e.CreatedAt.UTC(),
	}, nil
}

func (row auditRow) entry() (audit.Entry, error) {
	e := audit.Entry{
		ID:         row.ID,
		SchoolID:   row.SchoolID.String,
		ActorID:    row.ActorID.String,
		Action:     row.Action,
		Resource:   row.Resource,
		ResourceID: row.ResourceID,
		Metadata:   map[string]interface{}{},
		IP:         row.IP,
		CreatedAt:  row.CreatedAt.UTC(),
	}
	if len(row.Metadata) > 0 {
		if err := json.Unmarshal(row.Metadata, &e.Metadata); err != nil {
			return audit.Entry{}, errors.Wrap(err, "unmarshalling audit metadata")
		}
	}
	return e, nil
}

type auditRepository struct{ repo }

var _ audit.Repository = (*auditRepository)(nil)

func NewAuditRepository(exec core.DBExecutor) *auditRepository {
	return &auditRepository{repo{exec: exec}}
}

func (r auditRepository) CreateEntry(ctx context.Context, entry audit.Entry, exec ...core.DBExecutor) (audit.Entry, error) {
	entry.ID = core.NewID()
	row, err := toAuditRow(entry)
	if err != nil {
		return audit.Entry{}, err
	}
	q := `INSERT INTO audit_logs (id, school_id, actor_id, action, resource, resource_id, metadata, ip, created_at)
		VALUES (:id, :school_id, :actor_id, :action, :resource, :resource_id, :metadata, :ip, :created_at)
		RETURNING *`
	var saved auditRow
	if err := r.namedGet(ctx, exec, &saved, q, row); err != nil {
		return audit.Entry{}, errors.Wrap(err, "inserting audit entry")
	}
	return saved.entry()
}

func (r auditRepository) QueryEntries(ctx context.Context, filter *audit.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]audit.Entry, error) {
	w := &where{}
	if filter != nil {
		w.eq("school_id", filter.SchoolID)
		w.eq("actor_id", filter.ActorID)
		w.eq("action", filter.Action)
		w.eq("resource", filter.Resource)
		w.eq("resource_id", filter.ResourceID)
		if !filter.From.IsZero() {
			w.add("created_at >= ?", filter.From.UTC())
		}
		if !filter.To.IsZero() {
			w.add("created_at <= ?", filter.To.UTC())
		}
	}
	var rows []auditRow
	q := "SELECT * FROM audit_logs" + w.String() + orderBy(ordering, []string{"action", "created_at"}, "created_at DESC")
	if err := r.selectAll(ctx, exec, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying audit entries")
	}
	entries := make([]audit.Entry, 0, len(rows))
	for _, row := range rows {
		e, err := row.entry()
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}
