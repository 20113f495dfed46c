// Package sqlxrepos implements the repositories on PostgreSQL with sqlx.
package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/edufam/edufam/core"
)

const uniqueViolation = "23505"

// repo is embedded by every repository; exec is used unless the service hands over a transaction.
type repo struct {
	exec core.DBExecutor
}

func (r repo) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return r.exec
}

func (r repo) get(ctx context.Context, svcExec []core.DBExecutor, dest interface{}, query string, args ...interface{}) error {
	exe := r.getExec(svcExec)
	return sqlx.GetContext(ctx, exe, dest, exe.Rebind(query), args...)
}

func (r repo) selectAll(ctx context.Context, svcExec []core.DBExecutor, dest interface{}, query string, args ...interface{}) error {
	exe := r.getExec(svcExec)
	return sqlx.SelectContext(ctx, exe, dest, exe.Rebind(query), args...)
}

func (r repo) execute(ctx context.Context, svcExec []core.DBExecutor, query string, args ...interface{}) (int, error) {
	exe := r.getExec(svcExec)
	res, err := exe.ExecContext(ctx, exe.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// namedGet runs an INSERT/UPDATE ... RETURNING * with the named parameters of arg.
func (r repo) namedGet(ctx context.Context, svcExec []core.DBExecutor, dest interface{}, query string, arg interface{}) error {
	exe := r.getExec(svcExec)
	q, args, err := sqlx.Named(query, arg)
	if err != nil {
		return errors.Wrap(err, "binding named query")
	}
	return sqlx.GetContext(ctx, exe, dest, exe.Rebind(q), args...)
}

// where collects AND-ed conditions written with "?" placeholders.
type where struct {
	conds []string
	args  []interface{}
}

func (w *where) add(cond string, args ...interface{}) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

func (w *where) eq(column, value string) {
	if value != "" {
		w.add(column+" = ?", value)
	}
}

func (w *where) any(column string, values []string) {
	if len(values) > 0 {
		w.add(column+" = ANY(?)", pq.Array(values))
	}
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// orderBy renders ordering, keeping only the fields of allowed; def is used when nothing is left.
func orderBy(ordering []core.DBOrdering, allowed []string, def string) string {
	parts := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		if core.ContainsString(allowed, ord.Field) {
			parts = append(parts, ord.String())
		}
	}
	if len(parts) == 0 {
		if def == "" {
			return ""
		}
		return " ORDER BY " + def
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}

// uniqueConstraint returns the constraint broken by err when it is a unique violation.
func uniqueConstraint(err error) (string, bool) {
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok && pqErr.Code == uniqueViolation {
		return pqErr.Constraint, true
	}
	return "", false
}

// trapNoRowsErr maps "no rows" to notFound.
func trapNoRowsErr(err, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

func joinComma(parts []string) string {
	return strings.Join(parts, ", ")
}

func nullID(id string) null.String {
	return null.NewString(id, id != "")
}

// likePattern escapes s for a "contains" ILIKE.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)
	return "%" + r.Replace(s) + "%"
}
