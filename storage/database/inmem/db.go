// Package inmemdb implements the repositories in memory, for tests and for running without PostgreSQL.
package inmemdb

import (
	"cmp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/edufam/edufam/core"
	"github.com/edufam/edufam/core/academic"
	"github.com/edufam/edufam/core/announcement"
	"github.com/edufam/edufam/core/attendance"
	"github.com/edufam/edufam/core/audit"
	"github.com/edufam/edufam/core/fee"
	"github.com/edufam/edufam/core/grade"
	"github.com/edufam/edufam/core/message"
	"github.com/edufam/edufam/core/school"
	"github.com/edufam/edufam/core/timetable"
	"github.com/edufam/edufam/core/user"
)

type (
	DB struct {
		user         *table[user.User]
		school       *table[school.School]
		class        *table[academic.Class]
		subject      *table[academic.Subject]
		student      *table[academic.Student]
		grade        *table[grade.Grade]
		timetable    *table[timetable.Entry]
		attendance   *table[attendance.Record]
		feeStructure *table[fee.Structure]
		studentFee   *table[fee.StudentFee]
		payment      *table[fee.Payment]
		announcement *table[announcement.Announcement]
		message      *table[message.Message]
		audit        *table[audit.Entry]
	}

	// table keeps its rows in insertion order.
	table[T any] struct {
		sync.RWMutex
		rows map[string]*T
		ids  []string
	}
)

func Open() *DB {
	return &DB{
		user:         newTable[user.User](),
		school:       newTable[school.School](),
		class:        newTable[academic.Class](),
		subject:      newTable[academic.Subject](),
		student:      newTable[academic.Student](),
		grade:        newTable[grade.Grade](),
		timetable:    newTable[timetable.Entry](),
		attendance:   newTable[attendance.Record](),
		feeStructure: newTable[fee.Structure](),
		studentFee:   newTable[fee.StudentFee](),
		payment:      newTable[fee.Payment](),
		announcement: newTable[announcement.Announcement](),
		message:      newTable[message.Message](),
		audit:        newTable[audit.Entry](),
	}
}

func newTable[T any]() *table[T] {
	return &table[T]{rows: make(map[string]*T)}
}

// the callers hold the lock

func (t *table[T]) insert(id string, row T) {
	t.rows[id] = &row
	t.ids = append(t.ids, id)
}

func (t *table[T]) get(id string) (T, bool) {
	row, ok := t.rows[id]
	if !ok {
		var zero T
		return zero, false
	}
	return *row, true
}

func (t *table[T]) set(id string, row T) bool {
	if _, ok := t.rows[id]; !ok {
		return false
	}
	t.rows[id] = &row
	return true
}

func (t *table[T]) remove(id string) bool {
	if _, ok := t.rows[id]; !ok {
		return false
	}
	delete(t.rows, id)
	for i, rid := range t.ids {
		if rid == id {
			t.ids = append(t.ids[:i], t.ids[i+1:]...)
			break
		}
	}
	return true
}

// filter returns copies of the rows matching keep, in insertion order.
func (t *table[T]) filter(keep func(T) bool) []T {
	rows := make([]T, 0, len(t.ids))
	for _, id := range t.ids {
		if row := *t.rows[id]; keep == nil || keep(row) {
			rows = append(rows, row)
		}
	}
	return rows
}

func (t *table[T]) find(match func(T) bool) (T, bool) {
	for _, id := range t.ids {
		if row := *t.rows[id]; match(row) {
			return row, true
		}
	}
	var zero T
	return zero, false
}

// comparators maps the sortable fields of T to their comparison.
type comparators[T any] map[string]func(a, b T) int

// sortRows orders rows by the known fields of ordering, falling back to def.
func sortRows[T any](rows []T, ordering []core.DBOrdering, cmps comparators[T], def ...core.DBOrdering) {
	ords := make([]core.DBOrdering, 0, len(ordering))
	for _, ord := range ordering {
		if _, ok := cmps[ord.Field]; ok {
			ords = append(ords, ord)
		}
	}
	if len(ords) == 0 {
		ords = def
	}
	if len(ords) == 0 {
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, ord := range ords {
			c := cmps[ord.Field](rows[i], rows[j])
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return false
	})
}

func asc(field string) core.DBOrdering  { return core.DBOrdering{Field: field, Ascending: true} }
func desc(field string) core.DBOrdering { return core.DBOrdering{Field: field} }

func cmpTime(a, b time.Time) int { return a.Compare(b) }

func cmpBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	default:
		return 1
	}
}

func cmpFold(a, b string) int { return cmp.Compare(strings.ToLower(a), strings.ToLower(b)) }

// contains is a case-insensitive substring match, like ILIKE '%sub%'.
func contains(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

// eq matches when want is empty or equals got.
func eq(want, got string) bool {
	return want == "" || want == got
}

// in matches when list is empty or holds s.
func in(list []string, s string) bool {
	return len(list) == 0 || core.ContainsString(list, s)
}

func copyStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return append([]string{}, s...)
}

func cmpFloat(a, b float64) int { return cmp.Compare(a, b) }

func errDuplicateKey(table string) error {
	return errors.Errorf("duplicate key in %s", table)
}
