package inmemdb

import (
	"context"
	"strings"

	"github.com/edufam/edufam/core"
	"github.com/edufam/edufam/core/attendance"
)

var recordComparators = comparators[attendance.Record]{
	"date":       func(a, b attendance.Record) int { return cmpTime(a.Date.Time, b.Date.Time) },
	"session":    func(a, b attendance.Record) int { return strings.Compare(a.Session, b.Session) },
	"status":     func(a, b attendance.Record) int { return strings.Compare(a.Status, b.Status) },
	"created_at": func(a, b attendance.Record) int { return cmpTime(a.CreatedAt, b.CreatedAt) },
}

type attendanceRepository struct {
	db *table[attendance.Record]
}

var _ attendance.Repository = (*attendanceRepository)(nil)

func NewAttendanceRepository(db *DB) attendance.Repository {
	return &attendanceRepository{db: db.attendance}
}

func (repo *attendanceRepository) UpsertRecord(_ context.Context, rec attendance.Record, _ ...core.DBExecutor) (attendance.Record, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.find(func(r attendance.Record) bool {
		return r.StudentID == rec.StudentID && r.Date.Equal(rec.Date) && r.Session == rec.Session
	})
	if !ok {
		rec.ID = core.NewID()
		repo.db.insert(rec.ID, rec)
		return rec, nil
	}
	orig.ClassID = rec.ClassID
	orig.Status = rec.Status
	orig.Remarks = rec.Remarks
	orig.MarkedBy = rec.MarkedBy
	orig.UpdatedAt = rec.UpdatedAt
	repo.db.set(orig.ID, orig)
	return orig, nil
}

func (repo *attendanceRepository) QueryRecords(_ context.Context, filter *attendance.Filter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]attendance.Record, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	records := repo.db.filter(func(r attendance.Record) bool {
		if filter == nil {
			return true
		}
		if !filter.From.IsZero() && r.Date.Before(filter.From) {
			return false
		}
		if !filter.To.IsZero() && r.Date.After(filter.To) {
			return false
		}
		return eq(filter.SchoolID, r.SchoolID) && eq(filter.ClassID, r.ClassID) &&
			eq(filter.StudentID, r.StudentID) && in(filter.StudentIDs, r.StudentID) &&
			eq(filter.Session, r.Session) && eq(filter.Status, r.Status)
	})
	sortRows(records, ordering, recordComparators, asc("date"), desc("session"))
	return records, nil
}
