package inmemdb

import (
	"context"

	"github.com/edufam/edufam/core"
	"github.com/edufam/edufam/core/timetable"
)

type timetableRepository struct {
	db *table[timetable.Entry]
}

var _ timetable.Repository = (*timetableRepository)(nil)

func NewTimetableRepository(db *DB) timetable.Repository {
	return &timetableRepository{db: db.timetable}
}

func (repo *timetableRepository) QueryEntries(_ context.Context, filter *timetable.Filter, _ ...core.DBExecutor) ([]timetable.Entry, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	return repo.db.filter(func(e timetable.Entry) bool {
		if filter == nil {
			return true
		}
		if filter.ExcludeClassID != "" && e.ClassID == filter.ExcludeClassID {
			return false
		}
		return eq(filter.SchoolID, e.SchoolID) && eq(filter.ClassID, e.ClassID) &&
			eq(filter.TeacherID, e.TeacherID) && eq(filter.Term, e.Term)
	}), nil
}

func (repo *timetableRepository) CreateEntries(_ context.Context, entries []timetable.Entry, _ ...core.DBExecutor) ([]timetable.Entry, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, e := range entries {
		if _, taken := repo.db.find(func(o timetable.Entry) bool {
			return o.ClassID == e.ClassID && o.Term == e.Term && o.Day == e.Day && o.TimeSlot == e.TimeSlot
		}); taken {
			return nil, errDuplicateKey("timetable_entries")
		}
	}
	saved := make([]timetable.Entry, 0, len(entries))
	for _, e := range entries {
		e.ID = core.NewID()
		repo.db.insert(e.ID, e)
		saved = append(saved, e)
	}
	return saved, nil
}

func (repo *timetableRepository) DeleteEntries(_ context.Context, schoolID, classID, term string, _ ...core.DBExecutor) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	var n int
	for _, e := range repo.db.filter(func(e timetable.Entry) bool {
		return e.SchoolID == schoolID && e.ClassID == classID && e.Term == term
	}) {
		repo.db.remove(e.ID)
		n++
	}
	return n, nil
}
