package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/edufam/edufam/core"
	"github.com/edufam/edufam/core/timetable"
)

type entryRow struct {
	ID        string      `db:"id"`
	SchoolID  string      `db:"school_id"`
	ClassID   string      `db:"class_id"`
	SubjectID string      `db:"subject_id"`
	TeacherID null.String `db:"teacher_id"`
	Term      string      `db:"term"`
	Day       string      `db:"day"`
	TimeSlot  string      `db:"time_slot"`
	Room      string      `db:"room"`
	CreatedAt time.Time   `db:"created_at"`
}

func toEntryRow(e timetable.Entry) entryRow {
	return entryRow{
		ID:        e.ID,
		SchoolID:  e.SchoolID,
		ClassID:   e.ClassID,
		SubjectID: e.SubjectID,
		TeacherID: nullID(e.TeacherID),
		Term:      e.Term,
		Day:       e.Day,
		TimeSlot:  e.TimeSlot,
		Room:      e.Room,
		CreatedAt: e.CreatedAt.UTC(),
	}
}

func (row entryRow) entry() timetable.Entry {
	return timetable.Entry{
		ID:        row.ID,
		SchoolID:  row.SchoolID,
		ClassID:   row.ClassID,
		SubjectID: row.SubjectID,
		TeacherID: row.TeacherID.String,
		Term:      row.Term,
		Day:       row.Day,
		TimeSlot:  row.TimeSlot,
		Room:      row.Room,
		CreatedAt: row.CreatedAt.UTC(),
	}
}

type timetableRepository struct{ repo }

var _ timetable.Repository = (*timetableRepository)(nil)

func NewTimetableRepository(exec core.DBExecutor) *timetableRepository {
	return &timetableRepository{repo{exec: exec}}
}

func (r timetableRepository) QueryEntries(ctx context.Context, filter *timetable.Filter, exec ...core.DBExecutor) ([]timetable.Entry, error) {
	w := &where{}
	if filter != nil {
		w.eq("school_id", filter.SchoolID)
		w.eq("class_id", filter.ClassID)
		w.eq("teacher_id", filter.TeacherID)
		w.eq("term", filter.Term)
		if filter.ExcludeClassID != "" {
			w.add("class_id <> ?", filter.ExcludeClassID)
		}
	}
	var rows []entryRow
	if err := r.selectAll(ctx, exec, &rows, "SELECT * FROM timetable_entries"+w.String(), w.args...); err != nil {
		return nil, errors.Wrap(err, "querying timetable entries")
	}
	entries := make([]timetable.Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, row.entry())
	}
	return entries, nil
}

func (r timetableRepository) CreateEntries(ctx context.Context, entries []timetable.Entry, exec ...core.DBExecutor) ([]timetable.Entry, error) {
	q := `INSERT INTO timetable_entries (id, school_id, class_id, subject_id, teacher_id, term, day, time_slot, room, created_at)
		VALUES (:id, :school_id, :class_id, :subject_id, :teacher_id, :term, :day, :time_slot, :room, :created_at)
		RETURNING *`
	saved := make([]timetable.Entry, 0, len(entries))
	for _, e := range entries {
		e.ID = core.NewID()
		var row entryRow
		if err := r.namedGet(ctx, exec, &row, q, toEntryRow(e)); err != nil {
			return nil, errors.Wrapf(err, "inserting entry %s %s", e.Day, e.TimeSlot)
		}
		saved = append(saved, row.entry())
	}
	return saved, nil
}

func (r timetableRepository) DeleteEntries(ctx context.Context, schoolID, classID, term string, exec ...core.DBExecutor) (int, error) {
	n, err := r.execute(ctx, exec,
		"DELETE FROM timetable_entries WHERE school_id = ? AND class_id = ? AND term = ?",
		schoolID, classID, term,
	)
	return n, errors.Wrap(err, "deleting timetable entries")
}
