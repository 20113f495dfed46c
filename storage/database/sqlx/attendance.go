package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/edufam/edufam/core"
	"github.com/edufam/edufam/core/attendance"
)

type recordRow struct {
	ID        string      `db:"id"`
	SchoolID  string      `db:"school_id"`
	StudentID string      `db:"student_id"`
	ClassID   string      `db:"class_id"`
	Date      core.Date   `db:"date"`
	Session   string      `db:"session"`
	Status    string      `db:"status"`
	Remarks   string      `db:"remarks"`
	MarkedBy  null.String `db:"marked_by"`
	CreatedAt time.Time   `db:"created_at"`
	UpdatedAt time.Time   `db:"updated_at"`
}

var recordOrderFields = []string{"date", "session", "status", "created_at"}

func toRecordRow(rec attendance.Record) recordRow {
	return recordRow{
		ID:        rec.ID,
		SchoolID:  rec.SchoolID,
		StudentID: rec.StudentID,
		ClassID:   rec.ClassID,
		Date:      rec.Date,
		Session:   rec.Session,
		Status:    rec.Status,
		Remarks:   rec.Remarks,
		MarkedBy:  nullID(rec.MarkedBy),
		CreatedAt: rec.CreatedAt.UTC(),
		UpdatedAt: rec.UpdatedAt.UTC(),
	}
}

func (row recordRow) record() attendance.Record {
	return attendance.Record{
		ID:        row.ID,
		SchoolID:  row.SchoolID,
		StudentID: row.StudentID,
		ClassID:   row.ClassID,
		Date:      row.Date,
		Session:   row.Session,
		Status:    row.Status,
		Remarks:   row.Remarks,
		MarkedBy:  row.MarkedBy.String,
		CreatedAt: row.CreatedAt.UTC(),
		UpdatedAt: row.UpdatedAt.UTC(),
	}
}

type attendanceRepository struct{ repo }

var _ attendance.Repository = (*attendanceRepository)(nil)

func NewAttendanceRepository(exec core.DBExecutor) *attendanceRepository {
	return &attendanceRepository{repo{exec: exec}}
}

func (r attendanceRepository) UpsertRecord(ctx context.Context, rec attendance.Record, exec ...core.DBExecutor) (attendance.Record, error) {
	rec.ID = core.NewID()
	var row recordRow
	q := `INSERT INTO attendance_records (id, school_id, student_id, class_id, date, session, status, remarks, marked_by, created_at, updated_at)
		VALUES (:id, :school_id, :student_id, :class_id, :date, :session, :status, :remarks, :marked_by, :created_at, :updated_at)
		ON CONFLICT (student_id, date, session) DO UPDATE SET
			class_id = EXCLUDED.class_id, status = EXCLUDED.status, remarks = EXCLUDED.remarks,
			marked_by = EXCLUDED.marked_by, updated_at = EXCLUDED.updated_at
		RETURNING *`
	if err := r.namedGet(ctx, exec, &row, q, toRecordRow(rec)); err != nil {
		return attendance.Record{}, errors.Wrap(err, "upserting attendance record")
	}
	return row.record(), nil
}

func (r attendanceRepository) QueryRecords(ctx context.Context, filter *attendance.Filter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]attendance.Record, error) {
	w := &where{}
	if filter != nil {
		w.eq("school_id", filter.SchoolID)
		w.eq("class_id", filter.ClassID)
		w.eq("student_id", filter.StudentID)
		w.any("student_id::text", filter.StudentIDs)
		w.eq("session", filter.Session)
		w.eq("status", filter.Status)
		if !filter.From.IsZero() {
			w.add("date >= ?", filter.From)
		}
		if !filter.To.IsZero() {
			w.add("date <= ?", filter.To)
		}
	}
	var rows []recordRow
	q := "SELECT * FROM attendance_records" + w.String() + orderBy(ordering, recordOrderFields, "date ASC, session DESC")
	if err := r.selectAll(ctx, exec, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying attendance records")
	}
	records := make([]attendance.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.record())
	}
	return records, nil
}
