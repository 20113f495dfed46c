package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/edufam/edufam/core"
	"github.com/edufam/edufam/core/grade"
)

type gradeRow struct {
	ID             string      `db:"id"`
	SchoolID       string      `db:"school_id"`
	StudentID      string      `db:"student_id"`
	ClassID        string      `db:"class_id"`
	SubjectID      string      `db:"subject_id"`
	Term           string      `db:"term"`
	ExamType       string      `db:"exam_type"`
	Score          float64     `db:"score"`
	MaxScore       float64     `db:"max_score"`
	Percentage     float64     `db:"percentage"`
	Letter         string      `db:"letter"`
	Comments       string      `db:"comments"`
	Status         string      `db:"status"`
	SubmittedBy    null.String `db:"submitted_by"`
	SubmittedAt    null.Time   `db:"submitted_at"`
	ApprovedBy     null.String `db:"approved_by"`
	ApprovedAt     null.Time   `db:"approved_at"`
	RejectedReason string      `db:"rejected_reason"`
	ReleasedBy     null.String `db:"released_by"`
	ReleasedAt     null.Time   `db:"released_at"`
	CreatedBy      null.String `db:"created_by"`
	CreatedAt      time.Time   `db:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at"`
}

var gradeOrderFields = []string{"term", "exam_type", "percentage", "status", "created_at", "updated_at"}

func nullTime(t time.Time) null.Time {
	return null.NewTime(t.UTC(), !t.IsZero())
}

func toGradeRow(g grade.Grade) gradeRow {
	return gradeRow{
		ID:             g.ID,
		SchoolID:       g.SchoolID,
		StudentID:      g.StudentID,
		ClassID:        g.ClassID,
		SubjectID:      g.SubjectID,
		Term:           g.Term,
		ExamType:       g.ExamType,
		Score:          g.Score,
		MaxScore:       g.MaxScore,
		Percentage:     g.Percentage,
		Letter:         g.Letter,
		Comments:       g.Comments,
		Status:         g.Status,
		SubmittedBy:    nullID(g.SubmittedBy),
		SubmittedAt:    nullTime(g.SubmittedAt),
		ApprovedBy:     nullID(g.ApprovedBy),
		ApprovedAt:     nullTime(g.ApprovedAt),
		RejectedReason: g.RejectedReason,
		ReleasedBy:     nullID(g.ReleasedBy),
		ReleasedAt:     nullTime(g.ReleasedAt),
		CreatedBy:      nullID(g.CreatedBy),
		CreatedAt:      g.CreatedAt.UTC(),
		UpdatedAt:      g.UpdatedAt.UTC(),
	}
}

func (row gradeRow) grade() grade.Grade {
	return grade.Grade{
		ID:             row.ID,
		SchoolID:       row.SchoolID,
		StudentID:      row.StudentID,
		ClassID:        row.ClassID,
		SubjectID:      row.SubjectID,
		Term:           row.Term,
		ExamType:       row.ExamType,
		Score:          row.Score,
		MaxScore:       row.MaxScore,
		Percentage:     row.Percentage,
		Letter:         row.Letter,
		Comments:       row.Comments,
		Status:         row.Status,
		SubmittedBy:    row.SubmittedBy.String,
		SubmittedAt:    row.SubmittedAt.Time,
		ApprovedBy:     row.ApprovedBy.String,
		ApprovedAt:     row.ApprovedAt.Time,
		RejectedReason: row.RejectedReason,
		ReleasedBy:     row.ReleasedBy.String,
		ReleasedAt:     row.ReleasedAt.Time,
		CreatedBy:      row.CreatedBy.String,
		CreatedAt:      row.CreatedAt.UTC(),
		UpdatedAt:      row.UpdatedAt.UTC(),
	}
}

type gradeRepository struct{ repo }

var _ grade.Repository = (*gradeRepository)(nil)

func NewGradeRepository(exec core.DBExecutor) *gradeRepository {
	return &gradeRepository{repo{exec: exec}}
}

func (r gradeRepository) GetGradeByKey(ctx context.Context, schoolID, studentID, subjectID, term, examType string, exec ...core.DBExecutor) (grade.Grade, error) {
	var row gradeRow
	q := `SELECT * FROM grades
		WHERE school_id = ? AND student_id = ? AND subject_id = ? AND term = ? AND exam_type = ?`
	if err := r.get(ctx, exec, &row, q, schoolID, studentID, subjectID, term, examType); err != nil {
		return grade.Grade{}, trapNoRowsErr(err, grade.ErrNotFound, "finding grade")
	}
	return row.grade(), nil
}

func (r gradeRepository) CreateGrade(ctx context.Context, g grade.Grade, exec ...core.DBExecutor) (grade.Grade, error) {
	g.ID = core.NewID()
	var row gradeRow
	q := `INSERT INTO grades (id, school_id, student_id, class_id, subject_id, term, exam_type, score, max_score,
			percentage, letter, comments, status, submitted_by, submitted_at, approved_by, approved_at,
			rejected_reason, released_by, released_at, created_by, created_at, updated_at)
		VALUES (:id, :school_id, :student_id, :class_id, :subject_id, :term, :exam_type, :score, :max_score,
			:percentage, :letter, :comments, :status, :submitted_by, :submitted_at, :approved_by, :approved_at,
			:rejected_reason, :released_by, :released_at, :created_by, :created_at, :updated_at)
		RETURNING *`
	if err := r.namedGet(ctx, exec, &row, q, toGradeRow(g)); err != nil {
		return grade.Grade{}, errors.Wrap(err, "inserting grade")
	}
	return row.grade(), nil
}

func (r gradeRepository) UpdateGrade(ctx context.Context, g grade.Grade, exec ...core.DBExecutor) (grade.Grade, error) {
	var row gradeRow
	q := `UPDATE grades SET class_id = :class_id, score = :score, max_score = :max_score, percentage = :percentage,
			letter = :letter, comments = :comments, status = :status, rejected_reason = :rejected_reason,
			updated_at = :updated_at
		WHERE school_id = :school_id AND id = :id RETURNING *`
	if err := r.namedGet(ctx, exec, &row, q, toGradeRow(g)); err != nil {
		return grade.Grade{}, trapNoRowsErr(err, grade.ErrNotFound, "updating grade")
	}
	return row.grade(), nil
}

func gradeWhere(filter *grade.Filter) *where {
	w := &where{}
	if filter == nil {
		return w
	}
	w.eq("school_id", filter.SchoolID)
	w.any("id::text", filter.IDs)
	w.eq("student_id", filter.StudentID)
	w.any("student_id::text", filter.StudentIDs)
	w.eq("class_id", filter.ClassID)
	w.eq("subject_id", filter.SubjectID)
	w.any("subject_id::text", filter.SubjectIDs)
	w.eq("term", filter.Term)
	w.eq("exam_type", filter.ExamType)
	w.any("status", filter.Statuses)
	return w
}

func (r gradeRepository) QueryGrades(ctx context.Context, filter *grade.Filter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]grade.Grade, error) {
	w := gradeWhere(filter)
	var rows []gradeRow
	q := "SELECT * FROM grades" + w.String() + orderBy(ordering, gradeOrderFields, "created_at ASC")
	if err := r.selectAll(ctx, exec, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying grades")
	}
	grades := make([]grade.Grade, 0, len(rows))
	for _, row := range rows {
		grades = append(grades, row.grade())
	}
	return grades, nil
}

func (r gradeRepository) TransitionGrades(ctx context.Context, schoolID string, sel grade.Selector, t grade.Transition, change grade.StatusChange, exec ...core.DBExecutor) (int, error) {
	set := &where{}
	set.add("status = ?", t.To)
	set.add("updated_at = ?", change.At.UTC())
	switch t.To {
	case grade.StatusPendingApproval:
		set.add("submitted_by = ?", nullID(change.ActorID))
		set.add("submitted_at = ?", change.At.UTC())
		set.add("rejected_reason = ''")
	case grade.StatusApproved:
		set.add("approved_by = ?", nullID(change.ActorID))
		set.add("approved_at = ?", change.At.UTC())
	case grade.StatusRejected:
		set.add("rejected_reason = ?", change.Reason)
	case grade.StatusReleased:
		set.add("released_by = ?", nullID(change.ActorID))
		set.add("released_at = ?", change.At.UTC())
	}

	w := &where{}
	w.eq("school_id", schoolID)
	w.any("status", t.From)
	w.any("subject_id::text", sel.SubjectIDs)
	if len(sel.IDs) > 0 {
		w.any("id::text", sel.IDs)
	} else {
		w.eq("class_id", sel.ClassID)
		w.eq("term", sel.Term)
		w.eq("exam_type", sel.ExamType)
		w.eq("subject_id", sel.SubjectID)
	}

	q := "UPDATE grades SET " + joinComma(set.conds) + w.String()
	n, err := r.execute(ctx, exec, q, append(set.args, w.args...)...)
	return n, errors.Wrapf(err, "%s grades", t.Name)
}

func (r gradeRepository) CountGradesByStatus(ctx context.Context, filter *grade.Filter, exec ...core.DBExecutor) (map[string]int, error) {
	w := gradeWhere(filter)
	var rows []struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}
	q := "SELECT status, COUNT(*) AS count FROM grades" + w.String() + " GROUP BY status"
	if err := r.selectAll(ctx, exec, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "counting grades by status")
	}
	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
