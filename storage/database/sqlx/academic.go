package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/edufam/edufam/core"
	"github.com/edufam/edufam/core/academic"
)

type (
	classRow struct {
		ID             string      `db:"id"`
		SchoolID       string      `db:"school_id"`
		Name           string      `db:"name"`
		Stream         string      `db:"stream"`
		Level          int         `db:"level"`
		AcademicYear   string      `db:"academic_year"`
		ClassTeacherID null.String `db:"class_teacher_id"`
		CreatedAt      time.Time   `db:"created_at"`
		UpdatedAt      time.Time   `db:"updated_at"`
	}

	subjectRow struct {
		ID        string      `db:"id"`
		SchoolID  string      `db:"school_id"`
		ClassID   string      `db:"class_id"`
		Name      string      `db:"name"`
		Code      string      `db:"code"`
		TeacherID null.String `db:"teacher_id"`
		CreatedAt time.Time   `db:"created_at"`
		UpdatedAt time.Time   `db:"updated_at"`
	}

	studentRow struct {
		ID              string      `db:"id"`
		SchoolID        string      `db:"school_id"`
		ClassID         string      `db:"class_id"`
		ParentID        null.String `db:"parent_id"`
		AdmissionNumber string      `db:"admission_number"`
		Name            string      `db:"name"`
		Gender          string      `db:"gender"`
		DateOfBirth     core.Date   `db:"date_of_birth"`
		Status          string      `db:"status"`
		CreatedAt       time.Time   `db:"created_at"`
		UpdatedAt       time.Time   `db:"updated_at"`
	}
)

var (
	classOrderFields   = []string{"name", "stream", "level", "academic_year", "created_at"}
	subjectOrderFields = []string{"name", "code", "created_at"}
	studentOrderFields = []string{"name", "admission_number", "date_of_birth", "status", "created_at"}
)

func toClassRow(cls academic.Class) classRow {
	return classRow{
		ID:             cls.ID,
		SchoolID:       cls.SchoolID,
		Name:           cls.Name,
		Stream:         cls.Stream,
		Level:          cls.Level,
		AcademicYear:   cls.AcademicYear,
		ClassTeacherID: nullID(cls.ClassTeacherID),
		CreatedAt:      cls.CreatedAt.UTC(),
		UpdatedAt:      cls.UpdatedAt.UTC(),
	}
}

func (row classRow) class() academic.Class {
	return academic.Class{
		ID:             row.ID,
		SchoolID:       row.SchoolID,
		Name:           row.Name,
		Stream:         row.Stream,
		Level:          row.Level,
		AcademicYear:   row.AcademicYear,
		ClassTeacherID: row.ClassTeacherID.String,
		CreatedAt:      row.CreatedAt.UTC(),
		UpdatedAt:      row.UpdatedAt.UTC(),
	}
}

func toSubjectRow(sub academic.Subject) subjectRow {
	return subjectRow{
		ID:        sub.ID,
		SchoolID:  sub.SchoolID,
		ClassID:   sub.ClassID,
		Name:      sub.Name,
		Code:      sub.Code,
		TeacherID: nullID(sub.TeacherID),
		CreatedAt: sub.CreatedAt.UTC(),
		UpdatedAt: sub.UpdatedAt.UTC(),
	}
}

func (row subjectRow) subject() academic.Subject {
	return academic.Subject{
		ID:        row.ID,
		SchoolID:  row.SchoolID,
		ClassID:   row.ClassID,
		Name:      row.Name,
		Code:      row.Code,
		TeacherID: row.TeacherID.String,
		CreatedAt: row.CreatedAt.UTC(),
		UpdatedAt: row.UpdatedAt.UTC(),
	}
}

func toStudentRow(std academic.Student) studentRow {
	return studentRow{
		ID:              std.ID,
		SchoolID:        std.SchoolID,
		ClassID:         std.ClassID,
		ParentID:        nullID(std.ParentID),
		AdmissionNumber: std.AdmissionNumber,
		Name:            std.Name,
		Gender:          std.Gender,
		DateOfBirth:     std.DateOfBirth,
		Status:          std.Status,
		CreatedAt:       std.CreatedAt.UTC(),
		UpdatedAt:       std.UpdatedAt.UTC(),
	}
}

func (row studentRow) student() academic.Student {
	return academic.Student{
		ID:              row.ID,
		SchoolID:        row.SchoolID,
		ClassID:         row.ClassID,
		ParentID:        row.ParentID.String,
		AdmissionNumber: row.AdmissionNumber,
		Name:            row.Name,
		Gender:          row.Gender,
		DateOfBirth:     row.DateOfBirth,
		Status:          row.Status,
		CreatedAt:       row.CreatedAt.UTC(),
		UpdatedAt:       row.UpdatedAt.UTC(),
	}
}

type academicRepository struct{ repo }

var _ academic.Repository = (*academicRepository)(nil)

func NewAcademicRepository(exec core.DBExecutor) *academicRepository {
	return &academicRepository{repo{exec: exec}}
}

func (r academicRepository) deleteScoped(ctx context.Context, exec []core.DBExecutor, table, schoolID, id string, notFound error) error {
	if !core.IsID(id) {
		return notFound
	}
	n, err := r.execute(ctx, exec, "DELETE FROM "+table+" WHERE school_id = ? AND id = ?", schoolID, id)
	if err != nil {
		return errors.Wrapf(err, "deleting from %s", table)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// Classes

func classExistsErr(err error) error {
	if _, ok := uniqueConstraint(err); ok {
		return academic.ErrClassExists
	}
	return err
}

func (r academicRepository) CreateClass(ctx context.Context, cls academic.Class, exec ...core.DBExecutor) (academic.Class, error) {
	cls.ID = core.NewID()
	var row classRow
	q := `INSERT INTO classes (id, school_id, name, stream, level, academic_year, class_teacher_id, created_at, updated_at)
		VALUES (:id, :school_id, :name, :stream, :level, :academic_year, :class_teacher_id, :created_at, :updated_at)
		RETURNING *`
	if err := r.namedGet(ctx, exec, &row, q, toClassRow(cls)); err != nil {
		return academic.Class{}, errors.Wrap(classExistsErr(err), "inserting class")
	}
	return row.class(), nil
}

func classWhere(filter *academic.ClassFilter) *where {
	w := &where{}
	if filter == nil {
		return w
	}
	w.eq("school_id", filter.SchoolID)
	w.any("id::text", filter.IDs)
	w.eq("academic_year", filter.AcademicYear)
	if filter.TeacherID != "" {
		w.add(
			"(class_teacher_id = ? OR id IN (SELECT class_id FROM subjects WHERE teacher_id = ?))",
			filter.TeacherID, filter.TeacherID,
		)
	}
	if filter.Search != "" {
		val := likePattern(filter.Search)
		w.add("(name ILIKE ? OR stream ILIKE ?)", val, val)
	}
	return w
}

func (r academicRepository) QueryClasses(ctx context.Context, filter *academic.ClassFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]academic.Class, error) {
	w := classWhere(filter)
	var rows []classRow
	q := "SELECT * FROM classes" + w.String() + orderBy(ordering, classOrderFields, "level ASC, name ASC, stream ASC")
	if err := r.selectAll(ctx, exec, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying classes")
	}
	classes := make([]academic.Class, 0, len(rows))
	for _, row := range rows {
		classes = append(classes, row.class())
	}
	return classes, nil
}

func (r academicRepository) CountClasses(ctx context.Context, filter *academic.ClassFilter, exec ...core.DBExecutor) (int, error) {
	w := classWhere(filter)
	var n int
	if err := r.get(ctx, exec, &n, "SELECT COUNT(*) FROM classes"+w.String(), w.args...); err != nil {
		return 0, errors.Wrap(err, "counting classes")
	}
	return n, nil
}

func (r academicRepository) GetClass(ctx context.Context, schoolID, id string, exec ...core.DBExecutor) (academic.Class, error) {
	if !core.IsID(id) {
		return academic.Class{}, academic.ErrClassNotFound
	}
	var row classRow
	if err := r.get(ctx, exec, &row, "SELECT * FROM classes WHERE school_id = ? AND id = ?", schoolID, id); err != nil {
		return academic.Class{}, trapNoRowsErr(err, academic.ErrClassNotFound, "finding class")
	}
	return row.class(), nil
}

func (r academicRepository) UpdateClass(ctx context.Context, cls academic.Class, exec ...core.DBExecutor) (academic.Class, error) {
	var row classRow
	q := `UPDATE classes SET name = :name, stream = :stream, level = :level, academic_year = :academic_year,
		class_teacher_id = :class_teacher_id, updated_at = :updated_at
		WHERE school_id = :school_id AND id = :id RETURNING *`
	if err := r.namedGet(ctx, exec, &row, q, toClassRow(cls)); err != nil {
		return academic.Class{}, trapNoRowsErr(classExistsErr(err), academic.ErrClassNotFound, "updating class")
	}
	return row.class(), nil
}

func (r academicRepository) DeleteClass(ctx context.Context, schoolID, id string, exec ...core.DBExecutor) error {
	return r.deleteScoped(ctx, exec, "classes", schoolID, id, academic.ErrClassNotFound)
}

// Subjects

func subjectExistsErr(err error) error {
	if _, ok := uniqueConstraint(err); ok {
		return academic.ErrSubjectCodeExists
	}
	return err
}

func (r academicRepository) CreateSubject(ctx context.Context, sub academic.Subject, exec ...core.DBExecutor) (academic.Subject, error) {
	sub.ID = core.NewID()
	var row subjectRow
	q := `INSERT INTO subjects (id, school_id, class_id, name, code, teacher_id, created_at, updated_at)
		VALUES (:id, :school_id, :class_id, :name, :code, :teacher_id, :created_at, :updated_at)
		RETURNING *`
	if err := r.namedGet(ctx, exec, &row, q, toSubjectRow(sub)); err != nil {
		return academic.Subject{}, errors.Wrap(subjectExistsErr(err), "inserting subject")
	}
	return row.subject(), nil
}

func subjectWhere(filter *academic.SubjectFilter) *where {
	w := &where{}
	if filter == nil {
		return w
	}
	w.eq("school_id", filter.SchoolID)
	w.any("id::text", filter.IDs)
	w.eq("class_id", filter.ClassID)
	w.eq("teacher_id", filter.TeacherID)
	return w
}

func (r academicRepository) QuerySubjects(ctx context.Context, filter *academic.SubjectFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]academic.Subject, error) {
	w := subjectWhere(filter)
	var rows []subjectRow
	q := "SELECT * FROM subjects" + w.String() + orderBy(ordering, subjectOrderFields, "name ASC")
	if err := r.selectAll(ctx, exec, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying subjects")
	}
	subjects := make([]academic.Subject, 0, len(rows))
	for _, row := range rows {
		subjects = append(subjects, row.subject())
	}
	return subjects, nil
}

func (r academicRepository) CountSubjects(ctx context.Context, filter *academic.SubjectFilter, exec ...core.DBExecutor) (int, error) {
	w := subjectWhere(filter)
	var n int
	if err := r.get(ctx, exec, &n, "SELECT COUNT(*) FROM subjects"+w.String(), w.args...); err != nil {
		return 0, errors.Wrap(err, "counting subjects")
	}
	return n, nil
}

func (r academicRepository) GetSubject(ctx context.Context, schoolID, id string, exec ...core.DBExecutor) (academic.Subject, error) {
	if !core.IsID(id) {
		return academic.Subject{}, academic.ErrSubjectNotFound
	}
	var row subjectRow
	if err := r.get(ctx, exec, &row, "SELECT * FROM subjects WHERE school_id = ? AND id = ?", schoolID, id); err != nil {
		return academic.Subject{}, trapNoRowsErr(err, academic.ErrSubjectNotFound, "finding subject")
	}
	return row.subject(), nil
}

func (r academicRepository) UpdateSubject(ctx context.Context, sub academic.Subject, exec ...core.DBExecutor) (academic.Subject, error) {
	var row subjectRow
	q := `UPDATE subjects SET name = :name, code = :code, teacher_id = :teacher_id, updated_at = :updated_at
		WHERE school_id = :school_id AND id = :id RETURNING *`
	if err := r.namedGet(ctx, exec, &row, q, toSubjectRow(sub)); err != nil {
		return academic.Subject{}, trapNoRowsErr(subjectExistsErr(err), academic.ErrSubjectNotFound, "updating subject")
	}
	return row.subject(), nil
}

func (r academicRepository) DeleteSubject(ctx context.Context, schoolID, id string, exec ...core.DBExecutor) error {
	return r.deleteScoped(ctx, exec, "subjects", schoolID, id, academic.ErrSubjectNotFound)
}

// Students

func studentExistsErr(err error) error {
	if _, ok := uniqueConstraint(err); ok {
		return academic.ErrAdmissionNumberExists
	}
	return err
}

func (r academicRepository) CreateStudent(ctx context.Context, std academic.Student, exec ...core.DBExecutor) (academic.Student, error) {
	std.ID = core.NewID()
	var row studentRow
	q := `INSERT INTO students (id, school_id, class_id, parent_id, admission_number, name, gender, date_of_birth, status, created_at, updated_at)
		VALUES (:id, :school_id, :class_id, :parent_id, :admission_number, :name, :gender, :date_of_birth, :status, :created_at, :updated_at)
		RETURNING *`
	if err := r.namedGet(ctx, exec, &row, q, toStudentRow(std)); err != nil {
		return academic.Student{}, errors.Wrap(studentExistsErr(err), "inserting student")
	}
	return row.student(), nil
}

func studentWhere(filter *academic.StudentFilter) *where {
	w := &where{}
	if filter == nil {
		return w
	}
	w.eq("school_id", filter.SchoolID)
	w.any("id::text", filter.IDs)
	w.eq("class_id", filter.ClassID)
	w.eq("parent_id", filter.ParentID)
	w.eq("status", filter.Status)
	if filter.Search != "" {
		val := likePattern(filter.Search)
		w.add("(name ILIKE ? OR admission_number ILIKE ?)", val, val)
	}
	return w
}

func (r academicRepository) QueryStudents(ctx context.Context, filter *academic.StudentFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]academic.Student, error) {
	w := studentWhere(filter)
	var rows []studentRow
	q := "SELECT * FROM students" + w.String() + orderBy(ordering, studentOrderFields, "name ASC")
	if err := r.selectAll(ctx, exec, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	students := make([]academic.Student, 0, len(rows))
	for _, row := range rows {
		students = append(students, row.student())
	}
	return students, nil
}

func (r academicRepository) CountStudents(ctx context.Context, filter *academic.StudentFilter, exec ...core.DBExecutor) (int, error) {
	w := studentWhere(filter)
	var n int
	if err := r.get(ctx, exec, &n, "SELECT COUNT(*) FROM students"+w.String(), w.args...); err != nil {
		return 0, errors.Wrap(err, "counting students")
	}
	return n, nil
}

func (r academicRepository) GetStudent(ctx context.Context, schoolID, id string, exec ...core.DBExecutor) (academic.Student, error) {
	if !core.IsID(id) {
		return academic.Student{}, academic.ErrStudentNotFound
	}
	var row studentRow
	if err := r.get(ctx, exec, &row, "SELECT * FROM students WHERE school_id = ? AND id = ?", schoolID, id); err != nil {
		return academic.Student{}, trapNoRowsErr(err, academic.ErrStudentNotFound, "finding student")
	}
	return row.student(), nil
}

func (r academicRepository) UpdateStudent(ctx context.Context, std academic.Student, exec ...core.DBExecutor) (academic.Student, error) {
	var row studentRow
	q := `UPDATE students SET class_id = :class_id, parent_id = :parent_id, admission_number = :admission_number,
		name = :name, gender = :gender, date_of_birth = :date_of_birth, status = :status, updated_at = :updated_at
		WHERE school_id = :school_id AND id = :id RETURNING *`
	if err := r.namedGet(ctx, exec, &row, q, toStudentRow(std)); err != nil {
		return academic.Student{}, trapNoRowsErr(studentExistsErr(err), academic.ErrStudentNotFound, "updating student")
	}
	return row.student(), nil
}

func (r academicRepository) DeleteStudent(ctx context.Context, schoolID, id string, exec ...core.DBExecutor) error {
	return r.deleteScoped(ctx, exec, "students", schoolID, id, academic.ErrStudentNotFound)
}

func (r academicRepository) MoveStudents(ctx context.Context, schoolID, fromClassID, toClassID string, exec ...core.DBExecutor) (int, error) {
	n, err := r.execute(ctx, exec,
		"UPDATE students SET class_id = ?, updated_at = ? WHERE school_id = ? AND class_id = ? AND status = ?",
		toClassID, time.Now().UTC(), schoolID, fromClassID, academic.StatusActive,
	)
	return n, errors.Wrap(err, "moving students")
}

func (r academicRepository) SetStudentsStatus(ctx context.Context, schoolID, classID, status string, exec ...core.DBExecutor) (int, error) {
	n, err := r.execute(ctx, exec,
		"UPDATE students SET status = ?, updated_at = ? WHERE school_id = ? AND class_id = ? AND status = ?",
		status, time.Now().UTC(), schoolID, classID, academic.StatusActive,
	)
	return n, errors.Wrap(err, "setting students status")
}
