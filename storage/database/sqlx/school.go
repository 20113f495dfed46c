package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/edufam/edufam/core"
	"github.com/edufam/edufam/core/school"
)

type schoolRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	Code      string    `db:"code"`
	Email     string    `db:"email"`
	Phone     string    `db:"phone"`
	Address   string    `db:"address"`
	Motto     string    `db:"motto"`
	IsActive  bool      `db:"is_active"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

var schoolOrderFields = []string{"name", "code", "is_active", "created_at", "updated_at"}

func toSchoolRow(sch school.School) schoolRow {
	return schoolRow{
		ID:        sch.ID,
		Name:      sch.Name,
		Code:      sch.Code,
		Email:     sch.Email,
		Phone:     sch.Phone,
		Address:   sch.Address,
		Motto:     sch.Motto,
		IsActive:  sch.IsActive,
		CreatedAt: sch.CreatedAt.UTC(),
		UpdatedAt: sch.UpdatedAt.UTC(),
	}
}

func (row schoolRow) school() school.School {
	return school.School{
		ID:        row.ID,
		Name:      row.Name,
		Code:      row.Code,
		Email:     row.Email,
		Phone:     row.Phone,
		Address:   row.Address,
		Motto:     row.Motto,
		IsActive:  row.IsActive,
		CreatedAt: row.CreatedAt.UTC(),
		UpdatedAt: row.UpdatedAt.UTC(),
	}
}

type schoolRepository struct{ repo }

var _ school.Repository = (*schoolRepository)(nil)

func NewSchoolRepository(exec core.DBExecutor) *schoolRepository {
	return &schoolRepository{repo{exec: exec}}
}

func schoolExistsErr(err error) error {
	if _, ok := uniqueConstraint(err); ok {
		return school.ErrCodeExists
	}
	return err
}

func (r schoolRepository) CreateSchool(ctx context.Context, sch school.School, exec ...core.DBExecutor) (school.School, error) {
	sch.ID = core.NewID()
	var row schoolRow
	q := `INSERT INTO schools (id, name, code, email, phone, address, motto, is_active, created_at, updated_at)
		VALUES (:id, :name, :code, :email, :phone, :address, :motto, :is_active, :created_at, :updated_at)
		RETURNING *`
	if err := r.namedGet(ctx, exec, &row, q, toSchoolRow(sch)); err != nil {
		return school.School{}, errors.Wrap(schoolExistsErr(err), "inserting school")
	}
	return row.school(), nil
}

func schoolWhere(filter *school.QueryFilter) *where {
	w := &where{}
	if filter == nil {
		return w
	}
	if filter.Search != "" {
		val := likePattern(filter.Search)
		w.add("(name ILIKE ? OR code ILIKE ?)", val, val)
	}
	if filter.IsActive != nil {
		w.add("is_active = ?", *filter.IsActive)
	}
	return w
}

func (r schoolRepository) QuerySchools(ctx context.Context, filter *school.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]school.School, error) {
	w := schoolWhere(filter)
	var rows []schoolRow
	q := "SELECT * FROM schools" + w.String() + orderBy(ordering, schoolOrderFields, "name ASC")
	if err := r.selectAll(ctx, exec, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying schools")
	}
	schools := make([]school.School, 0, len(rows))
	for _, row := range rows {
		schools = append(schools, row.school())
	}
	return schools, nil
}

func (r schoolRepository) CountSchools(ctx context.Context, filter *school.QueryFilter, exec ...core.DBExecutor) (int, error) {
	w := schoolWhere(filter)
	var n int
	if err := r.get(ctx, exec, &n, "SELECT COUNT(*) FROM schools"+w.String(), w.args...); err != nil {
		return 0, errors.Wrap(err, "counting schools")
	}
	return n, nil
}

func (r schoolRepository) GetSchool(ctx context.Context, id string, exec ...core.DBExecutor) (school.School, error) {
	if !core.IsID(id) {
		return school.School{}, school.ErrNotFound
	}
	var row schoolRow
	if err := r.get(ctx, exec, &row, "SELECT * FROM schools WHERE id = ?", id); err != nil {
		return school.School{}, trapNoRowsErr(err, school.ErrNotFound, "finding school")
	}
	return row.school(), nil
}

func (r schoolRepository) GetSchoolByCode(ctx context.Context, code string, exec ...core.DBExecutor) (school.School, error) {
	var row schoolRow
	if err := r.get(ctx, exec, &row, "SELECT * FROM schools WHERE code = ?", code); err != nil {
		return school.School{}, trapNoRowsErr(err, school.ErrNotFound, "finding school by code")
	}
	return row.school(), nil
}

func (r schoolRepository) UpdateSchool(ctx context.Context, sch school.School, exec ...core.DBExecutor) (school.School, error) {
	var row schoolRow
	q := `UPDATE schools SET name = :name, code = :code, email = :email, phone = :phone, address = :address,
		motto = :motto, is_active = :is_active, updated_at = :updated_at
		WHERE id = :id RETURNING *`
	if err := r.namedGet(ctx, exec, &row, q, toSchoolRow(sch)); err != nil {
		return school.School{}, trapNoRowsErr(schoolExistsErr(err), school.ErrNotFound, "updating school")
	}
	return row.school(), nil
}

func (r schoolRepository) DeleteSchool(ctx context.Context, id string, exec ...core.DBExecutor) error {
	n, err := r.execute(ctx, exec, "DELETE FROM schools WHERE id = ?", id)
	if err != nil {
		return errors.Wrap(err, "deleting school")
	}
	if n == 0 {
		return school.ErrNotFound
	}
	return nil
}
