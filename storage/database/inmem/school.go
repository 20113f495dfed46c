package inmemdb

import (
	"context"
	"strings"

	"github.com/edufam/edufam/core"
	"github.com/edufam/edufam/core/school"
)

var schoolComparators = comparators[school.School]{
	"name":       func(a, b school.School) int { return cmpFold(a.Name, b.Name) },
	"code":       func(a, b school.School) int { return strings.Compare(a.Code, b.Code) },
	"is_active":  func(a, b school.School) int { return cmpBool(a.IsActive, b.IsActive) },
	"created_at": func(a, b school.School) int { return cmpTime(a.CreatedAt, b.CreatedAt) },
	"updated_at": func(a, b school.School) int { return cmpTime(a.UpdatedAt, b.UpdatedAt) },
}

type schoolRepository struct {
	db *table[school.School]
}

var _ school.Repository = (*schoolRepository)(nil)

func NewSchoolRepository(db *DB) school.Repository {
	return &schoolRepository{db: db.school}
}

func (repo *schoolRepository) codeTaken(code, exclID string) bool {
	_, ok := repo.db.find(func(s school.School) bool { return s.Code == code && s.ID != exclID })
	return ok
}

func (repo *schoolRepository) CreateSchool(_ context.Context, sch school.School, _ ...core.DBExecutor) (school.School, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if repo.codeTaken(sch.Code, "") {
		return school.School{}, school.ErrCodeExists
	}
	sch.ID = core.NewID()
	repo.db.insert(sch.ID, sch)
	return sch, nil
}

func matchSchool(filter *school.QueryFilter) func(school.School) bool {
	return func(sch school.School) bool {
		if filter == nil {
			return true
		}
		if filter.Search != "" && !contains(sch.Name, filter.Search) && !contains(sch.Code, filter.Search) {
			return false
		}
		return filter.IsActive == nil || sch.IsActive == *filter.IsActive
	}
}

func (repo *schoolRepository) QuerySchools(_ context.Context, filter *school.QueryFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]school.School, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	schools := repo.db.filter(matchSchool(filter))
	sortRows(schools, ordering, schoolComparators, asc("name"))
	return schools, nil
}

func (repo *schoolRepository) CountSchools(_ context.Context, filter *school.QueryFilter, _ ...core.DBExecutor) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return len(repo.db.filter(matchSchool(filter))), nil
}

func (repo *schoolRepository) GetSchool(_ context.Context, id string, _ ...core.DBExecutor) (school.School, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if sch, ok := repo.db.get(id); ok {
		return sch, nil
	}
	return school.School{}, school.ErrNotFound
}

func (repo *schoolRepository) GetSchoolByCode(_ context.Context, code string, _ ...core.DBExecutor) (school.School, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if sch, ok := repo.db.find(func(s school.School) bool { return s.Code == code }); ok {
		return sch, nil
	}
	return school.School{}, school.ErrNotFound
}

func (repo *schoolRepository) UpdateSchool(_ context.Context, sch school.School, _ ...core.DBExecutor) (school.School, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.get(sch.ID); !ok {
		return school.School{}, school.ErrNotFound
	}
	if repo.codeTaken(sch.Code, sch.ID) {
		return school.School{}, school.ErrCodeExists
	}
	repo.db.set(sch.ID, sch)
	return sch, nil
}

func (repo *schoolRepository) DeleteSchool(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if !repo.db.remove(id) {
		return school.ErrNotFound
	}
	return nil
}
