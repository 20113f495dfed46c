package inmemdb

import (
	"context"
	"strings"
	"time"

	"github.com/edufam/edufam/core"
	"github.com/edufam/edufam/core/academic"
)

var (
	classComparators = comparators[academic.Class]{
		"name":          func(a, b academic.Class) int { return cmpFold(a.Name, b.Name) },
		"stream":        func(a, b academic.Class) int { return cmpFold(a.Stream, b.Stream) },
		"level":         func(a, b academic.Class) int { return a.Level - b.Level },
		"academic_year": func(a, b academic.Class) int { return strings.Compare(a.AcademicYear, b.AcademicYear) },
		"created_at":    func(a, b academic.Class) int { return cmpTime(a.CreatedAt, b.CreatedAt) },
	}
	subjectComparators = comparators[academic.Subject]{
		"name":       func(a, b academic.Subject) int { return cmpFold(a.Name, b.Name) },
		"code":       func(a, b academic.Subject) int { return strings.Compare(a.Code, b.Code) },
		"created_at": func(a, b academic.Subject) int { return cmpTime(a.CreatedAt, b.CreatedAt) },
	}
	studentComparators = comparators[academic.Student]{
		"name":             func(a, b academic.Student) int { return cmpFold(a.Name, b.Name) },
		"admission_number": func(a, b academic.Student) int { return strings.Compare(a.AdmissionNumber, b.AdmissionNumber) },
		"date_of_birth":    func(a, b academic.Student) int { return cmpTime(a.DateOfBirth.Time, b.DateOfBirth.Time) },
		"status":           func(a, b academic.Student) int { return strings.Compare(a.Status, b.Status) },
		"created_at":       func(a, b academic.Student) int { return cmpTime(a.CreatedAt, b.CreatedAt) },
	}
)

type academicRepository struct {
	classes  *table[academic.Class]
	subjects *table[academic.Subject]
	students *table[academic.Student]
}

var _ academic.Repository = (*academicRepository)(nil)

func NewAcademicRepository(db *DB) academic.Repository {
	return &academicRepository{classes: db.class, subjects: db.subject, students: db.student}
}

// Classes

func (repo *academicRepository) classTaken(cls academic.Class) bool {
	_, ok := repo.classes.find(func(c academic.Class) bool {
		return c.ID != cls.ID && c.SchoolID == cls.SchoolID && c.AcademicYear == cls.AcademicYear &&
			c.Name == cls.Name && c.Stream == cls.Stream
	})
	return ok
}

func (repo *academicRepository) CreateClass(_ context.Context, cls academic.Class, _ ...core.DBExecutor) (academic.Class, error) {
	repo.classes.Lock()
	defer repo.classes.Unlock()

	if repo.classTaken(cls) {
		return academic.Class{}, academic.ErrClassExists
	}
	cls.ID = core.NewID()
	repo.classes.insert(cls.ID, cls)
	return cls, nil
}

// matchClass needs the subjects table read-locked when filtering by teacher.
func (repo *academicRepository) matchClass(filter *academic.ClassFilter) func(academic.Class) bool {
	return func(cls academic.Class) bool {
		if filter == nil {
			return true
		}
		if !eq(filter.SchoolID, cls.SchoolID) || !in(filter.IDs, cls.ID) || !eq(filter.AcademicYear, cls.AcademicYear) {
			return false
		}
		if filter.TeacherID != "" && cls.ClassTeacherID != filter.TeacherID {
			_, teaches := repo.subjects.find(func(sub academic.Subject) bool {
				return sub.ClassID == cls.ID && sub.TeacherID == filter.TeacherID
			})
			if !teaches {
				return false
			}
		}
		return filter.Search == "" || contains(cls.Name, filter.Search) || contains(cls.Stream, filter.Search)
	}
}

func (repo *academicRepository) QueryClasses(_ context.Context, filter *academic.ClassFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]academic.Class, error) {
	repo.classes.RLock()
	defer repo.classes.RUnlock()
	repo.subjects.RLock()
	defer repo.subjects.RUnlock()

	classes := repo.classes.filter(repo.matchClass(filter))
	sortRows(classes, ordering, classComparators, asc("level"), asc("name"), asc("stream"))
	return classes, nil
}

func (repo *academicRepository) CountClasses(_ context.Context, filter *academic.ClassFilter, _ ...core.DBExecutor) (int, error) {
	repo.classes.RLock()
	defer repo.classes.RUnlock()
	repo.subjects.RLock()
	defer repo.subjects.RUnlock()
	return len(repo.classes.filter(repo.matchClass(filter))), nil
}

func (repo *academicRepository) GetClass(_ context.Context, schoolID, id string, _ ...core.DBExecutor) (academic.Class, error) {
	repo.classes.RLock()
	defer repo.classes.RUnlock()

	if cls, ok := repo.classes.get(id); ok && cls.SchoolID == schoolID {
		return cls, nil
	}
	return academic.Class{}, academic.ErrClassNotFound
}

func (repo *academicRepository) UpdateClass(_ context.Context, cls academic.Class, _ ...core.DBExecutor) (academic.Class, error) {
	repo.classes.Lock()
	defer repo.classes.Unlock()

	if orig, ok := repo.classes.get(cls.ID); !ok || orig.SchoolID != cls.SchoolID {
		return academic.Class{}, academic.ErrClassNotFound
	}
	if repo.classTaken(cls) {
		return academic.Class{}, academic.ErrClassExists
	}
	repo.classes.set(cls.ID, cls)
	return cls, nil
}

func (repo *academicRepository) DeleteClass(_ context.Context, schoolID, id string, _ ...core.DBExecutor) error {
	repo.classes.Lock()
	defer repo.classes.Unlock()

	if cls, ok := repo.classes.get(id); !ok || cls.SchoolID != schoolID {
		return academic.ErrClassNotFound
	}
	repo.classes.remove(id)
	return nil
}

// Subjects

func (repo *academicRepository) codeTaken(sub academic.Subject) bool {
	_, ok := repo.subjects.find(func(s academic.Subject) bool {
		return s.ID != sub.ID && s.ClassID == sub.ClassID && s.Code == sub.Code
	})
	return ok
}

func (repo *academicRepository) CreateSubject(_ context.Context, sub academic.Subject, _ ...core.DBExecutor) (academic.Subject, error) {
	repo.subjects.Lock()
	defer repo.subjects.Unlock()

	if repo.codeTaken(sub) {
		return academic.Subject{}, academic.ErrSubjectCodeExists
	}
	sub.ID = core.NewID()
	repo.subjects.insert(sub.ID, sub)
	return sub, nil
}

func matchSubject(filter *academic.SubjectFilter) func(academic.Subject) bool {
	return func(sub academic.Subject) bool {
		if filter == nil {
			return true
		}
		return eq(filter.SchoolID, sub.SchoolID) && in(filter.IDs, sub.ID) &&
			eq(filter.ClassID, sub.ClassID) && eq(filter.TeacherID, sub.TeacherID)
	}
}

func (repo *academicRepository) QuerySubjects(_ context.Context, filter *academic.SubjectFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]academic.Subject, error) {
	repo.subjects.RLock()
	defer repo.subjects.RUnlock()

	subjects := repo.subjects.filter(matchSubject(filter))
	sortRows(subjects, ordering, subjectComparators, asc("name"))
	return subjects, nil
}

func (repo *academicRepository) CountSubjects(_ context.Context, filter *academic.SubjectFilter, _ ...core.DBExecutor) (int, error) {
	repo.subjects.RLock()
	defer repo.subjects.RUnlock()
	return len(repo.subjects.filter(matchSubject(filter))), nil
}

func (repo *academicRepository) GetSubject(_ context.Context, schoolID, id string, _ ...core.DBExecutor) (academic.Subject, error) {
	repo.subjects.RLock()
	defer repo.subjects.RUnlock()

	if sub, ok := repo.subjects.get(id); ok && sub.SchoolID == schoolID {
		return sub, nil
	}
	return academic.Subject{}, academic.ErrSubjectNotFound
}

func (repo *academicRepository) UpdateSubject(_ context.Context, sub academic.Subject, _ ...core.DBExecutor) (academic.Subject, error) {
	repo.subjects.Lock()
	defer repo.subjects.Unlock()

	if orig, ok := repo.subjects.get(sub.ID); !ok || orig.SchoolID != sub.SchoolID {
		return academic.Subject{}, academic.ErrSubjectNotFound
	}
	if repo.codeTaken(sub) {
		return academic.Subject{}, academic.ErrSubjectCodeExists
	}
	repo.subjects.set(sub.ID, sub)
	return sub, nil
}

func (repo *academicRepository) DeleteSubject(_ context.Context, schoolID, id string, _ ...core.DBExecutor) error {
	repo.subjects.Lock()
	defer repo.subjects.Unlock()

	if sub, ok := repo.subjects.get(id); !ok || sub.SchoolID != schoolID {
		return academic.ErrSubjectNotFound
	}
	repo.subjects.remove(id)
	return nil
}

// Students

func (repo *academicRepository) admissionTaken(std academic.Student) bool {
	_, ok := repo.students.find(func(s academic.Student) bool {
		return s.ID != std.ID && s.SchoolID == std.SchoolID && s.AdmissionNumber == std.AdmissionNumber
	})
	return ok
}

func (repo *academicRepository) CreateStudent(_ context.Context, std academic.Student, _ ...core.DBExecutor) (academic.Student, error) {
	repo.students.Lock()
	defer repo.students.Unlock()

	if repo.admissionTaken(std) {
		return academic.Student{}, academic.ErrAdmissionNumberExists
	}
	std.ID = core.NewID()
	repo.students.insert(std.ID, std)
	return std, nil
}

func matchStudent(filter *academic.StudentFilter) func(academic.Student) bool {
	return func(std academic.Student) bool {
		if filter == nil {
			return true
		}
		if !eq(filter.SchoolID, std.SchoolID) || !in(filter.IDs, std.ID) || !eq(filter.ClassID, std.ClassID) ||
			!eq(filter.ParentID, std.ParentID) || !eq(filter.Status, std.Status) {
			return false
		}
		return filter.Search == "" || contains(std.Name, filter.Search) || contains(std.AdmissionNumber, filter.Search)
	}
}

func (repo *academicRepository) QueryStudents(_ context.Context, filter *academic.StudentFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]academic.Student, error) {
	repo.students.RLock()
	defer repo.students.RUnlock()

	students := repo.students.filter(matchStudent(filter))
	sortRows(students, ordering, studentComparators, asc("name"))
	return students, nil
}

func (repo *academicRepository) CountStudents(_ context.Context, filter *academic.StudentFilter, _ ...core.DBExecutor) (int, error) {
	repo.students.RLock()
	defer repo.students.RUnlock()
	return len(repo.students.filter(matchStudent(filter))), nil
}

func (repo *academicRepository) GetStudent(_ context.Context, schoolID, id string, _ ...core.DBExecutor) (academic.Student, error) {
	repo.students.RLock()
	defer repo.students.RUnlock()

	if std, ok := repo.students.get(id); ok && std.SchoolID == schoolID {
		return std, nil
	}
	return academic.Student{}, academic.ErrStudentNotFound
}

func (repo *academicRepository) UpdateStudent(_ context.Context, std academic.Student, _ ...core.DBExecutor) (academic.Student, error) {
	repo.students.Lock()
	defer repo.students.Unlock()

	if orig, ok := repo.students.get(std.ID); !ok || orig.SchoolID != std.SchoolID {
		return academic.Student{}, academic.ErrStudentNotFound
	}
	if repo.admissionTaken(std) {
		return academic.Student{}, academic.ErrAdmissionNumberExists
	}
	repo.students.set(std.ID, std)
	return std, nil
}

func (repo *academicRepository) DeleteStudent(_ context.Context, schoolID, id string, _ ...core.DBExecutor) error {
	repo.students.Lock()
	defer repo.students.Unlock()

	if std, ok := repo.students.get(id); !ok || std.SchoolID != schoolID {
		return academic.ErrStudentNotFound
	}
	repo.students.remove(id)
	return nil
}

// updateActive applies fn to the active students of a class.
func (repo *academicRepository) updateActive(schoolID, classID string, fn func(*academic.Student)) int {
	repo.students.Lock()
	defer repo.students.Unlock()

	now := time.Now().UTC()
	var n int
	for _, std := range repo.students.filter(func(s academic.Student) bool {
		return s.SchoolID == schoolID && s.ClassID == classID && s.Status == academic.StatusActive
	}) {
		fn(&std)
		std.UpdatedAt = now
		repo.students.set(std.ID, std)
		n++
	}
	return n
}

func (repo *academicRepository) MoveStudents(_ context.Context, schoolID, fromClassID, toClassID string, _ ...core.DBExecutor) (int, error) {
	return repo.updateActive(schoolID, fromClassID, func(std *academic.Student) { std.ClassID = toClassID }), nil
}

func (repo *academicRepository) SetStudentsStatus(_ context.Context, schoolID, classID, status string, _ ...core.DBExecutor) (int, error) {
	return repo.updateActive(schoolID, classID, func(std *academic.Student) { std.Status = status }), nil
}
