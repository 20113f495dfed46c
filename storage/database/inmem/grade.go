package inmemdb

import (
	"context"
	"strings"

	"github.com/edufam/edufam/core"
	"github.com/edufam/edufam/core/grade"
)

var gradeComparators = comparators[grade.Grade]{
	"term":       func(a, b grade.Grade) int { return strings.Compare(a.Term, b.Term) },
	"exam_type":  func(a, b grade.Grade) int { return strings.Compare(a.ExamType, b.ExamType) },
	"percentage": func(a, b grade.Grade) int { return cmpFloat(a.Percentage, b.Percentage) },
	"status":     func(a, b grade.Grade) int { return strings.Compare(a.Status, b.Status) },
	"created_at": func(a, b grade.Grade) int { return cmpTime(a.CreatedAt, b.CreatedAt) },
	"updated_at": func(a, b grade.Grade) int { return cmpTime(a.UpdatedAt, b.UpdatedAt) },
}

type gradeRepository struct {
	db *table[grade.Grade]
}

var _ grade.Repository = (*gradeRepository)(nil)

func NewGradeRepository(db *DB) grade.Repository {
	return &gradeRepository{db: db.grade}
}

func (repo *gradeRepository) byKey(schoolID, studentID, subjectID, term, examType string) (grade.Grade, bool) {
	return repo.db.find(func(g grade.Grade) bool {
		return g.SchoolID == schoolID && g.StudentID == studentID && g.SubjectID == subjectID &&
			g.Term == term && g.ExamType == examType
	})
}

func (repo *gradeRepository) GetGradeByKey(_ context.Context, schoolID, studentID, subjectID, term, examType string, _ ...core.DBExecutor) (grade.Grade, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if g, ok := repo.byKey(schoolID, studentID, subjectID, term, examType); ok {
		return g, nil
	}
	return grade.Grade{}, grade.ErrNotFound
}

func (repo *gradeRepository) CreateGrade(_ context.Context, g grade.Grade, _ ...core.DBExecutor) (grade.Grade, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.byKey(g.SchoolID, g.StudentID, g.SubjectID, g.Term, g.ExamType); ok {
		return grade.Grade{}, errDuplicateKey("grades")
	}
	g.ID = core.NewID()
	repo.db.insert(g.ID, g)
	return g, nil
}

func (repo *gradeRepository) UpdateGrade(_ context.Context, g grade.Grade, _ ...core.DBExecutor) (grade.Grade, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if orig, ok := repo.db.get(g.ID); !ok || orig.SchoolID != g.SchoolID {
		return grade.Grade{}, grade.ErrNotFound
	}
	repo.db.set(g.ID, g)
	return g, nil
}

func matchGrade(filter *grade.Filter) func(grade.Grade) bool {
	return func(g grade.Grade) bool {
		if filter == nil {
			return true
		}
		return eq(filter.SchoolID, g.SchoolID) && in(filter.IDs, g.ID) &&
			eq(filter.StudentID, g.StudentID) && in(filter.StudentIDs, g.StudentID) &&
			eq(filter.ClassID, g.ClassID) &&
			eq(filter.SubjectID, g.SubjectID) && in(filter.SubjectIDs, g.SubjectID) &&
			eq(filter.Term, g.Term) && eq(filter.ExamType, g.ExamType) && in(filter.Statuses, g.Status)
	}
}

func (repo *gradeRepository) QueryGrades(_ context.Context, filter *grade.Filter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]grade.Grade, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	grades := repo.db.filter(matchGrade(filter))
	sortRows(grades, ordering, gradeComparators, asc("created_at"))
	return grades, nil
}

func matchSelector(schoolID string, sel grade.Selector, from []string) func(grade.Grade) bool {
	return func(g grade.Grade) bool {
		if g.SchoolID != schoolID || !core.ContainsString(from, g.Status) {
			return false
		}
		if !in(sel.SubjectIDs, g.SubjectID) {
			return false
		}
		if len(sel.IDs) > 0 {
			return core.ContainsString(sel.IDs, g.ID)
		}
		return eq(sel.ClassID, g.ClassID) && eq(sel.Term, g.Term) &&
			eq(sel.ExamType, g.ExamType) && eq(sel.SubjectID, g.SubjectID)
	}
}

// TransitionGrades holds the table lock for the whole move, like the single UPDATE it stands for.
func (repo *gradeRepository) TransitionGrades(_ context.Context, schoolID string, sel grade.Selector, t grade.Transition, change grade.StatusChange, _ ...core.DBExecutor) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	at := change.At.UTC()
	grades := repo.db.filter(matchSelector(schoolID, sel, t.From))
	for _, g := range grades {
		g.Status = t.To
		g.UpdatedAt = at
		switch t.To {
		case grade.StatusPendingApproval:
			g.SubmittedBy, g.SubmittedAt = change.ActorID, at
			g.RejectedReason = ""
		case grade.StatusApproved:
			g.ApprovedBy, g.ApprovedAt = change.ActorID, at
		case grade.StatusRejected:
			g.RejectedReason = change.Reason
		case grade.StatusReleased:
			g.ReleasedBy, g.ReleasedAt = change.ActorID, at
		}
		repo.db.set(g.ID, g)
	}
	return len(grades), nil
}

func (repo *gradeRepository) CountGradesByStatus(_ context.Context, filter *grade.Filter, _ ...core.DBExecutor) (map[string]int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	counts := make(map[string]int)
	for _, g := range repo.db.filter(matchGrade(filter)) {
		counts[g.Status]++
	}
	return counts, nil
}
