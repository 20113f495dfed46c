package grade_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edufam/edufam/core"
	"github.com/edufam/edufam/core/audit"
	"github.com/edufam/edufam/core/grade"
	"github.com/edufam/edufam/core/user"
	realtimesvc "github.com/edufam/edufam/services/realtime"
	inmemdb "github.com/edufam/edufam/storage/database/inmem"
	"github.com/edufam/edufam/tests"
)

func TestService_Submit_teacherScope(t *testing.T) {
	ctx := context.Background()
	db := inmemdb.Open()
	academics := inmemdb.NewAcademicRepository(db)
	repo := inmemdb.NewGradeRepository(db)
	auditSvc := audit.NewService(inmemdb.NewAuditRepository(db), core.NopLogger{})
	svc := grade.NewService(nil, repo, academics, auditSvc, realtimesvc.NewHub(nil), nil, core.NopLogger{})

	schoolID := core.NewID()
	homeroom := user.User{ID: core.NewID(), SchoolID: schoolID, Roles: []string{user.RoleTeacher}}
	mathTeacher := user.User{ID: core.NewID(), SchoolID: schoolID, Roles: []string{user.RoleTeacher}}
	bursar := user.User{ID: core.NewID(), SchoolID: schoolID, Roles: []string{user.RoleFinanceOfficer}}

	cls := testutil.CreateClass(t, academics, schoolID, "Form 1", "2026", homeroom.ID)
	math := testutil.CreateSubject(t, academics, schoolID, cls.ID, "Mathematics", "math", mathTeacher.ID)
	eng := testutil.CreateSubject(t, academics, schoolID, cls.ID, "English", "eng", core.NewID())
	std := testutil.CreateStudent(t, academics, schoolID, cls.ID, "", "ADM001", "Amani Otieno")

	draft := func(subjectID string) grade.Grade {
		g := grade.Grade{
			SchoolID: schoolID, StudentID: std.ID, ClassID: cls.ID, SubjectID: subjectID,
			Term: grade.TermOne, ExamType: grade.ExamEndterm, Status: grade.StatusDraft,
		}
		g.SetScore(50, grade.DefaultMaxScore)
		g, err := repo.CreateGrade(ctx, g)
		require.NoError(t, err)
		return g
	}
	draft(math.ID)
	engGrade := draft(eng.ID)
	classSel := grade.Selector{ClassID: cls.ID, Term: grade.TermOne, ExamType: grade.ExamEndterm}

	_, err := svc.Submit(ctx, schoolID, bursar, classSel)
	assert.Equal(t, core.ErrForbidden, err)

	_, err = svc.Submit(ctx, schoolID, mathTeacher, grade.Selector{IDs: []string{engGrade.ID}})
	assert.Equal(t, grade.ErrInvalidTransition, err, "ids outside the taught subjects are ignored")

	res, err := svc.Submit(ctx, schoolID, mathTeacher, classSel)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count)

	got, err := repo.GetGradeByKey(ctx, schoolID, std.ID, eng.ID, grade.TermOne, grade.ExamEndterm)
	require.NoError(t, err)
	assert.Equal(t, grade.StatusDraft, got.Status)
	got, err = repo.GetGradeByKey(ctx, schoolID, std.ID, math.ID, grade.TermOne, grade.ExamEndterm)
	require.NoError(t, err)
	assert.Equal(t, grade.StatusPendingApproval, got.Status)

	// the class teacher may submit every subject of the class
	res, err = svc.Submit(ctx, schoolID, homeroom, classSel)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count)
	got, err = repo.GetGradeByKey(ctx, schoolID, std.ID, eng.ID, grade.TermOne, grade.ExamEndterm)
	require.NoError(t, err)
	assert.Equal(t, grade.StatusPendingApproval, got.Status)
}
