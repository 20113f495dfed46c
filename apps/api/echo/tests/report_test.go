package tests

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/edufam/edufam/core/academic"
	"github.com/edufam/edufam/core/attendance"
	"github.com/edufam/edufam/core/grade"
	"github.com/edufam/edufam/core/report"
	"github.com/edufam/edufam/services/spreadsheet"
	"github.com/edufam/edufam/tests"
)

func (e *env) createGrade(t *testing.T, std academic.Student, sub academic.Subject, score float64, status string) grade.Grade {
	t.Helper()
	g := grade.Grade{
		SchoolID:  std.SchoolID,
		StudentID: std.ID,
		ClassID:   std.ClassID,
		SubjectID: sub.ID,
		Term:      grade.TermOne,
		ExamType:  grade.ExamEndterm,
		Status:    status,
	}
	g.SetScore(score, grade.DefaultMaxScore)
	g, err := e.gradeRepo.CreateGrade(context.Background(), g)
	require.NoError(t, err)
	return g
}

func Test_reportApi(t *testing.T) {
	e := setup(t)
	w := e.seed(t)

	parentToken := e.token(t, w.parent)
	principalToken := e.token(t, w.principal)
	e.createGrade(t, w.child, w.math, 72, grade.StatusReleased)
	e.createGrade(t, w.child, w.english, 90, grade.StatusApproved)
	e.createGrade(t, w.classmate, w.math, 30, grade.StatusDraft)

	rec := serve(e.app, http.MethodPost, "/v1/attendance", e.token(t, w.teacher), marchallObj(t, map[string]interface{}{
		"class_id": w.class.ID, "date": "2024-03-04",
		"marks": []attendance.Mark{{StudentID: w.child.ID, Status: attendance.StatusPresent}, {StudentID: w.classmate.ID, Status: attendance.StatusAbsent}},
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	cardPath := "/v1/reports/students/" + w.child.ID + "/report-card"
	card := func(t *testing.T, token, query string) report.ReportCard {
		t.Helper()
		rec := serve(e.app, http.MethodGet, cardPath+query, token)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var c report.ReportCard
		unmarchall(t, rec, &c)
		return c
	}

	t.Run("report card: released grades only", func(t *testing.T) {
		c := card(t, parentToken, "")
		assert.Equal(t, w.child.ID, c.Student.ID)
		assert.Equal(t, w.class.ID, c.Class.ID)
		require.Len(t, c.Results, 1)
		assert.Equal(t, "math", c.Results[0].Code)
		assert.Equal(t, "Mathematics", c.Results[0].Subject)
		assert.Equal(t, 72.0, c.Average)
		assert.Equal(t, "B", c.Letter)
		assert.Nil(t, c.Attendance)

		// parents cannot ask for the grades not released yet
		c = card(t, parentToken, "?include_unreleased=true")
		assert.Len(t, c.Results, 1)
	})

	t.Run("report card: staff may include approved grades", func(t *testing.T) {
		c := card(t, principalToken, "?include_unreleased=true&term=TERM1")
		assert.Equal(t, grade.TermOne, c.Term)
		require.Len(t, c.Results, 2)
		assert.Equal(t, "eng", c.Results[0].Code)
		assert.Equal(t, grade.StatusApproved, c.Results[0].Status)
		assert.Equal(t, 81.0, c.Average)
		assert.Equal(t, "A", c.Letter)
	})

	t.Run("report card: attendance", func(t *testing.T) {
		c := card(t, parentToken, "?from=2024-03-01&to=2024-03-31")
		require.NotNil(t, c.Attendance)
		assert.Equal(t, attendance.StudentSummary{StudentID: w.child.ID, Present: 1, Total: 1, Rate: 100}, *c.Attendance)

		c = card(t, parentToken, "?from=2025-01-01")
		require.NotNil(t, c.Attendance)
		assert.Equal(t, attendance.StudentSummary{StudentID: w.child.ID}, *c.Attendance)
	})

	runHTTPTests(t, e.app, []httpTest{
		{
			name: "report card: other children hidden", method: http.MethodGet, path: "/v1/reports/students/" + w.classmate.ID + "/report-card", token: parentToken,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: academic.ErrStudentNotFound.Error()}),
		},
		{
			name: "report card: invalid term", method: http.MethodGet, path: cardPath + "?term=term9", token: principalToken,
			wantCode: http.StatusBadRequest, wantData: []byte(`{"term": "must be one of: term1 term2 term3"}`),
		},
		{
			name: "grades sheet: staff required", method: http.MethodGet, path: "/v1/reports/grades.xlsx?class_id=" + w.class.ID, token: parentToken,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "grades sheet: class required", method: http.MethodGet, path: "/v1/reports/grades.xlsx", token: principalToken,
			wantCode: http.StatusBadRequest, wantData: []byte(`{"class_id": "this field is required"}`),
		},
		{
			name: "attendance sheet: class required", method: http.MethodGet, path: "/v1/reports/attendance.xlsx", token: principalToken,
			wantCode: http.StatusBadRequest, wantData: []byte(`{"class_id": "this field is required"}`),
		},
		{
			name: "attendance sheet: other school class", method: http.MethodGet, path: "/v1/reports/attendance.xlsx?class_id=" + w.class.ID, token: e.token(t, w.otherAdmin),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: academic.ErrClassNotFound.Error()}),
		},
	})

	openSheet := func(t *testing.T, path string) *excelize.File {
		t.Helper()
		rec := serve(e.app, http.MethodGet, path, principalToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, spreadsheet.ContentType, rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")

		f, err := excelize.OpenReader(rec.Body)
		require.NoError(t, err)
		t.Cleanup(func() { _ = f.Close() })
		return f
	}
	cell := func(t *testing.T, f *excelize.File, axis string) string {
		t.Helper()
		v, err := f.GetCellValue("Sheet1", axis)
		require.NoError(t, err)
		return v
	}

	t.Run("grades sheet", func(t *testing.T) {
		f := openSheet(t, "/v1/reports/grades.xlsx?class_id="+w.class.ID+"&term=term1")
		header := []string{"Admission No", "Name", "eng", "math", "Mean", "Grade"}
		for i, want := range header {
			axis, err := excelize.CoordinatesToCellName(i+1, 3)
			require.NoError(t, err)
			assert.Equal(t, want, cell(t, f, axis))
		}
		// students sorted by name; drafts are left out
		assert.Equal(t, w.child.AdmissionNumber, cell(t, f, "A4"))
		assert.Equal(t, "", cell(t, f, "C4"))
		assert.Equal(t, "72", cell(t, f, "D4"))
		assert.Equal(t, "B", cell(t, f, "F4"))
		assert.Equal(t, w.classmate.AdmissionNumber, cell(t, f, "A5"))
		assert.Equal(t, "", cell(t, f, "D5"))
	})

	t.Run("attendance sheet", func(t *testing.T) {
		f := openSheet(t, "/v1/reports/attendance.xlsx?class_id="+w.class.ID)
		assert.Equal(t, "Present", cell(t, f, "C3"))
		assert.Equal(t, "1", cell(t, f, "C4")) // child present
		assert.Equal(t, "100", cell(t, f, "H4"))
		assert.Equal(t, "1", cell(t, f, "D5")) // classmate absent
		assert.Equal(t, "0", cell(t, f, "H5"))
	})

	t.Run("report card: subjects of earlier classes", func(t *testing.T) {
		lower := testutil.CreateClass(t, e.academicRepo, w.school.ID, "Grade 8", "2025", "")
		history := testutil.CreateSubject(t, e.academicRepo, w.school.ID, lower.ID, "History", "hist", w.teacher.ID)
		g := grade.Grade{
			SchoolID: w.school.ID, StudentID: w.child.ID, ClassID: lower.ID, SubjectID: history.ID,
			Term: grade.TermOne, ExamType: grade.ExamEndterm, Status: grade.StatusReleased,
		}
		g.SetScore(60, grade.DefaultMaxScore)
		_, err := e.gradeRepo.CreateGrade(context.Background(), g)
		require.NoError(t, err)

		c := card(t, parentToken, "")
		require.Len(t, c.Results, 2)
		assert.Equal(t, "hist", c.Results[0].Code)
		assert.Equal(t, "History", c.Results[0].Subject)
		assert.Equal(t, "math", c.Results[1].Code)
		assert.Equal(t, w.class.ID, c.Class.ID)
	})
}
