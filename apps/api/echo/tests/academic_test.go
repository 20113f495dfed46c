package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edufam/edufam/core/academic"
	"github.com/edufam/edufam/tests"
)

func Test_academicApi_classes(t *testing.T) {
	e := setup(t)
	w := e.seed(t)

	ownerToken := e.token(t, w.owner)
	otherClass := testutil.CreateClass(t, e.academicRepo, w.other.ID, "Form 1", "2026", "")

	tests := []httpTest{
		{name: "Auth required", method: http.MethodGet, path: "/v1/classes", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "list: own school only", method: http.MethodGet, path: "/v1/classes", token: e.token(t, w.teacher), wantCode: http.StatusOK, wantData: marchallList(t, w.class)},
		{
			name: "list: platform admin needs a school", method: http.MethodGet, path: "/v1/classes", token: e.token(t, w.platform),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "school_id is required"}),
		},
		{
			name: "list: platform admin", method: http.MethodGet, path: "/v1/classes?school_id=" + w.other.ID, token: e.token(t, w.platform),
			wantCode: http.StatusOK, wantData: marchallList(t, otherClass),
		},
		{
			name: "list: invalid teacher_id", method: http.MethodGet, path: "/v1/classes?teacher_id=lol", token: ownerToken,
			wantCode: http.StatusBadRequest, wantData: []byte(`{"teacher_id": "must be a valid UUID"}`),
		},
		{name: "retrieve", method: http.MethodGet, path: "/v1/classes/" + w.class.ID, token: ownerToken, wantCode: http.StatusOK, wantData: marchallObj(t, w.class)},
		{
			name: "retrieve: other school hidden", method: http.MethodGet, path: "/v1/classes/" + otherClass.ID, token: ownerToken,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: academic.ErrClassNotFound.Error()}),
		},
		{
			name: "create: admin required", method: http.MethodPost, path: "/v1/classes", token: e.token(t, w.teacher),
			body: marchallObj(t, academic.NewClass{Name: "Form 2", AcademicYear: "2026"}), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "create: required fields", method: http.MethodPost, path: "/v1/classes", token: ownerToken, body: []byte(`{}`),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"name": "this field is required", "academic_year": "this field is required"}`),
		},
	}
	runHTTPTests(t, e.app, tests)

	t.Run("create", func(t *testing.T) {
		rec := serve(e.app, http.MethodPost, "/v1/classes", ownerToken, marchallObj(t, academic.NewClass{
			Name: "Form 2", Stream: "East", Level: 2, AcademicYear: "2026", ClassTeacherID: w.teacher.ID,
		}))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var got academic.Class
		unmarchall(t, rec, &got)
		assert.NotEmpty(t, got.ID)
		assert.Equal(t, w.school.ID, got.SchoolID)
		assert.Equal(t, w.teacher.ID, got.ClassTeacherID)

		// classes of a teacher: the one they lead & the ones they teach a subject in
		rec = serve(e.app, http.MethodGet, "/v1/classes?teacher_id="+w.teacher.ID, ownerToken)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallList(t, w.class, got)}, rec)

		rec = serve(e.app, http.MethodGet, "/v1/classes?teacher_id="+w.teacher2.ID, ownerToken)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallList(t, w.class)}, rec)
	})
}

func Test_academicApi_students(t *testing.T) {
	e := setup(t)
	w := e.seed(t)

	ownerToken := e.token(t, w.owner)
	parentToken := e.token(t, w.parent)

	tests := []httpTest{
		{name: "list: staff see the class", method: http.MethodGet, path: "/v1/students?class_id=" + w.class.ID, token: e.token(t, w.teacher), wantCode: http.StatusOK, wantData: marchallList(t, w.child, w.classmate)},
		{name: "list: parents see their children", method: http.MethodGet, path: "/v1/students", token: parentToken, wantCode: http.StatusOK, wantData: marchallList(t, w.child)},
		{
			name: "list: parents cannot widen the scope", method: http.MethodGet, path: "/v1/students?parent_id=" + w.otherParent.ID, token: parentToken,
			wantCode: http.StatusOK, wantData: marchallList(t, w.child),
		},
		{name: "retrieve: own child", method: http.MethodGet, path: "/v1/students/" + w.child.ID, token: parentToken, wantCode: http.StatusOK, wantData: marchallObj(t, w.child)},
		{
			name: "retrieve: other children hidden", method: http.MethodGet, path: "/v1/students/" + w.classmate.ID, token: parentToken,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: academic.ErrStudentNotFound.Error()}),
		},
		{
			name: "retrieve: other school hidden", method: http.MethodGet, path: "/v1/students/" + w.child.ID, token: e.token(t, w.otherAdmin),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: academic.ErrStudentNotFound.Error()}),
		},
		{
			name: "create: admin required", method: http.MethodPost, path: "/v1/students", token: e.token(t, w.teacher),
			body: marchallObj(t, academic.NewStudent{ClassID: w.class.ID, AdmissionNumber: "ADM003", Name: "Chausiku"}), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "create: admission number taken", method: http.MethodPost, path: "/v1/students", token: ownerToken,
			body: marchallObj(t, academic.NewStudent{ClassID: w.class.ID, AdmissionNumber: w.child.AdmissionNumber, Name: "Chausiku"}), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"admission_number": academic.ErrAdmissionNumberExists.Error()}),
		},
		{
			name: "create: invalid gender", method: http.MethodPost, path: "/v1/students", token: ownerToken,
			body: marchallObj(t, academic.NewStudent{ClassID: w.class.ID, AdmissionNumber: "ADM003", Name: "Chausiku", Gender: "lol"}), wantCode: http.StatusBadRequest,
			wantData: []byte(`{"gender": "must be one of: male female other"}`),
		},
	}
	runHTTPTests(t, e.app, tests)

	t.Run("create & update", func(t *testing.T) {
		rec := serve(e.app, http.MethodPost, "/v1/students", ownerToken, marchallObj(t, academic.NewStudent{
			ClassID: w.class.ID, ParentID: w.parent.ID, AdmissionNumber: "ADM003", Name: "Chausiku", Gender: "female",
		}))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var got academic.Student
		unmarchall(t, rec, &got)
		assert.Equal(t, w.school.ID, got.SchoolID)
		assert.Equal(t, academic.StatusActive, got.Status)

		// the parent now has two children
		rec = serve(e.app, http.MethodGet, "/v1/students", parentToken)
		require.Equal(t, http.StatusOK, rec.Code)
		var children []academic.Student
		unmarchall(t, rec, &children)
		assert.Len(t, children, 2)

		rec = serve(e.app, http.MethodPut, "/v1/students/"+got.ID, ownerToken, []byte(`{"status": "transferred"}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		unmarchall(t, rec, &got)
		assert.Equal(t, "transferred", got.Status)
	})
}

func Test_academicApi_subjects(t *testing.T) {
	e := setup(t)
	w := e.seed(t)

	ownerToken := e.token(t, w.owner)

	runHTTPTests(t, e.app, []httpTest{
		{name: "list: by class", method: http.MethodGet, path: "/v1/subjects?class_id=" + w.class.ID, token: ownerToken, wantCode: http.StatusOK, wantData: marchallList(t, w.math, w.english)},
		{name: "list: by teacher", method: http.MethodGet, path: "/v1/subjects?teacher_id=" + w.teacher2.ID, token: ownerToken, wantCode: http.StatusOK, wantData: marchallList(t, w.english)},
		{
			name: "create: code taken in class", method: http.MethodPost, path: "/v1/subjects", token: ownerToken,
			body: marchallObj(t, academic.NewSubject{ClassID: w.class.ID, Name: "Maths again", Code: w.math.Code}), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"code": academic.ErrSubjectCodeExists.Error()}),
		},
		{
			name: "delete: admin required", method: http.MethodDelete, path: "/v1/subjects/" + w.english.ID, token: e.token(t, w.teacher2),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{name: "delete", method: http.MethodDelete, path: "/v1/subjects/" + w.english.ID, token: ownerToken, wantCode: http.StatusNoContent},
		{name: "list: after delete", method: http.MethodGet, path: "/v1/subjects?class_id=" + w.class.ID, token: ownerToken, wantCode: http.StatusOK, wantData: marchallList(t, w.math)},
	})
}
