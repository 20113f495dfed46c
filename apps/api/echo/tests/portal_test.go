package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edufam/edufam/core/academic"
	"github.com/edufam/edufam/core/audit"
	"github.com/edufam/edufam/core/dashboard"
	"github.com/edufam/edufam/core/navigation"
	"github.com/edufam/edufam/core/user"
)

func Test_portalApi_navigation(t *testing.T) {
	e := setup(t)
	w := e.seed(t)

	keys := func(t *testing.T, usr user.User) []string {
		t.Helper()
		rec := serve(e.app, http.MethodGet, "/v1/navigation", e.token(t, usr))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var items []navigation.Item
		unmarchall(t, rec, &items)
		keys := make([]string, len(items))
		for i, it := range items {
			keys[i] = it.Key
		}
		return keys
	}

	tests := []struct {
		name string
		usr  user.User
		want []string
	}{
		{"platform admin", w.platform, []string{"dashboard", "schools", "users", "audit-logs", "settings"}},
		{"parent", w.parent, []string{"dashboard", "students", "grades", "timetable", "attendance", "fees", "announcements", "messages", "reports", "settings"}},
		{"teacher", w.teacher, []string{"dashboard", "classes", "subjects", "students", "grades", "timetable", "attendance", "announcements", "messages", "reports", "settings"}},
		{"finance", w.finance, []string{"dashboard", "classes", "students", "grades", "timetable", "fees", "payments", "announcements", "messages", "settings"}},
		{"owner", w.owner, []string{
			"dashboard", "users", "classes", "subjects", "students", "grades", "grade-approvals", "timetable", "attendance",
			"fees", "payments", "announcements", "messages", "reports", "audit-logs", "settings",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, keys(t, tt.usr))
		})
	}

	t.Run("Auth required", func(t *testing.T) {
		rec := serve(e.app, http.MethodGet, "/v1/navigation", "")
		checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)}, rec)
	})
}

func Test_portalApi_dashboard(t *testing.T) {
	e := setup(t)
	w := e.seed(t)

	stats := func(t *testing.T, usr user.User, query string) dashboard.Stats {
		t.Helper()
		rec := serve(e.app, http.MethodGet, "/v1/dashboard"+query, e.token(t, usr))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var s dashboard.Stats
		unmarchall(t, rec, &s)
		return s
	}

	t.Run("platform", func(t *testing.T) {
		s := stats(t, w.platform, "")
		assert.Equal(t, dashboard.PortalPlatform, s.Portal)
		assert.Equal(t, 2, s.Counts["schools"])
		assert.Equal(t, 2, s.Counts["active_schools"])

		s = stats(t, w.platform, "?school_id="+w.other.ID)
		assert.Equal(t, 1, s.Counts["users"])
	})

	t.Run("admin", func(t *testing.T) {
		s := stats(t, w.owner, "")
		assert.Equal(t, dashboard.PortalAdmin, s.Portal)
		assert.Equal(t, map[string]int{"students": 2, "teachers": 2, "classes": 1, "grades_pending_approval": 0}, s.Counts)
		require.NotNil(t, s.Fees)
		assert.Equal(t, 0.0, s.Fees.Expected)
	})

	t.Run("teacher", func(t *testing.T) {
		s := stats(t, w.teacher, "")
		assert.Equal(t, dashboard.PortalTeacher, s.Portal)
		assert.Equal(t, map[string]int{"classes": 1, "subjects": 1, "draft_grades": 0, "rejected_grades": 0}, s.Counts)
		assert.Nil(t, s.Fees)
	})

	t.Run("finance", func(t *testing.T) {
		s := stats(t, w.finance, "")
		assert.Equal(t, dashboard.PortalFinance, s.Portal)
		assert.Equal(t, 0, s.Counts["payments_today"])
		assert.Equal(t, map[string]float64{"collected_today": 0}, s.Amounts)
		assert.NotNil(t, s.Fees)
	})

	t.Run("parent", func(t *testing.T) {
		s := stats(t, w.parent, "")
		assert.Equal(t, dashboard.PortalParent, s.Portal)
		assert.Equal(t, 1, s.Counts["children"])
		assert.Equal(t, 0, s.Counts["released_grades"])
		assert.Equal(t, 0.0, s.Amounts["balance"])
	})
}

func Test_auditApi(t *testing.T) {
	e := setup(t)
	w := e.seed(t)

	ownerToken := e.token(t, w.owner)
	rec := serve(e.app, http.MethodPost, "/v1/classes", e.token(t, w.principal), marchallObj(t, academic.NewClass{Name: "Form 3", AcademicYear: "2026"}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var cls academic.Class
	unmarchall(t, rec, &cls)

	runHTTPTests(t, e.app, []httpTest{
		{name: "admin required", method: http.MethodGet, path: "/v1/audit-logs", token: e.token(t, w.teacher), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{name: "other schools see nothing", method: http.MethodGet, path: "/v1/audit-logs", token: e.token(t, w.otherAdmin), wantCode: http.StatusOK, wantData: marchallList(t)},
		{
			name: "invalid actor_id", method: http.MethodGet, path: "/v1/audit-logs?actor_id=lol", token: ownerToken,
			wantCode: http.StatusBadRequest, wantData: []byte(`{"actor_id": "must be a valid UUID"}`),
		},
		{name: "unknown action", method: http.MethodGet, path: "/v1/audit-logs?action=classes.delete", token: ownerToken, wantCode: http.StatusOK, wantData: marchallList(t)},
	})

	t.Run("entries carry the actor", func(t *testing.T) {
		rec := serve(e.app, http.MethodGet, "/v1/audit-logs?action=CLASSES.CREATE&actor_id="+w.principal.ID, ownerToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var entries []audit.Entry
		unmarchall(t, rec, &entries)
		require.Len(t, entries, 1)
		assert.Equal(t, w.school.ID, entries[0].SchoolID)
		assert.Equal(t, w.principal.ID, entries[0].ActorID)
		assert.Equal(t, "class", entries[0].Resource)
		assert.Equal(t, cls.ID, entries[0].ResourceID)
		assert.NotEmpty(t, entries[0].IP)
	})
}
