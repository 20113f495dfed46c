package tests

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edufam/edufam/core/announcement"
)

func Test_announcementApi(t *testing.T) {
	e := setup(t)
	w := e.seed(t)

	principalToken := e.token(t, w.principal)
	create := func(t *testing.T, na announcement.NewAnnouncement) announcement.Announcement {
		t.Helper()
		rec := serve(e.app, http.MethodPost, "/v1/announcements", principalToken, marchallObj(t, na))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var a announcement.Announcement
		unmarchall(t, rec, &a)
		return a
	}
	past := time.Now().UTC().Add(-time.Hour)
	future := time.Now().UTC().Add(24 * time.Hour)

	runHTTPTests(t, e.app, []httpTest{
		{
			name: "create: admin required", method: http.MethodPost, path: "/v1/announcements", token: e.token(t, w.teacher),
			body: marchallObj(t, announcement.NewAnnouncement{Title: "Holiday", Content: "No school"}), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "create: required fields", method: http.MethodPost, path: "/v1/announcements", token: principalToken, body: []byte(`{"title": "  "}`),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"title": "this field is required", "content": "this field is required"}`),
		},
		{
			name: "create: platform admins are not an audience", method: http.MethodPost, path: "/v1/announcements", token: principalToken,
			body:     marchallObj(t, announcement.NewAnnouncement{Title: "Holiday", Content: "No school", Audience: []string{"platform:admin"}}),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"audience[0]": "audience[0] must hold roles or role groups (admin:, staff:, parent:)"}`),
		},
		{
			name: "create: expiry before publication", method: http.MethodPost, path: "/v1/announcements", token: principalToken,
			body:     marchallObj(t, announcement.NewAnnouncement{Title: "Holiday", Content: "No school", PublishAt: &future, ExpiresAt: &past}),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"expires_at": "must be after publish_at"}`),
		},
		{
			name: "create: invalid priority", method: http.MethodPost, path: "/v1/announcements", token: principalToken,
			body:     marchallObj(t, announcement.NewAnnouncement{Title: "Holiday", Content: "No school", Priority: "urgent"}),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"priority": "must be one of: low normal high"}`),
		},
		{name: "feed: empty", method: http.MethodGet, path: "/v1/announcements/feed", token: e.token(t, w.parent), wantCode: http.StatusOK, wantData: marchallList(t)},
	})

	everyone := create(t, announcement.NewAnnouncement{Title: " Rentrée ", Content: "Classes resume on Monday"})
	parents := create(t, announcement.NewAnnouncement{Title: "PTA meeting", Content: "Saturday 9am", Audience: []string{"Parent:", "parent:"}, Priority: "HIGH"})
	teachers := create(t, announcement.NewAnnouncement{Title: "Grades due", Content: "Submit midterm grades", Audience: []string{"staff:teacher"}})
	scheduled := create(t, announcement.NewAnnouncement{Title: "Sports day", Content: "Next week", PublishAt: &future})

	t.Run("create", func(t *testing.T) {
		assert.Equal(t, "Rentrée", everyone.Title)
		assert.Equal(t, announcement.PriorityNormal, everyone.Priority)
		assert.Equal(t, []string{}, everyone.Audience)
		assert.True(t, everyone.Published)
		assert.NotNil(t, everyone.PublishedAt)
		assert.Equal(t, w.principal.ID, everyone.CreatedBy)

		assert.Equal(t, []string{"parent:"}, parents.Audience)
		assert.Equal(t, announcement.PriorityHigh, parents.Priority)

		assert.False(t, scheduled.Published)
		assert.Nil(t, scheduled.PublishedAt)
	})

	runHTTPTests(t, e.app, []httpTest{
		{name: "feed: parents", method: http.MethodGet, path: "/v1/announcements/feed", token: e.token(t, w.parent), wantCode: http.StatusOK, wantData: marchallList(t, everyone, parents)},
		{name: "feed: teachers", method: http.MethodGet, path: "/v1/announcements/feed", token: e.token(t, w.teacher), wantCode: http.StatusOK, wantData: marchallList(t, everyone, teachers)},
		{name: "feed: finance", method: http.MethodGet, path: "/v1/announcements/feed", token: e.token(t, w.finance), wantCode: http.StatusOK, wantData: marchallList(t, everyone)},
		{
			name: "feed: other school", method: http.MethodGet, path: "/v1/announcements/feed", token: e.token(t, w.otherAdmin),
			wantCode: http.StatusOK, wantData: marchallList(t),
		},
		{
			name: "query: admin required", method: http.MethodGet, path: "/v1/announcements", token: e.token(t, w.parent),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{name: "query: unpublished", method: http.MethodGet, path: "/v1/announcements?published=false", token: principalToken, wantCode: http.StatusOK, wantData: marchallList(t, scheduled)},
		{name: "query: priority", method: http.MethodGet, path: "/v1/announcements?priority=high", token: principalToken, wantCode: http.StatusOK, wantData: marchallList(t, parents)},
		{name: "query: search", method: http.MethodGet, path: "/v1/announcements?search=sports", token: principalToken, wantCode: http.StatusOK, wantData: marchallList(t, scheduled)},
		{
			name: "query: invalid published", method: http.MethodGet, path: "/v1/announcements?published=lol", token: principalToken,
			wantCode: http.StatusBadRequest,
		},
		{
			name: "retrieve: other school hidden", method: http.MethodGet, path: "/v1/announcements/" + everyone.ID, token: e.token(t, w.otherAdmin),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: announcement.ErrNotFound.Error()}),
		},
	})

	t.Run("publish a scheduled announcement", func(t *testing.T) {
		rec := serve(e.app, http.MethodPut, "/v1/announcements/"+scheduled.ID, principalToken, marchallObj(t, announcement.UpdateAnnouncement{PublishAt: &past}))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var got announcement.Announcement
		unmarchall(t, rec, &got)
		assert.True(t, got.Published)
		assert.NotNil(t, got.PublishedAt)
		assert.Equal(t, "Sports day", got.Title)

		rec = serve(e.app, http.MethodGet, "/v1/announcements/feed", e.token(t, w.finance))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var feed []announcement.Announcement
		unmarchall(t, rec, &feed)
		assert.Len(t, feed, 2)
	})

	t.Run("expired announcements leave the feed", func(t *testing.T) {
		soon := time.Now().UTC().Add(50 * time.Millisecond)
		create(t, announcement.NewAnnouncement{Title: "Flash", Content: "Gone soon", ExpiresAt: &soon})
		time.Sleep(100 * time.Millisecond)

		rec := serve(e.app, http.MethodGet, "/v1/announcements/feed", e.token(t, w.finance))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var feed []announcement.Announcement
		unmarchall(t, rec, &feed)
		for _, a := range feed {
			assert.NotEqual(t, "Flash", a.Title)
		}
	})

	t.Run("delete", func(t *testing.T) {
		rec := serve(e.app, http.MethodDelete, "/v1/announcements/"+teachers.ID, principalToken)
		require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

		rec = serve(e.app, http.MethodGet, "/v1/announcements/"+teachers.ID, principalToken)
		checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: announcement.ErrNotFound.Error()})}, rec)
	})
}
