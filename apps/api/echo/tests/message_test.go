package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/edufam/edufam/apps/api/echo"
	"github.com/edufam/edufam/core"
	"github.com/edufam/edufam/core/message"
)

func Test_messageApi(t *testing.T) {
	e := setup(t)
	w := e.seed(t)

	parentToken := e.token(t, w.parent)
	teacherToken := e.token(t, w.teacher)

	runHTTPTests(t, e.app, []httpTest{
		{name: "Auth required", method: http.MethodPost, path: "/v1/messages", body: []byte(`{}`), wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "send: required fields", method: http.MethodPost, path: "/v1/messages", token: parentToken, body: []byte(`{}`),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"recipient_id": "this field is required", "body": "this field is required"}`),
		},
		{
			name: "send: to self", method: http.MethodPost, path: "/v1/messages", token: parentToken,
			body:     marchallObj(t, message.NewMessage{RecipientID: w.parent.ID, Body: "hello"}),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"recipient_id": "cannot send a message to yourself"}`),
		},
		{
			name: "send: other school", method: http.MethodPost, path: "/v1/messages", token: parentToken,
			body:     marchallObj(t, message.NewMessage{RecipientID: w.otherAdmin.ID, Body: "hello"}),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"recipient_id": "unknown recipient"}`),
		},
		{
			name: "send: unknown user", method: http.MethodPost, path: "/v1/messages", token: parentToken,
			body:     marchallObj(t, message.NewMessage{RecipientID: core.NewID(), Body: "hello"}),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"recipient_id": "unknown recipient"}`),
		},
		{name: "inbox: empty", method: http.MethodGet, path: "/v1/messages/inbox", token: teacherToken, wantCode: http.StatusOK, wantData: marchallList(t)},
	})

	var sent message.Message
	t.Run("send", func(t *testing.T) {
		rec := serve(e.app, http.MethodPost, "/v1/messages", parentToken, marchallObj(t, message.NewMessage{
			RecipientID: w.teacher.ID, Subject: " Homework ", Body: "How is Amani doing in maths?",
		}))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		unmarchall(t, rec, &sent)
		assert.Equal(t, w.school.ID, sent.SchoolID)
		assert.Equal(t, w.parent.ID, sent.SenderID)
		assert.Equal(t, "Homework", sent.Subject)
		assert.Nil(t, sent.ReadAt)
	})

	runHTTPTests(t, e.app, []httpTest{
		{name: "inbox", method: http.MethodGet, path: "/v1/messages/inbox", token: teacherToken, wantCode: http.StatusOK, wantData: marchallList(t, sent)},
		{name: "inbox: unread", method: http.MethodGet, path: "/v1/messages/inbox?unread=true", token: teacherToken, wantCode: http.StatusOK, wantData: marchallList(t, sent)},
		{name: "outbox", method: http.MethodGet, path: "/v1/messages/outbox", token: parentToken, wantCode: http.StatusOK, wantData: marchallList(t, sent)},
		{name: "outbox: others see nothing", method: http.MethodGet, path: "/v1/messages/outbox", token: teacherToken, wantCode: http.StatusOK, wantData: marchallList(t)},
		{
			name: "unread count", method: http.MethodGet, path: "/v1/messages/unread-count", token: teacherToken,
			wantCode: http.StatusOK, wantData: marchallObj(t, echoapi.CountResponse{Count: 1}),
		},
		{
			name: "read: recipient only", method: http.MethodPost, path: "/v1/messages/" + sent.ID + "/read", token: parentToken,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: message.ErrNotFound.Error()}),
		},
		{
			name: "read: invalid id", method: http.MethodPost, path: "/v1/messages/lol/read", token: teacherToken,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: message.ErrNotFound.Error()}),
		},
	})

	t.Run("read", func(t *testing.T) {
		rec := serve(e.app, http.MethodPost, "/v1/messages/"+sent.ID+"/read", teacherToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var read message.Message
		unmarchall(t, rec, &read)
		require.NotNil(t, read.ReadAt)

		// reading again keeps the first read time
		rec = serve(e.app, http.MethodPost, "/v1/messages/"+sent.ID+"/read", teacherToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var again message.Message
		unmarchall(t, rec, &again)
		require.NotNil(t, again.ReadAt)
		assert.True(t, read.ReadAt.Equal(*again.ReadAt))

		rec = serve(e.app, http.MethodGet, "/v1/messages/unread-count", teacherToken)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, echoapi.CountResponse{Count: 0})}, rec)

		rec = serve(e.app, http.MethodGet, "/v1/messages/inbox?unread=true", teacherToken)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallList(t)}, rec)
	})
}
