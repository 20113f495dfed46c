package tests

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edufam/edufam/core/announcement"
	"github.com/edufam/edufam/core/message"
	"github.com/edufam/edufam/core/realtime"
	realtimesvc "github.com/edufam/edufam/services/realtime"
)

type wsFrame struct {
	Event   string          `json:"event"`
	Topic   string          `json:"topic"`
	Ref     string          `json:"ref"`
	Payload json.RawMessage `json:"payload"`
}

func dialRealtime(t *testing.T, srv *httptest.Server, token string) (*websocket.Conn, *http.Response, error) {
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/realtime"
	if token != "" {
		url += "?token=" + token
	}
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if conn != nil {
		t.Cleanup(func() { _ = conn.Close() })
	}
	return conn, resp, err
}

func readFrame(t *testing.T, conn *websocket.Conn) wsFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f wsFrame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

// sendFrame writes a client frame and returns the reply status & response.
func sendFrame(t *testing.T, conn *websocket.Conn, event, topic, ref string) realtimesvc.ReplyPayload {
	t.Helper()
	require.NoError(t, conn.WriteJSON(realtimesvc.Message{Event: event, Topic: topic, Ref: ref}))
	f := readFrame(t, conn)
	require.Equal(t, realtimesvc.EventReply, f.Event)
	assert.Equal(t, topic, f.Topic)
	assert.Equal(t, ref, f.Ref)
	var reply realtimesvc.ReplyPayload
	require.NoError(t, json.Unmarshal(f.Payload, &reply))
	return reply
}

func Test_realtimeApi(t *testing.T) {
	e := setup(t)
	w := e.seed(t)

	srv := httptest.NewServer(e.app)
	t.Cleanup(srv.Close)

	t.Run("token required", func(t *testing.T) {
		_, resp, err := dialRealtime(t, srv, "")
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("invalid token", func(t *testing.T) {
		_, resp, err := dialRealtime(t, srv, "lol")
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	conn, _, err := dialRealtime(t, srv, e.token(t, w.teacher))
	require.NoError(t, err)

	userTopic := realtime.UserTopic(w.teacher.ID)
	annTopic := realtime.SchoolTopic(w.school.ID, realtime.ChannelAnnouncements)

	t.Run("join", func(t *testing.T) {
		assert.Equal(t, realtimesvc.ReplyPayload{Status: realtimesvc.StatusOK}, sendFrame(t, conn, realtimesvc.EventJoin, userTopic, "1"))
		assert.Equal(t, realtimesvc.ReplyPayload{Status: realtimesvc.StatusOK}, sendFrame(t, conn, realtimesvc.EventJoin, annTopic, "2"))

		denied := realtimesvc.ReplyPayload{Status: realtimesvc.StatusError, Response: "unauthorized topic"}
		assert.Equal(t, denied, sendFrame(t, conn, realtimesvc.EventJoin, realtime.UserTopic(w.parent.ID), "3"))
		assert.Equal(t, denied, sendFrame(t, conn, realtimesvc.EventJoin, realtime.SchoolTopic(w.other.ID, realtime.ChannelAnnouncements), "4"))

		assert.Equal(t, realtimesvc.ReplyPayload{Status: realtimesvc.StatusOK}, sendFrame(t, conn, realtimesvc.EventHeartbeat, "phoenix", "5"))
		assert.Equal(t, realtimesvc.ReplyPayload{Status: realtimesvc.StatusError, Response: "unknown event"}, sendFrame(t, conn, "lol", "phoenix", "6"))
	})

	t.Run("messages are pushed to the recipient", func(t *testing.T) {
		rec := serve(e.app, http.MethodPost, "/v1/messages", e.token(t, w.parent), marchallObj(t, message.NewMessage{
			RecipientID: w.teacher.ID, Body: "Is there school tomorrow?",
		}))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		f := readFrame(t, conn)
		assert.Equal(t, realtime.EventInsert, f.Event)
		assert.Equal(t, userTopic, f.Topic)
		var msg message.Message
		require.NoError(t, json.Unmarshal(f.Payload, &msg))
		assert.Equal(t, w.parent.ID, msg.SenderID)
		assert.Equal(t, "Is there school tomorrow?", msg.Body)
	})

	t.Run("announcements are pushed to the school", func(t *testing.T) {
		rec := serve(e.app, http.MethodPost, "/v1/announcements", e.token(t, w.principal), marchallObj(t, announcement.NewAnnouncement{
			Title: "Closed tomorrow", Content: "Public holiday",
		}))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		f := readFrame(t, conn)
		assert.Equal(t, realtime.EventInsert, f.Event)
		assert.Equal(t, annTopic, f.Topic)
		var a announcement.Announcement
		require.NoError(t, json.Unmarshal(f.Payload, &a))
		assert.Equal(t, "Closed tomorrow", a.Title)
	})

	t.Run("leave", func(t *testing.T) {
		assert.Equal(t, realtimesvc.ReplyPayload{Status: realtimesvc.StatusOK}, sendFrame(t, conn, realtimesvc.EventLeave, annTopic, "7"))

		rec := serve(e.app, http.MethodPost, "/v1/announcements", e.token(t, w.principal), marchallObj(t, announcement.NewAnnouncement{
			Title: "Unheard", Content: "Nobody listens",
		}))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		// the next frame is the heartbeat reply, not the announcement
		assert.Equal(t, realtimesvc.ReplyPayload{Status: realtimesvc.StatusOK}, sendFrame(t, conn, realtimesvc.EventHeartbeat, "phoenix", "8"))
	})
}
