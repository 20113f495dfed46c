package emailsvc

import (
	"encoding/json"
	"net/http"
	"net/mail"
	"sync"
	"testing"

	"github.com/sendgrid/rest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edufam/edufam/core"
)

var testConf = &core.Config{
	AppName:          "EduFam",
	FrontendBaseURL:  "http://localhost:5173",
	DefaultFromEmail: mail.Address{Name: "EduFam", Address: "noreply@edufam.test"},
	SendgridApiKey:   "sg-key",
}

func TestConsoleServiceMock(t *testing.T) {
	svc := NewConsoleServiceMock(testConf, core.NopLogger{})
	to := []mail.Address{{Name: "Jane", Address: "jane@x.com"}}

	svc.SendMessages(
		&core.EmailMessage{To: to, Subject: "Hi", BodyStr: "hello"},
		&core.EmailMessage{Subject: "nobody", BodyStr: "hello"}, // no recipients
		&core.EmailMessage{To: to, Subject: "empty"},             // no content
	)

	sent := svc.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "Hi", sent[0].Subject)
	assert.Equal(t, "hello", sent[0].TextContent)

	svc.Reset()
	assert.Empty(t, svc.SentMessages())
}

func TestJoinAddresses(t *testing.T) {
	got := joinAddresses([]mail.Address{{Address: "a@x.com"}, {Name: "B", Address: "b@x.com"}})
	assert.Equal(t, `<a@x.com>, "B" <b@x.com>`, got)
}

func TestSendgridService_send(t *testing.T) {
	svc := NewSendgridService(testConf, core.NopLogger{})

	var (
		mu  sync.Mutex
		req rest.Request
	)
	svc.api = func(r rest.Request) (*rest.Response, error) {
		mu.Lock()
		req = r
		mu.Unlock()
		return &rest.Response{StatusCode: http.StatusAccepted}, nil
	}

	svc.send(core.EmailMessage{
		To:          []mail.Address{{Name: "Jane", Address: "jane@x.com"}},
		Bcc:         []mail.Address{{Address: "audit@x.com"}},
		Subject:     "Reset your password",
		TextContent: "text",
		HTMLContent: "<p>html</p>",
	})

	assert.Equal(t, rest.Method(http.MethodPost), req.Method)
	assert.Equal(t, host+endpoint, req.BaseURL)
	assert.Equal(t, "Bearer sg-key", req.Headers["Authorization"])

	var body struct {
		From struct {
			Email string `json:"email"`
		} `json:"from"`
		Personalizations []struct {
			Subject string `json:"subject"`
			To      []struct {
				Email string `json:"email"`
			} `json:"to"`
		} `json:"personalizations"`
		Content []struct {
			Type string `json:"type"`
		} `json:"content"`
	}
	require.NoError(t, json.Unmarshal(req.Body, &body))
	assert.Equal(t, "noreply@edufam.test", body.From.Email)
	require.Len(t, body.Personalizations, 1)
	assert.Equal(t, "[EduFam] Reset your password", body.Personalizations[0].Subject)
	assert.Equal(t, "jane@x.com", body.Personalizations[0].To[0].Email)
	require.Len(t, body.Content, 2)
	assert.Equal(t, "text/plain", body.Content[0].Type)
}
