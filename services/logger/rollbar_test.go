package logsvc

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edufam/edufam/core/user"
)

func newTestLogger() (*RollbarLogger, *test.Hook) {
	std, hook := test.NewNullLogger()
	std.SetLevel(logrus.DebugLevel)
	l := NewRollbarLoggerWithEntry(std.WithField("component", "TEST"))
	l.Enable(false)
	return l, hook
}

func TestRollbarLogger(t *testing.T) {
	l, hook := newTestLogger()
	usr := user.User{ID: "u1", Username: "jdoe", Email: "jdoe@x.com"}
	err := errors.New("boom")

	l.Warn("publishing grades event", err, usr, map[string]interface{}{"topic": "school:s1:grades"})

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "publishing grades event", entry.Message)
	assert.Equal(t, "TEST", entry.Data["component"])
	assert.Equal(t, "u1", entry.Data["user_id"])
	assert.Equal(t, err, entry.Data[logrus.ErrorKey])
	assert.Equal(t, "school:s1:grades", entry.Data["topic"])
}

func TestRollbarLogger_prepare(t *testing.T) {
	l, _ := newTestLogger()
	u1, u2 := user.User{ID: "u1"}, user.User{ID: "u2"}

	args, entry := l.prepare("msg", []interface{}{u1, "extra", u2})
	assert.Equal(t, []interface{}{"msg", "extra"}, args, "users are not forwarded")
	assert.Equal(t, "u1", entry.Data["user_id"], "only the first user is kept")
}

func TestRollbarLogger_Fatal(t *testing.T) {
	l, hook := newTestLogger()
	var code int
	l.exit = func(c int) { code = c }

	l.Fatal("cannot start")
	assert.Equal(t, 1, code)
	assert.Equal(t, "cannot start", hook.LastEntry().Message)
}
