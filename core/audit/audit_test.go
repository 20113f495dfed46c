package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edufam/edufam/core"
)

type repoStub struct {
	entries []Entry
	err     error
}

func (r *repoStub) CreateEntry(_ context.Context, entry Entry, _ ...core.DBExecutor) (Entry, error) {
	if r.err != nil {
		return Entry{}, r.err
	}
	entry.ID = core.NewID()
	r.entries = append(r.entries, entry)
	return entry, nil
}

func (r *repoStub) QueryEntries(context.Context, *QueryFilter, []core.DBOrdering, ...core.DBExecutor) ([]Entry, error) {
	return r.entries, r.err
}

type loggerStub struct {
	errors []string
}

func (l *loggerStub) Debug(string, ...interface{}) {}
func (l *loggerStub) Info(string, ...interface{})  {}
func (l *loggerStub) Warn(string, ...interface{})  {}
func (l *loggerStub) Error(msg string, _ ...interface{}) {
	l.errors = append(l.errors, msg)
}
func (l *loggerStub) Fatal(string, ...interface{}) {}

func TestService_Log(t *testing.T) {
	t.Run("fills actor from context", func(t *testing.T) {
		repo := new(repoStub)
		svc := NewService(repo, new(loggerStub))
		ctx := WithActor(context.Background(), Actor{ID: "u1", SchoolID: "s1", IP: "10.0.0.1"})

		svc.Log(ctx, Entry{Action: "grades.approve", Resource: "grade", ResourceID: "g1"})

		require.Len(t, repo.entries, 1)
		got := repo.entries[0]
		assert.Equal(t, "u1", got.ActorID)
		assert.Equal(t, "s1", got.SchoolID)
		assert.Equal(t, "10.0.0.1", got.IP)
		assert.NotNil(t, got.Metadata)
		assert.False(t, got.CreatedAt.IsZero())
	})

	t.Run("explicit fields win", func(t *testing.T) {
		repo := new(repoStub)
		svc := NewService(repo, new(loggerStub))
		ctx := WithActor(context.Background(), Actor{ID: "u1", SchoolID: "s1"})

		svc.Log(ctx, Entry{SchoolID: "s2", Action: "schools.create"})

		require.Len(t, repo.entries, 1)
		assert.Equal(t, "s2", repo.entries[0].SchoolID)
		assert.Equal(t, "u1", repo.entries[0].ActorID)
	})

	t.Run("failures are logged, not returned", func(t *testing.T) {
		logger := new(loggerStub)
		svc := NewService(&repoStub{err: errors.New("db down")}, logger)

		assert.NotPanics(t, func() { svc.Log(context.Background(), Entry{Action: "users.delete"}) })
		assert.Equal(t, []string{"writing audit log"}, logger.errors)
	})
}
