package schedulersvc

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edufam/edufam/core"
)

type publisherFunc func(ctx context.Context, now time.Time) (int, error)

func (f publisherFunc) PublishDue(ctx context.Context, now time.Time) (int, error) { return f(ctx, now) }

func TestNew_badSpec(t *testing.T) {
	conf := &core.Config{Scheduler: core.SchedulerConfig{AnnouncementsSpec: "every now and then"}}
	_, err := New(conf, publisherFunc(nil), core.NopLogger{})
	assert.Error(t, err)
}

func TestScheduler_publishAnnouncements(t *testing.T) {
	conf := &core.Config{Scheduler: core.SchedulerConfig{AnnouncementsSpec: "@every 1m"}}
	at := time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)

	var calls []time.Time
	pub := publisherFunc(func(_ context.Context, now time.Time) (int, error) {
		calls = append(calls, now)
		if len(calls) > 1 {
			return 0, errors.New("db down")
		}
		return 2, nil
	})

	s, err := New(conf, pub, core.NopLogger{})
	require.NoError(t, err)
	s.now = func() time.Time { return at }

	job := s.publishAnnouncements(pub)
	job()
	job() // errors are logged, not raised
	assert.Equal(t, []time.Time{at, at}, calls)
	assert.Len(t, s.cron.Entries(), 1)
}

func TestScheduler_StartStop(t *testing.T) {
	conf := &core.Config{Scheduler: core.SchedulerConfig{AnnouncementsSpec: "@every 1h"}}
	s, err := New(conf, publisherFunc(func(context.Context, time.Time) (int, error) { return 0, nil }), core.NopLogger{})
	require.NoError(t, err)

	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
	assert.NoError(t, ctx.Err())
}

func TestKvMap(t *testing.T) {
	assert.Equal(t, map[string]interface{}{"entry": 1}, kvMap([]interface{}{"entry", 1, "dangling"}))
}
