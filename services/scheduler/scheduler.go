// Package schedulersvc runs the periodic jobs of the API.
package schedulersvc

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/edufam/edufam/core"
)

// AnnouncementPublisher publishes the announcements due at now.
type AnnouncementPublisher interface {
	PublishDue(ctx context.Context, now time.Time) (int, error)
}

type Scheduler struct {
	cron   *cron.Cron
	logger core.Logger
	now    func() time.Time
}

func New(conf *core.Config, announcements AnnouncementPublisher, logger core.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:   cron.New(cron.WithChain(cron.Recover(cronLogger{logger}), cron.SkipIfStillRunning(cronLogger{logger}))),
		logger: logger,
		now:    time.Now,
	}
	if _, err := s.cron.AddFunc(conf.Scheduler.AnnouncementsSpec, s.publishAnnouncements(announcements)); err != nil {
		return nil, errors.Wrap(err, "scheduling announcements publication")
	}
	return s, nil
}

func (s *Scheduler) publishAnnouncements(announcements AnnouncementPublisher) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		n, err := announcements.PublishDue(ctx, s.now())
		if err != nil {
			s.logger.Error("publishing due announcements", err)
			return
		}
		if n > 0 {
			s.logger.Info("published due announcements", map[string]interface{}{"count": n})
		}
	}
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop waits for the running jobs, at most until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// cronLogger adapts core.Logger to cron.Logger.
type cronLogger struct {
	logger core.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, kvMap(keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, err, kvMap(keysAndValues))
}

func kvMap(keysAndValues []interface{}) map[string]interface{} {
	m := make(map[string]interface{}, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		if k, ok := keysAndValues[i].(string); ok {
			m[k] = keysAndValues[i+1]
		}
	}
	return m
}
