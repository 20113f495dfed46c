package audit

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/edufam/edufam/core"
)

type (
	Entry struct {
		ID         string                 `json:"id"`
		SchoolID   string                 `json:"school_id"`
		ActorID    string                 `json:"actor_id"`
		Action     string                 `json:"action"`
		Resource   string                 `json:"resource"`
		ResourceID string                 `json:"resource_id"`
		Metadata   map[string]interface{} `json:"metadata"`
		IP         string                 `json:"ip"`
		CreatedAt  time.Time              `json:"created_at"`
	}

	// Actor is who performs the request being audited.
	Actor struct {
		ID       string
		SchoolID string
		IP       string
	}

	QueryFilter struct {
		SchoolID   string
		ActorID    string
		Action     string
		Resource   string
		ResourceID string
		From       time.Time
		To         time.Time
	}

	Repository interface {
		CreateEntry(ctx context.Context, entry Entry, exec ...core.DBExecutor) (Entry, error)
		QueryEntries(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Entry, error)
	}

	// Logger records audit entries. Log never fails the caller.
	Logger interface {
		Log(ctx context.Context, entry Entry)
	}

	Service interface {
		Logger
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Entry, error)
	}

	service struct {
		repo   Repository
		logger core.Logger
	}

	actorCtxKey struct{}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, logger core.Logger) Service {
	return &service{repo: repo, logger: logger}
}

func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorCtxKey{}, actor)
}

func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorCtxKey{}).(Actor)
	return actor, ok
}

// Log fills the actor from ctx when missing and stores entry; failures are reported to the logger only.
func (svc *service) Log(ctx context.Context, entry Entry) {
	if actor, ok := ActorFromContext(ctx); ok {
		if entry.ActorID == "" {
			entry.ActorID = actor.ID
		}
		if entry.SchoolID == "" {
			entry.SchoolID = actor.SchoolID
		}
		if entry.IP == "" {
			entry.IP = actor.IP
		}
	}
	if entry.Metadata == nil {
		entry.Metadata = map[string]interface{}{}
	}
	entry.CreatedAt = time.Now().UTC()

	if _, err := svc.repo.CreateEntry(ctx, entry); err != nil {
		svc.logger.Error("writing audit log", errors.Wrapf(err, "%s %s/%s", entry.Action, entry.Resource, entry.ResourceID))
	}
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Entry, error) {
	return svc.repo.QueryEntries(ctx, filter, ordering)
}

// NopLogger drops every entry.
type NopLogger struct{}

func (NopLogger) Log(context.Context, Entry) {}
