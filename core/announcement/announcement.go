package announcement

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/edufam/edufam/core"
	"github.com/edufam/edufam/core/audit"
	"github.com/edufam/edufam/core/realtime"
)

// Priorities
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
)

var (
	// errors
	ErrNotFound = errors.New("announcement not found")

	errExpiresBeforePublish = "must be after publish_at"
)

type (
	Announcement struct {
		ID          string     `json:"id"`
		SchoolID    string     `json:"school_id"`
		Title       string     `json:"title"`
		Content     string     `json:"content"`
		Audience    []string   `json:"audience"` // roles or role prefixes; empty means everyone
		Priority    string     `json:"priority"`
		PublishAt   time.Time  `json:"publish_at"`
		Published   bool       `json:"published"`
		PublishedAt *time.Time `json:"published_at"`
		ExpiresAt   *time.Time `json:"expires_at"`
		CreatedBy   string     `json:"created_by"`
		CreatedAt   time.Time  `json:"created_at"`
		UpdatedAt   time.Time  `json:"updated_at"`
	}

	NewAnnouncement struct {
		Title     string     `json:"title" validate:"required,max=200"`
		Content   string     `json:"content" validate:"required,max=10000"`
		Audience  []string   `json:"audience" validate:"omitempty,dive,audience"`
		Priority  string     `json:"priority" validate:"omitempty,oneof=low normal high"`
		PublishAt *time.Time `json:"publish_at"`
		ExpiresAt *time.Time `json:"expires_at"`
	}

	UpdateAnnouncement struct {
		Title     string     `json:"title" validate:"omitempty,max=200"`
		Content   string     `json:"content" validate:"omitempty,max=10000"`
		Audience  []string   `json:"audience" validate:"omitempty,dive,audience"`
		Priority  string     `json:"priority" validate:"omitempty,oneof=low normal high"`
		PublishAt *time.Time `json:"publish_at"`
		ExpiresAt *time.Time `json:"expires_at"`
	}

	Filter struct {
		SchoolID  string
		Published *bool
		// ActiveAt keeps the announcements not expired at that time.
		ActiveAt time.Time
		Priority string
		Search   string
	}

	Repository interface {
		CreateAnnouncement(ctx context.Context, a Announcement, exec ...core.DBExecutor) (Announcement, error)
		QueryAnnouncements(ctx context.Context, filter *Filter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Announcement, error)
		GetAnnouncement(ctx context.Context, schoolID, id string, exec ...core.DBExecutor) (Announcement, error)
		UpdateAnnouncement(ctx context.Context, a Announcement, exec ...core.DBExecutor) (Announcement, error)
		DeleteAnnouncement(ctx context.Context, schoolID, id string, exec ...core.DBExecutor) error
		// PublishDue marks every unpublished announcement due at now as published and returns them.
		PublishDue(ctx context.Context, now time.Time, exec ...core.DBExecutor) ([]Announcement, error)
	}

	Metrics interface {
		AnnouncementsPublished(count int)
	}

	Service interface {
		Create(ctx context.Context, schoolID, authorID string, na NewAnnouncement) (Announcement, error)
		Query(ctx context.Context, filter *Filter, ordering []core.DBOrdering) ([]Announcement, error)
		Get(ctx context.Context, schoolID, id string) (Announcement, error)
		Update(ctx context.Context, a Announcement, ua UpdateAnnouncement) (Announcement, error)
		Delete(ctx context.Context, a Announcement) error
		// Feed returns the published, unexpired announcements addressed to any of roles.
		Feed(ctx context.Context, schoolID string, roles []string) ([]Announcement, error)
		PublishDue(ctx context.Context, now time.Time) (int, error)
	}

	service struct {
		repo      Repository
		audit     audit.Logger
		publisher realtime.Publisher
		metrics   Metrics
		logger    core.Logger
	}

	nopMetrics struct{}
)

func (nopMetrics) AnnouncementsPublished(int) {}

var _ Service = (*service)(nil)

func clean(title, content, priority string, audience []string) (string, string, string, []string) {
	cleaned := make([]string, 0, len(audience))
	for _, role := range audience {
		if role = core.CleanString(role, true /* lower */); role != "" && !core.ContainsString(cleaned, role) {
			cleaned = append(cleaned, role)
		}
	}
	return core.CleanString(title), strings.TrimSpace(content), core.CleanString(priority, true), cleaned
}

func (na *NewAnnouncement) Validate(validate *validator.Validate) error {
	na.Title, na.Content, na.Priority, na.Audience = clean(na.Title, na.Content, na.Priority, na.Audience)
	if na.Priority == "" {
		na.Priority = PriorityNormal
	}
	if err := validate.Struct(na); err != nil {
		return err
	}
	return checkExpiry(na.PublishAt, na.ExpiresAt)
}

func (ua *UpdateAnnouncement) Validate(validate *validator.Validate) error {
	ua.Title, ua.Content, ua.Priority, ua.Audience = clean(ua.Title, ua.Content, ua.Priority, ua.Audience)
	if err := validate.Struct(ua); err != nil {
		return err
	}
	return checkExpiry(ua.PublishAt, ua.ExpiresAt)
}

func checkExpiry(publishAt, expiresAt *time.Time) error {
	if expiresAt == nil {
		return nil
	}
	start := time.Now().UTC()
	if publishAt != nil {
		start = *publishAt
	}
	if !expiresAt.After(start) {
		return core.NewFieldError("expires_at", errExpiresBeforePublish)
	}
	return nil
}

// IsFor reports whether a is addressed to any of roles. Audience entries ending with ":" match role groups.
func (a Announcement) IsFor(roles []string) bool {
	if len(a.Audience) == 0 {
		return true
	}
	for _, aud := range a.Audience {
		for _, role := range roles {
			if role == aud || (strings.HasSuffix(aud, ":") && strings.HasPrefix(role, aud)) {
				return true
			}
		}
	}
	return false
}

func (a Announcement) IsActive(at time.Time) bool {
	return a.Published && (a.ExpiresAt == nil || a.ExpiresAt.After(at))
}

func NewService(repo Repository, auditLog audit.Logger, publisher realtime.Publisher, metrics Metrics, logger core.Logger) Service {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &service{repo: repo, audit: auditLog, publisher: publisher, metrics: metrics, logger: logger}
}

func (svc *service) publish(ctx context.Context, event string, a Announcement) {
	evt := realtime.NewEvent(realtime.SchoolTopic(a.SchoolID, realtime.ChannelAnnouncements), event, a)
	if err := svc.publisher.Publish(ctx, evt); err != nil {
		svc.logger.Warn("publishing announcement event", errors.Wrap(err, evt.Topic))
	}
}

// Create stores an announcement; it is published at once unless publish_at is in the future.
func (svc *service) Create(ctx context.Context, schoolID, authorID string, na NewAnnouncement) (Announcement, error) {
	now := time.Now().UTC()
	a := Announcement{
		SchoolID:  schoolID,
		Title:     na.Title,
		Content:   na.Content,
		Audience:  na.Audience,
		Priority:  na.Priority,
		PublishAt: now,
		ExpiresAt: na.ExpiresAt,
		CreatedBy: authorID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if a.Audience == nil {
		a.Audience = []string{}
	}
	if na.PublishAt != nil && na.PublishAt.After(now) {
		a.PublishAt = na.PublishAt.UTC()
	} else {
		a.Published, a.PublishedAt = true, &now
	}

	a, err := svc.repo.CreateAnnouncement(ctx, a)
	if err != nil {
		return Announcement{}, errors.Wrap(err, "creating announcement")
	}
	svc.audit.Log(ctx, audit.Entry{SchoolID: schoolID, ActorID: authorID, Action: "announcements.create", Resource: "announcement", ResourceID: a.ID})
	if a.Published {
		svc.metrics.AnnouncementsPublished(1)
		svc.publish(ctx, realtime.EventInsert, a)
	}
	return a, nil
}

func (svc *service) Query(ctx context.Context, filter *Filter, ordering []core.DBOrdering) ([]Announcement, error) {
	return svc.repo.QueryAnnouncements(ctx, filter, ordering)
}

func (svc *service) Get(ctx context.Context, schoolID, id string) (Announcement, error) {
	return svc.repo.GetAnnouncement(ctx, schoolID, id)
}

func (svc *service) Update(ctx context.Context, a Announcement, ua UpdateAnnouncement) (Announcement, error) {
	now := time.Now().UTC()
	if ua.Title != "" {
		a.Title = ua.Title
	}
	if ua.Content != "" {
		a.Content = ua.Content
	}
	if ua.Audience != nil {
		a.Audience = ua.Audience
	}
	if ua.Priority != "" {
		a.Priority = ua.Priority
	}
	if ua.ExpiresAt != nil {
		a.ExpiresAt = ua.ExpiresAt
	}
	wasPublished := a.Published
	if ua.PublishAt != nil && !a.Published {
		if ua.PublishAt.After(now) {
			a.PublishAt = ua.PublishAt.UTC()
		} else {
			a.PublishAt = now
			a.Published, a.PublishedAt = true, &now
		}
	}
	a.UpdatedAt = now

	a, err := svc.repo.UpdateAnnouncement(ctx, a)
	if err != nil {
		return Announcement{}, err
	}
	svc.audit.Log(ctx, audit.Entry{SchoolID: a.SchoolID, Action: "announcements.update", Resource: "announcement", ResourceID: a.ID})
	switch {
	case a.Published && !wasPublished:
		svc.metrics.AnnouncementsPublished(1)
		svc.publish(ctx, realtime.EventInsert, a)
	case a.Published:
		svc.publish(ctx, realtime.EventUpdate, a)
	}
	return a, nil
}

func (svc *service) Delete(ctx context.Context, a Announcement) error {
	if err := svc.repo.DeleteAnnouncement(ctx, a.SchoolID, a.ID); err != nil {
		return err
	}
	svc.audit.Log(ctx, audit.Entry{SchoolID: a.SchoolID, Action: "announcements.delete", Resource: "announcement", ResourceID: a.ID})
	if a.Published {
		svc.publish(ctx, realtime.EventDelete, Announcement{ID: a.ID, SchoolID: a.SchoolID})
	}
	return nil
}

func (svc *service) Feed(ctx context.Context, schoolID string, roles []string) ([]Announcement, error) {
	published := true
	all, err := svc.repo.QueryAnnouncements(ctx, &Filter{
		SchoolID:  schoolID,
		Published: &published,
		ActiveAt:  time.Now().UTC(),
	}, []core.DBOrdering{{Field: "published_at"}})
	if err != nil {
		return nil, errors.Wrap(err, "querying announcements")
	}
	feed := make([]Announcement, 0, len(all))
	for _, a := range all {
		if a.IsFor(roles) {
			feed = append(feed, a)
		}
	}
	return feed, nil
}

func (svc *service) PublishDue(ctx context.Context, now time.Time) (int, error) {
	published, err := svc.repo.PublishDue(ctx, now.UTC())
	if err != nil {
		return 0, errors.Wrap(err, "publishing due announcements")
	}
	if len(published) == 0 {
		return 0, nil
	}
	svc.metrics.AnnouncementsPublished(len(published))
	for _, a := range published {
		svc.publish(ctx, realtime.EventInsert, a)
	}
	return len(published), nil
}
