package sqlxrepos

import (
	"context"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/edufam/edufam/core"
	"github.com/edufam/edufam/core/announcement"
)

type announcementRow struct {
	ID          string         `db:"id"`
	SchoolID    string         `db:"school_id"`
	Title       string         `db:"title"`
	Content     string         `db:"content"`
	Audience    pq.StringArray `db:"audience"`
	Priority    string         `db:"priority"`
	PublishAt   time.Time      `db:"publish_at"`
	Published   bool           `db:"published"`
	PublishedAt null.Time      `db:"published_at"`
	ExpiresAt   null.Time      `db:"expires_at"`
	CreatedBy   null.String    `db:"created_by"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

var announcementOrderFields = []string{"title", "priority", "publish_at", "created_at"}

func nullTimePtr(t *time.Time) null.Time {
	if t == nil {
		return null.Time{}
	}
	return null.TimeFrom(t.UTC())
}

func toAnnouncementRow(a announcement.Announcement) announcementRow {
	audience := a.Audience
	if audience == nil {
		audience = []string{}
	}
	return announcementRow{
		ID:          a.ID,
		SchoolID:    a.SchoolID,
		Title:       a.Title,
		Content:     a.Content,
		Audience:    audience,
		Priority:    a.Priority,
		PublishAt:   a.PublishAt.UTC(),
		Published:   a.Published,
		PublishedAt: nullTimePtr(a.PublishedAt),
		ExpiresAt:   nullTimePtr(a.ExpiresAt),
		CreatedBy:   nullID(a.CreatedBy),
		CreatedAt:   a.CreatedAt.UTC(),
		UpdatedAt:   a.UpdatedAt.UTC(),
	}
}

func (row announcementRow) announcement() announcement.Announcement {
	a := announcement.Announcement{
		ID:        row.ID,
		SchoolID:  row.SchoolID,
		Title:     row.Title,
		Content:   row.Content,
		Audience:  []string(row.Audience),
		Priority:  row.Priority,
		PublishAt: row.PublishAt.UTC(),
		Published: row.Published,
		CreatedBy: row.CreatedBy.String,
		CreatedAt: row.CreatedAt.UTC(),
		UpdatedAt: row.UpdatedAt.UTC(),
	}
	if a.Audience == nil {
		a.Audience = []string{}
	}
	if row.PublishedAt.Valid {
		t := row.PublishedAt.Time.UTC()
		a.PublishedAt = &t
	}
	if row.ExpiresAt.Valid {
		t := row.ExpiresAt.Time.UTC()
		a.ExpiresAt = &t
	}
	return a
}

func rowsToAnnouncements(rows []announcementRow) []announcement.Announcement {
	list := make([]announcement.Announcement, 0, len(rows))
	for _, row := range rows {
		list = append(list, row.announcement())
	}
	return list
}

type announcementRepository struct{ repo }

var _ announcement.Repository = (*announcementRepository)(nil)

func NewAnnouncementRepository(exec core.DBExecutor) *announcementRepository {
	return &announcementRepository{repo{exec: exec}}
}

func (r announcementRepository) CreateAnnouncement(ctx context.Context, a announcement.Announcement, exec ...core.DBExecutor) (announcement.Announcement, error) {
	a.ID = core.NewID()
	var row announcementRow
	q := `INSERT INTO announcements (id, school_id, title, content, audience, priority, publish_at, published,
			published_at, expires_at, created_by, created_at, updated_at)
		VALUES (:id, :school_id, :title, :content, :audience, :priority, :publish_at, :published,
			:published_at, :expires_at, :created_by, :created_at, :updated_at)
		RETURNING *`
	if err := r.namedGet(ctx, exec, &row, q, toAnnouncementRow(a)); err != nil {
		return announcement.Announcement{}, errors.Wrap(err, "inserting announcement")
	}
	return row.announcement(), nil
}

func (r announcementRepository) QueryAnnouncements(ctx context.Context, filter *announcement.Filter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]announcement.Announcement, error) {
	w := &where{}
	if filter != nil {
		w.eq("school_id", filter.SchoolID)
		if filter.Published != nil {
			w.add("published = ?", *filter.Published)
		}
		if !filter.ActiveAt.IsZero() {
			w.add("(expires_at IS NULL OR expires_at > ?)", filter.ActiveAt.UTC())
		}
		w.eq("priority", filter.Priority)
		if filter.Search != "" {
			val := likePattern(filter.Search)
			w.add("(title ILIKE ? OR content ILIKE ?)", val, val)
		}
	}
	var rows []announcementRow
	q := "SELECT * FROM announcements" + w.String() + orderBy(ordering, announcementOrderFields, "publish_at DESC")
	if err := r.selectAll(ctx, exec, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying announcements")
	}
	return rowsToAnnouncements(rows), nil
}

func (r announcementRepository) GetAnnouncement(ctx context.Context, schoolID, id string, exec ...core.DBExecutor) (announcement.Announcement, error) {
	if !core.IsID(id) {
		return announcement.Announcement{}, announcement.ErrNotFound
	}
	var row announcementRow
	if err := r.get(ctx, exec, &row, "SELECT * FROM announcements WHERE school_id = ? AND id = ?", schoolID, id); err != nil {
		return announcement.Announcement{}, trapNoRowsErr(err, announcement.ErrNotFound, "finding announcement")
	}
	return row.announcement(), nil
}

func (r announcementRepository) UpdateAnnouncement(ctx context.Context, a announcement.Announcement, exec ...core.DBExecutor) (announcement.Announcement, error) {
	var row announcementRow
	q := `UPDATE announcements SET title = :title, content = :content, audience = :audience, priority = :priority,
			publish_at = :publish_at, published = :published, published_at = :published_at, expires_at = :expires_at,
			updated_at = :updated_at
		WHERE school_id = :school_id AND id = :id RETURNING *`
	if err := r.namedGet(ctx, exec, &row, q, toAnnouncementRow(a)); err != nil {
		return announcement.Announcement{}, trapNoRowsErr(err, announcement.ErrNotFound, "updating announcement")
	}
	return row.announcement(), nil
}

func (r announcementRepository) DeleteAnnouncement(ctx context.Context, schoolID, id string, exec ...core.DBExecutor) error {
	if !core.IsID(id) {
		return announcement.ErrNotFound
	}
	n, err := r.execute(ctx, exec, "DELETE FROM announcements WHERE school_id = ? AND id = ?", schoolID, id)
	if err != nil {
		return errors.Wrap(err, "deleting announcement")
	}
	if n == 0 {
		return announcement.ErrNotFound
	}
	return nil
}

func (r announcementRepository) PublishDue(ctx context.Context, now time.Time, exec ...core.DBExecutor) ([]announcement.Announcement, error) {
	var rows []announcementRow
	q := `UPDATE announcements SET published = TRUE, published_at = ?, updated_at = ?
		WHERE NOT published AND publish_at <= ? RETURNING *`
	now = now.UTC()
	if err := r.selectAll(ctx, exec, &rows, q, now, now, now); err != nil {
		return nil, errors.Wrap(err, "publishing due announcements")
	}
	return rowsToAnnouncements(rows), nil
}
