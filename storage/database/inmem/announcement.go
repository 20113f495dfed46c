package inmemdb

import (
	"context"
	"strings"
	"time"

	"github.com/edufam/edufam/core"
	"github.com/edufam/edufam/core/announcement"
)

var announcementComparators = comparators[announcement.Announcement]{
	"title":      func(a, b announcement.Announcement) int { return cmpFold(a.Title, b.Title) },
	"priority":   func(a, b announcement.Announcement) int { return strings.Compare(a.Priority, b.Priority) },
	"publish_at": func(a, b announcement.Announcement) int { return cmpTime(a.PublishAt, b.PublishAt) },
	"created_at": func(a, b announcement.Announcement) int { return cmpTime(a.CreatedAt, b.CreatedAt) },
}

type announcementRepository struct {
	db *table[announcement.Announcement]
}

var _ announcement.Repository = (*announcementRepository)(nil)

func NewAnnouncementRepository(db *DB) announcement.Repository {
	return &announcementRepository{db: db.announcement}
}

func (repo *announcementRepository) CreateAnnouncement(_ context.Context, a announcement.Announcement, _ ...core.DBExecutor) (announcement.Announcement, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	a.ID = core.NewID()
	a.Audience = copyStrings(a.Audience)
	repo.db.insert(a.ID, a)
	return a, nil
}

func (repo *announcementRepository) QueryAnnouncements(_ context.Context, filter *announcement.Filter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]announcement.Announcement, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	list := repo.db.filter(func(a announcement.Announcement) bool {
		if filter == nil {
			return true
		}
		if filter.Published != nil && a.Published != *filter.Published {
			return false
		}
		if !filter.ActiveAt.IsZero() && a.ExpiresAt != nil && !a.ExpiresAt.After(filter.ActiveAt) {
			return false
		}
		if filter.Search != "" && !contains(a.Title, filter.Search) && !contains(a.Content, filter.Search) {
			return false
		}
		return eq(filter.SchoolID, a.SchoolID) && eq(filter.Priority, a.Priority)
	})
	sortRows(list, ordering, announcementComparators, desc("publish_at"))
	return list, nil
}

func (repo *announcementRepository) GetAnnouncement(_ context.Context, schoolID, id string, _ ...core.DBExecutor) (announcement.Announcement, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if a, ok := repo.db.get(id); ok && a.SchoolID == schoolID {
		return a, nil
	}
	return announcement.Announcement{}, announcement.ErrNotFound
}

func (repo *announcementRepository) UpdateAnnouncement(_ context.Context, a announcement.Announcement, _ ...core.DBExecutor) (announcement.Announcement, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if orig, ok := repo.db.get(a.ID); !ok || orig.SchoolID != a.SchoolID {
		return announcement.Announcement{}, announcement.ErrNotFound
	}
	a.Audience = copyStrings(a.Audience)
	repo.db.set(a.ID, a)
	return a, nil
}

func (repo *announcementRepository) DeleteAnnouncement(_ context.Context, schoolID, id string, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if a, ok := repo.db.get(id); !ok || a.SchoolID != schoolID {
		return announcement.ErrNotFound
	}
	repo.db.remove(id)
	return nil
}

func (repo *announcementRepository) PublishDue(_ context.Context, now time.Time, _ ...core.DBExecutor) ([]announcement.Announcement, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	now = now.UTC()
	due := repo.db.filter(func(a announcement.Announcement) bool {
		return !a.Published && !a.PublishAt.After(now)
	})
	for i := range due {
		at := now
		due[i].Published = true
		due[i].PublishedAt = &at
		due[i].UpdatedAt = now
		repo.db.set(due[i].ID, due[i])
	}
	return due, nil
}
