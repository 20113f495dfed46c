package inmemdb

import (
	"context"

	"github.com/edufam/edufam/core"
	"github.com/edufam/edufam/core/message"
)

var messageComparators = comparators[message.Message]{
	"created_at": func(a, b message.Message) int { return cmpTime(a.CreatedAt, b.CreatedAt) },
}

type messageRepository struct {
	db *table[message.Message]
}

var _ message.Repository = (*messageRepository)(nil)

func NewMessageRepository(db *DB) message.Repository {
	return &messageRepository{db: db.message}
}

func matchMessage(filter *message.Filter) func(message.Message) bool {
	return func(m message.Message) bool {
		if filter == nil {
			return true
		}
		if filter.Unread && m.ReadAt != nil {
			return false
		}
		return eq(filter.SchoolID, m.SchoolID) && eq(filter.SenderID, m.SenderID) && eq(filter.RecipientID, m.RecipientID)
	}
}

func (repo *messageRepository) CreateMessage(_ context.Context, m message.Message, _ ...core.DBExecutor) (message.Message, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	m.ID = core.NewID()
	repo.db.insert(m.ID, m)
	return m, nil
}

func (repo *messageRepository) QueryMessages(_ context.Context, filter *message.Filter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]message.Message, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	messages := repo.db.filter(matchMessage(filter))
	sortRows(messages, ordering, messageComparators, desc("created_at"))
	return messages, nil
}

func (repo *messageRepository) CountMessages(_ context.Context, filter *message.Filter, _ ...core.DBExecutor) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return len(repo.db.filter(matchMessage(filter))), nil
}

func (repo *messageRepository) GetMessage(_ context.Context, schoolID, id string, _ ...core.DBExecutor) (message.Message, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if m, ok := repo.db.get(id); ok && m.SchoolID == schoolID {
		return m, nil
	}
	return message.Message{}, message.ErrNotFound
}

func (repo *messageRepository) UpdateMessage(_ context.Context, m message.Message, _ ...core.DBExecutor) (message.Message, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if orig, ok := repo.db.get(m.ID); !ok || orig.SchoolID != m.SchoolID {
		return message.Message{}, message.ErrNotFound
	}
	repo.db.set(m.ID, m)
	return m, nil
}
