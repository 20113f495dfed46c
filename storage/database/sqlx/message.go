package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/edufam/edufam/core"
	"github.com/edufam/edufam/core/message"
)

type messageRow struct {
	ID          string    `db:"id"`
	SchoolID    string    `db:"school_id"`
	SenderID    string    `db:"sender_id"`
	RecipientID string    `db:"recipient_id"`
	Subject     string    `db:"subject"`
	Body        string    `db:"body"`
	ReadAt      null.Time `db:"read_at"`
	CreatedAt   time.Time `db:"created_at"`
}

func toMessageRow(m message.Message) messageRow {
	return messageRow{
		ID:          m.ID,
		SchoolID:    m.SchoolID,
		SenderID:    m.SenderID,
		RecipientID: m.RecipientID,
		Subject:     m.Subject,
		Body:        m.Body,
		ReadAt:      nullTimePtr(m.ReadAt),
		CreatedAt:   m.CreatedAt.UTC(),
	}
}

func (row messageRow) message() message.Message {
	m := message.Message{
		ID:          row.ID,
		SchoolID:    row.SchoolID,
		SenderID:    row.SenderID,
		RecipientID: row.RecipientID,
		Subject:     row.Subject,
		Body:        row.Body,
		CreatedAt:   row.CreatedAt.UTC(),
	}
	if row.ReadAt.Valid {
		t := row.ReadAt.Time.UTC()
		m.ReadAt = &t
	}
	return m
}

type messageRepository struct{ repo }

var _ message.Repository = (*messageRepository)(nil)

func NewMessageRepository(exec core.DBExecutor) *messageRepository {
	return &messageRepository{repo{exec: exec}}
}

func messageWhere(filter *message.Filter) *where {
	w := &where{}
	if filter == nil {
		return w
	}
	w.eq("school_id", filter.SchoolID)
	w.eq("sender_id", filter.SenderID)
	w.eq("recipient_id", filter.RecipientID)
	if filter.Unread {
		w.add("read_at IS NULL")
	}
	return w
}

func (r messageRepository) CreateMessage(ctx context.Context, m message.Message, exec ...core.DBExecutor) (message.Message, error) {
	m.ID = core.NewID()
	var row messageRow
	q := `INSERT INTO messages (id, school_id, sender_id, recipient_id, subject, body, read_at, created_at)
		VALUES (:id, :school_id, :sender_id, :recipient_id, :subject, :body, :read_at, :created_at)
		RETURNING *`
	if err := r.namedGet(ctx, exec, &row, q, toMessageRow(m)); err != nil {
		return message.Message{}, errors.Wrap(err, "inserting message")
	}
	return row.message(), nil
}

func (r messageRepository) QueryMessages(ctx context.Context, filter *message.Filter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]message.Message, error) {
	w := messageWhere(filter)
	var rows []messageRow
	q := "SELECT * FROM messages" + w.String() + orderBy(ordering, []string{"created_at", "read_at"}, "created_at DESC")
	if err := r.selectAll(ctx, exec, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying messages")
	}
	messages := make([]message.Message, 0, len(rows))
	for _, row := range rows {
		messages = append(messages, row.message())
	}
	return messages, nil
}

func (r messageRepository) CountMessages(ctx context.Context, filter *message.Filter, exec ...core.DBExecutor) (int, error) {
	w := messageWhere(filter)
	var n int
	if err := r.get(ctx, exec, &n, "SELECT COUNT(*) FROM messages"+w.String(), w.args...); err != nil {
		return 0, errors.Wrap(err, "counting messages")
	}
	return n, nil
}

func (r messageRepository) GetMessage(ctx context.Context, schoolID, id string, exec ...core.DBExecutor) (message.Message, error) {
	if !core.IsID(id) {
		return message.Message{}, message.ErrNotFound
	}
	var row messageRow
	if err := r.get(ctx, exec, &row, "SELECT * FROM messages WHERE school_id = ? AND id = ?", schoolID, id); err != nil {
		return message.Message{}, trapNoRowsErr(err, message.ErrNotFound, "finding message")
	}
	return row.message(), nil
}

func (r messageRepository) UpdateMessage(ctx context.Context, m message.Message, exec ...core.DBExecutor) (message.Message, error) {
	var row messageRow
	q := `UPDATE messages SET subject = :subject, body = :body, read_at = :read_at
		WHERE school_id = :school_id AND id = :id RETURNING *`
	if err := r.namedGet(ctx, exec, &row, q, toMessageRow(m)); err != nil {
		return message.Message{}, trapNoRowsErr(err, message.ErrNotFound, "updating message")
	}
	return row.message(), nil
}
