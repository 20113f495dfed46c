package message

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/edufam/edufam/core"
	"github.com/edufam/edufam/core/realtime"
	"github.com/edufam/edufam/core/user"
)

var (
	// errors
	ErrNotFound = errors.New("message not found")

	errUnknownRecipient = "unknown recipient"
	errSelfMessage      = "cannot send a message to yourself"
)

type (
	Message struct {
		ID          string     `json:"id"`
		SchoolID    string     `json:"school_id"`
		SenderID    string     `json:"sender_id"`
		RecipientID string     `json:"recipient_id"`
		Subject     string     `json:"subject"`
		Body        string     `json:"body"`
		ReadAt      *time.Time `json:"read_at"`
		CreatedAt   time.Time  `json:"created_at"`
	}

	NewMessage struct {
		RecipientID string `json:"recipient_id" validate:"required,uuid"`
		Subject     string `json:"subject" validate:"omitempty,max=200"`
		Body        string `json:"body" validate:"required,max=5000"`
	}

	Filter struct {
		SchoolID    string
		SenderID    string
		RecipientID string
		Unread      bool
	}

	Repository interface {
		CreateMessage(ctx context.Context, m Message, exec ...core.DBExecutor) (Message, error)
		QueryMessages(ctx context.Context, filter *Filter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Message, error)
		CountMessages(ctx context.Context, filter *Filter, exec ...core.DBExecutor) (int, error)
		GetMessage(ctx context.Context, schoolID, id string, exec ...core.DBExecutor) (Message, error)
		UpdateMessage(ctx context.Context, m Message, exec ...core.DBExecutor) (Message, error)
	}

	Service interface {
		Send(ctx context.Context, sender user.User, nm NewMessage) (Message, error)
		Inbox(ctx context.Context, usr user.User, unreadOnly bool) ([]Message, error)
		Outbox(ctx context.Context, usr user.User) ([]Message, error)
		// MarkRead marks a message of usr's inbox as read; marking it again keeps the first read time.
		MarkRead(ctx context.Context, usr user.User, id string) (Message, error)
		UnreadCount(ctx context.Context, usr user.User) (int, error)
	}

	service struct {
		repo      Repository
		users     user.Repository
		publisher realtime.Publisher
		logger    core.Logger
	}
)

var _ Service = (*service)(nil)

func (nm *NewMessage) Validate(validate *validator.Validate) error {
	nm.Subject = core.CleanString(nm.Subject)
	nm.Body = core.CleanString(nm.Body)
	return validate.Struct(nm)
}

func NewService(repo Repository, users user.Repository, publisher realtime.Publisher, logger core.Logger) Service {
	return &service{repo: repo, users: users, publisher: publisher, logger: logger}
}

func (svc *service) Send(ctx context.Context, sender user.User, nm NewMessage) (Message, error) {
	if nm.RecipientID == sender.ID {
		return Message{}, core.NewFieldError("recipient_id", errSelfMessage)
	}
	recipient, err := svc.users.GetUser(ctx, user.GetFilter{ID: nm.RecipientID})
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return Message{}, core.NewFieldError("recipient_id", errUnknownRecipient)
		}
		return Message{}, errors.Wrap(err, "finding recipient")
	}
	if recipient.SchoolID != sender.SchoolID || !recipient.IsActive {
		return Message{}, core.NewFieldError("recipient_id", errUnknownRecipient)
	}

	m, err := svc.repo.CreateMessage(ctx, Message{
		SchoolID:    sender.SchoolID,
		SenderID:    sender.ID,
		RecipientID: recipient.ID,
		Subject:     nm.Subject,
		Body:        nm.Body,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		return Message{}, errors.Wrap(err, "creating message")
	}

	evt := realtime.NewEvent(realtime.UserTopic(recipient.ID), realtime.EventInsert, m)
	if err := svc.publisher.Publish(ctx, evt); err != nil {
		svc.logger.Warn("publishing message event", errors.Wrap(err, evt.Topic))
	}
	return m, nil
}

func (svc *service) Inbox(ctx context.Context, usr user.User, unreadOnly bool) ([]Message, error) {
	filter := &Filter{SchoolID: usr.SchoolID, RecipientID: usr.ID, Unread: unreadOnly}
	return svc.repo.QueryMessages(ctx, filter, []core.DBOrdering{{Field: "created_at"}})
}

func (svc *service) Outbox(ctx context.Context, usr user.User) ([]Message, error) {
	filter := &Filter{SchoolID: usr.SchoolID, SenderID: usr.ID}
	return svc.repo.QueryMessages(ctx, filter, []core.DBOrdering{{Field: "created_at"}})
}

func (svc *service) MarkRead(ctx context.Context, usr user.User, id string) (Message, error) {
	m, err := svc.repo.GetMessage(ctx, usr.SchoolID, id)
	if err != nil {
		return Message{}, err
	}
	if m.RecipientID != usr.ID {
		// senders & other users of the school cannot tell whether the message exists
		return Message{}, ErrNotFound
	}
	if m.ReadAt != nil {
		return m, nil
	}
	now := time.Now().UTC()
	m.ReadAt = &now
	return svc.repo.UpdateMessage(ctx, m)
}

func (svc *service) UnreadCount(ctx context.Context, usr user.User) (int, error) {
	return svc.repo.CountMessages(ctx, &Filter{SchoolID: usr.SchoolID, RecipientID: usr.ID, Unread: true})
}
