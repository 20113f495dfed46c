package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/edufam/edufam/core"
	"github.com/edufam/edufam/core/message"
	"github.com/edufam/edufam/core/user"
)

type messageApi struct {
	svc      message.Service
	users    user.Service
	validate *validator.Validate
}

func registerMessageAPI(g *echo.Group, svc message.Service, users user.Service, validate *validator.Validate) {
	api := messageApi{svc: svc, users: users, validate: validate}

	mg := g.Group("/messages")
	mg.POST("", api.send)
	mg.GET("/inbox", api.inbox)
	mg.GET("/outbox", api.outbox)
	mg.GET("/unread-count", api.unreadCount)
	mg.POST("/:id/read", api.markRead)
}

func (api *messageApi) send(ctx echo.Context) error {
	var data message.NewMessage
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMessage")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	sender, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	msg, err := api.svc.Send(ctx.Request().Context(), sender, data)
	if err != nil {
		return errors.Wrap(err, "sending message")
	}
	return ctx.JSON(http.StatusCreated, msg)
}

func (api *messageApi) inbox(ctx echo.Context) error {
	unread, err := queryBool(ctx, "unread")
	if err != nil {
		return err
	}
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	msgs, err := api.svc.Inbox(ctx.Request().Context(), usr, unread != nil && *unread)
	if err != nil {
		return errors.Wrap(err, "querying inbox")
	}
	if msgs == nil {
		msgs = []message.Message{}
	}
	return ctx.JSON(http.StatusOK, msgs)
}

func (api *messageApi) outbox(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	msgs, err := api.svc.Outbox(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "querying outbox")
	}
	if msgs == nil {
		msgs = []message.Message{}
	}
	return ctx.JSON(http.StatusOK, msgs)
}

func (api *messageApi) unreadCount(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	n, err := api.svc.UnreadCount(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "counting unread messages")
	}
	return ctx.JSON(http.StatusOK, CountResponse{Count: n})
}

func (api *messageApi) markRead(ctx echo.Context) error {
	id := ctx.Param("id")
	if !core.IsID(id) {
		return message.ErrNotFound
	}
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	msg, err := api.svc.MarkRead(ctx.Request().Context(), usr, id)
	if err != nil {
		return errors.Wrap(err, "marking message read")
	}
	return ctx.JSON(http.StatusOK, msg)
}
