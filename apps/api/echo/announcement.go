package echoapi

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/edufam/edufam/core"
	"github.com/edufam/edufam/core/announcement"
	"github.com/edufam/edufam/core/user"
)

type announcementApi struct {
	svc      announcement.Service
	validate *validator.Validate
}

func registerAnnouncementAPI(g *echo.Group, svc announcement.Service, validate *validator.Validate) {
	api := announcementApi{svc: svc, validate: validate}
	admin := requireRoles(adminRoles...)

	ag := g.Group("/announcements")
	ag.GET("", api.query, admin)
	ag.POST("", api.create, admin)
	ag.GET("/feed", api.feed)
	ag.GET("/:id", api.retrieve, admin)
	ag.PUT("/:id", api.update, admin)
	ag.DELETE("/:id", api.destroy, admin)
}

func (api *announcementApi) object(ctx echo.Context) (announcement.Announcement, error) {
	id := ctx.Param("id")
	if !core.IsID(id) {
		return announcement.Announcement{}, announcement.ErrNotFound
	}
	return api.svc.Get(ctx.Request().Context(), getContextSchool(ctx), id)
}

func (api *announcementApi) create(ctx echo.Context) error {
	var data announcement.NewAnnouncement
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAnnouncement")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	a, err := api.svc.Create(ctx.Request().Context(), getContextSchool(ctx), claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "creating announcement")
	}
	return ctx.JSON(http.StatusCreated, a)
}

func (api *announcementApi) query(ctx echo.Context) error {
	var err error
	filter := &announcement.Filter{
		SchoolID: getContextSchool(ctx),
		Priority: core.CleanString(ctx.QueryParam("priority"), true /* lower */),
		Search:   core.CleanString(ctx.QueryParam("search")),
	}
	if filter.Published, err = queryBool(ctx, "published"); err != nil {
		return err
	}
	active, err := queryBool(ctx, "active")
	if err != nil {
		return err
	}
	if active != nil && *active {
		filter.ActiveAt = time.Now().UTC()
	}

	list, err := api.svc.Query(ctx.Request().Context(), filter, orderings(ctx))
	if err != nil {
		return errors.Wrap(err, "querying announcements")
	}
	if list == nil {
		list = []announcement.Announcement{}
	}
	return ctx.JSON(http.StatusOK, list)
}

func (api *announcementApi) feed(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	roles := claims.Roles
	if claims.IsPlatformAdmin {
		roles = user.AllRoles
	}

	list, err := api.svc.Feed(ctx.Request().Context(), getContextSchool(ctx), roles)
	if err != nil {
		return errors.Wrap(err, "building announcement feed")
	}
	if list == nil {
		list = []announcement.Announcement{}
	}
	return ctx.JSON(http.StatusOK, list)
}

func (api *announcementApi) retrieve(ctx echo.Context) error {
	a, err := api.object(ctx)
	if err != nil {
		return errors.Wrap(err, "finding announcement")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *announcementApi) update(ctx echo.Context) error {
	a, err := api.object(ctx)
	if err != nil {
		return errors.Wrap(err, "finding announcement")
	}

	var data announcement.UpdateAnnouncement
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateAnnouncement")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	a, err = api.svc.Update(ctx.Request().Context(), a, data)
	if err != nil {
		return errors.Wrap(err, "updating announcement")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *announcementApi) destroy(ctx echo.Context) error {
	a, err := api.object(ctx)
	if err != nil {
		return errors.Wrap(err, "finding announcement")
	}
	if err = api.svc.Delete(ctx.Request().Context(), a); err != nil {
		return errors.Wrap(err, "deleting announcement")
	}
	return ctx.NoContent(http.StatusNoContent)
}
