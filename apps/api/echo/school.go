package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/edufam/edufam/core"
	"github.com/edufam/edufam/core/school"
	"github.com/edufam/edufam/core/user"
)

type schoolApi struct {
	svc      school.Service
	validate *validator.Validate
}

func registerSchoolAPI(g *echo.Group, svc school.Service, validate *validator.Validate) {
	api := schoolApi{svc: svc, validate: validate}

	sg := g.Group("/schools")
	sg.POST("", api.create, platformAdminMiddleware)
	sg.GET("", api.query, platformAdminMiddleware)
	sg.GET("/:id", api.retrieve)
	sg.PUT("/:id", api.update, requireRoles(user.RoleSchoolOwner))
	sg.DELETE("/:id", api.destroy, platformAdminMiddleware)
}

// object returns the school of `:id` when the context user may see it.
func (api *schoolApi) object(ctx echo.Context) (school.School, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return school.School{}, err
	}
	id := ctx.Param("id")
	if !core.IsID(id) || !(claims.IsPlatformAdmin || claims.SchoolID == id) {
		return school.School{}, errHttpNotFound
	}
	return api.svc.Get(ctx.Request().Context(), id)
}

func (api *schoolApi) create(ctx echo.Context) error {
	var data school.NewSchool
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSchool")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	sch, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating school")
	}
	return ctx.JSON(http.StatusCreated, sch)
}

func (api *schoolApi) query(ctx echo.Context) error {
	var err error
	filter := &school.QueryFilter{Search: core.CleanString(ctx.QueryParam("search"))}
	if filter.IsActive, err = queryBool(ctx, "is_active"); err != nil {
		return err
	}

	schools, err := api.svc.Query(ctx.Request().Context(), filter, orderings(ctx))
	if err != nil {
		return errors.Wrap(err, "querying schools")
	}
	if schools == nil {
		schools = []school.School{}
	}
	return ctx.JSON(http.StatusOK, schools)
}

func (api *schoolApi) retrieve(ctx echo.Context) error {
	sch, err := api.object(ctx)
	if err != nil {
		return errors.Wrap(err, "finding school")
	}
	return ctx.JSON(http.StatusOK, sch)
}

func (api *schoolApi) update(ctx echo.Context) error {
	sch, err := api.object(ctx)
	if err != nil {
		return errors.Wrap(err, "finding school")
	}

	var data school.UpdateSchool
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateSchool")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	// `IsActive` and `Code` can only be changed by platform admins
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if !claims.IsPlatformAdmin && (data.IsActive != nil || (data.Code != "" && data.Code != sch.Code)) {
		return errHttpForbidden
	}

	sch, err = api.svc.Update(ctx.Request().Context(), sch, data)
	if err != nil {
		return errors.Wrap(err, "updating school")
	}
	return ctx.JSON(http.StatusOK, sch)
}

func (api *schoolApi) destroy(ctx echo.Context) error {
	sch, err := api.object(ctx)
	if err != nil {
		return errors.Wrap(err, "finding school")
	}
	if err = api.svc.Delete(ctx.Request().Context(), sch.ID); err != nil {
		return errors.Wrap(err, "deleting school")
	}
	return ctx.NoContent(http.StatusNoContent)
}
