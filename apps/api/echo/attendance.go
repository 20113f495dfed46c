package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/edufam/edufam/core"
	"github.com/edufam/edufam/core/academic"
	"github.com/edufam/edufam/core/attendance"
	"github.com/edufam/edufam/core/user"
)

type attendanceApi struct {
	svc       attendance.Service
	academics academic.Service
	users     user.Service
	validate  *validator.Validate
}

func registerAttendanceAPI(
	g *echo.Group,
	svc attendance.Service,
	academics academic.Service,
	users user.Service,
	validate *validator.Validate,
) {
	api := attendanceApi{svc: svc, academics: academics, users: users, validate: validate}

	ag := g.Group("/attendance")
	ag.POST("", api.mark, requireRoles(teachingRoles...))
	ag.GET("", api.query)
	ag.GET("/summary", api.summary, requireRoles(staffRoles...))
}

func bindAttendanceFilter(ctx echo.Context) (*attendance.Filter, error) {
	from, to, err := queryDateRange(ctx)
	if err != nil {
		return nil, err
	}
	filter := &attendance.Filter{
		SchoolID: getContextSchool(ctx),
		Session:  core.CleanString(ctx.QueryParam("session"), true /* lower */),
		Status:   core.CleanString(ctx.QueryParam("status"), true /* lower */),
		From:     from,
		To:       to,
	}
	if err = queryID(ctx, "class_id", &filter.ClassID); err != nil {
		return nil, err
	}
	if err = queryID(ctx, "student_id", &filter.StudentID); err != nil {
		return nil, err
	}
	return filter, nil
}

func (api *attendanceApi) mark(ctx echo.Context) error {
	var data attendance.Register
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Register")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	actor, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	records, err := api.svc.Mark(ctx.Request().Context(), getContextSchool(ctx), actor, data)
	if err != nil {
		return errors.Wrap(err, "marking attendance")
	}
	return ctx.JSON(http.StatusOK, records)
}

func (api *attendanceApi) query(ctx echo.Context) error {
	filter, err := bindAttendanceFilter(ctx)
	if err != nil {
		return err
	}

	if parentID, ok := parentScope(ctx); ok {
		children, err := childrenIDs(ctx.Request().Context(), api.academics, filter.SchoolID, parentID)
		if err != nil {
			return err
		}
		if len(children) == 0 || (filter.StudentID != "" && !core.ContainsString(children, filter.StudentID)) {
			return ctx.JSON(http.StatusOK, []attendance.Record{})
		}
		filter.StudentIDs = children
	}

	records, err := api.svc.Query(ctx.Request().Context(), filter, orderings(ctx))
	if err != nil {
		return errors.Wrap(err, "querying attendance")
	}
	if records == nil {
		records = []attendance.Record{}
	}
	return ctx.JSON(http.StatusOK, records)
}

func (api *attendanceApi) summary(ctx echo.Context) error {
	filter, err := bindAttendanceFilter(ctx)
	if err != nil {
		return err
	}

	sum, err := api.svc.Summary(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "summarizing attendance")
	}
	if sum == nil {
		sum = []attendance.StudentSummary{}
	}
	return ctx.JSON(http.StatusOK, sum)
}
