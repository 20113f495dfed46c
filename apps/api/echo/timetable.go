package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/edufam/edufam/core"
	"github.com/edufam/edufam/core/grade"
	"github.com/edufam/edufam/core/timetable"
)

type timetableApi struct {
	svc      timetable.Service
	validate *validator.Validate
}

func registerTimetableAPI(g *echo.Group, svc timetable.Service, validate *validator.Validate) {
	api := timetableApi{svc: svc, validate: validate}
	admin := requireRoles(adminRoles...)

	tg := g.Group("/timetables")
	tg.POST("/generate", api.generate, admin)
	tg.GET("", api.query)
	tg.DELETE("", api.destroy, admin)
}

func (api *timetableApi) generate(ctx echo.Context) error {
	var data timetable.Request
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to timetable.Request")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	res, err := api.svc.Generate(ctx.Request().Context(), getContextSchool(ctx), data)
	if err != nil {
		return errors.Wrap(err, "generating timetable")
	}
	if res.Entries == nil {
		res.Entries = []timetable.Entry{}
	}
	if res.Unfilled == nil {
		res.Unfilled = []timetable.Slot{}
	}

	code := http.StatusCreated
	if res.Preview {
		code = http.StatusOK
	}
	return ctx.JSON(code, res)
}

func (api *timetableApi) query(ctx echo.Context) error {
	filter := &timetable.Filter{
		SchoolID: getContextSchool(ctx),
		Term:     core.CleanString(ctx.QueryParam("term"), true /* lower */),
	}
	if err := queryID(ctx, "class_id", &filter.ClassID); err != nil {
		return err
	}
	if err := queryID(ctx, "teacher_id", &filter.TeacherID); err != nil {
		return err
	}

	entries, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying timetable")
	}
	if entries == nil {
		entries = []timetable.Entry{}
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (api *timetableApi) destroy(ctx echo.Context) error {
	var classID string
	if err := queryID(ctx, "class_id", &classID); err != nil {
		return err
	}
	term := core.CleanString(ctx.QueryParam("term"), true /* lower */)
	if classID == "" {
		return core.NewFieldError("class_id", "this field is required")
	}
	if !core.ContainsString(grade.Terms, term) {
		return core.NewFieldError("term", "must be one of: term1 term2 term3")
	}

	n, err := api.svc.Delete(ctx.Request().Context(), getContextSchool(ctx), classID, term)
	if err != nil {
		return errors.Wrap(err, "deleting timetable")
	}
	return ctx.JSON(http.StatusOK, CountResponse{Count: n})
}
