package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/edufam/edufam/core"
	"github.com/edufam/edufam/core/academic"
	"github.com/edufam/edufam/core/grade"
	"github.com/edufam/edufam/core/user"
)

type gradeApi struct {
	svc       grade.Service
	academics academic.Service
	users     user.Service
	validate  *validator.Validate
}

func registerGradeAPI(
	g *echo.Group,
	svc grade.Service,
	academics academic.Service,
	users user.Service,
	validate *validator.Validate,
) {
	api := gradeApi{svc: svc, academics: academics, users: users, validate: validate}
	staff := requireRoles(staffRoles...)
	admin := requireRoles(adminRoles...)

	gg := g.Group("/grades")
	gg.GET("", api.query)
	gg.PUT("", api.save, staff)
	gg.GET("/summary", api.summary, staff)
	gg.POST("/submit", api.submit, requireRoles(teachingRoles...))
	gg.POST("/approve", api.approve, admin)
	gg.POST("/reject", api.reject, admin)
	gg.POST("/release", api.release, admin)
}

func bindGradeFilter(ctx echo.Context) (*grade.Filter, error) {
	filter := &grade.Filter{
		SchoolID: getContextSchool(ctx),
		Term:     core.CleanString(ctx.QueryParam("term"), true /* lower */),
		ExamType: core.CleanString(ctx.QueryParam("exam_type"), true /* lower */),
		Statuses: queryList(ctx, "status"),
	}
	for name, dst := range map[string]*string{
		"student_id": &filter.StudentID,
		"class_id":   &filter.ClassID,
		"subject_id": &filter.SubjectID,
	} {
		if err := queryID(ctx, name, dst); err != nil {
			return nil, err
		}
	}
	return filter, nil
}

func (api *gradeApi) query(ctx echo.Context) error {
	filter, err := bindGradeFilter(ctx)
	if err != nil {
		return err
	}

	// parents only see the released grades of their children
	if parentID, ok := parentScope(ctx); ok {
		children, err := childrenIDs(ctx.Request().Context(), api.academics, filter.SchoolID, parentID)
		if err != nil {
			return err
		}
		if len(children) == 0 || (filter.StudentID != "" && !core.ContainsString(children, filter.StudentID)) {
			return ctx.JSON(http.StatusOK, []grade.Grade{})
		}
		filter.StudentIDs = children
		filter.Statuses = []string{grade.StatusReleased}
	}

	grades, err := api.svc.Query(ctx.Request().Context(), filter, orderings(ctx))
	if err != nil {
		return errors.Wrap(err, "querying grades")
	}
	if grades == nil {
		grades = []grade.Grade{}
	}
	return ctx.JSON(http.StatusOK, grades)
}

func (api *gradeApi) summary(ctx echo.Context) error {
	filter, err := bindGradeFilter(ctx)
	if err != nil {
		return err
	}

	sum, err := api.svc.Summary(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "summarizing grades")
	}
	return ctx.JSON(http.StatusOK, sum)
}

func (api *gradeApi) save(ctx echo.Context) error {
	var data grade.SaveBatch
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SaveBatch")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	actor, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	res, err := api.svc.Save(ctx.Request().Context(), getContextSchool(ctx), actor, data)
	if err != nil {
		return errors.Wrap(err, "saving grades")
	}
	if res.Saved == nil {
		res.Saved = []grade.Grade{}
	}
	if res.Locked == nil {
		res.Locked = []grade.LockedMark{}
	}
	return ctx.JSON(http.StatusOK, res)
}

type transitionFunc func(ctx echo.Context, actor user.User, sel grade.Selector) (grade.TransitionResult, error)

// transition binds a Selector and runs fn with the context user.
func (api *gradeApi) transition(ctx echo.Context, name string, fn transitionFunc) error {
	var sel grade.Selector
	if err := ctx.Bind(&sel); err != nil {
		return errors.Wrap(err, "binding to Selector")
	}
	if err := sel.Validate(api.validate); err != nil {
		return err
	}

	actor, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	res, err := fn(ctx, actor, sel)
	if err != nil {
		return errors.Wrapf(err, "%s grades", name)
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *gradeApi) submit(ctx echo.Context) error {
	return api.transition(ctx, "submitting", func(ctx echo.Context, actor user.User, sel grade.Selector) (grade.TransitionResult, error) {
		return api.svc.Submit(ctx.Request().Context(), getContextSchool(ctx), actor, sel)
	})
}

func (api *gradeApi) approve(ctx echo.Context) error {
	return api.transition(ctx, "approving", func(ctx echo.Context, actor user.User, sel grade.Selector) (grade.TransitionResult, error) {
		return api.svc.Approve(ctx.Request().Context(), getContextSchool(ctx), actor, sel)
	})
}

func (api *gradeApi) release(ctx echo.Context) error {
	return api.transition(ctx, "releasing", func(ctx echo.Context, actor user.User, sel grade.Selector) (grade.TransitionResult, error) {
		return api.svc.Release(ctx.Request().Context(), getContextSchool(ctx), actor, sel)
	})
}

func (api *gradeApi) reject(ctx echo.Context) error {
	var data grade.RejectRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RejectRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	actor, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	res, err := api.svc.Reject(ctx.Request().Context(), getContextSchool(ctx), actor, data.Selector, data.Reason)
	if err != nil {
		return errors.Wrap(err, "rejecting grades")
	}
	return ctx.JSON(http.StatusOK, res)
}
