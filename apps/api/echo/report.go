package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/edufam/edufam/core"
	"github.com/edufam/edufam/core/academic"
	"github.com/edufam/edufam/core/grade"
	"github.com/edufam/edufam/core/report"
	"github.com/edufam/edufam/core/user"
	"github.com/edufam/edufam/services/spreadsheet"
)

type reportApi struct {
	svc       report.Service
	academics academic.Service
	users     user.Service
}

func registerReportAPI(g *echo.Group, svc report.Service, academics academic.Service, users user.Service) {
	api := reportApi{svc: svc, academics: academics, users: users}
	staff := requireRoles(staffRoles...)

	rg := g.Group("/reports")
	rg.GET("/students/:id/report-card", api.reportCard)
	rg.GET("/grades.xlsx", api.gradesSheet, staff)
	rg.GET("/attendance.xlsx", api.attendanceSheet, staff)
}

func queryTerm(ctx echo.Context) (string, error) {
	term := core.CleanString(ctx.QueryParam("term"), true /* lower */)
	if term != "" && !core.ContainsString(grade.Terms, term) {
		return "", core.NewFieldError("term", "must be one of: term1 term2 term3")
	}
	return term, nil
}

func (api *reportApi) reportCard(ctx echo.Context) error {
	std, err := scopedStudent(ctx, api.academics, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding student")
	}

	var opts report.CardOptions
	if opts.Term, err = queryTerm(ctx); err != nil {
		return err
	}
	if opts.From, opts.To, err = queryDateRange(ctx); err != nil {
		return err
	}
	// parents never see grades before release
	if _, isParent := parentScope(ctx); !isParent {
		include, err := queryBool(ctx, "include_unreleased")
		if err != nil {
			return err
		}
		opts.IncludeUnreleased = include != nil && *include
	}

	card, err := api.svc.ReportCard(ctx.Request().Context(), getContextSchool(ctx), std.ID, opts)
	if err != nil {
		return errors.Wrap(err, "building report card")
	}
	return ctx.JSON(http.StatusOK, card)
}

func (api *reportApi) classID(ctx echo.Context) (string, error) {
	var id string
	if err := queryID(ctx, "class_id", &id); err != nil {
		return "", err
	}
	if id == "" {
		return "", core.NewFieldError("class_id", "this field is required")
	}
	return id, nil
}

func writeSheet(ctx echo.Context, filename string, t report.Table) error {
	resp := ctx.Response()
	resp.Header().Set(echo.HeaderContentType, spreadsheet.ContentType)
	resp.Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	resp.WriteHeader(http.StatusOK)
	return errors.Wrap(spreadsheet.WriteXLSX(resp, t), "writing spreadsheet")
}

func (api *reportApi) gradesSheet(ctx echo.Context) error {
	classID, err := api.classID(ctx)
	if err != nil {
		return err
	}
	term, err := queryTerm(ctx)
	if err != nil {
		return err
	}
	include, err := queryBool(ctx, "include_unreleased")
	if err != nil {
		return err
	}
	examType := core.CleanString(ctx.QueryParam("exam_type"), true /* lower */)

	t, err := api.svc.GradesSheet(ctx.Request().Context(), getContextSchool(ctx), classID, term, examType, include != nil && *include)
	if err != nil {
		return errors.Wrap(err, "building grades sheet")
	}
	return writeSheet(ctx, "grades.xlsx", t)
}

func (api *reportApi) attendanceSheet(ctx echo.Context) error {
	classID, err := api.classID(ctx)
	if err != nil {
		return err
	}
	from, to, err := queryDateRange(ctx)
	if err != nil {
		return err
	}

	t, err := api.svc.AttendanceSheet(ctx.Request().Context(), getContextSchool(ctx), classID, from, to)
	if err != nil {
		return errors.Wrap(err, "building attendance sheet")
	}
	return writeSheet(ctx, "attendance.xlsx", t)
}
