package echoapi

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/edufam/edufam/core"
	"github.com/edufam/edufam/core/academic"
)

type academicApi struct {
	svc      academic.Service
	validate *validator.Validate
}

func registerAcademicAPI(g *echo.Group, svc academic.Service, validate *validator.Validate) {
	api := academicApi{svc: svc, validate: validate}
	admin := requireRoles(adminRoles...)

	cg := g.Group("/classes")
	cg.GET("", api.queryClasses)
	cg.POST("", api.createClass, admin)
	cg.GET("/:id", api.retrieveClass)
	cg.PUT("/:id", api.updateClass, admin)
	cg.DELETE("/:id", api.destroyClass, admin)
	cg.POST("/:id/promote", api.promote, admin)

	sg := g.Group("/subjects")
	sg.GET("", api.querySubjects)
	sg.POST("", api.createSubject, admin)
	sg.GET("/:id", api.retrieveSubject)
	sg.PUT("/:id", api.updateSubject, admin)
	sg.DELETE("/:id", api.destroySubject, admin)

	stg := g.Group("/students")
	stg.GET("", api.queryStudents)
	stg.POST("", api.createStudent, admin)
	stg.GET("/:id", api.retrieveStudent)
	stg.PUT("/:id", api.updateStudent, admin)
	stg.DELETE("/:id", api.destroyStudent, admin)
}

// parentScope returns the id of the context user when they only hold the parent role.
func parentScope(ctx echo.Context) (string, bool) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", false
	}
	if claims.IsParent && !(claims.IsPlatformAdmin || claims.IsAdmin || claims.IsStaff) {
		return claims.Subject, true
	}
	return "", false
}

// childrenIDs lists the ids of the students of a parent.
func childrenIDs(ctx context.Context, svc academic.Service, schoolID, parentID string) ([]string, error) {
	children, err := svc.QueryStudents(ctx, &academic.StudentFilter{SchoolID: schoolID, ParentID: parentID}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying children")
	}
	ids := make([]string, len(children))
	for i, std := range children {
		ids[i] = std.ID
	}
	return ids, nil
}

// scopedStudent finds the student of id, hiding the students of other parents.
func scopedStudent(ctx echo.Context, svc academic.Service, id string) (academic.Student, error) {
	if !core.IsID(id) {
		return academic.Student{}, academic.ErrStudentNotFound
	}
	std, err := svc.GetStudent(ctx.Request().Context(), getContextSchool(ctx), id)
	if err != nil {
		return academic.Student{}, err
	}
	if parentID, ok := parentScope(ctx); ok && std.ParentID != parentID {
		return academic.Student{}, academic.ErrStudentNotFound
	}
	return std, nil
}

// Classes

func (api *academicApi) class(ctx echo.Context) (academic.Class, error) {
	id := ctx.Param("id")
	if !core.IsID(id) {
		return academic.Class{}, academic.ErrClassNotFound
	}
	return api.svc.GetClass(ctx.Request().Context(), getContextSchool(ctx), id)
}

func (api *academicApi) createClass(ctx echo.Context) error {
	var data academic.NewClass
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewClass")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	cls, err := api.svc.CreateClass(ctx.Request().Context(), getContextSchool(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating class")
	}
	return ctx.JSON(http.StatusCreated, cls)
}

func (api *academicApi) queryClasses(ctx echo.Context) error {
	filter := &academic.ClassFilter{
		SchoolID:     getContextSchool(ctx),
		AcademicYear: core.CleanString(ctx.QueryParam("academic_year")),
		Search:       core.CleanString(ctx.QueryParam("search")),
	}
	if err := queryID(ctx, "teacher_id", &filter.TeacherID); err != nil {
		return err
	}

	classes, err := api.svc.QueryClasses(ctx.Request().Context(), filter, orderings(ctx))
	if err != nil {
		return errors.Wrap(err, "querying classes")
	}
	if classes == nil {
		classes = []academic.Class{}
	}
	return ctx.JSON(http.StatusOK, classes)
}

func (api *academicApi) retrieveClass(ctx echo.Context) error {
	cls, err := api.class(ctx)
	if err != nil {
		return errors.Wrap(err, "finding class")
	}
	return ctx.JSON(http.StatusOK, cls)
}

func (api *academicApi) updateClass(ctx echo.Context) error {
	cls, err := api.class(ctx)
	if err != nil {
		return errors.Wrap(err, "finding class")
	}

	var data academic.UpdateClass
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateClass")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	cls, err = api.svc.UpdateClass(ctx.Request().Context(), cls, data)
	if err != nil {
		return errors.Wrap(err, "updating class")
	}
	return ctx.JSON(http.StatusOK, cls)
}

func (api *academicApi) destroyClass(ctx echo.Context) error {
	cls, err := api.class(ctx)
	if err != nil {
		return errors.Wrap(err, "finding class")
	}
	if err = api.svc.DeleteClass(ctx.Request().Context(), cls); err != nil {
		return errors.Wrap(err, "deleting class")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *academicApi) promote(ctx echo.Context) error {
	cls, err := api.class(ctx)
	if err != nil {
		return errors.Wrap(err, "finding class")
	}

	var data academic.Promotion
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Promotion")
	}
	if err = api.validate.Struct(data); err != nil {
		return err
	}

	moved, err := api.svc.Promote(ctx.Request().Context(), cls, data)
	if err != nil {
		return errors.Wrap(err, "promoting class")
	}
	return ctx.JSON(http.StatusOK, CountResponse{Count: moved})
}

// Subjects

func (api *academicApi) subject(ctx echo.Context) (academic.Subject, error) {
	id := ctx.Param("id")
	if !core.IsID(id) {
		return academic.Subject{}, academic.ErrSubjectNotFound
	}
	return api.svc.GetSubject(ctx.Request().Context(), getContextSchool(ctx), id)
}

func (api *academicApi) createSubject(ctx echo.Context) error {
	var data academic.NewSubject
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubject")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	sub, err := api.svc.CreateSubject(ctx.Request().Context(), getContextSchool(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating subject")
	}
	return ctx.JSON(http.StatusCreated, sub)
}

func (api *academicApi) querySubjects(ctx echo.Context) error {
	filter := &academic.SubjectFilter{SchoolID: getContextSchool(ctx)}
	if err := queryID(ctx, "class_id", &filter.ClassID); err != nil {
		return err
	}
	if err := queryID(ctx, "teacher_id", &filter.TeacherID); err != nil {
		return err
	}

	subjects, err := api.svc.QuerySubjects(ctx.Request().Context(), filter, orderings(ctx))
	if err != nil {
		return errors.Wrap(err, "querying subjects")
	}
	if subjects == nil {
		subjects = []academic.Subject{}
	}
	return ctx.JSON(http.StatusOK, subjects)
}

func (api *academicApi) retrieveSubject(ctx echo.Context) error {
	sub, err := api.subject(ctx)
	if err != nil {
		return errors.Wrap(err, "finding subject")
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *academicApi) updateSubject(ctx echo.Context) error {
	sub, err := api.subject(ctx)
	if err != nil {
		return errors.Wrap(err, "finding subject")
	}

	var data academic.UpdateSubject
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateSubject")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	sub, err = api.svc.UpdateSubject(ctx.Request().Context(), sub, data)
	if err != nil {
		return errors.Wrap(err, "updating subject")
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *academicApi) destroySubject(ctx echo.Context) error {
	sub, err := api.subject(ctx)
	if err != nil {
		return errors.Wrap(err, "finding subject")
	}
	if err = api.svc.DeleteSubject(ctx.Request().Context(), sub); err != nil {
		return errors.Wrap(err, "deleting subject")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Students

func (api *academicApi) createStudent(ctx echo.Context) error {
	var data academic.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	std, err := api.svc.CreateStudent(ctx.Request().Context(), getContextSchool(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating student")
	}
	return ctx.JSON(http.StatusCreated, std)
}

func (api *academicApi) queryStudents(ctx echo.Context) error {
	filter := &academic.StudentFilter{
		SchoolID: getContextSchool(ctx),
		Status:   core.CleanString(ctx.QueryParam("status"), true /* lower */),
		Search:   core.CleanString(ctx.QueryParam("search")),
	}
	if err := queryID(ctx, "class_id", &filter.ClassID); err != nil {
		return err
	}
	if err := queryID(ctx, "parent_id", &filter.ParentID); err != nil {
		return err
	}
	if parentID, ok := parentScope(ctx); ok {
		filter.ParentID = parentID
	}

	students, err := api.svc.QueryStudents(ctx.Request().Context(), filter, orderings(ctx))
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	if students == nil {
		students = []academic.Student{}
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *academicApi) retrieveStudent(ctx echo.Context) error {
	std, err := scopedStudent(ctx, api.svc, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding student")
	}
	return ctx.JSON(http.StatusOK, std)
}

func (api *academicApi) updateStudent(ctx echo.Context) error {
	std, err := scopedStudent(ctx, api.svc, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding student")
	}

	var data academic.UpdateStudent
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateStudent")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	std, err = api.svc.UpdateStudent(ctx.Request().Context(), std, data)
	if err != nil {
		return errors.Wrap(err, "updating student")
	}
	return ctx.JSON(http.StatusOK, std)
}

func (api *academicApi) destroyStudent(ctx echo.Context) error {
	std, err := scopedStudent(ctx, api.svc, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding student")
	}
	if err = api.svc.DeleteStudent(ctx.Request().Context(), std); err != nil {
		return errors.Wrap(err, "deleting student")
	}
	return ctx.NoContent(http.StatusNoContent)
}

type CountResponse struct {
	Count int `json:"count"`
}
