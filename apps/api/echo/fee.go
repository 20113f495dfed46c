package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/edufam/edufam/core"
	"github.com/edufam/edufam/core/academic"
	"github.com/edufam/edufam/core/fee"
	"github.com/edufam/edufam/core/user"
)

type feeApi struct {
	svc       fee.Service
	academics academic.Service
	users     user.Service
	validate  *validator.Validate
}

func registerFeeAPI(
	g *echo.Group,
	svc fee.Service,
	academics academic.Service,
	users user.Service,
	validate *validator.Validate,
) {
	api := feeApi{svc: svc, academics: academics, users: users, validate: validate}
	finance := requireRoles(financeRoles...)

	fg := g.Group("/fees")
	fg.GET("/structures", api.queryStructures)
	fg.POST("/structures", api.createStructure, finance)
	fg.GET("/structures/:id", api.retrieveStructure)
	fg.PUT("/structures/:id", api.updateStructure, finance)
	fg.DELETE("/structures/:id", api.destroyStructure, finance)
	fg.POST("/structures/:id/assign", api.assign, finance)
	fg.GET("/balances", api.balances)
	fg.GET("/payments", api.payments)
	fg.POST("/payments", api.recordPayment, finance)
	fg.GET("/summary", api.summary, finance)
}

// studentScope resolves the students a fee listing covers: a parent's children, or for finance staff
// the `student_id` / `class_id` requested (nil means the whole school).
func (api *feeApi) studentScope(ctx echo.Context) (ids []string, empty bool, err error) {
	var studentID, classID string
	if err = queryID(ctx, "student_id", &studentID); err != nil {
		return nil, false, err
	}
	if err = queryID(ctx, "class_id", &classID); err != nil {
		return nil, false, err
	}
	schoolID := getContextSchool(ctx)
	reqCtx := ctx.Request().Context()

	if parentID, ok := parentScope(ctx); ok {
		children, err := childrenIDs(reqCtx, api.academics, schoolID, parentID)
		if err != nil {
			return nil, false, err
		}
		if studentID != "" {
			if !core.ContainsString(children, studentID) {
				return nil, true, nil
			}
			children = []string{studentID}
		}
		return children, len(children) == 0, nil
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return nil, false, err
	}
	if !(claims.IsPlatformAdmin || claimsHaveAnyRole(claims, financeRoles)) {
		return nil, false, errHttpForbidden
	}

	switch {
	case studentID != "":
		return []string{studentID}, false, nil
	case classID != "":
		students, err := api.academics.QueryStudents(reqCtx, &academic.StudentFilter{SchoolID: schoolID, ClassID: classID}, nil)
		if err != nil {
			return nil, false, errors.Wrap(err, "querying class students")
		}
		ids = make([]string, len(students))
		for i, std := range students {
			ids[i] = std.ID
		}
		return ids, len(ids) == 0, nil
	}
	return nil, false, nil
}

// Structures

func (api *feeApi) structure(ctx echo.Context) (fee.Structure, error) {
	id := ctx.Param("id")
	if !core.IsID(id) {
		return fee.Structure{}, fee.ErrStructureNotFound
	}
	return api.svc.GetStructure(ctx.Request().Context(), getContextSchool(ctx), id)
}

func (api *feeApi) createStructure(ctx echo.Context) error {
	var data fee.NewStructure
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStructure")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	s, err := api.svc.CreateStructure(ctx.Request().Context(), getContextSchool(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating fee structure")
	}
	return ctx.JSON(http.StatusCreated, s)
}

func (api *feeApi) queryStructures(ctx echo.Context) error {
	filter := &fee.StructureFilter{
		SchoolID:     getContextSchool(ctx),
		Term:         core.CleanString(ctx.QueryParam("term"), true /* lower */),
		AcademicYear: core.CleanString(ctx.QueryParam("academic_year")),
	}
	if err := queryID(ctx, "class_id", &filter.ClassID); err != nil {
		return err
	}

	structures, err := api.svc.QueryStructures(ctx.Request().Context(), filter, orderings(ctx))
	if err != nil {
		return errors.Wrap(err, "querying fee structures")
	}
	if structures == nil {
		structures = []fee.Structure{}
	}
	return ctx.JSON(http.StatusOK, structures)
}

func (api *feeApi) retrieveStructure(ctx echo.Context) error {
	s, err := api.structure(ctx)
	if err != nil {
		return errors.Wrap(err, "finding fee structure")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *feeApi) updateStructure(ctx echo.Context) error {
	s, err := api.structure(ctx)
	if err != nil {
		return errors.Wrap(err, "finding fee structure")
	}

	var data fee.UpdateStructure
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateStructure")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	s, err = api.svc.UpdateStructure(ctx.Request().Context(), s, data)
	if err != nil {
		return errors.Wrap(err, "updating fee structure")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *feeApi) destroyStructure(ctx echo.Context) error {
	s, err := api.structure(ctx)
	if err != nil {
		return errors.Wrap(err, "finding fee structure")
	}
	if err = api.svc.DeleteStructure(ctx.Request().Context(), s); err != nil {
		return errors.Wrap(err, "deleting fee structure")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *feeApi) assign(ctx echo.Context) error {
	s, err := api.structure(ctx)
	if err != nil {
		return errors.Wrap(err, "finding fee structure")
	}

	n, err := api.svc.Assign(ctx.Request().Context(), s)
	if err != nil {
		return errors.Wrap(err, "assigning fee structure")
	}
	return ctx.JSON(http.StatusOK, CountResponse{Count: n})
}

// Billing

func (api *feeApi) balances(ctx echo.Context) error {
	ids, empty, err := api.studentScope(ctx)
	if err != nil {
		return err
	}
	if empty {
		return ctx.JSON(http.StatusOK, []fee.Balance{})
	}

	balances, err := api.svc.Balances(ctx.Request().Context(), &fee.StudentFeeFilter{
		SchoolID:   getContextSchool(ctx),
		StudentIDs: ids,
		Statuses:   queryList(ctx, "status"),
	})
	if err != nil {
		return errors.Wrap(err, "computing balances")
	}
	if balances == nil {
		balances = []fee.Balance{}
	}
	return ctx.JSON(http.StatusOK, balances)
}

func (api *feeApi) payments(ctx echo.Context) error {
	ids, empty, err := api.studentScope(ctx)
	if err != nil {
		return err
	}
	if empty {
		return ctx.JSON(http.StatusOK, []fee.Payment{})
	}

	filter := &fee.PaymentFilter{
		SchoolID:   getContextSchool(ctx),
		StudentIDs: ids,
		Method:     core.CleanString(ctx.QueryParam("method"), true /* lower */),
	}
	if err = queryID(ctx, "student_fee_id", &filter.StudentFeeID); err != nil {
		return err
	}
	if filter.From, err = queryTime(ctx, "from"); err != nil {
		return err
	}
	if filter.To, err = queryTime(ctx, "to"); err != nil {
		return err
	}

	payments, err := api.svc.Payments(ctx.Request().Context(), filter, orderings(ctx))
	if err != nil {
		return errors.Wrap(err, "querying payments")
	}
	if payments == nil {
		payments = []fee.Payment{}
	}
	return ctx.JSON(http.StatusOK, payments)
}

type PaymentResponse struct {
	Payment    fee.Payment    `json:"payment"`
	StudentFee fee.StudentFee `json:"student_fee"`
}

func (api *feeApi) recordPayment(ctx echo.Context) error {
	var data fee.NewPayment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPayment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	actor, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	p, sf, err := api.svc.RecordPayment(ctx.Request().Context(), getContextSchool(ctx), actor, data)
	if err != nil {
		return errors.Wrap(err, "recording payment")
	}
	return ctx.JSON(http.StatusCreated, PaymentResponse{Payment: p, StudentFee: sf})
}

func (api *feeApi) summary(ctx echo.Context) error {
	sum, err := api.svc.CollectionSummary(
		ctx.Request().Context(),
		getContextSchool(ctx),
		core.CleanString(ctx.QueryParam("term"), true /* lower */),
		core.CleanString(ctx.QueryParam("academic_year")),
	)
	if err != nil {
		return errors.Wrap(err, "summarizing collection")
	}
	return ctx.JSON(http.StatusOK, sum)
}
