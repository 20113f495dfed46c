package school

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/edufam/edufam/core"
	"github.com/edufam/edufam/core/audit"
)

var (
	// errors
	ErrNotFound    = errors.New("school not found")
	ErrCodeExists  = errors.New("a school with this code already exists")
	ErrDeactivated = errors.New("school deactivated")
)

type (
	School struct {
		ID        string    `json:"id"`
		Name      string    `json:"name"`
		Code      string    `json:"code"`
		Email     string    `json:"email"`
		Phone     string    `json:"phone"`
		Address   string    `json:"address"`
		Motto     string    `json:"motto"`
		IsActive  bool      `json:"is_active"`
		CreatedAt time.Time `json:"created_at"`
		UpdatedAt time.Time `json:"updated_at"`
	}

	NewSchool struct {
		Name    string `json:"name" validate:"required,max=150"`
		Code    string `json:"code" validate:"required,min=2,max=20,alphanum_"`
		Email   string `json:"email" validate:"omitempty,email"`
		Phone   string `json:"phone" validate:"omitempty,max=20"`
		Address string `json:"address" validate:"omitempty,max=255"`
		Motto   string `json:"motto" validate:"omitempty,max=255"`
	}

	UpdateSchool struct {
		Name     string `json:"name" validate:"omitempty,max=150"`
		Code     string `json:"code" validate:"omitempty,min=2,max=20,alphanum_"`
		Email    string `json:"email" validate:"omitempty,email"`
		Phone    string `json:"phone" validate:"omitempty,max=20"`
		Address  string `json:"address" validate:"omitempty,max=255"`
		Motto    string `json:"motto" validate:"omitempty,max=255"`
		IsActive *bool  `json:"is_active"`
	}

	QueryFilter struct {
		Search   string
		IsActive *bool
	}

	Repository interface {
		CreateSchool(ctx context.Context, sch School, exec ...core.DBExecutor) (School, error)
		// QuerySchools: QueryFilter.Search does a case-insensitive match on School.Name or School.Code.
		QuerySchools(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]School, error)
		CountSchools(ctx context.Context, filter *QueryFilter, exec ...core.DBExecutor) (int, error)
		GetSchool(ctx context.Context, id string, exec ...core.DBExecutor) (School, error)
		GetSchoolByCode(ctx context.Context, code string, exec ...core.DBExecutor) (School, error)
		UpdateSchool(ctx context.Context, sch School, exec ...core.DBExecutor) (School, error)
		DeleteSchool(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	Service interface {
		Create(ctx context.Context, ns NewSchool) (School, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]School, error)
		Count(ctx context.Context, filter *QueryFilter) (int, error)
		Get(ctx context.Context, id string) (School, error)
		Update(ctx context.Context, sch School, us UpdateSchool) (School, error)
		Delete(ctx context.Context, id string) error
	}

	service struct {
		repo  Repository
		audit audit.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, auditLog audit.Logger) Service {
	return &service{repo: repo, audit: auditLog}
}

func (ns *NewSchool) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Code = core.CleanString(ns.Code, true /* lower */)
	ns.Email = core.CleanString(ns.Email, true /* lower */)
	ns.Phone = core.CleanString(ns.Phone)
	ns.Address = core.CleanString(ns.Address)
	ns.Motto = core.CleanString(ns.Motto)
	return validate.Struct(ns)
}

func (us *UpdateSchool) Validate(validate *validator.Validate) error {
	us.Name = core.CleanString(us.Name)
	us.Code = core.CleanString(us.Code, true /* lower */)
	us.Email = core.CleanString(us.Email, true /* lower */)
	us.Phone = core.CleanString(us.Phone)
	us.Address = core.CleanString(us.Address)
	us.Motto = core.CleanString(us.Motto)
	return validate.Struct(us)
}

func (svc *service) checkCode(ctx context.Context, code, exclID string) error {
	sch, err := svc.repo.GetSchoolByCode(ctx, code)
	switch {
	case err == nil && sch.ID != exclID:
		return core.NewValidationError(ErrCodeExists, core.FieldError{Field: "code", Error: ErrCodeExists.Error()})
	case err != nil && errors.Cause(err) != ErrNotFound:
		return errors.Wrap(err, "finding school by code")
	}
	return nil
}

func (svc *service) Create(ctx context.Context, ns NewSchool) (School, error) {
	if err := svc.checkCode(ctx, ns.Code, ""); err != nil {
		return School{}, err
	}

	now := time.Now().UTC()
	sch, err := svc.repo.CreateSchool(ctx, School{
		Name:      ns.Name,
		Code:      ns.Code,
		Email:     ns.Email,
		Phone:     ns.Phone,
		Address:   ns.Address,
		Motto:     ns.Motto,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return School{}, errors.Wrap(err, "creating school")
	}
	svc.audit.Log(ctx, audit.Entry{SchoolID: sch.ID, Action: "schools.create", Resource: "school", ResourceID: sch.ID})
	return sch, nil
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]School, error) {
	return svc.repo.QuerySchools(ctx, filter, ordering)
}

func (svc *service) Count(ctx context.Context, filter *QueryFilter) (int, error) {
	return svc.repo.CountSchools(ctx, filter)
}

func (svc *service) Get(ctx context.Context, id string) (School, error) {
	return svc.repo.GetSchool(ctx, id)
}

// Update applies an already validated UpdateSchool to sch.
func (svc *service) Update(ctx context.Context, sch School, us UpdateSchool) (School, error) {
	if us.Code != "" && us.Code != sch.Code {
		if err := svc.checkCode(ctx, us.Code, sch.ID); err != nil {
			return School{}, err
		}
		sch.Code = us.Code
	}
	if us.Name != "" {
		sch.Name = us.Name
	}
	if us.Email != "" {
		sch.Email = us.Email
	}
	if us.Phone != "" {
		sch.Phone = us.Phone
	}
	if us.Address != "" {
		sch.Address = us.Address
	}
	if us.Motto != "" {
		sch.Motto = us.Motto
	}
	if us.IsActive != nil {
		sch.IsActive = *us.IsActive
	}
	sch.UpdatedAt = time.Now().UTC()

	sch, err := svc.repo.UpdateSchool(ctx, sch)
	if err != nil {
		return School{}, errors.Wrap(err, "updating school")
	}
	svc.audit.Log(ctx, audit.Entry{SchoolID: sch.ID, Action: "schools.update", Resource: "school", ResourceID: sch.ID})
	return sch, nil
}

func (svc *service) Delete(ctx context.Context, id string) error {
	if err := svc.repo.DeleteSchool(ctx, id); err != nil {
		return err
	}
	svc.audit.Log(ctx, audit.Entry{Action: "schools.delete", Resource: "school", ResourceID: id})
	return nil
}
