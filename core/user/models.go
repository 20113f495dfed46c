package user

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/edufam/edufam/core"
)

// Roles
const (
	// EduFam platform
	RolePlatformAdmin = "platform:admin"

	// School admins
	RoleAdmin       = "admin:" // prefix
	RoleSchoolOwner = "admin:owner"
	RolePrincipal   = "admin:principal"

	// School staff
	RoleStaff          = "staff:" // prefix
	RoleFinanceOfficer = "staff:finance"
	RoleTeacher        = "staff:teacher"

	// Parent / Guardian
	RoleParent = "parent:"
)

var (
	PlatformRoles = []string{RolePlatformAdmin}
	AdminRoles    = []string{RoleSchoolOwner, RolePrincipal}
	StaffRoles    = []string{RoleFinanceOfficer, RoleTeacher}
	ParentRoles   = []string{RoleParent}
	AllRoles      = getAllRoles()

	rolePriorities = map[string]int{
		RolePlatformAdmin: 40,

		// Admins: 30 - 21
		RoleSchoolOwner: 30,
		RolePrincipal:   29,

		// Staff: 20 - 11
		RoleFinanceOfficer: 15,
		RoleTeacher:        11,

		// Parents: 10 - 1
		RoleParent: 5,
	}

	Roles = []Role{
		{Name: "Parent", Value: RoleParent},
		{Name: "Teacher", Value: RoleTeacher},
		{Name: "Finance Officer", Value: RoleFinanceOfficer},
		{Name: "Principal", Value: RolePrincipal},
		{Name: "School Owner", Value: RoleSchoolOwner},
		{Name: "EduFam Admin", Value: RolePlatformAdmin},
	}
)

func getAllRoles() []string {
	all := make([]string, 0, 6)
	all = append(all, PlatformRoles...)
	all = append(all, AdminRoles...)
	all = append(all, StaffRoles...)
	all = append(all, ParentRoles...)
	return all
}

func RolePriority(role string) int {
	return rolePriorities[role]
}

func MaxRolePriority(roles []string) int {
	var max int
	for _, role := range roles {
		if RolePriority(role) > max {
			max = RolePriority(role)
		}
	}
	return max
}

// HasRolePrefix reports whether any of roles starts with prefix.
func HasRolePrefix(roles []string, prefix string) bool {
	for _, role := range roles {
		if strings.HasPrefix(role, prefix) {
			return true
		}
	}
	return false
}

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type User struct {
	ID           string    `json:"id"`
	SchoolID     string    `json:"school_id"`
	Name         string    `json:"name"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	IsActive     bool      `json:"is_active"`
	Roles        []string  `json:"roles"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
	LastLogin    time.Time `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) HasRole(role string) bool {
	return core.ContainsString(u.Roles, role)
}

func (u *User) IsPlatformAdmin() bool { return u.HasRole(RolePlatformAdmin) }
func (u *User) IsAdmin() bool         { return HasRolePrefix(u.Roles, RoleAdmin) }
func (u *User) IsStaff() bool         { return HasRolePrefix(u.Roles, RoleStaff) }
func (u *User) IsTeacher() bool       { return u.HasRole(RoleTeacher) }
func (u *User) IsFinanceOfficer() bool {
	return u.HasRole(RoleFinanceOfficer)
}
func (u *User) IsParent() bool { return u.HasRole(RoleParent) }

// NewUser contains information needed to create a new User.
type NewUser struct {
	SchoolID        string   `json:"school_id"`
	Name            string   `json:"name" validate:"required"`
	Username        string   `json:"username" validate:"omitempty,min=4,alphanum_"`
	Email           string   `json:"email" validate:"omitempty,email"`
	Phone           string   `json:"phone" validate:"omitempty,max=20"`
	Password        string   `json:"password" validate:"required"`
	PasswordConfirm string   `json:"password_confirm" validate:"required,eqfield=Password"`
	Roles           []string `json:"roles" validate:"omitempty,allroles"`
}

func (nu *NewUser) Validate(ctx context.Context, validate *validator.Validate, svc Service) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Username = core.CleanString(nu.Username, true /* lower */)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.Phone = core.CleanString(nu.Phone)

	if err := validate.Struct(nu); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, nu.Username, nu.Email)
}

// UpdateUser defines what information may be provided to modify an existing User.
type UpdateUser struct {
	Name            string   `json:"name"`
	Username        string   `json:"username" validate:"omitempty,min=4,alphanum_"`
	Email           string   `json:"email" validate:"omitempty,email"`
	Phone           string   `json:"phone" validate:"omitempty,max=20"`
	IsActive        *bool    `json:"is_active"`
	Roles           []string `json:"roles" validate:"omitempty,allroles"`
	Password        string   `json:"password" validate:"omitempty"`
	PasswordConfirm string   `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
}

func (uu *UpdateUser) Validate(ctx context.Context, origUsr User, validate *validator.Validate, svc Service) error {
	if name := core.CleanString(uu.Name); name != "" {
		uu.Name = name
	} else {
		uu.Name = origUsr.Name
	}
	if uname := core.CleanString(uu.Username, true /* lower */); uname != "" {
		uu.Username = uname
	} else {
		uu.Username = origUsr.Username
	}
	if email := core.CleanString(uu.Email, true /* lower */); email != "" {
		uu.Email = email
	} else {
		uu.Email = origUsr.Email
	}
	if phone := core.CleanString(uu.Phone); phone != "" {
		uu.Phone = phone
	} else {
		uu.Phone = origUsr.Phone
	}

	if err := validate.Struct(uu); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, uu.Username, uu.Email, origUsr)
}

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp ResetUserPassword) Validate(validate *validator.Validate) error { return validate.Struct(rp) }

type QueryFilter struct {
	SchoolID    string
	IDs         []string
	Search      string
	Roles       []string // role prefixes
	IsActive    *bool
	CreatedFrom time.Time
	CreatedTo   time.Time
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.SchoolID == "" && qf.IDs == nil && qf.Search == "" && qf.Roles == nil &&
		qf.IsActive == nil && qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

// GetFilter identifies a single User; the first non-empty field wins.
type GetFilter struct {
	ID              string
	Username        string
	Email           string
	UsernameOrEmail string
}
