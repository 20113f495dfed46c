package echoapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/edufam/edufam/core"
	"github.com/edufam/edufam/core/audit"
	"github.com/edufam/edufam/core/user"
)

// role groups allowed on the school-scoped endpoints; platform admins pass every check.
var (
	adminRoles    = []string{user.RoleAdmin}
	staffRoles    = []string{user.RoleAdmin, user.RoleStaff}
	financeRoles  = []string{user.RoleAdmin, user.RoleFinanceOfficer}
	teachingRoles = []string{user.RoleAdmin, user.RoleTeacher}
)

func claimsHaveAnyRole(claims Claims, roles []string) bool {
	for _, prefix := range roles {
		if user.HasRolePrefix(claims.Roles, prefix) {
			return true
		}
	}
	return false
}

// requireRoles lets platform admins and the users holding a role matching one of the prefixes through.
func requireRoles(prefixes ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.IsPlatformAdmin || claimsHaveAnyRole(claims, prefixes) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

func platformAdminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		claims, err := getContextClaims(ctx)
		if err != nil {
			return errors.Wrap(err, "getting context claims")
		}
		if claims.IsPlatformAdmin {
			return next(ctx)
		}
		return errHttpForbidden
	}
}

// tenantMiddleware resolves the school in scope: the caller's own school, or `?school_id` for platform admins.
// When required, a request without a school in scope fails.
func tenantMiddleware(required bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}

			schoolID := claims.SchoolID
			if claims.IsPlatformAdmin {
				schoolID = ctx.QueryParam("school_id")
			}
			if schoolID != "" && !core.IsID(schoolID) {
				return core.NewFieldError("school_id", "must be a valid UUID")
			}
			if required && schoolID == "" {
				return core.ErrSchoolMissing
			}
			ctx.Set(contextSchoolKey, schoolID)

			req := ctx.Request()
			actor := audit.Actor{ID: claims.Subject, SchoolID: schoolID, IP: ctx.RealIP()}
			ctx.SetRequest(req.WithContext(audit.WithActor(req.Context(), actor)))
			return next(ctx)
		}
	}
}

// metricsMiddleware records every request against its route template.
func metricsMiddleware(m Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			m.RequestStarted()
			start := time.Now()

			if err := next(ctx); err != nil {
				ctx.Error(err) // commit the response so its status is known
			}

			path := ctx.Path()
			if path == "" {
				path = "unmatched"
			}
			status := ctx.Response().Status
			if status == 0 {
				status = http.StatusOK
			}
			m.RequestDone(ctx.Request().Method, path, status, time.Since(start).Seconds())
			return nil
		}
	}
}
