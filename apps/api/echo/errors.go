package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/edufam/edufam/core"
	"github.com/edufam/edufam/core/academic"
	"github.com/edufam/edufam/core/announcement"
	"github.com/edufam/edufam/core/fee"
	"github.com/edufam/edufam/core/grade"
	"github.com/edufam/edufam/core/message"
	"github.com/edufam/edufam/core/school"
	"github.com/edufam/edufam/core/user"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "authentication failed")
	errAccountDeactivated   = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errSchoolDeactivated    = echo.NewHTTPError(http.StatusForbidden, school.ErrDeactivated.Error())
	errRefreshExpired       = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden        = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound         = echo.NewHTTPError(http.StatusNotFound, "not found")
	errRateLimited          = echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
)

// sentinelCodes maps the domain errors to their HTTP status.
var sentinelCodes = map[error]int{
	core.ErrForbidden:     http.StatusForbidden,
	core.ErrSchoolMissing: http.StatusBadRequest,

	user.ErrNotFound:                  http.StatusNotFound,
	user.ErrUserExists:                http.StatusConflict,
	user.ErrUsernameExists:            http.StatusConflict,
	user.ErrEmailExists:               http.StatusConflict,
	school.ErrNotFound:                http.StatusNotFound,
	school.ErrCodeExists:              http.StatusConflict,
	school.ErrDeactivated:             http.StatusForbidden,
	academic.ErrClassNotFound:         http.StatusNotFound,
	academic.ErrSubjectNotFound:       http.StatusNotFound,
	academic.ErrStudentNotFound:       http.StatusNotFound,
	academic.ErrClassExists:           http.StatusConflict,
	academic.ErrSubjectCodeExists:     http.StatusConflict,
	academic.ErrAdmissionNumberExists: http.StatusConflict,
	grade.ErrNotFound:                 http.StatusNotFound,
	grade.ErrInvalidTransition:        http.StatusConflict,
	fee.ErrStructureNotFound:          http.StatusNotFound,
	fee.ErrStudentFeeNotFound:         http.StatusNotFound,
	fee.ErrReferenceExists:            http.StatusConflict,
	fee.ErrStructureExists:            http.StatusConflict,
	announcement.ErrNotFound:          http.StatusNotFound,
	message.ErrNotFound:               http.StatusNotFound,
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		cause := errors.Cause(err)
		switch origErr := cause.(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				message = origErr.Message
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(translator)
			}
			code = http.StatusBadRequest
			message = fldErrs
		case *core.ValidationError:
			if origErr.Fields != nil {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				message = fldErrs
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		default:
			if c, ok := sentinelCodes[cause]; ok {
				code = c
				message = cause.Error()
				break
			}

			// any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg

			var usr user.User
			if claims, cErr := getContextClaims(ctx); cErr == nil {
				usr.ID = claims.Subject
				usr.SchoolID = claims.SchoolID
				usr.Username = claims.Username
				usr.Email = claims.Email
			}
			logger.Error(msg, errors.Wrap(err, msg), usr)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug && code == http.StatusInternalServerError {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
