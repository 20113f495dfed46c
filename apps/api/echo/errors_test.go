package echoapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/edufam/edufam/core"
	"github.com/edufam/edufam/core/academic"
	"github.com/edufam/edufam/core/grade"
)

type errSample struct {
	Name string `json:"name" validate:"required"`
	Term string `json:"term" validate:"oneof=term1 term2"`
}

func Test_appHTTPErrorHandler(t *testing.T) {
	translator := core.NewTranslator()
	validate := validator.New()
	core.InitValidators(validate, translator)

	var shutdowns int
	app := echo.New()
	app.HTTPErrorHandler = newAppHTTPErrorHandler(core.NopLogger{}, translator, func() { shutdowns++ })

	tests := []struct {
		name     string
		err      error
		wantCode int
		wantBody string
	}{
		{
			name: "http error", err: errHttpForbidden,
			wantCode: http.StatusForbidden, wantBody: `{"error":"permission denied"}`,
		},
		{
			name: "wrapped sentinel", err: errors.Wrap(academic.ErrClassNotFound, "loading class"),
			wantCode: http.StatusNotFound, wantBody: `{"error":"class not found"}`,
		},
		{
			name: "conflict", err: grade.ErrInvalidTransition,
			wantCode: http.StatusConflict, wantBody: `{"error":"` + grade.ErrInvalidTransition.Error() + `"}`,
		},
		{
			name: "field error", err: core.NewFieldError("to", "must not be before from"),
			wantCode: http.StatusBadRequest, wantBody: `{"to":"must not be before from"}`,
		},
		{
			name: "validation error without fields", err: &core.ValidationError{Err: errors.New("bad input")},
			wantCode: http.StatusBadRequest, wantBody: `{"error":"bad input"}`,
		},
		{
			name: "validator errors", err: validate.Struct(errSample{Term: "term9"}),
			wantCode: http.StatusBadRequest, wantBody: `{"name":"this field is required","term":"must be one of: term1 term2"}`,
		},
		{
			name: "server error", err: errors.New("boom"),
			wantCode: http.StatusInternalServerError, wantBody: `{"error":"Internal Server Error"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			ctx := app.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
			app.HTTPErrorHandler(tt.err, ctx)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.JSONEq(t, tt.wantBody, rec.Body.String())
		})
	}
	assert.Equal(t, 0, shutdowns)

	t.Run("shutdown", func(t *testing.T) {
		rec := httptest.NewRecorder()
		ctx := app.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
		app.HTTPErrorHandler(errors.Wrap(core.NewShutdownError("integrity"), "saving"), ctx)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, 1, shutdowns)
	})

	t.Run("head requests have no body", func(t *testing.T) {
		rec := httptest.NewRecorder()
		ctx := app.NewContext(httptest.NewRequest(http.MethodHead, "/", nil), rec)
		app.HTTPErrorHandler(errHttpNotFound, ctx)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Empty(t, rec.Body.String())
	})
}
