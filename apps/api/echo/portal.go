package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/edufam/edufam/core/dashboard"
	"github.com/edufam/edufam/core/navigation"
	"github.com/edufam/edufam/core/user"
)

type portalApi struct {
	dashboard dashboard.Service
	users     user.Service
}

func registerPortalAPI(g *echo.Group, svc dashboard.Service, users user.Service) {
	api := portalApi{dashboard: svc, users: users}
	g.GET("/navigation", api.navigation)
	g.GET("/dashboard", api.stats)
}

func (api *portalApi) navigation(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	return ctx.JSON(http.StatusOK, navigation.ForRoles(claims.Roles))
}

func (api *portalApi) stats(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	stats, err := api.dashboard.Stats(ctx.Request().Context(), usr, getContextSchool(ctx))
	if err != nil {
		return errors.Wrap(err, "computing dashboard stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}
