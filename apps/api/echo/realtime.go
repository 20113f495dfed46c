package echoapi

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/edufam/edufam/core"
	"github.com/edufam/edufam/core/realtime"
	realtimesvc "github.com/edufam/edufam/services/realtime"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

type realtimeApi struct {
	auth   *authenticator
	broker realtime.Broker
	logger core.Logger
}

// registerRealtimeAPI mounts the websocket endpoint; browsers cannot set headers on upgrade
// so the token is read from the `token` query param.
func registerRealtimeAPI(g *echo.Group, conf *core.Config, auth *authenticator, broker realtime.Broker, logger core.Logger) {
	if broker == nil {
		return
	}
	api := realtimeApi{auth: auth, broker: broker, logger: logger}
	g.GET("/realtime", api.connect, middleware.JWTWithConfig(jwtConfig(conf, "query:token")))
}

func (api *realtimeApi) connect(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.auth.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if !usr.IsActive {
		return errAccountDeactivated
	}
	if err = api.auth.checkSchool(ctx.Request().Context(), usr); err != nil {
		return err
	}

	conn, err := upgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		// the upgrader already replied to the client
		api.logger.Warn("websocket upgrade failed: " + err.Error())
		return nil
	}

	id := realtimesvc.Identity{UserID: usr.ID, SchoolID: usr.SchoolID, PlatformAdmin: usr.IsPlatformAdmin()}
	realtimesvc.NewSession(conn, api.broker, id, api.logger).Run(ctx.Request().Context())
	return nil
}
