package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/edufam/edufam/core"
	"github.com/edufam/edufam/core/audit"
)

type auditApi struct {
	svc audit.Service
}

func registerAuditAPI(g *echo.Group, svc audit.Service) {
	api := auditApi{svc: svc}
	g.GET("/audit-logs", api.query, requireRoles(adminRoles...))
}

func (api *auditApi) query(ctx echo.Context) error {
	var err error
	filter := &audit.QueryFilter{
		SchoolID: getContextSchool(ctx),
		Action:   core.CleanString(ctx.QueryParam("action"), true /* lower */),
		Resource: core.CleanString(ctx.QueryParam("resource"), true /* lower */),
	}
	if err = queryID(ctx, "actor_id", &filter.ActorID); err != nil {
		return err
	}
	if err = queryID(ctx, "resource_id", &filter.ResourceID); err != nil {
		return err
	}
	if filter.From, err = queryTime(ctx, "from"); err != nil {
		return err
	}
	if filter.To, err = queryTime(ctx, "to"); err != nil {
		return err
	}

	entries, err := api.svc.Query(ctx.Request().Context(), filter, orderings(ctx))
	if err != nil {
		return errors.Wrap(err, "querying audit logs")
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	return ctx.JSON(http.StatusOK, entries)
}
