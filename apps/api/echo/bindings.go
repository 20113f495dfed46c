package echoapi

import (
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/edufam/edufam/core"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		if field == "" || field == "-" {
			continue
		}
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

func orderings(ctx echo.Context) []core.DBOrdering {
	ord := new(Ordering)
	ord.Bind(ctx)
	return ord.Orderings
}

// queryList returns every value of a repeated or comma separated query param.
func queryList(ctx echo.Context, name string) []string {
	var list []string
	for _, val := range ctx.QueryParams()[name] {
		for _, v := range strings.Split(val, ",") {
			if v = strings.TrimSpace(v); v != "" {
				list = append(list, v)
			}
		}
	}
	return list
}

func queryBool(ctx echo.Context, name string) (*bool, error) {
	val := ctx.QueryParam(name)
	if val == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return nil, core.NewFieldError(name, "must be true or false")
	}
	return &b, nil
}

func queryTime(ctx echo.Context, name string) (time.Time, error) {
	val := ctx.QueryParam(name)
	if val == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		d, dErr := core.ParseDate(val)
		if dErr != nil {
			return time.Time{}, core.NewFieldError(name, "must be an RFC3339 time or a YYYY-MM-DD date")
		}
		return d.Time, nil
	}
	return t, nil
}

func queryDate(ctx echo.Context, name string) (core.Date, error) {
	d, err := core.ParseDate(ctx.QueryParam(name))
	if err != nil {
		return core.Date{}, core.NewFieldError(name, "must be a YYYY-MM-DD date")
	}
	return d, nil
}

// queryDateRange reads `from` and `to` as dates.
func queryDateRange(ctx echo.Context) (from, to core.Date, err error) {
	if from, err = queryDate(ctx, "from"); err != nil {
		return
	}
	if to, err = queryDate(ctx, "to"); err != nil {
		return
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		err = core.NewFieldError("to", "must not be before from")
	}
	return
}

// queryID copies the query param name into dst after checking it is a UUID.
func queryID(ctx echo.Context, name string, dst *string) error {
	val := strings.TrimSpace(ctx.QueryParam(name))
	if val == "" {
		return nil
	}
	if !core.IsID(val) {
		return core.NewFieldError(name, "must be a valid UUID")
	}
	*dst = val
	return nil
}
