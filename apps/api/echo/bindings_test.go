package echoapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edufam/edufam/core"
)

func queryCtx(query string) echo.Context {
	req := httptest.NewRequest(http.MethodGet, "/?"+query, nil)
	return echo.New().NewContext(req, httptest.NewRecorder())
}

func fieldErr(t *testing.T, err error) core.FieldError {
	t.Helper()
	var vErr *core.ValidationError
	require.ErrorAs(t, err, &vErr)
	require.Len(t, vErr.Fields, 1)
	return vErr.Fields[0]
}

func Test_orderings(t *testing.T) {
	assert.Nil(t, orderings(queryCtx("")))
	assert.Nil(t, orderings(queryCtx("ordering=")))
	assert.Equal(t, []core.DBOrdering{
		{Field: "name", Ascending: true},
		{Field: "created_at", Ascending: false},
	}, orderings(queryCtx("ordering=name,%20,-,-created_at")))
}

func Test_queryList(t *testing.T) {
	assert.Nil(t, queryList(queryCtx(""), "status"))
	assert.Equal(t, []string{"draft", "rejected", "approved"}, queryList(queryCtx("status=draft,%20rejected&status=approved&status="), "status"))
}

func Test_queryBool(t *testing.T) {
	b, err := queryBool(queryCtx(""), "published")
	require.NoError(t, err)
	assert.Nil(t, b)

	b, err = queryBool(queryCtx("published=false"), "published")
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.False(t, *b)

	_, err = queryBool(queryCtx("published=maybe"), "published")
	assert.Equal(t, core.FieldError{Field: "published", Error: "must be true or false"}, fieldErr(t, err))
}

func Test_queryTime(t *testing.T) {
	v, err := queryTime(queryCtx(""), "since")
	require.NoError(t, err)
	assert.True(t, v.IsZero())

	v, err = queryTime(queryCtx("since=2026-03-01T10:30:00Z"), "since")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC), v)

	v, err = queryTime(queryCtx("since=2026-03-01"), "since")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), v)

	_, err = queryTime(queryCtx("since=yesterday"), "since")
	assert.Equal(t, "since", fieldErr(t, err).Field)
}

func Test_queryDateRange(t *testing.T) {
	from, to, err := queryDateRange(queryCtx(""))
	require.NoError(t, err)
	assert.True(t, from.IsZero())
	assert.True(t, to.IsZero())

	from, to, err = queryDateRange(queryCtx("from=2024-03-04&to=2024-03-04"))
	require.NoError(t, err)
	assert.Equal(t, "2024-03-04", from.String())
	assert.Equal(t, "2024-03-04", to.String())

	_, _, err = queryDateRange(queryCtx("from=04/03/2024"))
	assert.Equal(t, core.FieldError{Field: "from", Error: "must be a YYYY-MM-DD date"}, fieldErr(t, err))

	_, _, err = queryDateRange(queryCtx("from=2024-03-05&to=2024-03-04"))
	assert.Equal(t, core.FieldError{Field: "to", Error: "must not be before from"}, fieldErr(t, err))
}

func Test_queryID(t *testing.T) {
	id := core.NewID()
	dst := "unchanged"
	require.NoError(t, queryID(queryCtx(""), "class_id", &dst))
	assert.Equal(t, "unchanged", dst)

	require.NoError(t, queryID(queryCtx("class_id="+id), "class_id", &dst))
	assert.Equal(t, id, dst)

	err := queryID(queryCtx("class_id=lol"), "class_id", &dst)
	assert.Equal(t, core.FieldError{Field: "class_id", Error: "must be a valid UUID"}, fieldErr(t, err))
	assert.Equal(t, id, dst)
}
