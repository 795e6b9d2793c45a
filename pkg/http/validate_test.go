package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type listRequest struct {
	Limit int    `query:"limit" default:"10" validate:"gte=1,lte=100"`
	Level string `query:"level" validate:"omitempty,oneof=INFO WARNING ERROR"`
}

func bindQuery(t *testing.T, query string, req interface{}) interface{} {
	t.Helper()
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/?"+query, nil), httptest.NewRecorder())
	return ReadAndValidateRequest(c, req)
}

func TestReadAndValidateRequest_Defaults(t *testing.T) {
	var req listRequest
	assert.Nil(t, bindQuery(t, "", &req))
	assert.Equal(t, 10, req.Limit)
}

func TestReadAndValidateRequest_ReportsQueryNames(t *testing.T) {
	var req listRequest
	res := bindQuery(t, "limit=500&level=TRACE", &req)
	errs, ok := res.([]ValidationError)
	require.True(t, ok)
	require.Len(t, errs, 2)

	assert.Equal(t, "limit", errs[0].Field)
	assert.Equal(t, "ERR_LTE", errs[0].Code)
	assert.Equal(t, "100", errs[0].Params["max"])

	assert.Equal(t, "level", errs[1].Field)
	assert.Equal(t, "ERR_ONEOF", errs[1].Code)
	assert.Equal(t, "level must be one of: INFO, WARNING, ERROR", errs[1].Message)
}

func TestReadAndValidateRequest_BindFailure(t *testing.T) {
	var req listRequest
	res := bindQuery(t, "limit=ten", &req)
	errs, ok := res.([]ValidationError)
	require.True(t, ok)
	assert.Equal(t, "ERR_BIND", errs[0].Code)
}
