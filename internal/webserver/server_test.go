package webserver

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talkincode/wagate/internal/errs"
)

func serve(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, req)

	var resp Response
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		require.NoError(t, jsoniter.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func TestErrorKindsMapToStatus(t *testing.T) {
	Init(nil)
	ApiGET("/missing", func(c echo.Context) error { return errs.NotFound("instance %s not found", "x") })
	ApiPOST("/dup", func(c echo.Context) error { return errs.AlreadyExists("x") })
	ApiPUT("/full", func(c echo.Context) error { return errs.Capacity(1) })
	ApiDELETE("/boom", func(c echo.Context) error { return errs.Protocol(assert.AnError, "logout") })

	tests := []struct {
		method, path string
		status       int
		code         string
	}{
		{http.MethodGet, "/api/missing", http.StatusNotFound, "NOT_FOUND"},
		{http.MethodPost, "/api/dup", http.StatusConflict, "ALREADY_EXISTS"},
		{http.MethodPut, "/api/full", http.StatusTooManyRequests, "CAPACITY"},
		{http.MethodDelete, "/api/boom", http.StatusInternalServerError, "PROTOCOL"},
		{http.MethodGet, "/api/nowhere", http.StatusNotFound, "NOT_FOUND"},
	}
	for _, tt := range tests {
		rec, resp := serve(t, tt.method, tt.path, "")
		assert.Equal(t, tt.status, rec.Code, tt.path)
		assert.False(t, resp.Success)
		assert.Equal(t, tt.code, resp.Code, tt.path)
		assert.NotEmpty(t, resp.Error)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	Init(nil)
	rec, _ := serve(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestValidatorNamesJSONFields(t *testing.T) {
	type payload struct {
		Jid  string `json:"jid" validate:"required"`
		Text string `json:"text" validate:"required,max=5"`
	}
	v := NewValidator()
	assert.NoError(t, v.Validate(&payload{Jid: "a", Text: "hi"}))

	err := v.Validate(&payload{Text: "too long"})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindValidation))
	assert.Contains(t, err.Error(), "jid (required)")
	assert.Contains(t, err.Error(), "text (max)")
}
