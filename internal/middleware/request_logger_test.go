package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitatrack/fitness_backend/internal/logging"
)

func newLoggedEcho(buf *bytes.Buffer) *echo.Echo {
	logger := slog.New(slog.NewJSONHandler(buf, nil))

	e := echo.New()
	e.Use(echomw.RequestID())
	e.Use(RequestLogger(logger))
	e.GET("/ping", func(c echo.Context) error {
		logging.FromContext(c.Request().Context()).Info("handled")
		return c.NoContent(http.StatusOK)
	})
	return e
}

func lastLogLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.NotEmpty(t, lines)
	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &entry))
	return entry
}

func TestRequestLogger_GeneratedIDReachesLogs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	e := newLoggedEcho(&buf)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	generated := rec.Header().Get(echo.HeaderXRequestID)
	require.NotEmpty(t, generated)

	entry := lastLogLine(t, &buf)
	assert.Equal(t, "request completed", entry["msg"])
	assert.Equal(t, generated, entry["request_id"])

	// the handler's own log line carries the same id
	assert.Contains(t, buf.String(), `"msg":"handled"`)
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		assert.Contains(t, string(line), generated)
	}
}

func TestRequestLogger_ClientSuppliedIDKept(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	e := newLoggedEcho(&buf)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(echo.HeaderXRequestID, "client-rid-42")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	entry := lastLogLine(t, &buf)
	assert.Equal(t, "client-rid-42", entry["request_id"])
}
