package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/vitatrack/fitness_backend/internal/models"
	"github.com/vitatrack/fitness_backend/internal/reauth"
	"github.com/vitatrack/fitness_backend/internal/repo"
	"github.com/vitatrack/fitness_backend/internal/service"
	"github.com/vitatrack/fitness_backend/internal/stepup"
	"github.com/vitatrack/fitness_backend/internal/tokens"
)

type captureSender struct {
	mu    sync.Mutex
	codes []string
}

func (s *captureSender) Deliver(_ context.Context, _ string, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes = append(s.codes, code)
	return nil
}

func (s *captureSender) last(t *testing.T) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.codes)
	return s.codes[len(s.codes)-1]
}

type httpEnv struct {
	e      *echo.Echo
	sender *captureSender
}

func newHTTPEnv(t *testing.T) *httpEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.Account{}, &models.Nutritionist{}, &models.PhysicalEducator{}))

	issuer := &tokens.Issuer{
		AccessSecret:  []byte("test-access-secret"),
		RefreshSecret: []byte("test-refresh-secret"),
		ReauthSecret:  []byte("test-reauth-secret"),
	}
	credentials := &repo.CredentialRepo{DB: db}
	gate := &stepup.Gate{
		ReauthSecret: issuer.ReauthSecret,
		Used:         stepup.NewMemoryUsedStore(nil),
	}
	sender := &captureSender{}

	e := echo.New()
	Register(e, &Deps{
		AuthHandler: &AuthHTTP{
			Svc: &service.AuthService{
				Repo:   credentials,
				Issuer: issuer,
				Gate:   gate,
			},
			Reauth: &reauth.Manager{
				Repo:   credentials,
				Store:  reauth.NewMemoryStore(nil),
				Issuer: issuer,
				Sender: sender,
			},
		},
		AccessSecret: issuer.AccessSecret,
	})
	return &httpEnv{e: e, sender: sender}
}

func (env *httpEnv) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &decoded)
	}
	return rec, decoded
}

func (env *httpEnv) register(t *testing.T, email, password string) {
	t.Helper()
	rec, _ := env.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"email":    email,
		"username": "u_" + email,
		"password": password,
		"role":     models.RolePatient,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
}

func TestHTTP_RegisterConflict(t *testing.T) {
	t.Parallel()

	env := newHTTPEnv(t)
	env.register(t, "alice@test.com", "Secret123")

	rec, _ := env.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"email":    "alice@test.com",
		"username": "someone-else",
		"password": "Secret123",
		"role":     models.RolePatient,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHTTP_LoginStatusCodes(t *testing.T) {
	t.Parallel()

	env := newHTTPEnv(t)
	env.register(t, "alice@test.com", "Secret123")

	rec, body := env.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "Alice@Test.com", "password": "Secret123",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, body["accessToken"])
	assert.NotEmpty(t, body["refreshToken"])

	rec, _ = env.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "alice@test.com", "password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = env.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "ghost@test.com", "password": "whatever",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHTTP_LoginLockoutReturns403WithLockedUntil(t *testing.T) {
	t.Parallel()

	env := newHTTPEnv(t)
	env.register(t, "alice@test.com", "Secret123")

	var rec *httptest.ResponseRecorder
	var body map[string]any
	for i := 0; i < 3; i++ {
		rec, body = env.do(t, http.MethodPost, "/auth/login", "", map[string]string{
			"email": "alice@test.com", "password": "wrong",
		})
	}
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.NotEmpty(t, body["lockedUntil"])

	// correct password immediately after: still 403
	rec, _ = env.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "alice@test.com", "password": "Secret123",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHTTP_ProtectedRoutesRequireAccessToken(t *testing.T) {
	t.Parallel()

	env := newHTTPEnv(t)

	rec, _ := env.do(t, http.MethodPost, "/auth/reauth/verify", "", map[string]string{"code": "123456"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = env.do(t, http.MethodPatch, "/auth/password", "garbage-token", map[string]string{})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHTTP_FullStepUpFlow(t *testing.T) {
	t.Parallel()

	env := newHTTPEnv(t)
	env.register(t, "alice@test.com", "Secret123")

	_, login := env.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "alice@test.com", "password": "Secret123",
	})
	access, _ := login["accessToken"].(string)
	require.NotEmpty(t, access)

	rec, _ := env.do(t, http.MethodPost, "/auth/reauth/request", access, map[string]string{
		"email": "alice@test.com", "password": "Secret123",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	code := env.sender.last(t)

	// "000000" is outside the generated range, so this is always a miss
	rec, _ = env.do(t, http.MethodPost, "/auth/reauth/verify", access, map[string]string{"code": "000000"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, verify := env.do(t, http.MethodPost, "/auth/reauth/verify", access, map[string]string{"code": code})
	require.Equal(t, http.StatusOK, rec.Code)
	reauthToken, _ := verify["reauthToken"].(string)
	require.NotEmpty(t, reauthToken)

	rec, _ = env.do(t, http.MethodPatch, "/auth/password", access, map[string]string{
		"reauthToken": reauthToken,
		"newPassword": "NewSecret456",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// spent capability: second mutation is refused
	rec, _ = env.do(t, http.MethodPatch, "/auth/email", access, map[string]string{
		"reauthToken": reauthToken,
		"newEmail":    "alice2@test.com",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// old password no longer works, new one does
	rec, _ = env.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "alice@test.com", "password": "Secret123",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec, _ = env.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "alice@test.com", "password": "NewSecret456",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHTTP_VerifyWithoutRequest404(t *testing.T) {
	t.Parallel()

	env := newHTTPEnv(t)
	env.register(t, "alice@test.com", "Secret123")

	_, login := env.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "alice@test.com", "password": "Secret123",
	})
	access, _ := login["accessToken"].(string)
	require.NotEmpty(t, access)

	rec, _ := env.do(t, http.MethodPost, "/auth/reauth/verify", access, map[string]string{"code": "123456"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
