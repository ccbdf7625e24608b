package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/vitatrack/fitness_backend/internal/tokens"
)

// Context keys set by RequireAuth.
const (
	CtxAccountID = "account_id"
	CtxEmail     = "email"
	CtxRole      = "role"
)

type RequireAuth struct {
	AccessSecret []byte
}

func NewRequireAuth(secret []byte) *RequireAuth {
	return &RequireAuth{AccessSecret: secret}
}

// Middleware validates the bearer access token and stores its claims on the
// echo context. Reauth capabilities and refresh tokens never pass here:
// they are signed with different secrets and carry different claims.
func (m *RequireAuth) Middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		tokenStr, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenStr == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
		}

		claims, err := tokens.AccessClaimsFromToken(tokenStr, m.AccessSecret)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
		}
		accountID, err := uuid.Parse(claims.Subject)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
		}

		c.Set(CtxAccountID, accountID)
		c.Set(CtxEmail, claims.Email)
		c.Set(CtxRole, claims.Role)
		return next(c)
	}
}

// AccountID extracts the authenticated account id stored by RequireAuth.
func AccountID(c echo.Context) (uuid.UUID, bool) {
	id, ok := c.Get(CtxAccountID).(uuid.UUID)
	return id, ok
}
