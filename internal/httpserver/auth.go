package httpserver

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/vitatrack/fitness_backend/internal/autherr"
	"github.com/vitatrack/fitness_backend/internal/logging"
	"github.com/vitatrack/fitness_backend/internal/middleware"
	"github.com/vitatrack/fitness_backend/internal/reauth"
	"github.com/vitatrack/fitness_backend/internal/service"
)

type AuthHTTP struct {
	Svc    *service.AuthService
	Reauth *reauth.Manager
}

func (h *AuthHTTP) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_register")

	var req struct {
		Email    string `json:"email"`
		Username string `json:"username"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	account, err := h.Svc.Register(ctx, req.Email, req.Username, req.Password, req.Role)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			return echo.NewHTTPError(http.StatusBadRequest, "invalid registration data")
		case errors.Is(err, service.ErrConflict):
			return echo.NewHTTPError(http.StatusConflict, "account already exists")
		}
		l.Error("register_failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"id":       account.ID,
		"email":    account.Email,
		"username": account.Username,
		"role":     account.Role,
	})
}

func (h *AuthHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_login")

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	res, err := h.Svc.Login(ctx, req.Email, req.Password)
	if err != nil {
		return h.authError(c, l, "login_failed", err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"accessToken":    res.AccessToken,
		"refreshToken":   res.RefreshToken,
		"accountId":      res.AccountID,
		"role":           res.Role,
		"professionalId": res.ProfessionalID,
	})
}

func (h *AuthHTTP) Refresh(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_refresh")

	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	res, err := h.Svc.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return h.authError(c, l, "refresh_failed", err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"accessToken":  res.AccessToken,
		"refreshToken": res.RefreshToken,
	})
}

func (h *AuthHTTP) ReauthRequest(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "reauth_request")

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	accountID, err := h.Reauth.Request(ctx, req.Email, req.Password)
	if err != nil {
		return h.authError(c, l, "reauth_request_failed", err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"accountId": accountID,
	})
}

func (h *AuthHTTP) ReauthVerify(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "reauth_verify")

	accountID, ok := middleware.AccountID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
	}

	var req struct {
		Code string `json:"code"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	capability, err := h.Reauth.Verify(ctx, accountID, req.Code)
	if err != nil {
		return h.authError(c, l, "reauth_verify_failed", err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"reauthToken": capability,
	})
}

func (h *AuthHTTP) UpdateEmail(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "update_email")

	accountID, ok := middleware.AccountID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
	}

	var req struct {
		ReauthToken string `json:"reauthToken"`
		NewEmail    string `json:"newEmail"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	if err := h.Svc.UpdateEmail(ctx, req.ReauthToken, accountID, req.NewEmail); err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			return echo.NewHTTPError(http.StatusBadRequest, "invalid email")
		case errors.Is(err, service.ErrConflict):
			return echo.NewHTTPError(http.StatusConflict, "email already in use")
		}
		return h.authError(c, l, "update_email_failed", err)
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "email updated"})
}

func (h *AuthHTTP) UpdatePassword(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "update_password")

	accountID, ok := middleware.AccountID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
	}

	var req struct {
		ReauthToken string `json:"reauthToken"`
		NewPassword string `json:"newPassword"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	if err := h.Svc.UpdatePassword(ctx, req.ReauthToken, accountID, req.NewPassword); err != nil {
		if errors.Is(err, service.ErrValidation) {
			return echo.NewHTTPError(http.StatusBadRequest, "password too short")
		}
		return h.authError(c, l, "update_password_failed", err)
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "password updated"})
}

// authError maps the recoverable auth taxonomy onto response codes. Anything
// outside the taxonomy is a server fault and stays opaque to the client.
func (h *AuthHTTP) authError(c echo.Context, l *slog.Logger, event string, err error) error {
	if locked, ok := autherr.Locked(err); ok {
		l.Warn(event, "status", http.StatusForbidden, "reason", "account locked")
		return c.JSON(http.StatusForbidden, echo.Map{
			"error":       "account locked",
			"lockedUntil": locked.Until.Format(time.RFC3339),
		})
	}
	switch {
	case errors.Is(err, autherr.ErrInvalidCredentials):
		l.Warn(event, "status", http.StatusUnauthorized)
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, autherr.ErrInvalidCode):
		l.Warn(event, "status", http.StatusUnauthorized)
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid code")
	case errors.Is(err, autherr.ErrChallengeNotFound):
		l.Warn(event, "status", http.StatusNotFound)
		return echo.NewHTTPError(http.StatusNotFound, "no reauthentication in progress")
	case errors.Is(err, autherr.ErrChallengeExpired):
		l.Warn(event, "status", http.StatusGone)
		return echo.NewHTTPError(http.StatusGone, "code expired")
	case errors.Is(err, autherr.ErrCapabilityInvalid):
		l.Warn(event, "status", http.StatusForbidden)
		return echo.NewHTTPError(http.StatusForbidden, "reauthentication required")
	}
	l.Warn(event, "status", http.StatusInternalServerError, "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
}
