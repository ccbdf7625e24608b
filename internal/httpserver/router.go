package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/vitatrack/fitness_backend/internal/middleware"
)

type Deps struct {
	AuthHandler  *AuthHTTP
	AccessSecret []byte
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	authMw := middleware.NewRequireAuth(d.AccessSecret)

	e.POST("/auth/register", d.AuthHandler.Register)
	e.POST("/auth/login", d.AuthHandler.Login)
	e.POST("/auth/refresh", d.AuthHandler.Refresh)

	private := e.Group("/auth")
	private.Use(authMw.Middleware)

	private.POST("/reauth/request", d.AuthHandler.ReauthRequest)
	private.POST("/reauth/verify", d.AuthHandler.ReauthVerify)
	private.PATCH("/email", d.AuthHandler.UpdateEmail)
	private.PATCH("/password", d.AuthHandler.UpdatePassword)
}
