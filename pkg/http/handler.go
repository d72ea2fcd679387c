package http

import "github.com/labstack/echo/v4"

// Handler registers a group of API routes on the echo instance. The server
// calls it once at construction, before the /metrics route is mounted.
type Handler interface {
	RegisterRoutes(e *echo.Echo)
}
