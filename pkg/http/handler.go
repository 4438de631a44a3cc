package http

import "github.com/labstack/echo/v4"

// Handler is implemented by anything that can mount routes on the server.
// The server calls RegisterRoutes once, before it starts listening.
type Handler interface {
	RegisterRoutes(e *echo.Echo)
}
