package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/nexus/internal/apperror"
)

// Recovery turns a handler panic into a 500 AppError. The stack is logged,
// never sent to the client.
func Recovery() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				if r == http.ErrAbortHandler {
					panic(r)
				}
				req := c.Request()
				slog.ErrorContext(req.Context(), "handler panicked",
					slog.String("route", c.Path()),
					slog.String("method", req.Method),
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())),
				)
				err = apperror.NewInternal(fmt.Errorf("panic in %s %s: %v", req.Method, c.Path(), r))
			}()
			return next(c)
		}
	}
}
