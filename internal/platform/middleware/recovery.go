package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/healthvault/vault/internal/platform/auth"
)

const panicStackSize = 4 << 10

// PanicError carries a recovered panic value to the error handler, which
// renders it as a plain 500 and exposes the value only in development.
type PanicError struct {
	Value interface{}
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Recovery turns a handler panic into a 500. The stack is logged here; the
// response body is left to ErrorHandler.
func Recovery(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				if e, ok := r.(error); ok && errors.Is(e, http.ErrAbortHandler) {
					panic(r)
				}

				stack := make([]byte, panicStackSize)
				stack = stack[:runtime.Stack(stack, false)]
				pe := &PanicError{Value: r, Stack: stack}

				ev := logger.Error().
					Str("request_id", requestID(c)).
					Str("method", c.Request().Method).
					Str("path", c.Request().URL.Path).
					Bytes("stack", stack)
				if uid := auth.UserIDFromContext(c.Request().Context()); uid != "" {
					ev = ev.Str("uid", uid)
				}
				ev.Str("panic", fmt.Sprint(r)).Msg("handler panicked")

				err = echo.NewHTTPError(http.StatusInternalServerError, "Internal server error").SetInternal(pe)
			}()
			return next(c)
		}
	}
}
