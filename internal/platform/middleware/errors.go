package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// ErrorHandler renders every error as {"error": message}. Errors that are not
// *echo.HTTPError become a generic 500; with exposeDetails the underlying
// error text is attached as "details" (never in production).
func ErrorHandler(logger zerolog.Logger, exposeDetails bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		body := map[string]interface{}{"error": "Internal server error"}

		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			switch msg := he.Message.(type) {
			case string:
				body["error"] = msg
			case nil:
				body["error"] = http.StatusText(code)
			default:
				body["error"] = msg
			}
			if he.Internal != nil {
				if code >= http.StatusInternalServerError {
					logger.Error().Err(he.Internal).Str("request_id", requestID(c)).Msg("request failed")
				}
				if exposeDetails {
					body["details"] = he.Internal.Error()
				}
			}
		} else {
			logger.Error().Err(err).Str("request_id", requestID(c)).Msg("unhandled error")
			if exposeDetails {
				body["details"] = err.Error()
			}
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, body)
		}
		if err != nil {
			logger.Error().Err(err).Msg("write error response")
		}
	}
}

func requestID(c echo.Context) string {
	rid, _ := c.Get("request_id").(string)
	return rid
}
