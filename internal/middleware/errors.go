package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// InternalErrorDetail is returned for unhandled errors outside debug mode.
const InternalErrorDetail = "Internal server error."

// NewHTTPErrorHandler renders every error as {"detail": ...}. *echo.HTTPError
// keeps its status and message; anything else is a 500 whose detail is the
// error text only when debug is set. Unhandled errors are always logged.
func NewHTTPErrorHandler(debug bool, logger *zap.Logger) echo.HTTPErrorHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		var detail any = InternalErrorDetail

		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			detail = he.Message
			if he.Internal != nil {
				logger.Debug("http error", zap.Int("status", code), zap.Error(he.Internal))
			}
		} else {
			logger.Error("unhandled error",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Request().URL.Path),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
				zap.String("ip", c.RealIP()),
				zap.Error(err))
			if debug {
				detail = err.Error()
			}
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(code)
		} else {
			werr = c.JSON(code, echo.Map{"detail": detail})
		}
		if werr != nil {
			logger.Warn("failed to write error response", zap.Error(werr))
		}
	}
}
