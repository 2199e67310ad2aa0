package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/insurance-quoting/internal/model"
	"github.com/iliyamo/insurance-quoting/internal/service"
)

// CredentialsDetail is the body detail of every bearer-auth 401.
const CredentialsDetail = "Invalid authentication credentials"

// Authenticator resolves an access token to its user. It returns
// service.ErrInvalidToken for tokens that must be answered with 401.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (model.User, error)
}

// BearerAuth validates the Authorization: Bearer header and stores the
// authenticated user in the context (see CurrentUser). Infrastructure
// errors are passed on to the HTTP error handler.
func BearerAuth(auth Authenticator, logger *zap.Logger) echo.MiddlewareFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				return unauthorized(c)
			}
			u, err := auth.Authenticate(c.Request().Context(), raw)
			if errors.Is(err, service.ErrInvalidToken) {
				return unauthorized(c)
			}
			if err != nil {
				return err
			}
			setUser(c, u)
			return next(c)
		}
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthorized(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
	return c.JSON(http.StatusUnauthorized, echo.Map{"detail": CredentialsDetail})
}
