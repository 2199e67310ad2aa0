package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/insurance-quoting/internal/model"
)

const userContextKey = "user"

func setUser(c echo.Context, u model.User) { c.Set(userContextKey, u) }

// CurrentUser returns the user stored by BearerAuth. ok is false on routes
// that are not behind BearerAuth.
func CurrentUser(c echo.Context) (model.User, bool) {
	u, ok := c.Get(userContextKey).(model.User)
	return u, ok
}
