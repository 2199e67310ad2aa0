package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/insurance-quoting/internal/middleware"
	"github.com/iliyamo/insurance-quoting/internal/model"
)

type userResp struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Username string `json:"username"`
}

func toUserResp(u model.User) userResp {
	return userResp{ID: u.ID, FullName: u.FullName, Username: u.Username}
}

// Me returns the authenticated user. Must run behind BearerAuth.
func Me(c echo.Context) error {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, middleware.CredentialsDetail)
	}
	return c.JSON(http.StatusOK, toUserResp(u))
}
