package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/insurance-quoting/internal/service"
)

// AuthHandler exposes register, login, refresh and logout.
type AuthHandler struct {
	Auth *service.AuthService
}

func NewAuthHandler(a *service.AuthService) *AuthHandler { return &AuthHandler{Auth: a} }

type registerReq struct {
	Username        string `json:"username" validate:"required,min=3,max=50"`
	Password        string `json:"password" validate:"required,password"`
	PasswordConfirm string `json:"password_confirm" validate:"required,password,eqfield=Password"`
	FullName        string `json:"full_name" validate:"required,min=3,max=200"`
}

type loginReq struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Password string `json:"password" validate:"required,password"`
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// Register creates the user and returns a token pair (201). Duplicate
// usernames and mismatched passwords are 422.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := bindValid(c, &req); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	pair, err := h.Auth.Register(ctx, service.RegisterInput{
		Username:        req.Username,
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
		FullName:        req.FullName,
	})
	switch {
	case errors.Is(err, service.ErrUserExists):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "User with this username already exists")
	case errors.Is(err, service.ErrPasswordMismatch):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "Passwords do not match")
	case err != nil:
		return err
	}
	return c.JSON(http.StatusCreated, pair)
}

// Login returns a fresh pair, or 401 without saying which part was wrong.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bindValid(c, &req); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	pair, err := h.Auth.Login(ctx, req.Username, req.Password)
	if errors.Is(err, service.ErrInvalidCredentials) {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid credentials")
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pair)
}

// Refresh exchanges a refresh token for a new pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := bindValid(c, &req); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	pair, err := h.Auth.Refresh(ctx, req.RefreshToken)
	if errors.Is(err, service.ErrInvalidToken) {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid refresh token")
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pair)
}

// Logout revokes the refresh token in the body; 204 on success.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	if err := bindValid(c, &req); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	err := h.Auth.Logout(ctx, req.RefreshToken)
	switch {
	case errors.Is(err, service.ErrInvalidToken):
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid refresh token")
	case errors.Is(err, service.ErrRevocationUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Logout is temporarily unavailable")
	case err != nil:
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
