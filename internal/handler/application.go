package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/insurance-quoting/internal/middleware"
	"github.com/iliyamo/insurance-quoting/internal/model"
	"github.com/iliyamo/insurance-quoting/internal/service"
)

type ApplicationHandler struct {
	Apps *service.ApplicationService
}

func NewApplicationHandler(a *service.ApplicationService) *ApplicationHandler {
	return &ApplicationHandler{Apps: a}
}

type applicationReq struct {
	FullName string `json:"full_name" validate:"required,min=3,max=200"`
	Phone    string `json:"phone" validate:"required,min=9,max=15,phone"`
	Email    string `json:"email" validate:"required,email"`
	Tariff   string `json:"tariff" validate:"required,oneof=standard premium"`
	QuoteID  string `json:"quote_id" validate:"required,uuid"`
}

type applicationResp struct {
	ID        string                  `json:"id"`
	FullName  string                  `json:"full_name"`
	Phone     string                  `json:"phone"`
	Email     string                  `json:"email"`
	Tariff    model.Tariff            `json:"tariff"`
	Quote     model.Quote             `json:"quote"`
	Owner     userResp                `json:"owner"`
	Status    model.ApplicationStatus `json:"status"`
	CreatedAt time.Time               `json:"created_at"`
	UpdatedAt *time.Time              `json:"updated_at"`
}

func toApplicationResp(d service.ApplicationDetail) applicationResp {
	a := d.Application
	return applicationResp{
		ID:        a.ID,
		FullName:  a.FullName,
		Phone:     a.Phone,
		Email:     a.Email,
		Tariff:    a.Tariff,
		Quote:     d.Quote,
		Owner:     toUserResp(d.Owner),
		Status:    a.Status,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

// Create files an application for the authenticated user. An unknown
// quote_id is a 400.
func (h *ApplicationHandler) Create(c echo.Context) error {
	owner, ok := middleware.CurrentUser(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, middleware.CredentialsDetail)
	}
	var req applicationReq
	if err := bindValid(c, &req); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	d, err := h.Apps.Create(ctx, owner, service.ApplicationRequest{
		FullName: req.FullName,
		Phone:    req.Phone,
		Email:    req.Email,
		Tariff:   model.Tariff(req.Tariff),
		QuoteID:  req.QuoteID,
	})
	switch {
	case errors.Is(err, service.ErrQuoteNotFound):
		return echo.NewHTTPError(http.StatusBadRequest, "Quote not found")
	case errors.Is(err, service.ErrInvalidApplication):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case err != nil:
		return err
	}
	return c.JSON(http.StatusOK, toApplicationResp(d))
}

// Get returns one of the caller's applications; 404 for anything else.
func (h *ApplicationHandler) Get(c echo.Context) error {
	owner, ok := middleware.CurrentUser(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, middleware.CredentialsDetail)
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, []FieldError{{Field: "id", Message: "value is not a valid uuid"}})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	d, err := h.Apps.Get(ctx, owner, id.String())
	if errors.Is(err, service.ErrApplicationNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "Application not found")
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toApplicationResp(d))
}
