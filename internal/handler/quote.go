package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/insurance-quoting/internal/model"
	"github.com/iliyamo/insurance-quoting/internal/service"
)

type QuoteHandler struct {
	Quotes *service.QuoteService
}

func NewQuoteHandler(q *service.QuoteService) *QuoteHandler { return &QuoteHandler{Quotes: q} }

type quoteReq struct {
	Tariff     string `json:"tariff" validate:"required,oneof=standard premium"`
	Age        int    `json:"age" validate:"gte=18,lte=100"`
	Experience int    `json:"experience" validate:"gte=0"`
	CarType    string `json:"car_type" validate:"required,oneof=sedan suv truck"`
}

// Create prices and stores a quote.
func (h *QuoteHandler) Create(c echo.Context) error {
	var req quoteReq
	if err := bindValid(c, &req); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	q, err := h.Quotes.Create(ctx, service.QuoteRequest{
		Tariff:     model.Tariff(req.Tariff),
		Age:        req.Age,
		Experience: req.Experience,
		CarType:    model.CarType(req.CarType),
	})
	if errors.Is(err, service.ErrInvalidQuoteRequest) {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, q)
}

// Get returns a quote by id; 404 when it does not exist.
func (h *QuoteHandler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, []FieldError{{Field: "id", Message: "value is not a valid uuid"}})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	q, err := h.Quotes.Get(ctx, id.String())
	if errors.Is(err, service.ErrQuoteNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "Quote not found")
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, q)
}
