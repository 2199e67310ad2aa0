package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/insurance-quoting/internal/model"
	"github.com/iliyamo/insurance-quoting/internal/repository"
)

var (
	ErrQuoteNotFound       = errors.New("quote not found")
	ErrInvalidQuoteRequest = errors.New("invalid quote request")
)

const (
	MinDriverAge = 18
	MaxDriverAge = 100
	// minLicenseAge bounds experience: nobody drives before 16.
	minLicenseAge = 16
)

type QuoteStore interface {
	Create(ctx context.Context, q model.Quote) error
	GetByID(ctx context.Context, id string) (model.Quote, error)
}

type QuoteRequest struct {
	Tariff     model.Tariff
	Age        int
	Experience int
	CarType    model.CarType
}

// Validate checks enums and the age/experience ranges.
func (r QuoteRequest) Validate() error {
	switch {
	case !r.Tariff.Valid():
		return fmt.Errorf("%w: unknown tariff %q", ErrInvalidQuoteRequest, r.Tariff)
	case !r.CarType.Valid():
		return fmt.Errorf("%w: unknown car type %q", ErrInvalidQuoteRequest, r.CarType)
	case r.Age < MinDriverAge || r.Age > MaxDriverAge:
		return fmt.Errorf("%w: age must be between %d and %d", ErrInvalidQuoteRequest, MinDriverAge, MaxDriverAge)
	case r.Experience < 0 || r.Experience > r.Age-minLicenseAge:
		return fmt.Errorf("%w: experience must be between 0 and %d", ErrInvalidQuoteRequest, max(r.Age-minLicenseAge, 0))
	}
	return nil
}

// Coefficients are expressed in tenths so pricing stays in integer cents.
var (
	tariffCoeff = map[model.Tariff]int64{model.TariffStandard: 10, model.TariffPremium: 15}
	carCoeff    = map[model.CarType]int64{model.CarSedan: 10, model.CarSUV: 12, model.CarTruck: 13}
)

func ageCoeff(age int) int64 {
	switch {
	case age < 25:
		return 12
	case age > 60:
		return 11
	}
	return 10
}

func experienceCoeff(years int) int64 {
	switch {
	case years < 2:
		return 13
	case years < 5:
		return 11
	}
	return 10
}

type QuoteService struct {
	store QuoteStore
	base  model.Money
	now   func() time.Time
	log   *zap.Logger
}

func NewQuoteService(store QuoteStore, basePrice model.Money, logger *zap.Logger) *QuoteService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuoteService{store: store, base: basePrice, now: time.Now, log: logger}
}

// CalculatePrice applies the tariff, age, experience and car coefficients
// to the base price and rounds half-up to the cent. r must be valid.
func (s *QuoteService) CalculatePrice(r QuoteRequest) model.Money {
	// four factors in tenths
	const scale = 10 * 10 * 10 * 10
	x := int64(s.base) * tariffCoeff[r.Tariff] * ageCoeff(r.Age) * experienceCoeff(r.Experience) * carCoeff[r.CarType]
	return model.Money((x + scale/2) / scale)
}

// Create prices and stores a new quote.
func (s *QuoteService) Create(ctx context.Context, r QuoteRequest) (model.Quote, error) {
	if err := r.Validate(); err != nil {
		return model.Quote{}, err
	}
	q := model.Quote{
		ID:         uuid.NewString(),
		Tariff:     r.Tariff,
		Age:        r.Age,
		Experience: r.Experience,
		CarType:    r.CarType,
		Price:      s.CalculatePrice(r),
		CreatedAt:  s.now().UTC().Truncate(time.Second),
	}
	if err := s.store.Create(ctx, q); err != nil {
		return model.Quote{}, fmt.Errorf("store quote: %w", err)
	}
	s.log.Info("quote created", zap.String("quote_id", q.ID), zap.Stringer("price", q.Price))
	return q, nil
}

func (s *QuoteService) Get(ctx context.Context, id string) (model.Quote, error) {
	q, err := s.store.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Quote{}, ErrQuoteNotFound
	}
	if err != nil {
		return model.Quote{}, fmt.Errorf("load quote: %w", err)
	}
	return q, nil
}
