package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/insurance-quoting/internal/model"
	"github.com/iliyamo/insurance-quoting/internal/queue"
	"github.com/iliyamo/insurance-quoting/internal/repository"
)

var (
	ErrApplicationNotFound = errors.New("application not found")
	ErrInvalidApplication  = errors.New("invalid application")
)

const publishTimeout = 3 * time.Second

type ApplicationStore interface {
	Create(ctx context.Context, a model.Application) error
	GetForOwner(ctx context.Context, id, ownerID string) (model.Application, error)
}

// EventPublisher delivers application events to the broker.
type EventPublisher interface {
	PublishApplicationCreated(ctx context.Context, ev queue.ApplicationCreatedEvent) error
}

type ApplicationRequest struct {
	FullName string
	Phone    string
	Email    string
	Tariff   model.Tariff
	QuoteID  string
}

// ApplicationDetail is an application with its quote and owner resolved.
type ApplicationDetail struct {
	Application model.Application
	Quote       model.Quote
	Owner       model.User
}

type ApplicationService struct {
	apps      ApplicationStore
	quotes    QuoteStore
	publisher EventPublisher
	now       func() time.Time
	log       *zap.Logger
}

// NewApplicationService builds the service; publisher may be nil, in which
// case no events are sent.
func NewApplicationService(apps ApplicationStore, quotes QuoteStore, publisher EventPublisher, logger *zap.Logger) *ApplicationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ApplicationService{apps: apps, quotes: quotes, publisher: publisher, now: time.Now, log: logger}
}

// Create stores a new application for owner. The referenced quote must
// exist; ErrQuoteNotFound otherwise.
func (s *ApplicationService) Create(ctx context.Context, owner model.User, r ApplicationRequest) (ApplicationDetail, error) {
	if !r.Tariff.Valid() {
		return ApplicationDetail{}, fmt.Errorf("%w: unknown tariff %q", ErrInvalidApplication, r.Tariff)
	}
	q, err := s.quotes.GetByID(ctx, r.QuoteID)
	if errors.Is(err, repository.ErrNotFound) {
		return ApplicationDetail{}, ErrQuoteNotFound
	}
	if err != nil {
		return ApplicationDetail{}, fmt.Errorf("load quote: %w", err)
	}

	a := model.Application{
		ID:        uuid.NewString(),
		FullName:  r.FullName,
		Phone:     r.Phone,
		Email:     r.Email,
		Tariff:    r.Tariff,
		QuoteID:   q.ID,
		OwnerID:   owner.ID,
		Status:    model.ApplicationNew,
		CreatedAt: s.now().UTC().Truncate(time.Second),
	}
	if err := s.apps.Create(ctx, a); err != nil {
		return ApplicationDetail{}, fmt.Errorf("store application: %w", err)
	}
	s.log.Info("application created", zap.String("application_id", a.ID), zap.String("owner_id", owner.ID))
	s.publishCreated(ctx, a, q, owner)
	return ApplicationDetail{Application: a, Quote: q, Owner: owner}, nil
}

// Get returns owner's application; applications of other users are
// reported as not found.
func (s *ApplicationService) Get(ctx context.Context, owner model.User, id string) (ApplicationDetail, error) {
	a, err := s.apps.GetForOwner(ctx, id, owner.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return ApplicationDetail{}, ErrApplicationNotFound
	}
	if err != nil {
		return ApplicationDetail{}, fmt.Errorf("load application: %w", err)
	}
	q, err := s.quotes.GetByID(ctx, a.QuoteID)
	if err != nil {
		return ApplicationDetail{}, fmt.Errorf("load quote %s: %w", a.QuoteID, err)
	}
	return ApplicationDetail{Application: a, Quote: q, Owner: owner}, nil
}

// publishCreated is best effort: a broker failure never fails the request.
func (s *ApplicationService) publishCreated(ctx context.Context, a model.Application, q model.Quote, owner model.User) {
	if s.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	ev := queue.ApplicationCreatedEvent{
		ApplicationID: a.ID,
		OwnerID:       owner.ID,
		Username:      owner.Username,
		QuoteID:       q.ID,
		Tariff:        string(a.Tariff),
		Price:         q.Price.String(),
		Status:        string(a.Status),
		CreatedAt:     a.CreatedAt.Format(time.RFC3339),
	}
	if err := s.publisher.PublishApplicationCreated(ctx, ev); err != nil {
		s.log.Warn("publish application.created failed", zap.String("application_id", a.ID), zap.Error(err))
	}
}
