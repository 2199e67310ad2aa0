package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/insurance-quoting/internal/model"
)

// QuoteRepo persists quotes. The price is stored as integer cents in
// price_cents.
type QuoteRepo struct{ DB *sql.DB }

func NewQuoteRepo(db *sql.DB) *QuoteRepo { return &QuoteRepo{DB: db} }

// Create inserts q. ID and CreatedAt must already be set.
func (r *QuoteRepo) Create(ctx context.Context, q model.Quote) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO quotes (id, tariff, age, experience, car_type, price_cents, created_at) VALUES (?,?,?,?,?,?,?)",
		q.ID, string(q.Tariff), q.Age, q.Experience, string(q.CarType), int64(q.Price), q.CreatedAt)
	return err
}

// GetByID fetches a quote; ErrNotFound when absent.
func (r *QuoteRepo) GetByID(ctx context.Context, id string) (model.Quote, error) {
	var (
		q       model.Quote
		tariff  string
		carType string
		cents   int64
		updated sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,tariff,age,experience,car_type,price_cents,created_at,updated_at FROM quotes WHERE id=? LIMIT 1",
		id).Scan(&q.ID, &tariff, &q.Age, &q.Experience, &carType, &cents, &q.CreatedAt, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Quote{}, ErrNotFound
	}
	if err != nil {
		return model.Quote{}, err
	}
	q.Tariff = model.Tariff(tariff)
	q.CarType = model.CarType(carType)
	q.Price = model.Money(cents)
	q.UpdatedAt = nullTimePtr(updated)
	return q, nil
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
