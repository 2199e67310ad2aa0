package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/insurance-quoting/internal/model"
)

type ApplicationRepo struct{ DB *sql.DB }

func NewApplicationRepo(db *sql.DB) *ApplicationRepo { return &ApplicationRepo{DB: db} }

// Create inserts a. ID, Status and CreatedAt must already be set.
func (r *ApplicationRepo) Create(ctx context.Context, a model.Application) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO applications (id, full_name, phone, email, tariff, quote_id, owner_id, status, created_at)
		 VALUES (?,?,?,?,?,?,?,?,?)`,
		a.ID, a.FullName, a.Phone, a.Email, string(a.Tariff), a.QuoteID, a.OwnerID, string(a.Status), a.CreatedAt)
	return err
}

// GetForOwner fetches an application only if it belongs to ownerID.
func (r *ApplicationRepo) GetForOwner(ctx context.Context, id, ownerID string) (model.Application, error) {
	var (
		a       model.Application
		tariff  string
		status  string
		updated sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx,
		`SELECT id,full_name,phone,email,tariff,quote_id,owner_id,status,created_at,updated_at
		 FROM applications WHERE id=? AND owner_id=? LIMIT 1`,
		id, ownerID).Scan(&a.ID, &a.FullName, &a.Phone, &a.Email, &tariff, &a.QuoteID, &a.OwnerID, &status, &a.CreatedAt, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Application{}, ErrNotFound
	}
	if err != nil {
		return model.Application{}, err
	}
	a.Tariff = model.Tariff(tariff)
	a.Status = model.ApplicationStatus(status)
	a.UpdatedAt = nullTimePtr(updated)
	return a, nil
}
