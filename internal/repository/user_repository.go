package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/insurance-quoting/internal/model"
)

// ErrUsernameExists is returned by Create when the username is taken.
var ErrUsernameExists = fmt.Errorf("username already exists: %w", ErrConflict)

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = "id,full_name,username,password,created_at,updated_at"

// Create inserts a user with an already hashed password and returns it.
func (r *UserRepo) Create(ctx context.Context, fullName, username, passwordHash string) (model.User, error) {
	u := model.User{
		ID:        uuid.NewString(),
		FullName:  strings.TrimSpace(fullName),
		Username:  strings.TrimSpace(username),
		Password:  passwordHash,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (id, full_name, username, password, created_at) VALUES (?,?,?,?,?)",
		u.ID, u.FullName, u.Username, u.Password, u.CreatedAt)
	if err != nil {
		if isDuplicateKey(err) {
			return model.User{}, ErrUsernameExists
		}
		return model.User{}, err
	}
	return u, nil
}

// FindByUsername returns nil, nil when no user has the given username.
func (r *UserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE username=? LIMIT 1",
		strings.TrimSpace(username)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByID fetches a user by id; ErrNotFound when absent.
func (r *UserRepo) GetByID(ctx context.Context, id string) (model.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	return u, err
}

func scanUser(row *sql.Row) (model.User, error) {
	var (
		u       model.User
		updated sql.NullTime
	)
	if err := row.Scan(&u.ID, &u.FullName, &u.Username, &u.Password, &u.CreatedAt, &updated); err != nil {
		return model.User{}, err
	}
	if updated.Valid {
		t := updated.Time
		u.UpdatedAt = &t
	}
	return u, nil
}
