// Package service implements the business operations behind the HTTP
// handlers: authentication, quoting and applications. Services depend on
// small store interfaces so they can be exercised without a database.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/iliyamo/insurance-quoting/internal/instrumentation"
	"github.com/iliyamo/insurance-quoting/internal/model"
	"github.com/iliyamo/insurance-quoting/internal/repository"
	"github.com/iliyamo/insurance-quoting/internal/security"
)

var (
	ErrUserExists         = errors.New("user with this username already exists")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	// ErrRevocationUnavailable is returned by Logout when no revocation
	// store is configured.
	ErrRevocationUnavailable = errors.New("token revocation unavailable")
)

// UserStore is the user lookup/persistence collaborator.
// FindByUsername returns nil, nil when the user does not exist.
type UserStore interface {
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	Create(ctx context.Context, fullName, username, passwordHash string) (model.User, error)
}

// RevocationStore remembers revoked token ids until the token expires.
type RevocationStore interface {
	Revoke(ctx context.Context, jti string, exp time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// TokenPair is returned by every successful register, login and refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

type RegisterInput struct {
	Username        string
	Password        string
	PasswordConfirm string
	FullName        string
}

// AuthDeps wires an AuthService. Revocations and Metrics may be nil.
type AuthDeps struct {
	Users         UserStore
	Hasher        *security.PasswordHasher
	Tokens        *security.TokenService
	Revocations   RevocationStore
	RotateRefresh bool
	Metrics       *instrumentation.Metrics
	Logger        *zap.Logger
}

// AuthService registers users, checks credentials and mints token pairs.
// Every token carries sub = username.
type AuthService struct {
	users    UserStore
	hasher   *security.PasswordHasher
	tokens   *security.TokenService
	revoked  RevocationStore
	rotate   bool
	metrics  *instrumentation.Metrics
	logger   *zap.Logger
	dummy    string
	dummyErr error
	once     sync.Once
}

func NewAuthService(d AuthDeps) *AuthService {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return &AuthService{
		users:   d.Users,
		hasher:  d.Hasher,
		tokens:  d.Tokens,
		revoked: d.Revocations,
		rotate:  d.RotateRefresh,
		metrics: d.Metrics,
		logger:  d.Logger,
	}
}

// Register creates the user and returns a fresh token pair for it.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (TokenPair, error) {
	if in.Password != in.PasswordConfirm {
		return TokenPair{}, ErrPasswordMismatch
	}
	existing, err := s.users.FindByUsername(ctx, in.Username)
	if err != nil {
		return TokenPair{}, fmt.Errorf("lookup user: %w", err)
	}
	if existing != nil {
		return TokenPair{}, ErrUserExists
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return TokenPair{}, fmt.Errorf("hash password: %w", err)
	}
	u, err := s.users.Create(ctx, in.FullName, in.Username, hash)
	if errors.Is(err, repository.ErrConflict) {
		// lost a race with a concurrent registration
		return TokenPair{}, ErrUserExists
	}
	if err != nil {
		return TokenPair{}, fmt.Errorf("create user: %w", err)
	}
	s.logger.Info("user registered", zap.String("user_id", u.ID), zap.String("username", u.Username))
	return s.issuePair(ctx, u.Username)
}

// Login returns ErrInvalidCredentials both for unknown users and for wrong
// passwords. Unknown users are verified against a throwaway hash so both
// paths pay the bcrypt cost.
func (s *AuthService) Login(ctx context.Context, username, password string) (TokenPair, error) {
	u, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return TokenPair{}, fmt.Errorf("lookup user: %w", err)
	}
	if u == nil {
		if dummy, derr := s.dummyHash(); derr == nil {
			s.hasher.Verify(password, dummy)
		}
		s.metrics.RecordLoginFailed(ctx)
		return TokenPair{}, ErrInvalidCredentials
	}
	if !s.hasher.Verify(password, u.Password) {
		s.metrics.RecordLoginFailed(ctx)
		return TokenPair{}, ErrInvalidCredentials
	}
	return s.issuePair(ctx, u.Username)
}

// Refresh exchanges a valid refresh token for a new pair. The presented
// token stays valid unless rotation is enabled, in which case it is revoked
// once the new pair has been minted.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.verify(ctx, refreshToken)
	if err != nil {
		return TokenPair{}, err
	}
	pair, err := s.issuePair(ctx, claims.Subject)
	if err != nil {
		return TokenPair{}, err
	}
	if s.rotate && s.revoked != nil {
		if err := s.revoked.Revoke(ctx, claims.ID, claims.Exp); err != nil {
			return TokenPair{}, fmt.Errorf("revoke refresh token: %w", err)
		}
		s.metrics.RecordTokenRevoked(ctx, "rotation")
	}
	return pair, nil
}

// Logout revokes the presented refresh token.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.verify(ctx, refreshToken)
	if err != nil {
		return err
	}
	if s.revoked == nil {
		return ErrRevocationUnavailable
	}
	if err := s.revoked.Revoke(ctx, claims.ID, claims.Exp); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	s.metrics.RecordTokenRevoked(ctx, "logout")
	s.logger.Info("refresh token revoked", zap.String("username", claims.Subject))
	return nil
}

// Authenticate resolves a bearer token to its user. Tokens whose subject no
// longer exists are invalid.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (model.User, error) {
	claims, err := s.verify(ctx, accessToken)
	if err != nil {
		return model.User{}, err
	}
	u, err := s.users.FindByUsername(ctx, claims.Subject)
	if err != nil {
		return model.User{}, fmt.Errorf("lookup user: %w", err)
	}
	if u == nil {
		return model.User{}, ErrInvalidToken
	}
	return *u, nil
}

func (s *AuthService) verify(ctx context.Context, token string) (security.VerifiedClaims, error) {
	claims, ok := s.tokens.Parse(token)
	if !ok {
		return security.VerifiedClaims{}, ErrInvalidToken
	}
	if s.revoked != nil && claims.ID != "" {
		revoked, err := s.revoked.IsRevoked(ctx, claims.ID)
		if err != nil {
			return security.VerifiedClaims{}, fmt.Errorf("check revocation: %w", err)
		}
		if revoked {
			s.logger.Info("revoked token presented", zap.String("username", claims.Subject))
			return security.VerifiedClaims{}, ErrInvalidToken
		}
	}
	return claims, nil
}

func (s *AuthService) issuePair(ctx context.Context, username string) (TokenPair, error) {
	access, err := s.tokens.CreateAccessToken(jwt.MapClaims{"sub": username}, 0)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.tokens.CreateRefreshToken(jwt.MapClaims{"sub": username}, 0)
	if err != nil {
		return TokenPair{}, err
	}
	s.metrics.RecordTokenIssued(ctx, "access")
	s.metrics.RecordTokenIssued(ctx, "refresh")
	return TokenPair{AccessToken: access.Signed, RefreshToken: refresh.Signed, TokenType: "bearer"}, nil
}

func (s *AuthService) dummyHash() (string, error) {
	s.once.Do(func() {
		s.dummy, s.dummyErr = s.hasher.Hash("not-a-real-password")
	})
	return s.dummy, s.dummyErr
}
