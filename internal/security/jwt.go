package security // package security issues and verifies credentials: bcrypt hashes and HMAC-signed JWTs

import (
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrSigningMisconfigured means the service cannot produce signatures with
// the configured secret/algorithm. It is a deployment defect, not a client
// error, and must surface as a 500.
var ErrSigningMisconfigured = errors.New("token signing misconfigured")

// IssuedToken is a signed JWT together with the claims callers usually need
// without parsing it again.
type IssuedToken struct {
	Signed string    // the serialized JWT string
	ID     string    // jti claim
	Exp    time.Time // UTC expiration time
}

// VerifiedClaims are the claims of a token that passed verification.
type VerifiedClaims struct {
	Subject string
	ID      string
	Exp     time.Time
}

// TokenOptions configures a TokenService.
type TokenOptions struct {
	Secret     string
	Algorithm  string        // HS256, HS384 or HS512
	AccessTTL  time.Duration // default lifetime of access tokens
	RefreshTTL time.Duration // default lifetime of refresh tokens
}

// TokenService creates and verifies self-contained tokens with the claim
// set {sub, exp, iat, jti}. Access and refresh tokens differ only in the
// lifetime applied at creation. Verification is a pure function of the
// token, the clock and the secret, so the service is safe for concurrent
// use.
type TokenService struct {
	secret     []byte
	method     jwt.SigningMethod
	accessTTL  time.Duration
	refreshTTL time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

// NewTokenService validates the options and returns a ready service. Only
// HMAC algorithms are accepted; anything else, or an empty secret, yields
// ErrSigningMisconfigured.
func NewTokenService(opts TokenOptions, logger *zap.Logger) (*TokenService, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Secret == "" {
		return nil, fmt.Errorf("%w: empty secret", ErrSigningMisconfigured)
	}
	method, ok := jwt.GetSigningMethod(opts.Algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported algorithm %q", ErrSigningMisconfigured, opts.Algorithm)
	}
	if opts.AccessTTL <= 0 || opts.RefreshTTL <= 0 {
		return nil, fmt.Errorf("%w: token lifetimes must be positive", ErrSigningMisconfigured)
	}
	return &TokenService{
		secret:     []byte(opts.Secret),
		method:     method,
		accessTTL:  opts.AccessTTL,
		refreshTTL: opts.RefreshTTL,
		logger:     logger,
		now:        time.Now,
	}, nil
}

// CreateAccessToken signs claims with an expiry of now+ttl. A zero ttl
// selects the configured access lifetime; negative values are honoured and
// produce an already expired token.
func (s *TokenService) CreateAccessToken(claims jwt.MapClaims, ttl time.Duration) (IssuedToken, error) {
	if ttl == 0 {
		ttl = s.accessTTL
	}
	return s.create(claims, ttl)
}

// CreateRefreshToken is CreateAccessToken with the refresh lifetime as
// default.
func (s *TokenService) CreateRefreshToken(claims jwt.MapClaims, ttl time.Duration) (IssuedToken, error) {
	if ttl == 0 {
		ttl = s.refreshTTL
	}
	return s.create(claims, ttl)
}

// RefreshTTL reports the default refresh token lifetime.
func (s *TokenService) RefreshTTL() time.Duration { return s.refreshTTL }

func (s *TokenService) create(claims jwt.MapClaims, ttl time.Duration) (IssuedToken, error) {
	now := s.now().UTC()
	exp := now.Add(ttl)

	// the caller's map is never modified
	toEncode := make(jwt.MapClaims, len(claims)+3)
	maps.Copy(toEncode, claims)
	toEncode["exp"] = exp.Unix()
	toEncode["iat"] = now.Unix()
	id, _ := toEncode["jti"].(string)
	if id == "" {
		id = uuid.NewString()
		toEncode["jti"] = id
	}

	signed, err := jwt.NewWithClaims(s.method, toEncode).SignedString(s.secret)
	if err != nil {
		return IssuedToken{}, fmt.Errorf("%w: %v", ErrSigningMisconfigured, err)
	}
	return IssuedToken{Signed: signed, ID: id, Exp: exp}, nil
}

// Verify returns the subject of a valid token. Any failure (signature,
// structure, expiry, missing sub) yields ok=false; the reason is logged but
// not returned.
func (s *TokenService) Verify(token string) (subject string, ok bool) {
	claims, ok := s.Parse(token)
	if !ok {
		return "", false
	}
	return claims.Subject, true
}

// Parse is Verify returning every claim the service relies on.
func (s *TokenService) Parse(token string) (VerifiedClaims, bool) {
	parsed, err := jwt.Parse(token,
		func(t *jwt.Token) (interface{}, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		s.logger.Info("token rejected", zap.Error(err))
		return VerifiedClaims{}, false
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		s.logger.Info("token rejected: unexpected claims type")
		return VerifiedClaims{}, false
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		s.logger.Warn("token rejected: subject not found in payload")
		return VerifiedClaims{}, false
	}
	out := VerifiedClaims{Subject: sub}
	out.ID, _ = claims["jti"].(string)
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.Exp = exp.Time
	}
	s.logger.Debug("token verified", zap.String("sub", sub))
	return out, true
}
