package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/insurance-quoting/internal/config"
	"github.com/iliyamo/insurance-quoting/internal/model"
	"github.com/iliyamo/insurance-quoting/internal/ratelimit"
	"github.com/iliyamo/insurance-quoting/internal/repository"
	"github.com/iliyamo/insurance-quoting/internal/security"
	"github.com/iliyamo/insurance-quoting/internal/service"
)

type testServer struct {
	e      *echo.Echo
	tokens *security.TokenService
}

func newTestServer(t *testing.T) testServer {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := config.Config{
		Env:               "testing",
		PasswordMinLength: 8,
		PasswordMaxLength: 72,
		QuoteBasePrice:    model.Money(100000),
	}
	tokens, err := security.NewTokenService(security.TokenOptions{
		Secret: "test-secret", Algorithm: "HS256", AccessTTL: 30 * time.Minute, RefreshTTL: 7 * 24 * time.Hour,
	}, nil)
	require.NoError(t, err)

	store := newMemStore()
	auth := service.NewAuthService(service.AuthDeps{
		Users:       store,
		Hasher:      security.NewPasswordHasher(bcrypt.MinCost),
		Tokens:      tokens,
		Revocations: repository.NewRevocationRepo(rdb, ""),
	})
	quotes := service.NewQuoteService(quoteStore{store}, cfg.QuoteBasePrice, nil)
	apps := service.NewApplicationService(applicationStore{store}, quoteStore{store}, nil, nil)

	rlCfg := config.RateLimitConfig{
		Enabled:  true,
		Requests: 100,
		Window:   time.Minute,
		Prefix:   "rate_limit",
		Routes:   config.DefaultRouteLimits(),
	}
	e := New(Deps{
		Config:       cfg,
		RateLimit:    rlCfg,
		Cache:        config.CacheConfig{Enabled: true, Methods: map[string]bool{http.MethodGet: true}, TTL: time.Minute, Prefix: "cache"},
		Limiter:      ratelimit.New(ratelimit.NewRedisStore(rdb), rlCfg.Prefix, nil),
		Redis:        rdb,
		Auth:         auth,
		Quotes:       quotes,
		Applications: apps,
	})
	return testServer{e: e, tokens: tokens}
}

func (s testServer) call(method, path, body, bearer string) *httptest.ResponseRecorder {
	return s.callFrom("192.0.2.1", method, path, body, bearer)
}

func (s testServer) callFrom(ip, method, path, body, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.RemoteAddr = ip + ":4000"
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

const aliceRegistration = `{"username":"alice","password":"secret123","password_confirm":"secret123","full_name":"Alice A"}`

func TestScenario_RegisterLoginRefresh(t *testing.T) {
	s := newTestServer(t)

	rec := s.call(http.MethodPost, "/api/v1/auth/register", aliceRegistration, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	reg := decode[service.TokenPair](t, rec)
	assert.NotEmpty(t, reg.AccessToken)
	assert.NotEmpty(t, reg.RefreshToken)

	rec = s.call(http.MethodPost, "/api/v1/auth/login", `{"username":"alice","password":"secret123"}`, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	login := decode[service.TokenPair](t, rec)

	rec = s.call(http.MethodPost, "/api/v1/auth/refresh-token", `{"refresh_token":"`+login.RefreshToken+`"}`, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	refreshed := decode[service.TokenPair](t, rec)
	assert.NotEqual(t, login.AccessToken, refreshed.AccessToken)

	sub, ok := s.tokens.Verify(refreshed.AccessToken)
	require.True(t, ok)
	assert.Equal(t, "alice", sub)

	rec = s.call(http.MethodPost, "/api/v1/users/me", "", refreshed.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":"id-alice","full_name":"Alice A","username":"alice"}`, rec.Body.String())
}

func TestRegister_Errors(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusCreated, s.call(http.MethodPost, "/api/v1/auth/register", aliceRegistration, "").Code)

	rec := s.call(http.MethodPost, "/api/v1/auth/register", aliceRegistration, "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.JSONEq(t, `{"detail":"User with this username already exists"}`, rec.Body.String())

	rec = s.call(http.MethodPost, "/api/v1/auth/register",
		`{"username":"bob","password":"secret123","password_confirm":"secret124","full_name":"Bob B"}`, "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "Passwords do not match")

	rec = s.call(http.MethodPost, "/api/v1/auth/register",
		`{"username":"bo","password":"short","password_confirm":"short","full_name":"Bob B"}`, "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decode[struct{ Detail []map[string]string }](t, rec)
	fields := map[string]bool{}
	for _, d := range body.Detail {
		fields[d["field"]] = true
	}
	assert.True(t, fields["username"])
	assert.True(t, fields["password"])
}

func TestLogin_FailuresAreGeneric(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusCreated, s.call(http.MethodPost, "/api/v1/auth/register", aliceRegistration, "").Code)

	wrong := s.call(http.MethodPost, "/api/v1/auth/login", `{"username":"alice","password":"wrongpassword"}`, "")
	ghost := s.call(http.MethodPost, "/api/v1/auth/login", `{"username":"ghost","password":"anything1"}`, "")

	assert.Equal(t, http.StatusUnauthorized, wrong.Code)
	assert.Equal(t, http.StatusUnauthorized, ghost.Code)
	assert.JSONEq(t, `{"detail":"Invalid credentials"}`, wrong.Body.String())
	assert.Equal(t, wrong.Body.String(), ghost.Body.String())
}

func TestRefresh_InvalidToken(t *testing.T) {
	s := newTestServer(t)
	rec := s.call(http.MethodPost, "/api/v1/auth/refresh-token", `{"refresh_token":"nope"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"detail":"Invalid refresh token"}`, rec.Body.String())
}

func TestLogout_RevokesRefreshToken(t *testing.T) {
	s := newTestServer(t)
	rec := s.call(http.MethodPost, "/api/v1/auth/register", aliceRegistration, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	pair := decode[service.TokenPair](t, rec)

	body := `{"refresh_token":"` + pair.RefreshToken + `"}`
	assert.Equal(t, http.StatusNoContent, s.call(http.MethodPost, "/api/v1/auth/logout", body, "").Code)
	assert.Equal(t, http.StatusUnauthorized, s.call(http.MethodPost, "/api/v1/auth/refresh-token", body, "").Code)
	assert.Equal(t, http.StatusUnauthorized, s.call(http.MethodPost, "/api/v1/auth/logout", body, "").Code)
}

func TestMe_RequiresBearer(t *testing.T) {
	s := newTestServer(t)
	assert.Equal(t, http.StatusUnauthorized, s.call(http.MethodPost, "/api/v1/users/me", "", "").Code)

	expired, err := s.tokens.CreateAccessToken(map[string]any{"sub": "alice"}, -time.Second)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, s.call(http.MethodPost, "/api/v1/users/me", "", expired.Signed).Code)
}

const quoteBody = `{"tariff":"premium","age":40,"experience":10,"car_type":"suv"}`

func TestScenario_SixthQuoteWithinWindowIsThrottled(t *testing.T) {
	s := newTestServer(t)

	for i := 0; i < 5; i++ {
		rec := s.call(http.MethodPost, "/api/v1/quotes", quoteBody, "")
		require.Equal(t, http.StatusOK, rec.Code, "request %d: %s", i+1, rec.Body.String())
	}
	rec := s.call(http.MethodPost, "/api/v1/quotes", quoteBody, "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.JSONEq(t, `{"detail":"Too many requests. Try again later."}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, s.callFrom("192.0.2.77", http.MethodPost, "/api/v1/quotes", quoteBody, "").Code)
}

func TestQuotes_CreateAndGet(t *testing.T) {
	s := newTestServer(t)

	rec := s.call(http.MethodPost, "/api/v1/quotes", quoteBody, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	q := decode[model.Quote](t, rec)
	assert.Equal(t, "1800.00", q.Price.String())
	assert.Contains(t, rec.Body.String(), `"price":"1800.00"`)

	rec = s.call(http.MethodGet, "/api/v1/quotes/"+q.ID, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	rec = s.call(http.MethodGet, "/api/v1/quotes/"+q.ID, "", "")
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	assert.Equal(t, q.ID, decode[model.Quote](t, rec).ID)

	rec = s.call(http.MethodGet, "/api/v1/quotes/00000000-0000-0000-0000-000000000000", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"detail":"Quote not found"}`, rec.Body.String())

	rec = s.call(http.MethodGet, "/api/v1/quotes/not-a-uuid", "", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestQuotes_Validation(t *testing.T) {
	s := newTestServer(t)
	for _, body := range []string{
		`{"tariff":"gold","age":40,"experience":10,"car_type":"suv"}`,
		`{"tariff":"standard","age":17,"experience":0,"car_type":"suv"}`,
		`{"tariff":"standard","age":30,"experience":20,"car_type":"suv"}`,
		`{"tariff":"standard","age":30,"experience":5,"car_type":"bike"}`,
		`not json`,
	} {
		rec := s.callFrom("198.51.100.1", http.MethodPost, "/api/v1/quotes", body, "")
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, body)
	}
}

func TestApplications(t *testing.T) {
	s := newTestServer(t)

	rec := s.call(http.MethodPost, "/api/v1/auth/register", aliceRegistration, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	alice := decode[service.TokenPair](t, rec)

	rec = s.call(http.MethodPost, "/api/v1/auth/register",
		`{"username":"bob","password":"secret123","password_confirm":"secret123","full_name":"Bob B"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	bob := decode[service.TokenPair](t, rec)

	rec = s.call(http.MethodPost, "/api/v1/quotes", quoteBody, "")
	require.Equal(t, http.StatusOK, rec.Code)
	q := decode[model.Quote](t, rec)

	appBody := `{"full_name":"Alice A","phone":"+12345678901","email":"alice@example.com","tariff":"premium","quote_id":"` + q.ID + `"}`
	assert.Equal(t, http.StatusUnauthorized, s.call(http.MethodPost, "/api/v1/applications", appBody, "").Code)

	rec = s.call(http.MethodPost, "/api/v1/applications", appBody, alice.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var created struct {
		ID     string
		Status string
		Quote  struct{ ID string }
		Owner  struct{ Username string }
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "new", created.Status)
	assert.Equal(t, q.ID, created.Quote.ID)
	assert.Equal(t, "alice", created.Owner.Username)

	rec = s.call(http.MethodGet, "/api/v1/applications/"+created.ID, "", alice.AccessToken)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = s.call(http.MethodGet, "/api/v1/applications/"+created.ID, "", bob.AccessToken)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"detail":"Application not found"}`, rec.Body.String())

	missingQuote := strings.Replace(appBody, q.ID, "00000000-0000-0000-0000-000000000000", 1)
	rec = s.call(http.MethodPost, "/api/v1/applications", missingQuote, alice.AccessToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"detail":"Quote not found"}`, rec.Body.String())

	badPhone := strings.Replace(appBody, "+12345678901", "12ab", 1)
	rec = s.call(http.MethodPost, "/api/v1/applications", badPhone, alice.AccessToken)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestResponsesAreCompactOutsideProduction(t *testing.T) {
	s := newTestServer(t)

	rec := s.call(http.MethodPost, "/api/v1/auth/login", `{"username":"ghost","password":"anything1"}`, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "{\"detail\":\"Invalid credentials\"}\n", rec.Body.String())

	rec = s.call(http.MethodPost, "/api/v1/quotes", quoteBody, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "\n  ")
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	assert.Equal(t, http.StatusNotFound, s.call(http.MethodGet, "/metrics", "", "").Code)

	e := New(Deps{
		Limiter:        ratelimit.New(ratelimit.NewMemoryStore(0), "rate_limit", nil),
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("quoting_up 1\n")) }),
	})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "quoting_up 1\n", rec.Body.String())
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	rec := s.call(http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}
