package config // package config loads application configuration from environment variables

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/iliyamo/insurance-quoting/internal/model"
)

// bcryptMaxPassword is the longest input bcrypt accepts; longer passwords
// would be rejected by the hasher, so the configured upper bound is clamped.
const bcryptMaxPassword = 72

// Config holds all runtime configuration values. It is built once at
// startup and passed by value to the components that need it; nothing
// mutates it afterwards.
type Config struct {
	Env               string      // application environment (production, testing, development)
	Port              string      // HTTP port to listen on
	DBUser            string      // database username
	DBPass            string      // database password (optional)
	DBHost            string      // database host address
	DBPort            string      // database port number
	DBName            string      // database name
	JWTSecret         string      // secret used to sign JWTs
	JWTAlgorithm      string      // HMAC signing algorithm (HS256, HS384, HS512)
	AccessTTLMin      int         // access token time-to-live in minutes
	RefreshTTLDays    int         // refresh token time-to-live in days
	RefreshRotation   bool        // revoke a refresh token once it has been exchanged
	BcryptCost        int         // bcrypt cost for password hashing
	PasswordMinLength int         // lower bound for password length
	PasswordMaxLength int         // upper bound for password length
	QuoteBasePrice    model.Money // base price every quote coefficient is applied to
	CORSOrigins       []string    // allowed CORS origins
	MetricsEnabled    bool        // serve OpenTelemetry counters on /metrics
}

// Debug reports whether detailed error messages may be returned to clients.
func (c Config) Debug() bool { return c.Env != "production" }

// Load reads configuration values from environment variables and returns a
// Config. Missing required variables cause the program to exit with a
// fatal log message.
func Load() Config {
	cfg, err := Parse()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	return cfg
}

// Parse is Load without the fatal exit. Every missing or malformed variable
// is reported in the returned error.
func Parse() (Config, error) {
	var missing []string
	must := func(key string) string {
		v, ok := os.LookupEnv(key)
		if !ok || v == "" {
			missing = append(missing, key)
		}
		return v
	}

	cfg := Config{
		Env:               envStr("APP_ENV", "production"),
		Port:              envStr("APP_PORT", "8000"),
		DBUser:            must("DB_USER"),
		DBPass:            os.Getenv("DB_PASS"),
		DBHost:            must("DB_HOST"),
		DBPort:            envStr("DB_PORT", "3306"),
		DBName:            must("DB_NAME"),
		JWTSecret:         must("JWT_SECRET"),
		JWTAlgorithm:      strings.ToUpper(envStr("JWT_ALGORITHM", "HS256")),
		AccessTTLMin:      envInt("ACCESS_TOKEN_TTL_MIN", 30),
		RefreshTTLDays:    envInt("REFRESH_TOKEN_TTL_DAYS", 7),
		RefreshRotation:   envBool("REFRESH_TOKEN_ROTATION", false),
		BcryptCost:        envInt("BCRYPT_COST", 10),
		PasswordMinLength: envInt("PASSWORD_MIN_LENGTH", 8),
		PasswordMaxLength: envInt("PASSWORD_MAX_LENGTH", bcryptMaxPassword),
		CORSOrigins:       envList("CORS_ORIGINS", "*"),
		MetricsEnabled:    envBool("METRICS_ENABLED", false),
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}

	price, err := model.ParseMoney(envStr("QUOTE_BASE_PRICE", "1000.00"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid QUOTE_BASE_PRICE: %w", err)
	}
	cfg.QuoteBasePrice = price

	if cfg.PasswordMaxLength > bcryptMaxPassword || cfg.PasswordMaxLength < 1 {
		cfg.PasswordMaxLength = bcryptMaxPassword
	}
	if cfg.PasswordMinLength < 1 || cfg.PasswordMinLength > cfg.PasswordMaxLength {
		cfg.PasswordMinLength = 8
	}
	if cfg.AccessTTLMin < 1 {
		cfg.AccessTTLMin = 30
	}
	if cfg.RefreshTTLDays < 1 {
		cfg.RefreshTTLDays = 7
	}
	return cfg, nil
}
