package config // package config loads application configuration from environment variables

import (
	"os" // os provides access to environment variables
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/iliyamo/lottery-storefront/internal/utils"
)

// Config holds all runtime configuration values of the HTTP service.  Each
// field corresponds to an environment variable.
type Config struct {
	Env                string          // application environment (e.g. "dev", "prod")
	Port               string          // HTTP port to listen on
	Storage            StorageConfig   // where purchases, holds and prices live
	JWTSecret          string          // secret used to sign admin session tokens
	AdminSessionTTLMin int             // admin session lifetime in minutes
	AdminPasswordHash  string          // bcrypt hash of the shared admin passphrase
	BcryptCost         int             // bcrypt cost used when hashing ADMIN_PASSWORD
	DefaultTicketPrice decimal.Decimal // unit price used while the pricing ledger is empty
	LogLevel           string          // logrus level name
	LogFormat          string          // "text" or "json"
}

// StorageConfig selects the storage backend.  Database coordinates are
// only required when Driver names a SQL backend.
type StorageConfig struct {
	Driver  string // mysql, postgres or memory
	DBUser  string // database username
	DBPass  string // database password (optional)
	DBHost  string // database host address
	DBPort  string // database port number
	DBName  string // database name
	SSLMode string // postgres sslmode (disable, require, ...)
}

// Load reads configuration values from the environment (after loading an
// optional .env file) and returns a Config.  Required variables are
// enforced by must() and missing values cause the program to exit with a
// fatal log message.
func Load() Config {
	LoadDotEnv()
	cfg := Config{
		Env:                envStr("APP_ENV", "dev"),
		Port:               envStr("APP_PORT", "8080"),
		Storage:            LoadStorageConfig(),
		JWTSecret:          must("JWT_SECRET"),
		AdminSessionTTLMin: envInt("ADMIN_SESSION_TTL_MIN", 30),
		BcryptCost:         envInt("BCRYPT_COST", 10),
		DefaultTicketPrice: LoadDefaultTicketPrice(),
		LogLevel:           envStr("LOG_LEVEL", "info"),
		LogFormat:          envStr("LOG_FORMAT", "text"),
	}
	if cfg.AdminSessionTTLMin <= 0 {
		cfg.AdminSessionTTLMin = 30
	}
	cfg.AdminPasswordHash = adminPasswordHash(cfg.BcryptCost)
	return cfg
}

// LoadDotEnv loads .env from the working directory when present.  A
// missing file is not an error.
func LoadDotEnv() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warnf("could not load .env: %v", err)
	}
}

// LoadStorageConfig reads STORAGE_DRIVER (default mysql) and, for SQL
// drivers, the DB_* coordinates.
func LoadStorageConfig() StorageConfig {
	cfg := StorageConfig{
		Driver:  strings.ToLower(envStr("STORAGE_DRIVER", "mysql")),
		DBPass:  os.Getenv("DB_PASS"), // empty allowed
		SSLMode: envStr("DB_SSLMODE", "disable"),
	}
	if cfg.Driver != "memory" {
		cfg.DBUser = must("DB_USER")
		cfg.DBHost = must("DB_HOST")
		cfg.DBPort = must("DB_PORT")
		cfg.DBName = must("DB_NAME")
	}
	return cfg
}

// LoadDefaultTicketPrice reads DEFAULT_TICKET_PRICE (default 5.00).
func LoadDefaultTicketPrice() decimal.Decimal {
	return mustDecimal("DEFAULT_TICKET_PRICE", "5.00")
}

// adminPasswordHash prefers a precomputed ADMIN_PASSWORD_HASH and falls
// back to hashing ADMIN_PASSWORD at startup.
func adminPasswordHash(cost int) string {
	if h := os.Getenv("ADMIN_PASSWORD_HASH"); h != "" {
		if !utils.IsPasswordHash(h) {
			log.Fatal("ADMIN_PASSWORD_HASH is not a bcrypt hash")
		}
		return h
	}
	plain := must("ADMIN_PASSWORD")
	h, err := utils.HashPassword(plain, cost)
	if err != nil {
		log.Fatalf("hash ADMIN_PASSWORD: %v", err)
	}
	return h
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustDecimal parses a positive decimal, using def when the variable is
// unset.  Malformed or non-positive values are fatal.
func mustDecimal(key, def string) decimal.Decimal {
	s := envStr(key, def)
	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsPositive() {
		log.Fatalf("invalid decimal for %s: %q", key, s)
	}
	return d
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	switch strings.ToLower(os.Getenv(k)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	if n, err := strconv.Atoi(os.Getenv(k)); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	if dur, err := time.ParseDuration(os.Getenv(k)); err == nil {
		return dur
	}
	return d
}
