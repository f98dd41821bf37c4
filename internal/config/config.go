package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultAppName           = "EdgeWallet"
	defaultAppEnv            = "development"
	defaultPort              = "8080"
	defaultLogLevel          = "info"
	defaultDBMaxConns        = 10
	defaultLedgerTimeout     = 30 * time.Second
	defaultLedgerRateBurst   = 1
	defaultInitialSupply     = 100
	defaultInitialAllocation = 100
	defaultNFTSupply         = 1
	defaultTransferAmount    = 1
	defaultRateLimit         = 60
	defaultShutdownDelay     = 10 * time.Second
	defaultIdempotencyTTL    = 24 * time.Hour
	defaultEnvFile           = ".env"
	idemTTLSecondsEnvVar     = "IDEMPOTENCY_TTL_SECONDS"
	idemTTLDurEnvVar         = "IDEMPOTENCY_TTL"
	shutdownSecondsEnvVar    = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar   = "SHUTDOWN_TIMEOUT"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName     string
	AppEnv      string
	Port        string
	LogLevel    string
	DatabaseURL string
	DBMaxConns  int32
	RedisURL    string

	LedgerURL       string
	LedgerTimeout   time.Duration
	LedgerRateLimit float64
	LedgerRateBurst int

	InitialSupply     int64
	InitialAllocation int64
	NFTSupply         int64
	TransferAmount    int64

	ReconcileSchedule string
	ReconcileRepair   bool

	AuthSecret        string
	RateLimitPerMin   int
	RedactPrivateKeys bool
	ShutdownPeriod    time.Duration
	IdempotencyTTL    time.Duration
}

// Load reads configuration values from the environment and populates a Config instance.
// Variables from ENV_FILE (default .env) are loaded first without overriding the environment.
func Load() (Config, error) {
	if err := loadEnvFile(); err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppName:           getEnv("APP_NAME", defaultAppName),
		AppEnv:            getEnv("APP_ENV", defaultAppEnv),
		Port:              getEnv("PORT", defaultPort),
		LogLevel:          strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RedisURL:          os.Getenv("REDIS_URL"),
		LedgerURL:         os.Getenv("LEDGER_URL"),
		ReconcileSchedule: os.Getenv("RECONCILE_SCHEDULE"),
		AuthSecret:        os.Getenv("AUTH_SECRET"),
		ShutdownPeriod:    defaultShutdownDelay,
		IdempotencyTTL:    defaultIdempotencyTTL,
	}

	var err error
	if cfg.DBMaxConns, err = getInt32("DB_MAX_CONNS", defaultDBMaxConns); err != nil {
		return Config{}, err
	}
	if cfg.LedgerTimeout, err = getDuration("LEDGER_TIMEOUT", defaultLedgerTimeout); err != nil {
		return Config{}, err
	}
	if v := os.Getenv("LEDGER_RATE_LIMIT"); v != "" {
		if cfg.LedgerRateLimit, err = strconv.ParseFloat(v, 64); err != nil {
			return Config{}, fmt.Errorf("invalid LEDGER_RATE_LIMIT: %w", err)
		}
	}
	burst, err := getInt32("LEDGER_RATE_BURST", defaultLedgerRateBurst)
	if err != nil {
		return Config{}, err
	}
	cfg.LedgerRateBurst = int(burst)

	perMin, err := getInt32("RATE_LIMIT_PER_MINUTE", defaultRateLimit)
	if err != nil {
		return Config{}, err
	}
	cfg.RateLimitPerMin = int(perMin)

	if cfg.InitialSupply, err = getInt64("INITIAL_SUPPLY", defaultInitialSupply); err != nil {
		return Config{}, err
	}
	if cfg.InitialAllocation, err = getInt64("INITIAL_ALLOCATION", defaultInitialAllocation); err != nil {
		return Config{}, err
	}
	if cfg.NFTSupply, err = getInt64("NFT_SUPPLY", defaultNFTSupply); err != nil {
		return Config{}, err
	}
	if cfg.TransferAmount, err = getInt64("TRANSFER_AMOUNT", defaultTransferAmount); err != nil {
		return Config{}, err
	}
	if cfg.ReconcileRepair, err = getBool("RECONCILE_REPAIR", false); err != nil {
		return Config{}, err
	}
	if cfg.RedactPrivateKeys, err = getBool("REDACT_PRIVATE_KEYS", false); err != nil {
		return Config{}, err
	}

	if v := os.Getenv(shutdownSecondsEnvVar); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", shutdownSecondsEnvVar, err)
		}
		cfg.ShutdownPeriod = time.Duration(seconds) * time.Second
	} else if v := os.Getenv(shutdownDurationEnvVar); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", shutdownDurationEnvVar, err)
		}
		cfg.ShutdownPeriod = d
	}

	if v := os.Getenv(idemTTLSecondsEnvVar); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", idemTTLSecondsEnvVar, err)
		}
		cfg.IdempotencyTTL = time.Duration(seconds) * time.Second
	} else if v := os.Getenv(idemTTLDurEnvVar); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", idemTTLDurEnvVar, err)
		}
		cfg.IdempotencyTTL = d
	}

	if !cfg.IsDev() {
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL must be set when APP_ENV=%s", cfg.AppEnv)
		}
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("REDIS_URL must be set when APP_ENV=%s", cfg.AppEnv)
		}
		if cfg.LedgerURL == "" {
			return Config{}, fmt.Errorf("LEDGER_URL must be set when APP_ENV=%s", cfg.AppEnv)
		}
	}

	return cfg, nil
}

// IsDev reports whether missing backends may fall back to in-memory implementations.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

func loadEnvFile() error {
	path := os.Getenv("ENV_FILE")
	explicit := path != ""
	if !explicit {
		path = defaultEnvFile
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getInt64(key string, fallback int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getInt32(key string, fallback int32) (int32, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return int32(n), nil
}

func getBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: %s is not positive", key, v)
	}
	return d, nil
}
