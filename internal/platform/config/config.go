package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultEnvFile          = ".env"
	defaultPort             = "8080"
	defaultReadTimeout      = 15 * time.Second
	defaultWriteTimeout     = 30 * time.Second
	defaultIdleTimeout      = 120 * time.Second
	defaultRequestTimeout   = 60 * time.Second
	defaultCommitAttempts   = 5
	defaultCommitTimeout    = 15 * time.Second
	defaultIdempotencyTTL   = 24 * time.Hour
	defaultCleanupInterval  = time.Hour
	defaultCleanupBatchSize = 256
	defaultDefaultRegister  = "pos-1"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server      ServerConfig
	Firestore   FirestoreConfig
	Events      EventsConfig
	Commit      CommitConfig
	Idempotency IdempotencyConfig
	Register    RegisterConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// EventsConfig configures the optional post-commit sale event publisher.
type EventsConfig struct {
	Topic string
}

// CommitConfig bounds the sale commit transaction.
type CommitConfig struct {
	MaxAttempts int
	Timeout     time.Duration
}

// IdempotencyConfig controls the double-commit protection on the sales endpoint.
type IdempotencyConfig struct {
	Enabled          bool
	TTL              time.Duration
	CleanupInterval  time.Duration
	CleanupBatchSize int
}

// RegisterConfig identifies this register installation when the UI does not
// supply a point of sale.
type RegisterConfig struct {
	DefaultPointOfSaleID string
}

// Load reads configuration from the environment, optionally seeded from a
// .env file. Environment variables win over file entries.
func Load() (Config, error) {
	if err := loadEnvFile(envOr("ENV_FILE", defaultEnvFile)); err != nil {
		return Config{}, err
	}

	cfg := Config{
		Server: ServerConfig{
			Port:           envOr("PORT", defaultPort),
			ReadTimeout:    defaultReadTimeout,
			WriteTimeout:   defaultWriteTimeout,
			IdleTimeout:    defaultIdleTimeout,
			RequestTimeout: defaultRequestTimeout,
		},
		Firestore: FirestoreConfig{
			ProjectID:    envOr("FIRESTORE_PROJECT_ID", os.Getenv("GOOGLE_CLOUD_PROJECT")),
			EmulatorHost: os.Getenv("FIRESTORE_EMULATOR_HOST"),
		},
		Events: EventsConfig{
			Topic: strings.TrimSpace(os.Getenv("SALE_EVENTS_TOPIC")),
		},
		Commit: CommitConfig{
			MaxAttempts: defaultCommitAttempts,
			Timeout:     defaultCommitTimeout,
		},
		Idempotency: IdempotencyConfig{
			Enabled:          envBool("IDEMPOTENCY_ENABLED", true),
			TTL:              defaultIdempotencyTTL,
			CleanupInterval:  defaultCleanupInterval,
			CleanupBatchSize: defaultCleanupBatchSize,
		},
		Register: RegisterConfig{
			DefaultPointOfSaleID: envOr("POS_DEFAULT_REGISTER", defaultDefaultRegister),
		},
	}

	var err error
	if cfg.Server.ReadTimeout, err = envDuration("SERVER_READ_TIMEOUT", cfg.Server.ReadTimeout); err != nil {
		return Config{}, err
	}
	if cfg.Server.WriteTimeout, err = envDuration("SERVER_WRITE_TIMEOUT", cfg.Server.WriteTimeout); err != nil {
		return Config{}, err
	}
	if cfg.Server.IdleTimeout, err = envDuration("SERVER_IDLE_TIMEOUT", cfg.Server.IdleTimeout); err != nil {
		return Config{}, err
	}
	if cfg.Server.RequestTimeout, err = envDuration("SERVER_REQUEST_TIMEOUT", cfg.Server.RequestTimeout); err != nil {
		return Config{}, err
	}
	if cfg.Commit.Timeout, err = envDuration("COMMIT_TIMEOUT", cfg.Commit.Timeout); err != nil {
		return Config{}, err
	}
	if cfg.Idempotency.TTL, err = envDuration("IDEMPOTENCY_TTL", cfg.Idempotency.TTL); err != nil {
		return Config{}, err
	}
	if cfg.Idempotency.CleanupInterval, err = envDuration("IDEMPOTENCY_CLEANUP_INTERVAL", cfg.Idempotency.CleanupInterval); err != nil {
		return Config{}, err
	}
	if cfg.Idempotency.CleanupBatchSize, err = envInt("IDEMPOTENCY_CLEANUP_BATCH", cfg.Idempotency.CleanupBatchSize); err != nil {
		return Config{}, err
	}
	if cfg.Commit.MaxAttempts, err = envInt("COMMIT_MAX_ATTEMPTS", cfg.Commit.MaxAttempts); err != nil {
		return Config{}, err
	}

	if strings.TrimSpace(cfg.Firestore.ProjectID) == "" {
		return Config{}, fmt.Errorf("config: FIRESTORE_PROJECT_ID (or GOOGLE_CLOUD_PROJECT) is required")
	}

	return cfg, nil
}

// loadEnvFile seeds os environment entries from a KEY=VALUE file. Missing
// files are fine; malformed lines are skipped.
func loadEnvFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("config: open env file %s: %w", path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lineText := strings.TrimSpace(scanner.Text())
		if lineText == "" || strings.HasPrefix(lineText, "#") {
			continue
		}
		key, value, found := strings.Cut(lineText, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)
		if key == "" {
			continue
		}
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return fmt.Errorf("config: set %s: %w", key, err)
		}
	}
	return scanner.Err()
}

func envOr(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	if parsed <= 0 {
		return fallback, nil
	}
	return parsed, nil
}

func envInt(key string, fallback int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	if parsed <= 0 {
		return fallback, nil
	}
	return parsed, nil
}
