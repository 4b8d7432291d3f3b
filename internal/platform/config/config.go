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
	defaultEnvFile            = ".env"
	defaultPort               = "8080"
	defaultReadTimeout        = 15 * time.Second
	defaultWriteTimeout       = 30 * time.Second
	defaultIdleTimeout        = 120 * time.Second
	defaultWalkInCustomerID   = "1"
	defaultOrderTypeID        = "1"
	defaultLoyaltyRatePercent = 10
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server    ServerConfig
	Firestore FirestoreConfig
	Orders    OrdersConfig
	Events    EventsConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// OrdersConfig carries the order-placement business parameters: the walk-in
// sentinel customer exempt from loyalty accrual and the fallback order type.
type OrdersConfig struct {
	WalkInCustomerID   string
	DefaultOrderTypeID string
	LoyaltyRatePercent int
}

// EventsConfig configures the optional Pub/Sub order-event publisher.
// An empty topic disables publishing.
type EventsConfig struct {
	OrderTopic string
}

// LoadOption customises configuration loading.
type LoadOption func(*loadOptions)

type loadOptions struct {
	envFile string
}

// WithEnvFile overrides the .env file consulted before the process environment.
func WithEnvFile(path string) LoadOption {
	return func(o *loadOptions) {
		o.envFile = path
	}
}

// Load builds the Config from the environment, with optional .env fallback
// for local development. Process environment variables always win.
func Load(opts ...LoadOption) (Config, error) {
	options := loadOptions{envFile: defaultEnvFile}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	fileValues, err := readEnvFile(options.envFile)
	if err != nil {
		return Config{}, err
	}
	lookup := func(key string) string {
		if value, ok := os.LookupEnv(key); ok {
			return strings.TrimSpace(value)
		}
		return strings.TrimSpace(fileValues[key])
	}

	cfg := Config{
		Server: ServerConfig{
			Port:         stringOr(lookup("PORT"), defaultPort),
			ReadTimeout:  durationOr(lookup("SERVER_READ_TIMEOUT"), defaultReadTimeout),
			WriteTimeout: durationOr(lookup("SERVER_WRITE_TIMEOUT"), defaultWriteTimeout),
			IdleTimeout:  durationOr(lookup("SERVER_IDLE_TIMEOUT"), defaultIdleTimeout),
		},
		Firestore: FirestoreConfig{
			ProjectID:    stringOr(lookup("FIRESTORE_PROJECT_ID"), lookup("GOOGLE_CLOUD_PROJECT")),
			EmulatorHost: lookup("FIRESTORE_EMULATOR_HOST"),
		},
		Orders: OrdersConfig{
			WalkInCustomerID:   stringOr(lookup("ORDERS_WALKIN_CUSTOMER_ID"), defaultWalkInCustomerID),
			DefaultOrderTypeID: stringOr(lookup("ORDERS_DEFAULT_ORDER_TYPE_ID"), defaultOrderTypeID),
			LoyaltyRatePercent: intOr(lookup("ORDERS_LOYALTY_RATE_PERCENT"), defaultLoyaltyRatePercent),
		},
		Events: EventsConfig{
			OrderTopic: lookup("ORDER_EVENTS_TOPIC"),
		},
	}

	return cfg, nil
}

func stringOr(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

func intOr(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}

func durationOr(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

// readEnvFile parses KEY=VALUE lines, ignoring blanks and # comments.
// A missing file is not an error.
func readEnvFile(path string) (map[string]string, error) {
	values := make(map[string]string)
	if strings.TrimSpace(path) == "" {
		return values, nil
	}

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return values, nil
		}
		return nil, fmt.Errorf("config: open env file %s: %w", path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		value = strings.Trim(value, `"'`)
		if key != "" {
			values[key] = value
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: read env file %s: %w", path, err)
	}
	return values, nil
}
