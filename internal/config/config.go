// Package config loads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

type Config struct {
	ServiceName string
	Env         string
	LogLevel    string
	LogFile     string

	HTTPAddr string

	StoreDriver string
	SQLitePath  string
	DatabaseURL string

	// Remote gateways are used when both URLs are set; otherwise the
	// in-process directory and catalog are seeded from SeedFile.
	AccountServiceURL string
	ProductServiceURL string
	GatewayTimeout    time.Duration
	ProductBatchSize  int
	SeedFile          string

	// Events are relayed to Kafka when brokers are set, to the log otherwise.
	KafkaBrokers []string
	KafkaTopic   string
}

// RemoteGateways reports whether the account and product services are remote.
func (c Config) RemoteGateways() bool {
	return c.AccountServiceURL != "" && c.ProductServiceURL != ""
}

// Load reads the process environment.
func Load() (Config, error) {
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config from lookup, applying defaults for unset keys.
func FromLookup(lookup func(string) (string, bool)) (Config, error) {
	get := func(key, def string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}

	var errs []error
	getInt := func(key string, def int) int {
		raw := get(key, "")
		if raw == "" {
			return def
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			errs = append(errs, fmt.Errorf("%s: want a positive integer, got %q", key, raw))
			return def
		}
		return n
	}

	cfg := Config{
		ServiceName:       get("SERVICE_NAME", "minishop-fulfillment"),
		Env:               get("ENV", "dev"),
		LogLevel:          get("LOG_LEVEL", "info"),
		LogFile:           get("LOG_FILE", ""),
		HTTPAddr:          get("HTTP_ADDR", ":8080"),
		StoreDriver:       strings.ToLower(get("STORE_DRIVER", StoreMemory)),
		SQLitePath:        get("SQLITE_PATH", "fulfillment.db"),
		DatabaseURL:       get("DATABASE_URL", ""),
		AccountServiceURL: get("ACCOUNT_SERVICE_URL", ""),
		ProductServiceURL: get("PRODUCT_SERVICE_URL", ""),
		GatewayTimeout:    time.Duration(getInt("GATEWAY_TIMEOUT_MS", 2000)) * time.Millisecond,
		ProductBatchSize:  getInt("PRODUCT_BATCH_SIZE", 50),
		SeedFile:          get("SEED_FILE", ""),
		KafkaBrokers:      splitList(get("KAFKA_BROKERS", "")),
		KafkaTopic:        get("KAFKA_TOPIC", "order-events"),
	}

	switch cfg.StoreDriver {
	case StoreMemory, StoreSQLite:
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres store"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER: unknown driver %q", cfg.StoreDriver))
	}
	if (cfg.AccountServiceURL == "") != (cfg.ProductServiceURL == "") {
		errs = append(errs, errors.New("ACCOUNT_SERVICE_URL and PRODUCT_SERVICE_URL must be set together"))
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
