package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the paper-trading
// backend.
type Config struct {
	Port     int
	LogLevel string

	// LockTimeout bounds how long an order waits for its instrument's
	// serialization lock before rejection with busy.
	LockTimeout time.Duration
	// LedgerRetries bounds internal retries of a conflicting ledger
	// append before conflict surfaces.
	LedgerRetries int
	// SlippageBufferBps inflates the market-buy affordability estimate
	// in basis points.
	SlippageBufferBps int64
	// DefaultInitialCash is the cash deposited into new accounts when
	// the request doesn't specify one, in dollars.
	DefaultInitialCash float64

	// FeedURL is the websocket quote feed address; empty disables the
	// feed client (quotes can still be pushed over HTTP).
	FeedURL           string
	FeedReconnectWait time.Duration

	WebhookTimeout  time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Load reads an optional .env file, then configuration from
// environment variables, applies defaults, and validates values. It
// returns an error for any invalid value.
func Load() (*Config, error) {
	// Missing .env is fine; the environment wins over file values.
	_ = godotenv.Load()

	port, err := getInt("PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}

	logLevel := getStr("LOG_LEVEL", "info")
	if !isValidLogLevel(logLevel) {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %q, must be one of: debug, info, warn, error", logLevel)
	}

	lockTimeout, err := getDuration("LOCK_TIMEOUT", 250*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("invalid LOCK_TIMEOUT: %w", err)
	}

	ledgerRetries, err := getInt("LEDGER_RETRIES", 3)
	if err != nil {
		return nil, fmt.Errorf("invalid LEDGER_RETRIES: %w", err)
	}
	if ledgerRetries < 1 {
		return nil, fmt.Errorf("invalid LEDGER_RETRIES: must be >= 1")
	}

	slippageBps, err := getInt("SLIPPAGE_BUFFER_BPS", 50)
	if err != nil {
		return nil, fmt.Errorf("invalid SLIPPAGE_BUFFER_BPS: %w", err)
	}
	if slippageBps < 0 || slippageBps > 10000 {
		return nil, fmt.Errorf("invalid SLIPPAGE_BUFFER_BPS: must be between 0 and 10000")
	}

	defaultInitialCash, err := getFloat("DEFAULT_INITIAL_CASH", 100000)
	if err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_INITIAL_CASH: %w", err)
	}
	if defaultInitialCash < 0 {
		return nil, fmt.Errorf("invalid DEFAULT_INITIAL_CASH: must be >= 0")
	}

	feedURL := getStr("FEED_URL", "")

	feedReconnectWait, err := getDuration("FEED_RECONNECT_WAIT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid FEED_RECONNECT_WAIT: %w", err)
	}

	webhookTimeout, err := getDuration("WEBHOOK_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid WEBHOOK_TIMEOUT: %w", err)
	}

	readTimeout, err := getDuration("READ_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid READ_TIMEOUT: %w", err)
	}

	writeTimeout, err := getDuration("WRITE_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid WRITE_TIMEOUT: %w", err)
	}

	idleTimeout, err := getDuration("IDLE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid IDLE_TIMEOUT: %w", err)
	}

	shutdownTimeout, err := getDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
	}

	return &Config{
		Port:               port,
		LogLevel:           logLevel,
		LockTimeout:        lockTimeout,
		LedgerRetries:      ledgerRetries,
		SlippageBufferBps:  int64(slippageBps),
		DefaultInitialCash: defaultInitialCash,
		FeedURL:            feedURL,
		FeedReconnectWait:  feedReconnectWait,
		WebhookTimeout:     webhookTimeout,
		ReadTimeout:        readTimeout,
		WriteTimeout:       writeTimeout,
		IdleTimeout:        idleTimeout,
		ShutdownTimeout:    shutdownTimeout,
	}, nil
}

func getStr(key, defaultVal string) string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return v
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(v)
}

func getFloat(key string, defaultVal float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.ParseFloat(v, 64)
}

func getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return time.ParseDuration(v)
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}
