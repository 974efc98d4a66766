package config

import (
	"os"
	"strconv"
	"time"

	"github.com/facebouk/salepoint/internal/domain/capture"
)

// Config holds the terminal's runtime settings.
type Config struct {
	ServiceName string
	Env         string
	HTTPAddr    string

	// AuthBaseURL serves the profile/business lookups; TransactionBaseURL
	// serves settlement. The two backends are deployed separately.
	AuthBaseURL        string
	TransactionBaseURL string

	// SessionToken is the operator's session credential, issued by the
	// auth service at login (login itself is outside this process).
	SessionToken string

	BiometricMode capture.Mode

	// SubmitTimeout caps one settlement submission end to end.
	SubmitTimeout     time.Duration
	HTTPClientTimeout time.Duration

	// ClearAmountOnFailure decides whether a failed settlement clears the
	// entered amount; success always clears.
	ClearAmountOnFailure bool
}

func Default() *Config {
	return &Config{
		ServiceName:          "salepoint",
		Env:                  "dev",
		HTTPAddr:             ":8080",
		AuthBaseURL:          "http://localhost:8081",
		TransactionBaseURL:   "http://localhost:8082",
		BiometricMode:        capture.ModeAuthenticate,
		SubmitTimeout:        20 * time.Second,
		HTTPClientTimeout:    15 * time.Second,
		ClearAmountOnFailure: true,
	}
}

// FromEnv builds a Config from the environment, falling back to defaults.
func FromEnv() *Config {
	cfg := Default()
	cfg.ServiceName = getenvDefault("SERVICE_NAME", cfg.ServiceName)
	cfg.Env = getenvDefault("ENV", cfg.Env)
	cfg.HTTPAddr = getenvDefault("HTTP_ADDR", cfg.HTTPAddr)
	cfg.AuthBaseURL = getenvDefault("AUTH_BASE_URL", cfg.AuthBaseURL)
	cfg.TransactionBaseURL = getenvDefault("TRANSACTION_BASE_URL", cfg.TransactionBaseURL)
	cfg.SessionToken = os.Getenv("SESSION_TOKEN")

	if mode := os.Getenv("BIOMETRIC_MODE"); mode == string(capture.ModeEnroll) {
		cfg.BiometricMode = capture.ModeEnroll
	}
	if d, err := time.ParseDuration(os.Getenv("SUBMIT_TIMEOUT")); err == nil && d > 0 {
		cfg.SubmitTimeout = d
	}
	if d, err := time.ParseDuration(os.Getenv("HTTP_CLIENT_TIMEOUT")); err == nil && d > 0 {
		cfg.HTTPClientTimeout = d
	}
	if v, err := strconv.ParseBool(os.Getenv("CLEAR_AMOUNT_ON_FAILURE")); err == nil {
		cfg.ClearAmountOnFailure = v
	}
	return cfg
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
