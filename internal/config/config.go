// Package config handles application configuration via environment variables.
package config

import (
	"log"
	"os"
	"strings"
	"time"
)

const devServerURL = "http://localhost:3000"

// Config holds all configurable values for the client.
type Config struct {
	Env            string
	APIBaseURL     string
	EventServerURL string
	RequestTimeout time.Duration
}

// Load reads environment variables and populates a Config struct.
//
// In development both URLs default to localhost. Outside development an
// unset EVENT_SERVER_URL is derived from API_BASE_URL by stripping a
// trailing /api segment.
func Load() *Config {
	timeout, err := time.ParseDuration(getEnv("REQUEST_TIMEOUT", "10s"))
	if err != nil {
		log.Panicf("Invalid REQUEST_TIMEOUT: %v", err)
	}

	env := getEnv("ENV", "development")
	apiBase := getEnv("API_BASE_URL", devServerURL+"/api")

	eventURL := os.Getenv("EVENT_SERVER_URL")
	if eventURL == "" {
		if env == "development" {
			eventURL = devServerURL
		} else {
			eventURL = strings.TrimSuffix(apiBase, "/api")
		}
	}

	return &Config{
		Env:            env,
		APIBaseURL:     apiBase,
		EventServerURL: eventURL,
		RequestTimeout: timeout,
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
