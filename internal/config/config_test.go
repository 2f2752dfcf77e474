package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()

	cfg := Load()

	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "http://localhost:3000/api", cfg.APIBaseURL)
	assert.Equal(t, "http://localhost:3000", cfg.EventServerURL)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
}

func TestLoad_CustomEnv(t *testing.T) {
	os.Clearenv()
	_ = os.Setenv("ENV", "production")
	_ = os.Setenv("API_BASE_URL", "https://api.example.com/api")
	_ = os.Setenv("EVENT_SERVER_URL", "wss://events.example.com")
	_ = os.Setenv("REQUEST_TIMEOUT", "30s")

	cfg := Load()

	assert.Equal(t, "production", cfg.Env)
	assert.Equal(t, "https://api.example.com/api", cfg.APIBaseURL)
	assert.Equal(t, "wss://events.example.com", cfg.EventServerURL)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
}

func TestLoad_DerivedEventServerURL(t *testing.T) {
	os.Clearenv()
	_ = os.Setenv("ENV", "production")
	_ = os.Setenv("API_BASE_URL", "https://api.example.com/api")

	cfg := Load()

	assert.Equal(t, "https://api.example.com", cfg.EventServerURL)
}

func TestLoad_InvalidTimeout(t *testing.T) {
	os.Clearenv()
	_ = os.Setenv("REQUEST_TIMEOUT", "invalid-duration")
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic due to invalid REQUEST_TIMEOUT")
		}
	}()
	Load()
}
