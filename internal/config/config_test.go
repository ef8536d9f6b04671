package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/invoice-assistant/internal/config"
)

func loadWith(t *testing.T, env map[string]string) *config.Config {
	t.Helper()
	base := map[string]string{
		"DATABASE_URL": "postgres://localhost/invoices_test",
		"REDIS_URL":    "redis://localhost:6379/0",
	}
	for k, v := range env {
		base[k] = v
	}
	cfg, err := config.LoadForTests(base)
	require.NoError(t, err)
	return cfg
}

func TestTranscribeTimeoutsDefaults(t *testing.T) {
	cfg := loadWith(t, map[string]string{
		"TRANSCRIBE_TIMEOUT":  "",
		"TRANSCRIBE_POLL_MAX": "",
	})

	require.Equal(t, 120*time.Second, cfg.TranscribeTimeout)
	require.Equal(t, 90, cfg.TranscribePollMax)
	require.Equal(t, 90*time.Second, cfg.TranscribePollWindow())
}

func TestTranscribePollWindowOverride(t *testing.T) {
	cfg := loadWith(t, map[string]string{"TRANSCRIBE_POLL_MAX": "30"})
	require.Equal(t, 30*time.Second, cfg.TranscribePollWindow())
}

func TestHTTPAddrNormalisesPort(t *testing.T) {
	cfg := loadWith(t, map[string]string{"PORT": "9000"})
	require.Equal(t, ":9000", cfg.HTTPAddr())

	cfg = loadWith(t, map[string]string{"PORT": ":9100"})
	require.Equal(t, ":9100", cfg.HTTPAddr())

	cfg = loadWith(t, map[string]string{"PORT": ""})
	require.Equal(t, ":8080", cfg.HTTPAddr())
}
