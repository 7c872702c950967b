package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, data map[string]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.json")
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson_LoadsFromFile(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	path := writeTempJSON(t, map[string]any{
		"endpoint_addr":      "www.example:9000",
		"database_dsn":       "dsn",
		"secret_key":         "my_secret_key",
		"token_validity":     "30m",
		"otp_expiration":     "90s",
		"otp_code_length":    8,
		"handshake_secret":   "bootstrap",
		"handshake_interval": "45m",
		"handshake_timeout":  "3s",
	})

	os.Args = []string{"testbin", "-config", path}

	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)

	assert.Equal(t, "www.example:9000", cfg.EndpointAddr)
	assert.Equal(t, "dsn", cfg.DatabaseDSN)
	assert.Equal(t, "my_secret_key", cfg.SecretKey)
	assert.Equal(t, 30*time.Minute, cfg.TokenValidity)
	assert.Equal(t, 90*time.Second, cfg.OTPExpiration)
	assert.Equal(t, 8, cfg.OTPCodeLength)
	assert.Equal(t, "bootstrap", cfg.HandshakeSecret)
	assert.Equal(t, 45*time.Minute, cfg.HandshakeInterval)
	assert.Equal(t, 3*time.Second, cfg.HandshakeTimeout)
}

func Test_parseJson_PartialFileKeepsDefaults(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	path := writeTempJSON(t, map[string]any{
		"secret_key": "only-this",
	})

	os.Args = []string{"testbin", "-c", path}

	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)

	assert.Equal(t, "only-this", cfg.SecretKey)
	assert.Equal(t, ":8080", cfg.EndpointAddr)
	assert.Equal(t, 6, cfg.OTPCodeLength)
}

func Test_parseJson_NoFlagIsNoop(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	os.Args = []string{"testbin"}

	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)

	assert.Equal(t, ":8080", cfg.EndpointAddr)
}

func Test_parseJson_InvalidFilePanics(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	os.Args = []string{"testbin", "-config", path}

	cfg := &Config{}
	require.Panics(t, func() { parseJson(cfg) })
}
