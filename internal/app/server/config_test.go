package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	config, err := loadConfig(viper.New(), []string{t.TempDir()}, nil)
	require.NoError(t, err)

	assert.Equal(t, "5000", config.Port)
	assert.Equal(t, 60*time.Second, config.IdleTimeout)
	assert.Equal(t, 25*time.Second, config.PingInterval)
	assert.Equal(t, []string{"*"}, config.AllowedOrigins)
	assert.Equal(t, AuthModeJwks, config.AuthMode)
	assert.Equal(t, "info", config.Log.Level)
	assert.Nil(t, config.Storage.MessagesTableName)
	assert.Equal(t, "0.0.0.0:5000", config.Address())
}

func TestLoadConfigFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "config.yaml", `
Server:
  Port: "7000"
  IdleTimeout: 90s
  AllowedOrigins:
    - https://chat.example.com
Relay:
  EventRate: 5
  EventBurst: 10
  PingInterval: 30s
Log:
  Level: debug
`)
	envFile := writeFile(t, dir, "dynamodb.env", `
AWS_REGION=ap-southeast-1
DYNAMODB_TABLE_MESSAGES=Messages
S3_BUCKET_NAME=zalachat-media
AUTH_MODE=cognito
`)

	config, err := loadConfig(viper.New(), []string{dir}, []string{envFile, filepath.Join(dir, "missing.env")})
	require.NoError(t, err)

	assert.Equal(t, "7000", config.Port)
	assert.Equal(t, 90*time.Second, config.IdleTimeout)
	assert.Equal(t, []string{"https://chat.example.com"}, config.AllowedOrigins)
	assert.Equal(t, "ap-southeast-1", config.AwsRegion)
	assert.Equal(t, AuthModeCognito, config.AuthMode)
	require.NotNil(t, config.Storage.MessagesTableName)
	assert.Equal(t, "Messages", *config.Storage.MessagesTableName)
	assert.Equal(t, "zalachat-media", config.MediaConfig().Bucket)

	opts := config.ConnOptions()
	assert.Equal(t, 5.0, opts.EventRate)
	assert.Equal(t, 10, opts.EventBurst)
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	envFile := writeFile(t, dir, "base.env", "AWS_REGION=ap-southeast-1\n")
	t.Setenv("AWS_REGION", "us-east-1")

	config, err := loadConfig(viper.New(), []string{dir}, []string{envFile})
	require.NoError(t, err)
	assert.Equal(t, "us-east-1", config.AwsRegion)
}

func TestConfigValidate(t *testing.T) {
	testCases := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero idle timeout", func(c *Config) { c.IdleTimeout = 0 }},
		{"ping not shorter than idle", func(c *Config) { c.PingInterval = c.IdleTimeout }},
		{"zero write timeout", func(c *Config) { c.WriteTimeout = 0 }},
		{"unknown auth mode", func(c *Config) { c.AuthMode = "basic" }},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			config := testConfig()
			tc.modify(&config)
			assert.Error(t, config.validate())
		})
	}
	assert.NoError(t, testConfig().validate())
}
