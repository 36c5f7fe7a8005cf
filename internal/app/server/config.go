package server

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/spf13/viper"
	"github.com/zalachat/zalachat/internal/app/relay"
	"github.com/zalachat/zalachat/internal/aws/identity"
	"github.com/zalachat/zalachat/internal/aws/media"
	"github.com/zalachat/zalachat/internal/aws/storage"
	"github.com/zalachat/zalachat/pkg/logging"
)

const (
	AuthModeJwks    = "jwks"
	AuthModeCognito = "cognito"
)

type Config struct {
	Port            string
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
	MaxMessageSize  int64

	EventRate    float64
	EventBurst   int
	PingInterval time.Duration
	WriteTimeout time.Duration

	Log logging.Config

	AwsRegion         string
	CognitoUserPoolId string
	CognitoClientId   string
	AuthMode          string
	Storage           storage.Config
	MediaBucket       string
}

var defaultEnvFiles = []string{
	"./configs/aws/base.env",
	"./configs/aws/cognito.env",
	"./configs/aws/dynamodb.env",
}

func NewConfig() (Config, error) {
	return loadConfig(viper.New(), []string{"./configs/server", "."}, defaultEnvFiles)
}

func loadConfig(v *viper.Viper, configPaths []string, envFiles []string) (Config, error) {
	var config Config

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, path := range configPaths {
		v.AddConfigPath(path)
	}
	setDefaults(v)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return config, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Load all env files
	if err := loadEnvFiles(v, envFiles); err != nil {
		return config, fmt.Errorf("failed to load env files: %w", err)
	}

	config.Port = v.GetString("Server.Port")
	config.IdleTimeout = v.GetDuration("Server.IdleTimeout")
	config.ShutdownTimeout = v.GetDuration("Server.ShutdownTimeout")
	config.AllowedOrigins = v.GetStringSlice("Server.AllowedOrigins")
	config.MaxMessageSize = v.GetInt64("Server.MaxMessageSize")

	config.EventRate = v.GetFloat64("Relay.EventRate")
	config.EventBurst = v.GetInt("Relay.EventBurst")
	config.PingInterval = v.GetDuration("Relay.PingInterval")
	config.WriteTimeout = v.GetDuration("Relay.WriteTimeout")

	config.Log = logging.Config{
		Level:         v.GetString("Log.Level"),
		Path:          v.GetString("Log.Path"),
		RotationHours: v.GetInt("Log.RotationHours"),
		MaxAgeDays:    v.GetInt("Log.MaxAgeDays"),
	}

	config.AwsRegion = v.GetString("AWS_REGION")
	config.CognitoUserPoolId = v.GetString("COGNITO_USER_POOL_ID")
	config.CognitoClientId = v.GetString("COGNITO_CLIENT_ID")
	config.AuthMode = strings.ToLower(v.GetString("AUTH_MODE"))
	config.MediaBucket = v.GetString("S3_BUCKET_NAME")
	config.Storage = storage.Config{
		FriendshipsTableName:          optional(v.GetString("DYNAMODB_TABLE_FRIENDS")),
		MessagesTableName:             optional(v.GetString("DYNAMODB_TABLE_MESSAGES")),
		GroupMessagesTableName:        optional(v.GetString("DYNAMODB_TABLE_GROUP_MESSAGES")),
		FriendRequestsTableName:       optional(v.GetString("DYNAMODB_TABLE_FRIEND_REQUESTS")),
		ApplicationEndpointsTableName: optional(v.GetString("DYNAMODB_TABLE_APPLICATION_ENDPOINTS")),
		UserProfilesTableName:         optional(v.GetString("DYNAMODB_TABLE_USER_PROFILES")),
	}

	return config, config.validate()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("Server.Port", "5000")
	v.SetDefault("Server.IdleTimeout", "60s")
	v.SetDefault("Server.ShutdownTimeout", "10s")
	v.SetDefault("Server.AllowedOrigins", []string{"*"})
	v.SetDefault("Server.MaxMessageSize", 64*1024)
	v.SetDefault("Relay.EventRate", 20)
	v.SetDefault("Relay.EventBurst", 40)
	v.SetDefault("Relay.PingInterval", "25s")
	v.SetDefault("Relay.WriteTimeout", "10s")
	v.SetDefault("Log.Level", "info")
	v.SetDefault("AUTH_MODE", AuthModeJwks)

	// Keys only ever set through the environment must be known to viper
	// for AutomaticEnv to pick them up.
	for _, key := range []string{
		"AWS_REGION",
		"COGNITO_USER_POOL_ID",
		"COGNITO_CLIENT_ID",
		"S3_BUCKET_NAME",
		"DYNAMODB_TABLE_FRIENDS",
		"DYNAMODB_TABLE_MESSAGES",
		"DYNAMODB_TABLE_GROUP_MESSAGES",
		"DYNAMODB_TABLE_FRIEND_REQUESTS",
		"DYNAMODB_TABLE_APPLICATION_ENDPOINTS",
		"DYNAMODB_TABLE_USER_PROFILES",
	} {
		v.SetDefault(key, "")
	}
	v.AutomaticEnv()
}

// loadEnvFiles merges the env files that exist. OS environment variables
// keep precedence.
func loadEnvFiles(v *viper.Viper, filenames []string) error {
	for _, file := range filenames {
		if _, err := os.Stat(file); errors.Is(err, os.ErrNotExist) {
			continue
		}
		v.SetConfigFile(file) // Set specific file
		v.SetConfigType("env")
		v.AutomaticEnv() // Allow override by OS environment variables

		if err := v.MergeInConfig(); err != nil {
			return err
		}
	}
	return nil
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return aws.String(value)
}

func (c Config) validate() error {
	if c.IdleTimeout <= 0 {
		return fmt.Errorf("Server.IdleTimeout must be positive")
	}
	if c.PingInterval <= 0 || c.PingInterval >= c.IdleTimeout {
		return fmt.Errorf("Relay.PingInterval must be positive and shorter than Server.IdleTimeout")
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("Relay.WriteTimeout must be positive")
	}
	switch c.AuthMode {
	case AuthModeJwks, AuthModeCognito:
	default:
		return fmt.Errorf("unknown AUTH_MODE %q", c.AuthMode)
	}
	return nil
}

func (c Config) Address() string {
	return "0.0.0.0:" + c.Port
}

func (c Config) ConnOptions() relay.ConnOptions {
	return relay.ConnOptions{
		EventRate:    c.EventRate,
		EventBurst:   c.EventBurst,
		WriteTimeout: c.WriteTimeout,
	}
}

func (c Config) IdentityConfig() identity.Config {
	return identity.Config{
		UserPoolId: c.CognitoUserPoolId,
		ClientId:   c.CognitoClientId,
	}
}

func (c Config) MediaConfig() media.Config {
	return media.Config{
		Bucket: c.MediaBucket,
		Region: c.AwsRegion,
	}
}
