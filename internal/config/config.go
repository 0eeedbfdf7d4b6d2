/**
 * @description
 * This package handles the configuration management for the connector. It uses
 * the Viper library to read configuration from environment variables, providing
 * a centralized and straightforward way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the bridge-connector.
// These values are loaded from environment variables.
type Config struct {
	ServerPort string `mapstructure:"SERVER_PORT"`

	// Algoan (destination platform) settings.
	AlgoanBaseURL      string `mapstructure:"ALGOAN_BASE_URL"`
	AlgoanClientID     string `mapstructure:"ALGOAN_CLIENT_ID"`
	AlgoanClientSecret string `mapstructure:"ALGOAN_CLIENT_SECRET"`
	// RestHookSecret signs the webhook payloads Algoan posts to this service.
	RestHookSecret string `mapstructure:"RESTHOOK_SECRET"`

	// Bridge (aggregator) process defaults. A service account's ClientConfig
	// overrides these per call.
	BridgeBaseURL      string `mapstructure:"BRIDGE_BASE_URL"`
	BridgeClientID     string `mapstructure:"BRIDGE_CLIENT_ID"`
	BridgeClientSecret string `mapstructure:"BRIDGE_CLIENT_SECRET"`
	BankinVersion      string `mapstructure:"BANKIN_VERSION"`
	// BridgeUserSecretKey is the process-wide key Bridge user passwords are
	// derived from. Rotating it invalidates every derived credential.
	BridgeUserSecretKey string `mapstructure:"BRIDGE_USER_SECRET_KEY"`

	// Synchronization tuning.
	SyncTimeoutSeconds      int `mapstructure:"SYNC_TIMEOUT_SECONDS"`
	SyncWaitMilliseconds    int `mapstructure:"SYNC_WAIT_MS"`
	RefreshTimeoutSeconds   int `mapstructure:"REFRESH_TIMEOUT_SECONDS"`
	RefreshWaitMilliseconds int `mapstructure:"REFRESH_WAIT_MS"`
	NbOfMonths              int `mapstructure:"NB_OF_MONTHS"`

	// DeleteBridgeUsers controls the post-synchronization cleanup. The
	// per-caller ClientConfig may override it unless ForceDeleteBridgeUsers
	// is set, in which case deletion always runs.
	DeleteBridgeUsers      bool `mapstructure:"DELETE_BRIDGE_USERS"`
	ForceDeleteBridgeUsers bool `mapstructure:"FORCE_DELETE_BRIDGE_USERS"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("ALGOAN_BASE_URL", "https://api.algoan.com")
	viper.SetDefault("BRIDGE_BASE_URL", "https://api.bridgeapi.io")
	viper.SetDefault("BANKIN_VERSION", "2021-06-01")
	viper.SetDefault("SYNC_TIMEOUT_SECONDS", 300)
	viper.SetDefault("SYNC_WAIT_MS", 5000)
	viper.SetDefault("REFRESH_TIMEOUT_SECONDS", 60)
	viper.SetDefault("REFRESH_WAIT_MS", 3000)
	viper.SetDefault("NB_OF_MONTHS", 3)
	viper.SetDefault("DELETE_BRIDGE_USERS", true)
	viper.SetDefault("FORCE_DELETE_BRIDGE_USERS", false)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("ALGOAN_BASE_URL")
	_ = viper.BindEnv("ALGOAN_CLIENT_ID")
	_ = viper.BindEnv("ALGOAN_CLIENT_SECRET")
	_ = viper.BindEnv("RESTHOOK_SECRET")
	_ = viper.BindEnv("BRIDGE_BASE_URL")
	_ = viper.BindEnv("BRIDGE_CLIENT_ID")
	_ = viper.BindEnv("BRIDGE_CLIENT_SECRET")
	_ = viper.BindEnv("BANKIN_VERSION")
	_ = viper.BindEnv("BRIDGE_USER_SECRET_KEY")
	_ = viper.BindEnv("SYNC_TIMEOUT_SECONDS")
	_ = viper.BindEnv("SYNC_WAIT_MS")
	_ = viper.BindEnv("REFRESH_TIMEOUT_SECONDS")
	_ = viper.BindEnv("REFRESH_WAIT_MS")
	_ = viper.BindEnv("NB_OF_MONTHS")
	_ = viper.BindEnv("DELETE_BRIDGE_USERS")
	_ = viper.BindEnv("FORCE_DELETE_BRIDGE_USERS")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
		err = nil
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if config.SyncTimeoutSeconds <= 0 {
		config.SyncTimeoutSeconds = 300
	}
	if config.SyncWaitMilliseconds < 0 {
		config.SyncWaitMilliseconds = 0
	}
	if config.RefreshTimeoutSeconds <= 0 {
		config.RefreshTimeoutSeconds = 60
	}
	if config.RefreshWaitMilliseconds <= 0 {
		config.RefreshWaitMilliseconds = 3000
	}
	if config.NbOfMonths <= 0 {
		config.NbOfMonths = 3
	}

	return
}
