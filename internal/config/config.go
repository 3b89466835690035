/**
 * @description
 * This package handles the configuration management for the service. It uses
 * the Viper library to read configuration from environment variables,
 * providing a centralized and straightforward way to manage application
 * settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the redemption service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort     string `mapstructure:"SERVER_PORT"`
	DatabaseURL    string `mapstructure:"DATABASE_URL"`
	SQLiteLedger   string `mapstructure:"SQLITE_LEDGER_PATH"`
	RabbitMQURL    string `mapstructure:"RABBITMQ_URL"`
	EventExchange  string `mapstructure:"REDEMPTION_EVENT_EXCHANGE"`
	InternalAPIKey string `mapstructure:"INTERNAL_API_KEY"`

	GiftAPIPlayerURL  string `mapstructure:"GIFT_API_PLAYER_URL"`
	GiftAPICaptchaURL string `mapstructure:"GIFT_API_CAPTCHA_URL"`
	GiftAPIRedeemURL  string `mapstructure:"GIFT_API_REDEEM_URL"`
	GiftAPISecret     string `mapstructure:"GIFT_API_SECRET"`

	SolverURL    string `mapstructure:"CAPTCHA_SOLVER_URL"`
	SolverAPIKey string `mapstructure:"CAPTCHA_SOLVER_API_KEY"`

	CodeFeedURL    string `mapstructure:"CODE_FEED_URL"`
	CodeFeedAPIKey string `mapstructure:"CODE_FEED_API_KEY"`

	SessionSlots          int `mapstructure:"SESSION_SLOTS"`
	SessionMinSpacingSecs int `mapstructure:"SESSION_MIN_SPACING_SECONDS"`
	SessionBackoffSecs    int `mapstructure:"SESSION_BACKOFF_SECONDS"`
	SessionMaxBackoffSecs int `mapstructure:"SESSION_MAX_BACKOFF_SECONDS"`
	RedemptionWorkers     int `mapstructure:"REDEMPTION_WORKERS"`
	DiscoveryPollSecs     int `mapstructure:"DISCOVERY_POLL_SECONDS"`
	MaxLoginAttempts      int `mapstructure:"MAX_LOGIN_ATTEMPTS"`
	MaxRedeemAttempts     int `mapstructure:"MAX_REDEEM_ATTEMPTS"`
	CaptchaAttempts       int `mapstructure:"CAPTCHA_ATTEMPTS"`

	// Derived durations, populated after unmarshal.
	SessionMinSpacing     time.Duration `mapstructure:"-"`
	SessionBackoff        time.Duration `mapstructure:"-"`
	SessionMaxBackoff     time.Duration `mapstructure:"-"`
	DiscoveryPollInterval time.Duration `mapstructure:"-"`
}

// LoadConfig reads configuration from environment variables from the given
// path. It uses Viper to automatically bind environment variables to the
// Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8089")
	viper.SetDefault("SQLITE_LEDGER_PATH", "redemption_fallback.db")
	viper.SetDefault("REDEMPTION_EVENT_EXCHANGE", "redemption_events")
	viper.SetDefault("GIFT_API_PLAYER_URL", "https://wos-giftcode-api.centurygame.com/api/player")
	viper.SetDefault("GIFT_API_CAPTCHA_URL", "https://wos-giftcode-api.centurygame.com/api/captcha")
	viper.SetDefault("GIFT_API_REDEEM_URL", "https://wos-giftcode-api.centurygame.com/api/gift_code")
	viper.SetDefault("GIFT_API_SECRET", "tB87#kPtkxqOS2")
	viper.SetDefault("SESSION_SLOTS", 2)
	viper.SetDefault("SESSION_MIN_SPACING_SECONDS", 3)
	viper.SetDefault("SESSION_BACKOFF_SECONDS", 10)
	viper.SetDefault("SESSION_MAX_BACKOFF_SECONDS", 60)
	viper.SetDefault("REDEMPTION_WORKERS", 2)
	viper.SetDefault("DISCOVERY_POLL_SECONDS", 60)
	viper.SetDefault("MAX_LOGIN_ATTEMPTS", 5)
	viper.SetDefault("MAX_REDEEM_ATTEMPTS", 10)
	viper.SetDefault("CAPTCHA_ATTEMPTS", 4)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("SQLITE_LEDGER_PATH")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("REDEMPTION_EVENT_EXCHANGE")
	_ = viper.BindEnv("INTERNAL_API_KEY")
	_ = viper.BindEnv("GIFT_API_PLAYER_URL")
	_ = viper.BindEnv("GIFT_API_CAPTCHA_URL")
	_ = viper.BindEnv("GIFT_API_REDEEM_URL")
	_ = viper.BindEnv("GIFT_API_SECRET")
	_ = viper.BindEnv("CAPTCHA_SOLVER_URL")
	_ = viper.BindEnv("CAPTCHA_SOLVER_API_KEY")
	_ = viper.BindEnv("CODE_FEED_URL")
	_ = viper.BindEnv("CODE_FEED_API_KEY")
	_ = viper.BindEnv("SESSION_SLOTS")
	_ = viper.BindEnv("SESSION_MIN_SPACING_SECONDS")
	_ = viper.BindEnv("SESSION_BACKOFF_SECONDS")
	_ = viper.BindEnv("SESSION_MAX_BACKOFF_SECONDS")
	_ = viper.BindEnv("REDEMPTION_WORKERS")
	_ = viper.BindEnv("DISCOVERY_POLL_SECONDS")
	_ = viper.BindEnv("MAX_LOGIN_ATTEMPTS")
	_ = viper.BindEnv("MAX_REDEEM_ATTEMPTS")
	_ = viper.BindEnv("CAPTCHA_ATTEMPTS")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
		err = nil
	}

	// Unmarshal the configuration into the Config struct.
	if err = viper.Unmarshal(&config); err != nil {
		return
	}

	if config.SessionSlots <= 0 {
		config.SessionSlots = 2
	}
	if config.SessionMinSpacingSecs <= 0 {
		config.SessionMinSpacingSecs = 3
	}
	if config.SessionBackoffSecs <= 0 {
		config.SessionBackoffSecs = 10
	}
	if config.SessionMaxBackoffSecs < config.SessionBackoffSecs {
		log.Printf("level=warn component=config msg=\"max backoff below base; raising to base\" base=%d max=%d",
			config.SessionBackoffSecs, config.SessionMaxBackoffSecs)
		config.SessionMaxBackoffSecs = config.SessionBackoffSecs
	}
	if config.RedemptionWorkers <= 0 {
		config.RedemptionWorkers = 2
	}
	if config.DiscoveryPollSecs <= 0 {
		config.DiscoveryPollSecs = 60
	}
	if config.MaxLoginAttempts <= 0 {
		config.MaxLoginAttempts = 5
	}
	if config.MaxRedeemAttempts <= 0 {
		config.MaxRedeemAttempts = 10
	}
	if config.CaptchaAttempts <= 0 {
		config.CaptchaAttempts = 4
	}

	config.SessionMinSpacing = time.Duration(config.SessionMinSpacingSecs) * time.Second
	config.SessionBackoff = time.Duration(config.SessionBackoffSecs) * time.Second
	config.SessionMaxBackoff = time.Duration(config.SessionMaxBackoffSecs) * time.Second
	config.DiscoveryPollInterval = time.Duration(config.DiscoveryPollSecs) * time.Second

	return
}
