/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables, providing a
 * centralized and straightforward way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the ledger service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort              string `mapstructure:"SERVER_PORT"`
	DatabaseURL             string `mapstructure:"DATABASE_URL"`
	RabbitMQURL             string `mapstructure:"RABBITMQ_URL"`
	EventExchange           string `mapstructure:"TRANSACTION_EVENT_EXCHANGE"`
	DailyDebitLimitMinor    int64  `mapstructure:"DAILY_DEBIT_LIMIT_MINOR"`
	RedisURL                string `mapstructure:"REDIS_URL"`
	IdempotencyCacheTTLMin  int    `mapstructure:"IDEMPOTENCY_CACHE_TTL_MINUTES"`
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
	viper.SetDefault("TRANSACTION_EVENT_EXCHANGE", "ledger.events")
	viper.SetDefault("DAILY_DEBIT_LIMIT_MINOR", 20000000)
	viper.SetDefault("IDEMPOTENCY_CACHE_TTL_MINUTES", 1440)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("TRANSACTION_EVENT_EXCHANGE")
	_ = viper.BindEnv("DAILY_DEBIT_LIMIT_MINOR")
	_ = viper.BindEnv("REDIS_URL", "REDIS_URL", "LEDGER_REDIS_URL")
	_ = viper.BindEnv("IDEMPOTENCY_CACHE_TTL_MINUTES")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		// If the config file is not found, we can ignore the error.
		// For other errors, we should return them.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)

	// Allow specifying the limit in whole currency units via DAILY_DEBIT_LIMIT.
	if viper.IsSet("DAILY_DEBIT_LIMIT") {
		limitStr := strings.TrimSpace(viper.GetString("DAILY_DEBIT_LIMIT"))
		if limitStr != "" {
			limitValue, parseErr := strconv.ParseFloat(limitStr, 64)
			if parseErr != nil {
				log.Printf("level=warn component=config msg=\"invalid DAILY_DEBIT_LIMIT\" value=%q err=%v", limitStr, parseErr)
			} else {
				config.DailyDebitLimitMinor = int64(math.Round(limitValue * 100))
			}
		}
	}

	if config.DailyDebitLimitMinor < 0 {
		log.Printf("level=warn component=config msg=\"negative daily debit limit configured; disabling the ceiling\" limit_minor=%d", config.DailyDebitLimitMinor)
		config.DailyDebitLimitMinor = 0
	}
	if config.IdempotencyCacheTTLMin <= 0 {
		config.IdempotencyCacheTTLMin = 1440
	}

	return
}
