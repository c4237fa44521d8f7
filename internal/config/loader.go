package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"projectnotify/internal/constants"
)

func Load(configFile string) (*Config, error) {
	viper.Reset()

	viper.SetConfigType("yaml")
	viper.SetConfigFile(configFile)

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := ValidateStatic(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("broker.rabbitmq.prefetch", constants.DefaultPrefetch)
	viper.SetDefault("directory.timeout", constants.DefaultHTTPTimeout)
	viper.SetDefault("directory.token_ttl", constants.DefaultTokenTTL)
	viper.SetDefault("reminder.routing_key", constants.EventProjectUnclaimed)
	viper.SetDefault("reminder.delay", constants.DefaultReminderDelay)
	viper.SetDefault("reminder.max_attempts", constants.DefaultReminderAttempts)
}

func bindEnvVariables() {
	viper.BindEnv("broker.rabbitmq.source_url", "BROKER_RABBITMQ_SOURCE_URL")
	viper.BindEnv("broker.rabbitmq.target_url", "BROKER_RABBITMQ_TARGET_URL")
	viper.BindEnv("broker.rabbitmq.source_exchange", "BROKER_RABBITMQ_SOURCE_EXCHANGE")
	viper.BindEnv("broker.rabbitmq.source_queue", "BROKER_RABBITMQ_SOURCE_QUEUE")
	viper.BindEnv("broker.rabbitmq.target_exchange", "BROKER_RABBITMQ_TARGET_EXCHANGE")
	viper.BindEnv("broker.rabbitmq.delay_exchange", "BROKER_RABBITMQ_DELAY_EXCHANGE")
	viper.BindEnv("broker.rabbitmq.prefetch", "BROKER_RABBITMQ_PREFETCH")

	viper.BindEnv("directory.base_url", "DIRECTORY_BASE_URL")
	viper.BindEnv("directory.client_id", "DIRECTORY_CLIENT_ID")
	viper.BindEnv("directory.client_secret", "DIRECTORY_CLIENT_SECRET")
	viper.BindEnv("directory.token_ttl", "DIRECTORY_TOKEN_TTL")

	viper.BindEnv("notifications.connect_url", "NOTIFICATIONS_CONNECT_URL")
	viper.BindEnv("notifications.manager_channel", "NOTIFICATIONS_MANAGER_CHANNEL")
	viper.BindEnv("notifications.copilot_channel", "NOTIFICATIONS_COPILOT_CHANNEL")
	viper.BindEnv("notifications.slack_webhook_url", "NOTIFICATIONS_SLACK_WEBHOOK_URL")

	viper.BindEnv("reminder.routing_key", "REMINDER_ROUTING_KEY")
	viper.BindEnv("reminder.delay", "REMINDER_DELAY")
	viper.BindEnv("reminder.max_attempts", "REMINDER_MAX_ATTEMPTS")

	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("logging.level", "LOGGING_LEVEL")
}
