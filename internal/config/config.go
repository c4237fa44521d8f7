package config

import (
	"time"
)

type Config struct {
	Server         ServerConfig
	Broker         BrokerConfig
	Directory      DirectoryConfig
	Notifications  NotificationsConfig
	Reminder       ReminderConfig
	CircuitBreaker CircuitBreakerConfig
	Logging        LoggingConfig
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type BrokerConfig struct {
	RabbitMQ RabbitMQConfig `mapstructure:"rabbitmq"`
}

type RabbitMQConfig struct {
	SourceURL      string `mapstructure:"source_url"`
	TargetURL      string `mapstructure:"target_url"`
	SourceExchange string `mapstructure:"source_exchange"`
	SourceQueue    string `mapstructure:"source_queue"`
	TargetExchange string `mapstructure:"target_exchange"`
	DelayExchange  string `mapstructure:"delay_exchange"`
	Prefetch       int    `mapstructure:"prefetch"`
}

type DirectoryConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	ClientID     string        `mapstructure:"client_id"`
	ClientSecret string        `mapstructure:"client_secret"`
	Timeout      time.Duration `mapstructure:"timeout"`
	TokenTTL     time.Duration `mapstructure:"token_ttl"`
}

type NotificationsConfig struct {
	// ConnectURL is the deep-link base for project pages, e.g.
	// https://connect.example.com.
	ConnectURL      string `mapstructure:"connect_url"`
	ManagerChannel  string `mapstructure:"manager_channel"`
	CopilotChannel  string `mapstructure:"copilot_channel"`
	Username        string `mapstructure:"username"`
	IconURL         string `mapstructure:"icon_url"`
	ErrorIconURL    string `mapstructure:"error_icon_url"`
	ClaimedIconURL  string `mapstructure:"claimed_icon_url"`
	SlackWebhookURL string `mapstructure:"slack_webhook_url"`
}

type ReminderConfig struct {
	RoutingKey  string        `mapstructure:"routing_key"`
	Delay       time.Duration `mapstructure:"delay"`
	MaxAttempts int           `mapstructure:"max_attempts"`
}

type CircuitBreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
	MinRequests  int           `mapstructure:"min_requests"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}
