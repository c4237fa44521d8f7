package config

import (
	"fmt"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func ValidateStatic(cfg *Config) error {
	var errors []error

	if err := validateServer(cfg.Server); err != nil {
		errors = append(errors, err)
	}

	if err := validateBroker(cfg.Broker); err != nil {
		errors = append(errors, err)
	}

	if err := validateDirectory(cfg.Directory); err != nil {
		errors = append(errors, err)
	}

	if err := validateNotifications(cfg.Notifications); err != nil {
		errors = append(errors, err)
	}

	if err := validateReminder(cfg.Reminder); err != nil {
		errors = append(errors, err)
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errors)
	}

	return nil
}

func validateServer(cfg ServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}
	return nil
}

func validateBroker(cfg BrokerConfig) error {
	mq := cfg.RabbitMQ
	switch {
	case mq.SourceURL == "":
		return &ValidationError{Field: "broker.rabbitmq.source_url", Message: "source URL is required"}
	case mq.TargetURL == "":
		return &ValidationError{Field: "broker.rabbitmq.target_url", Message: "target URL is required"}
	case mq.SourceExchange == "":
		return &ValidationError{Field: "broker.rabbitmq.source_exchange", Message: "source exchange is required"}
	case mq.SourceQueue == "":
		return &ValidationError{Field: "broker.rabbitmq.source_queue", Message: "source queue is required"}
	case mq.TargetExchange == "":
		return &ValidationError{Field: "broker.rabbitmq.target_exchange", Message: "target exchange is required"}
	case mq.DelayExchange == "":
		return &ValidationError{Field: "broker.rabbitmq.delay_exchange", Message: "delay exchange is required"}
	case mq.Prefetch < 1:
		return &ValidationError{Field: "broker.rabbitmq.prefetch", Message: "prefetch must be positive"}
	}
	return nil
}

func validateDirectory(cfg DirectoryConfig) error {
	switch {
	case cfg.BaseURL == "":
		return &ValidationError{Field: "directory.base_url", Message: "base URL is required"}
	case cfg.ClientID == "":
		return &ValidationError{Field: "directory.client_id", Message: "client id is required"}
	case cfg.ClientSecret == "":
		return &ValidationError{Field: "directory.client_secret", Message: "client secret is required"}
	case cfg.Timeout <= 0:
		return &ValidationError{Field: "directory.timeout", Message: "timeout must be positive"}
	}
	return nil
}

func validateNotifications(cfg NotificationsConfig) error {
	switch {
	case cfg.ConnectURL == "":
		return &ValidationError{Field: "notifications.connect_url", Message: "connect URL is required"}
	case cfg.ManagerChannel == "":
		return &ValidationError{Field: "notifications.manager_channel", Message: "manager channel is required"}
	case cfg.CopilotChannel == "":
		return &ValidationError{Field: "notifications.copilot_channel", Message: "copilot channel is required"}
	}
	return nil
}

func validateReminder(cfg ReminderConfig) error {
	switch {
	case cfg.RoutingKey == "":
		return &ValidationError{Field: "reminder.routing_key", Message: "routing key is required"}
	case cfg.Delay <= 0:
		return &ValidationError{Field: "reminder.delay", Message: "delay must be positive"}
	case cfg.MaxAttempts < 1:
		return &ValidationError{Field: "reminder.max_attempts", Message: "max attempts must be positive"}
	}
	return nil
}
