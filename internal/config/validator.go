package config

import (
	"encoding/base64"
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "server.addr")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateServer()...)
	errors = append(errors, c.validateDatabase()...)
	errors = append(errors, c.validateCache()...)
	errors = append(errors, c.validateOpenAI()...)
	errors = append(errors, c.validateDistribution()...)
	errors = append(errors, c.validateCrypto()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

func (c *Config) validateServer() []ValidationError {
	var errors []ValidationError

	if c.Server.Addr == "" {
		errors = append(errors, ValidationError{
			Field:   "server.addr",
			Value:   c.Server.Addr,
			Message: "listen address must not be empty",
		})
	}
	if c.Server.ReadTimeoutSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "server.read_timeout_seconds",
			Value:   c.Server.ReadTimeoutSeconds,
			Message: "must be zero or positive",
		})
	}
	if c.Server.ShutdownTimeoutSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "server.shutdown_timeout_seconds",
			Value:   c.Server.ShutdownTimeoutSeconds,
			Message: "must be zero or positive",
		})
	}

	return errors
}

func (c *Config) validateDatabase() []ValidationError {
	var errors []ValidationError

	if c.Database.DSN == "" {
		errors = append(errors, ValidationError{
			Field:   "database.dsn",
			Value:   c.Database.DSN,
			Message: "connection string must not be empty",
		})
	}
	if c.Database.MaxOpenConns < 1 {
		errors = append(errors, ValidationError{
			Field:   "database.max_open_conns",
			Value:   c.Database.MaxOpenConns,
			Message: "must be at least 1",
		})
	}

	return errors
}

func (c *Config) validateCache() []ValidationError {
	var errors []ValidationError

	if c.Cache.StateTTLMinutes < 1 {
		errors = append(errors, ValidationError{
			Field:   "cache.state_ttl_minutes",
			Value:   c.Cache.StateTTLMinutes,
			Message: "must be at least 1",
		})
	}

	return errors
}

func (c *Config) validateOpenAI() []ValidationError {
	var errors []ValidationError

	if c.OpenAI.Model == "" {
		errors = append(errors, ValidationError{
			Field:   "openai.model",
			Value:   c.OpenAI.Model,
			Message: "model identifier must not be empty",
		})
	}
	if c.OpenAI.Temperature < 0 || c.OpenAI.Temperature > 2 {
		errors = append(errors, ValidationError{
			Field:   "openai.temperature",
			Value:   c.OpenAI.Temperature,
			Message: "must be between 0 and 2",
		})
	}
	if c.OpenAI.MaxTokens < 1 {
		errors = append(errors, ValidationError{
			Field:   "openai.max_tokens",
			Value:   c.OpenAI.MaxTokens,
			Message: "must be at least 1",
		})
	}

	return errors
}

func (c *Config) validateDistribution() []ValidationError {
	var errors []ValidationError

	if c.Distribution.PerTargetTimeoutSeconds < 1 {
		errors = append(errors, ValidationError{
			Field:   "distribution.per_target_timeout_seconds",
			Value:   c.Distribution.PerTargetTimeoutSeconds,
			Message: "must be at least 1",
		})
	}

	return errors
}

func (c *Config) validateCrypto() []ValidationError {
	var errors []ValidationError

	// Empty key is allowed at load time so read-only commands work without it;
	// components that need it fail on construction instead.
	if c.Crypto.Key != "" {
		raw, err := base64.StdEncoding.DecodeString(c.Crypto.Key)
		if err != nil {
			errors = append(errors, ValidationError{
				Field:   "crypto.key",
				Value:   "<redacted>",
				Message: "must be valid base64",
			})
		} else if len(raw) != 32 {
			errors = append(errors, ValidationError{
				Field:   "crypto.key",
				Value:   "<redacted>",
				Message: "must decode to exactly 32 bytes",
			})
		}
	}

	return errors
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	return errors
}
