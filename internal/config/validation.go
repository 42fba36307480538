package config

import (
	"fmt"
	"strings"

	"github.com/dbsmedya/goclean/internal/sqlutil"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

// Validate checks the configuration for required fields and valid values.
func (c *Config) Validate() error {
	var errors ValidationErrors

	errors = append(errors, c.validateDatabase()...)
	errors = append(errors, c.validateCleaner()...)
	errors = append(errors, c.validateLogging()...)

	if len(errors) > 0 {
		return errors
	}
	return nil
}

func (c *Config) validateDatabase() ValidationErrors {
	var errors ValidationErrors
	db := &c.Database

	validDrivers := map[string]bool{DriverMySQL: true, DriverPostgres: true}
	if !validDrivers[db.Driver] {
		errors = append(errors, ValidationError{
			Field:   "database.driver",
			Message: "driver must be 'mysql' or 'postgres'",
		})
	}

	// A full DSN carries host, credentials and database itself.
	if db.DSN != "" {
		return errors
	}

	if db.Host == "" {
		errors = append(errors, ValidationError{
			Field:   "database.host",
			Message: "host is required",
		})
	}

	if db.Port <= 0 || db.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   "database.port",
			Message: "port must be between 1 and 65535",
		})
	}

	if db.User == "" {
		errors = append(errors, ValidationError{
			Field:   "database.user",
			Message: "user is required",
		})
	}

	if db.Database == "" {
		errors = append(errors, ValidationError{
			Field:   "database.database",
			Message: "database name is required",
		})
	}

	validTLS := map[string]bool{"disable": true, "preferred": true, "required": true, "": true}
	if !validTLS[db.TLS] {
		errors = append(errors, ValidationError{
			Field:   "database.tls",
			Message: "tls must be 'disable', 'preferred', or 'required'",
		})
	}

	return errors
}

func (c *Config) validateCleaner() ValidationErrors {
	var errors ValidationErrors

	validStrategies := map[string]bool{StrategyTruncate: true, StrategyOrderedDelete: true}
	if !validStrategies[c.Cleaner.Strategy] {
		errors = append(errors, ValidationError{
			Field:   "cleaner.strategy",
			Message: "strategy must be 'truncate' or 'ordered-delete'",
		})
	}

	if c.Cleaner.Strategy == StrategyOrderedDelete && len(c.Cleaner.Only) > 0 {
		errors = append(errors, ValidationError{
			Field:   "cleaner.only",
			Message: "only is not supported with the ordered-delete strategy",
		})
	}

	for i, name := range c.Cleaner.Exclude {
		if !sqlutil.IsValidIdentifier(name) {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("cleaner.exclude[%d]", i),
				Message: fmt.Sprintf("%q is not a valid table name", name),
			})
		}
	}

	for i, name := range c.Cleaner.Only {
		if !sqlutil.IsValidIdentifier(name) {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("cleaner.only[%d]", i),
				Message: fmt.Sprintf("%q is not a valid table name", name),
			})
		}
	}

	return errors
}

func (c *Config) validateLogging() ValidationErrors {
	var errors ValidationErrors

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true, "": true}
	if !validLevels[c.Logging.Level] {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Message: "level must be 'debug', 'info', 'warn', or 'error'",
		})
	}

	validFormats := map[string]bool{"json": true, "text": true, "": true}
	if !validFormats[c.Logging.Format] {
		errors = append(errors, ValidationError{
			Field:   "logging.format",
			Message: "format must be 'json' or 'text'",
		})
	}

	return errors
}
