// Package container provides dependency injection and lifecycle management
// for the billing engine following Clean Architecture principles.
package container

import (
	"fmt"
	"time"
)

// Config holds all configuration for the Container.
// It aggregates configurations for all subsystems.
type Config struct {
	// Database configuration
	Database DatabaseConfig

	// Invoice service configuration
	Invoice InvoiceConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int

	// ConnMaxLifetime is the maximum connection lifetime
	ConnMaxLifetime time.Duration

	// BusyTimeout is how long a writer waits for the database lock
	BusyTimeout time.Duration

	// MigrationsDir overrides the embedded schema when set
	MigrationsDir string
}

// InvoiceConfig holds invoice service settings.
type InvoiceConfig struct {
	// NumberPrefix starts every generated internal number
	NumberPrefix string

	// DefaultPageSize applies when a listing names no page size
	DefaultPageSize int

	// MaxPageSize caps the page size of a listing
	MaxPageSize int

	// MaxBulkSize caps the number of invoices in one bulk action
	MaxBulkSize int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:            "data/billing.db",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			BusyTimeout:     5 * time.Second,
		},
		Invoice: InvoiceConfig{
			NumberPrefix:    "INV",
			DefaultPageSize: 20,
			MaxPageSize:     100,
			MaxBulkSize:     500,
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Invoice.NumberPrefix == "" {
		return fmt.Errorf("invoice.number_prefix is required")
	}
	if c.Invoice.MaxBulkSize < 0 {
		return fmt.Errorf("invoice.max_bulk_size must not be negative")
	}
	return nil
}
