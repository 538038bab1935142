package config

import (
	"github.com/garyjia/billing-engine/internal/container"
)

// ToContainerConfig converts the application Config to a container.Config.
// This provides a bridge between the file-based config loaded by viper
// and the container's configuration structure.
func (c *Config) ToContainerConfig() *container.Config {
	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
			BusyTimeout:     c.Database.BusyTimeout,
			MigrationsDir:   c.Database.MigrationsDir,
		},
		Invoice: container.InvoiceConfig{
			NumberPrefix:    c.Invoice.NumberPrefix,
			DefaultPageSize: c.Invoice.DefaultPageSize,
			MaxPageSize:     c.Invoice.MaxPageSize,
			MaxBulkSize:     c.Invoice.MaxBulkSize,
		},
	}
}
