package container

import (
	"fmt"
	"io/fs"
	"os"

	"github.com/garyjia/billing-engine/internal/application/port"
	"github.com/garyjia/billing-engine/internal/application/service"
	"github.com/garyjia/billing-engine/internal/infrastructure/export"
	"github.com/garyjia/billing-engine/internal/infrastructure/persistence/repository"
	"github.com/garyjia/billing-engine/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/billing-engine/pkg/database"
	"github.com/garyjia/billing-engine/pkg/utils"
	"go.uber.org/zap"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	DB             *database.DB
	TransactionMgr *sqlite.DB
}

// ProvideDatabase opens the database and applies pending migrations.
// The embedded schema is used unless cfg.MigrationsDir is set.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		BusyTimeout:     cfg.BusyTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}

	var migrations fs.FS = database.EmbeddedMigrations()
	if cfg.MigrationsDir != "" {
		migrations = os.DirFS(cfg.MigrationsDir)
	}

	if err := database.NewMigrator(db, logger).RunMigrations(migrations); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		DB:             db,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories from a database connection.
func ProvideRepositories(db *database.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		Invoice:        repository.NewInvoiceRepository(db.DB, logger),
		Task:           repository.NewTaskRepository(db.DB, logger),
		Charge:         repository.NewChargeRepository(db.DB, logger),
		CompanyProfile: repository.NewCompanyProfileRepository(db.DB, logger),
		Entity:         repository.NewEntityRepository(db.DB, logger),
		StatusHistory:  repository.NewStatusHistoryRepository(db.DB, logger),
	}, nil
}

// ProvideServices creates the application services.
func ProvideServices(
	cfg *InvoiceConfig,
	repos *RepositoryBundle,
	txManager port.TransactionManager,
	logger *zap.Logger,
) (*ServiceBundle, error) {
	if cfg == nil || repos == nil || txManager == nil || logger == nil {
		return nil, fmt.Errorf("services require config, repositories, a transaction manager and a logger")
	}

	invoices := service.NewInvoiceService(
		service.InvoiceRepositories{
			Invoices:        repos.Invoice,
			Tasks:           repos.Task,
			Charges:         repos.Charge,
			CompanyProfiles: repos.CompanyProfile,
			Entities:        repos.Entity,
			History:         repos.StatusHistory,
		},
		txManager,
		service.NewNumberGenerator(cfg.NumberPrefix),
		service.InvoiceOptions{
			DefaultPageSize: cfg.DefaultPageSize,
			MaxPageSize:     cfg.MaxPageSize,
			MaxBulkSize:     cfg.MaxBulkSize,
		},
		utils.NewZapAdapter(logger),
	)

	return &ServiceBundle{
		Invoice:  invoices,
		Exporter: export.NewXLSXExporter(logger),
	}, nil
}

var _ service.Logger = (*utils.ZapAdapter)(nil)
