package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garyjia/billing-engine/internal/application/port"
	"github.com/garyjia/billing-engine/internal/domain/entity"
	"github.com/garyjia/billing-engine/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// CompanyProfileRepository implements port.CompanyProfileRepository
type CompanyProfileRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewCompanyProfileRepository creates a new company profile repository
func NewCompanyProfileRepository(db *sql.DB, logger *zap.Logger) port.CompanyProfileRepository {
	return &CompanyProfileRepository{db: db, logger: logger}
}

// GetByID retrieves a company profile by ID
func (r *CompanyProfileRepository) GetByID(ctx context.Context, id int64) (*entity.CompanyProfile, error) {
	profile := &entity.CompanyProfile{}
	err := sqlite.Conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT id, name, is_active FROM company_profiles WHERE id = ?`, id,
	).Scan(&profile.ID, &profile.Name, &profile.IsActive)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get company profile", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get company profile: %w", err)
	}
	return profile, nil
}

// EntityRepository implements port.EntityRepository
type EntityRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewEntityRepository creates a new entity repository
func NewEntityRepository(db *sql.DB, logger *zap.Logger) port.EntityRepository {
	return &EntityRepository{db: db, logger: logger}
}

// GetByID retrieves an entity by ID
func (r *EntityRepository) GetByID(ctx context.Context, id int64) (*entity.Entity, error) {
	e := &entity.Entity{}
	var code sql.NullString
	err := sqlite.Conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT id, name, code FROM entities WHERE id = ?`, id,
	).Scan(&e.ID, &e.Name, &code)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get entity", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get entity: %w", err)
	}
	e.Code = code.String
	return e, nil
}
