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

// ChargeRepository implements port.ChargeRepository
type ChargeRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewChargeRepository creates a new charge repository
func NewChargeRepository(db *sql.DB, logger *zap.Logger) port.ChargeRepository {
	return &ChargeRepository{
		db:     db,
		logger: logger,
	}
}

// GetByTaskIDs returns the undeleted charges of the given tasks ordered by task and ID
func (r *ChargeRepository) GetByTaskIDs(ctx context.Context, taskIDs []int64) ([]*entity.Charge, error) {
	if len(taskIDs) == 0 {
		return []*entity.Charge{}, nil
	}

	query := `
		SELECT id, task_id, title, amount, charge_type, status, bearer, remark, deleted_at, created_at
		FROM charges
		WHERE task_id IN (` + placeholders(len(taskIDs)) + `) AND deleted_at IS NULL
		ORDER BY task_id, id
	`

	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, query, int64Args(taskIDs)...)
	if err != nil {
		r.logger.Error("Failed to get charges", zap.Int("task_count", len(taskIDs)), zap.Error(err))
		return nil, fmt.Errorf("failed to get charges: %w", err)
	}
	defer rows.Close()

	charges := []*entity.Charge{}
	for rows.Next() {
		charge := &entity.Charge{}
		var remark sql.NullString
		var deletedAt sql.NullTime

		if err := rows.Scan(
			&charge.ID,
			&charge.TaskID,
			&charge.Title,
			&charge.Amount,
			&charge.ChargeType,
			&charge.Status,
			&charge.Bearer,
			&remark,
			&deletedAt,
			&charge.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan charge: %w", err)
		}

		charge.Remark = remark.String
		charge.DeletedAt = timePtr(deletedAt)
		charges = append(charges, charge)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate charges: %w", err)
	}

	return charges, nil
}

// CountActiveByTaskIDs returns the undeleted charge count per task. Tasks
// without charges are absent from the map.
func (r *ChargeRepository) CountActiveByTaskIDs(ctx context.Context, taskIDs []int64) (map[int64]int, error) {
	counts := make(map[int64]int, len(taskIDs))
	if len(taskIDs) == 0 {
		return counts, nil
	}

	query := `
		SELECT task_id, COUNT(*)
		FROM charges
		WHERE task_id IN (` + placeholders(len(taskIDs)) + `) AND deleted_at IS NULL
		GROUP BY task_id
	`

	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, query, int64Args(taskIDs)...)
	if err != nil {
		r.logger.Error("Failed to count charges", zap.Int("task_count", len(taskIDs)), zap.Error(err))
		return nil, fmt.Errorf("failed to count charges: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var taskID int64
		var count int
		if err := rows.Scan(&taskID, &count); err != nil {
			return nil, fmt.Errorf("failed to scan charge count: %w", err)
		}
		counts[taskID] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate charge counts: %w", err)
	}

	return counts, nil
}
