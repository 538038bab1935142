package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/garyjia/billing-engine/internal/application/port"
	"github.com/garyjia/billing-engine/internal/domain/entity"
	"github.com/garyjia/billing-engine/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

const taskColumns = `id, entity_id, title, status, task_type, is_system,
	invoice_internal_number, invoiced_at, created_at, updated_at`

// TaskRepository implements port.TaskRepository
type TaskRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(db *sql.DB, logger *zap.Logger) port.TaskRepository {
	return &TaskRepository{
		db:     db,
		logger: logger,
	}
}

// GetByIDs retrieves the tasks with the given IDs, ordered by ID.
// Unknown IDs are silently absent from the result.
func (r *TaskRepository) GetByIDs(ctx context.Context, ids []int64) ([]*entity.Task, error) {
	if len(ids) == 0 {
		return []*entity.Task{}, nil
	}

	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id IN (` + placeholders(len(ids)) + `) ORDER BY id`

	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, query, int64Args(ids)...)
	if err != nil {
		r.logger.Error("Failed to get tasks", zap.Int("count", len(ids)), zap.Error(err))
		return nil, fmt.Errorf("failed to get tasks: %w", err)
	}
	defer rows.Close()

	return scanTasks(rows)
}

// GetByInvoiceNumber retrieves every task linked to the invoice
func (r *TaskRepository) GetByInvoiceNumber(ctx context.Context, internalNumber string) ([]*entity.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE invoice_internal_number = ? ORDER BY id`

	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, query, internalNumber)
	if err != nil {
		r.logger.Error("Failed to get tasks by invoice",
			zap.String("internal_number", internalNumber),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get tasks: %w", err)
	}
	defer rows.Close()

	return scanTasks(rows)
}

// CountByInvoiceNumber counts the tasks linked to the invoice
func (r *TaskRepository) CountByInvoiceNumber(ctx context.Context, internalNumber string) (int, error) {
	var count int
	err := sqlite.Conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tasks WHERE invoice_internal_number = ?`, internalNumber,
	).Scan(&count)
	if err != nil {
		r.logger.Error("Failed to count tasks by invoice",
			zap.String("internal_number", internalNumber),
			zap.Error(err))
		return 0, fmt.Errorf("failed to count tasks: %w", err)
	}
	return count, nil
}

// AttachToInvoice links the tasks in a single conditional update. Rows that
// are already linked are left alone, so the caller compares the returned
// count with len(ids) to detect a lost race.
func (r *TaskRepository) AttachToInvoice(ctx context.Context, ids []int64, internalNumber string, invoicedAt time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query := `
		UPDATE tasks
		SET invoice_internal_number = ?, invoiced_at = ?, updated_at = ?
		WHERE id IN (` + placeholders(len(ids)) + `) AND invoice_internal_number IS NULL
	`
	args := append([]interface{}{internalNumber, invoicedAt.UTC(), invoicedAt.UTC()}, int64Args(ids)...)

	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to attach tasks",
			zap.String("internal_number", internalNumber),
			zap.Int("count", len(ids)),
			zap.Error(err))
		return 0, fmt.Errorf("failed to attach tasks: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected, nil
}

// UnlinkFromInvoice clears the link on those of ids still pointing at internalNumber
func (r *TaskRepository) UnlinkFromInvoice(ctx context.Context, ids []int64, internalNumber string) ([]int64, error) {
	if len(ids) == 0 {
		return []int64{}, nil
	}

	query := `
		UPDATE tasks
		SET invoice_internal_number = NULL, invoiced_at = NULL, updated_at = ?
		WHERE id IN (` + placeholders(len(ids)) + `) AND invoice_internal_number = ?
		RETURNING id
	`
	args := append([]interface{}{time.Now().UTC()}, int64Args(ids)...)
	args = append(args, internalNumber)

	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to unlink tasks",
			zap.String("internal_number", internalNumber),
			zap.Error(err))
		return nil, fmt.Errorf("failed to unlink tasks: %w", err)
	}
	defer rows.Close()

	unlinked := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan unlinked task id: %w", err)
		}
		unlinked = append(unlinked, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate unlinked tasks: %w", err)
	}
	return unlinked, nil
}

// UnlinkAll clears the link on every task pointing at internalNumber
func (r *TaskRepository) UnlinkAll(ctx context.Context, internalNumber string) (int64, error) {
	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE tasks
		SET invoice_internal_number = NULL, invoiced_at = NULL, updated_at = ?
		WHERE invoice_internal_number = ?
	`, time.Now().UTC(), internalNumber)
	if err != nil {
		r.logger.Error("Failed to unlink all tasks",
			zap.String("internal_number", internalNumber),
			zap.Error(err))
		return 0, fmt.Errorf("failed to unlink tasks: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected, nil
}

func scanTask(row rowScanner) (*entity.Task, error) {
	task := &entity.Task{}
	var invoiceNumber sql.NullString
	var invoicedAt sql.NullTime

	err := row.Scan(
		&task.ID,
		&task.EntityID,
		&task.Title,
		&task.Status,
		&task.TaskType,
		&task.IsSystem,
		&invoiceNumber,
		&invoicedAt,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	task.InvoiceInternalNumber = stringPtr(invoiceNumber)
	task.InvoicedAt = timePtr(invoicedAt)
	task.CreatedAt = task.CreatedAt.UTC()
	task.UpdatedAt = task.UpdatedAt.UTC()
	return task, nil
}

func scanTasks(rows *sql.Rows) ([]*entity.Task, error) {
	tasks := []*entity.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", err)
	}
	return tasks, nil
}
