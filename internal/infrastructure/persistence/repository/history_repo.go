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

// StatusHistoryRepository implements port.StatusHistoryRepository
type StatusHistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewStatusHistoryRepository creates a new status history repository
func NewStatusHistoryRepository(db *sql.DB, logger *zap.Logger) port.StatusHistoryRepository {
	return &StatusHistoryRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new history record
func (r *StatusHistoryRepository) Create(ctx context.Context, history *entity.InvoiceStatusHistory) error {
	query := `
		INSERT INTO invoice_status_history (
			invoice_id, previous_status, new_status, action, actor, created_at
		) VALUES (?, ?, ?, ?, ?, ?)
	`

	var actor sql.NullString
	if history.Actor != "" {
		actor = sql.NullString{String: history.Actor, Valid: true}
	}

	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		history.InvoiceID,
		string(history.PreviousStatus),
		string(history.NewStatus),
		history.Action,
		actor,
		history.CreatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create status history record",
			zap.Int64("invoice_id", history.InvoiceID),
			zap.Error(err))
		return fmt.Errorf("failed to create history: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	history.ID = id
	return nil
}

// GetByInvoiceID retrieves all history records for an invoice, oldest first
func (r *StatusHistoryRepository) GetByInvoiceID(ctx context.Context, invoiceID int64) ([]*entity.InvoiceStatusHistory, error) {
	query := `
		SELECT id, invoice_id, previous_status, new_status, action, actor, created_at
		FROM invoice_status_history
		WHERE invoice_id = ?
		ORDER BY created_at ASC, id ASC
	`

	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, query, invoiceID)
	if err != nil {
		r.logger.Error("Failed to get history by invoice ID", zap.Int64("invoice_id", invoiceID), zap.Error(err))
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	defer rows.Close()

	records := []*entity.InvoiceStatusHistory{}
	for rows.Next() {
		var record entity.InvoiceStatusHistory
		var previous, next string
		var actor sql.NullString
		err := rows.Scan(
			&record.ID,
			&record.InvoiceID,
			&previous,
			&next,
			&record.Action,
			&actor,
			&record.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history record: %w", err)
		}
		record.PreviousStatus = entity.InvoiceStatus(previous)
		record.NewStatus = entity.InvoiceStatus(next)
		record.Actor = actor.String
		records = append(records, &record)
	}

	return records, rows.Err()
}

// Verify interface compliance
var (
	_ port.InvoiceRepository        = (*InvoiceRepository)(nil)
	_ port.TaskRepository           = (*TaskRepository)(nil)
	_ port.ChargeRepository         = (*ChargeRepository)(nil)
	_ port.CompanyProfileRepository = (*CompanyProfileRepository)(nil)
	_ port.EntityRepository         = (*EntityRepository)(nil)
	_ port.StatusHistoryRepository  = (*StatusHistoryRepository)(nil)
)
