package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/billing-engine/internal/application/port"
	"github.com/garyjia/billing-engine/internal/domain/entity"
	"github.com/garyjia/billing-engine/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

const invoiceColumns = `id, internal_number, external_number, status, invoice_date, issued_at, paid_at,
	entity_id, company_profile_id, notes, created_by, created_at, updated_at`

// filterable date columns, keyed by port.DateField*
var invoiceDateColumns = map[string]string{
	port.DateFieldInvoiceDate: "invoice_date",
	port.DateFieldIssuedAt:    "issued_at",
	port.DateFieldPaidAt:      "paid_at",
	port.DateFieldCreatedAt:   "created_at",
}

// InvoiceRepository implements port.InvoiceRepository
type InvoiceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewInvoiceRepository creates a new invoice repository
func NewInvoiceRepository(db *sql.DB, logger *zap.Logger) port.InvoiceRepository {
	return &InvoiceRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new invoice and sets its ID
func (r *InvoiceRepository) Create(ctx context.Context, invoice *entity.Invoice) error {
	query := `
		INSERT INTO invoices (
			internal_number, external_number, status, invoice_date, issued_at, paid_at,
			entity_id, company_profile_id, notes, created_by, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		invoice.InternalNumber,
		nullString(invoice.ExternalNumber),
		string(invoice.Status),
		nullTime(invoice.InvoiceDate),
		nullTime(invoice.IssuedAt),
		nullTime(invoice.PaidAt),
		invoice.EntityID,
		invoice.CompanyProfileID,
		nullString(invoice.Notes),
		invoice.CreatedBy,
		invoice.CreatedAt.UTC(),
		invoice.UpdatedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("invoice %s: %w", invoice.InternalNumber, port.ErrDuplicateKey)
		}
		r.logger.Error("Failed to create invoice",
			zap.String("internal_number", invoice.InternalNumber),
			zap.Error(err))
		return fmt.Errorf("failed to create invoice: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get invoice ID: %w", err)
	}
	invoice.ID = id
	return nil
}

// GetByID retrieves an invoice by ID
func (r *InvoiceRepository) GetByID(ctx context.Context, id int64) (*entity.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = ?`

	invoice, err := scanInvoice(sqlite.Conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get invoice", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	return invoice, nil
}

// GetByInternalNumber retrieves an invoice by its internal number
func (r *InvoiceRepository) GetByInternalNumber(ctx context.Context, internalNumber string) (*entity.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE internal_number = ?`

	invoice, err := scanInvoice(sqlite.Conn(ctx, r.db).QueryRowContext(ctx, query, internalNumber))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get invoice by internal number",
			zap.String("internal_number", internalNumber),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	return invoice, nil
}

// List returns one page of invoices matching the filter plus the total match count
func (r *InvoiceRepository) List(ctx context.Context, filter port.InvoiceFilter) ([]*entity.Invoice, int, error) {
	var conditions []string
	var args []interface{}

	if filter.EntityID != nil {
		conditions = append(conditions, "entity_id = ?")
		args = append(args, *filter.EntityID)
	}
	if filter.CompanyProfileID != nil {
		conditions = append(conditions, "company_profile_id = ?")
		args = append(args, *filter.CompanyProfileID)
	}
	if filter.Status != nil {
		conditions = append(conditions, "status = ?")
		args = append(args, string(*filter.Status))
	}
	if filter.DateFrom != nil || filter.DateTo != nil {
		column, ok := invoiceDateColumns[filter.DateField]
		if !ok {
			column = invoiceDateColumns[port.DateFieldInvoiceDate]
		}
		if filter.DateFrom != nil {
			conditions = append(conditions, column+" >= ?")
			args = append(args, filter.DateFrom.UTC())
		}
		if filter.DateTo != nil {
			to := filter.DateTo.UTC()
			if isWholeDay(to) {
				conditions = append(conditions, column+" < ?")
				args = append(args, to.AddDate(0, 0, 1))
			} else {
				conditions = append(conditions, column+" <= ?")
				args = append(args, to)
			}
		}
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		conditions = append(conditions, "(LOWER(internal_number) = LOWER(?) OR LOWER(external_number) = LOWER(?))")
		args = append(args, search, search)
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	conn := sqlite.Conn(ctx, r.db)

	var total int
	if err := conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM invoices"+where, args...).Scan(&total); err != nil {
		r.logger.Error("Failed to count invoices", zap.Error(err))
		return nil, 0, fmt.Errorf("failed to count invoices: %w", err)
	}

	page, pageSize := filter.Page, filter.PageSize
	if page < 1 {
		page = 1
	}
	query := `SELECT ` + invoiceColumns + ` FROM invoices` + where + ` ORDER BY created_at DESC, id DESC`
	pageArgs := args
	if pageSize > 0 {
		query += ` LIMIT ? OFFSET ?`
		pageArgs = append(append([]interface{}{}, args...), pageSize, (page-1)*pageSize)
	}

	rows, err := conn.QueryContext(ctx, query, pageArgs...)
	if err != nil {
		r.logger.Error("Failed to list invoices", zap.Error(err))
		return nil, 0, fmt.Errorf("failed to list invoices: %w", err)
	}
	defer rows.Close()

	var invoices []*entity.Invoice
	for rows.Next() {
		invoice, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, invoice)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate invoices: %w", err)
	}

	return invoices, total, nil
}

// UpdateInfo persists the metadata fields editable on a draft
func (r *InvoiceRepository) UpdateInfo(ctx context.Context, invoice *entity.Invoice) error {
	query := `
		UPDATE invoices
		SET company_profile_id = ?, invoice_date = ?, external_number = ?, notes = ?, updated_at = ?
		WHERE id = ?
	`

	_, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		invoice.CompanyProfileID,
		nullTime(invoice.InvoiceDate),
		nullString(invoice.ExternalNumber),
		nullString(invoice.Notes),
		invoice.UpdatedAt.UTC(),
		invoice.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update invoice info", zap.Int64("id", invoice.ID), zap.Error(err))
		return fmt.Errorf("failed to update invoice info: %w", err)
	}
	return nil
}

// UpdateStatus persists status and the lifecycle timestamps
func (r *InvoiceRepository) UpdateStatus(ctx context.Context, invoice *entity.Invoice) error {
	query := `
		UPDATE invoices
		SET status = ?, issued_at = ?, paid_at = ?, updated_at = ?
		WHERE id = ?
	`

	_, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		string(invoice.Status),
		nullTime(invoice.IssuedAt),
		nullTime(invoice.PaidAt),
		invoice.UpdatedAt.UTC(),
		invoice.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update invoice status",
			zap.Int64("id", invoice.ID),
			zap.String("status", string(invoice.Status)),
			zap.Error(err))
		return fmt.Errorf("failed to update invoice status: %w", err)
	}
	return nil
}

func scanInvoice(row rowScanner) (*entity.Invoice, error) {
	invoice := &entity.Invoice{}
	var status string
	var externalNumber, notes sql.NullString
	var invoiceDate, issuedAt, paidAt sql.NullTime

	err := row.Scan(
		&invoice.ID,
		&invoice.InternalNumber,
		&externalNumber,
		&status,
		&invoiceDate,
		&issuedAt,
		&paidAt,
		&invoice.EntityID,
		&invoice.CompanyProfileID,
		&notes,
		&invoice.CreatedBy,
		&invoice.CreatedAt,
		&invoice.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	invoice.Status = entity.InvoiceStatus(status)
	invoice.ExternalNumber = stringPtr(externalNumber)
	invoice.Notes = stringPtr(notes)
	invoice.InvoiceDate = timePtr(invoiceDate)
	invoice.IssuedAt = timePtr(issuedAt)
	invoice.PaidAt = timePtr(paidAt)
	invoice.CreatedAt = invoice.CreatedAt.UTC()
	invoice.UpdatedAt = invoice.UpdatedAt.UTC()
	return invoice, nil
}

// isWholeDay reports whether t is a bare calendar date (midnight UTC)
func isWholeDay(t time.Time) bool {
	return t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0
}
