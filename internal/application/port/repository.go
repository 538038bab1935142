package port

import (
	"context"
	"errors"
	"time"

	"github.com/garyjia/billing-engine/internal/domain/entity"
)

// ErrDuplicateKey is returned by repositories when a unique constraint rejects a write
var ErrDuplicateKey = errors.New("duplicate key")

// Invoice date fields accepted by InvoiceFilter.DateField
const (
	DateFieldInvoiceDate = "invoice_date"
	DateFieldIssuedAt    = "issued_at"
	DateFieldPaidAt      = "paid_at"
	DateFieldCreatedAt   = "created_at"
)

// InvoiceFilter narrows invoice listings. Page is 1-based.
type InvoiceFilter struct {
	EntityID         *int64
	CompanyProfileID *int64
	Status           *entity.InvoiceStatus
	DateField        string
	DateFrom         *time.Time
	DateTo           *time.Time // inclusive; midnight UTC covers that whole day
	Search           string     // exact, case-insensitive match on internal or external number
	Page             int
	PageSize         int
}

// InvoiceRepository defines persistence operations for Invoice.
// Lookups return nil, nil when the row does not exist.
type InvoiceRepository interface {
	// Create inserts a new invoice. Returns ErrDuplicateKey when the internal number is taken.
	Create(ctx context.Context, invoice *entity.Invoice) error

	GetByID(ctx context.Context, id int64) (*entity.Invoice, error)

	GetByInternalNumber(ctx context.Context, internalNumber string) (*entity.Invoice, error)

	// List returns one page of invoices and the total number of matches
	List(ctx context.Context, filter InvoiceFilter) ([]*entity.Invoice, int, error)

	// UpdateInfo persists the editable metadata fields
	UpdateInfo(ctx context.Context, invoice *entity.Invoice) error

	// UpdateStatus persists status, issued_at and paid_at
	UpdateStatus(ctx context.Context, invoice *entity.Invoice) error
}

// TaskRepository owns the task → invoice link
type TaskRepository interface {
	GetByIDs(ctx context.Context, ids []int64) ([]*entity.Task, error)

	GetByInvoiceNumber(ctx context.Context, internalNumber string) ([]*entity.Task, error)

	CountByInvoiceNumber(ctx context.Context, internalNumber string) (int, error)

	// AttachToInvoice links the given tasks in one conditional update that
	// only touches rows whose link is currently NULL. Returns rows affected.
	AttachToInvoice(ctx context.Context, ids []int64, internalNumber string, invoicedAt time.Time) (int64, error)

	// UnlinkFromInvoice clears the link on the given tasks that still point
	// at internalNumber. Returns the ids actually unlinked.
	UnlinkFromInvoice(ctx context.Context, ids []int64, internalNumber string) ([]int64, error)

	// UnlinkAll clears the link on every task pointing at internalNumber
	UnlinkAll(ctx context.Context, internalNumber string) (int64, error)
}

// ChargeRepository reads the charge ledger
type ChargeRepository interface {
	// GetByTaskIDs returns undeleted charges of the given tasks
	GetByTaskIDs(ctx context.Context, taskIDs []int64) ([]*entity.Charge, error)

	// CountActiveByTaskIDs returns the number of undeleted charges per task
	CountActiveByTaskIDs(ctx context.Context, taskIDs []int64) (map[int64]int, error)
}

// CompanyProfileRepository reads company profiles
type CompanyProfileRepository interface {
	GetByID(ctx context.Context, id int64) (*entity.CompanyProfile, error)
}

// EntityRepository reads billed parties
type EntityRepository interface {
	GetByID(ctx context.Context, id int64) (*entity.Entity, error)
}

// StatusHistoryRepository records invoice status changes
type StatusHistoryRepository interface {
	Create(ctx context.Context, history *entity.InvoiceStatusHistory) error
	GetByInvoiceID(ctx context.Context, invoiceID int64) ([]*entity.InvoiceStatusHistory, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
