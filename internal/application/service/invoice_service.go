package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/billing-engine/internal/application/port"
	"github.com/garyjia/billing-engine/internal/domain/apperror"
	"github.com/garyjia/billing-engine/internal/domain/entity"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// InvoiceService manages the invoice lifecycle and the task links behind it
type InvoiceService interface {
	CreateOrAppendInvoice(ctx context.Context, input CreateInvoiceInput) (*entity.InvoiceDetails, error)
	GetInvoices(ctx context.Context, query InvoiceQuery) (*InvoiceList, error)
	GetInvoiceDetails(ctx context.Context, internalNumber string) (*entity.InvoiceDetails, error)
	UpdateInvoiceInfo(ctx context.Context, id int64, update entity.InvoiceInfoUpdate) (*entity.Invoice, error)
	UpdateInvoiceStatus(ctx context.Context, id int64, status entity.InvoiceStatus, actor string) (*entity.Invoice, error)
	UnlinkTasksFromInvoice(ctx context.Context, id int64, taskIDs []int64) (*UnlinkResult, error)
	CancelInvoice(ctx context.Context, id int64, actor string) (*CancelResult, error)
	BulkInvoiceAction(ctx context.Context, ids []int64, action BulkAction, actor string) (*BulkResult, error)
	GetStatusHistory(ctx context.Context, id int64) ([]*entity.InvoiceStatusHistory, error)
}

// InvoiceData describes a new invoice
type InvoiceData struct {
	CompanyProfileID int64      `json:"company_profile_id"`
	InvoiceDate      *time.Time `json:"invoice_date,omitempty"`
	ExternalNumber   *string    `json:"external_number,omitempty"`
	Notes            *string    `json:"notes,omitempty"`
}

// CreateInvoiceInput attaches TaskIDs to the draft named by
// InvoiceInternalNumber, or to a new draft built from InvoiceData.
type CreateInvoiceInput struct {
	EntityID              int64        `json:"entity_id"`
	TaskIDs               []int64      `json:"task_ids"`
	InvoiceInternalNumber string       `json:"invoice_internal_number,omitempty"`
	InvoiceData           *InvoiceData `json:"invoice_data,omitempty"`
	CurrentUser           string       `json:"-"`
}

// InvoiceQuery filters and pages GetInvoices
type InvoiceQuery = port.InvoiceFilter

// Pagination describes one page of a listing
type Pagination struct {
	Page       int  `json:"page"`
	PageSize   int  `json:"page_size"`
	TotalItems int  `json:"total_items"`
	TotalPages int  `json:"total_pages"`
	HasMore    bool `json:"has_more"`
}

// InvoiceList is one page of invoices
type InvoiceList struct {
	Items      []*entity.Invoice `json:"items"`
	Pagination Pagination        `json:"pagination"`
}

// UnlinkResult lists the tasks actually detached
type UnlinkResult struct {
	InvoiceID       int64   `json:"invoice_id"`
	UnlinkedTaskIDs []int64 `json:"unlinked_task_ids"`
}

// CancelResult is returned by CancelInvoice. Groups is always empty.
type CancelResult struct {
	InvoiceID     int64                `json:"invoice_id"`
	Status        entity.InvoiceStatus `json:"status"`
	Groups        []entity.TaskGroup   `json:"groups"`
	UnlinkedTasks int64                `json:"unlinked_tasks"`
}

// InvoiceRepositories bundles the stores the invoice service reads and writes
type InvoiceRepositories struct {
	Invoices        port.InvoiceRepository
	Tasks           port.TaskRepository
	Charges         port.ChargeRepository
	CompanyProfiles port.CompanyProfileRepository
	Entities        port.EntityRepository
	History         port.StatusHistoryRepository
}

// InvoiceOptions tunes paging and bulk limits. Zero values take defaults.
type InvoiceOptions struct {
	DefaultPageSize int
	MaxPageSize     int
	MaxBulkSize     int
	Now             func() time.Time
}

const (
	defaultPageSize   = 20
	defaultMaxPage    = 100
	maxNumberAttempts = 5
)

type invoiceServiceImpl struct {
	repos     InvoiceRepositories
	txManager port.TransactionManager
	numbers   port.NumberGenerator
	opts      InvoiceOptions
	logger    Logger
}

// NewInvoiceService creates a new InvoiceService
func NewInvoiceService(
	repos InvoiceRepositories,
	txManager port.TransactionManager,
	numbers port.NumberGenerator,
	opts InvoiceOptions,
	logger Logger,
) InvoiceService {
	if opts.DefaultPageSize <= 0 {
		opts.DefaultPageSize = defaultPageSize
	}
	if opts.MaxPageSize <= 0 {
		opts.MaxPageSize = defaultMaxPage
	}
	if opts.DefaultPageSize > opts.MaxPageSize {
		opts.DefaultPageSize = opts.MaxPageSize
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	return &invoiceServiceImpl{
		repos:     repos,
		txManager: txManager,
		numbers:   numbers,
		opts:      opts,
		logger:    logger,
	}
}

func (s *invoiceServiceImpl) now() time.Time {
	return s.opts.Now()
}

// CreateOrAppendInvoice links tasks to an existing draft or to a new one.
// The whole operation is one transaction; a lost attach race rolls it back.
func (s *invoiceServiceImpl) CreateOrAppendInvoice(ctx context.Context, input CreateInvoiceInput) (*entity.InvoiceDetails, error) {
	taskIDs := uniqueIDs(input.TaskIDs)
	if len(taskIDs) == 0 {
		return nil, apperror.Validation("task_ids must not be empty")
	}
	if input.EntityID <= 0 {
		return nil, apperror.Validation("entity_id is required")
	}
	number := strings.TrimSpace(input.InvoiceInternalNumber)
	if number == "" && input.InvoiceData == nil {
		return nil, apperror.Validation("either invoice_internal_number or invoice_data is required")
	}

	var invoice *entity.Invoice
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		if number != "" {
			invoice, err = s.loadAppendTarget(txCtx, number, input.EntityID)
		} else {
			invoice, err = s.createDraft(txCtx, input)
		}
		if err != nil {
			return err
		}

		if err := s.validateTasks(txCtx, taskIDs, input.EntityID); err != nil {
			return err
		}

		affected, err := s.repos.Tasks.AttachToInvoice(txCtx, taskIDs, invoice.InternalNumber, s.now())
		if err != nil {
			return fmt.Errorf("attach tasks: %w", err)
		}
		if affected != int64(len(taskIDs)) {
			s.logger.Info("Task attach lost a race",
				"internal_number", invoice.InternalNumber,
				"requested", len(taskIDs),
				"attached", affected)
			return apperror.Validation("tasks were invoiced concurrently; retry")
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to create or append invoice", "error", err, "entity_id", input.EntityID, "internal_number", number)
		return nil, err
	}

	s.logger.Info("Tasks invoiced",
		"invoice_id", invoice.ID,
		"internal_number", invoice.InternalNumber,
		"task_count", len(taskIDs))
	return s.hydrate(ctx, invoice)
}

func (s *invoiceServiceImpl) loadAppendTarget(ctx context.Context, number string, entityID int64) (*entity.Invoice, error) {
	invoice, err := s.repos.Invoices.GetByInternalNumber(ctx, number)
	if err != nil {
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	if invoice == nil {
		return nil, apperror.NotFound("invoice %s not found", number)
	}
	if !invoice.IsDraft() {
		return nil, apperror.Forbidden("invoice %s is %s; tasks can only be added to a DRAFT invoice", number, invoice.Status)
	}
	if invoice.EntityID != entityID {
		return nil, apperror.Validationf("invoice %s belongs to entity %d, not %d", number, invoice.EntityID, entityID)
	}
	return invoice, nil
}

func (s *invoiceServiceImpl) createDraft(ctx context.Context, input CreateInvoiceInput) (*entity.Invoice, error) {
	data := input.InvoiceData
	if err := s.requireActiveProfile(ctx, data.CompanyProfileID); err != nil {
		return nil, err
	}

	billed, err := s.repos.Entities.GetByID(ctx, input.EntityID)
	if err != nil {
		return nil, fmt.Errorf("get entity: %w", err)
	}
	if billed == nil {
		return nil, apperror.Validationf("entity %d does not exist", input.EntityID)
	}

	now := s.now()
	invoiceDate := now
	if data.InvoiceDate != nil {
		invoiceDate = data.InvoiceDate.UTC()
	}

	invoice := &entity.Invoice{
		Status:           entity.InvoiceStatusDraft,
		ExternalNumber:   trimmedOrNil(data.ExternalNumber),
		InvoiceDate:      &invoiceDate,
		EntityID:         input.EntityID,
		CompanyProfileID: data.CompanyProfileID,
		Notes:            data.Notes,
		CreatedBy:        input.CurrentUser,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	for attempt := 1; ; attempt++ {
		invoice.InternalNumber = s.numbers.Next()
		err := s.repos.Invoices.Create(ctx, invoice)
		if err == nil {
			return invoice, nil
		}
		if !errors.Is(err, port.ErrDuplicateKey) || attempt == maxNumberAttempts {
			return nil, fmt.Errorf("create invoice: %w", err)
		}
		s.logger.Info("Internal number collision, regenerating", "internal_number", invoice.InternalNumber, "attempt", attempt)
	}
}

func (s *invoiceServiceImpl) requireActiveProfile(ctx context.Context, id int64) error {
	if id <= 0 {
		return apperror.Validation("company_profile_id is required")
	}
	profile, err := s.repos.CompanyProfiles.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get company profile: %w", err)
	}
	if profile == nil || !profile.IsActive {
		return apperror.Validationf("company profile %d is not an active profile", id)
	}
	return nil
}

// validateTasks collects every reason the requested tasks cannot be
// invoiced and reports them together.
func (s *invoiceServiceImpl) validateTasks(ctx context.Context, taskIDs []int64, entityID int64) error {
	tasks, err := s.repos.Tasks.GetByIDs(ctx, taskIDs)
	if err != nil {
		return fmt.Errorf("get tasks: %w", err)
	}

	found := make(map[int64]bool, len(tasks))
	for _, t := range tasks {
		found[t.ID] = true
	}
	var missing []string
	for _, id := range taskIDs {
		if !found[id] {
			missing = append(missing, fmt.Sprintf("task %d", id))
		}
	}
	if len(missing) > 0 {
		return apperror.Validation("tasks not found", missing...)
	}

	counts, err := s.repos.Charges.CountActiveByTaskIDs(ctx, taskIDs)
	if err != nil {
		return fmt.Errorf("count charges: %w", err)
	}

	var violations []string
	for _, t := range tasks {
		if t.EntityID != entityID {
			violations = append(violations, fmt.Sprintf("task %d belongs to entity %d", t.ID, t.EntityID))
		}
		if t.IsLinked() {
			violations = append(violations, fmt.Sprintf("task %d is already linked to invoice %s", t.ID, *t.InvoiceInternalNumber))
		}
		if counts[t.ID] == 0 {
			violations = append(violations, fmt.Sprintf("task %d has no charges", t.ID))
		}
		if !t.IsAdHoc() && t.Status != entity.TaskStatusCompleted {
			violations = append(violations, fmt.Sprintf("task %d is %s; only COMPLETED tasks can be invoiced", t.ID, t.Status))
		}
	}
	if len(violations) > 0 {
		return apperror.Validation("tasks cannot be invoiced", violations...)
	}
	return nil
}

// GetInvoices returns one page of invoices
func (s *invoiceServiceImpl) GetInvoices(ctx context.Context, query InvoiceQuery) (*InvoiceList, error) {
	if query.DateField == "" {
		query.DateField = port.DateFieldInvoiceDate
	}
	switch query.DateField {
	case port.DateFieldInvoiceDate, port.DateFieldIssuedAt, port.DateFieldPaidAt, port.DateFieldCreatedAt:
	default:
		return nil, apperror.Validationf("unsupported date field %q", query.DateField)
	}
	if query.Status != nil && !query.Status.IsValid() {
		return nil, apperror.Validationf("unknown invoice status %q", *query.Status)
	}
	if query.DateFrom != nil && query.DateTo != nil && query.DateFrom.After(*query.DateTo) {
		return nil, apperror.Validation("date_from must not be after date_to")
	}

	if query.Page < 1 {
		query.Page = 1
	}
	if query.PageSize <= 0 {
		query.PageSize = s.opts.DefaultPageSize
	}
	if query.PageSize > s.opts.MaxPageSize {
		query.PageSize = s.opts.MaxPageSize
	}
	query.Search = strings.TrimSpace(query.Search)

	invoices, total, err := s.repos.Invoices.List(ctx, query)
	if err != nil {
		s.logger.Error("Failed to list invoices", "error", err)
		return nil, err
	}
	if invoices == nil {
		invoices = []*entity.Invoice{}
	}

	totalPages := (total + query.PageSize - 1) / query.PageSize
	return &InvoiceList{
		Items: invoices,
		Pagination: Pagination{
			Page:       query.Page,
			PageSize:   query.PageSize,
			TotalItems: total,
			TotalPages: totalPages,
			HasMore:    query.Page < totalPages,
		},
	}, nil
}

// GetInvoiceDetails returns the hydrated invoice with its task groups
func (s *invoiceServiceImpl) GetInvoiceDetails(ctx context.Context, internalNumber string) (*entity.InvoiceDetails, error) {
	invoice, err := s.repos.Invoices.GetByInternalNumber(ctx, strings.TrimSpace(internalNumber))
	if err != nil {
		s.logger.Error("Failed to get invoice", "error", err, "internal_number", internalNumber)
		return nil, err
	}
	if invoice == nil {
		return nil, apperror.NotFound("invoice %s not found", internalNumber)
	}
	return s.hydrate(ctx, invoice)
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
