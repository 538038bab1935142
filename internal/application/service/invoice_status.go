package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/garyjia/billing-engine/internal/domain/apperror"
	"github.com/garyjia/billing-engine/internal/domain/entity"
	"github.com/garyjia/billing-engine/internal/domain/workflow"
)

// Issue preconditions. Bulk maps these onto typed reasons.
var (
	errMissingExternalNumber = apperror.Validation("update invoice number before issuing")
	errNoTasksLinked         = apperror.Validation("link at least one task before issuing")
)

// UpdateInvoiceInfo edits the metadata of a draft invoice. Status is never
// touched here.
func (s *invoiceServiceImpl) UpdateInvoiceInfo(ctx context.Context, id int64, update entity.InvoiceInfoUpdate) (*entity.Invoice, error) {
	if update.IsEmpty() {
		return nil, apperror.Validation("no fields to update")
	}

	var invoice *entity.Invoice
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		invoice, err = s.requireInvoice(txCtx, id)
		if err != nil {
			return err
		}
		if !invoice.IsDraft() {
			return apperror.Forbidden("invoice %s is %s; only DRAFT invoices can be edited", invoice.InternalNumber, invoice.Status)
		}
		if update.CompanyProfileID != nil {
			if err := s.requireActiveProfile(txCtx, *update.CompanyProfileID); err != nil {
				return err
			}
		}

		update.Apply(invoice, s.now())
		invoice.ExternalNumber = trimmedOrNil(invoice.ExternalNumber)

		if err := s.repos.Invoices.UpdateInfo(txCtx, invoice); err != nil {
			return fmt.Errorf("update invoice info: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to update invoice info", "error", err, "id", id)
		return nil, err
	}

	s.logger.Info("Invoice info updated", "id", id, "internal_number", invoice.InternalNumber)
	return invoice, nil
}

// UpdateInvoiceStatus moves one invoice through the lifecycle
func (s *invoiceServiceImpl) UpdateInvoiceStatus(ctx context.Context, id int64, status entity.InvoiceStatus, actor string) (*entity.Invoice, error) {
	if !status.IsValid() {
		return nil, apperror.Validationf("unknown invoice status %q", status)
	}

	var invoice *entity.Invoice
	var previous entity.InvoiceStatus
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		invoice, err = s.requireInvoice(txCtx, id)
		if err != nil {
			return err
		}
		previous = invoice.Status

		if err := s.checkTransition(txCtx, invoice, status); err != nil {
			return err
		}
		// a cancelled invoice holds no tasks
		if status == entity.InvoiceStatusCancelled {
			if _, err := s.repos.Tasks.UnlinkAll(txCtx, invoice.InternalNumber); err != nil {
				return fmt.Errorf("unlink tasks: %w", err)
			}
		}
		return s.writeStatus(txCtx, invoice, status, entity.HistoryActionStatusUpdate, actor)
	})
	if err != nil {
		s.logger.Error("Failed to update invoice status", "error", err, "id", id, "status", status)
		return nil, err
	}

	s.logger.Info("Invoice status updated", "id", id, "from", previous, "to", status, "actor", actor)
	return invoice, nil
}

// checkTransition runs the lifecycle table, including its ISSUED guard
func (s *invoiceServiceImpl) checkTransition(ctx context.Context, invoice *entity.Invoice, to entity.InvoiceStatus) error {
	facts := workflow.IssueFacts{HasExternalNumber: invoice.HasExternalNumber()}
	if to == entity.InvoiceStatusIssued && facts.HasExternalNumber {
		count, err := s.repos.Tasks.CountByInvoiceNumber(ctx, invoice.InternalNumber)
		if err != nil {
			return fmt.Errorf("count linked tasks: %w", err)
		}
		facts.LinkedTasks = count
	}

	err := workflow.ValidateTransition(workflow.WithIssueFacts(ctx, facts), workflow.State(invoice.Status), workflow.State(to))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, workflow.ErrMissingExternalNumber):
		return errMissingExternalNumber
	case errors.Is(err, workflow.ErrNoTasksLinked):
		return errNoTasksLinked
	default:
		return apperror.Validation(err.Error())
	}
}

// writeStatus applies the status side effects and records the history row.
// Legality must already be checked.
func (s *invoiceServiceImpl) writeStatus(ctx context.Context, invoice *entity.Invoice, to entity.InvoiceStatus, action, actor string) error {
	previous := invoice.Status
	now := s.now()
	invoice.ApplyStatus(to, now)

	if err := s.repos.Invoices.UpdateStatus(ctx, invoice); err != nil {
		return fmt.Errorf("update invoice status: %w", err)
	}

	history := &entity.InvoiceStatusHistory{
		InvoiceID:      invoice.ID,
		PreviousStatus: previous,
		NewStatus:      to,
		Action:         action,
		Actor:          actor,
		CreatedAt:      now,
	}
	if err := s.repos.History.Create(ctx, history); err != nil {
		return fmt.Errorf("create status history: %w", err)
	}
	return nil
}

// UnlinkTasksFromInvoice detaches tasks from a draft invoice. Tasks linked
// elsewhere, or not linked at all, are left untouched.
func (s *invoiceServiceImpl) UnlinkTasksFromInvoice(ctx context.Context, id int64, taskIDs []int64) (*UnlinkResult, error) {
	taskIDs = uniqueIDs(taskIDs)
	if len(taskIDs) == 0 {
		return nil, apperror.Validation("task_ids must not be empty")
	}

	result := &UnlinkResult{InvoiceID: id, UnlinkedTaskIDs: []int64{}}
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		invoice, err := s.requireInvoice(txCtx, id)
		if err != nil {
			return err
		}
		if !invoice.IsDraft() {
			return apperror.Forbidden("invoice %s is %s; tasks can only be removed from a DRAFT invoice", invoice.InternalNumber, invoice.Status)
		}

		unlinked, err := s.repos.Tasks.UnlinkFromInvoice(txCtx, taskIDs, invoice.InternalNumber)
		if err != nil {
			return fmt.Errorf("unlink tasks: %w", err)
		}
		if unlinked != nil {
			result.UnlinkedTaskIDs = unlinked
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to unlink tasks", "error", err, "id", id)
		return nil, err
	}

	s.logger.Info("Tasks unlinked", "id", id, "requested", len(taskIDs), "unlinked", len(result.UnlinkedTaskIDs))
	return result, nil
}

// CancelInvoice releases every linked task and marks the invoice CANCELLED.
// This is the one status change that does not go through the transition
// table: any status may be cancelled this way.
func (s *invoiceServiceImpl) CancelInvoice(ctx context.Context, id int64, actor string) (*CancelResult, error) {
	var unlinked int64
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		invoice, err := s.requireInvoice(txCtx, id)
		if err != nil {
			return err
		}

		unlinked, err = s.repos.Tasks.UnlinkAll(txCtx, invoice.InternalNumber)
		if err != nil {
			return fmt.Errorf("unlink tasks: %w", err)
		}
		return s.writeStatus(txCtx, invoice, entity.InvoiceStatusCancelled, entity.HistoryActionCancel, actor)
	})
	if err != nil {
		s.logger.Error("Failed to cancel invoice", "error", err, "id", id)
		return nil, err
	}

	s.logger.Info("Invoice cancelled", "id", id, "unlinked_tasks", unlinked, "actor", actor)
	return &CancelResult{
		InvoiceID:     id,
		Status:        entity.InvoiceStatusCancelled,
		Groups:        []entity.TaskGroup{},
		UnlinkedTasks: unlinked,
	}, nil
}

// GetStatusHistory returns the status audit trail of an invoice, oldest first
func (s *invoiceServiceImpl) GetStatusHistory(ctx context.Context, id int64) ([]*entity.InvoiceStatusHistory, error) {
	if _, err := s.requireInvoice(ctx, id); err != nil {
		return nil, err
	}
	records, err := s.repos.History.GetByInvoiceID(ctx, id)
	if err != nil {
		s.logger.Error("Failed to get status history", "error", err, "id", id)
		return nil, err
	}
	if records == nil {
		records = []*entity.InvoiceStatusHistory{}
	}
	return records, nil
}

func (s *invoiceServiceImpl) requireInvoice(ctx context.Context, id int64) (*entity.Invoice, error) {
	invoice, err := s.repos.Invoices.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	if invoice == nil {
		return nil, apperror.NotFound("invoice %d not found", id)
	}
	return invoice, nil
}
