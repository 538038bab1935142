package service

import (
	"context"
	"fmt"

	"github.com/garyjia/billing-engine/internal/domain/apperror"
	"github.com/garyjia/billing-engine/internal/domain/entity"
)

// BulkAction names a bulk status change
type BulkAction string

const (
	BulkActionMarkIssued BulkAction = "MARK_ISSUED"
	BulkActionMarkPaid   BulkAction = "MARK_PAID"
	BulkActionMarkDraft  BulkAction = "MARK_DRAFT"
)

// Target returns the status an action moves invoices to
func (a BulkAction) Target() (entity.InvoiceStatus, bool) {
	switch a {
	case BulkActionMarkIssued:
		return entity.InvoiceStatusIssued, true
	case BulkActionMarkPaid:
		return entity.InvoiceStatusPaid, true
	case BulkActionMarkDraft:
		return entity.InvoiceStatusDraft, true
	default:
		return "", false
	}
}

// Bulk outcome reasons
const (
	ReasonUnknownAction         = "UNKNOWN_ACTION"
	ReasonNotFound              = "NOT_FOUND"
	ReasonMissingExternalNumber = "MISSING_EXTERNAL_NUMBER"
	ReasonNoTasksLinked         = "NO_TASKS_LINKED"
	ReasonInternalError         = "INTERNAL_ERROR"
)

// alreadyReason is the ignored reason for an invoice already at status
func alreadyReason(status entity.InvoiceStatus) string {
	return "ALREADY_" + string(status)
}

// OutcomeKind tags a per-invoice bulk result
type OutcomeKind string

const (
	OutcomeSuccess  OutcomeKind = "SUCCESS"
	OutcomeIgnored  OutcomeKind = "IGNORED"
	OutcomeRejected OutcomeKind = "REJECTED"
)

// BulkOutcome is the result of processing one invoice
type BulkOutcome struct {
	InvoiceID int64
	Kind      OutcomeKind
	Reason    string
}

// BulkItem is an ignored or rejected invoice with its reason
type BulkItem struct {
	ID     int64  `json:"id"`
	Reason string `json:"reason"`
}

// BulkResult classifies every distinct input id into exactly one bucket
type BulkResult struct {
	Success  []int64    `json:"success"`
	Ignored  []BulkItem `json:"ignored"`
	Rejected []BulkItem `json:"rejected"`
}

func newBulkResult() *BulkResult {
	return &BulkResult{
		Success:  []int64{},
		Ignored:  []BulkItem{},
		Rejected: []BulkItem{},
	}
}

func (r *BulkResult) add(o BulkOutcome) {
	switch o.Kind {
	case OutcomeSuccess:
		r.Success = append(r.Success, o.InvoiceID)
	case OutcomeIgnored:
		r.Ignored = append(r.Ignored, BulkItem{ID: o.InvoiceID, Reason: o.Reason})
	default:
		r.Rejected = append(r.Rejected, BulkItem{ID: o.InvoiceID, Reason: o.Reason})
	}
}

// BulkInvoiceAction applies one action to many invoices. Each invoice runs in
// its own transaction and a failure on one never affects the others; the
// only error returned is for a request over the configured batch limit.
func (s *invoiceServiceImpl) BulkInvoiceAction(ctx context.Context, ids []int64, action BulkAction, actor string) (*BulkResult, error) {
	ids = uniqueIDs(ids)
	if s.opts.MaxBulkSize > 0 && len(ids) > s.opts.MaxBulkSize {
		return nil, apperror.Validationf("bulk request has %d invoices; the limit is %d", len(ids), s.opts.MaxBulkSize)
	}

	result := newBulkResult()
	for _, id := range ids {
		result.add(s.processBulkItem(ctx, id, action, actor))
	}

	s.logger.Info("Bulk invoice action completed",
		"action", action,
		"total", len(ids),
		"success", len(result.Success),
		"ignored", len(result.Ignored),
		"rejected", len(result.Rejected))
	return result, nil
}

func (s *invoiceServiceImpl) processBulkItem(ctx context.Context, id int64, action BulkAction, actor string) (outcome BulkOutcome) {
	outcome = BulkOutcome{InvoiceID: id}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Bulk item panicked", "id", id, "panic", fmt.Sprint(r))
			outcome = BulkOutcome{InvoiceID: id, Kind: OutcomeRejected, Reason: ReasonInternalError}
		}
	}()

	target, ok := action.Target()
	if !ok {
		outcome.Kind, outcome.Reason = OutcomeRejected, ReasonUnknownAction
		return outcome
	}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		invoice, err := s.repos.Invoices.GetByID(txCtx, id)
		if err != nil {
			return fmt.Errorf("get invoice: %w", err)
		}
		if invoice == nil {
			outcome.Kind, outcome.Reason = OutcomeRejected, ReasonNotFound
			return nil
		}
		if invoice.Status == target {
			outcome.Kind, outcome.Reason = OutcomeIgnored, alreadyReason(target)
			return nil
		}

		if err := s.checkTransition(txCtx, invoice, target); err != nil {
			reason, ok := bulkRejectReason(err)
			if !ok {
				return err
			}
			outcome.Kind, outcome.Reason = OutcomeRejected, reason
			return nil
		}

		if err := s.writeStatus(txCtx, invoice, target, entity.HistoryActionBulk, actor); err != nil {
			return err
		}
		outcome.Kind, outcome.Reason = OutcomeSuccess, ""
		return nil
	})
	if err != nil {
		s.logger.Error("Bulk item failed", "error", err, "id", id, "action", action)
		return BulkOutcome{InvoiceID: id, Kind: OutcomeRejected, Reason: ReasonInternalError}
	}
	return outcome
}

// bulkRejectReason maps an expected precondition failure onto its bulk reason
func bulkRejectReason(err error) (string, bool) {
	switch {
	case err == errMissingExternalNumber:
		return ReasonMissingExternalNumber, true
	case err == errNoTasksLinked:
		return ReasonNoTasksLinked, true
	case apperror.IsValidation(err):
		return err.Error(), true
	default:
		return "", false
	}
}
