package service

import (
	"context"
	"fmt"

	"github.com/garyjia/billing-engine/internal/domain/entity"
	"github.com/garyjia/billing-engine/internal/domain/workflow"
)

// hydrate attaches the entity and company profile summaries and projects
// the linked tasks into charge groups.
func (s *invoiceServiceImpl) hydrate(ctx context.Context, invoice *entity.Invoice) (*entity.InvoiceDetails, error) {
	billed, err := s.repos.Entities.GetByID(ctx, invoice.EntityID)
	if err != nil {
		return nil, fmt.Errorf("get entity: %w", err)
	}
	profile, err := s.repos.CompanyProfiles.GetByID(ctx, invoice.CompanyProfileID)
	if err != nil {
		return nil, fmt.Errorf("get company profile: %w", err)
	}

	tasks, err := s.repos.Tasks.GetByInvoiceNumber(ctx, invoice.InternalNumber)
	if err != nil {
		return nil, fmt.Errorf("get linked tasks: %w", err)
	}
	taskIDs := make([]int64, len(tasks))
	for i, t := range tasks {
		taskIDs[i] = t.ID
	}
	charges, err := s.repos.Charges.GetByTaskIDs(ctx, taskIDs)
	if err != nil {
		return nil, fmt.Errorf("get charges: %w", err)
	}

	groups := entity.BuildTaskGroups(tasks, charges)
	return &entity.InvoiceDetails{
		Invoice:          invoice,
		Entity:           billed,
		CompanyProfile:   profile,
		Groups:           groups,
		RecoverableTotal: entity.RecoverableTotal(groups),
		AllowedStatuses:  allowedStatuses(invoice.Status),
	}, nil
}

func allowedStatuses(from entity.InvoiceStatus) []entity.InvoiceStatus {
	targets := workflow.AllowedTargets(workflow.State(from))
	out := make([]entity.InvoiceStatus, len(targets))
	for i, t := range targets {
		out[i] = entity.InvoiceStatus(t)
	}
	return out
}
