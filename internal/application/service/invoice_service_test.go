package service

import (
	"context"
	"testing"
	"time"

	"github.com/garyjia/billing-engine/internal/domain/apperror"
	"github.com/garyjia/billing-engine/internal/domain/entity"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvoiceService_CreateNewInvoice(t *testing.T) {
	h := newHarness()
	h.numbers.numbers = []string{"INV-202605-AAAA0001"}

	t1 := h.store.addBillableTask(1)
	t2 := h.store.addBillableTask(1)
	h.store.addCharge(t2, "40.25", entity.ChargeStatusPaid, entity.BearerClient)
	ext := " EXT-77 "

	details, err := h.service.CreateOrAppendInvoice(context.Background(), CreateInvoiceInput{
		EntityID:    1,
		TaskIDs:     []int64{t2, t1, t1},
		InvoiceData: &InvoiceData{CompanyProfileID: 1, ExternalNumber: &ext},
		CurrentUser: "alice",
	})
	require.NoError(t, err)

	assert.Equal(t, "INV-202605-AAAA0001", details.InternalNumber)
	assert.Equal(t, entity.InvoiceStatusDraft, details.Status)
	assert.Equal(t, "alice", details.CreatedBy)
	require.NotNil(t, details.InvoiceDate)
	assert.True(t, h.now.Equal(*details.InvoiceDate))
	assert.Equal(t, "EXT-77", *details.ExternalNumber)
	assert.Equal(t, "Acme", details.Entity.Name)
	assert.Equal(t, "Main Co", details.CompanyProfile.Name)

	require.Len(t, details.Groups, 2)
	assert.Equal(t, t1, details.Groups[0].TaskID)
	assert.True(t, details.Groups[1].TotalAmount.Equal(decimal.RequireFromString("140.25")))
	assert.True(t, details.RecoverableTotal.Equal(decimal.NewFromInt(200)))

	assert.Equal(t, []int64{t1, t2}, h.store.linkedTo("INV-202605-AAAA0001"))
	assert.NotNil(t, h.store.tasks[t1].InvoicedAt)
}

func TestInvoiceService_CreateUsesSuppliedInvoiceDate(t *testing.T) {
	h := newHarness()
	task := h.store.addBillableTask(1)
	date := time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC)

	details, err := h.service.CreateOrAppendInvoice(context.Background(), CreateInvoiceInput{
		EntityID:    1,
		TaskIDs:     []int64{task},
		InvoiceData: &InvoiceData{CompanyProfileID: 1, InvoiceDate: &date},
	})
	require.NoError(t, err)
	assert.True(t, date.Equal(*details.InvoiceDate))
	assert.Nil(t, details.ExternalNumber)
}

func TestInvoiceService_CreateAllowsAdHocTaskInAnyStatus(t *testing.T) {
	h := newHarness()
	adhoc := h.store.addAdHocTask(1, entity.TaskStatusPending)
	h.store.addCharge(adhoc, "15", entity.ChargeStatusNotPaid, entity.BearerClient)

	_, err := h.service.CreateOrAppendInvoice(context.Background(), CreateInvoiceInput{
		EntityID:    1,
		TaskIDs:     []int64{adhoc},
		InvoiceData: &InvoiceData{CompanyProfileID: 1},
	})
	assert.NoError(t, err)
}

func TestInvoiceService_CreateCollectsEveryViolation(t *testing.T) {
	h := newHarness()
	h.store.addInvoice("INV-OTHER", entity.InvoiceStatusDraft, 1, "")

	wrongEntity := h.store.addBillableTask(2)
	linked := h.store.addBillableTask(1)
	h.store.link(linked, "INV-OTHER")
	noCharges := h.store.addTask(1, entity.TaskStatusCompleted)
	pending := h.store.addTask(1, entity.TaskStatusPending)
	h.store.addCharge(pending, "10", entity.ChargeStatusNotPaid, entity.BearerClient)
	nonSystemAdHoc := h.store.addTask(1, entity.TaskStatusInProgress)
	h.store.tasks[nonSystemAdHoc].TaskType = entity.TaskTypeAdHoc
	h.store.addCharge(nonSystemAdHoc, "10", entity.ChargeStatusNotPaid, entity.BearerClient)

	before := len(h.store.invoices)
	_, err := h.service.CreateOrAppendInvoice(context.Background(), CreateInvoiceInput{
		EntityID:    1,
		TaskIDs:     []int64{wrongEntity, linked, noCharges, pending, nonSystemAdHoc},
		InvoiceData: &InvoiceData{CompanyProfileID: 1},
	})
	require.Error(t, err)
	assert.True(t, apperror.IsValidation(err))

	appErr := apperror.As(err)
	require.NotNil(t, appErr)
	assert.Len(t, appErr.Details, 5)
	assert.Contains(t, err.Error(), "belongs to entity 2")
	assert.Contains(t, err.Error(), "already linked to invoice INV-OTHER")
	assert.Contains(t, err.Error(), "has no charges")
	assert.Contains(t, err.Error(), "is PENDING")
	assert.Contains(t, err.Error(), "is IN_PROGRESS")

	assert.Len(t, h.store.invoices, before, "new draft must roll back")
	assert.Nil(t, h.store.tasks[wrongEntity].InvoiceInternalNumber)
}

func TestInvoiceService_CreateRejectsUnknownTasks(t *testing.T) {
	h := newHarness()
	known := h.store.addBillableTask(1)

	_, err := h.service.CreateOrAppendInvoice(context.Background(), CreateInvoiceInput{
		EntityID:    1,
		TaskIDs:     []int64{known, 9001, 9002},
		InvoiceData: &InvoiceData{CompanyProfileID: 1},
	})
	require.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
	assert.Equal(t, []string{"task 9001", "task 9002"}, apperror.As(err).Details)
	assert.Empty(t, h.store.invoices)
}

func TestInvoiceService_CreateInputValidation(t *testing.T) {
	tests := []struct {
		name  string
		input CreateInvoiceInput
	}{
		{
			name:  "no tasks",
			input: CreateInvoiceInput{EntityID: 1, InvoiceData: &InvoiceData{CompanyProfileID: 1}},
		},
		{
			name:  "no entity",
			input: CreateInvoiceInput{TaskIDs: []int64{1}, InvoiceData: &InvoiceData{CompanyProfileID: 1}},
		},
		{
			name:  "neither number nor data",
			input: CreateInvoiceInput{EntityID: 1, TaskIDs: []int64{1}},
		},
		{
			name:  "missing company profile",
			input: CreateInvoiceInput{EntityID: 1, TaskIDs: []int64{1}, InvoiceData: &InvoiceData{}},
		},
		{
			name:  "inactive company profile",
			input: CreateInvoiceInput{EntityID: 1, TaskIDs: []int64{1}, InvoiceData: &InvoiceData{CompanyProfileID: 2}},
		},
		{
			name:  "unknown company profile",
			input: CreateInvoiceInput{EntityID: 1, TaskIDs: []int64{1}, InvoiceData: &InvoiceData{CompanyProfileID: 77}},
		},
		{
			name:  "unknown entity",
			input: CreateInvoiceInput{EntityID: 404, TaskIDs: []int64{1}, InvoiceData: &InvoiceData{CompanyProfileID: 1}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			_, err := h.service.CreateOrAppendInvoice(context.Background(), tt.input)
			require.Error(t, err)
			assert.True(t, apperror.IsValidation(err), err.Error())
			assert.Empty(t, h.store.invoices)
		})
	}
}

func TestInvoiceService_AppendToExistingDraft(t *testing.T) {
	h := newHarness()
	inv := h.store.addInvoice("INV-1", entity.InvoiceStatusDraft, 1, "")
	first := h.store.addBillableTask(1)
	h.store.link(first, "INV-1")
	second := h.store.addBillableTask(1)

	details, err := h.service.CreateOrAppendInvoice(context.Background(), CreateInvoiceInput{
		EntityID:              1,
		TaskIDs:               []int64{second},
		InvoiceInternalNumber: "INV-1",
	})
	require.NoError(t, err)
	assert.Equal(t, inv.ID, details.ID)
	assert.Len(t, details.Groups, 2)
	assert.Zero(t, h.numbers.calls, "append must not generate a number")
}

func TestInvoiceService_AppendErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  entity.InvoiceStatus
		number  string
		entity  int64
		checkFn func(error) bool
	}{
		{"unknown invoice", entity.InvoiceStatusDraft, "INV-MISSING", 1, apperror.IsNotFound},
		{"issued invoice", entity.InvoiceStatusIssued, "INV-1", 1, apperror.IsForbidden},
		{"paid invoice", entity.InvoiceStatusPaid, "INV-1", 1, apperror.IsForbidden},
		{"cancelled invoice", entity.InvoiceStatusCancelled, "INV-1", 1, apperror.IsForbidden},
		{"entity mismatch", entity.InvoiceStatusDraft, "INV-1", 2, apperror.IsValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			h.store.addInvoice("INV-1", tt.status, 1, "EXT")
			task := h.store.addBillableTask(tt.entity)

			_, err := h.service.CreateOrAppendInvoice(context.Background(), CreateInvoiceInput{
				EntityID:              tt.entity,
				TaskIDs:               []int64{task},
				InvoiceInternalNumber: tt.number,
			})
			require.Error(t, err)
			assert.True(t, tt.checkFn(err), err.Error())
			assert.Nil(t, h.store.tasks[task].InvoiceInternalNumber)
		})
	}
}

func TestInvoiceService_AttachRaceRollsBack(t *testing.T) {
	h := newHarness()
	t1 := h.store.addBillableTask(1)
	t2 := h.store.addBillableTask(1)

	// another transaction claims t2 between validation and attach
	h.tasks.attachFunc = func(ctx context.Context, ids []int64, number string, at time.Time) (int64, error) {
		h.store.link(t1, number)
		return int64(len(ids) - 1), nil
	}

	_, err := h.service.CreateOrAppendInvoice(context.Background(), CreateInvoiceInput{
		EntityID:    1,
		TaskIDs:     []int64{t1, t2},
		InvoiceData: &InvoiceData{CompanyProfileID: 1},
	})
	require.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
	assert.Equal(t, "tasks were invoiced concurrently; retry", err.Error())

	assert.Empty(t, h.store.invoices, "draft must not survive")
	assert.Nil(t, h.store.tasks[t1].InvoiceInternalNumber, "partial attach must not survive")
	assert.Nil(t, h.store.tasks[t2].InvoiceInternalNumber)
}

func TestInvoiceService_RegeneratesCollidingNumber(t *testing.T) {
	h := newHarness()
	h.store.addInvoice("INV-TAKEN", entity.InvoiceStatusDraft, 1, "")
	h.numbers.numbers = []string{"INV-TAKEN", "INV-FREE"}
	task := h.store.addBillableTask(1)

	details, err := h.service.CreateOrAppendInvoice(context.Background(), CreateInvoiceInput{
		EntityID:    1,
		TaskIDs:     []int64{task},
		InvoiceData: &InvoiceData{CompanyProfileID: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, "INV-FREE", details.InternalNumber)
	assert.Equal(t, 2, h.numbers.calls)
}

func TestInvoiceService_GivesUpAfterRepeatedCollisions(t *testing.T) {
	h := newHarness()
	h.store.addInvoice("INV-TAKEN", entity.InvoiceStatusDraft, 1, "")
	h.numbers.numbers = []string{"INV-TAKEN", "INV-TAKEN", "INV-TAKEN", "INV-TAKEN", "INV-TAKEN"}
	task := h.store.addBillableTask(1)

	_, err := h.service.CreateOrAppendInvoice(context.Background(), CreateInvoiceInput{
		EntityID:    1,
		TaskIDs:     []int64{task},
		InvoiceData: &InvoiceData{CompanyProfileID: 1},
	})
	require.Error(t, err)
	assert.False(t, apperror.IsValidation(err))
	assert.Equal(t, maxNumberAttempts, h.numbers.calls)
}

func TestInvoiceService_GetInvoices(t *testing.T) {
	h := newHarness()
	for _, n := range []string{"INV-1", "INV-2", "INV-3", "INV-4", "INV-5"} {
		h.store.addInvoice(n, entity.InvoiceStatusDraft, 1, "")
	}

	list, err := h.service.GetInvoices(context.Background(), InvoiceQuery{Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, Pagination{Page: 2, PageSize: 2, TotalItems: 5, TotalPages: 3, HasMore: true}, list.Pagination)
	require.Len(t, list.Items, 2)
	assert.Equal(t, "INV-3", list.Items[0].InternalNumber)

	last, err := h.service.GetInvoices(context.Background(), InvoiceQuery{Page: 3, PageSize: 2})
	require.NoError(t, err)
	assert.False(t, last.Pagination.HasMore)
	assert.Len(t, last.Items, 1)

	defaults, err := h.service.GetInvoices(context.Background(), InvoiceQuery{PageSize: 100000})
	require.NoError(t, err)
	assert.Equal(t, 1, defaults.Pagination.Page)
	assert.Equal(t, defaultMaxPage, defaults.Pagination.PageSize)

	empty, err := h.service.GetInvoices(context.Background(), InvoiceQuery{Search: "nope"})
	require.NoError(t, err)
	assert.NotNil(t, empty.Items)
	assert.Zero(t, empty.Pagination.TotalPages)
	assert.False(t, empty.Pagination.HasMore)
}

func TestInvoiceService_GetInvoicesRejectsBadFilters(t *testing.T) {
	h := newHarness()
	bogus := entity.InvoiceStatus("VOID")
	from := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(-time.Hour)

	for name, q := range map[string]InvoiceQuery{
		"date field": {DateField: "due_at"},
		"status":     {Status: &bogus},
		"range":      {DateFrom: &from, DateTo: &to},
	} {
		_, err := h.service.GetInvoices(context.Background(), q)
		assert.True(t, apperror.IsValidation(err), name)
	}
}

func TestInvoiceService_GetInvoiceDetails(t *testing.T) {
	h := newHarness()
	h.store.addInvoice("INV-1", entity.InvoiceStatusDraft, 1, "")

	details, err := h.service.GetInvoiceDetails(context.Background(), "INV-1")
	require.NoError(t, err)
	assert.NotNil(t, details.Groups)
	assert.Empty(t, details.Groups)
	assert.True(t, details.RecoverableTotal.IsZero())
	assert.Equal(t, []entity.InvoiceStatus{entity.InvoiceStatusCancelled, entity.InvoiceStatusIssued}, details.AllowedStatuses)

	h.store.addInvoice("INV-2", entity.InvoiceStatusCancelled, 1, "")
	details, err = h.service.GetInvoiceDetails(context.Background(), "INV-2")
	require.NoError(t, err)
	assert.Equal(t, []entity.InvoiceStatus{entity.InvoiceStatusDraft}, details.AllowedStatuses)

	_, err = h.service.GetInvoiceDetails(context.Background(), "INV-404")
	assert.True(t, apperror.IsNotFound(err))
}
