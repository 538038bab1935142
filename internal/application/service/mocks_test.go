package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/garyjia/billing-engine/internal/application/port"
	"github.com/garyjia/billing-engine/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// fakeStore is an in-memory backing store shared by the fake repositories.
// fakeTxManager snapshots it before each transaction and restores it on error.
type fakeStore struct {
	invoices map[int64]*entity.Invoice
	tasks    map[int64]*entity.Task
	charges  map[int64]*entity.Charge
	profiles map[int64]*entity.CompanyProfile
	entities map[int64]*entity.Entity
	history  []*entity.InvoiceStatusHistory
	nextID   int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		invoices: map[int64]*entity.Invoice{},
		tasks:    map[int64]*entity.Task{},
		charges:  map[int64]*entity.Charge{},
		profiles: map[int64]*entity.CompanyProfile{
			1: {ID: 1, Name: "Main Co", IsActive: true},
			2: {ID: 2, Name: "Dormant Co", IsActive: false},
		},
		entities: map[int64]*entity.Entity{
			1: {ID: 1, Name: "Acme"},
			2: {ID: 2, Name: "Globex"},
		},
		nextID: 100,
	}
}

func (s *fakeStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *fakeStore) snapshot() fakeStore {
	c := fakeStore{
		invoices: make(map[int64]*entity.Invoice, len(s.invoices)),
		tasks:    make(map[int64]*entity.Task, len(s.tasks)),
		charges:  make(map[int64]*entity.Charge, len(s.charges)),
		profiles: s.profiles,
		entities: s.entities,
		history:  append([]*entity.InvoiceStatusHistory(nil), s.history...),
		nextID:   s.nextID,
	}
	for k, v := range s.invoices {
		c.invoices[k] = copyInvoice(v)
	}
	for k, v := range s.tasks {
		t := *v
		c.tasks[k] = &t
	}
	for k, v := range s.charges {
		ch := *v
		c.charges[k] = &ch
	}
	return c
}

func (s *fakeStore) addInvoice(number string, status entity.InvoiceStatus, entityID int64, external string) *entity.Invoice {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(len(s.invoices)) * time.Hour)
	inv := &entity.Invoice{
		ID:               s.id(),
		InternalNumber:   number,
		Status:           status,
		EntityID:         entityID,
		CompanyProfileID: 1,
		CreatedBy:        "seed",
		CreatedAt:        created,
		UpdatedAt:        created,
	}
	if external != "" {
		inv.ExternalNumber = &external
	}
	if status == entity.InvoiceStatusIssued || status == entity.InvoiceStatusPaid {
		inv.IssuedAt = &created
	}
	if status == entity.InvoiceStatusPaid {
		inv.PaidAt = &created
	}
	s.invoices[inv.ID] = inv
	return copyInvoice(inv)
}

func (s *fakeStore) addTask(entityID int64, status string) int64 {
	t := &entity.Task{ID: s.id(), EntityID: entityID, Title: "task", Status: status, TaskType: entity.TaskTypeNormal}
	s.tasks[t.ID] = t
	return t.ID
}

func (s *fakeStore) addAdHocTask(entityID int64, status string) int64 {
	id := s.addTask(entityID, status)
	s.tasks[id].TaskType = entity.TaskTypeAdHoc
	s.tasks[id].IsSystem = true
	return id
}

func (s *fakeStore) addCharge(taskID int64, amount, status, bearer string) {
	c := &entity.Charge{
		ID:         s.id(),
		TaskID:     taskID,
		Title:      "fee",
		Amount:     decimal.RequireFromString(amount),
		ChargeType: entity.ChargeTypeServiceFee,
		Status:     status,
		Bearer:     bearer,
	}
	s.charges[c.ID] = c
}

// addBillableTask creates a completed task with one recoverable charge
func (s *fakeStore) addBillableTask(entityID int64) int64 {
	id := s.addTask(entityID, entity.TaskStatusCompleted)
	s.addCharge(id, "100", entity.ChargeStatusNotPaid, entity.BearerClient)
	return id
}

func (s *fakeStore) link(taskID int64, number string) {
	now := time.Now().UTC()
	s.tasks[taskID].InvoiceInternalNumber = &number
	s.tasks[taskID].InvoicedAt = &now
}

func (s *fakeStore) invoiceByNumber(number string) *entity.Invoice {
	for _, inv := range s.invoices {
		if inv.InternalNumber == number {
			return inv
		}
	}
	return nil
}

func (s *fakeStore) linkedTo(number string) []int64 {
	var ids []int64
	for _, t := range s.tasks {
		if t.InvoiceInternalNumber != nil && *t.InvoiceInternalNumber == number {
			ids = append(ids, t.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func copyInvoice(inv *entity.Invoice) *entity.Invoice {
	c := *inv
	return &c
}

// Mock TransactionManager with rollback
type mockTxManager struct {
	store *fakeStore
	calls int
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	m.calls++
	snapshot := m.store.snapshot()
	defer func() {
		if p := recover(); p != nil {
			*m.store = snapshot
			panic(p)
		}
	}()
	if err = fn(ctx); err != nil {
		*m.store = snapshot
	}
	return err
}

// Mock InvoiceRepository
type mockInvoiceRepo struct {
	store       *fakeStore
	getByIDFunc func(ctx context.Context, id int64) (*entity.Invoice, error)
}

func (m *mockInvoiceRepo) Create(ctx context.Context, invoice *entity.Invoice) error {
	if m.store.invoiceByNumber(invoice.InternalNumber) != nil {
		return fmt.Errorf("invoice %s: %w", invoice.InternalNumber, port.ErrDuplicateKey)
	}
	invoice.ID = m.store.id()
	m.store.invoices[invoice.ID] = copyInvoice(invoice)
	return nil
}

func (m *mockInvoiceRepo) GetByID(ctx context.Context, id int64) (*entity.Invoice, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	inv, ok := m.store.invoices[id]
	if !ok {
		return nil, nil
	}
	return copyInvoice(inv), nil
}

func (m *mockInvoiceRepo) GetByInternalNumber(ctx context.Context, internalNumber string) (*entity.Invoice, error) {
	inv := m.store.invoiceByNumber(internalNumber)
	if inv == nil {
		return nil, nil
	}
	return copyInvoice(inv), nil
}

func (m *mockInvoiceRepo) List(ctx context.Context, filter port.InvoiceFilter) ([]*entity.Invoice, int, error) {
	var matched []*entity.Invoice
	for _, inv := range m.store.invoices {
		if filter.EntityID != nil && inv.EntityID != *filter.EntityID {
			continue
		}
		if filter.Status != nil && inv.Status != *filter.Status {
			continue
		}
		if filter.Search != "" && !strings.EqualFold(inv.InternalNumber, filter.Search) &&
			!(inv.ExternalNumber != nil && strings.EqualFold(*inv.ExternalNumber, filter.Search)) {
			continue
		}
		matched = append(matched, copyInvoice(inv))
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	total := len(matched)
	start := (filter.Page - 1) * filter.PageSize
	if start > total {
		start = total
	}
	end := start + filter.PageSize
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (m *mockInvoiceRepo) UpdateInfo(ctx context.Context, invoice *entity.Invoice) error {
	m.store.invoices[invoice.ID] = copyInvoice(invoice)
	return nil
}

func (m *mockInvoiceRepo) UpdateStatus(ctx context.Context, invoice *entity.Invoice) error {
	m.store.invoices[invoice.ID] = copyInvoice(invoice)
	return nil
}

// Mock TaskRepository
type mockTaskRepo struct {
	store      *fakeStore
	attachFunc func(ctx context.Context, ids []int64, internalNumber string, invoicedAt time.Time) (int64, error)
}

func (m *mockTaskRepo) GetByIDs(ctx context.Context, ids []int64) ([]*entity.Task, error) {
	tasks := []*entity.Task{}
	for _, id := range ids {
		if t, ok := m.store.tasks[id]; ok {
			c := *t
			tasks = append(tasks, &c)
		}
	}
	return tasks, nil
}

func (m *mockTaskRepo) GetByInvoiceNumber(ctx context.Context, internalNumber string) ([]*entity.Task, error) {
	return m.GetByIDs(ctx, m.store.linkedTo(internalNumber))
}

func (m *mockTaskRepo) CountByInvoiceNumber(ctx context.Context, internalNumber string) (int, error) {
	return len(m.store.linkedTo(internalNumber)), nil
}

func (m *mockTaskRepo) AttachToInvoice(ctx context.Context, ids []int64, internalNumber string, invoicedAt time.Time) (int64, error) {
	if m.attachFunc != nil {
		return m.attachFunc(ctx, ids, internalNumber, invoicedAt)
	}
	var affected int64
	for _, id := range ids {
		t, ok := m.store.tasks[id]
		if !ok || t.InvoiceInternalNumber != nil {
			continue
		}
		number, at := internalNumber, invoicedAt
		t.InvoiceInternalNumber = &number
		t.InvoicedAt = &at
		affected++
	}
	return affected, nil
}

func (m *mockTaskRepo) UnlinkFromInvoice(ctx context.Context, ids []int64, internalNumber string) ([]int64, error) {
	unlinked := []int64{}
	for _, id := range ids {
		t, ok := m.store.tasks[id]
		if !ok || t.InvoiceInternalNumber == nil || *t.InvoiceInternalNumber != internalNumber {
			continue
		}
		t.InvoiceInternalNumber = nil
		t.InvoicedAt = nil
		unlinked = append(unlinked, id)
	}
	return unlinked, nil
}

func (m *mockTaskRepo) UnlinkAll(ctx context.Context, internalNumber string) (int64, error) {
	ids := m.store.linkedTo(internalNumber)
	for _, id := range ids {
		m.store.tasks[id].InvoiceInternalNumber = nil
		m.store.tasks[id].InvoicedAt = nil
	}
	return int64(len(ids)), nil
}

// Mock ChargeRepository
type mockChargeRepo struct {
	store *fakeStore
}

func (m *mockChargeRepo) GetByTaskIDs(ctx context.Context, taskIDs []int64) ([]*entity.Charge, error) {
	wanted := make(map[int64]bool, len(taskIDs))
	for _, id := range taskIDs {
		wanted[id] = true
	}
	charges := []*entity.Charge{}
	for _, c := range m.store.charges {
		if wanted[c.TaskID] && !c.IsDeleted() {
			cc := *c
			charges = append(charges, &cc)
		}
	}
	return charges, nil
}

func (m *mockChargeRepo) CountActiveByTaskIDs(ctx context.Context, taskIDs []int64) (map[int64]int, error) {
	charges, _ := m.GetByTaskIDs(ctx, taskIDs)
	counts := map[int64]int{}
	for _, c := range charges {
		counts[c.TaskID]++
	}
	return counts, nil
}

// Mock CompanyProfileRepository
type mockProfileRepo struct {
	store *fakeStore
}

func (m *mockProfileRepo) GetByID(ctx context.Context, id int64) (*entity.CompanyProfile, error) {
	p, ok := m.store.profiles[id]
	if !ok {
		return nil, nil
	}
	c := *p
	return &c, nil
}

// Mock EntityRepository
type mockEntityRepo struct {
	store *fakeStore
}

func (m *mockEntityRepo) GetByID(ctx context.Context, id int64) (*entity.Entity, error) {
	e, ok := m.store.entities[id]
	if !ok {
		return nil, nil
	}
	c := *e
	return &c, nil
}

// Mock StatusHistoryRepository
type mockHistoryRepo struct {
	store      *fakeStore
	createFunc func(ctx context.Context, history *entity.InvoiceStatusHistory) error
}

func (m *mockHistoryRepo) Create(ctx context.Context, history *entity.InvoiceStatusHistory) error {
	if m.createFunc != nil {
		if err := m.createFunc(ctx, history); err != nil {
			return err
		}
	}
	history.ID = m.store.id()
	c := *history
	m.store.history = append(m.store.history, &c)
	return nil
}

func (m *mockHistoryRepo) GetByInvoiceID(ctx context.Context, invoiceID int64) ([]*entity.InvoiceStatusHistory, error) {
	var records []*entity.InvoiceStatusHistory
	for _, h := range m.store.history {
		if h.InvoiceID == invoiceID {
			records = append(records, h)
		}
	}
	return records, nil
}

// Mock NumberGenerator returning a fixed sequence
type mockNumbers struct {
	numbers []string
	calls   int
}

func (m *mockNumbers) Next() string {
	m.calls++
	if m.calls <= len(m.numbers) {
		return m.numbers[m.calls-1]
	}
	return fmt.Sprintf("INV-TEST-%04d", m.calls)
}

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

// testHarness wires the service to a fresh fake store
type testHarness struct {
	store     *fakeStore
	invoices  *mockInvoiceRepo
	tasks     *mockTaskRepo
	history   *mockHistoryRepo
	txManager *mockTxManager
	numbers   *mockNumbers
	now       time.Time
	service   InvoiceService
}

func newHarness(opts ...func(*InvoiceOptions)) *testHarness {
	store := newFakeStore()
	h := &testHarness{
		store:     store,
		invoices:  &mockInvoiceRepo{store: store},
		tasks:     &mockTaskRepo{store: store},
		history:   &mockHistoryRepo{store: store},
		txManager: &mockTxManager{store: store},
		numbers:   &mockNumbers{},
		now:       time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC),
	}

	options := InvoiceOptions{Now: func() time.Time { return h.now }}
	for _, opt := range opts {
		opt(&options)
	}

	h.service = NewInvoiceService(InvoiceRepositories{
		Invoices:        h.invoices,
		Tasks:           h.tasks,
		Charges:         &mockChargeRepo{store: store},
		CompanyProfiles: &mockProfileRepo{store: store},
		Entities:        &mockEntityRepo{store: store},
		History:         h.history,
	}, h.txManager, h.numbers, options, &mockLogger{})
	return h
}
