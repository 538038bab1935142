package entity

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// TaskGroup is the read-time projection of one linked task and its charges
type TaskGroup struct {
	TaskID            int64           `json:"task_id"`
	Title             string          `json:"title"`
	Status            string          `json:"status"`
	TaskType          string          `json:"task_type"`
	InvoicedAt        *time.Time      `json:"invoiced_at"`
	Charges           []*Charge       `json:"charges"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	RecoverableAmount decimal.Decimal `json:"recoverable_amount"`
}

// InvoiceDetails is a fully hydrated invoice
type InvoiceDetails struct {
	*Invoice
	Entity           *Entity         `json:"entity"`
	CompanyProfile   *CompanyProfile `json:"company_profile"`
	Groups           []TaskGroup     `json:"groups"`
	RecoverableTotal decimal.Decimal `json:"recoverable_total"`
	// AllowedStatuses lists the statuses the invoice may move to next
	AllowedStatuses []InvoiceStatus `json:"allowed_statuses"`
}

// RecoverableAmount sums the undeleted NOT_PAID charges borne by the client
func RecoverableAmount(charges []*Charge) decimal.Decimal {
	total := decimal.Zero
	for _, c := range charges {
		if c.IsRecoverable() {
			total = total.Add(c.Amount)
		}
	}
	return total
}

// TotalAmount sums every undeleted charge
func TotalAmount(charges []*Charge) decimal.Decimal {
	total := decimal.Zero
	for _, c := range charges {
		if !c.IsDeleted() {
			total = total.Add(c.Amount)
		}
	}
	return total
}

// ActiveCharges drops soft-deleted charges
func ActiveCharges(charges []*Charge) []*Charge {
	active := make([]*Charge, 0, len(charges))
	for _, c := range charges {
		if !c.IsDeleted() {
			active = append(active, c)
		}
	}
	return active
}

// BuildTaskGroups projects tasks and their charges into one group per task,
// ordered by task ID. Deleted charges and charges of unknown tasks are skipped.
func BuildTaskGroups(tasks []*Task, charges []*Charge) []TaskGroup {
	byTask := make(map[int64][]*Charge, len(tasks))
	for _, c := range charges {
		if c.IsDeleted() {
			continue
		}
		byTask[c.TaskID] = append(byTask[c.TaskID], c)
	}

	ordered := make([]*Task, len(tasks))
	copy(ordered, tasks)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	groups := make([]TaskGroup, 0, len(ordered))
	for _, t := range ordered {
		taskCharges := byTask[t.ID]
		if taskCharges == nil {
			taskCharges = []*Charge{}
		}
		sort.Slice(taskCharges, func(i, j int) bool { return taskCharges[i].ID < taskCharges[j].ID })

		groups = append(groups, TaskGroup{
			TaskID:            t.ID,
			Title:             t.Title,
			Status:            t.Status,
			TaskType:          t.TaskType,
			InvoicedAt:        t.InvoicedAt,
			Charges:           taskCharges,
			TotalAmount:       TotalAmount(taskCharges),
			RecoverableAmount: RecoverableAmount(taskCharges),
		})
	}
	return groups
}

// RecoverableTotal sums the recoverable amount across groups
func RecoverableTotal(groups []TaskGroup) decimal.Decimal {
	total := decimal.Zero
	for _, g := range groups {
		total = total.Add(g.RecoverableAmount)
	}
	return total
}
