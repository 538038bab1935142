package entity

import "time"

// Task is a billable work item. It is linked to at most one invoice through
// InvoiceInternalNumber; InvoicedAt moves in lockstep with the link.
type Task struct {
	ID                    int64      `json:"id"`
	EntityID              int64      `json:"entity_id"`
	Title                 string     `json:"title"`
	Status                string     `json:"status"`
	TaskType              string     `json:"task_type"`
	IsSystem              bool       `json:"is_system"`
	InvoiceInternalNumber *string    `json:"invoice_internal_number"`
	InvoicedAt            *time.Time `json:"invoiced_at"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// IsLinked reports whether the task is attached to any invoice
func (t *Task) IsLinked() bool {
	return t.InvoiceInternalNumber != nil
}

// IsAdHoc reports whether the task is a system-generated ad-hoc task,
// which may be invoiced regardless of its workflow status.
func (t *Task) IsAdHoc() bool {
	return t.TaskType == TaskTypeAdHoc && t.IsSystem
}
