package entity

import "time"

// InvoiceStatusHistory is the audit trail of status changes on an invoice
type InvoiceStatusHistory struct {
	ID             int64         `json:"id"`
	InvoiceID      int64         `json:"invoice_id"`
	PreviousStatus InvoiceStatus `json:"previous_status"`
	NewStatus      InvoiceStatus `json:"new_status"`
	Action         string        `json:"action"`
	Actor          string        `json:"actor,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}
