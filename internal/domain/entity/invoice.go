package entity

import "time"

// Invoice groups billable tasks for one entity under a single document.
// InternalNumber is the join key used by tasks, not ID.
type Invoice struct {
	ID               int64         `json:"id"`
	InternalNumber   string        `json:"internal_number"`
	ExternalNumber   *string       `json:"external_number"`
	Status           InvoiceStatus `json:"status"`
	InvoiceDate      *time.Time    `json:"invoice_date"`
	IssuedAt         *time.Time    `json:"issued_at"`
	PaidAt           *time.Time    `json:"paid_at"`
	EntityID         int64         `json:"entity_id"`
	CompanyProfileID int64         `json:"company_profile_id"`
	Notes            *string       `json:"notes"`
	CreatedBy        string        `json:"created_by"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// IsDraft reports whether the invoice is still editable
func (i *Invoice) IsDraft() bool {
	return i.Status == InvoiceStatusDraft
}

// HasExternalNumber reports whether a non-blank external number is set
func (i *Invoice) HasExternalNumber() bool {
	return i.ExternalNumber != nil && *i.ExternalNumber != ""
}

// ApplyStatus moves the invoice to the target status and updates the
// lifecycle timestamps. It does not check transition legality.
//
//	DRAFT:  issued_at and paid_at cleared
//	ISSUED: issued_at = now, paid_at cleared
//	PAID:   paid_at = now, issued_at back-filled with now when unset
func (i *Invoice) ApplyStatus(to InvoiceStatus, now time.Time) {
	switch to {
	case InvoiceStatusDraft:
		i.IssuedAt = nil
		i.PaidAt = nil
	case InvoiceStatusIssued:
		i.IssuedAt = &now
		i.PaidAt = nil
	case InvoiceStatusPaid:
		i.PaidAt = &now
		if i.IssuedAt == nil {
			i.IssuedAt = &now
		}
	}
	i.Status = to
	i.UpdatedAt = now
}

// InvoiceInfoUpdate carries the metadata fields editable on a draft invoice.
// Nil fields are left unchanged.
type InvoiceInfoUpdate struct {
	CompanyProfileID *int64     `json:"company_profile_id,omitempty"`
	InvoiceDate      *time.Time `json:"invoice_date,omitempty"`
	ExternalNumber   *string    `json:"external_number,omitempty"`
	Notes            *string    `json:"notes,omitempty"`
}

// IsEmpty reports whether the update touches no field
func (u InvoiceInfoUpdate) IsEmpty() bool {
	return u.CompanyProfileID == nil && u.InvoiceDate == nil && u.ExternalNumber == nil && u.Notes == nil
}

// Apply copies the non-nil fields onto the invoice
func (u InvoiceInfoUpdate) Apply(inv *Invoice, now time.Time) {
	if u.CompanyProfileID != nil {
		inv.CompanyProfileID = *u.CompanyProfileID
	}
	if u.InvoiceDate != nil {
		d := *u.InvoiceDate
		inv.InvoiceDate = &d
	}
	if u.ExternalNumber != nil {
		n := *u.ExternalNumber
		inv.ExternalNumber = &n
	}
	if u.Notes != nil {
		n := *u.Notes
		inv.Notes = &n
	}
	inv.UpdatedAt = now
}
