package entity

// InvoiceStatus is the lifecycle status of an invoice
type InvoiceStatus string

// Invoice status constants
const (
	InvoiceStatusDraft     InvoiceStatus = "DRAFT"
	InvoiceStatusIssued    InvoiceStatus = "ISSUED"
	InvoiceStatusPaid      InvoiceStatus = "PAID"
	InvoiceStatusCancelled InvoiceStatus = "CANCELLED"
)

// IsValid reports whether s is one of the known invoice statuses
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusIssued, InvoiceStatusPaid, InvoiceStatusCancelled:
		return true
	default:
		return false
	}
}

// Task workflow status constants
const (
	TaskStatusPending    = "PENDING"
	TaskStatusInProgress = "IN_PROGRESS"
	TaskStatusCompleted  = "COMPLETED"
	TaskStatusCancelled  = "CANCELLED"
)

// Task type constants
const (
	TaskTypeNormal = "NORMAL"
	TaskTypeAdHoc  = "ADHOC" // system-generated ad-hoc task, invoiceable in any status
)

// Charge type constants
const (
	ChargeTypeServiceFee     = "SERVICE_FEE"
	ChargeTypeGovernmentFee  = "GOVERNMENT_FEE"
	ChargeTypeExternalCharge = "EXTERNAL_CHARGE"
	ChargeTypeOther          = "OTHER"
)

// Charge status constants
const (
	ChargeStatusNotPaid    = "NOT_PAID"
	ChargeStatusPaid       = "PAID"
	ChargeStatusWrittenOff = "WRITTEN_OFF"
	ChargeStatusCancelled  = "CANCELLED"
)

// Charge bearer constants
const (
	BearerClient = "CLIENT"
	BearerFirm   = "FIRM"
)

// Status history action constants
const (
	HistoryActionStatusUpdate = "STATUS_UPDATE"
	HistoryActionBulk         = "BULK_ACTION"
	HistoryActionCancel       = "CANCEL"
)
