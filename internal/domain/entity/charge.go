package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Charge is a single billable line attached to a task
type Charge struct {
	ID         int64           `json:"id"`
	TaskID     int64           `json:"task_id"`
	Title      string          `json:"title"`
	Amount     decimal.Decimal `json:"amount"`
	ChargeType string          `json:"charge_type"`
	Status     string          `json:"status"`
	Bearer     string          `json:"bearer"`
	Remark     string          `json:"remark,omitempty"`
	DeletedAt  *time.Time      `json:"-"`
	CreatedAt  time.Time       `json:"created_at"`
}

// IsDeleted reports whether the charge carries the soft-delete marker
func (c *Charge) IsDeleted() bool {
	return c.DeletedAt != nil
}

// IsRecoverable reports whether the charge is still owed by the client
func (c *Charge) IsRecoverable() bool {
	return !c.IsDeleted() && c.Status == ChargeStatusNotPaid && c.Bearer == BearerClient
}
