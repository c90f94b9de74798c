package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction types.
const (
	TypeFunding     = "FUNDING"
	TypeAirtime     = "AIRTIME"
	TypeData        = "DATA"
	TypeCable       = "CABLE"
	TypeElectricity = "ELECTRICITY"
)

// Transaction statuses. A row moves PENDING -> SUCCESS or PENDING -> FAILED
// exactly once and never leaves a terminal state. REFUNDED is reserved for
// manual reversals outside the request flows.
const (
	StatusPending  = "PENDING"
	StatusSuccess  = "SUCCESS"
	StatusFailed   = "FAILED"
	StatusRefunded = "REFUNDED"
)

// Transaction is one ledger entry. ID is generated internally and doubles as
// the vendor request (idempotency) key for purchases and as the reference the
// payment gateway echoes back for funding attempts. Reference holds the
// counterparty's own id (vendor order id) once known.
type Transaction struct {
	ID          string          `gorm:"size:100;primaryKey"`
	UserID      uint64          `gorm:"not null;index"`
	Type        string          `gorm:"size:20;not null"`
	Reference   *string         `gorm:"size:100"`
	Amount      decimal.Decimal `gorm:"type:numeric(10,2);not null"`
	OldBalance  decimal.Decimal `gorm:"type:numeric(10,2);not null;default:'0'"`
	NewBalance  decimal.Decimal `gorm:"type:numeric(10,2);not null;default:'0'"`
	Status      string          `gorm:"size:20;not null;default:'PENDING';index"`
	Network     *string         `gorm:"size:20"`
	PhoneNumber *string         `gorm:"size:15"`
	PlanCode    *string         `gorm:"size:50"`
	Description string          `gorm:"type:text"`
	APIResponse string          `gorm:"type:jsonb"`
	CreatedAt   time.Time       `gorm:"autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime"`
}

func (Transaction) TableName() string { return "transaction" }
