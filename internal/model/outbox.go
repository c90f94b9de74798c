package model

import "time"

// Outbox event types emitted by the wallet mutation flows.
const (
	EventWalletFunded    = "WalletFunded"
	EventAirtimePurchase = "AirtimePurchase"
)

// OutboxEvent is written in the same database transaction as the balance
// mutation it describes; the poller ships it to Kafka afterwards.
type OutboxEvent struct {
	ID          uint64    `gorm:"primaryKey"`
	Aggregate   string    `gorm:"size:64;not null"`
	AggregateID uint64    `gorm:"not null"`
	EventType   string    `gorm:"size:64;not null"`
	Payload     string    `gorm:"type:jsonb;not null"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	Processed   bool      `gorm:"not null;default:false"`
	ProcessedAt *time.Time
}

func (OutboxEvent) TableName() string { return "event_outbox" }
