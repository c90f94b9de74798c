package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet holds the single balance row per user. WalletNumber is the
// externally visible identifier; Balance never goes below zero.
type Wallet struct {
	ID           uint64          `gorm:"primaryKey"`
	UserID       uint64          `gorm:"uniqueIndex;not null"`
	WalletNumber string          `gorm:"size:12;uniqueIndex"`
	Balance      decimal.Decimal `gorm:"type:numeric(12,2);not null;default:'0'"`
	Bonus        decimal.Decimal `gorm:"type:numeric(10,2);not null;default:'0'"`
	PIN          string          `gorm:"column:pin;size:4;default:'0000'"`
	Version      uint64          `gorm:"not null;default:0"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime"`
}

func (Wallet) TableName() string { return "wallet" }
