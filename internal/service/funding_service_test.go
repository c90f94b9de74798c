package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/vtupay/wallet-service/internal/model"
)

func TestFunding_WebhookCreditsExactlyOnce(t *testing.T) {
	r := newTestRepo(t)
	log := testLogger(t)
	wallets := NewWalletService(r, log)
	funding := NewFundingService(r, decimal.NewFromInt(100), log)
	ctx := context.Background()

	w, err := wallets.EnsureWallet(ctx, 1)
	assert.NoError(t, err)
	assert.True(t, w.Balance.IsZero())

	init, err := funding.Initialize(ctx, 1, "ada@example.com", decimal.NewFromInt(5000))
	assert.NoError(t, err)
	assert.Contains(t, init.Reference, "FUND-1-")
	assert.Equal(t, "ada@example.com", init.Email)

	payload := []byte(fmt.Sprintf(
		`{"event":"charge.success","data":{"reference":"%s","status":"success"}}`, init.Reference))

	// first delivery credits the wallet
	res, err := funding.HandleWebhook(ctx, init.Reference, "success", payload)
	assert.NoError(t, err)
	assert.Equal(t, WebhookProcessed, res)

	// redelivery is a no-op
	res, err = funding.HandleWebhook(ctx, init.Reference, "success", payload)
	assert.NoError(t, err)
	assert.Equal(t, WebhookInvalidReference, res)

	bal, err := wallets.GetBalance(ctx, 1)
	assert.NoError(t, err)
	assert.Equal(t, "5000", bal.StringFixed(0))

	var count int64
	assert.NoError(t, r.DB(ctx).Model(&model.Transaction{}).
		Where("type = ? AND status = ?", model.TypeFunding, model.StatusSuccess).
		Count(&count).Error)
	assert.EqualValues(t, 1, count)

	var trx model.Transaction
	assert.NoError(t, r.DB(ctx).First(&trx, "id = ?", init.Reference).Error)
	assert.Equal(t, "0", trx.OldBalance.StringFixed(0))
	assert.Equal(t, "5000", trx.NewBalance.StringFixed(0))
	assert.Equal(t, string(payload), trx.APIResponse)

	// the credit left an outbox event behind
	var evts int64
	assert.NoError(t, r.DB(ctx).Model(&model.OutboxEvent{}).
		Where("event_type = ?", model.EventWalletFunded).Count(&evts).Error)
	assert.EqualValues(t, 1, evts)
}

func TestFunding_NonSuccessNotificationsIgnored(t *testing.T) {
	r := newTestRepo(t)
	log := testLogger(t)
	wallets := NewWalletService(r, log)
	funding := NewFundingService(r, decimal.NewFromInt(100), log)
	ctx := context.Background()

	_, err := wallets.EnsureWallet(ctx, 7)
	assert.NoError(t, err)
	init, err := funding.Initialize(ctx, 7, "", decimal.NewFromInt(300))
	assert.NoError(t, err)

	// missing reference
	res, err := funding.HandleWebhook(ctx, "", "success", []byte(`{}`))
	assert.NoError(t, err)
	assert.Equal(t, WebhookIgnored, res)

	// failed charge notification
	res, err = funding.HandleWebhook(ctx, init.Reference, "failed", []byte(`{}`))
	assert.NoError(t, err)
	assert.Equal(t, WebhookIgnored, res)

	// reference that never existed
	res, err = funding.HandleWebhook(ctx, "FUND-7-DEADBEEF", "success", []byte(`{}`))
	assert.NoError(t, err)
	assert.Equal(t, WebhookInvalidReference, res)

	// nothing was credited, the attempt is still pending
	bal, err := wallets.GetBalance(ctx, 7)
	assert.NoError(t, err)
	assert.True(t, bal.IsZero())

	var trx model.Transaction
	assert.NoError(t, r.DB(ctx).First(&trx, "id = ?", init.Reference).Error)
	assert.Equal(t, model.StatusPending, trx.Status)
}

func TestFunding_BelowMinimumRejected(t *testing.T) {
	r := newTestRepo(t)
	funding := NewFundingService(r, decimal.NewFromInt(100), testLogger(t))
	ctx := context.Background()

	init, err := funding.Initialize(ctx, 2, "", decimal.NewFromInt(50))
	assert.ErrorIs(t, err, ErrBelowMinimum)
	assert.Nil(t, init)

	var count int64
	assert.NoError(t, r.DB(ctx).Model(&model.Transaction{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestEnsureWallet_Idempotent(t *testing.T) {
	r := newTestRepo(t)
	wallets := NewWalletService(r, testLogger(t))
	ctx := context.Background()

	w1, err := wallets.EnsureWallet(ctx, 42)
	assert.NoError(t, err)
	assert.Len(t, w1.WalletNumber, 10)

	w2, err := wallets.EnsureWallet(ctx, 42)
	assert.NoError(t, err)
	assert.Equal(t, w1.ID, w2.ID)
	assert.Equal(t, w1.WalletNumber, w2.WalletNumber)

	var count int64
	assert.NoError(t, r.DB(ctx).Model(&model.Wallet{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}
