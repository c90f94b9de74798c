package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vtupay/wallet-service/internal/model"
	"github.com/vtupay/wallet-service/internal/repo"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrBelowMinimum means the funding amount is under the configured floor.
var ErrBelowMinimum = errors.New("amount below minimum funding amount")

// Webhook results returned to the transport layer. Anything but an error
// is acknowledged to the gateway with HTTP 200 so it stops redelivering.
const (
	WebhookProcessed        = "processed"
	WebhookIgnored          = "ignored"
	WebhookInvalidReference = "invalid_reference"
)

// gatewaySuccess is the reported status the gateway uses for settled charges.
const gatewaySuccess = "success"

// FundingService creates funding attempts and reconciles gateway webhooks.
type FundingService struct {
	repo repo.RepositoryInterface
	min  decimal.Decimal
	log  *zap.SugaredLogger
}

// NewFundingService returns FundingService. minAmount is the smallest
// accepted deposit in minor-agnostic units.
func NewFundingService(r repo.RepositoryInterface, minAmount decimal.Decimal, logger *zap.SugaredLogger) *FundingService {
	return &FundingService{repo: r, min: minAmount, log: logger}
}

// FundingInit is handed back to the client, which relays reference and
// amount to the payment gateway.
type FundingInit struct {
	Reference string
	Amount    decimal.Decimal
	Email     string
}

// Initialize records a PENDING funding attempt and returns its reference.
// The wallet itself is untouched until the gateway confirms payment.
func (s *FundingService) Initialize(ctx context.Context, userID uint64, email string, amount decimal.Decimal) (*FundingInit, error) {
	if amount.LessThan(s.min) {
		return nil, fmt.Errorf("%w: minimum is %s", ErrBelowMinimum, s.min)
	}
	ref := fmt.Sprintf("FUND-%d-%s", userID, strings.ToUpper(uuid.NewString()[:8]))
	t := &model.Transaction{
		ID:          ref,
		UserID:      userID,
		Type:        model.TypeFunding,
		Amount:      amount,
		Status:      model.StatusPending,
		Description: fmt.Sprintf("Wallet funding attempt of %s", amount),
	}
	if err := s.repo.CreateTransaction(ctx, s.repo.DB(ctx), t); err != nil {
		return nil, err
	}
	s.log.Infof("funding initialized ref=%s user=%d amount=%s", ref, userID, amount)
	return &FundingInit{Reference: ref, Amount: amount, Email: email}, nil
}

// HandleWebhook applies one gateway notification at most once. rawPayload is
// the notification body as received, stored on the ledger row for audit.
//
// The whole credit runs in one database transaction gated on the ledger row
// still being PENDING, so redelivering the same notification N times credits
// the wallet exactly once and every later delivery resolves to
// invalid_reference without touching anything.
func (s *FundingService) HandleWebhook(ctx context.Context, reference, reportedStatus string, rawPayload []byte) (string, error) {
	if reference == "" || reportedStatus != gatewaySuccess {
		return WebhookIgnored, nil
	}
	result := WebhookInvalidReference
	err := s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		trx, err := s.repo.PendingByIDForUpdate(ctx, tx, reference, model.TypeFunding)
		if err != nil {
			if errors.Is(err, repo.ErrNoPendingTransaction) {
				// already settled by an earlier delivery, or never ours
				s.log.Infof("webhook ignored, no pending funding for ref=%s", reference)
				return nil
			}
			return err
		}
		w, err := s.repo.WalletForUpdate(ctx, tx, trx.UserID)
		if err != nil {
			// a pending funding row implies the wallet exists; failing the
			// unit keeps the credit claimable on the gateway's next retry
			return err
		}
		newBal := w.Balance.Add(trx.Amount)
		if err := s.repo.UpdateBalance(ctx, tx, w.ID, newBal, w.Version); err != nil {
			return err
		}
		if err := s.repo.FinalizeTransaction(ctx, tx, trx.ID, repo.Finalization{
			Status:      model.StatusSuccess,
			OldBalance:  w.Balance,
			NewBalance:  newBal,
			RawResponse: string(rawPayload),
		}); err != nil {
			return err
		}
		payload, _ := json.Marshal(map[string]interface{}{
			"user_id": trx.UserID, "reference": trx.ID, "amount": trx.Amount, "balance": newBal,
		})
		evt := &model.OutboxEvent{
			Aggregate: "Wallet", AggregateID: w.ID,
			EventType: model.EventWalletFunded, Payload: string(payload),
		}
		if err := s.repo.CreateOutboxEvent(ctx, tx, evt); err != nil {
			return err
		}
		if err := s.repo.CacheBalance(ctx, trx.UserID, newBal); err != nil {
			s.log.Warn(err)
		}
		s.log.Infof("webhook credited %s for ref=%s user=%d", trx.Amount, reference, trx.UserID)
		result = WebhookProcessed
		return nil
	})
	if err != nil {
		return "", err
	}
	return result, nil
}
