package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/vtupay/wallet-service/internal/model"
	"github.com/vtupay/wallet-service/internal/repo"
	"github.com/vtupay/wallet-service/internal/vtu"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrInvalidAmount means non-positive amount passed.
var ErrInvalidAmount = errors.New("amount must be positive")

// PurchaseResult reports a settled purchase attempt. On the failed path
// NewBalance is the restored pre-debit balance, so clients can show that no
// money was taken.
type PurchaseResult struct {
	Status        string
	Message       string
	TransactionID string
	NewBalance    decimal.Decimal
}

// Failed reports whether the vendor declined the purchase.
func (r PurchaseResult) Failed() bool { return r.Status == vtu.StatusFailed }

// PurchaseService runs the debit -> call vendor -> confirm-or-refund
// protocol for outbound purchases.
type PurchaseService struct {
	repo    repo.RepositoryInterface
	gateway vtu.Gateway
	log     *zap.SugaredLogger
}

// NewPurchaseService returns PurchaseService.
func NewPurchaseService(r repo.RepositoryInterface, g vtu.Gateway, logger *zap.SugaredLogger) *PurchaseService {
	return &PurchaseService{repo: r, gateway: g, log: logger}
}

// BuyAirtime reserves funds, attempts the purchase at the vendor and
// reconciles the reservation, all inside one database transaction. The
// wallet row lock is held across the vendor round trip: other operations on
// the same user wait it out, which is the price of never committing a debit
// without a matching vendor answer. Any unexpected error rolls back both the
// debit and the ledger row.
func (s *PurchaseService) BuyAirtime(ctx context.Context, userID uint64, network, phone string, amount decimal.Decimal) (*PurchaseResult, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}
	var res PurchaseResult
	err := s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		w, err := s.repo.WalletForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}
		if w.Balance.LessThan(amount) {
			// rejected before any ledger write; nothing to roll back
			return repo.ErrInsufficientFunds
		}

		oldBal := w.Balance
		newBal := oldBal.Sub(amount)
		if err := s.repo.UpdateBalance(ctx, tx, w.ID, newBal, w.Version); err != nil {
			return err
		}

		trx := &model.Transaction{
			UserID:      userID,
			Type:        model.TypeAirtime,
			Amount:      amount,
			OldBalance:  oldBal,
			NewBalance:  newBal,
			Status:      model.StatusPending,
			Network:     &network,
			PhoneNumber: &phone,
			Description: fmt.Sprintf("Airtime purchase of %s for %s", amount, phone),
		}
		if err := s.repo.CreateTransaction(ctx, tx, trx); err != nil {
			return err
		}

		// The ledger id is the vendor idempotency key for the lifetime of
		// this entry; a vendor-side duplicate cannot charge twice.
		out := s.gateway.PurchaseAirtime(ctx, network, phone, amount, trx.ID)

		if out.Success() {
			ref := out.VendorReference
			if err := s.repo.FinalizeTransaction(ctx, tx, trx.ID, repo.Finalization{
				Status:      model.StatusSuccess,
				OldBalance:  oldBal,
				NewBalance:  newBal,
				VendorRef:   &ref,
				RawResponse: out.Raw,
			}); err != nil {
				return err
			}
			res = PurchaseResult{
				Status:        vtu.StatusSuccess,
				Message:       "Airtime delivered successfully",
				TransactionID: trx.ID,
				NewBalance:    newBal,
			}
		} else {
			// vendor declined: put the money back before the unit commits
			if err := s.repo.UpdateBalance(ctx, tx, w.ID, oldBal, w.Version+1); err != nil {
				return err
			}
			if err := s.repo.FinalizeTransaction(ctx, tx, trx.ID, repo.Finalization{
				Status:      model.StatusFailed,
				OldBalance:  oldBal,
				NewBalance:  oldBal,
				Description: "Failed: " + out.Message,
				RawResponse: out.Raw,
			}); err != nil {
				return err
			}
			s.log.Warnf("purchase %s refunded for user %d: %s", trx.ID, userID, out.Message)
			res = PurchaseResult{
				Status:        vtu.StatusFailed,
				Message:       out.Message,
				TransactionID: trx.ID,
				NewBalance:    oldBal,
			}
		}

		payload, _ := json.Marshal(map[string]interface{}{
			"user_id": userID, "transaction_id": trx.ID,
			"amount": amount, "status": res.Status, "balance": res.NewBalance,
		})
		evt := &model.OutboxEvent{
			Aggregate: "Wallet", AggregateID: w.ID,
			EventType: model.EventAirtimePurchase, Payload: string(payload),
		}
		if err := s.repo.CreateOutboxEvent(ctx, tx, evt); err != nil {
			return err
		}
		if err := s.repo.CacheBalance(ctx, userID, res.NewBalance); err != nil {
			s.log.Warn(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}
