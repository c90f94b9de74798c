package service

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vtupay/wallet-service/internal/model"
	"github.com/vtupay/wallet-service/internal/repo"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// WalletService owns wallet provisioning and read paths.
type WalletService struct {
	repo repo.RepositoryInterface
	log  *zap.SugaredLogger
}

// NewWalletService returns WalletService.
func NewWalletService(r repo.RepositoryInterface, logger *zap.SugaredLogger) *WalletService {
	return &WalletService{repo: r, log: logger}
}

// EnsureWallet provisions the wallet row for a user when it does not exist
// yet. The identity layer calls this at account creation; calling it again
// is a no-op returning the existing row.
func (s *WalletService) EnsureWallet(ctx context.Context, userID uint64) (*model.Wallet, error) {
	var out *model.Wallet
	err := s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		w, err := s.repo.WalletForUpdate(ctx, tx, userID)
		if err == nil {
			out = w
			return nil
		}
		if !errors.Is(err, repo.ErrWalletNotFound) {
			return err
		}
		w = &model.Wallet{
			UserID:       userID,
			WalletNumber: newWalletNumber(),
			Balance:      decimal.Zero,
			Bonus:        decimal.Zero,
			PIN:          "0000",
		}
		if err := s.repo.CreateWallet(ctx, tx, w); err != nil {
			return err
		}
		s.log.Infof("wallet %s provisioned for user %d", w.WalletNumber, userID)
		out = w
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetWallet reads the full wallet row (balance, bonus, wallet number).
func (s *WalletService) GetWallet(ctx context.Context, userID uint64) (*model.Wallet, error) {
	var w model.Wallet
	if err := s.repo.DB(ctx).Where("user_id = ?", userID).First(&w).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repo.ErrWalletNotFound
		}
		return nil, err
	}
	if err := s.repo.CacheBalance(ctx, userID, w.Balance); err != nil {
		s.log.Warn(err)
	}
	return &w, nil
}

// GetBalance returns the current balance, cache first.
func (s *WalletService) GetBalance(ctx context.Context, userID uint64) (decimal.Decimal, error) {
	bal, err := s.repo.GetCachedBalance(ctx, userID)
	if err == nil {
		return bal, nil
	}
	w, err := s.GetWallet(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return w.Balance, nil
}

// GetHistory fetches the user's recent ledger entries, newest first.
func (s *WalletService) GetHistory(ctx context.Context, userID uint64, limit int, since time.Time) ([]model.Transaction, error) {
	var txs []model.Transaction
	err := s.repo.DB(ctx).
		Where("user_id = ? AND created_at >= ?", userID, since).
		Order("created_at desc").
		Limit(limit).
		Find(&txs).Error
	return txs, err
}

// Repo exposes underlying repository (unit tests helper).
func (s *WalletService) Repo() repo.RepositoryInterface {
	return s.repo
}

// newWalletNumber derives a 10-digit external wallet identifier from a
// random uuid. Collisions are guarded by the unique index on the column.
func newWalletNumber() string {
	u := uuid.New()
	n := binary.BigEndian.Uint64(u[:8]) % 1e10
	return fmt.Sprintf("%010d", n)
}
