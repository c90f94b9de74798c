package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/vtupay/wallet-service/internal/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Sentinel errors surfaced to the service layer.
var (
	// ErrInsufficientFunds is returned when wallet balance is not enough.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrWalletNotFound means no wallet row exists for the user. For an
	// authenticated caller this is a provisioning inconsistency, not input error.
	ErrWalletNotFound = errors.New("wallet not found")
	// ErrNoPendingTransaction means no ledger row matched id+type+PENDING;
	// for webhooks this is the duplicate/invalid-reference no-op signal.
	ErrNoPendingTransaction = errors.New("no pending transaction")
)

// Finalization carries the terminal update applied to a PENDING ledger row.
type Finalization struct {
	Status      string
	OldBalance  decimal.Decimal
	NewBalance  decimal.Decimal
	VendorRef   *string
	Description string // empty keeps the existing description
	RawResponse string // raw gateway/vendor payload kept for audit; empty keeps existing
}

// RepositoryInterface restricts Repo methods (unit-test mock seam).
type RepositoryInterface interface {
	DB(ctx context.Context) *gorm.DB
	CreateWallet(ctx context.Context, tx *gorm.DB, w *model.Wallet) error
	WalletForUpdate(ctx context.Context, tx *gorm.DB, userID uint64) (*model.Wallet, error)
	UpdateBalance(ctx context.Context, tx *gorm.DB, walletID uint64, newBalance decimal.Decimal, oldVersion uint64) error
	CreateTransaction(ctx context.Context, tx *gorm.DB, t *model.Transaction) error
	PendingByIDForUpdate(ctx context.Context, tx *gorm.DB, id, txType string) (*model.Transaction, error)
	FinalizeTransaction(ctx context.Context, tx *gorm.DB, id string, f Finalization) error
	CreateOutboxEvent(ctx context.Context, tx *gorm.DB, evt *model.OutboxEvent) error
	PollOutbox(ctx context.Context, limit int) ([]model.OutboxEvent, error)
	MarkOutboxProcessed(ctx context.Context, id uint64) error
	PublishEvent(ctx context.Context, evt model.OutboxEvent) error
	CacheBalance(ctx context.Context, userID uint64, bal decimal.Decimal) error
	GetCachedBalance(ctx context.Context, userID uint64) (decimal.Decimal, error)
}

// Repository implements RepositoryInterface.
type Repository struct {
	db     *gorm.DB
	rdb    *redis.Client
	writer *kafka.Writer
	log    *zap.SugaredLogger
}

// NewRepository constructs repo.
func NewRepository(db *gorm.DB, rdb *redis.Client, w *kafka.Writer, logger *zap.SugaredLogger) *Repository {
	return &Repository{db: db, rdb: rdb, writer: w, log: logger}
}

// DB returns underlying *gorm.DB
func (r *Repository) DB(ctx context.Context) *gorm.DB { return r.db.WithContext(ctx) }

// CreateWallet inserts a wallet row.
func (r *Repository) CreateWallet(ctx context.Context, tx *gorm.DB, w *model.Wallet) error {
	return tx.WithContext(ctx).Create(w).Error
}

// WalletForUpdate locks the user's wallet row for the duration of tx.
func (r *Repository) WalletForUpdate(ctx context.Context, tx *gorm.DB, userID uint64) (*model.Wallet, error) {
	var w model.Wallet
	if err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).First(&w).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return &w, nil
}

// UpdateBalance writes the new balance guarded by the version column, so a
// stale snapshot can never overwrite a newer one even without the row lock.
func (r *Repository) UpdateBalance(ctx context.Context, tx *gorm.DB, walletID uint64, newBalance decimal.Decimal, oldVersion uint64) error {
	res := tx.WithContext(ctx).
		Model(&model.Wallet{}).
		Where("id = ? AND version = ?", walletID, oldVersion).
		Updates(map[string]interface{}{
			"balance":    newBalance,
			"version":    oldVersion + 1,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errors.New("wallet version conflict")
	}
	return nil
}

// CreateTransaction inserts a ledger row, assigning the internal id when
// the caller did not pick one. The id never changes afterwards.
func (r *Repository) CreateTransaction(ctx context.Context, tx *gorm.DB, t *model.Transaction) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = model.StatusPending
	}
	return tx.WithContext(ctx).Create(t).Error
}

// PendingByIDForUpdate locks the ledger row matching id+type+PENDING. The
// status filter is what makes webhook redelivery a no-op: once finalized the
// row no longer matches and the lookup reports ErrNoPendingTransaction.
func (r *Repository) PendingByIDForUpdate(ctx context.Context, tx *gorm.DB, id, txType string) (*model.Transaction, error) {
	var t model.Transaction
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND type = ? AND status = ?", id, txType, model.StatusPending).
		First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoPendingTransaction
		}
		return nil, err
	}
	return &t, nil
}

// FinalizeTransaction applies the single terminal update to a ledger row.
func (r *Repository) FinalizeTransaction(ctx context.Context, tx *gorm.DB, id string, f Finalization) error {
	updates := map[string]interface{}{
		"status":      f.Status,
		"old_balance": f.OldBalance,
		"new_balance": f.NewBalance,
		"updated_at":  time.Now(),
	}
	if f.VendorRef != nil {
		updates["reference"] = *f.VendorRef
	}
	if f.Description != "" {
		updates["description"] = f.Description
	}
	if f.RawResponse != "" {
		updates["api_response"] = f.RawResponse
	}
	return tx.WithContext(ctx).Model(&model.Transaction{}).Where("id = ?", id).
		Updates(updates).Error
}

// CreateOutboxEvent writes event.
func (r *Repository) CreateOutboxEvent(ctx context.Context, tx *gorm.DB, evt *model.OutboxEvent) error {
	return tx.WithContext(ctx).Create(evt).Error
}

// PollOutbox pulls unprocessed events.
func (r *Repository) PollOutbox(ctx context.Context, limit int) ([]model.OutboxEvent, error) {
	var evts []model.OutboxEvent
	err := r.db.WithContext(ctx).Where("processed=false").Order("created_at").Limit(limit).Find(&evts).Error
	return evts, err
}

// MarkOutboxProcessed sets processed flag.
func (r *Repository) MarkOutboxProcessed(ctx context.Context, id uint64) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&model.OutboxEvent{}).Where("id=?", id).
		Updates(map[string]interface{}{"processed": true, "processed_at": &now}).Error
}

// PublishEvent sends to Kafka.
func (r *Repository) PublishEvent(ctx context.Context, evt model.OutboxEvent) error {
	msg := kafka.Message{
		Key:   []byte(fmt.Sprintf("%d", evt.ID)),
		Value: []byte(evt.Payload),
		Time:  time.Now(),
	}
	return r.writer.WriteMessages(ctx, msg)
}

// CacheBalance writes Redis.
func (r *Repository) CacheBalance(ctx context.Context, userID uint64, bal decimal.Decimal) error {
	return r.rdb.Set(ctx, fmt.Sprintf("balance:%d", userID), bal.String(), 5*time.Minute).Err()
}

// GetCachedBalance reads Redis.
func (r *Repository) GetCachedBalance(ctx context.Context, userID uint64) (decimal.Decimal, error) {
	str, err := r.rdb.Get(ctx, fmt.Sprintf("balance:%d", userID)).Result()
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(str)
}
