// Package store persists accounts and customers with gorm and provides the
// unit of work the bookkeeper runs ledger mutations in.
package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Aidin1998/accountmanager/common/dbutil"
	"github.com/Aidin1998/accountmanager/common/errors"
	"github.com/Aidin1998/accountmanager/internal/ledger"
	"github.com/Aidin1998/accountmanager/pkg/money"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AccountStore reads and writes account snapshots inside one unit of work.
type AccountStore interface {
	// GetByID returns the account and, where the backend supports it, holds
	// its row lock until the unit of work ends.
	GetByID(ctx context.Context, id int64) (ledger.Account, error)
	// Save persists acc if nobody changed it since it was read and returns
	// the stored snapshot with its new version.
	Save(ctx context.Context, acc ledger.Account) (ledger.Account, error)
	// SaveAll saves every snapshot in ascending id order.
	SaveAll(ctx context.Context, accs ...ledger.Account) ([]ledger.Account, error)
}

// Store is the full persistence surface used by the bookkeeper.
type Store interface {
	// RunInTx runs fn in a transaction. The transaction commits when fn
	// returns nil and rolls back on error, panic or context expiry.
	RunInTx(ctx context.Context, fn func(AccountStore) error) error
	GetAccount(ctx context.Context, id int64) (ledger.Account, error)
	CreateCustomer(ctx context.Context, firstName, lastName string) (ledger.Customer, error)
	CreateAccount(ctx context.Context, customerID int64, currency string, balance money.Amount) (ledger.Account, error)
	Ping(ctx context.Context) error
}

// GormStore implements Store on top of gorm.
type GormStore struct {
	db         *gorm.DB
	logger     *zap.Logger
	rowLocking bool
}

// Option configures a GormStore.
type Option func(*GormStore)

// WithRowLocking toggles SELECT ... FOR UPDATE on reads inside a unit of work.
func WithRowLocking(enabled bool) Option {
	return func(s *GormStore) { s.rowLocking = enabled }
}

// New creates a store. Row locking is on by default.
func New(db *gorm.DB, logger *zap.Logger, opts ...Option) *GormStore {
	s := &GormStore{db: db, logger: logger.Named("store"), rowLocking: true}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ Store = (*GormStore)(nil)

func (s *GormStore) RunInTx(ctx context.Context, fn func(AccountStore) error) (err error) {
	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return mapError(tx.Error, "begin transaction")
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			s.logger.Error("Panic in unit of work, rolled back", zap.Any("panic", r))
			err = errors.Internal.Explain("unit of work panicked: %v", r).Trace()
		}
	}()

	if err := fn(&txStore{tx: tx, rowLocking: s.rowLocking}); err != nil {
		if rbErr := tx.Rollback().Error; rbErr != nil && ctx.Err() == nil {
			s.logger.Warn("Rollback failed", zap.Error(rbErr))
		}
		return err
	}

	if err := tx.Commit().Error; err != nil {
		return mapError(err, "commit")
	}
	return nil
}

func (s *GormStore) GetAccount(ctx context.Context, id int64) (ledger.Account, error) {
	rec, err := dbutil.FindOne[AccountRecord](s.db.WithContext(ctx).Where("account_id = ?", id))
	if err != nil {
		return ledger.Account{}, mapAccountError(err, id)
	}
	return rec.toSnapshot(), nil
}

func (s *GormStore) CreateCustomer(ctx context.Context, firstName, lastName string) (ledger.Customer, error) {
	rec := CustomerRecord{FirstName: firstName, LastName: lastName, CreatedAt: time.Now().UTC()}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return ledger.Customer{}, mapError(err, "create customer")
	}
	return rec.toCustomer(), nil
}

// CreateAccount opens an account for an existing customer with the given
// opening balance.
func (s *GormStore) CreateAccount(ctx context.Context, customerID int64, currency string, balance money.Amount) (ledger.Account, error) {
	var created AccountRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&CustomerRecord{}).Where("customer_id = ?", customerID).Count(&count).Error; err != nil {
			return mapError(err, "check customer")
		}
		if count == 0 {
			return ledger.ErrCustomerNotFound.Explain("customer %d not found", customerID)
		}

		now := time.Now().UTC()
		created = AccountRecord{
			Balance:    exactAmount{balance},
			Currency:   currency,
			CustomerID: customerID,
			Version:    1,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := tx.Omit(clause.Associations).Create(&created).Error; err != nil {
			return mapError(err, "create account")
		}
		return nil
	})
	if err != nil {
		return ledger.Account{}, err
	}
	return created.toSnapshot(), nil
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return mapError(err, "ping")
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return mapError(err, "ping")
	}
	return nil
}

type txStore struct {
	tx         *gorm.DB
	rowLocking bool
}

func (t *txStore) GetByID(ctx context.Context, id int64) (ledger.Account, error) {
	query := t.tx.WithContext(ctx)
	if t.rowLocking {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var rec AccountRecord
	if err := query.Where("account_id = ?", id).Take(&rec).Error; err != nil {
		return ledger.Account{}, mapAccountError(err, id)
	}
	return rec.toSnapshot(), nil
}

func (t *txStore) Save(ctx context.Context, acc ledger.Account) (ledger.Account, error) {
	result := t.tx.WithContext(ctx).
		Model(&AccountRecord{}).
		Where("account_id = ? AND version = ?", acc.ID, acc.Version).
		Updates(map[string]any{
			"balance":    acc.Balance,
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return ledger.Account{}, mapAccountError(result.Error, acc.ID)
	}
	if result.RowsAffected == 0 {
		return ledger.Account{}, ledger.ErrConcurrencyConflict.Explain("account %d changed since version %d", acc.ID, acc.Version)
	}

	// Return what the row now holds, not what was asked for.
	var rec AccountRecord
	if err := t.tx.WithContext(ctx).Where("account_id = ?", acc.ID).Take(&rec).Error; err != nil {
		return ledger.Account{}, mapAccountError(err, acc.ID)
	}
	stored := rec.toSnapshot()
	if !stored.Balance.Equal(acc.Balance) {
		return ledger.Account{}, errors.Internal.
			Explain("account %d stored balance %s instead of %s", acc.ID, stored.Balance, acc.Balance).
			Trace()
	}
	return stored, nil
}

func (t *txStore) SaveAll(ctx context.Context, accs ...ledger.Account) ([]ledger.Account, error) {
	ordered := append([]ledger.Account(nil), accs...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	saved := make([]ledger.Account, 0, len(ordered))
	for _, acc := range ordered {
		updated, err := t.Save(ctx, acc)
		if err != nil {
			return nil, err
		}
		saved = append(saved, updated)
	}
	return saved, nil
}

// mapAccountError turns a driver error into a ledger error for account id.
func mapAccountError(err error, id int64) error {
	wrapped := dbutil.WrapError(err)
	if errors.Is(wrapped, errors.NotFound) {
		return ledger.ErrAccountNotFound.Explain("account %d not found", id)
	}
	return mapError(wrapped, fmt.Sprintf("account %d", id))
}

func mapError(err error, op string) error {
	wrapped := dbutil.WrapError(err)
	switch {
	case errors.Is(wrapped, ledger.ErrConcurrencyConflict):
		return wrapped
	case errors.Is(wrapped, ledger.ErrTimeout):
		return ledger.ErrTimeout.Explain("%s: timed out", op).Wrap(err)
	case errors.Is(wrapped, dbutil.ErrValueOutOfRange):
		return ledger.ErrInvalidAmount.Explain("%s: value out of range for the balance column", op).Wrap(err)
	}
	if typed, ok := wrapped.(*errors.Error); ok && typed.StatusCode() < 500 {
		return typed
	}
	return ledger.ErrStoreUnavailable.Explain("%s failed", op).Wrap(err)
}
