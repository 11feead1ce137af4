// Package bookkeeper is the transaction boundary around the ledger engine. It
// locks the accounts an operation touches, runs the engine inside one unit of
// work and retries when the store reports a concurrent update.
package bookkeeper

import (
	"context"
	"strings"
	"time"

	"github.com/Aidin1998/accountmanager/common/errors"
	"github.com/Aidin1998/accountmanager/internal/cache"
	"github.com/Aidin1998/accountmanager/internal/ledger"
	"github.com/Aidin1998/accountmanager/internal/lock"
	"github.com/Aidin1998/accountmanager/internal/store"
	"github.com/Aidin1998/accountmanager/pkg/metrics"
	"github.com/Aidin1998/accountmanager/pkg/money"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/Aidin1998/accountmanager/internal/bookkeeper"

// BookkeeperService defines ledger mutations and account lifecycle
type BookkeeperService interface {
	Deposit(ctx context.Context, accountID int64, amount money.Amount) (ledger.Account, error)
	Withdraw(ctx context.Context, accountID int64, amount money.Amount) (ledger.Account, error)
	Transfer(ctx context.Context, fromID, toID int64, amount money.Amount) (ledger.Account, ledger.Account, error)
	GetAccount(ctx context.Context, accountID int64) (ledger.Account, error)
	CreateCustomer(ctx context.Context, firstName, lastName string) (ledger.Customer, error)
	CreateAccount(ctx context.Context, customerID int64, currency string, initialDeposit *money.Amount) (ledger.Account, error)
	Ping(ctx context.Context) error
}

// Service implements BookkeeperService
type Service struct {
	logger   *zap.Logger
	store    store.Store
	locker   lock.Locker
	cache    cache.BalanceCache
	opts     *TransactionOptions
	tracer   trace.Tracer
	validate *validator.Validate
}

var _ BookkeeperService = (*Service)(nil)

// NewService creates a new bookkeeper
func NewService(logger *zap.Logger, st store.Store, locker lock.Locker, options ...Option) *Service {
	s := &Service{
		logger:   logger.Named("bookkeeper"),
		store:    st,
		locker:   locker,
		opts:     DefaultTransactionOptions(),
		tracer:   otel.Tracer(tracerName),
		validate: validator.New(),
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// Deposit adds amount to the account balance.
func (s *Service) Deposit(ctx context.Context, accountID int64, amount money.Amount) (ledger.Account, error) {
	out, err := s.execute(ctx, ledger.Operation{Kind: ledger.OpDeposit, AccountID: accountID, Amount: amount})
	if err != nil {
		return ledger.Account{}, err
	}
	return out[accountID], nil
}

// Withdraw removes amount from the account balance if it is covered.
func (s *Service) Withdraw(ctx context.Context, accountID int64, amount money.Amount) (ledger.Account, error) {
	out, err := s.execute(ctx, ledger.Operation{Kind: ledger.OpWithdraw, AccountID: accountID, Amount: amount})
	if err != nil {
		return ledger.Account{}, err
	}
	return out[accountID], nil
}

// Transfer moves amount between two accounts in one unit of work. Both
// updated snapshots are returned; for a self-transfer they are the same.
func (s *Service) Transfer(ctx context.Context, fromID, toID int64, amount money.Amount) (ledger.Account, ledger.Account, error) {
	out, err := s.execute(ctx, ledger.Operation{Kind: ledger.OpTransfer, AccountID: fromID, ToAccountID: toID, Amount: amount})
	if err != nil {
		return ledger.Account{}, ledger.Account{}, err
	}
	return out[fromID], out[toID], nil
}

func (s *Service) execute(ctx context.Context, op ledger.Operation) (map[int64]ledger.Account, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "ledger."+string(op.Kind), trace.WithAttributes(
		attribute.Int64("account.id", op.AccountID),
		attribute.String("amount", op.Amount.String()),
	))
	defer span.End()
	if op.Kind == ledger.OpTransfer {
		span.SetAttributes(attribute.Int64("account.to_id", op.ToAccountID))
	}

	out, err := s.executeWithRetry(ctx, op)

	status := outcome(err)
	metrics.LedgerOperations.WithLabelValues(string(op.Kind), status).Inc()
	metrics.LedgerOperationDuration.WithLabelValues(string(op.Kind)).Observe(time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, status)
		s.logRejection(op, err)
		return nil, err
	}

	fields := []zap.Field{
		zap.String("operation", string(op.Kind)),
		zap.Int64("account_id", op.AccountID),
		zap.String("amount", op.Amount.String()),
		zap.String("balance", out[op.AccountID].Balance.String()),
	}
	if op.Kind == ledger.OpTransfer {
		fields = append(fields,
			zap.Int64("to_account_id", op.ToAccountID),
			zap.String("to_balance", out[op.ToAccountID].Balance.String()))
	}
	s.logger.Info("Ledger operation committed", fields...)
	return out, nil
}

// executeWithRetry runs the operation until it commits, is rejected, or the
// retry budget or timeout runs out.
func (s *Service) executeWithRetry(ctx context.Context, op ledger.Operation) (map[int64]ledger.Account, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	var lastErr error
	for attempt := 0; attempt <= s.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			metrics.LedgerRetries.WithLabelValues(string(op.Kind)).Inc()
			select {
			case <-timeoutCtx.Done():
				return nil, ledger.ErrTimeout.Explain("%s timed out after %d attempts", op.Kind, attempt).Wrap(lastErr)
			case <-time.After(s.opts.RetryBackoff):
			}
		}

		out, err := s.executeOnce(timeoutCtx, op)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if !errors.Is(err, ledger.ErrConcurrencyConflict) {
			if timeoutCtx.Err() != nil && !errors.Is(err, ledger.ErrTimeout) && ledger.Retryable(err) {
				return nil, ledger.ErrTimeout.Explain("%s timed out", op.Kind).Wrap(err)
			}
			return nil, err
		}

		s.logger.Warn("Retrying ledger operation",
			zap.String("operation", string(op.Kind)),
			zap.Int64("account_id", op.AccountID),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}

	return nil, ledger.ErrStoreUnavailable.
		Explain("%s failed after %d attempts", op.Kind, s.opts.MaxRetries+1).
		Wrap(lastErr)
}

// executeOnce is a single attempt: lock, read, apply, write, commit.
func (s *Service) executeOnce(ctx context.Context, op ledger.Operation) (map[int64]ledger.Account, error) {
	ids := op.AccountIDs()

	unlock, err := s.locker.Acquire(ctx, ids...)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ledger.ErrTimeout.Explain("waiting for account lock").Wrap(err)
		}
		return nil, ledger.ErrStoreUnavailable.Explain("account lock unavailable").Wrap(err)
	}
	defer unlock()

	var committed map[int64]ledger.Account
	err = s.store.RunInTx(ctx, func(tx store.AccountStore) error {
		snapshots := make(map[int64]ledger.Account, len(ids))
		for _, id := range ids {
			acc, err := tx.GetByID(ctx, id)
			if err != nil {
				return err
			}
			snapshots[id] = acc
		}

		updated, err := ledger.Apply(op, snapshots)
		if err != nil {
			return err
		}

		pending := make([]ledger.Account, 0, len(updated))
		for _, acc := range updated {
			pending = append(pending, acc)
		}
		saved, err := tx.SaveAll(ctx, pending...)
		if err != nil {
			return err
		}

		committed = make(map[int64]ledger.Account, len(saved))
		for _, acc := range saved {
			committed[acc.ID] = acc
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.refreshCache(ctx, committed)
	return committed, nil
}

// GetAccount returns the current snapshot, from the balance cache when one
// is configured.
func (s *Service) GetAccount(ctx context.Context, accountID int64) (ledger.Account, error) {
	if s.cache != nil {
		acc, err := s.cache.Get(ctx, accountID)
		if err == nil {
			return acc, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("Balance cache unavailable, reading store", zap.Int64("account_id", accountID), zap.Error(err))
		}
	}

	acc, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return ledger.Account{}, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, acc); err != nil {
			s.logger.Warn("Failed to cache account", zap.Int64("account_id", accountID), zap.Error(err))
		}
	}
	return acc, nil
}

// CreateCustomer registers a customer that accounts can be opened for.
func (s *Service) CreateCustomer(ctx context.Context, firstName, lastName string) (ledger.Customer, error) {
	firstName, lastName = strings.TrimSpace(firstName), strings.TrimSpace(lastName)
	if firstName == "" || lastName == "" {
		return ledger.Customer{}, errors.Invalid.Explain("first and last name are required")
	}

	customer, err := s.store.CreateCustomer(ctx, firstName, lastName)
	if err != nil {
		return ledger.Customer{}, err
	}
	s.logger.Info("Customer created", zap.Int64("customer_id", customer.ID))
	return customer, nil
}

// CreateAccount opens an account. A nil initialDeposit opens it at zero.
func (s *Service) CreateAccount(ctx context.Context, customerID int64, currency string, initialDeposit *money.Amount) (ledger.Account, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if err := s.validate.Var(currency, "required,iso4217"); err != nil {
		return ledger.Account{}, ledger.ErrInvalidCurrency.Explain("unsupported currency %q", currency)
	}

	balance := money.Zero
	if initialDeposit != nil {
		balance = *initialDeposit
	}
	if err := ledger.ValidateNonNegative(balance); err != nil {
		return ledger.Account{}, err
	}

	acc, err := s.store.CreateAccount(ctx, customerID, currency, balance)
	if err != nil {
		return ledger.Account{}, err
	}
	s.logger.Info("Account created",
		zap.Int64("account_id", acc.ID),
		zap.Int64("customer_id", customerID),
		zap.String("currency", currency),
		zap.String("balance", acc.Balance.String()))
	return acc, nil
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// refreshCache writes the committed snapshots through to the balance cache.
// Their versions are newer than anything a concurrent reader fetched before
// the commit, so a late read-through Set cannot overwrite them.
func (s *Service) refreshCache(ctx context.Context, committed map[int64]ledger.Account) {
	if s.cache == nil {
		return
	}
	// The mutation has committed; a cancelled caller must not leave stale entries.
	cacheCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	for id, acc := range committed {
		if err := s.cache.Set(cacheCtx, acc); err == nil {
			continue
		}
		if err := s.cache.Invalidate(cacheCtx, id); err != nil {
			s.logger.Warn("Failed to invalidate balance cache", zap.Int64("account_id", id), zap.Error(err))
		}
	}
}

func (s *Service) logRejection(op ledger.Operation, err error) {
	fields := []zap.Field{
		zap.String("operation", string(op.Kind)),
		zap.Int64("account_id", op.AccountID),
		zap.String("amount", op.Amount.String()),
		zap.Error(err),
	}
	if op.Kind == ledger.OpTransfer {
		fields = append(fields, zap.Int64("to_account_id", op.ToAccountID))
	}

	if errors.StatusOf(err) >= 500 {
		s.logger.Error("Ledger operation failed", fields...)
		return
	}
	s.logger.Info("Ledger operation rejected", fields...)
}

// outcome is the metrics label for an operation result.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ledger.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ledger.ErrAccountNotFound):
		return "not_found"
	case errors.Is(err, ledger.ErrTimeout):
		return "timeout"
	case errors.Is(err, ledger.ErrStoreUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
