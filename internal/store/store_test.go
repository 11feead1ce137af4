package store

import (
	"context"
	"errors"
	"testing"

	"github.com/Aidin1998/accountmanager/common/dbutil"
	commonerrors "github.com/Aidin1998/accountmanager/common/errors"
	"github.com/Aidin1998/accountmanager/internal/config"
	"github.com/Aidin1998/accountmanager/internal/ledger"
	"github.com/Aidin1998/accountmanager/pkg/money"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestStore(t *testing.T) *GormStore {
	t.Helper()
	db, err := Open(config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:", LogLevel: "silent"})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return New(db, zap.NewNop())
}

func seedAccount(t *testing.T, s *GormStore, balance string) ledger.Account {
	t.Helper()
	ctx := context.Background()
	customer, err := s.CreateCustomer(ctx, "Ada", "Lovelace")
	require.NoError(t, err)
	acc, err := s.CreateAccount(ctx, customer.ID, "EUR", money.MustParse(balance))
	require.NoError(t, err)
	return acc
}

func TestCreateAccount(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	acc := seedAccount(t, s, "105")
	assert.NotZero(t, acc.ID)
	assert.Equal(t, int64(1), acc.Version)
	assert.Equal(t, "EUR", acc.Currency)

	loaded, err := s.GetAccount(ctx, acc.ID)
	require.NoError(t, err)
	assert.True(t, loaded.Balance.Equal(money.MustParse("105")), "got %s", loaded.Balance)
	assert.Equal(t, acc.CustomerID, loaded.CustomerID)
}

func TestCreateAccountUnknownCustomer(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.CreateAccount(context.Background(), 999, "EUR", money.Zero)
	assert.ErrorIs(t, err, ledger.ErrCustomerNotFound)
}

func TestGetAccountNotFound(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.GetAccount(context.Background(), 42)
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
}

func TestRunInTxCommits(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	acc := seedAccount(t, s, "10")

	err := s.RunInTx(ctx, func(as AccountStore) error {
		current, err := as.GetByID(ctx, acc.ID)
		if err != nil {
			return err
		}
		current.Balance = current.Balance.Add(money.MustParse("2.5"))
		saved, err := as.Save(ctx, current)
		if err != nil {
			return err
		}
		assert.Equal(t, current.Version+1, saved.Version)
		return nil
	})
	require.NoError(t, err)

	loaded, err := s.GetAccount(ctx, acc.ID)
	require.NoError(t, err)
	assert.True(t, loaded.Balance.Equal(money.MustParse("12.5")))
	assert.Equal(t, int64(2), loaded.Version)
}

func TestRunInTxRollsBackOnError(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	from := seedAccount(t, s, "100")
	to := seedAccount(t, s, "0")
	boom := errors.New("second leg failed")

	err := s.RunInTx(ctx, func(as AccountStore) error {
		current, err := as.GetByID(ctx, from.ID)
		if err != nil {
			return err
		}
		current.Balance = current.Balance.Sub(money.MustParse("40"))
		if _, err := as.Save(ctx, current); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	loadedFrom, err := s.GetAccount(ctx, from.ID)
	require.NoError(t, err)
	loadedTo, err := s.GetAccount(ctx, to.ID)
	require.NoError(t, err)
	assert.True(t, loadedFrom.Balance.Equal(money.MustParse("100")))
	assert.True(t, loadedTo.Balance.IsZero())
}

func TestRunInTxRollsBackOnPanic(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	acc := seedAccount(t, s, "5")

	err := s.RunInTx(ctx, func(as AccountStore) error {
		current, err := as.GetByID(ctx, acc.ID)
		require.NoError(t, err)
		current.Balance = money.Zero
		_, err = as.Save(ctx, current)
		require.NoError(t, err)
		panic("unexpected")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected")

	loaded, err := s.GetAccount(ctx, acc.ID)
	require.NoError(t, err)
	assert.True(t, loaded.Balance.Equal(money.MustParse("5")))
}

func TestSaveDetectsStaleVersion(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	acc := seedAccount(t, s, "10")

	stale := acc
	err := s.RunInTx(ctx, func(as AccountStore) error {
		current, err := as.GetByID(ctx, acc.ID)
		if err != nil {
			return err
		}
		current.Balance = money.MustParse("1")
		_, err = as.Save(ctx, current)
		return err
	})
	require.NoError(t, err)

	err = s.RunInTx(ctx, func(as AccountStore) error {
		stale.Balance = money.MustParse("999")
		_, err := as.Save(ctx, stale)
		return err
	})
	assert.ErrorIs(t, err, ledger.ErrConcurrencyConflict)

	loaded, err := s.GetAccount(ctx, acc.ID)
	require.NoError(t, err)
	assert.True(t, loaded.Balance.Equal(money.MustParse("1")))
}

func TestSaveAllOrdersByID(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	a := seedAccount(t, s, "1")
	b := seedAccount(t, s, "2")

	var saved []ledger.Account
	err := s.RunInTx(ctx, func(as AccountStore) error {
		var err error
		saved, err = as.SaveAll(ctx, b, a)
		return err
	})
	require.NoError(t, err)
	require.Len(t, saved, 2)
	assert.Equal(t, a.ID, saved[0].ID)
	assert.Equal(t, b.ID, saved[1].ID)
}

func TestGetByIDInsideTxNotFound(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	err := s.RunInTx(ctx, func(as AccountStore) error {
		_, err := as.GetByID(ctx, 7)
		return err
	})
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
}

func TestRunInTxCanceledContext(t *testing.T) {
	s := setupTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.RunInTx(ctx, func(as AccountStore) error { return nil })
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrTimeout)
}

func TestPing(t *testing.T) {
	s := setupTestStore(t)
	assert.NoError(t, s.Ping(context.Background()))
}

func TestBalanceRoundTripsExactly(t *testing.T) {
	for _, balance := range []string{
		"12345678901234567.01",
		"0.000000000000000001",
		"999999999999999999999999999999.999999999999999999",
	} {
		t.Run(balance, func(t *testing.T) {
			s := setupTestStore(t)
			acc := seedAccount(t, s, balance)

			loaded, err := s.GetAccount(context.Background(), acc.ID)
			require.NoError(t, err)
			assert.Equal(t, balance, loaded.Balance.String())
		})
	}
}

func TestSaveReturnsPersistedBalance(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	acc := seedAccount(t, s, "0.1")

	var saved ledger.Account
	err := s.RunInTx(ctx, func(as AccountStore) error {
		current, err := as.GetByID(ctx, acc.ID)
		if err != nil {
			return err
		}
		current.Balance = current.Balance.Add(money.MustParse("12345678901234567.01"))
		saved, err = as.Save(ctx, current)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, "12345678901234567.11", saved.Balance.String())
	assert.Equal(t, acc.Version+1, saved.Version)

	loaded, err := s.GetAccount(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, saved.Balance.String(), loaded.Balance.String())
	assert.Equal(t, saved.Version, loaded.Version)

	err = s.RunInTx(ctx, func(as AccountStore) error {
		current, err := as.GetByID(ctx, acc.ID)
		if err != nil {
			return err
		}
		current.Balance = current.Balance.Add(money.MustParse("0.000000000000000001"))
		saved, err = as.Save(ctx, current)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, "12345678901234567.110000000000000001", saved.Balance.String())

	loaded, err = s.GetAccount(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, saved.Balance.String(), loaded.Balance.String())
}

func TestMapErrorNumericOutOfRange(t *testing.T) {
	err := mapError(&pgconn.PgError{Code: dbutil.NumericOutOfRangeErrorCode}, "save")

	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
	assert.NotErrorIs(t, err, ledger.ErrStoreUnavailable)
	assert.False(t, dbutil.IsRetryable(err))
	assert.Equal(t, 400, commonerrors.StatusOf(err))
}
