// Concurrency tests for the bookkeeper Service
//
// Scenarios:
// 1. N concurrent withdrawals against one account succeed exactly floor(B/a) times
// 2. Concurrent opposing transfers between two accounts conserve the total
// 3. Mixed deposits and withdrawals never drive a balance negative
//
// Expected: No race conditions (run with -race), no double-spend, balances always correct.

package bookkeeper

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Aidin1998/accountmanager/internal/ledger"
	"github.com/Aidin1998/accountmanager/internal/lock"
	"github.com/Aidin1998/accountmanager/pkg/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestService(t *testing.T) (*Service, func(balance string) ledger.Account) {
	t.Helper()
	st := newTestStore(t)
	svc := NewService(zap.NewNop(), st, lock.NewLocalLocker(), WithTransactionOptions(&TransactionOptions{
		Timeout:      20 * time.Second,
		MaxRetries:   5,
		RetryBackoff: time.Millisecond,
	}))

	customer, err := svc.CreateCustomer(context.Background(), "Load", "Test")
	require.NoError(t, err)

	open := func(balance string) ledger.Account {
		initial := money.MustParse(balance)
		acc, err := svc.CreateAccount(context.Background(), customer.ID, "USD", &initial)
		require.NoError(t, err)
		return acc
	}
	return svc, open
}

func TestConcurrentWithdrawalsNeverOverdraw(t *testing.T) {
	svc, open := setupTestService(t)
	ctx := context.Background()
	acc := open("255")
	amount := money.MustParse("10")

	const n = 50
	var (
		wg           sync.WaitGroup
		succeeded    atomic.Int32
		insufficient atomic.Int32
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Withdraw(ctx, acc.ID, amount)
			if err == nil {
				succeeded.Add(1)
			} else if assert.ErrorIs(t, err, ledger.ErrInsufficientFunds) {
				insufficient.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(25), succeeded.Load())
	assert.Equal(t, int32(n-25), insufficient.Load())

	final, err := svc.GetAccount(ctx, acc.ID)
	require.NoError(t, err)
	assert.True(t, final.Balance.Equal(money.MustParse("5")), "got %s", final.Balance)
}

func TestConcurrentOpposingTransfersConserveMoney(t *testing.T) {
	svc, open := setupTestService(t)
	ctx := context.Background()
	a := open("1000")
	b := open("1000")

	const n = 40
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			from, to := a.ID, b.ID
			if i%2 == 1 {
				from, to = b.ID, a.ID
			}
			_, _, err := svc.Transfer(ctx, from, to, money.MustParse("7.25"))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	finalA, err := svc.GetAccount(ctx, a.ID)
	require.NoError(t, err)
	finalB, err := svc.GetAccount(ctx, b.ID)
	require.NoError(t, err)

	assert.True(t, finalA.Balance.Add(finalB.Balance).Equal(money.MustParse("2000")))
	assert.True(t, finalA.Balance.Equal(money.MustParse("1000")), "got %s", finalA.Balance)
}

func TestConcurrentMixedOperationsKeepBalanceNonNegative(t *testing.T) {
	svc, open := setupTestService(t)
	ctx := context.Background()
	acc := open("20")

	const n = 60
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		deposited = money.Zero
		withdrawn = money.Zero
	)
	rng := rand.New(rand.NewSource(1))
	amounts := make([]money.Amount, n)
	for i := range amounts {
		amounts[i] = money.NewFromInt(int64(rng.Intn(9) + 1))
	}

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%3 == 0 {
				if _, err := svc.Deposit(ctx, acc.ID, amounts[i]); assert.NoError(t, err) {
					mu.Lock()
					deposited = deposited.Add(amounts[i])
					mu.Unlock()
				}
				return
			}
			updated, err := svc.Withdraw(ctx, acc.ID, amounts[i])
			if err != nil {
				assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)
				return
			}
			assert.False(t, updated.Balance.IsNegative())
			mu.Lock()
			withdrawn = withdrawn.Add(amounts[i])
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	final, err := svc.GetAccount(ctx, acc.ID)
	require.NoError(t, err)
	assert.False(t, final.Balance.IsNegative())
	assert.True(t, final.Balance.Equal(money.MustParse("20").Add(deposited).Sub(withdrawn)),
		"final %s, deposited %s, withdrawn %s", final.Balance, deposited, withdrawn)
}
