package bookkeeper

import (
	"time"

	"github.com/Aidin1998/accountmanager/internal/cache"
	"github.com/Aidin1998/accountmanager/internal/config"
)

// TransactionOptions defines how a ledger operation is bounded and retried
type TransactionOptions struct {
	// Timeout bounds the whole operation: lock waits, every attempt and the
	// backoff between them.
	Timeout time.Duration
	// MaxRetries is the number of extra attempts after a concurrency conflict.
	MaxRetries   int
	RetryBackoff time.Duration
}

// DefaultTransactionOptions returns default transaction options
func DefaultTransactionOptions() *TransactionOptions {
	return &TransactionOptions{
		Timeout:      5 * time.Second,
		MaxRetries:   3,
		RetryBackoff: 50 * time.Millisecond,
	}
}

// TransactionOptionsFromConfig maps the ledger config section.
func TransactionOptionsFromConfig(cfg config.LedgerConfig) *TransactionOptions {
	return &TransactionOptions{
		Timeout:      cfg.Timeout,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}
}

// Option configures a Service.
type Option func(*Service)

func WithTransactionOptions(opts *TransactionOptions) Option {
	return func(s *Service) {
		if opts != nil {
			s.opts = opts
		}
	}
}

// WithBalanceCache enables the read-through cache for GetAccount.
func WithBalanceCache(c cache.BalanceCache) Option {
	return func(s *Service) { s.cache = c }
}
