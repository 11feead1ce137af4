package dbutil

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/Aidin1998/accountmanager/common/errors"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestWrapError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		retry  bool
	}{
		{"record not found", gorm.ErrRecordNotFound, http.StatusNotFound, false},
		{"duplicate key", &pgconn.PgError{Code: DuplicateKeyErrorCode}, http.StatusConflict, false},
		{"serialization failure", &pgconn.PgError{Code: SerializationFailureErrorCode}, http.StatusConflict, true},
		{"deadlock", fmt.Errorf("exec: %w", &pgconn.PgError{Code: DeadlockDetectedErrorCode}), http.StatusConflict, true},
		{"nowait", &pgconn.PgError{Code: LockNotAvailableErrorCode}, http.StatusConflict, true},
		{"sqlite busy", fmt.Errorf("database is locked (5) (SQLITE_BUSY)"), http.StatusConflict, true},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout, false},
		{"numeric out of range", &pgconn.PgError{Code: NumericOutOfRangeErrorCode}, http.StatusBadRequest, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := WrapError(tt.err)
			assert.Equal(t, tt.status, errors.StatusOf(wrapped))
			assert.Equal(t, tt.retry, IsRetryable(wrapped))
		})
	}
}

func TestWrapErrorPassThrough(t *testing.T) {
	assert.NoError(t, WrapError(nil))

	typed := errors.Invalid.Explain("already typed")
	assert.Same(t, typed, WrapError(typed))

	plain := fmt.Errorf("something else")
	assert.Equal(t, plain, WrapError(plain))
}

type widget struct {
	ID   int64 `gorm:"primaryKey"`
	Name string
}

func TestFindOne(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&widget{}))
	require.NoError(t, db.Create(&widget{Name: "a"}).Error)

	found, err := FindOne[widget](db.Where("name = ?", "a"))
	require.NoError(t, err)
	assert.Equal(t, "a", found.Name)

	_, err = FindOne[widget](db.Where("name = ?", "missing"))
	assert.ErrorIs(t, err, errors.NotFound)
}

func TestWrapErrorNumericOutOfRange(t *testing.T) {
	wrapped := WrapError(&pgconn.PgError{Code: NumericOutOfRangeErrorCode, Message: "numeric field overflow"})
	assert.ErrorIs(t, wrapped, ErrValueOutOfRange)
	assert.NotErrorIs(t, wrapped, ErrTimeout)
}
