package store

import (
	"time"

	"github.com/Aidin1998/accountmanager/internal/ledger"
	"github.com/Aidin1998/accountmanager/pkg/money"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// exactAmount is the balance column. It is declared without precision or
// scale so the database keeps every digit: unbounded numeric on PostgreSQL
// and text on SQLite, whose numeric affinity would convert to float.
type exactAmount struct {
	money.Amount
}

func (exactAmount) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	if db.Dialector.Name() == "sqlite" {
		return "text"
	}
	return "numeric"
}

// CustomerRecord is the persisted form of a customer.
type CustomerRecord struct {
	ID        int64     `gorm:"column:customer_id;primaryKey;autoIncrement"`
	FirstName string    `gorm:"type:varchar(100);not null"`
	LastName  string    `gorm:"type:varchar(100);not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func (CustomerRecord) TableName() string {
	return "customers"
}

// AccountRecord is the persisted form of an account. Version is bumped on
// every balance update and used as the compare-and-swap token.
type AccountRecord struct {
	ID         int64       `gorm:"column:account_id;primaryKey;autoIncrement"`
	Balance    exactAmount `gorm:"not null"`
	Currency   string      `gorm:"type:varchar(3);not null"`
	CustomerID int64       `gorm:"not null;index:idx_account_customer"`
	Version    int64       `gorm:"not null"`
	CreatedAt  time.Time   `gorm:"not null"`
	UpdatedAt  time.Time

	Customer CustomerRecord `gorm:"foreignKey:CustomerID;references:ID;constraint:OnDelete:RESTRICT"`
}

func (AccountRecord) TableName() string {
	return "accounts"
}

func (r AccountRecord) toSnapshot() ledger.Account {
	return ledger.Account{
		ID:         r.ID,
		Balance:    r.Balance.Amount,
		Currency:   r.Currency,
		CustomerID: r.CustomerID,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
		Version:    r.Version,
	}
}

func (r CustomerRecord) toCustomer() ledger.Customer {
	return ledger.Customer{
		ID:        r.ID,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		CreatedAt: r.CreatedAt,
	}
}
