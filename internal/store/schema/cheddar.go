package schema

import "time"

// CheddarDeposit is one account's internal cheddar balance, funded through
// ft_on_transfer and spent on cheddar-paid mints. Rows exist only while the
// balance is positive; spending or withdrawing down to zero unregisters the
// account.
type CheddarDeposit struct {
	// AccountID is the registered account
	AccountID string `gorm:"column:account_id;primaryKey;type:text"`
	// Balance is the deposited amount in cheddar base units
	Balance string `gorm:"column:balance;not null;type:text"`
	// CreatedAt is the registration time
	CreatedAt time.Time `gorm:"column:created_at;not null"`
	// UpdatedAt tracks balance mutations
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

// TableName specifies the table name for the CheddarDeposit model
func (CheddarDeposit) TableName() string {
	return "cheddar_deposits"
}
