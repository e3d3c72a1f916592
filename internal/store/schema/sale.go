package schema

import "time"

// WhitelistEntry records an account's remaining mint allowance. During the
// presale only whitelisted accounts may mint; during the open sale entries are
// seeded lazily from the global allowance when one is configured.
type WhitelistEntry struct {
	// AccountID is the whitelisted account
	AccountID string `gorm:"column:account_id;primaryKey;type:text"`
	// Allowance is the number of tokens the account may still mint
	Allowance uint32 `gorm:"column:allowance;not null"`
	// UpdatedAt tracks allowance mutations
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

// TableName specifies the table name for the WhitelistEntry model
func (WhitelistEntry) TableName() string {
	return "whitelist_entries"
}

// Admin is a member of the admin set, granted elevated rights next to the owner.
type Admin struct {
	// AccountID is the admin account
	AccountID string `gorm:"column:account_id;primaryKey;type:text"`
	// CreatedAt orders the admin set for enumeration
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

// TableName specifies the table name for the Admin model
func (Admin) TableName() string {
	return "admins"
}

// RaffleEntry is one remaining unminted token number. Draws use swap-remove:
// the drawn index is overwritten with the last entry and the tail deleted, so
// indexes stay contiguous in [0, count).
type RaffleEntry struct {
	// Idx is the contiguous raffle slot
	Idx uint64 `gorm:"column:idx;primaryKey;autoIncrement:false"`
	// Value is the token number held in the slot
	Value uint64 `gorm:"column:value;not null"`
}

// TableName specifies the table name for the RaffleEntry model
func (RaffleEntry) TableName() string {
	return "raffle_entries"
}
