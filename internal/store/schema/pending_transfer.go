package schema

import "time"

// PendingTransfer is the provisional record of a transfer_call: the transfer
// is already applied to the token row, and this record carries everything the
// resolver needs to compensate if the receiver rejects. Consumed exactly once.
type PendingTransfer struct {
	// ID is the call correlation id (uuid)
	ID string `gorm:"column:id;primaryKey;type:text"`
	// TokenID is the transferred token
	TokenID string `gorm:"column:token_id;not null;type:text;index"`
	// SenderID is the account that initiated the transfer_call
	SenderID string `gorm:"column:sender_id;not null;type:text"`
	// PreviousOwner is the owner to restore on rollback
	PreviousOwner string `gorm:"column:previous_owner;not null;type:text"`
	// Receiver is the account whose hook decides acceptance
	Receiver string `gorm:"column:receiver;not null;type:text"`
	// Approvals is the cleared approval set, serialized as JSON, restored on rollback
	Approvals string `gorm:"column:approvals;not null;type:text"`
	// Memo is the optional transfer memo
	Memo *string `gorm:"column:memo;type:text"`
	// CreatedAt is the provisional apply time
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

// TableName specifies the table name for the PendingTransfer model
func (PendingTransfer) TableName() string {
	return "pending_transfers"
}

// LinkdropKey is a single-use claimable token reservation gated by a public
// key. The row is deleted exactly once, on claim or on facility failure.
type LinkdropKey struct {
	// PublicKey is the base58-encoded one-time-use key
	PublicKey string `gorm:"column:public_key;primaryKey;type:text"`
	// Creator is the account that funded the linkdrop
	Creator string `gorm:"column:creator;not null;type:text"`
	// Deposit is the attached amount in yoctoNEAR, refunded on facility failure
	Deposit string `gorm:"column:deposit;not null;type:text"`
	// AllowanceHeld marks that creating the reservation consumed one unit of
	// the creator's mint allowance, to be restored on facility failure
	AllowanceHeld bool `gorm:"column:allowance_held;not null;default:false"`
	// CreatedAt is the registration time
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

// TableName specifies the table name for the LinkdropKey model
func (LinkdropKey) TableName() string {
	return "linkdrop_keys"
}

// FundTransferKind classifies outbound balance movements.
type FundTransferKind string

const (
	// FundTransferRefund returns surplus attached deposit to the caller
	FundTransferRefund FundTransferKind = "refund"
	// FundTransferRoyalty distributes primary-sale proceeds per initial royalties
	FundTransferRoyalty FundTransferKind = "royalty"
	// FundTransferCheddarWithdraw pays an internal cheddar balance back out
	// through the fungible token contract
	FundTransferCheddarWithdraw FundTransferKind = "cheddar_withdraw"
)

// FundTransfer journals one outbound balance movement executed by the
// platform on the contract's behalf.
type FundTransfer struct {
	ID int64 `gorm:"column:id;primaryKey;autoIncrement"`
	// Receiver is the destination account
	Receiver string `gorm:"column:receiver;not null;type:text;index"`
	// Amount is the transferred amount in yoctoNEAR
	Amount string `gorm:"column:amount;not null;type:text"`
	// Kind classifies the movement
	Kind FundTransferKind `gorm:"column:kind;not null;type:text"`
	// Memo is an optional annotation
	Memo *string `gorm:"column:memo;type:text"`
	// CreatedAt is the journal time
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

// TableName specifies the table name for the FundTransfer model
func (FundTransfer) TableName() string {
	return "fund_transfers"
}
