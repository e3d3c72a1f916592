package schema

import "time"

// Token represents the tokens table. Rows are only ever inserted and updated;
// supply is monotonic for the life of the contract. The autoincrement primary
// key doubles as the stable enumeration order.
type Token struct {
	// ID is the internal database primary key and insertion index
	ID int64 `gorm:"column:id;primaryKey;autoIncrement"`
	// TokenID is the opaque token identifier, unique and immutable once minted
	TokenID string `gorm:"column:token_id;not null;uniqueIndex;type:text"`
	// OwnerID is the current owner account, mutated by transfers
	OwnerID string `gorm:"column:owner_id;not null;type:text;index"`
	// Metadata is the immutable token metadata, serialized as JSON
	Metadata string `gorm:"column:metadata;not null;type:text"`
	// NextApprovalID seeds the strictly increasing per-token approval id sequence
	NextApprovalID uint64 `gorm:"column:next_approval_id;not null;default:0"`
	// CreatedAt is the mint time
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

// TableName specifies the table name for the Token model
func (Token) TableName() string {
	return "tokens"
}

// TokenApproval grants one account transfer rights over one token. The
// approval id detects stale grants; it is never reused, even after revoke.
type TokenApproval struct {
	ID int64 `gorm:"column:id;primaryKey;autoIncrement"`
	// TokenID references tokens.token_id
	TokenID string `gorm:"column:token_id;not null;type:text;uniqueIndex:idx_approvals_token_account,priority:1"`
	// AccountID is the approved account
	AccountID string `gorm:"column:account_id;not null;type:text;uniqueIndex:idx_approvals_token_account,priority:2"`
	// ApprovalID is the monotonic per-token grant identifier
	ApprovalID uint64 `gorm:"column:approval_id;not null"`
	// CreatedAt is the grant time
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

// TableName specifies the table name for the TokenApproval model
func (TokenApproval) TableName() string {
	return "token_approvals"
}
