package schema

import "time"

// ContractStateID is the primary key of the singleton contract state row.
const ContractStateID = 1

// ContractState is the singleton row holding collection-wide contract state.
// It exists only after the contract has been initialized.
type ContractState struct {
	// ID is always ContractStateID; the unique constraint enforces one-time initialization
	ID uint32 `gorm:"column:id;primaryKey"`
	// OwnerID is the current contract owner account
	OwnerID string `gorm:"column:owner_id;not null;type:text"`
	// Metadata is the collection metadata, serialized as JSON
	Metadata string `gorm:"column:metadata;not null;type:text"`
	// Sale is the sale configuration, serialized as JSON
	Sale string `gorm:"column:sale;not null;type:text"`
	// Minted counts tokens minted over the life of the contract; it never decreases
	Minted uint64 `gorm:"column:minted;not null;default:0"`
	// PendingTokens counts tokens reserved by linkdrops that are not minted yet
	PendingTokens uint32 `gorm:"column:pending_tokens;not null;default:0"`
	// LinkdropContract is the account of the external linkdrop facility
	LinkdropContract string `gorm:"column:linkdrop_contract;not null;type:text"`
	// CheddarContract is the fungible token account accepted for cheddar
	// payments; empty disables them
	CheddarContract string `gorm:"column:cheddar_contract;not null;default:'';type:text"`
	// CheddarNear is the NEAR to cheddar conversion rate scaled by 1e3:
	// with 1 NEAR = 438 cheddar the rate is 438000
	CheddarNear uint32 `gorm:"column:cheddar_near;not null;default:0"`
	// CheddarBoost is the percentage of the converted price actually charged,
	// 100 minus the configured discount
	CheddarBoost uint32 `gorm:"column:cheddar_boost;not null;default:100"`
	// CreatedAt is the initialization time
	CreatedAt time.Time `gorm:"column:created_at;not null"`
	// UpdatedAt tracks the last state mutation
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

// TableName specifies the table name for the ContractState model
func (ContractState) TableName() string {
	return "contract_state"
}
