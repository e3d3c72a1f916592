package store

import (
	"context"
	"time"

	"github.com/alpha-fi/cheddar-nft-minter/internal/store/schema"
)

// Store defines the interface for ledger persistence. Lookups return
// (nil, nil) when the row does not exist; mapping that to a contract error is
// the engine's concern.
//
//go:generate mockgen -source=store.go -destination=../mocks/store.go -package=mocks -mock_names=Store=MockStore
type Store interface {
	// WithinTransaction runs fn against a transactional view of the store.
	// fn returning an error rolls back every write made through that view.
	WithinTransaction(ctx context.Context, fn func(Store) error) error

	// GetState retrieves the singleton contract state row
	GetState(ctx context.Context) (*schema.ContractState, error)
	// CreateState inserts the singleton contract state row; fails if it exists
	CreateState(ctx context.Context, state *schema.ContractState) error
	// SaveState persists mutations to the contract state row
	SaveState(ctx context.Context, state *schema.ContractState) error

	// GetToken retrieves a token by its token id
	GetToken(ctx context.Context, tokenID string) (*schema.Token, error)
	// CreateToken inserts a freshly minted token
	CreateToken(ctx context.Context, token *schema.Token) error
	// SaveToken persists owner and approval-seed mutations
	SaveToken(ctx context.Context, token *schema.Token) error
	// CountTokens returns the total minted supply
	CountTokens(ctx context.Context) (uint64, error)
	// CountTokensByOwner returns the supply owned by one account
	CountTokensByOwner(ctx context.Context, owner string) (uint64, error)
	// ListTokens pages tokens in insertion order
	ListTokens(ctx context.Context, offset uint64, limit int) ([]schema.Token, error)
	// ListTokensByOwner pages one owner's tokens in insertion order
	ListTokensByOwner(ctx context.Context, owner string, offset uint64, limit int) ([]schema.Token, error)

	// GetApproval retrieves one approval grant
	GetApproval(ctx context.Context, tokenID, account string) (*schema.TokenApproval, error)
	// ListApprovals retrieves every approval on a token
	ListApprovals(ctx context.Context, tokenID string) ([]schema.TokenApproval, error)
	// CountApprovals counts approvals on a token
	CountApprovals(ctx context.Context, tokenID string) (int64, error)
	// UpsertApproval inserts or replaces the grant for (token, account)
	UpsertApproval(ctx context.Context, approval *schema.TokenApproval) error
	// DeleteApproval removes one grant
	DeleteApproval(ctx context.Context, tokenID, account string) error
	// DeleteAllApprovals removes every grant on a token
	DeleteAllApprovals(ctx context.Context, tokenID string) error

	// GetCheddarDeposit retrieves an account's internal cheddar balance
	GetCheddarDeposit(ctx context.Context, account string) (*schema.CheddarDeposit, error)
	// UpsertCheddarDeposit inserts or replaces a cheddar balance row
	UpsertCheddarDeposit(ctx context.Context, deposit *schema.CheddarDeposit) error
	// DeleteCheddarDeposit unregisters an account's cheddar balance
	DeleteCheddarDeposit(ctx context.Context, account string) error

	// GetWhitelistEntry retrieves an account's remaining allowance
	GetWhitelistEntry(ctx context.Context, account string) (*schema.WhitelistEntry, error)
	// UpsertWhitelistEntry inserts or replaces an allowance entry
	UpsertWhitelistEntry(ctx context.Context, entry *schema.WhitelistEntry) error

	// IsAdmin reports admin-set membership
	IsAdmin(ctx context.Context, account string) (bool, error)
	// AddAdmin inserts an account into the admin set; adding twice is a no-op
	AddAdmin(ctx context.Context, account string, grantedAt time.Time) error
	// ListAdmins returns the admin set in insertion order
	ListAdmins(ctx context.Context) ([]string, error)

	// SeedRaffle fills the raffle with token numbers 0..size-1
	SeedRaffle(ctx context.Context, size uint64) error
	// CountRaffleEntries returns the number of undrawn token numbers
	CountRaffleEntries(ctx context.Context) (uint64, error)
	// GetRaffleEntry retrieves the raffle slot at idx
	GetRaffleEntry(ctx context.Context, idx uint64) (*schema.RaffleEntry, error)
	// FindRaffleEntryByValue retrieves the slot holding a specific token number
	FindRaffleEntryByValue(ctx context.Context, value uint64) (*schema.RaffleEntry, error)
	// SaveRaffleEntry persists a swapped raffle slot
	SaveRaffleEntry(ctx context.Context, entry *schema.RaffleEntry) error
	// DeleteRaffleEntry removes the raffle slot at idx
	DeleteRaffleEntry(ctx context.Context, idx uint64) error

	// CreatePendingTransfer records a provisionally applied transfer_call
	CreatePendingTransfer(ctx context.Context, pending *schema.PendingTransfer) error
	// GetPendingTransfer retrieves a pending transfer by correlation id
	GetPendingTransfer(ctx context.Context, id string) (*schema.PendingTransfer, error)
	// DeletePendingTransfer consumes a pending transfer
	DeletePendingTransfer(ctx context.Context, id string) error
	// CountPendingTransfers counts unresolved transfer_call records
	CountPendingTransfers(ctx context.Context) (int64, error)

	// CreateLinkdropKey registers a single-use claimable key
	CreateLinkdropKey(ctx context.Context, key *schema.LinkdropKey) error
	// GetLinkdropKey retrieves a pending linkdrop by public key
	GetLinkdropKey(ctx context.Context, publicKey string) (*schema.LinkdropKey, error)
	// DeleteLinkdropKey consumes a pending linkdrop
	DeleteLinkdropKey(ctx context.Context, publicKey string) error

	// CreateFundTransfer journals an outbound balance movement
	CreateFundTransfer(ctx context.Context, transfer *schema.FundTransfer) error
}
