package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/alpha-fi/cheddar-nft-minter/internal/store/schema"
)

type gormStore struct {
	db *gorm.DB
}

// NewStore creates a gorm-backed store
func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// Migrate creates or updates the ledger tables
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&schema.ContractState{},
		&schema.Token{},
		&schema.TokenApproval{},
		&schema.WhitelistEntry{},
		&schema.Admin{},
		&schema.RaffleEntry{},
		&schema.PendingTransfer{},
		&schema.LinkdropKey{},
		&schema.FundTransfer{},
		&schema.CheddarDeposit{},
	)
}

// ConfigureConnectionPool configures the connection pool settings for a GORM
// database connection. Zero values fall back to reasonable defaults.
func ConfigureConnectionPool(db *gorm.DB, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if maxOpenConns == 0 {
		maxOpenConns = 20
	}
	if maxIdleConns == 0 {
		maxIdleConns = 5
	}
	if connMaxLifetime == 0 {
		connMaxLifetime = 5 * time.Minute
	}
	if connMaxIdleTime == 0 {
		connMaxIdleTime = 10 * time.Minute
	}
	if maxIdleConns > maxOpenConns {
		maxIdleConns = maxOpenConns
	}

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	return nil
}

// WithinTransaction runs fn against a transactional store view
func (s *gormStore) WithinTransaction(ctx context.Context, fn func(Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}

// GetState retrieves the singleton contract state row
func (s *gormStore) GetState(ctx context.Context) (*schema.ContractState, error) {
	var state schema.ContractState
	err := s.db.WithContext(ctx).Where("id = ?", schema.ContractStateID).First(&state).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get contract state: %w", err)
	}
	return &state, nil
}

// CreateState inserts the singleton contract state row
func (s *gormStore) CreateState(ctx context.Context, state *schema.ContractState) error {
	state.ID = schema.ContractStateID
	if err := s.db.WithContext(ctx).Create(state).Error; err != nil {
		return fmt.Errorf("failed to create contract state: %w", err)
	}
	return nil
}

// SaveState persists mutations to the contract state row
func (s *gormStore) SaveState(ctx context.Context, state *schema.ContractState) error {
	if err := s.db.WithContext(ctx).Save(state).Error; err != nil {
		return fmt.Errorf("failed to save contract state: %w", err)
	}
	return nil
}

// GetToken retrieves a token by its token id
func (s *gormStore) GetToken(ctx context.Context, tokenID string) (*schema.Token, error) {
	var token schema.Token
	err := s.db.WithContext(ctx).Where("token_id = ?", tokenID).First(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get token: %w", err)
	}
	return &token, nil
}

// CreateToken inserts a freshly minted token
func (s *gormStore) CreateToken(ctx context.Context, token *schema.Token) error {
	if err := s.db.WithContext(ctx).Create(token).Error; err != nil {
		return fmt.Errorf("failed to create token: %w", err)
	}
	return nil
}

// SaveToken persists owner and approval-seed mutations
func (s *gormStore) SaveToken(ctx context.Context, token *schema.Token) error {
	if err := s.db.WithContext(ctx).Save(token).Error; err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

// CountTokens returns the total minted supply
func (s *gormStore) CountTokens(ctx context.Context) (uint64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&schema.Token{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count tokens: %w", err)
	}
	return uint64(count), nil
}

// CountTokensByOwner returns the supply owned by one account
func (s *gormStore) CountTokensByOwner(ctx context.Context, owner string) (uint64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&schema.Token{}).Where("owner_id = ?", owner).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count tokens for owner: %w", err)
	}
	return uint64(count), nil
}

// ListTokens pages tokens in insertion order
func (s *gormStore) ListTokens(ctx context.Context, offset uint64, limit int) ([]schema.Token, error) {
	var tokens []schema.Token
	err := s.db.WithContext(ctx).
		Order("id ASC").
		Offset(int(offset)). //nolint:gosec // offsets beyond the supply return empty pages
		Limit(limit).
		Find(&tokens).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list tokens: %w", err)
	}
	return tokens, nil
}

// ListTokensByOwner pages one owner's tokens in insertion order
func (s *gormStore) ListTokensByOwner(ctx context.Context, owner string, offset uint64, limit int) ([]schema.Token, error) {
	var tokens []schema.Token
	err := s.db.WithContext(ctx).
		Where("owner_id = ?", owner).
		Order("id ASC").
		Offset(int(offset)). //nolint:gosec
		Limit(limit).
		Find(&tokens).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list tokens for owner: %w", err)
	}
	return tokens, nil
}

// GetApproval retrieves one approval grant
func (s *gormStore) GetApproval(ctx context.Context, tokenID, account string) (*schema.TokenApproval, error) {
	var approval schema.TokenApproval
	err := s.db.WithContext(ctx).
		Where("token_id = ? AND account_id = ?", tokenID, account).
		First(&approval).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get approval: %w", err)
	}
	return &approval, nil
}

// ListApprovals retrieves every approval on a token
func (s *gormStore) ListApprovals(ctx context.Context, tokenID string) ([]schema.TokenApproval, error) {
	var approvals []schema.TokenApproval
	err := s.db.WithContext(ctx).
		Where("token_id = ?", tokenID).
		Order("approval_id ASC").
		Find(&approvals).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list approvals: %w", err)
	}
	return approvals, nil
}

// CountApprovals counts approvals on a token
func (s *gormStore) CountApprovals(ctx context.Context, tokenID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&schema.TokenApproval{}).
		Where("token_id = ?", tokenID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count approvals: %w", err)
	}
	return count, nil
}

// UpsertApproval inserts or replaces the grant for (token, account)
func (s *gormStore) UpsertApproval(ctx context.Context, approval *schema.TokenApproval) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "token_id"}, {Name: "account_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"approval_id", "created_at"}),
		}).
		Create(approval).Error
	if err != nil {
		return fmt.Errorf("failed to upsert approval: %w", err)
	}
	return nil
}

// DeleteApproval removes one grant
func (s *gormStore) DeleteApproval(ctx context.Context, tokenID, account string) error {
	err := s.db.WithContext(ctx).
		Where("token_id = ? AND account_id = ?", tokenID, account).
		Delete(&schema.TokenApproval{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete approval: %w", err)
	}
	return nil
}

// DeleteAllApprovals removes every grant on a token
func (s *gormStore) DeleteAllApprovals(ctx context.Context, tokenID string) error {
	err := s.db.WithContext(ctx).
		Where("token_id = ?", tokenID).
		Delete(&schema.TokenApproval{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete approvals: %w", err)
	}
	return nil
}

// GetWhitelistEntry retrieves an account's remaining allowance
func (s *gormStore) GetWhitelistEntry(ctx context.Context, account string) (*schema.WhitelistEntry, error) {
	var entry schema.WhitelistEntry
	err := s.db.WithContext(ctx).Where("account_id = ?", account).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get whitelist entry: %w", err)
	}
	return &entry, nil
}

// UpsertWhitelistEntry inserts or replaces an allowance entry
func (s *gormStore) UpsertWhitelistEntry(ctx context.Context, entry *schema.WhitelistEntry) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "account_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"allowance", "updated_at"}),
		}).
		Create(entry).Error
	if err != nil {
		return fmt.Errorf("failed to upsert whitelist entry: %w", err)
	}
	return nil
}

// GetCheddarDeposit retrieves an account's internal cheddar balance
func (s *gormStore) GetCheddarDeposit(ctx context.Context, account string) (*schema.CheddarDeposit, error) {
	var deposit schema.CheddarDeposit
	err := s.db.WithContext(ctx).Where("account_id = ?", account).First(&deposit).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cheddar deposit: %w", err)
	}
	return &deposit, nil
}

// UpsertCheddarDeposit inserts or replaces a cheddar balance row
func (s *gormStore) UpsertCheddarDeposit(ctx context.Context, deposit *schema.CheddarDeposit) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "account_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"balance", "updated_at"}),
		}).
		Create(deposit).Error
	if err != nil {
		return fmt.Errorf("failed to upsert cheddar deposit: %w", err)
	}
	return nil
}

// DeleteCheddarDeposit unregisters an account's cheddar balance
func (s *gormStore) DeleteCheddarDeposit(ctx context.Context, account string) error {
	err := s.db.WithContext(ctx).Where("account_id = ?", account).Delete(&schema.CheddarDeposit{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete cheddar deposit: %w", err)
	}
	return nil
}

// IsAdmin reports admin-set membership
func (s *gormStore) IsAdmin(ctx context.Context, account string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&schema.Admin{}).
		Where("account_id = ?", account).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check admin membership: %w", err)
	}
	return count > 0, nil
}

// AddAdmin inserts an account into the admin set
func (s *gormStore) AddAdmin(ctx context.Context, account string, grantedAt time.Time) error {
	admin := schema.Admin{AccountID: account, CreatedAt: grantedAt}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&admin).Error
	if err != nil {
		return fmt.Errorf("failed to add admin: %w", err)
	}
	return nil
}

// ListAdmins returns the admin set in insertion order
func (s *gormStore) ListAdmins(ctx context.Context) ([]string, error) {
	var admins []schema.Admin
	err := s.db.WithContext(ctx).Order("created_at ASC, account_id ASC").Find(&admins).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list admins: %w", err)
	}
	accounts := make([]string, 0, len(admins))
	for _, admin := range admins {
		accounts = append(accounts, admin.AccountID)
	}
	return accounts, nil
}

// SeedRaffle fills the raffle with token numbers 0..size-1
func (s *gormStore) SeedRaffle(ctx context.Context, size uint64) error {
	const batchSize = 500
	entries := make([]schema.RaffleEntry, 0, batchSize)
	for i := uint64(0); i < size; i++ {
		entries = append(entries, schema.RaffleEntry{Idx: i, Value: i})
		if len(entries) == batchSize || i == size-1 {
			if err := s.db.WithContext(ctx).Create(&entries).Error; err != nil {
				return fmt.Errorf("failed to seed raffle: %w", err)
			}
			entries = entries[:0]
		}
	}
	return nil
}

// CountRaffleEntries returns the number of undrawn token numbers
func (s *gormStore) CountRaffleEntries(ctx context.Context) (uint64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&schema.RaffleEntry{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count raffle entries: %w", err)
	}
	return uint64(count), nil
}

// GetRaffleEntry retrieves the raffle slot at idx
func (s *gormStore) GetRaffleEntry(ctx context.Context, idx uint64) (*schema.RaffleEntry, error) {
	var entry schema.RaffleEntry
	err := s.db.WithContext(ctx).Where("idx = ?", idx).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get raffle entry: %w", err)
	}
	return &entry, nil
}

// FindRaffleEntryByValue retrieves the slot holding a specific token number
func (s *gormStore) FindRaffleEntryByValue(ctx context.Context, value uint64) (*schema.RaffleEntry, error) {
	var entry schema.RaffleEntry
	err := s.db.WithContext(ctx).Where("value = ?", value).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find raffle entry: %w", err)
	}
	return &entry, nil
}

// SaveRaffleEntry persists a swapped raffle slot
func (s *gormStore) SaveRaffleEntry(ctx context.Context, entry *schema.RaffleEntry) error {
	err := s.db.WithContext(ctx).Model(&schema.RaffleEntry{}).
		Where("idx = ?", entry.Idx).
		Update("value", entry.Value).Error
	if err != nil {
		return fmt.Errorf("failed to save raffle entry: %w", err)
	}
	return nil
}

// DeleteRaffleEntry removes the raffle slot at idx
func (s *gormStore) DeleteRaffleEntry(ctx context.Context, idx uint64) error {
	err := s.db.WithContext(ctx).Where("idx = ?", idx).Delete(&schema.RaffleEntry{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete raffle entry: %w", err)
	}
	return nil
}

// CreatePendingTransfer records a provisionally applied transfer_call
func (s *gormStore) CreatePendingTransfer(ctx context.Context, pending *schema.PendingTransfer) error {
	if err := s.db.WithContext(ctx).Create(pending).Error; err != nil {
		return fmt.Errorf("failed to create pending transfer: %w", err)
	}
	return nil
}

// GetPendingTransfer retrieves a pending transfer by correlation id
func (s *gormStore) GetPendingTransfer(ctx context.Context, id string) (*schema.PendingTransfer, error) {
	var pending schema.PendingTransfer
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&pending).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get pending transfer: %w", err)
	}
	return &pending, nil
}

// DeletePendingTransfer consumes a pending transfer
func (s *gormStore) DeletePendingTransfer(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Where("id = ?", id).Delete(&schema.PendingTransfer{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete pending transfer: %w", err)
	}
	return nil
}

// CountPendingTransfers counts unresolved transfer_call records
func (s *gormStore) CountPendingTransfers(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&schema.PendingTransfer{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count pending transfers: %w", err)
	}
	return count, nil
}

// CreateLinkdropKey registers a single-use claimable key
func (s *gormStore) CreateLinkdropKey(ctx context.Context, key *schema.LinkdropKey) error {
	if err := s.db.WithContext(ctx).Create(key).Error; err != nil {
		return fmt.Errorf("failed to create linkdrop key: %w", err)
	}
	return nil
}

// GetLinkdropKey retrieves a pending linkdrop by public key
func (s *gormStore) GetLinkdropKey(ctx context.Context, publicKey string) (*schema.LinkdropKey, error) {
	var key schema.LinkdropKey
	err := s.db.WithContext(ctx).Where("public_key = ?", publicKey).First(&key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get linkdrop key: %w", err)
	}
	return &key, nil
}

// DeleteLinkdropKey consumes a pending linkdrop
func (s *gormStore) DeleteLinkdropKey(ctx context.Context, publicKey string) error {
	err := s.db.WithContext(ctx).Where("public_key = ?", publicKey).Delete(&schema.LinkdropKey{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete linkdrop key: %w", err)
	}
	return nil
}

// CreateFundTransfer journals an outbound balance movement
func (s *gormStore) CreateFundTransfer(ctx context.Context, transfer *schema.FundTransfer) error {
	if err := s.db.WithContext(ctx).Create(transfer).Error; err != nil {
		return fmt.Errorf("failed to create fund transfer: %w", err)
	}
	return nil
}
