package domain

import (
	"regexp"
)

// AccountID is a NEAR-style account identifier, e.g. "alice.near".
type AccountID string

var accountIDPattern = regexp.MustCompile(`^(([a-z\d]+[-_])*[a-z\d]+\.)*([a-z\d]+[-_])*[a-z\d]+$`)

// Valid reports whether the account id matches the account naming rules
// (2-64 characters of lowercase alphanumerics, separators, and dots).
func (a AccountID) Valid() bool {
	return len(a) >= 2 && len(a) <= 64 && accountIDPattern.MatchString(string(a))
}

// TokenID is the opaque, unique, immutable token identifier.
type TokenID string

// PublicKey is a base58-encoded public key gating a pending linkdrop.
type PublicKey string

// TimestampMs is milliseconds elapsed since the UNIX epoch.
type TimestampMs uint64

// MaxDate is the sentinel returned for unset sale timers.
const MaxDate TimestampMs = 8640000000000000

// Status is the sale state, derived from time, configuration and remaining
// supply rather than stored.
type Status string

const (
	StatusClosed  Status = "Closed"
	StatusPresale Status = "Presale"
	StatusOpen    Status = "Open"
	StatusSoldOut Status = "SoldOut"
)

// ContractMetadata is the collection-wide metadata, set at initialization.
type ContractMetadata struct {
	Spec          string  `json:"spec"`
	Name          string  `json:"name"`
	Symbol        string  `json:"symbol"`
	Icon          *string `json:"icon,omitempty"`
	BaseURI       *string `json:"base_uri,omitempty"`
	Reference     *string `json:"reference,omitempty"`
	ReferenceHash *string `json:"reference_hash,omitempty"`
}

// TokenMetadata is the per-token metadata, immutable once minted.
type TokenMetadata struct {
	Title         *string `json:"title,omitempty"`
	Description   *string `json:"description,omitempty"`
	Media         *string `json:"media,omitempty"`
	MediaHash     *string `json:"media_hash,omitempty"`
	Copies        *uint64 `json:"copies,omitempty"`
	IssuedAt      *string `json:"issued_at,omitempty"`
	ExpiresAt     *string `json:"expires_at,omitempty"`
	StartsAt      *string `json:"starts_at,omitempty"`
	UpdatedAt     *string `json:"updated_at,omitempty"`
	Extra         *string `json:"extra,omitempty"`
	Reference     *string `json:"reference,omitempty"`
	ReferenceHash *string `json:"reference_hash,omitempty"`
}

// Token is the externally visible token view.
type Token struct {
	TokenID            TokenID              `json:"token_id"`
	OwnerID            AccountID            `json:"owner_id"`
	Metadata           *TokenMetadata       `json:"metadata,omitempty"`
	ApprovedAccountIDs map[AccountID]uint64 `json:"approved_account_ids"`
}

// Royalties maps accounts to their share of a sale in basis points.
// The shares must sum to at most 10000; the remainder goes to the token owner.
type Royalties struct {
	Accounts map[AccountID]uint16 `json:"accounts"`
}

// BasisPointsTotal is the denominator for royalty shares.
const BasisPointsTotal = 10000

// Validate checks that royalty shares do not exceed the whole.
func (r *Royalties) Validate() error {
	var total uint32
	for account, bps := range r.Accounts {
		if !account.Valid() {
			return &ValidationError{Field: "royalties", Reason: "invalid account id " + string(account)}
		}
		total += uint32(bps)
	}
	if total > BasisPointsTotal {
		return &ValidationError{Field: "royalties", Reason: "royalty shares exceed 100%"}
	}
	return nil
}

// Payout is the computed royalty distribution for a sale balance. It is
// informational; no funds move on this ledger.
type Payout struct {
	Payout map[AccountID]U128 `json:"payout"`
}

// Sale is the collection-wide sale configuration, mutated only by admins.
type Sale struct {
	Price            U128         `json:"price"`
	PresalePrice     *U128        `json:"presale_price,omitempty"`
	PresaleStart     *TimestampMs `json:"presale_start,omitempty"`
	PublicSaleStart  *TimestampMs `json:"public_sale_start,omitempty"`
	Allowance        *uint32      `json:"allowance,omitempty"`
	MintRateLimit    *uint32      `json:"mint_rate_limit,omitempty"`
	Royalties        *Royalties   `json:"royalties,omitempty"`
	InitialRoyalties *Royalties   `json:"initial_royalties,omitempty"`
}

// Validate checks the royalty configurations.
func (s *Sale) Validate() error {
	if s.Royalties != nil {
		if err := s.Royalties.Validate(); err != nil {
			return err
		}
	}
	if s.InitialRoyalties != nil {
		if err := s.InitialRoyalties.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// SaleInfo reports the current sale status, timing and price.
type SaleInfo struct {
	Status           Status      `json:"status"`
	PresaleStart     TimestampMs `json:"presale_start"`
	SaleStart        TimestampMs `json:"sale_start"`
	Price            U128        `json:"price"`
	TokenFinalSupply uint64      `json:"token_final_supply"`
}

// UserSaleInfo additionally reports VIP membership and remaining allowance
// for a specific account. A nil allowance means unlimited.
type UserSaleInfo struct {
	SaleInfo           SaleInfo `json:"sale_info"`
	IsVIP              bool     `json:"is_vip"`
	RemainingAllowance *uint32  `json:"remaining_allowance,omitempty"`
}

// ValidationError rejects malformed input before it reaches the ledger.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid " + e.Field + ": " + e.Reason
}
