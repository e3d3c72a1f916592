// Package contract implements the NFT minting-and-sale engine: a token ledger
// with approvals, a time- and allowance-gated sale state machine, royalty
// payouts and linkdrop reservations, all mutating one shared ledger under
// serialized execution.
package contract

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"

	"github.com/alpha-fi/cheddar-nft-minter/internal/adapter"
	"github.com/alpha-fi/cheddar-nft-minter/internal/domain"
	"github.com/alpha-fi/cheddar-nft-minter/internal/linkdrop"
	"github.com/alpha-fi/cheddar-nft-minter/internal/logger"
	"github.com/alpha-fi/cheddar-nft-minter/internal/messaging"
	"github.com/alpha-fi/cheddar-nft-minter/internal/store"
	"github.com/alpha-fi/cheddar-nft-minter/internal/store/schema"
	"github.com/alpha-fi/cheddar-nft-minter/internal/xcall"
)

// Call is the context of one top-level contract call: who signed it and how
// much they attached. The platform guarantees at most one call mutates the
// ledger at a time; the engine's mutex enforces the same within this process.
type Call struct {
	Caller  domain.AccountID
	Deposit domain.U128
}

// Config holds the runtime parameters of the contract engine
type Config struct {
	// TokenStorageCost is the flat per-token storage cost
	TokenStorageCost domain.U128
	// LinkdropBaseCost is the facility's key registration deposit
	LinkdropBaseCost domain.U128
	// ContractID is this contract's own account, handed to the facility so
	// claims call back into us
	ContractID domain.AccountID
	// RaffleSeed fixes the token id raffle for reproducible tests; 0 seeds
	// from the clock
	RaffleSeed int64
	// ReceiverTimeout bounds one receiver hook invocation
	ReceiverTimeout time.Duration
	// ResolverWorkers sizes the async resolution pool
	ResolverWorkers int
}

// Contract is the engine. All mutators run inside one store transaction and
// either commit completely or leave no trace; the documented exception is the
// two-phase transfer_call / linkdrop flow handled by the resolver.
type Contract struct {
	store     store.Store
	clock     adapter.Clock
	publisher messaging.Publisher
	receiver  xcall.Caller
	facility  linkdrop.Facility
	cfg       Config

	pool pond.Pool

	// mu serializes mutating calls; rng is only touched under it
	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a contract engine. publisher may be nil when event emission is
// disabled.
func New(
	st store.Store,
	clock adapter.Clock,
	publisher messaging.Publisher,
	receiver xcall.Caller,
	facility linkdrop.Facility,
	cfg Config,
) *Contract {
	seed := cfg.RaffleSeed
	if seed == 0 {
		seed = clock.Now().UnixNano()
	}
	workers := cfg.ResolverWorkers
	if workers <= 0 {
		workers = 4
	}
	if cfg.ReceiverTimeout <= 0 {
		cfg.ReceiverTimeout = 30 * time.Second
	}

	return &Contract{
		store:     st,
		clock:     clock,
		publisher: publisher,
		receiver:  receiver,
		facility:  facility,
		cfg:       cfg,
		pool:      pond.NewPool(workers),
		rng:       rand.New(rand.NewSource(seed)), //nolint:gosec // raffle order, not key material
	}
}

// Close drains the async resolution pool
func (c *Contract) Close() {
	c.pool.StopAndWait()
}

// nowMs returns the current time in milliseconds since the UNIX epoch
func (c *Contract) nowMs() domain.TimestampMs {
	return domain.TimestampMs(c.clock.Now().UnixMilli())
}

// publish emits an event log after a successful commit. Emission failures are
// logged, never surfaced: the ledger already committed.
func (c *Contract) publish(ctx context.Context, events ...*domain.NFTEvent) {
	if c.publisher == nil {
		return
	}
	for _, event := range events {
		if event == nil {
			continue
		}
		if err := c.publisher.PublishNFTEvent(ctx, event); err != nil {
			logger.Error(err, zap.String("event", string(event.Event)))
		}
	}
}

// loadState retrieves the singleton state row, failing when the contract has
// not been initialized.
func loadState(ctx context.Context, tx store.Store) (*schema.ContractState, error) {
	state, err := tx.GetState(ctx)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, domain.ErrNotInitialized
	}
	return state, nil
}

func decodeSale(state *schema.ContractState) (*domain.Sale, error) {
	var sale domain.Sale
	if err := json.Unmarshal([]byte(state.Sale), &sale); err != nil {
		return nil, fmt.Errorf("corrupted sale config: %w", err)
	}
	return &sale, nil
}

func encodeSale(state *schema.ContractState, sale *domain.Sale) error {
	data, err := json.Marshal(sale)
	if err != nil {
		return fmt.Errorf("failed to encode sale config: %w", err)
	}
	state.Sale = string(data)
	return nil
}

func decodeContractMetadata(state *schema.ContractState) (*domain.ContractMetadata, error) {
	var meta domain.ContractMetadata
	if err := json.Unmarshal([]byte(state.Metadata), &meta); err != nil {
		return nil, fmt.Errorf("corrupted contract metadata: %w", err)
	}
	return &meta, nil
}

func encodeContractMetadata(state *schema.ContractState, meta *domain.ContractMetadata) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode contract metadata: %w", err)
	}
	state.Metadata = string(data)
	return nil
}

func decodeTokenMetadata(row *schema.Token) (*domain.TokenMetadata, error) {
	if row.Metadata == "" || row.Metadata == "null" {
		return nil, nil
	}
	var meta domain.TokenMetadata
	if err := json.Unmarshal([]byte(row.Metadata), &meta); err != nil {
		return nil, fmt.Errorf("corrupted token metadata: %w", err)
	}
	return &meta, nil
}

// tokenView assembles the external token view from ledger rows
func tokenView(ctx context.Context, tx store.Store, row *schema.Token) (*domain.Token, error) {
	meta, err := decodeTokenMetadata(row)
	if err != nil {
		return nil, err
	}

	approvals, err := tx.ListApprovals(ctx, row.TokenID)
	if err != nil {
		return nil, err
	}
	approved := make(map[domain.AccountID]uint64, len(approvals))
	for _, approval := range approvals {
		approved[domain.AccountID(approval.AccountID)] = approval.ApprovalID
	}

	return &domain.Token{
		TokenID:            domain.TokenID(row.TokenID),
		OwnerID:            domain.AccountID(row.OwnerID),
		Metadata:           meta,
		ApprovedAccountIDs: approved,
	}, nil
}

// InitArgs initializes the contract with full collection metadata. An empty
// Cheddar account leaves cheddar payments disabled.
type InitArgs struct {
	OwnerID          domain.AccountID        `json:"owner_id"`
	Metadata         domain.ContractMetadata `json:"metadata"`
	Size             uint32                  `json:"size"`
	Sale             *domain.Sale            `json:"sale,omitempty"`
	LinkdropContract domain.AccountID        `json:"linkdrop_contract,omitempty"`
	Cheddar          domain.AccountID        `json:"cheddar,omitempty"`
	CheddarNear      uint32                  `json:"cheddar_near,omitempty"`
	CheddarDiscount  uint32                  `json:"cheddar_discount,omitempty"`
}

// InitialMetadata is the abbreviated metadata accepted by new_default_meta.
type InitialMetadata struct {
	Name          string  `json:"name"`
	Symbol        string  `json:"symbol"`
	URI           string  `json:"uri"`
	Icon          *string `json:"icon,omitempty"`
	Spec          *string `json:"spec,omitempty"`
	Reference     *string `json:"reference,omitempty"`
	ReferenceHash *string `json:"reference_hash,omitempty"`
}

const nftMetadataSpec = "nft-1.0.0"

// ToContractMetadata expands the abbreviated form
func (m InitialMetadata) ToContractMetadata() domain.ContractMetadata {
	spec := nftMetadataSpec
	if m.Spec != nil {
		spec = *m.Spec
	}
	uri := m.URI
	return domain.ContractMetadata{
		Spec:          spec,
		Name:          m.Name,
		Symbol:        m.Symbol,
		Icon:          m.Icon,
		BaseURI:       &uri,
		Reference:     m.Reference,
		ReferenceHash: m.ReferenceHash,
	}
}

// DefaultMetaInitArgs initializes the contract from abbreviated metadata.
type DefaultMetaInitArgs struct {
	OwnerID          domain.AccountID `json:"owner_id"`
	Metadata         InitialMetadata  `json:"metadata"`
	Size             uint32           `json:"size"`
	Sale             *domain.Sale     `json:"sale,omitempty"`
	LinkdropContract domain.AccountID `json:"linkdrop_contract,omitempty"`
	Cheddar          domain.AccountID `json:"cheddar,omitempty"`
	CheddarNear      uint32           `json:"cheddar_near,omitempty"`
	CheddarDiscount  uint32           `json:"cheddar_discount,omitempty"`
}

// New initializes the contract. One-time: a second call fails with
// ErrAlreadyInitialized.
func (c *Contract) New(ctx context.Context, args InitArgs) error {
	if !args.OwnerID.Valid() {
		return &domain.ValidationError{Field: "owner_id", Reason: "invalid account id"}
	}
	if args.Metadata.Name == "" || args.Metadata.Symbol == "" {
		return &domain.ValidationError{Field: "metadata", Reason: "name and symbol are required"}
	}
	if args.Metadata.Spec == "" {
		args.Metadata.Spec = nftMetadataSpec
	}
	if args.Size == 0 {
		return &domain.ValidationError{Field: "size", Reason: "collection size must be positive"}
	}

	sale := args.Sale
	if sale == nil {
		sale = &domain.Sale{Price: domain.ZeroU128()}
	}
	if err := sale.Validate(); err != nil {
		return err
	}

	if args.Cheddar != "" {
		if !args.Cheddar.Valid() {
			return &domain.ValidationError{Field: "cheddar", Reason: "invalid account id"}
		}
		if args.CheddarNear <= minCheddarNear {
			return &domain.ValidationError{Field: "cheddar_near", Reason: "1 cheddar is rather worth less than 10 NEAR"}
		}
		if args.CheddarDiscount >= 100 {
			return &domain.ValidationError{Field: "cheddar_discount", Reason: "discount can't be 100% or more"}
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.store.WithinTransaction(ctx, func(tx store.Store) error {
		existing, err := tx.GetState(ctx)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.ErrAlreadyInitialized
		}

		now := c.clock.Now().UTC()
		state := &schema.ContractState{
			OwnerID:          string(args.OwnerID),
			LinkdropContract: string(args.LinkdropContract),
			CheddarContract:  string(args.Cheddar),
			CheddarNear:      args.CheddarNear,
			CheddarBoost:     100 - args.CheddarDiscount,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := encodeContractMetadata(state, &args.Metadata); err != nil {
			return err
		}
		if err := encodeSale(state, sale); err != nil {
			return err
		}
		if err := tx.CreateState(ctx, state); err != nil {
			return err
		}
		return tx.SeedRaffle(ctx, uint64(args.Size))
	})
}

// NewDefaultMeta initializes the contract from abbreviated metadata
func (c *Contract) NewDefaultMeta(ctx context.Context, args DefaultMetaInitArgs) error {
	return c.New(ctx, InitArgs{
		OwnerID:          args.OwnerID,
		Metadata:         args.Metadata.ToContractMetadata(),
		Size:             args.Size,
		Sale:             args.Sale,
		LinkdropContract: args.LinkdropContract,
		Cheddar:          args.Cheddar,
		CheddarNear:      args.CheddarNear,
		CheddarDiscount:  args.CheddarDiscount,
	})
}

// Initialized reports whether the contract has been initialized
func (c *Contract) Initialized(ctx context.Context) (bool, error) {
	state, err := c.store.GetState(ctx)
	if err != nil {
		return false, err
	}
	return state != nil, nil
}
