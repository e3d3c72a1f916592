package domain

// NFT event logs follow the NEP-297 event format so indexers and wallets can
// consume them without contract-specific decoding.

const (
	EventStandard = "nep171"
	EventVersion  = "1.0.0"
)

// EventKind identifies the event payload shape.
type EventKind string

const (
	EventKindMint     EventKind = "nft_mint"
	EventKindTransfer EventKind = "nft_transfer"
)

// MintEventData describes one batch of tokens minted to a single owner.
type MintEventData struct {
	OwnerID  AccountID `json:"owner_id"`
	TokenIDs []TokenID `json:"token_ids"`
	Memo     *string   `json:"memo,omitempty"`
}

// TransferEventData describes one token changing owner. AuthorizedID is set
// when the transfer was performed by an approved account rather than the owner.
type TransferEventData struct {
	AuthorizedID *AccountID `json:"authorized_id,omitempty"`
	OldOwnerID   AccountID  `json:"old_owner_id"`
	NewOwnerID   AccountID  `json:"new_owner_id"`
	TokenIDs     []TokenID  `json:"token_ids"`
	Memo         *string    `json:"memo,omitempty"`
}

// NFTEvent is the envelope published for every ledger mutation.
type NFTEvent struct {
	Standard string    `json:"standard"`
	Version  string    `json:"version"`
	Event    EventKind `json:"event"`
	Data     any       `json:"data"`
}

// NewMintEvent builds a mint event envelope.
func NewMintEvent(data MintEventData) *NFTEvent {
	return &NFTEvent{
		Standard: EventStandard,
		Version:  EventVersion,
		Event:    EventKindMint,
		Data:     []MintEventData{data},
	}
}

// NewTransferEvent builds a transfer event envelope.
func NewTransferEvent(data TransferEventData) *NFTEvent {
	return &NFTEvent{
		Standard: EventStandard,
		Version:  EventVersion,
		Event:    EventKindTransfer,
		Data:     []TransferEventData{data},
	}
}
