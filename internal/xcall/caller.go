// Package xcall invokes hooks on other contracts. The platform executes these
// calls asynchronously: the outcome arrives after the initiating call has
// already committed, so callers must be prepared to compensate.
package xcall

import (
	"context"

	"github.com/alpha-fi/cheddar-nft-minter/internal/domain"
)

// OnTransferRequest is the payload of an nft_on_transfer receiver hook.
type OnTransferRequest struct {
	SenderID      domain.AccountID `json:"sender_id"`
	PreviousOwner domain.AccountID `json:"previous_owner_id"`
	TokenID       domain.TokenID   `json:"token_id"`
	Msg           string           `json:"msg"`
}

// OnApproveRequest is the payload of an nft_on_approve notification.
type OnApproveRequest struct {
	TokenID    domain.TokenID   `json:"token_id"`
	OwnerID    domain.AccountID `json:"owner_id"`
	ApprovalID uint64           `json:"approval_id"`
	Msg        string           `json:"msg"`
}

// Caller invokes hooks on receiving contracts.
//
//go:generate mockgen -source=caller.go -destination=../mocks/xcall.go -package=mocks -mock_names=Caller=MockCaller
type Caller interface {
	// NftOnTransfer asks the receiver whether it accepts the token.
	// returnToken true means the receiver rejects it and the transfer must be
	// rolled back; any error counts as a rejection as well.
	NftOnTransfer(ctx context.Context, receiver domain.AccountID, req OnTransferRequest) (returnToken bool, err error)

	// NftOnApprove notifies an approved account. Best effort; failures are
	// logged but never roll back the approval.
	NftOnApprove(ctx context.Context, account domain.AccountID, req OnApproveRequest) error
}
