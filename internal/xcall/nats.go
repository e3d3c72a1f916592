package xcall

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/alpha-fi/cheddar-nft-minter/internal/domain"
)

// Receiver hook subjects follow contracts.<account>.<method>; each contract
// process subscribes to its own account prefix.
const (
	subjectOnTransfer = "contracts.%s.nft_on_transfer"
	subjectOnApprove  = "contracts.%s.nft_on_approve"
)

type natsCaller struct {
	nc *nats.Conn
}

// NewNATSCaller creates a cross-contract caller over NATS request/reply
func NewNATSCaller(nc *nats.Conn) Caller {
	return &natsCaller{nc: nc}
}

// onTransferReply is the receiver's verdict.
type onTransferReply struct {
	ReturnToken bool `json:"return_token"`
}

// NftOnTransfer asks the receiver whether it accepts the token
func (c *natsCaller) NftOnTransfer(ctx context.Context, receiver domain.AccountID, req OnTransferRequest) (bool, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return false, fmt.Errorf("failed to marshal on_transfer request: %w", err)
	}

	msg, err := c.nc.RequestWithContext(ctx, fmt.Sprintf(subjectOnTransfer, receiver), payload)
	if err != nil {
		return false, fmt.Errorf("receiver %s unreachable: %w", receiver, err)
	}

	var reply onTransferReply
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		return false, fmt.Errorf("receiver %s returned malformed reply: %w", receiver, err)
	}
	return reply.ReturnToken, nil
}

// NftOnApprove notifies an approved account
func (c *natsCaller) NftOnApprove(ctx context.Context, account domain.AccountID, req OnApproveRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal on_approve request: %w", err)
	}

	if err := c.nc.Publish(fmt.Sprintf(subjectOnApprove, account), payload); err != nil {
		return fmt.Errorf("failed to notify %s: %w", account, err)
	}
	return nil
}
