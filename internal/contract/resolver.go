package contract

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/alpha-fi/cheddar-nft-minter/internal/domain"
	"github.com/alpha-fi/cheddar-nft-minter/internal/logger"
	"github.com/alpha-fi/cheddar-nft-minter/internal/store"
	"github.com/alpha-fi/cheddar-nft-minter/internal/store/schema"
	"github.com/alpha-fi/cheddar-nft-minter/internal/xcall"
)

// NftTransferCall transfers the token and asks the receiving contract whether
// it accepts it. The transfer commits immediately so re-entrant calls observe
// the receiver as owner; a pending record keyed by the returned correlation
// id carries what the resolver needs to compensate if the receiver rejects.
func (c *Contract) NftTransferCall(
	ctx context.Context,
	call Call,
	receiver domain.AccountID,
	tokenID domain.TokenID,
	approvalID *uint64,
	memo *string,
	msg string,
) (string, error) {
	if err := assertOneYocto(call); err != nil {
		return "", err
	}
	if !receiver.Valid() {
		return "", &domain.ValidationError{Field: "receiver_id", Reason: "invalid account id"}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	pendingID := uuid.NewString()
	var pending *schema.PendingTransfer
	var event *domain.NFTEvent
	err := c.store.WithinTransaction(ctx, func(tx store.Store) error {
		if _, err := loadState(ctx, tx); err != nil {
			return err
		}
		row, err := tx.GetToken(ctx, string(tokenID))
		if err != nil {
			return err
		}
		if row == nil {
			return domain.ErrTokenNotFound
		}
		if err := authorizeTransfer(ctx, tx, row, call.Caller, approvalID); err != nil {
			return err
		}
		if row.OwnerID == string(receiver) {
			return &domain.ValidationError{Field: "receiver_id", Reason: "token is already owned by the receiver"}
		}

		approvals, err := tx.ListApprovals(ctx, row.TokenID)
		if err != nil {
			return err
		}
		snapshot := make(map[string]uint64, len(approvals))
		for _, approval := range approvals {
			snapshot[approval.AccountID] = approval.ApprovalID
		}
		encoded, err := json.Marshal(snapshot)
		if err != nil {
			return err
		}

		oldOwner := domain.AccountID(row.OwnerID)
		row.OwnerID = string(receiver)
		if err := tx.SaveToken(ctx, row); err != nil {
			return err
		}
		if err := tx.DeleteAllApprovals(ctx, row.TokenID); err != nil {
			return err
		}

		pending = &schema.PendingTransfer{
			ID:            pendingID,
			TokenID:       row.TokenID,
			SenderID:      string(call.Caller),
			PreviousOwner: string(oldOwner),
			Receiver:      string(receiver),
			Approvals:     string(encoded),
			Memo:          memo,
			CreatedAt:     c.clock.Now().UTC(),
		}
		if err := tx.CreatePendingTransfer(ctx, pending); err != nil {
			return err
		}

		data := domain.TransferEventData{
			OldOwnerID: oldOwner,
			NewOwnerID: receiver,
			TokenIDs:   []domain.TokenID{tokenID},
			Memo:       memo,
		}
		if call.Caller != oldOwner {
			authorized := call.Caller
			data.AuthorizedID = &authorized
		}
		event = domain.NewTransferEvent(data)
		return nil
	})
	if err != nil {
		return "", err
	}
	c.publish(ctx, event)

	req := xcall.OnTransferRequest{
		SenderID:      call.Caller,
		PreviousOwner: domain.AccountID(pending.PreviousOwner),
		TokenID:       tokenID,
		Msg:           msg,
	}
	c.pool.Submit(func() {
		hookCtx, cancel := context.WithTimeout(context.Background(), c.cfg.ReceiverTimeout)
		defer cancel()

		returnToken, err := c.receiver.NftOnTransfer(hookCtx, receiver, req)
		if err != nil {
			// a failed or timed-out hook counts as a rejection
			logger.Warn("receiver hook failed, returning token",
				zap.String("pending_id", pendingID),
				zap.String("token_id", string(tokenID)),
				zap.Error(err))
			returnToken = true
		}
		if _, err := c.ResolveTransfer(context.Background(), pendingID, returnToken); err != nil {
			logger.Error(err, zap.String("pending_id", pendingID), zap.String("token_id", string(tokenID)))
		}
	})
	return pendingID, nil
}

// ResolveTransfer settles a pending transfer_call. returnToken false
// finalizes the transfer; true compensates it, restoring the previous owner
// and the cleared approvals. The compensation is skipped when the receiver no
// longer owns the token: a re-entrant transfer already moved it on, and that
// later state wins. Reports whether the receiver kept the token. Resolving
// the same id twice is a no-op that reports the transfer as kept.
func (c *Contract) ResolveTransfer(ctx context.Context, pendingID string, returnToken bool) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	kept := true
	var event *domain.NFTEvent
	err := c.store.WithinTransaction(ctx, func(tx store.Store) error {
		pending, err := tx.GetPendingTransfer(ctx, pendingID)
		if err != nil {
			return err
		}
		if pending == nil {
			return nil
		}
		if err := tx.DeletePendingTransfer(ctx, pendingID); err != nil {
			return err
		}
		if !returnToken {
			return nil
		}

		row, err := tx.GetToken(ctx, pending.TokenID)
		if err != nil {
			return err
		}
		if row == nil {
			return fmt.Errorf("pending transfer %s references missing token %s", pendingID, pending.TokenID)
		}
		if row.OwnerID != pending.Receiver {
			// moved on by a re-entrant call; nothing to return
			return nil
		}

		var snapshot map[string]uint64
		if err := json.Unmarshal([]byte(pending.Approvals), &snapshot); err != nil {
			return fmt.Errorf("corrupted approval snapshot on pending transfer %s: %w", pendingID, err)
		}

		row.OwnerID = pending.PreviousOwner
		if err := tx.SaveToken(ctx, row); err != nil {
			return err
		}
		if err := tx.DeleteAllApprovals(ctx, row.TokenID); err != nil {
			return err
		}
		now := c.clock.Now().UTC()
		for account, approvalID := range snapshot {
			approval := &schema.TokenApproval{
				TokenID:    row.TokenID,
				AccountID:  account,
				ApprovalID: approvalID,
				CreatedAt:  now,
			}
			if err := tx.UpsertApproval(ctx, approval); err != nil {
				return err
			}
		}

		kept = false
		event = domain.NewTransferEvent(domain.TransferEventData{
			OldOwnerID: domain.AccountID(pending.Receiver),
			NewOwnerID: domain.AccountID(pending.PreviousOwner),
			TokenIDs:   []domain.TokenID{domain.TokenID(pending.TokenID)},
		})
		return nil
	})
	if err != nil {
		return false, err
	}
	c.publish(ctx, event)
	return kept, nil
}

// PendingTransfers reports how many transfer_call moves are awaiting
// resolution.
func (c *Contract) PendingTransfers(ctx context.Context) (int64, error) {
	return c.store.CountPendingTransfers(ctx)
}
