package contract

import (
	"context"

	"github.com/alpha-fi/cheddar-nft-minter/internal/domain"
	"github.com/alpha-fi/cheddar-nft-minter/internal/store"
	"github.com/alpha-fi/cheddar-nft-minter/internal/store/schema"
)

// defaultMaxLenPayout caps the payout mapping when the caller does not supply
// a bound. Marketplaces are required to accept payouts up to this length.
const defaultMaxLenPayout = 10

// activeRoyalties picks the royalty schedule for a payout: the initial
// royalties apply while the primary sale is still running, the long-term
// schedule afterwards.
func activeRoyalties(sale *domain.Sale, status domain.Status) *domain.Royalties {
	if status != domain.StatusSoldOut && sale.InitialRoyalties != nil {
		return sale.InitialRoyalties
	}
	return sale.Royalties
}

// computePayout splits balance across the royalty accounts by their basis
// points, with the remainder going to the token owner. The sum of all payout
// amounts never exceeds balance; rounding dust stays with the owner.
func computePayout(royalties *domain.Royalties, owner domain.AccountID, balance domain.U128, maxLen uint32) (*domain.Payout, error) {
	payout := make(map[domain.AccountID]domain.U128)
	remainder := balance
	if royalties != nil {
		for account, bps := range royalties.Accounts {
			if account == owner {
				continue
			}
			share := balance.MulDivUint64(uint64(bps), domain.BasisPointsTotal)
			if share.IsZero() {
				continue
			}
			payout[account] = share
			remainder = remainder.Sub(share)
		}
	}
	if !remainder.IsZero() {
		payout[owner] = remainder
	}

	if uint32(len(payout)) > maxLen {
		return nil, domain.ErrPayoutTooLong
	}
	return &domain.Payout{Payout: payout}, nil
}

func (c *Contract) payoutFor(ctx context.Context, tx store.Store, state *schema.ContractState, row *schema.Token, balance domain.U128, maxLenPayout *uint32) (*domain.Payout, error) {
	sale, err := decodeSale(state)
	if err != nil {
		return nil, err
	}
	left, err := tokensLeft(ctx, tx, state)
	if err != nil {
		return nil, err
	}
	status := saleStatus(sale, c.nowMs(), left)

	maxLen := uint32(defaultMaxLenPayout)
	if maxLenPayout != nil {
		maxLen = *maxLenPayout
	}
	return computePayout(activeRoyalties(sale, status), domain.AccountID(row.OwnerID), balance, maxLen)
}

// NftPayout computes how a sale of the token for balance should be split,
// without transferring anything.
func (c *Contract) NftPayout(ctx context.Context, tokenID domain.TokenID, balance domain.U128, maxLenPayout *uint32) (*domain.Payout, error) {
	var payout *domain.Payout
	err := c.store.WithinTransaction(ctx, func(tx store.Store) error {
		state, err := loadState(ctx, tx)
		if err != nil {
			return err
		}
		row, err := tx.GetToken(ctx, string(tokenID))
		if err != nil {
			return err
		}
		if row == nil {
			return domain.ErrTokenNotFound
		}
		payout, err = c.payoutFor(ctx, tx, state, row, balance, maxLenPayout)
		return err
	})
	if err != nil {
		return nil, err
	}
	return payout, nil
}

// NftTransferPayout transfers the token and returns the payout split for its
// sale price in one call, as marketplaces settle a sale. The payout is
// computed against the owner before the transfer; a too-long payout aborts
// the transfer as well.
func (c *Contract) NftTransferPayout(
	ctx context.Context,
	call Call,
	receiver domain.AccountID,
	tokenID domain.TokenID,
	approvalID *uint64,
	memo *string,
	balance domain.U128,
	maxLenPayout *uint32,
) (*domain.Payout, error) {
	if err := assertOneYocto(call); err != nil {
		return nil, err
	}
	if !receiver.Valid() {
		return nil, &domain.ValidationError{Field: "receiver_id", Reason: "invalid account id"}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var payout *domain.Payout
	var event *domain.NFTEvent
	err := c.store.WithinTransaction(ctx, func(tx store.Store) error {
		state, err := loadState(ctx, tx)
		if err != nil {
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

		payout, err = c.payoutFor(ctx, tx, state, row, balance, maxLenPayout)
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
		return nil, err
	}
	c.publish(ctx, event)
	return payout, nil
}
