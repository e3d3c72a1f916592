package contract

import (
	"context"
	"fmt"

	"github.com/alpha-fi/cheddar-nft-minter/internal/domain"
	"github.com/alpha-fi/cheddar-nft-minter/internal/store"
	"github.com/alpha-fi/cheddar-nft-minter/internal/store/schema"
)

const (
	// minCheddarNear is the floor of the conversion rate; anything at or below
	// would value one cheddar above 10 NEAR
	minCheddarNear = 100

	cheddarWithdrawMemo = "cheddar withdraw"
)

// minCheddarBalance is the smallest first deposit accepted by ft_on_transfer,
// 0.5 cheddar. A partial withdraw must also leave at least this much behind.
var minCheddarBalance = domain.MustParseU128("500000000000000000000000")

func cheddarEnabled(state *schema.ContractState) bool {
	return state.CheddarContract != ""
}

// cheddarCost converts a NEAR price into cheddar. The rate is scaled by 1e3
// and the boost is the percentage of the converted price actually charged.
// Multiplication runs before division so sub-1e3 prices do not round to zero.
func cheddarCost(state *schema.ContractState, price domain.U128) domain.U128 {
	return price.
		MulDivUint64(uint64(state.CheddarNear), 1000).
		MulDivUint64(uint64(state.CheddarBoost), 100)
}

func parseCheddarBalance(row *schema.CheddarDeposit) (domain.U128, error) {
	balance, err := domain.ParseU128(row.Balance)
	if err != nil {
		return domain.ZeroU128(), fmt.Errorf("corrupted cheddar balance: %w", err)
	}
	return balance, nil
}

// creditCheddar adds amount to the account's internal balance, registering the
// account when it has none. Zero amounts are skipped.
func (c *Contract) creditCheddar(ctx context.Context, tx store.Store, account string, amount domain.U128) error {
	if amount.IsZero() {
		return nil
	}
	row, err := tx.GetCheddarDeposit(ctx, account)
	if err != nil {
		return err
	}
	now := c.clock.Now().UTC()
	if row == nil {
		row = &schema.CheddarDeposit{AccountID: account, Balance: amount.String(), CreatedAt: now}
	} else {
		balance, err := parseCheddarBalance(row)
		if err != nil {
			return err
		}
		row.Balance = balance.Add(amount).String()
	}
	row.UpdatedAt = now
	return tx.UpsertCheddarDeposit(ctx, row)
}

// debitCheddar takes amount from the account's internal balance, unregistering
// the account when it reaches zero.
func (c *Contract) debitCheddar(ctx context.Context, tx store.Store, account string, amount domain.U128) error {
	if amount.IsZero() {
		return nil
	}
	row, err := tx.GetCheddarDeposit(ctx, account)
	if err != nil {
		return err
	}
	if row == nil {
		return domain.ErrInsufficientDeposit
	}
	balance, err := parseCheddarBalance(row)
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return domain.ErrInsufficientDeposit
	}
	balance = balance.Sub(amount)
	if balance.IsZero() {
		return tx.DeleteCheddarDeposit(ctx, account)
	}
	row.Balance = balance.String()
	row.UpdatedAt = c.clock.Now().UTC()
	return tx.UpsertCheddarDeposit(ctx, row)
}

// chargeCheddar settles the price of a cheddar-paid mint against internal
// deposits: the converted cost is taken from the minter and split per the
// initial royalties, remainder credited to the owner's deposit.
func (c *Contract) chargeCheddar(
	ctx context.Context,
	tx store.Store,
	state *schema.ContractState,
	sale *domain.Sale,
	minter domain.AccountID,
	price domain.U128,
) error {
	cost := cheddarCost(state, price)
	if err := c.debitCheddar(ctx, tx, string(minter), cost); err != nil {
		return err
	}

	remainder := cost
	if sale.InitialRoyalties != nil {
		for account, bps := range sale.InitialRoyalties.Accounts {
			share := cost.MulDivUint64(uint64(bps), domain.BasisPointsTotal)
			if err := c.creditCheddar(ctx, tx, string(account), share); err != nil {
				return err
			}
			remainder = remainder.Sub(share)
		}
	}
	return c.creditCheddar(ctx, tx, state.OwnerID, remainder)
}

// FtOnTransfer is the fungible token deposit hook. Only the configured cheddar
// contract may call it; a first deposit must reach minCheddarBalance, further
// deposits accumulate. The full amount is always used, so zero is returned.
func (c *Contract) FtOnTransfer(ctx context.Context, call Call, sender domain.AccountID, amount domain.U128, _ string) (domain.U128, error) {
	if !sender.Valid() {
		return domain.ZeroU128(), &domain.ValidationError{Field: "sender_id", Reason: "invalid account id"}
	}
	if amount.IsZero() {
		return domain.ZeroU128(), &domain.ValidationError{Field: "amount", Reason: "deposit must be positive"}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.store.WithinTransaction(ctx, func(tx store.Store) error {
		state, err := loadState(ctx, tx)
		if err != nil {
			return err
		}
		if !cheddarEnabled(state) || string(call.Caller) != state.CheddarContract {
			// only the cheddar token contract funds deposits
			return domain.ErrUnauthorized
		}

		existing, err := tx.GetCheddarDeposit(ctx, string(sender))
		if err != nil {
			return err
		}
		if existing == nil && amount.Cmp(minCheddarBalance) < 0 {
			return &domain.ValidationError{Field: "amount", Reason: "first deposit must be at least 0.5 cheddar"}
		}
		return c.creditCheddar(ctx, tx, string(sender), amount)
	})
	if err != nil {
		return domain.ZeroU128(), err
	}
	return domain.ZeroU128(), nil
}

// WithdrawCheddar pays the caller's internal balance back out through the
// token contract. A nil amount withdraws everything and unregisters the
// caller; a partial withdraw must leave more than minCheddarBalance behind.
func (c *Contract) WithdrawCheddar(ctx context.Context, call Call, amount *domain.U128) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.store.WithinTransaction(ctx, func(tx store.Store) error {
		if _, err := loadState(ctx, tx); err != nil {
			return err
		}
		row, err := tx.GetCheddarDeposit(ctx, string(call.Caller))
		if err != nil {
			return err
		}
		if row == nil {
			return domain.ErrCheddarDepositNotFound
		}
		balance, err := parseCheddarBalance(row)
		if err != nil {
			return err
		}

		payout := balance
		if amount != nil {
			payout = *amount
			if balance.Cmp(payout) < 0 {
				return domain.ErrInsufficientDeposit
			}
		}

		remaining := balance.Sub(payout)
		if remaining.IsZero() {
			if err := tx.DeleteCheddarDeposit(ctx, string(call.Caller)); err != nil {
				return err
			}
		} else {
			if remaining.Cmp(minCheddarBalance) <= 0 {
				return &domain.ValidationError{Field: "amount", Reason: "withdraw everything or keep more than 0.5 cheddar on deposit"}
			}
			row.Balance = remaining.String()
			row.UpdatedAt = c.clock.Now().UTC()
			if err := tx.UpsertCheddarDeposit(ctx, row); err != nil {
				return err
			}
		}

		memo := cheddarWithdrawMemo
		return tx.CreateFundTransfer(ctx, &schema.FundTransfer{
			Receiver:  string(call.Caller),
			Amount:    payout.String(),
			Kind:      schema.FundTransferCheddarWithdraw,
			Memo:      &memo,
			CreatedAt: c.clock.Now().UTC(),
		})
	})
}

// BalanceOf returns the account's internal cheddar balance, zero when it has
// never deposited.
func (c *Contract) BalanceOf(ctx context.Context, account domain.AccountID) (domain.U128, error) {
	if _, err := loadState(ctx, c.store); err != nil {
		return domain.ZeroU128(), err
	}
	row, err := c.store.GetCheddarDeposit(ctx, string(account))
	if err != nil {
		return domain.ZeroU128(), err
	}
	if row == nil {
		return domain.ZeroU128(), nil
	}
	return parseCheddarBalance(row)
}

// AdminSetCheddarNear updates the NEAR to cheddar conversion rate. Owner or
// admin only.
func (c *Contract) AdminSetCheddarNear(ctx context.Context, call Call, cheddarNear uint32) error {
	if cheddarNear <= minCheddarNear {
		return &domain.ValidationError{Field: "cheddar_near", Reason: "1 cheddar is rather worth less than 10 NEAR"}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.store.WithinTransaction(ctx, func(tx store.Store) error {
		state, err := loadState(ctx, tx)
		if err != nil {
			return err
		}
		if err := ownerOrAdmin(ctx, tx, state, call.Caller); err != nil {
			return err
		}
		state.CheddarNear = cheddarNear
		state.UpdatedAt = c.clock.Now().UTC()
		return tx.SaveState(ctx, state)
	})
}

// TotalCostInCheddar is the cheddar price of num tokens for minter at the
// current status. Storage stays payable in NEAR and is not included.
func (c *Contract) TotalCostInCheddar(ctx context.Context, minter domain.AccountID, num uint32) (domain.U128, error) {
	var cost domain.U128
	err := c.store.WithinTransaction(ctx, func(tx store.Store) error {
		state, err := loadState(ctx, tx)
		if err != nil {
			return err
		}
		if !cheddarEnabled(state) {
			return &domain.ValidationError{Field: "with_cheddar", Reason: "cheddar payments are not configured"}
		}
		sale, err := decodeSale(state)
		if err != nil {
			return err
		}
		left, err := tokensLeft(ctx, tx, state)
		if err != nil {
			return err
		}
		status := saleStatus(sale, c.nowMs(), left)
		cost = cheddarCost(state, mintingCost(state, sale, status, minter, num))
		return nil
	})
	if err != nil {
		return domain.ZeroU128(), err
	}
	return cost, nil
}
