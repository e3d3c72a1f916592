package contract

import (
	"context"

	"github.com/alpha-fi/cheddar-nft-minter/internal/domain"
	"github.com/alpha-fi/cheddar-nft-minter/internal/store"
	"github.com/alpha-fi/cheddar-nft-minter/internal/store/schema"
)

// saleStatus derives the sale status from the clock, the sale timers and the
// remaining supply. Derived on every read, never cached: the status a caller
// observes is always consistent with the ledger it reads.
//
// Precedence: sold out beats everything; an elapsed public start opens the
// sale even when the presale timer also elapsed; timers are inclusive, the
// sale opens exactly at its start timestamp. With neither timer configured
// the sale is open.
func saleStatus(sale *domain.Sale, now domain.TimestampMs, left uint64) domain.Status {
	if left == 0 {
		return domain.StatusSoldOut
	}
	if sale.PublicSaleStart != nil {
		if now >= *sale.PublicSaleStart {
			return domain.StatusOpen
		}
	} else if sale.PresaleStart == nil {
		return domain.StatusOpen
	}
	if sale.PresaleStart != nil && now >= *sale.PresaleStart {
		return domain.StatusPresale
	}
	return domain.StatusClosed
}

// tokensLeft is the remaining mintable supply: undrawn raffle slots minus
// linkdrop reservations.
func tokensLeft(ctx context.Context, tx store.Store, state *schema.ContractState) (uint64, error) {
	count, err := tx.CountRaffleEntries(ctx)
	if err != nil {
		return 0, err
	}
	return count - uint64(state.PendingTokens), nil
}

// unitPrice is the price of one token at the given status. The presale price,
// when configured, applies until the public sale opens.
func unitPrice(sale *domain.Sale, status domain.Status) domain.U128 {
	switch status {
	case domain.StatusPresale, domain.StatusClosed:
		if sale.PresalePrice != nil {
			return *sale.PresalePrice
		}
	}
	return sale.Price
}

// mintingCost is the attached payment required of minter for num tokens.
// The owner mints for free.
func mintingCost(state *schema.ContractState, sale *domain.Sale, status domain.Status, minter domain.AccountID, num uint32) domain.U128 {
	if string(minter) == state.OwnerID {
		return domain.ZeroU128()
	}
	return unitPrice(sale, status).MulUint64(uint64(num))
}

// assertCanMint gates a mint of num tokens by caller. It checks the rate
// limit, the derived status, presale whitelist membership and allowances, and
// decrements the caller's allowance entry. Owner mints bypass gating except
// the supply check.
func (c *Contract) assertCanMint(
	ctx context.Context,
	tx store.Store,
	state *schema.ContractState,
	sale *domain.Sale,
	caller domain.AccountID,
	num uint32,
) error {
	if num == 0 {
		return &domain.ValidationError{Field: "num", Reason: "must mint at least one token"}
	}
	if sale.MintRateLimit != nil && num > *sale.MintRateLimit {
		return domain.ErrRateLimitExceeded
	}

	left, err := tokensLeft(ctx, tx, state)
	if err != nil {
		return err
	}
	if left < uint64(num) {
		return domain.ErrSaleClosed
	}

	if string(caller) == state.OwnerID {
		return nil
	}

	status := saleStatus(sale, c.nowMs(), left)
	switch status {
	case domain.StatusSoldOut, domain.StatusClosed:
		return domain.ErrSaleClosed
	case domain.StatusPresale:
		entry, err := tx.GetWhitelistEntry(ctx, string(caller))
		if err != nil {
			return err
		}
		if entry == nil {
			return domain.ErrUnauthorized
		}
		if entry.Allowance < num {
			return domain.ErrAllowanceExceeded
		}
		entry.Allowance -= num
		entry.UpdatedAt = c.clock.Now().UTC()
		return tx.UpsertWhitelistEntry(ctx, entry)
	case domain.StatusOpen:
		if sale.Allowance == nil {
			return nil
		}
		entry, err := tx.GetWhitelistEntry(ctx, string(caller))
		if err != nil {
			return err
		}
		if entry == nil {
			// seed lazily from the global allowance on first mint
			entry = &schema.WhitelistEntry{
				AccountID: string(caller),
				Allowance: *sale.Allowance,
			}
		}
		if entry.Allowance < num {
			return domain.ErrAllowanceExceeded
		}
		entry.Allowance -= num
		entry.UpdatedAt = c.clock.Now().UTC()
		return tx.UpsertWhitelistEntry(ctx, entry)
	}
	return nil
}

// updateSale runs an admin-gated mutation of the sale configuration inside
// one transaction, re-validating the configuration before it is persisted.
func (c *Contract) updateSale(ctx context.Context, call Call, mutate func(state *schema.ContractState, sale *domain.Sale) error) error {
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
		sale, err := decodeSale(state)
		if err != nil {
			return err
		}
		if err := mutate(state, sale); err != nil {
			return err
		}
		if err := sale.Validate(); err != nil {
			return err
		}
		if err := encodeSale(state, sale); err != nil {
			return err
		}
		state.UpdatedAt = c.clock.Now().UTC()
		return tx.SaveState(ctx, state)
	})
}

// UpdateRoyalties replaces the secondary-market royalties, returning the
// previous configuration. Pass nil to clear.
func (c *Contract) UpdateRoyalties(ctx context.Context, call Call, royalties *domain.Royalties) (*domain.Royalties, error) {
	var previous *domain.Royalties
	err := c.updateSale(ctx, call, func(_ *schema.ContractState, sale *domain.Sale) error {
		previous = sale.Royalties
		sale.Royalties = royalties
		return nil
	})
	if err != nil {
		return nil, err
	}
	return previous, nil
}

// UpdateInitialRoyalties replaces the primary-sale fund split, returning the
// previous configuration. Pass nil to clear.
func (c *Contract) UpdateInitialRoyalties(ctx context.Context, call Call, royalties *domain.Royalties) (*domain.Royalties, error) {
	var previous *domain.Royalties
	err := c.updateSale(ctx, call, func(_ *schema.ContractState, sale *domain.Sale) error {
		previous = sale.InitialRoyalties
		sale.InitialRoyalties = royalties
		return nil
	})
	if err != nil {
		return nil, err
	}
	return previous, nil
}

// UpdateAllowance sets the global per-account mint cap for the open sale.
// Pass nil for unlimited.
func (c *Contract) UpdateAllowance(ctx context.Context, call Call, allowance *uint32) error {
	return c.updateSale(ctx, call, func(_ *schema.ContractState, sale *domain.Sale) error {
		sale.Allowance = allowance
		return nil
	})
}

// UpdateURI replaces the collection base URI
func (c *Contract) UpdateURI(ctx context.Context, call Call, uri string) error {
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
		meta, err := decodeContractMetadata(state)
		if err != nil {
			return err
		}
		meta.BaseURI = &uri
		if err := encodeContractMetadata(state, meta); err != nil {
			return err
		}
		state.UpdatedAt = c.clock.Now().UTC()
		return tx.SaveState(ctx, state)
	})
}

// AddWhitelistAccounts grants presale minting rights, setting each account's
// allowance to the given value (or the global sale allowance when nil).
// Existing entries are overwritten.
func (c *Contract) AddWhitelistAccounts(ctx context.Context, call Call, accounts []domain.AccountID, allowance *uint32) error {
	for _, account := range accounts {
		if !account.Valid() {
			return &domain.ValidationError{Field: "accounts", Reason: "invalid account id " + string(account)}
		}
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
		sale, err := decodeSale(state)
		if err != nil {
			return err
		}
		granted := uint32(0)
		if allowance != nil {
			granted = *allowance
		} else if sale.Allowance != nil {
			granted = *sale.Allowance
		}
		now := c.clock.Now().UTC()
		for _, account := range accounts {
			entry := &schema.WhitelistEntry{
				AccountID: string(account),
				Allowance: granted,
				UpdatedAt: now,
			}
			if err := tx.UpsertWhitelistEntry(ctx, entry); err != nil {
				return err
			}
		}
		return nil
	})
}

// UpdateWhitelistAccounts raises the allowance of each account by the given
// increase. Accounts missing from the whitelist are added with the increase
// as their allowance.
func (c *Contract) UpdateWhitelistAccounts(ctx context.Context, call Call, accounts []domain.AccountID, allowanceIncrease uint32) error {
	for _, account := range accounts {
		if !account.Valid() {
			return &domain.ValidationError{Field: "accounts", Reason: "invalid account id " + string(account)}
		}
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
		now := c.clock.Now().UTC()
		for _, account := range accounts {
			entry, err := tx.GetWhitelistEntry(ctx, string(account))
			if err != nil {
				return err
			}
			if entry == nil {
				entry = &schema.WhitelistEntry{AccountID: string(account)}
			}
			entry.Allowance += allowanceIncrease
			entry.UpdatedAt = now
			if err := tx.UpsertWhitelistEntry(ctx, entry); err != nil {
				return err
			}
		}
		return nil
	})
}

// CloseSale forces the sale Closed regardless of time by pushing both timers
// past any reachable clock reading.
func (c *Contract) CloseSale(ctx context.Context, call Call) error {
	return c.updateSale(ctx, call, func(_ *schema.ContractState, sale *domain.Sale) error {
		maxDate := domain.MaxDate
		presale := maxDate
		public := maxDate
		sale.PresaleStart = &presale
		sale.PublicSaleStart = &public
		return nil
	})
}

// StartPresale opens the presale at the given timestamp, or immediately when
// nil. The public timer is left as is.
func (c *Contract) StartPresale(ctx context.Context, call Call, presaleStart *domain.TimestampMs) error {
	return c.updateSale(ctx, call, func(_ *schema.ContractState, sale *domain.Sale) error {
		start := c.nowMs()
		if presaleStart != nil {
			start = *presaleStart
		}
		sale.PresaleStart = &start
		return nil
	})
}

// StartSale opens the public sale at the given timestamp, or immediately when
// nil.
func (c *Contract) StartSale(ctx context.Context, call Call, publicSaleStart *domain.TimestampMs) error {
	return c.updateSale(ctx, call, func(_ *schema.ContractState, sale *domain.Sale) error {
		start := c.nowMs()
		if publicSaleStart != nil {
			start = *publicSaleStart
		}
		sale.PublicSaleStart = &start
		return nil
	})
}

// UpdatePrice sets the open-sale unit price, returning the previous price
func (c *Contract) UpdatePrice(ctx context.Context, call Call, price domain.U128) (domain.U128, error) {
	var previous domain.U128
	err := c.updateSale(ctx, call, func(_ *schema.ContractState, sale *domain.Sale) error {
		previous = sale.Price
		sale.Price = price
		return nil
	})
	if err != nil {
		return domain.ZeroU128(), err
	}
	return previous, nil
}

// UpdatePresalePrice sets the presale unit price, returning the previous one.
// Pass nil to fall back to the open-sale price during presale.
func (c *Contract) UpdatePresalePrice(ctx context.Context, call Call, price *domain.U128) (*domain.U128, error) {
	var previous *domain.U128
	err := c.updateSale(ctx, call, func(_ *schema.ContractState, sale *domain.Sale) error {
		previous = sale.PresalePrice
		sale.PresalePrice = price
		return nil
	})
	if err != nil {
		return nil, err
	}
	return previous, nil
}

// GetSaleInfo reports the current sale status, timers, unit price and the
// final collection size.
func (c *Contract) GetSaleInfo(ctx context.Context) (*domain.SaleInfo, error) {
	var info *domain.SaleInfo
	err := c.store.WithinTransaction(ctx, func(tx store.Store) error {
		state, err := loadState(ctx, tx)
		if err != nil {
			return err
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

		presaleStart := domain.MaxDate
		if sale.PresaleStart != nil {
			presaleStart = *sale.PresaleStart
		}
		saleStart := domain.MaxDate
		if sale.PublicSaleStart != nil {
			saleStart = *sale.PublicSaleStart
		}

		supply, err := tx.CountTokens(ctx)
		if err != nil {
			return err
		}

		info = &domain.SaleInfo{
			Status:           status,
			PresaleStart:     presaleStart,
			SaleStart:        saleStart,
			Price:            unitPrice(sale, status),
			TokenFinalSupply: supply + left + uint64(state.PendingTokens),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

// GetUserSaleInfo reports the sale info plus the account's VIP membership and
// remaining allowance. The allowance is nil (unlimited) outside the presale
// unless a global allowance is configured.
func (c *Contract) GetUserSaleInfo(ctx context.Context, account domain.AccountID) (*domain.UserSaleInfo, error) {
	info, err := c.GetSaleInfo(ctx)
	if err != nil {
		return nil, err
	}

	state, err := loadState(ctx, c.store)
	if err != nil {
		return nil, err
	}
	sale, err := decodeSale(state)
	if err != nil {
		return nil, err
	}

	entry, err := c.store.GetWhitelistEntry(ctx, string(account))
	if err != nil {
		return nil, err
	}

	var remaining *uint32
	if info.Status == domain.StatusPresale || sale.Allowance != nil {
		if entry != nil {
			allowance := entry.Allowance
			remaining = &allowance
		} else if info.Status != domain.StatusPresale && sale.Allowance != nil {
			allowance := *sale.Allowance
			remaining = &allowance
		}
	}

	return &domain.UserSaleInfo{
		SaleInfo:           *info,
		IsVIP:              entry != nil,
		RemainingAllowance: remaining,
	}, nil
}

// Whitelisted reports whether the account may mint during the presale
func (c *Contract) Whitelisted(ctx context.Context, account domain.AccountID) (bool, error) {
	if _, err := loadState(ctx, c.store); err != nil {
		return false, err
	}
	entry, err := c.store.GetWhitelistEntry(ctx, string(account))
	if err != nil {
		return false, err
	}
	return entry != nil, nil
}

// RemainingAllowance returns how many tokens the account may still mint, or
// nil when it has no allowance entry.
func (c *Contract) RemainingAllowance(ctx context.Context, account domain.AccountID) (*uint32, error) {
	if _, err := loadState(ctx, c.store); err != nil {
		return nil, err
	}
	entry, err := c.store.GetWhitelistEntry(ctx, string(account))
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, nil
	}
	allowance := entry.Allowance
	return &allowance, nil
}

// MintRateLimit returns the per-call mint cap, or nil for unlimited
func (c *Contract) MintRateLimit(ctx context.Context) (*uint32, error) {
	state, err := loadState(ctx, c.store)
	if err != nil {
		return nil, err
	}
	sale, err := decodeSale(state)
	if err != nil {
		return nil, err
	}
	return sale.MintRateLimit, nil
}

// TokensLeft returns the remaining mintable supply
func (c *Contract) TokensLeft(ctx context.Context) (uint64, error) {
	var left uint64
	err := c.store.WithinTransaction(ctx, func(tx store.Store) error {
		state, err := loadState(ctx, tx)
		if err != nil {
			return err
		}
		left, err = tokensLeft(ctx, tx, state)
		return err
	})
	if err != nil {
		return 0, err
	}
	return left, nil
}

// Initial returns the initial collection size: tokens left to raffle plus the
// minted supply plus linkdrop reservations.
func (c *Contract) Initial(ctx context.Context) (uint64, error) {
	var initial uint64
	err := c.store.WithinTransaction(ctx, func(tx store.Store) error {
		if _, err := loadState(ctx, tx); err != nil {
			return err
		}
		raffle, err := tx.CountRaffleEntries(ctx)
		if err != nil {
			return err
		}
		supply, err := tx.CountTokens(ctx)
		if err != nil {
			return err
		}
		initial = raffle + supply
		return nil
	})
	if err != nil {
		return 0, err
	}
	return initial, nil
}

// TotalCost is the attached payment required of minter for num tokens,
// including per-token storage.
func (c *Contract) TotalCost(ctx context.Context, minter domain.AccountID, num uint32) (domain.U128, error) {
	cost, err := c.CostPerToken(ctx, minter)
	if err != nil {
		return domain.ZeroU128(), err
	}
	return cost.MulUint64(uint64(num)), nil
}

// CostPerToken is the per-token cost for minter at the current status: the
// unit price plus storage, or storage alone for the owner.
func (c *Contract) CostPerToken(ctx context.Context, minter domain.AccountID) (domain.U128, error) {
	var cost domain.U128
	err := c.store.WithinTransaction(ctx, func(tx store.Store) error {
		state, err := loadState(ctx, tx)
		if err != nil {
			return err
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
		cost = mintingCost(state, sale, status, minter, 1).Add(c.cfg.TokenStorageCost)
		return nil
	})
	if err != nil {
		return domain.ZeroU128(), err
	}
	return cost, nil
}

// TokenStorageCost is the flat per-token storage cost
func (c *Contract) TokenStorageCost() domain.U128 {
	return c.cfg.TokenStorageCost
}

// CostOfLinkdrop is the attached payment required to create one linkdrop:
// one token's cost plus the facility's key registration deposit.
func (c *Contract) CostOfLinkdrop(ctx context.Context, minter domain.AccountID) (domain.U128, error) {
	cost, err := c.CostPerToken(ctx, minter)
	if err != nil {
		return domain.ZeroU128(), err
	}
	return cost.Add(c.cfg.LinkdropBaseCost), nil
}
