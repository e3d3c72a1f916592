package contract

import (
	"context"

	"github.com/alpha-fi/cheddar-nft-minter/internal/domain"
	"github.com/alpha-fi/cheddar-nft-minter/internal/store"
	"github.com/alpha-fi/cheddar-nft-minter/internal/store/schema"
)

// guard authorizes a caller against the current state. Guards compose the
// access rules for privileged operations so every admin-gated mutator shares
// one checked code path.
type guard func(ctx context.Context, tx store.Store, state *schema.ContractState, caller domain.AccountID) error

// ownerOnly admits the contract owner
func ownerOnly(_ context.Context, _ store.Store, state *schema.ContractState, caller domain.AccountID) error {
	if string(caller) != state.OwnerID {
		return domain.ErrUnauthorized
	}
	return nil
}

// ownerOrAdmin admits the owner or any registered admin
func ownerOrAdmin(ctx context.Context, tx store.Store, state *schema.ContractState, caller domain.AccountID) error {
	if string(caller) == state.OwnerID {
		return nil
	}
	isAdmin, err := tx.IsAdmin(ctx, string(caller))
	if err != nil {
		return err
	}
	if !isAdmin {
		return domain.ErrUnauthorized
	}
	return nil
}

// anyGuard admits callers passing at least one of the guards
func anyGuard(guards ...guard) guard {
	return func(ctx context.Context, tx store.Store, state *schema.ContractState, caller domain.AccountID) error {
		var lastErr error = domain.ErrUnauthorized
		for _, g := range guards {
			err := g(ctx, tx, state, caller)
			if err == nil {
				return nil
			}
			lastErr = err
		}
		return lastErr
	}
}

// exactAccount admits only the named account
func exactAccount(account domain.AccountID) guard {
	return func(_ context.Context, _ store.Store, _ *schema.ContractState, caller domain.AccountID) error {
		if caller != account || account == "" {
			return domain.ErrUnauthorized
		}
		return nil
	}
}

// TransferOwnership reassigns the owner account. Owner only.
func (c *Contract) TransferOwnership(ctx context.Context, call Call, newOwner domain.AccountID) error {
	if !newOwner.Valid() {
		return &domain.ValidationError{Field: "new_owner", Reason: "invalid account id"}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.store.WithinTransaction(ctx, func(tx store.Store) error {
		state, err := loadState(ctx, tx)
		if err != nil {
			return err
		}
		if err := ownerOnly(ctx, tx, state, call.Caller); err != nil {
			return err
		}
		state.OwnerID = string(newOwner)
		state.UpdatedAt = c.clock.Now().UTC()
		return tx.SaveState(ctx, state)
	})
}

// AddAdmin grants admin rights to an account. Owner or admin. Idempotent.
func (c *Contract) AddAdmin(ctx context.Context, call Call, account domain.AccountID) error {
	if !account.Valid() {
		return &domain.ValidationError{Field: "account_id", Reason: "invalid account id"}
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
		return tx.AddAdmin(ctx, string(account), c.clock.Now().UTC())
	})
}

// Owner returns the contract owner account
func (c *Contract) Owner(ctx context.Context) (domain.AccountID, error) {
	state, err := loadState(ctx, c.store)
	if err != nil {
		return "", err
	}
	return domain.AccountID(state.OwnerID), nil
}

// Admins lists registered admin accounts in grant order
func (c *Contract) Admins(ctx context.Context) ([]domain.AccountID, error) {
	if _, err := loadState(ctx, c.store); err != nil {
		return nil, err
	}
	rows, err := c.store.ListAdmins(ctx)
	if err != nil {
		return nil, err
	}
	admins := make([]domain.AccountID, 0, len(rows))
	for _, row := range rows {
		admins = append(admins, domain.AccountID(row))
	}
	return admins, nil
}
