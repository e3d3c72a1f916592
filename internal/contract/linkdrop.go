package contract

import (
	"context"

	"go.uber.org/zap"

	"github.com/alpha-fi/cheddar-nft-minter/internal/domain"
	"github.com/alpha-fi/cheddar-nft-minter/internal/logger"
	"github.com/alpha-fi/cheddar-nft-minter/internal/store"
	"github.com/alpha-fi/cheddar-nft-minter/internal/store/schema"
)

// CreateLinkdrop reserves one token behind a one-time-use key. The
// reservation commits immediately (it counts against tokens_left) and the key
// registration with the external facility runs asynchronously; a facility
// failure releases the reservation and refunds the deposit.
func (c *Contract) CreateLinkdrop(ctx context.Context, call Call, publicKey domain.PublicKey) error {
	if publicKey == "" {
		return &domain.ValidationError{Field: "public_key", Reason: "public key is required"}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var contractID domain.AccountID
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

		if err := c.assertCanMint(ctx, tx, state, sale, call.Caller, 1); err != nil {
			return err
		}

		existing, err := tx.GetLinkdropKey(ctx, string(publicKey))
		if err != nil {
			return err
		}
		if existing != nil {
			return &domain.ValidationError{Field: "public_key", Reason: "key already registered"}
		}

		price := mintingCost(state, sale, status, call.Caller, 1)
		required := price.Add(c.cfg.TokenStorageCost).Add(c.cfg.LinkdropBaseCost)
		if call.Deposit.Cmp(required) < 0 {
			return domain.ErrInsufficientDeposit
		}

		// mirrors the decrement assertCanMint just applied
		allowanceHeld := string(call.Caller) != state.OwnerID &&
			(status == domain.StatusPresale || (status == domain.StatusOpen && sale.Allowance != nil))

		if err := c.settleMintFunds(ctx, tx, state, sale, call, price, required); err != nil {
			return err
		}
		if err := tx.CreateLinkdropKey(ctx, &schema.LinkdropKey{
			PublicKey:     string(publicKey),
			Creator:       string(call.Caller),
			Deposit:       required.String(),
			AllowanceHeld: allowanceHeld,
			CreatedAt:     c.clock.Now().UTC(),
		}); err != nil {
			return err
		}

		state.PendingTokens++
		state.UpdatedAt = c.clock.Now().UTC()
		contractID = c.cfg.ContractID
		return tx.SaveState(ctx, state)
	})
	if err != nil {
		return err
	}

	c.pool.Submit(func() {
		sendCtx, cancel := context.WithTimeout(context.Background(), c.cfg.ReceiverTimeout)
		defer cancel()

		if err := c.facility.SendWithCallback(sendCtx, publicKey, contractID); err != nil {
			logger.Warn("linkdrop key registration failed, releasing reservation",
				zap.String("public_key", string(publicKey)),
				zap.Error(err))
			if err := c.releaseLinkdrop(context.Background(), publicKey); err != nil {
				logger.Error(err, zap.String("public_key", string(publicKey)))
			}
		}
	})
	return nil
}

// releaseLinkdrop compensates a failed key registration: the reservation is
// released, any mint allowance the creation consumed is restored, and the
// creator's deposit journaled back. Releasing an unknown or already-claimed
// key is a no-op.
func (c *Contract) releaseLinkdrop(ctx context.Context, publicKey domain.PublicKey) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.store.WithinTransaction(ctx, func(tx store.Store) error {
		key, err := tx.GetLinkdropKey(ctx, string(publicKey))
		if err != nil {
			return err
		}
		if key == nil {
			return nil
		}
		if err := tx.DeleteLinkdropKey(ctx, key.PublicKey); err != nil {
			return err
		}

		state, err := loadState(ctx, tx)
		if err != nil {
			return err
		}
		state.PendingTokens--
		state.UpdatedAt = c.clock.Now().UTC()
		if err := tx.SaveState(ctx, state); err != nil {
			return err
		}

		if key.AllowanceHeld {
			entry, err := tx.GetWhitelistEntry(ctx, key.Creator)
			if err != nil {
				return err
			}
			if entry != nil {
				entry.Allowance++
				entry.UpdatedAt = c.clock.Now().UTC()
				if err := tx.UpsertWhitelistEntry(ctx, entry); err != nil {
					return err
				}
			}
		}

		return tx.CreateFundTransfer(ctx, &schema.FundTransfer{
			Receiver:  key.Creator,
			Amount:    key.Deposit,
			Kind:      schema.FundTransferRefund,
			CreatedAt: c.clock.Now().UTC(),
		})
	})
}

// LinkCallback mints the reserved token to the claiming account. Only the
// linkdrop facility may call it; the key is consumed exactly once.
func (c *Contract) LinkCallback(ctx context.Context, call Call, publicKey domain.PublicKey, newAccount domain.AccountID) (*domain.Token, error) {
	if !newAccount.Valid() {
		return nil, &domain.ValidationError{Field: "new_account_id", Reason: "invalid account id"}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var token *domain.Token
	var event *domain.NFTEvent
	err := c.store.WithinTransaction(ctx, func(tx store.Store) error {
		state, err := loadState(ctx, tx)
		if err != nil {
			return err
		}
		facility := exactAccount(domain.AccountID(state.LinkdropContract))
		if err := facility(ctx, tx, state, call.Caller); err != nil {
			return err
		}

		key, err := tx.GetLinkdropKey(ctx, string(publicKey))
		if err != nil {
			return err
		}
		if key == nil {
			return domain.ErrLinkdropKeyNotFound
		}
		if err := tx.DeleteLinkdropKey(ctx, key.PublicKey); err != nil {
			return err
		}
		state.PendingTokens--

		tokens, err := c.mintTokens(ctx, tx, state, newAccount, 1)
		if err != nil {
			return err
		}
		token = &tokens[0]

		state.UpdatedAt = c.clock.Now().UTC()
		if err := tx.SaveState(ctx, state); err != nil {
			return err
		}
		event = domain.NewMintEvent(domain.MintEventData{OwnerID: newAccount, TokenIDs: []domain.TokenID{token.TokenID}})
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.publish(ctx, event)
	return token, nil
}

// CheckKey reports whether a token is reserved behind the key and the
// facility still knows it.
func (c *Contract) CheckKey(ctx context.Context, publicKey domain.PublicKey) (bool, error) {
	key, err := c.store.GetLinkdropKey(ctx, string(publicKey))
	if err != nil {
		return false, err
	}
	if key == nil {
		return false, nil
	}
	return c.facility.CheckKey(ctx, publicKey)
}

// GetKeyBalance returns the amount the facility reserves per key
func (c *Contract) GetKeyBalance(ctx context.Context) (domain.U128, error) {
	return c.facility.GetKeyBalance(ctx)
}

// GetLinkdropContract returns the account of the external linkdrop facility
func (c *Contract) GetLinkdropContract(ctx context.Context) (domain.AccountID, error) {
	state, err := loadState(ctx, c.store)
	if err != nil {
		return "", err
	}
	return domain.AccountID(state.LinkdropContract), nil
}
