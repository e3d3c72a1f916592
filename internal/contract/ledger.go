package contract

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/alpha-fi/cheddar-nft-minter/internal/domain"
	"github.com/alpha-fi/cheddar-nft-minter/internal/logger"
	"github.com/alpha-fi/cheddar-nft-minter/internal/store"
	"github.com/alpha-fi/cheddar-nft-minter/internal/store/schema"
	"github.com/alpha-fi/cheddar-nft-minter/internal/xcall"
)

const (
	// maxApprovalsPerToken bounds the approval set so a token row and its
	// cleared-approval snapshots stay small
	maxApprovalsPerToken = 32

	// defaultEnumerationLimit pages enumeration views when the caller does
	// not pass a limit
	defaultEnumerationLimit = 50
)

// assertOneYocto enforces the exactly-one-yocto deposit required of the
// transfer and revoke family, proving the caller holds a full-access key.
func assertOneYocto(call Call) error {
	if call.Deposit.Cmp(domain.OneYocto()) != 0 {
		return &domain.ValidationError{Field: "deposit", Reason: "requires attached deposit of exactly 1 yoctoNEAR"}
	}
	return nil
}

func newTokenMetadata(tokenID string, issuedAt time.Time) *domain.TokenMetadata {
	title := tokenID
	media := tokenID + ".png"
	reference := tokenID + ".json"
	issued := strconv.FormatInt(issuedAt.UnixMilli(), 10)
	return &domain.TokenMetadata{
		Title:     &title,
		Media:     &media,
		Reference: &reference,
		IssuedAt:  &issued,
	}
}

// mintTokens draws num token numbers and inserts their rows, owned by owner.
// Callers are responsible for gating and payment.
func (c *Contract) mintTokens(ctx context.Context, tx store.Store, state *schema.ContractState, owner domain.AccountID, num uint32) ([]domain.Token, error) {
	now := c.clock.Now().UTC()
	tokens := make([]domain.Token, 0, num)
	for i := uint32(0); i < num; i++ {
		value, err := c.drawRaffle(ctx, tx)
		if err != nil {
			return nil, err
		}
		token, err := c.insertToken(ctx, tx, strconv.FormatUint(value, 10), owner, now)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, *token)
	}
	state.Minted += uint64(num)
	return tokens, nil
}

func (c *Contract) insertToken(ctx context.Context, tx store.Store, tokenID string, owner domain.AccountID, now time.Time) (*domain.Token, error) {
	meta := newTokenMetadata(tokenID, now)
	encoded, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}
	row := &schema.Token{
		TokenID:   tokenID,
		OwnerID:   string(owner),
		Metadata:  string(encoded),
		CreatedAt: now,
	}
	if err := tx.CreateToken(ctx, row); err != nil {
		return nil, err
	}
	return &domain.Token{
		TokenID:            domain.TokenID(tokenID),
		OwnerID:            owner,
		Metadata:           meta,
		ApprovedAccountIDs: map[domain.AccountID]uint64{},
	}, nil
}

// settleMintFunds journals the primary-sale money flow for one mint call:
// the price portion is split per the initial royalties (remainder to the
// owner) and any surplus deposit returns to the caller.
func (c *Contract) settleMintFunds(
	ctx context.Context,
	tx store.Store,
	state *schema.ContractState,
	sale *domain.Sale,
	call Call,
	price, required domain.U128,
) error {
	now := c.clock.Now().UTC()

	journal := func(receiver string, amount domain.U128, kind schema.FundTransferKind) error {
		if amount.IsZero() {
			return nil
		}
		return tx.CreateFundTransfer(ctx, &schema.FundTransfer{
			Receiver:  receiver,
			Amount:    amount.String(),
			Kind:      kind,
			CreatedAt: now,
		})
	}

	remainder := price
	if sale.InitialRoyalties != nil {
		for account, bps := range sale.InitialRoyalties.Accounts {
			share := price.MulDivUint64(uint64(bps), domain.BasisPointsTotal)
			if err := journal(string(account), share, schema.FundTransferRoyalty); err != nil {
				return err
			}
			remainder = remainder.Sub(share)
		}
	}
	if err := journal(state.OwnerID, remainder, schema.FundTransferRoyalty); err != nil {
		return err
	}

	surplus := call.Deposit.Sub(required)
	return journal(string(call.Caller), surplus, schema.FundTransferRefund)
}

// NftMintOne mints a single raffled token to the caller
func (c *Contract) NftMintOne(ctx context.Context, call Call) (*domain.Token, error) {
	tokens, err := c.NftMintMany(ctx, call, 1)
	if err != nil {
		return nil, err
	}
	return &tokens[0], nil
}

// NftMintOneWithCheddar mints a single raffled token paying the price from the
// caller's cheddar deposit
func (c *Contract) NftMintOneWithCheddar(ctx context.Context, call Call) (*domain.Token, error) {
	tokens, err := c.NftMintManyWithCheddar(ctx, call, 1)
	if err != nil {
		return nil, err
	}
	return &tokens[0], nil
}

// NftMintMany mints num raffled tokens to the caller, enforcing the sale
// gates and the attached payment.
func (c *Contract) NftMintMany(ctx context.Context, call Call, num uint32) ([]domain.Token, error) {
	return c.mintMany(ctx, call, num, false)
}

// NftMintManyWithCheddar mints num raffled tokens paying the price from the
// caller's cheddar deposit. The attached NEAR covers storage only.
func (c *Contract) NftMintManyWithCheddar(ctx context.Context, call Call, num uint32) ([]domain.Token, error) {
	return c.mintMany(ctx, call, num, true)
}

func (c *Contract) mintMany(ctx context.Context, call Call, num uint32, payCheddar bool) ([]domain.Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var tokens []domain.Token
	var event *domain.NFTEvent
	err := c.store.WithinTransaction(ctx, func(tx store.Store) error {
		state, err := loadState(ctx, tx)
		if err != nil {
			return err
		}
		if payCheddar && !cheddarEnabled(state) {
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

		if err := c.assertCanMint(ctx, tx, state, sale, call.Caller, num); err != nil {
			return err
		}

		price := mintingCost(state, sale, status, call.Caller, num)
		required := c.cfg.TokenStorageCost.MulUint64(uint64(num))
		if !payCheddar {
			required = required.Add(price)
		}
		if call.Deposit.Cmp(required) < 0 {
			return domain.ErrInsufficientDeposit
		}
		if payCheddar {
			if err := c.chargeCheddar(ctx, tx, state, sale, call.Caller, price); err != nil {
				return err
			}
			// the NEAR side settles storage only
			price = domain.ZeroU128()
		}

		tokens, err = c.mintTokens(ctx, tx, state, call.Caller, num)
		if err != nil {
			return err
		}
		if err := c.settleMintFunds(ctx, tx, state, sale, call, price, required); err != nil {
			return err
		}
		state.UpdatedAt = c.clock.Now().UTC()
		if err := tx.SaveState(ctx, state); err != nil {
			return err
		}

		ids := make([]domain.TokenID, 0, len(tokens))
		for _, token := range tokens {
			ids = append(ids, token.TokenID)
		}
		event = domain.NewMintEvent(domain.MintEventData{OwnerID: call.Caller, TokenIDs: ids})
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.publish(ctx, event)
	return tokens, nil
}

// NftMint mints a specific unminted token number to receiver. Owner or admin
// only; the matching raffle slot is consumed so the final supply is
// unaffected. An empty receiver mints to the caller.
func (c *Contract) NftMint(ctx context.Context, call Call, tokenID domain.TokenID, receiver domain.AccountID) (*domain.Token, error) {
	value, err := strconv.ParseUint(string(tokenID), 10, 64)
	if err != nil {
		return nil, &domain.ValidationError{Field: "token_id", Reason: "not a collection token number"}
	}
	if receiver == "" {
		receiver = call.Caller
	}
	if !receiver.Valid() {
		return nil, &domain.ValidationError{Field: "receiver_id", Reason: "invalid account id"}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var token *domain.Token
	var event *domain.NFTEvent
	err = c.store.WithinTransaction(ctx, func(tx store.Store) error {
		state, err := loadState(ctx, tx)
		if err != nil {
			return err
		}
		if err := ownerOrAdmin(ctx, tx, state, call.Caller); err != nil {
			return err
		}

		existing, err := tx.GetToken(ctx, string(tokenID))
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.ErrDuplicateTokenID
		}
		if err := drawRaffleValue(ctx, tx, value); err != nil {
			return err
		}

		if call.Deposit.Cmp(c.cfg.TokenStorageCost) < 0 {
			return domain.ErrInsufficientDeposit
		}

		token, err = c.insertToken(ctx, tx, string(tokenID), receiver, c.clock.Now().UTC())
		if err != nil {
			return err
		}
		state.Minted++
		state.UpdatedAt = c.clock.Now().UTC()
		if err := tx.SaveState(ctx, state); err != nil {
			return err
		}

		event = domain.NewMintEvent(domain.MintEventData{OwnerID: receiver, TokenIDs: []domain.TokenID{token.TokenID}})
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.publish(ctx, event)
	return token, nil
}

// authorizeTransfer checks that caller may move the token: the owner always
// may; an approved account may when its grant matches the expected approval
// id, if one was supplied.
func authorizeTransfer(ctx context.Context, tx store.Store, row *schema.Token, caller domain.AccountID, approvalID *uint64) error {
	if string(caller) == row.OwnerID {
		return nil
	}
	approval, err := tx.GetApproval(ctx, row.TokenID, string(caller))
	if err != nil {
		return err
	}
	if approval == nil {
		return domain.ErrUnauthorized
	}
	if approvalID != nil && *approvalID != approval.ApprovalID {
		return domain.ErrApprovalIDMismatch
	}
	return nil
}

// NftTransfer moves a token to receiver and clears its approvals. The caller
// must be the owner or hold a matching approval.
func (c *Contract) NftTransfer(ctx context.Context, call Call, receiver domain.AccountID, tokenID domain.TokenID, approvalID *uint64, memo *string) error {
	if err := assertOneYocto(call); err != nil {
		return err
	}
	if !receiver.Valid() {
		return &domain.ValidationError{Field: "receiver_id", Reason: "invalid account id"}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

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
		return err
	}
	c.publish(ctx, event)
	return nil
}

// NftApprove grants account transfer rights over the token, returning the
// new approval id. Ids are strictly increasing per token and never reused;
// re-approving an account replaces its grant under a fresh id. A non-nil msg
// notifies the approved account's contract asynchronously.
func (c *Contract) NftApprove(ctx context.Context, call Call, tokenID domain.TokenID, account domain.AccountID, msg *string) (uint64, error) {
	if call.Deposit.IsZero() {
		return 0, domain.ErrInsufficientDeposit
	}
	if !account.Valid() {
		return 0, &domain.ValidationError{Field: "account_id", Reason: "invalid account id"}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var approvalID uint64
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
		if row.OwnerID != string(call.Caller) {
			return domain.ErrUnauthorized
		}

		existing, err := tx.GetApproval(ctx, row.TokenID, string(account))
		if err != nil {
			return err
		}
		if existing == nil {
			count, err := tx.CountApprovals(ctx, row.TokenID)
			if err != nil {
				return err
			}
			if count >= maxApprovalsPerToken {
				return domain.ErrTooManyApprovals
			}
		}

		approvalID = row.NextApprovalID
		row.NextApprovalID++
		if err := tx.SaveToken(ctx, row); err != nil {
			return err
		}
		return tx.UpsertApproval(ctx, &schema.TokenApproval{
			TokenID:    row.TokenID,
			AccountID:  string(account),
			ApprovalID: approvalID,
			CreatedAt:  c.clock.Now().UTC(),
		})
	})
	if err != nil {
		return 0, err
	}

	if msg != nil {
		req := xcall.OnApproveRequest{
			TokenID:    tokenID,
			OwnerID:    call.Caller,
			ApprovalID: approvalID,
			Msg:        *msg,
		}
		c.pool.Submit(func() {
			notifyCtx, cancel := context.WithTimeout(context.Background(), c.cfg.ReceiverTimeout)
			defer cancel()
			if err := c.receiver.NftOnApprove(notifyCtx, account, req); err != nil {
				logger.Error(err, zap.String("token_id", string(tokenID)), zap.String("account", string(account)))
			}
		})
	}
	return approvalID, nil
}

// NftRevoke removes one account's approval on a token. Owner only.
func (c *Contract) NftRevoke(ctx context.Context, call Call, tokenID domain.TokenID, account domain.AccountID) error {
	if err := assertOneYocto(call); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.store.WithinTransaction(ctx, func(tx store.Store) error {
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
		if row.OwnerID != string(call.Caller) {
			return domain.ErrUnauthorized
		}
		return tx.DeleteApproval(ctx, row.TokenID, string(account))
	})
}

// NftRevokeAll removes every approval on a token. Owner only. A token with no
// approvals is a no-op.
func (c *Contract) NftRevokeAll(ctx context.Context, call Call, tokenID domain.TokenID) error {
	if err := assertOneYocto(call); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.store.WithinTransaction(ctx, func(tx store.Store) error {
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
		if row.OwnerID != string(call.Caller) {
			return domain.ErrUnauthorized
		}
		return tx.DeleteAllApprovals(ctx, row.TokenID)
	})
}

// NftIsApproved reports whether account holds an approval on the token,
// optionally requiring an exact approval id.
func (c *Contract) NftIsApproved(ctx context.Context, tokenID domain.TokenID, account domain.AccountID, approvalID *uint64) (bool, error) {
	row, err := c.store.GetToken(ctx, string(tokenID))
	if err != nil {
		return false, err
	}
	if row == nil {
		return false, domain.ErrTokenNotFound
	}
	approval, err := c.store.GetApproval(ctx, row.TokenID, string(account))
	if err != nil {
		return false, err
	}
	if approval == nil {
		return false, nil
	}
	if approvalID != nil {
		return *approvalID == approval.ApprovalID, nil
	}
	return true, nil
}

// NftToken returns one token view, or nil when it was never minted
func (c *Contract) NftToken(ctx context.Context, tokenID domain.TokenID) (*domain.Token, error) {
	row, err := c.store.GetToken(ctx, string(tokenID))
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	return tokenView(ctx, c.store, row)
}

// NftTokens pages all tokens in mint order. fromIndex is a decimal string
// offset; a nil limit pages defaultEnumerationLimit rows.
func (c *Contract) NftTokens(ctx context.Context, fromIndex *domain.U128, limit *int) ([]domain.Token, error) {
	offset, pageSize := enumerationPage(fromIndex, limit)
	rows, err := c.store.ListTokens(ctx, offset, pageSize)
	if err != nil {
		return nil, err
	}
	return c.tokenViews(ctx, rows)
}

// NftTokensForOwner pages one owner's tokens in mint order
func (c *Contract) NftTokensForOwner(ctx context.Context, owner domain.AccountID, fromIndex *domain.U128, limit *int) ([]domain.Token, error) {
	offset, pageSize := enumerationPage(fromIndex, limit)
	rows, err := c.store.ListTokensByOwner(ctx, string(owner), offset, pageSize)
	if err != nil {
		return nil, err
	}
	return c.tokenViews(ctx, rows)
}

func enumerationPage(fromIndex *domain.U128, limit *int) (uint64, int) {
	var offset uint64
	if fromIndex != nil {
		offset = fromIndex.Uint64()
	}
	pageSize := defaultEnumerationLimit
	if limit != nil && *limit > 0 {
		pageSize = *limit
	}
	return offset, pageSize
}

func (c *Contract) tokenViews(ctx context.Context, rows []schema.Token) ([]domain.Token, error) {
	tokens := make([]domain.Token, 0, len(rows))
	for i := range rows {
		token, err := tokenView(ctx, c.store, &rows[i])
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, *token)
	}
	return tokens, nil
}

// NftTotalSupply returns the minted supply as a decimal string amount
func (c *Contract) NftTotalSupply(ctx context.Context) (domain.U128, error) {
	count, err := c.store.CountTokens(ctx)
	if err != nil {
		return domain.ZeroU128(), err
	}
	return domain.NewU128(count), nil
}

// NftSupplyForOwner returns one owner's supply as a decimal string amount
func (c *Contract) NftSupplyForOwner(ctx context.Context, owner domain.AccountID) (domain.U128, error) {
	count, err := c.store.CountTokensByOwner(ctx, string(owner))
	if err != nil {
		return domain.ZeroU128(), err
	}
	return domain.NewU128(count), nil
}

// NftMetadata returns the collection metadata
func (c *Contract) NftMetadata(ctx context.Context) (*domain.ContractMetadata, error) {
	state, err := loadState(ctx, c.store)
	if err != nil {
		return nil, err
	}
	return decodeContractMetadata(state)
}
