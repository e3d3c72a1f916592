package contract

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alpha-fi/cheddar-nft-minter/internal/domain"
)

func mintOne(t *testing.T, env *testEnv, owner domain.AccountID) domain.Token {
	t.Helper()
	token, err := env.contract.NftMintOne(context.Background(), call(owner, mintDeposit(1)))
	require.NoError(t, err)
	return *token
}

func TestMint_TokenRoundTrip(t *testing.T) {
	env := newTestEnv(t, 10, nil)
	ctx := context.Background()

	minted := mintOne(t, env, "alice.test")

	token, err := env.contract.NftToken(ctx, minted.TokenID)
	require.NoError(t, err)
	require.NotNil(t, token)
	assert.Equal(t, minted.TokenID, token.TokenID)
	assert.Equal(t, domain.AccountID("alice.test"), token.OwnerID)
	require.NotNil(t, token.Metadata)
	require.NotNil(t, token.Metadata.Media)
	assert.Equal(t, string(minted.TokenID)+".png", *token.Metadata.Media)
	assert.Empty(t, token.ApprovedAccountIDs)

	// never-minted ids are null, not an error
	missing, err := env.contract.NftToken(ctx, "999")
	require.NoError(t, err)
	assert.Nil(t, missing)

	events := env.publisher.byKind(domain.EventKindMint)
	require.Len(t, events, 1)
}

func TestNftMint_SpecificToken(t *testing.T) {
	env := newTestEnv(t, 10, nil)
	ctx := context.Background()
	adminCall := call(testOwner, testStorage)

	token, err := env.contract.NftMint(ctx, adminCall, "5", "friend.test")
	require.NoError(t, err)
	assert.Equal(t, domain.TokenID("5"), token.TokenID)
	assert.Equal(t, domain.AccountID("friend.test"), token.OwnerID)

	// the raffle slot was consumed, so the final supply is unchanged
	initial, err := env.contract.Initial(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), initial)
	left, err := env.contract.TokensLeft(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(9), left)

	// number 5 can never be drawn again
	_, err = env.contract.NftMint(ctx, adminCall, "5", "friend.test")
	assert.ErrorIs(t, err, domain.ErrDuplicateTokenID)

	// outside the collection
	_, err = env.contract.NftMint(ctx, adminCall, "10", "friend.test")
	assert.ErrorIs(t, err, domain.ErrDuplicateTokenID)

	// direct mint is privileged
	_, err = env.contract.NftMint(ctx, call("alice.test", testStorage), "3", "alice.test")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestApprove_IDsStrictlyIncrease(t *testing.T) {
	env := newTestEnv(t, 10, nil)
	ctx := context.Background()

	token := mintOne(t, env, "alice.test")
	aliceCall := call("alice.test", domain.OneYocto())

	id0, err := env.contract.NftApprove(ctx, aliceCall, token.TokenID, "market.test", nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), id0)

	// revoking and re-approving never reuses an id
	require.NoError(t, env.contract.NftRevoke(ctx, aliceCall, token.TokenID, "market.test"))
	id1, err := env.contract.NftApprove(ctx, aliceCall, token.TokenID, "market.test", nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id1)

	id2, err := env.contract.NftApprove(ctx, aliceCall, token.TokenID, "broker.test", nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), id2)

	approved, err := env.contract.NftIsApproved(ctx, token.TokenID, "market.test", &id1)
	require.NoError(t, err)
	assert.True(t, approved)

	stale := id0
	approved, err = env.contract.NftIsApproved(ctx, token.TokenID, "market.test", &stale)
	require.NoError(t, err)
	assert.False(t, approved)

	// only the owner grants approvals
	_, err = env.contract.NftApprove(ctx, call("mallory.test", domain.OneYocto()), token.TokenID, "mallory.test", nil)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	// approvals require a deposit
	_, err = env.contract.NftApprove(ctx, call("alice.test", domain.ZeroU128()), token.TokenID, "market.test", nil)
	assert.ErrorIs(t, err, domain.ErrInsufficientDeposit)
}

func TestApprove_BoundedPerToken(t *testing.T) {
	env := newTestEnv(t, 10, nil)
	ctx := context.Background()

	token := mintOne(t, env, "alice.test")
	aliceCall := call("alice.test", domain.OneYocto())

	for i := 0; i < maxApprovalsPerToken; i++ {
		account := domain.AccountID(fmt.Sprintf("grantee%d.test", i))
		_, err := env.contract.NftApprove(ctx, aliceCall, token.TokenID, account, nil)
		require.NoError(t, err)
	}

	_, err := env.contract.NftApprove(ctx, aliceCall, token.TokenID, "onemore.test", nil)
	assert.ErrorIs(t, err, domain.ErrTooManyApprovals)

	// replacing an existing grant does not grow the set
	_, err = env.contract.NftApprove(ctx, aliceCall, token.TokenID, "grantee0.test", nil)
	require.NoError(t, err)
}

func TestApprove_NotifiesReceiver(t *testing.T) {
	env := newTestEnv(t, 10, nil)
	ctx := context.Background()

	token := mintOne(t, env, "alice.test")
	msg := "list-for-sale"
	id, err := env.contract.NftApprove(ctx, call("alice.test", domain.OneYocto()), token.TokenID, "market.test", &msg)
	require.NoError(t, err)

	env.drain()

	require.Len(t, env.caller.approvals, 1)
	assert.Equal(t, token.TokenID, env.caller.approvals[0].TokenID)
	assert.Equal(t, id, env.caller.approvals[0].ApprovalID)
	assert.Equal(t, msg, env.caller.approvals[0].Msg)
}

func TestTransfer_OwnerAndApproved(t *testing.T) {
	env := newTestEnv(t, 10, nil)
	ctx := context.Background()

	token := mintOne(t, env, "alice.test")

	// exactly one yocto is required
	err := env.contract.NftTransfer(ctx, call("alice.test", domain.ZeroU128()), "bob.test", token.TokenID, nil, nil)
	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)

	require.NoError(t, env.contract.NftTransfer(ctx, call("alice.test", domain.OneYocto()), "bob.test", token.TokenID, nil, nil))

	after, err := env.contract.NftToken(ctx, token.TokenID)
	require.NoError(t, err)
	assert.Equal(t, domain.AccountID("bob.test"), after.OwnerID)

	// bob approves carol, who transfers with a matching approval id
	id, err := env.contract.NftApprove(ctx, call("bob.test", domain.OneYocto()), token.TokenID, "carol.test", nil)
	require.NoError(t, err)

	wrong := id + 1
	err = env.contract.NftTransfer(ctx, call("carol.test", domain.OneYocto()), "dave.test", token.TokenID, &wrong, nil)
	assert.ErrorIs(t, err, domain.ErrApprovalIDMismatch)

	require.NoError(t, env.contract.NftTransfer(ctx, call("carol.test", domain.OneYocto()), "dave.test", token.TokenID, &id, nil))

	// the transfer cleared carol's approval
	after, err = env.contract.NftToken(ctx, token.TokenID)
	require.NoError(t, err)
	assert.Equal(t, domain.AccountID("dave.test"), after.OwnerID)
	assert.Empty(t, after.ApprovedAccountIDs)

	// carol cannot move it again
	err = env.contract.NftTransfer(ctx, call("carol.test", domain.OneYocto()), "carol.test", token.TokenID, nil, nil)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	events := env.publisher.byKind(domain.EventKindTransfer)
	require.Len(t, events, 2)
	second, ok := events[1].Data.([]domain.TransferEventData)
	require.True(t, ok)
	require.Len(t, second, 1)
	require.NotNil(t, second[0].AuthorizedID)
	assert.Equal(t, domain.AccountID("carol.test"), *second[0].AuthorizedID)
}

func TestTransfer_Errors(t *testing.T) {
	env := newTestEnv(t, 10, nil)
	ctx := context.Background()

	token := mintOne(t, env, "alice.test")

	err := env.contract.NftTransfer(ctx, call("alice.test", domain.OneYocto()), "alice.test", token.TokenID, nil, nil)
	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr, "self transfer is rejected")

	err = env.contract.NftTransfer(ctx, call("alice.test", domain.OneYocto()), "bob.test", "404", nil, nil)
	assert.ErrorIs(t, err, domain.ErrTokenNotFound)

	err = env.contract.NftTransfer(ctx, call("mallory.test", domain.OneYocto()), "mallory.test", token.TokenID, nil, nil)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestRevokeAll(t *testing.T) {
	env := newTestEnv(t, 10, nil)
	ctx := context.Background()

	token := mintOne(t, env, "alice.test")
	aliceCall := call("alice.test", domain.OneYocto())

	// revoking with no approvals is a no-op
	require.NoError(t, env.contract.NftRevokeAll(ctx, aliceCall, token.TokenID))

	_, err := env.contract.NftApprove(ctx, aliceCall, token.TokenID, "market.test", nil)
	require.NoError(t, err)
	_, err = env.contract.NftApprove(ctx, aliceCall, token.TokenID, "broker.test", nil)
	require.NoError(t, err)

	require.NoError(t, env.contract.NftRevokeAll(ctx, aliceCall, token.TokenID))

	after, err := env.contract.NftToken(ctx, token.TokenID)
	require.NoError(t, err)
	assert.Empty(t, after.ApprovedAccountIDs)
}

func TestEnumeration(t *testing.T) {
	env := newTestEnv(t, 10, nil)
	ctx := context.Background()

	var mintOrder []domain.TokenID
	for i := 0; i < 5; i++ {
		owner := domain.AccountID("alice.test")
		if i%2 == 1 {
			owner = "bob.test"
		}
		token := mintOne(t, env, owner)
		mintOrder = append(mintOrder, token.TokenID)
	}

	supply, err := env.contract.NftTotalSupply(ctx)
	require.NoError(t, err)
	assert.Equal(t, "5", supply.String())

	aliceSupply, err := env.contract.NftSupplyForOwner(ctx, "alice.test")
	require.NoError(t, err)
	assert.Equal(t, "3", aliceSupply.String())

	all, err := env.contract.NftTokens(ctx, nil, nil)
	require.NoError(t, err)
	require.Len(t, all, 5)
	for i, token := range all {
		assert.Equal(t, mintOrder[i], token.TokenID, "tokens enumerate in mint order")
	}

	// paginate from index 3
	from := domain.NewU128(3)
	limit := 2
	page, err := env.contract.NftTokens(ctx, &from, &limit)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, mintOrder[3], page[0].TokenID)
	assert.Equal(t, mintOrder[4], page[1].TokenID)

	bobTokens, err := env.contract.NftTokensForOwner(ctx, "bob.test", nil, nil)
	require.NoError(t, err)
	assert.Len(t, bobTokens, 2)

	none, err := env.contract.NftTokensForOwner(ctx, "nobody.test", nil, nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}
