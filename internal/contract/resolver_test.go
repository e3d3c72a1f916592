package contract

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alpha-fi/cheddar-nft-minter/internal/domain"
)

func TestTransferCall_ReceiverAccepts(t *testing.T) {
	env := newTestEnv(t, 10, nil)
	ctx := context.Background()

	token := mintOne(t, env, "alice.test")

	pendingID, err := env.contract.NftTransferCall(ctx, call("alice.test", domain.OneYocto()), "vault.test", token.TokenID, nil, nil, "stake")
	require.NoError(t, err)
	require.NotEmpty(t, pendingID)

	// the transfer is visible before the receiver answers
	during, err := env.contract.NftToken(ctx, token.TokenID)
	require.NoError(t, err)
	assert.Equal(t, domain.AccountID("vault.test"), during.OwnerID)

	env.drain()

	after, err := env.contract.NftToken(ctx, token.TokenID)
	require.NoError(t, err)
	assert.Equal(t, domain.AccountID("vault.test"), after.OwnerID)

	require.Len(t, env.caller.transfers, 1)
	assert.Equal(t, domain.AccountID("alice.test"), env.caller.transfers[0].SenderID)
	assert.Equal(t, "stake", env.caller.transfers[0].Msg)

	// the pending record is consumed
	pending, err := env.store.GetPendingTransfer(ctx, pendingID)
	require.NoError(t, err)
	assert.Nil(t, pending)
}

func TestTransferCall_ReceiverRejects(t *testing.T) {
	env := newTestEnv(t, 10, nil)
	env.caller.returnToken = true
	ctx := context.Background()

	token := mintOne(t, env, "alice.test")

	// an approval that must be restored by the compensation
	id, err := env.contract.NftApprove(ctx, call("alice.test", domain.OneYocto()), token.TokenID, "market.test", nil)
	require.NoError(t, err)

	_, err = env.contract.NftTransferCall(ctx, call("alice.test", domain.OneYocto()), "vault.test", token.TokenID, nil, nil, "stake")
	require.NoError(t, err)

	env.drain()

	after, err := env.contract.NftToken(ctx, token.TokenID)
	require.NoError(t, err)
	assert.Equal(t, domain.AccountID("alice.test"), after.OwnerID, "rejection restores the previous owner")
	assert.Equal(t, map[domain.AccountID]uint64{"market.test": id}, after.ApprovedAccountIDs, "rejection restores the cleared approvals")

	// forward transfer plus the compensating reversal
	events := env.publisher.byKind(domain.EventKindTransfer)
	assert.Len(t, events, 2)
}

func TestTransferCall_HookFailureCountsAsRejection(t *testing.T) {
	env := newTestEnv(t, 10, nil)
	env.caller.err = errors.New("receiver unreachable")
	ctx := context.Background()

	token := mintOne(t, env, "alice.test")

	_, err := env.contract.NftTransferCall(ctx, call("alice.test", domain.OneYocto()), "vault.test", token.TokenID, nil, nil, "stake")
	require.NoError(t, err)

	env.drain()

	after, err := env.contract.NftToken(ctx, token.TokenID)
	require.NoError(t, err)
	assert.Equal(t, domain.AccountID("alice.test"), after.OwnerID)
}

func TestTransferCall_ReentrantMoveWins(t *testing.T) {
	env := newTestEnv(t, 10, nil)
	env.caller.returnToken = true
	env.caller.gate = make(chan struct{})
	ctx := context.Background()

	token := mintOne(t, env, "alice.test")

	_, err := env.contract.NftTransferCall(ctx, call("alice.test", domain.OneYocto()), "vault.test", token.TokenID, nil, nil, "stake")
	require.NoError(t, err)

	// the receiver moves the token on before its hook resolves
	require.NoError(t, env.contract.NftTransfer(ctx, call("vault.test", domain.OneYocto()), "carol.test", token.TokenID, nil, nil))

	close(env.caller.gate)
	env.drain()

	after, err := env.contract.NftToken(ctx, token.TokenID)
	require.NoError(t, err)
	assert.Equal(t, domain.AccountID("carol.test"), after.OwnerID, "the re-entrant transfer is not undone")
}

func TestResolveTransfer_Idempotent(t *testing.T) {
	env := newTestEnv(t, 10, nil)
	ctx := context.Background()

	token := mintOne(t, env, "alice.test")

	pendingID, err := env.contract.NftTransferCall(ctx, call("alice.test", domain.OneYocto()), "vault.test", token.TokenID, nil, nil, "stake")
	require.NoError(t, err)

	env.drain()

	// resolving an already settled id reports kept and changes nothing
	kept, err := env.contract.ResolveTransfer(ctx, pendingID, true)
	require.NoError(t, err)
	assert.True(t, kept)

	after, err := env.contract.NftToken(ctx, token.TokenID)
	require.NoError(t, err)
	assert.Equal(t, domain.AccountID("vault.test"), after.OwnerID)
}

func TestTransferCall_GateFailuresRollBackEverything(t *testing.T) {
	env := newTestEnv(t, 10, nil)
	ctx := context.Background()

	token := mintOne(t, env, "alice.test")

	_, err := env.contract.NftTransferCall(ctx, call("mallory.test", domain.OneYocto()), "vault.test", token.TokenID, nil, nil, "steal")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	after, err := env.contract.NftToken(ctx, token.TokenID)
	require.NoError(t, err)
	assert.Equal(t, domain.AccountID("alice.test"), after.OwnerID)
	assert.Empty(t, env.caller.transfers, "a failed gate never reaches the receiver")
}
