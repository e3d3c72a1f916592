package contract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alpha-fi/cheddar-nft-minter/internal/domain"
)

const (
	testCheddar = domain.AccountID("token.cheddar.test")

	// 1 NEAR = 2 cheddar, scaled by 1e3
	testCheddarNear = uint32(2000)
)

// newCheddarEnv builds an initialized engine with cheddar payments configured
func newCheddarEnv(t *testing.T, size uint32, sale *domain.Sale, discount uint32) *testEnv {
	t.Helper()

	env := newEnv(t)
	if sale == nil {
		sale = &domain.Sale{Price: testPrice}
	}
	require.NoError(t, env.contract.New(context.Background(), InitArgs{
		OwnerID: testOwner,
		Metadata: domain.ContractMetadata{
			Spec:   "nft-1.0.0",
			Name:   "Cheddar Collection",
			Symbol: "CHDR",
		},
		Size:             size,
		Sale:             sale,
		LinkdropContract: testFacility,
		Cheddar:          testCheddar,
		CheddarNear:      testCheddarNear,
		CheddarDiscount:  discount,
	}))

	return env
}

func ftDeposit(t *testing.T, env *testEnv, account domain.AccountID, amount domain.U128) {
	t.Helper()
	unused, err := env.contract.FtOnTransfer(context.Background(), call(testCheddar, domain.ZeroU128()), account, amount, "")
	require.NoError(t, err)
	assert.True(t, unused.IsZero(), "the full deposit is always used")
}

func cheddarBalance(t *testing.T, env *testEnv, account domain.AccountID) string {
	t.Helper()
	balance, err := env.contract.BalanceOf(context.Background(), account)
	require.NoError(t, err)
	return balance.String()
}

func TestNew_CheddarValidation(t *testing.T) {
	baseArgs := func() InitArgs {
		return InitArgs{
			OwnerID:         testOwner,
			Metadata:        domain.ContractMetadata{Spec: "nft-1.0.0", Name: "Cheddar Collection", Symbol: "CHDR"},
			Size:            5,
			Cheddar:         testCheddar,
			CheddarNear:     testCheddarNear,
			CheddarDiscount: 20,
		}
	}
	var verr *domain.ValidationError

	env := newEnv(t)
	args := baseArgs()
	args.CheddarNear = 100
	assert.ErrorAs(t, env.contract.New(context.Background(), args), &verr, "the conversion rate must exceed 100")

	args = baseArgs()
	args.CheddarDiscount = 100
	assert.ErrorAs(t, env.contract.New(context.Background(), args), &verr, "a full discount would make mints free")

	require.NoError(t, env.contract.New(context.Background(), baseArgs()))
}

func TestFtOnTransfer_OnlyCheddarContract(t *testing.T) {
	env := newCheddarEnv(t, 10, nil, 0)
	ctx := context.Background()

	_, err := env.contract.FtOnTransfer(ctx, call("mallory.test", domain.ZeroU128()), "alice.test", minCheddarBalance, "")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	// without cheddar configured even the right caller is rejected
	plain := newTestEnv(t, 10, nil)
	_, err = plain.contract.FtOnTransfer(ctx, call(testCheddar, domain.ZeroU128()), "alice.test", minCheddarBalance, "")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestFtOnTransfer_RegistersAndAccumulates(t *testing.T) {
	env := newCheddarEnv(t, 10, nil, 0)
	ctx := context.Background()

	// the first deposit must reach the registration minimum
	_, err := env.contract.FtOnTransfer(ctx, call(testCheddar, domain.ZeroU128()), "alice.test", domain.NewU128(1), "")
	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)
	assert.Equal(t, "0", cheddarBalance(t, env, "alice.test"))

	ftDeposit(t, env, "alice.test", minCheddarBalance)
	assert.Equal(t, minCheddarBalance.String(), cheddarBalance(t, env, "alice.test"))

	// once registered, any amount tops the balance up
	ftDeposit(t, env, "alice.test", domain.NewU128(7))
	assert.Equal(t, minCheddarBalance.Add(domain.NewU128(7)).String(), cheddarBalance(t, env, "alice.test"))
}

func TestWithdrawCheddar(t *testing.T) {
	env := newCheddarEnv(t, 10, nil, 0)
	ctx := context.Background()

	err := env.contract.WithdrawCheddar(ctx, call("alice.test", domain.ZeroU128()), nil)
	assert.ErrorIs(t, err, domain.ErrCheddarDepositNotFound)

	ftDeposit(t, env, "alice.test", minCheddarBalance.MulUint64(3))

	over := minCheddarBalance.MulUint64(4)
	err = env.contract.WithdrawCheddar(ctx, call("alice.test", domain.ZeroU128()), &over)
	assert.ErrorIs(t, err, domain.ErrInsufficientDeposit)

	// a partial withdraw may not strand a dust balance
	tooMuch := minCheddarBalance.MulUint64(3).Sub(domain.NewU128(1))
	err = env.contract.WithdrawCheddar(ctx, call("alice.test", domain.ZeroU128()), &tooMuch)
	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)

	part := minCheddarBalance
	require.NoError(t, env.contract.WithdrawCheddar(ctx, call("alice.test", domain.ZeroU128()), &part))
	assert.Equal(t, minCheddarBalance.MulUint64(2).String(), cheddarBalance(t, env, "alice.test"))

	// a nil amount withdraws everything and unregisters the account
	require.NoError(t, env.contract.WithdrawCheddar(ctx, call("alice.test", domain.ZeroU128()), nil))
	assert.Equal(t, "0", cheddarBalance(t, env, "alice.test"))
	err = env.contract.WithdrawCheddar(ctx, call("alice.test", domain.ZeroU128()), nil)
	assert.ErrorIs(t, err, domain.ErrCheddarDepositNotFound)
}

func TestNftMintWithCheddar(t *testing.T) {
	env := newCheddarEnv(t, 10, nil, 20)
	ctx := context.Background()

	// price 1000 at rate 2000 is 2000 cheddar; the 20% discount leaves 1600
	cost, err := env.contract.TotalCostInCheddar(ctx, "alice.test", 1)
	require.NoError(t, err)
	assert.Equal(t, "1600", cost.String())

	// cheddar covers the price, NEAR still covers storage
	_, err = env.contract.NftMintOneWithCheddar(ctx, call("alice.test", testStorage))
	assert.ErrorIs(t, err, domain.ErrInsufficientDeposit, "no cheddar deposited yet")

	ftDeposit(t, env, "alice.test", minCheddarBalance)
	_, err = env.contract.NftMintOneWithCheddar(ctx, call("alice.test", domain.ZeroU128()))
	assert.ErrorIs(t, err, domain.ErrInsufficientDeposit, "storage is payable in NEAR")

	token, err := env.contract.NftMintOneWithCheddar(ctx, call("alice.test", testStorage))
	require.NoError(t, err)
	assert.Equal(t, domain.AccountID("alice.test"), token.OwnerID)

	assert.Equal(t, minCheddarBalance.Sub(domain.NewU128(1600)).String(), cheddarBalance(t, env, "alice.test"))
	assert.Equal(t, "1600", cheddarBalance(t, env, testOwner), "the price lands on the owner's deposit")
}

func TestNftMintWithCheddar_InitialRoyalties(t *testing.T) {
	env := newCheddarEnv(t, 10, &domain.Sale{
		Price: testPrice,
		InitialRoyalties: &domain.Royalties{
			Accounts: map[domain.AccountID]uint16{"charity.test": 2500},
		},
	}, 20)
	ctx := context.Background()

	ftDeposit(t, env, "alice.test", minCheddarBalance)
	_, err := env.contract.NftMintOneWithCheddar(ctx, call("alice.test", testStorage))
	require.NoError(t, err)

	// royalty shares are credited as internal cheddar deposits
	assert.Equal(t, "400", cheddarBalance(t, env, "charity.test"))
	assert.Equal(t, "1200", cheddarBalance(t, env, testOwner))
}

func TestNftMintWithCheddar_NotConfigured(t *testing.T) {
	env := newTestEnv(t, 10, nil)

	_, err := env.contract.NftMintOneWithCheddar(context.Background(), call("alice.test", mintDeposit(1)))
	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = env.contract.TotalCostInCheddar(context.Background(), "alice.test", 1)
	assert.ErrorAs(t, err, &verr)
}

func TestAdminSetCheddarNear(t *testing.T) {
	env := newCheddarEnv(t, 10, nil, 20)
	ctx := context.Background()

	err := env.contract.AdminSetCheddarNear(ctx, call("mallory.test", domain.ZeroU128()), 4000)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	err = env.contract.AdminSetCheddarNear(ctx, call(testOwner, domain.ZeroU128()), 100)
	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)

	require.NoError(t, env.contract.AdminSetCheddarNear(ctx, call(testOwner, domain.ZeroU128()), 4000))

	cost, err := env.contract.TotalCostInCheddar(ctx, "alice.test", 2)
	require.NoError(t, err)
	assert.Equal(t, "6400", cost.String(), "two tokens at the updated rate")

	// the owner still mints for free
	cost, err = env.contract.TotalCostInCheddar(ctx, testOwner, 1)
	require.NoError(t, err)
	assert.True(t, cost.IsZero())
}
