package contract

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alpha-fi/cheddar-nft-minter/internal/domain"
)

func TestSaleStatus(t *testing.T) {
	ts := func(v domain.TimestampMs) *domain.TimestampMs { return &v }

	tests := []struct {
		name string
		sale domain.Sale
		now  domain.TimestampMs
		left uint64
		want domain.Status
	}{
		{
			name: "no timers configured is open",
			sale: domain.Sale{},
			now:  1000,
			left: 10,
			want: domain.StatusOpen,
		},
		{
			name: "sold out beats everything",
			sale: domain.Sale{PublicSaleStart: ts(500)},
			now:  1000,
			left: 0,
			want: domain.StatusSoldOut,
		},
		{
			name: "before presale start",
			sale: domain.Sale{PresaleStart: ts(2000)},
			now:  1999,
			left: 10,
			want: domain.StatusClosed,
		},
		{
			name: "exactly at presale start",
			sale: domain.Sale{PresaleStart: ts(2000)},
			now:  2000,
			left: 10,
			want: domain.StatusPresale,
		},
		{
			name: "between presale and public start",
			sale: domain.Sale{PresaleStart: ts(2000), PublicSaleStart: ts(3000)},
			now:  2500,
			left: 10,
			want: domain.StatusPresale,
		},
		{
			name: "exactly at public start",
			sale: domain.Sale{PresaleStart: ts(2000), PublicSaleStart: ts(3000)},
			now:  3000,
			left: 10,
			want: domain.StatusOpen,
		},
		{
			name: "public timer alone, before start",
			sale: domain.Sale{PublicSaleStart: ts(3000)},
			now:  2999,
			left: 10,
			want: domain.StatusClosed,
		},
		{
			name: "timers pushed to max date is closed",
			sale: domain.Sale{PresaleStart: ts(domain.MaxDate), PublicSaleStart: ts(domain.MaxDate)},
			now:  4000,
			left: 10,
			want: domain.StatusClosed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, saleStatus(&tt.sale, tt.now, tt.left))
		})
	}
}

func TestOpenSale_MintUntilSoldOut(t *testing.T) {
	env := newTestEnv(t, 100, nil)
	ctx := context.Background()

	info, err := env.contract.GetSaleInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOpen, info.Status)
	assert.Equal(t, uint64(100), info.TokenFinalSupply)

	left, err := env.contract.TokensLeft(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), left)

	tokens, err := env.contract.NftMintMany(ctx, call("alice.test", mintDeposit(100)), 100)
	require.NoError(t, err)
	assert.Len(t, tokens, 100)

	// every drawn token id is unique
	seen := map[domain.TokenID]bool{}
	for _, token := range tokens {
		assert.False(t, seen[token.TokenID], "token id %s drawn twice", token.TokenID)
		seen[token.TokenID] = true
	}

	left, err = env.contract.TokensLeft(ctx)
	require.NoError(t, err)
	assert.Zero(t, left)

	info, err = env.contract.GetSaleInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSoldOut, info.Status)
	assert.Equal(t, uint64(100), info.TokenFinalSupply)

	_, err = env.contract.NftMintOne(ctx, call("alice.test", mintDeposit(1)))
	assert.ErrorIs(t, err, domain.ErrSaleClosed)
}

func TestPresale_WhitelistGating(t *testing.T) {
	now := newFakeClock().nowMs()
	presaleStart := now - 1000
	publicStart := now + 100000
	env := newTestEnv(t, 10, &domain.Sale{
		Price:           testPrice,
		PresaleStart:    &presaleStart,
		PublicSaleStart: &publicStart,
	})
	ctx := context.Background()
	adminCall := call(testOwner, domain.ZeroU128())

	allowance := uint32(2)
	require.NoError(t, env.contract.AddWhitelistAccounts(ctx, adminCall, []domain.AccountID{"vip.test"}, &allowance))

	info, err := env.contract.GetSaleInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPresale, info.Status)

	_, err = env.contract.NftMintOne(ctx, call("vip.test", mintDeposit(1)))
	require.NoError(t, err)
	_, err = env.contract.NftMintOne(ctx, call("vip.test", mintDeposit(1)))
	require.NoError(t, err)

	_, err = env.contract.NftMintOne(ctx, call("vip.test", mintDeposit(1)))
	assert.ErrorIs(t, err, domain.ErrAllowanceExceeded)

	_, err = env.contract.NftMintOne(ctx, call("pleb.test", mintDeposit(1)))
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	user, err := env.contract.GetUserSaleInfo(ctx, "vip.test")
	require.NoError(t, err)
	assert.True(t, user.IsVIP)
	require.NotNil(t, user.RemainingAllowance)
	assert.Zero(t, *user.RemainingAllowance)

	user, err = env.contract.GetUserSaleInfo(ctx, "pleb.test")
	require.NoError(t, err)
	assert.False(t, user.IsVIP)
	assert.Nil(t, user.RemainingAllowance)
}

func TestPresalePrice(t *testing.T) {
	now := newFakeClock().nowMs()
	presaleStart := now - 1000
	publicStart := now + 100000
	presalePrice := domain.NewU128(400)
	env := newTestEnv(t, 10, &domain.Sale{
		Price:           testPrice,
		PresalePrice:    &presalePrice,
		PresaleStart:    &presaleStart,
		PublicSaleStart: &publicStart,
	})
	ctx := context.Background()

	allowance := uint32(5)
	require.NoError(t, env.contract.AddWhitelistAccounts(ctx, call(testOwner, domain.ZeroU128()), []domain.AccountID{"vip.test"}, &allowance))

	cost, err := env.contract.CostPerToken(ctx, "vip.test")
	require.NoError(t, err)
	assert.Equal(t, "500", cost.String(), "presale price plus storage")

	// the presale price is enough during the presale window
	_, err = env.contract.NftMintOne(ctx, call("vip.test", presalePrice.Add(testStorage)))
	require.NoError(t, err)

	// after the public start the full price applies
	env.clock.set(env.clock.Now().Add(200 * time.Second))
	_, err = env.contract.NftMintOne(ctx, call("vip.test", presalePrice.Add(testStorage)))
	assert.ErrorIs(t, err, domain.ErrInsufficientDeposit)
}

func TestOpenSale_GlobalAllowance(t *testing.T) {
	allowance := uint32(3)
	env := newTestEnv(t, 10, &domain.Sale{Price: testPrice, Allowance: &allowance})
	ctx := context.Background()

	_, err := env.contract.NftMintMany(ctx, call("alice.test", mintDeposit(3)), 3)
	require.NoError(t, err)

	_, err = env.contract.NftMintOne(ctx, call("alice.test", mintDeposit(1)))
	assert.ErrorIs(t, err, domain.ErrAllowanceExceeded)

	// other accounts get their own lazily seeded allowance
	_, err = env.contract.NftMintOne(ctx, call("bob.test", mintDeposit(1)))
	require.NoError(t, err)
}

func TestMint_RateLimit(t *testing.T) {
	limit := uint32(2)
	env := newTestEnv(t, 10, &domain.Sale{Price: testPrice, MintRateLimit: &limit})
	ctx := context.Background()

	_, err := env.contract.NftMintMany(ctx, call("alice.test", mintDeposit(3)), 3)
	assert.ErrorIs(t, err, domain.ErrRateLimitExceeded)

	_, err = env.contract.NftMintMany(ctx, call("alice.test", mintDeposit(2)), 2)
	require.NoError(t, err)

	rate, err := env.contract.MintRateLimit(ctx)
	require.NoError(t, err)
	require.NotNil(t, rate)
	assert.Equal(t, uint32(2), *rate)
}

func TestMint_InsufficientDeposit(t *testing.T) {
	env := newTestEnv(t, 10, nil)
	ctx := context.Background()

	_, err := env.contract.NftMintOne(ctx, call("alice.test", testPrice))
	assert.ErrorIs(t, err, domain.ErrInsufficientDeposit, "price without storage is not enough")

	_, err = env.contract.NftMintMany(ctx, call("alice.test", mintDeposit(1)), 2)
	assert.ErrorIs(t, err, domain.ErrInsufficientDeposit)
}

func TestMint_OwnerMintsFree(t *testing.T) {
	env := newTestEnv(t, 10, &domain.Sale{Price: testPrice, PublicSaleStart: ptrTimestamp(domain.MaxDate)})
	ctx := context.Background()

	// the sale is closed for everyone else
	_, err := env.contract.NftMintOne(ctx, call("alice.test", mintDeposit(1)))
	assert.ErrorIs(t, err, domain.ErrSaleClosed)

	// the owner pays storage only and bypasses the gate
	_, err = env.contract.NftMintOne(ctx, call(testOwner, testStorage))
	require.NoError(t, err)
}

func TestCloseSale(t *testing.T) {
	env := newTestEnv(t, 10, nil)
	ctx := context.Background()

	require.NoError(t, env.contract.CloseSale(ctx, call(testOwner, domain.ZeroU128())))

	info, err := env.contract.GetSaleInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusClosed, info.Status)

	_, err = env.contract.NftMintOne(ctx, call("alice.test", mintDeposit(1)))
	assert.ErrorIs(t, err, domain.ErrSaleClosed)

	// reopening by timer override works
	require.NoError(t, env.contract.StartSale(ctx, call(testOwner, domain.ZeroU128()), nil))
	info, err = env.contract.GetSaleInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOpen, info.Status)
}

func TestStartPresale_Override(t *testing.T) {
	env := newTestEnv(t, 10, &domain.Sale{Price: testPrice, PublicSaleStart: ptrTimestamp(domain.MaxDate)})
	ctx := context.Background()

	info, err := env.contract.GetSaleInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusClosed, info.Status)

	require.NoError(t, env.contract.StartPresale(ctx, call(testOwner, domain.ZeroU128()), nil))
	info, err = env.contract.GetSaleInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPresale, info.Status)
}

func TestUpdatePrice_ReturnsPrevious(t *testing.T) {
	env := newTestEnv(t, 10, nil)
	ctx := context.Background()
	adminCall := call(testOwner, domain.ZeroU128())

	previous, err := env.contract.UpdatePrice(ctx, adminCall, domain.NewU128(5000))
	require.NoError(t, err)
	assert.Zero(t, previous.Cmp(testPrice))

	presale := domain.NewU128(2500)
	old, err := env.contract.UpdatePresalePrice(ctx, adminCall, &presale)
	require.NoError(t, err)
	assert.Nil(t, old)

	_, err = env.contract.UpdatePrice(ctx, call("mallory.test", domain.ZeroU128()), domain.NewU128(1))
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestUpdateURI(t *testing.T) {
	env := newTestEnv(t, 10, nil)
	ctx := context.Background()

	require.NoError(t, env.contract.UpdateURI(ctx, call(testOwner, domain.ZeroU128()), "ipfs://bafy123"))

	meta, err := env.contract.NftMetadata(ctx)
	require.NoError(t, err)
	require.NotNil(t, meta.BaseURI)
	assert.Equal(t, "ipfs://bafy123", *meta.BaseURI)
}

func TestUpdateWhitelistAccounts_Increments(t *testing.T) {
	env := newTestEnv(t, 10, nil)
	ctx := context.Background()
	adminCall := call(testOwner, domain.ZeroU128())

	one := uint32(1)
	require.NoError(t, env.contract.AddWhitelistAccounts(ctx, adminCall, []domain.AccountID{"vip.test"}, &one))
	require.NoError(t, env.contract.UpdateWhitelistAccounts(ctx, adminCall, []domain.AccountID{"vip.test", "fresh.test"}, 2))

	remaining, err := env.contract.RemainingAllowance(ctx, "vip.test")
	require.NoError(t, err)
	require.NotNil(t, remaining)
	assert.Equal(t, uint32(3), *remaining)

	remaining, err = env.contract.RemainingAllowance(ctx, "fresh.test")
	require.NoError(t, err)
	require.NotNil(t, remaining)
	assert.Equal(t, uint32(2), *remaining)

	whitelisted, err := env.contract.Whitelisted(ctx, "fresh.test")
	require.NoError(t, err)
	assert.True(t, whitelisted)
}

func TestCosts(t *testing.T) {
	env := newTestEnv(t, 10, nil)
	ctx := context.Background()

	total, err := env.contract.TotalCost(ctx, "alice.test", 3)
	require.NoError(t, err)
	assert.Equal(t, "3300", total.String())

	assert.Equal(t, "100", env.contract.TokenStorageCost().String())

	linkdropCost, err := env.contract.CostOfLinkdrop(ctx, "alice.test")
	require.NoError(t, err)
	assert.Equal(t, "1600", linkdropCost.String(), "token cost plus key registration deposit")

	initial, err := env.contract.Initial(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), initial)
}

func ptrTimestamp(v domain.TimestampMs) *domain.TimestampMs {
	return &v
}
