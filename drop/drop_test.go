package drop

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/premier-io/drops-go/common"
	"github.com/premier-io/drops-go/verifier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	owner := common.RandEthAddress()

	_, err := New(0, 0, big.NewInt(1), 1, owner, nil)
	assert.ErrorIs(t, err, ErrInvalidMaxSupply)
	_, err = New(0, 1, big.NewInt(1), 0, owner, nil)
	assert.ErrorIs(t, err, ErrInvalidVersions)
	_, err = New(0, 1, nil, 1, owner, nil)
	assert.ErrorIs(t, err, ErrInvalidPrice)
	_, err = New(0, 1, big.NewInt(-1), 1, owner, nil)
	assert.ErrorIs(t, err, ErrInvalidPrice)
	_, err = New(0, 1, big.NewInt(1), 1, common.Address{}, nil)
	assert.ErrorIs(t, err, ErrInvalidAccount)

	d, err := New(3, 10, big.NewInt(0), 2, owner, nil)
	require.NoError(t, err)
	info := d.Info()
	assert.Equal(t, "DROP#3", info.Name)
	assert.Equal(t, "DROP#3", info.Symbol)
	assert.Equal(t, uint64(3), info.Id)
	assert.Equal(t, uint64(0), info.CurrentSupply)
	assert.Equal(t, uint64(10), info.MaxSupply)
	assert.Equal(t, "0", info.Price.String())
	assert.Equal(t, uint64(2), info.Versions)
	assert.Empty(t, info.DropURI)
	assert.Empty(t, info.ContractURI)
	assert.Empty(t, info.BaseURI)
	assert.Equal(t, owner, info.Owner)
	assert.Equal(t, "0", d.Balance().String())
}

func TestMint(t *testing.T) {
	env := newTestEnv()
	d := env.newDrop(t, 3, 100, 2)
	buyer := common.RandEthAddress()

	for i := uint64(0); i < 3; i++ {
		id, err := d.Mint(i%2, big.NewInt(100), buyer)
		assert.NoError(t, err)
		assert.Equal(t, i, id)

		ev := env.nextEvent(t)
		assert.Equal(t, EventMinted, ev.Kind)
		assert.Equal(t, i, ev.DripId)
	}

	assert.Equal(t, uint64(3), d.TotalSupply())
	assert.Equal(t, uint64(3), d.BalanceOf(buyer))
	assert.Equal(t, "300", d.Balance().String())

	drip, err := d.GetDrip(1)
	assert.NoError(t, err)
	assert.Equal(t, uint64(1), drip.Version)
	assert.Equal(t, DripStatusDefault, drip.Status)
	assert.Nil(t, drip.Mutation)
	assert.Equal(t, buyer, drip.Owner)

	_, err = d.GetDrip(3)
	assert.ErrorIs(t, err, ErrInvalidDripId)

	_, err = d.Mint(0, big.NewInt(100), buyer)
	assert.ErrorIs(t, err, ErrMaxSupplyReached)
	assert.Equal(t, uint64(3), d.TotalSupply())
}

func TestMintCheckOrder(t *testing.T) {
	env := newTestEnv()
	d := env.newDrop(t, 1, 50, 1)
	buyer := common.RandEthAddress()

	// version before price
	_, err := d.Mint(1, big.NewInt(49), buyer)
	assert.ErrorIs(t, err, ErrInvalidVersionId)

	_, err = d.Mint(0, big.NewInt(49), buyer)
	assert.ErrorIs(t, err, ErrInvalidPrice)
	_, err = d.Mint(0, big.NewInt(51), buyer)
	assert.ErrorIs(t, err, ErrInvalidPrice)
	_, err = d.Mint(0, nil, buyer)
	assert.ErrorIs(t, err, ErrInvalidPrice)
	assert.Equal(t, "0", d.Balance().String())

	_, err = d.Mint(0, big.NewInt(50), buyer)
	assert.NoError(t, err)

	// supply before version and price
	_, err = d.Mint(5, big.NewInt(1), buyer)
	assert.ErrorIs(t, err, ErrMaxSupplyReached)
}

func TestMutate(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	d := env.newDrop(t, 5, 0, 1)
	alice := common.RandEthAddress()
	bob := common.RandEthAddress()

	_, err := d.Mint(0, big.NewInt(0), alice)
	require.NoError(t, err)
	env.nextEvent(t)
	require.NoError(t, env.tokens.SetOwner(env.nft, big.NewInt(1), alice))
	require.NoError(t, env.tokens.SetOwner(env.nft, big.NewInt(2), bob))

	err = d.Mutate(ctx, 1, env.nft, big.NewInt(1), alice)
	assert.ErrorIs(t, err, ErrInvalidDripId)

	err = d.Mutate(ctx, 0, env.nft, big.NewInt(1), bob)
	assert.ErrorIs(t, err, ErrInvalidDripOwner)

	err = d.Mutate(ctx, 0, env.nft, big.NewInt(2), alice)
	assert.ErrorIs(t, err, ErrInvalidTokenOwner)

	plain := common.RandEthAddress()
	env.tokens.Deploy(plain, false)
	err = d.Mutate(ctx, 0, plain, big.NewInt(1), alice)
	assert.ErrorIs(t, err, ErrUnsupportedTokenContract)

	err = d.Mutate(ctx, 0, env.nft, nil, alice)
	assert.ErrorIs(t, err, ErrInvalidTokenId)

	drip, _ := d.GetDrip(0)
	assert.Equal(t, DripStatusDefault, drip.Status)

	err = d.Mutate(ctx, 0, env.nft, big.NewInt(1), alice)
	assert.NoError(t, err)
	ev := env.nextEvent(t)
	assert.Equal(t, EventMutated, ev.Kind)
	assert.Equal(t, uint64(0), ev.DripId)

	drip, _ = d.GetDrip(0)
	assert.Equal(t, DripStatusMutated, drip.Status)
	require.NotNil(t, drip.Mutation)
	assert.Equal(t, env.nft, drip.Mutation.TokenContract)
	assert.Equal(t, "1", drip.Mutation.TokenId.String())

	err = d.Mutate(ctx, 0, env.nft, big.NewInt(1), alice)
	assert.ErrorIs(t, err, ErrAlreadyMutated)
}

func TestMutateWithRegisteredInterface(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	d := env.newDrop(t, 5, 0, 1)
	alice := common.RandEthAddress()

	// a collection the probe rejects, served by a registered verifier
	punks := common.RandEthAddress()
	env.tokens.Deploy(punks, false)
	require.NoError(t, env.tokens.SetOwner(punks, big.NewInt(7), alice))

	punkId := common.RandEthAddress()
	dir := verifier.NewDirectory()
	dir.Register(punkId, env.tokens)
	env.cfg.Resolver = verifier.NewResolver(&verifier.ResolverConfig{Directory: dir})

	_, err := d.Mint(0, big.NewInt(0), alice)
	require.NoError(t, err)

	err = d.Mutate(ctx, 0, punks, big.NewInt(7), alice)
	assert.ErrorIs(t, err, ErrUnsupportedTokenContract)

	assert.Equal(t, common.Address{}, d.GetTokenContractInterface(punks))
	err = d.SetTokenContractInterface(punks, punkId, alice)
	assert.ErrorIs(t, err, ErrCallerNotOwner)
	err = d.SetTokenContractInterface(punks, punkId, env.owner)
	assert.NoError(t, err)
	assert.Equal(t, punkId, d.GetTokenContractInterface(punks))
	assert.Len(t, d.TokenContractInterfaces(), 1)

	err = d.Mutate(ctx, 0, punks, big.NewInt(7), alice)
	assert.NoError(t, err)

	err = d.SetTokenContractInterface(punks, common.Address{}, env.owner)
	assert.NoError(t, err)
	assert.Equal(t, common.Address{}, d.GetTokenContractInterface(punks))
}

func TestMutateReentrant(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	d := env.newDrop(t, 5, 0, 1)
	alice := common.RandEthAddress()
	require.NoError(t, env.tokens.SetOwner(env.nft, big.NewInt(1), alice))

	_, err := d.Mint(0, big.NewInt(0), alice)
	require.NoError(t, err)

	var inner error
	var supplyInside uint64
	v := &hookVerifier{inner: env.tokens}
	v.hook = func() {
		v.hook = nil
		inner = d.Mutate(ctx, 0, env.nft, big.NewInt(1), alice)
		// the drop stays usable while a query is in flight
		_, err := d.Mint(0, big.NewInt(0), alice)
		assert.NoError(t, err)
		supplyInside = d.TotalSupply()
	}
	env.cfg.Resolver = &staticResolver{v: v}

	err = d.Mutate(ctx, 0, env.nft, big.NewInt(1), alice)
	assert.NoError(t, err)
	assert.ErrorIs(t, inner, ErrAlreadyMutated)
	assert.Equal(t, uint64(2), supplyInside)

	drip, _ := d.GetDrip(0)
	assert.Equal(t, DripStatusMutated, drip.Status)
}

func TestMutateDripMovedDuringQuery(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	d := env.newDrop(t, 5, 0, 1)
	alice := common.RandEthAddress()
	bob := common.RandEthAddress()
	require.NoError(t, env.tokens.SetOwner(env.nft, big.NewInt(1), alice))

	_, err := d.Mint(0, big.NewInt(0), alice)
	require.NoError(t, err)

	v := &hookVerifier{inner: env.tokens}
	v.hook = func() {
		assert.NoError(t, d.TransferDrip(0, bob, alice))
	}
	env.cfg.Resolver = &staticResolver{v: v}

	err = d.Mutate(ctx, 0, env.nft, big.NewInt(1), alice)
	assert.ErrorIs(t, err, ErrInvalidDripOwner)

	drip, _ := d.GetDrip(0)
	assert.Equal(t, DripStatusDefault, drip.Status)
	assert.Equal(t, bob, drip.Owner)
}

type blockingVerifier struct{}

func (blockingVerifier) OwnerOf(ctx context.Context, _ common.Address, _ *big.Int) (common.Address, error) {
	<-ctx.Done()
	return common.Address{}, ctx.Err()
}

func TestMutateTimeout(t *testing.T) {
	env := newTestEnv()
	env.cfg.Resolver = &staticResolver{v: blockingVerifier{}}
	env.cfg.CallTimeout = 20 * time.Millisecond
	d := env.newDrop(t, 5, 0, 1)
	alice := common.RandEthAddress()

	_, err := d.Mint(0, big.NewInt(0), alice)
	require.NoError(t, err)

	err = d.Mutate(context.Background(), 0, env.nft, big.NewInt(1), alice)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// the in-flight mark is cleared
	env.cfg.Resolver = &staticResolver{v: env.tokens}
	require.NoError(t, env.tokens.SetOwner(env.nft, big.NewInt(1), alice))
	err = d.Mutate(context.Background(), 0, env.nft, big.NewInt(1), alice)
	assert.NoError(t, err)
}

func TestWithdraw(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	d := env.newDrop(t, 5, 10, 1)
	buyer := common.RandEthAddress()

	for i := 0; i < 3; i++ {
		_, err := d.Mint(0, big.NewInt(10), buyer)
		require.NoError(t, err)
		env.nextEvent(t)
	}

	_, err := d.Withdraw(ctx, buyer)
	assert.ErrorIs(t, err, ErrCallerNotOwner)

	amount, err := d.Withdraw(ctx, env.owner)
	assert.NoError(t, err)
	assert.Equal(t, "30", amount.String())
	assert.Equal(t, "0", d.Balance().String())
	assert.Equal(t, "30", env.funds.total().String())
	assert.Equal(t, env.owner, env.funds.transfers[0].to)

	ev := env.nextEvent(t)
	assert.Equal(t, EventWithdrawn, ev.Kind)
	assert.Equal(t, "30", ev.Amount.String())

	amount, err = d.Withdraw(ctx, env.owner)
	assert.NoError(t, err)
	assert.Equal(t, "0", amount.String())
	assert.Len(t, env.funds.transfers, 1)
}

func TestWithdrawReentrant(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	d := env.newDrop(t, 5, 10, 1)

	_, err := d.Mint(0, big.NewInt(10), common.RandEthAddress())
	require.NoError(t, err)

	var inner *big.Int
	env.funds.hook = func() {
		env.funds.hook = nil
		inner, err = d.Withdraw(ctx, env.owner)
		assert.NoError(t, err)
	}

	amount, err := d.Withdraw(ctx, env.owner)
	assert.NoError(t, err)
	assert.Equal(t, "10", amount.String())
	assert.Equal(t, "0", inner.String())
	assert.Equal(t, "10", env.funds.total().String())
}

func TestWithdrawTransferFailure(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	d := env.newDrop(t, 5, 10, 1)

	_, err := d.Mint(0, big.NewInt(10), common.RandEthAddress())
	require.NoError(t, err)

	env.funds.fail = true
	// a mint lands while the transfer is in flight
	env.funds.hook = func() {
		env.funds.hook = nil
		_, err := d.Mint(0, big.NewInt(10), common.RandEthAddress())
		assert.NoError(t, err)
	}

	_, err = d.Withdraw(ctx, env.owner)
	assert.ErrorIs(t, err, ErrTransferFailed)
	assert.ErrorIs(t, err, errStub)
	assert.Equal(t, "20", d.Balance().String())
}

func TestAdmin(t *testing.T) {
	env := newTestEnv()
	d := env.newDrop(t, 5, 0, 1)
	other := common.RandEthAddress()

	assert.ErrorIs(t, d.SetDropURI("ipfs://drop", other), ErrCallerNotOwner)
	assert.ErrorIs(t, d.SetContractURI("ipfs://contract", other), ErrCallerNotOwner)
	assert.ErrorIs(t, d.SetBaseURI("ipfs://base/", other), ErrCallerNotOwner)

	assert.NoError(t, d.SetDropURI("ipfs://drop", env.owner))
	assert.NoError(t, d.SetContractURI("ipfs://contract", env.owner))
	assert.NoError(t, d.SetBaseURI("ipfs://base/", env.owner))

	info := d.Info()
	assert.Equal(t, "ipfs://drop", info.DropURI)
	assert.Equal(t, "ipfs://contract", info.ContractURI)
	assert.Equal(t, "ipfs://base/", info.BaseURI)

	_, err := d.TokenURI(0)
	assert.ErrorIs(t, err, ErrInvalidDripId)
	_, err = d.Mint(0, big.NewInt(0), other)
	require.NoError(t, err)
	uri, err := d.TokenURI(0)
	assert.NoError(t, err)
	assert.Equal(t, "ipfs://base/0", uri)

	assert.ErrorIs(t, d.TransferOwnership(other, other), ErrCallerNotOwner)
	assert.ErrorIs(t, d.TransferOwnership(common.Address{}, env.owner), ErrInvalidAccount)
	assert.NoError(t, d.TransferOwnership(other, env.owner))
	assert.Equal(t, other, d.Owner())
	assert.ErrorIs(t, d.SetBaseURI("", env.owner), ErrCallerNotOwner)
	assert.NoError(t, d.SetBaseURI("", other))

	uri, err = d.TokenURI(0)
	assert.NoError(t, err)
	assert.Empty(t, uri)
}

func TestTransferDrip(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	d := env.newDrop(t, 5, 0, 1)
	alice := common.RandEthAddress()
	bob := common.RandEthAddress()

	_, err := d.Mint(0, big.NewInt(0), alice)
	require.NoError(t, err)
	require.NoError(t, env.tokens.SetOwner(env.nft, big.NewInt(1), alice))
	require.NoError(t, d.Mutate(ctx, 0, env.nft, big.NewInt(1), alice))

	assert.ErrorIs(t, d.TransferDrip(1, bob, alice), ErrInvalidDripId)
	assert.ErrorIs(t, d.TransferDrip(0, bob, bob), ErrInvalidDripOwner)
	assert.ErrorIs(t, d.TransferDrip(0, common.Address{}, alice), ErrInvalidAccount)

	assert.NoError(t, d.TransferDrip(0, bob, alice))
	owner, err := d.OwnerOf(0)
	assert.NoError(t, err)
	assert.Equal(t, bob, owner)
	assert.Equal(t, uint64(0), d.BalanceOf(alice))
	assert.Equal(t, uint64(1), d.BalanceOf(bob))

	info, err := d.DripInfo(0)
	assert.NoError(t, err)
	assert.Equal(t, DripStatusMutated, info.Status)
	assert.Equal(t, bob, info.Owner)

	_, err = d.OwnerOf(1)
	assert.ErrorIs(t, err, ErrInvalidDripId)
}

func TestPersistFailureLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	p := &failingPersister{}
	env.cfg.Persister = p
	d := env.newDrop(t, 5, 10, 1)
	alice := common.RandEthAddress()

	p.failMint = true
	_, err := d.Mint(0, big.NewInt(10), alice)
	assert.ErrorIs(t, err, ErrPersist)
	assert.Equal(t, uint64(0), d.TotalSupply())
	assert.Equal(t, "0", d.Balance().String())
	p.failMint = false

	_, err = d.Mint(0, big.NewInt(10), alice)
	require.NoError(t, err)

	p.failDrip = true
	require.NoError(t, env.tokens.SetOwner(env.nft, big.NewInt(1), alice))
	err = d.Mutate(ctx, 0, env.nft, big.NewInt(1), alice)
	assert.ErrorIs(t, err, ErrPersist)
	drip, _ := d.GetDrip(0)
	assert.Equal(t, DripStatusDefault, drip.Status)
	p.failDrip = false

	p.failDrop = true
	_, err = d.Withdraw(ctx, env.owner)
	assert.ErrorIs(t, err, ErrPersist)
	assert.Equal(t, "10", d.Balance().String())
	assert.ErrorIs(t, d.SetBaseURI("x", env.owner), ErrPersist)
	assert.Empty(t, d.Info().BaseURI)

	p.failIf = true
	assert.ErrorIs(t, d.SetTokenContractInterface(env.nft, common.RandEthAddress(), env.owner), ErrPersist)
	assert.Equal(t, common.Address{}, d.GetTokenContractInterface(env.nft))
}

func TestRestore(t *testing.T) {
	owner := common.RandEthAddress()
	alice := common.RandEthAddress()
	nft := common.RandEthAddress()
	adapter := common.RandEthAddress()

	rec := &Record{
		Id:            4,
		Owner:         owner,
		MaxSupply:     3,
		CurrentSupply: 2,
		Price:         big.NewInt(5),
		Versions:      2,
		Balance:       big.NewInt(10),
		BaseURI:       "ipfs://x/",
	}
	drips := []*Drip{
		{Id: 0, Version: 1, Status: DripStatusDefault, Owner: alice},
		{Id: 1, Version: 0, Status: DripStatusMutated, Owner: alice,
			Mutation: &Mutation{TokenContract: nft, TokenId: big.NewInt(3)}},
	}

	d, err := Restore(rec, drips, map[common.Address]common.Address{nft: adapter}, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), d.TotalSupply())
	assert.Equal(t, uint64(2), d.BalanceOf(alice))
	assert.Equal(t, "10", d.Balance().String())
	assert.Equal(t, adapter, d.GetTokenContractInterface(nft))
	uri, _ := d.TokenURI(1)
	assert.Equal(t, "ipfs://x/1", uri)

	id, err := d.Mint(0, big.NewInt(5), alice)
	assert.NoError(t, err)
	assert.Equal(t, uint64(2), id)

	bad := rec.Clone()
	bad.CurrentSupply = 3
	_, err = Restore(bad, drips, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidRecord)

	_, err = Restore(rec, []*Drip{drips[1], drips[0]}, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidRecord)

	_, err = Restore(rec, []*Drip{drips[0], {Id: 1, Status: DripStatusMutated, Owner: alice}}, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidRecord)
}
