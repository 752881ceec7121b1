package verifier

import (
	"context"
	"math/big"
	"testing"

	"github.com/premier-io/drops-go/common"
	"github.com/stretchr/testify/assert"
)

func TestERC721Verifier(t *testing.T) {
	ctx := context.Background()
	tokens := NewMemoryTokens()
	nft := common.RandEthAddress()
	holder := common.RandEthAddress()
	tokens.Deploy(nft, true)
	assert.NoError(t, tokens.SetOwner(nft, big.NewInt(1), holder))

	v := NewERC721Verifier(newFakeCaller(tokens))
	owner, err := v.OwnerOf(ctx, nft, big.NewInt(1))
	assert.NoError(t, err)
	assert.Equal(t, holder, owner)

	_, err = v.OwnerOf(ctx, nft, big.NewInt(2))
	assert.ErrorIs(t, err, ErrOwnerQueryFailed)

	_, err = v.OwnerOf(ctx, common.RandEthAddress(), big.NewInt(1))
	assert.ErrorIs(t, err, ErrOwnerQueryFailed)
}

func TestPunkMarketVerifier(t *testing.T) {
	ctx := context.Background()
	tokens := NewMemoryTokens()
	punks := common.RandEthAddress()
	holder := common.RandEthAddress()
	tokens.Deploy(punks, false)
	assert.NoError(t, tokens.SetOwner(punks, big.NewInt(7804), holder))

	caller := newFakeCaller(tokens)
	caller.punks[punks] = true

	v := NewPunkMarketVerifier(caller)
	owner, err := v.OwnerOf(ctx, punks, big.NewInt(7804))
	assert.NoError(t, err)
	assert.Equal(t, holder, owner)

	// unassigned punks read as the zero address
	owner, err = v.OwnerOf(ctx, punks, big.NewInt(1))
	assert.NoError(t, err)
	assert.True(t, common.IsZeroAddress(owner))

	// calls to a contract that does not exist revert
	_, err = NewERC721Verifier(caller).OwnerOf(ctx, common.RandEthAddress(), big.NewInt(1))
	assert.ErrorIs(t, err, ErrOwnerQueryFailed)
}

func TestCustomVerifier(t *testing.T) {
	ctx := context.Background()
	tokens := NewMemoryTokens()
	collection := common.RandEthAddress()
	adapter := common.RandEthAddress()
	holder := common.RandEthAddress()
	tokens.Deploy(collection, false)
	assert.NoError(t, tokens.SetOwner(collection, big.NewInt(3), holder))

	caller := newFakeCaller(tokens)
	caller.adapters[adapter] = true

	v := NewCustomVerifier(caller, adapter)
	assert.Equal(t, adapter, v.Adapter())
	owner, err := v.OwnerOf(ctx, collection, big.NewInt(3))
	assert.NoError(t, err)
	assert.Equal(t, holder, owner)

	_, err = NewCustomVerifier(caller, common.RandEthAddress()).OwnerOf(ctx, collection, big.NewInt(3))
	assert.ErrorIs(t, err, ErrOwnerQueryFailed)
	assert.ErrorIs(t, err, ErrEmptyReturn)
}

func TestERC165Prober(t *testing.T) {
	ctx := context.Background()
	tokens := NewMemoryTokens()
	nft := common.RandEthAddress()
	plain := common.RandEthAddress()
	tokens.Deploy(nft, true)
	tokens.Deploy(plain, false)

	p := NewERC165Prober(newFakeCaller(tokens))

	ok, err := p.SupportsInterface(ctx, nft, InterfaceIdERC721)
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, err = p.SupportsInterface(ctx, plain, InterfaceIdERC721)
	assert.NoError(t, err)
	assert.False(t, ok)

	_, err = p.SupportsInterface(ctx, common.RandEthAddress(), InterfaceIdERC721)
	assert.ErrorIs(t, err, ErrEmptyReturn)
}

func TestMemoryTokens(t *testing.T) {
	ctx := context.Background()
	tokens := NewMemoryTokens()
	nft := common.RandEthAddress()

	err := tokens.SetOwner(nft, big.NewInt(1), common.RandEthAddress())
	assert.ErrorIs(t, err, ErrUnknownContract)

	tokens.Deploy(nft, true)
	_, err = tokens.OwnerOf(ctx, nft, big.NewInt(1))
	assert.ErrorIs(t, err, ErrNonexistentToken)
	assert.ErrorIs(t, err, ErrOwnerQueryFailed)

	ok, err := tokens.SupportsInterface(ctx, nft, InterfaceIdERC165)
	assert.NoError(t, err)
	assert.True(t, ok)
	ok, err = tokens.SupportsInterface(ctx, nft, [4]byte{0xff, 0xff, 0xff, 0xff})
	assert.NoError(t, err)
	assert.False(t, ok)
}
