package verifier

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	ethcommon "github.com/ethereum/go-ethereum/common"
)

// ERC721Verifier queries ownerOf(uint256) on the token contract itself.
type ERC721Verifier struct {
	caller ethereum.ContractCaller
}

func NewERC721Verifier(caller ethereum.ContractCaller) *ERC721Verifier {
	return &ERC721Verifier{caller: caller}
}

func (v *ERC721Verifier) OwnerOf(ctx context.Context, tokenContract ethcommon.Address, tokenId *big.Int) (ethcommon.Address, error) {
	owner, err := callAddress(ctx, v.caller, erc721ABI, tokenContract, "ownerOf", tokenId)
	if err != nil {
		return ethcommon.Address{}, ErrOwnerQuery(tokenContract, tokenId, err)
	}
	return owner, nil
}

// PunkMarketVerifier reads punkIndexToAddress(uint256) of a pre-ERC-721
// market contract.
type PunkMarketVerifier struct {
	caller ethereum.ContractCaller
}

func NewPunkMarketVerifier(caller ethereum.ContractCaller) *PunkMarketVerifier {
	return &PunkMarketVerifier{caller: caller}
}

func (v *PunkMarketVerifier) OwnerOf(ctx context.Context, tokenContract ethcommon.Address, tokenId *big.Int) (ethcommon.Address, error) {
	owner, err := callAddress(ctx, v.caller, punkMarketABI, tokenContract, "punkIndexToAddress", tokenId)
	if err != nil {
		return ethcommon.Address{}, ErrOwnerQuery(tokenContract, tokenId, err)
	}
	return owner, nil
}

// CustomVerifier delegates to an adapter contract exposing
// ownerOf(address,uint256).
type CustomVerifier struct {
	caller  ethereum.ContractCaller
	adapter ethcommon.Address
}

func NewCustomVerifier(caller ethereum.ContractCaller, adapter ethcommon.Address) *CustomVerifier {
	return &CustomVerifier{caller: caller, adapter: adapter}
}

func (v *CustomVerifier) Adapter() ethcommon.Address {
	return v.adapter
}

func (v *CustomVerifier) OwnerOf(ctx context.Context, tokenContract ethcommon.Address, tokenId *big.Int) (ethcommon.Address, error) {
	owner, err := callAddress(ctx, v.caller, tokenInterfaceABI, v.adapter, "ownerOf", tokenContract, tokenId)
	if err != nil {
		return ethcommon.Address{}, ErrOwnerQuery(tokenContract, tokenId, err)
	}
	return owner, nil
}

// ERC165Prober calls supportsInterface(bytes4) on the token contract.
type ERC165Prober struct {
	caller ethereum.ContractCaller
}

func NewERC165Prober(caller ethereum.ContractCaller) *ERC165Prober {
	return &ERC165Prober{caller: caller}
}

func (p *ERC165Prober) SupportsInterface(ctx context.Context, tokenContract ethcommon.Address, interfaceId [4]byte) (bool, error) {
	values, err := callView(ctx, p.caller, erc165ABI, tokenContract, "supportsInterface", interfaceId)
	if err != nil {
		return false, err
	}
	if len(values) != 1 {
		return false, ErrUnexpectedReturn
	}
	ok, isBool := values[0].(bool)
	if !isBool {
		return false, ErrUnexpectedReturn
	}
	return ok, nil
}
