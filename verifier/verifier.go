package verifier

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	ethcommon "github.com/ethereum/go-ethereum/common"
)

// TokenOwnershipVerifier answers "who owns token tokenId of tokenContract".
type TokenOwnershipVerifier interface {
	OwnerOf(ctx context.Context, tokenContract ethcommon.Address, tokenId *big.Int) (ethcommon.Address, error)
}

// InterfaceProber answers ERC-165 style capability queries.
type InterfaceProber interface {
	SupportsInterface(ctx context.Context, tokenContract ethcommon.Address, interfaceId [4]byte) (bool, error)
}

var (
	InterfaceIdERC165 = [4]byte{0x01, 0xff, 0xc9, 0xa7}
	InterfaceIdERC721 = [4]byte{0x80, 0xac, 0x58, 0xcd}
)

const (
	ERC721ABI = `[{"inputs":[{"internalType":"uint256","name":"tokenId","type":"uint256"}],"name":"ownerOf","outputs":[{"internalType":"address","name":"","type":"address"}],"stateMutability":"view","type":"function"}]`

	PunkMarketABI = `[{"inputs":[{"internalType":"uint256","name":"","type":"uint256"}],"name":"punkIndexToAddress","outputs":[{"internalType":"address","name":"","type":"address"}],"stateMutability":"view","type":"function"}]`

	// An adapter contract resolving ownership for a non-standard collection.
	TokenInterfaceABI = `[{"inputs":[{"internalType":"address","name":"tokenContract","type":"address"},{"internalType":"uint256","name":"tokenId","type":"uint256"}],"name":"ownerOf","outputs":[{"internalType":"address","name":"","type":"address"}],"stateMutability":"view","type":"function"}]`

	ERC165ABI = `[{"inputs":[{"internalType":"bytes4","name":"interfaceId","type":"bytes4"}],"name":"supportsInterface","outputs":[{"internalType":"bool","name":"","type":"bool"}],"stateMutability":"view","type":"function"}]`
)

var (
	erc721ABI         = mustParseABI(ERC721ABI)
	punkMarketABI     = mustParseABI(PunkMarketABI)
	tokenInterfaceABI = mustParseABI(TokenInterfaceABI)
	erc165ABI         = mustParseABI(ERC165ABI)
)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}

// callView packs a read-only call, executes it at the latest block and
// unpacks the outputs.
func callView(
	ctx context.Context,
	caller ethereum.ContractCaller,
	contractABI abi.ABI,
	to ethcommon.Address,
	method string,
	args ...interface{},
) ([]interface{}, error) {
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, err
	}

	out, err := caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrEmptyReturn
	}

	return contractABI.Unpack(method, out)
}

func callAddress(
	ctx context.Context,
	caller ethereum.ContractCaller,
	contractABI abi.ABI,
	to ethcommon.Address,
	method string,
	args ...interface{},
) (ethcommon.Address, error) {
	values, err := callView(ctx, caller, contractABI, to, method, args...)
	if err != nil {
		return ethcommon.Address{}, err
	}
	if len(values) != 1 {
		return ethcommon.Address{}, ErrUnexpectedReturn
	}
	addr, ok := values[0].(ethcommon.Address)
	if !ok {
		return ethcommon.Address{}, fmt.Errorf("%w: %T", ErrUnexpectedReturn, values[0])
	}
	return addr, nil
}
