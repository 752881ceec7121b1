package verifier

import (
	"errors"
	"fmt"
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

var (
	ErrUnsupportedTokenContract = errors.New("unsupported token contract")
	ErrOwnerQueryFailed         = errors.New("token owner query failed")
	ErrEmptyReturn              = errors.New("contract call returned no data")
	ErrUnexpectedReturn         = errors.New("unexpected contract return value")
)

func ErrOwnerQuery(tokenContract ethcommon.Address, tokenId *big.Int, err error) error {
	return fmt.Errorf("%w: contract=%s, tokenId=%v: %w", ErrOwnerQueryFailed, tokenContract.Hex(), tokenId, err)
}

func ErrUnsupported(tokenContract ethcommon.Address) error {
	return fmt.Errorf("%w: %s", ErrUnsupportedTokenContract, tokenContract.Hex())
}
