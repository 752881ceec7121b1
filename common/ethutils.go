package common

import (
	"crypto/rand"
	"errors"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

var ErrInvalidAddress = errors.New("invalid account address")

func RandEthAddress() ethcommon.Address {
	b := make([]byte, 20)
	if _, err := rand.Read(b); err != nil {
		return ethcommon.Address{}
	}
	return ethcommon.BytesToAddress(b[:])
}

// ParseAddress accepts a 0x-prefixed or bare 40 character hex address.
func ParseAddress(s string) (ethcommon.Address, error) {
	if !ethcommon.IsHexAddress(s) {
		return ethcommon.Address{}, ErrInvalidAddress
	}
	return ethcommon.HexToAddress(s), nil
}

func IsZeroAddress(addr ethcommon.Address) bool {
	return addr == (ethcommon.Address{})
}

// Address identifies accounts, drop owners and token contracts.
type Address = ethcommon.Address
