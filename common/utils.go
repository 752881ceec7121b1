package common

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

// DropNamePrefix is shared by the name and the symbol of every drop.
const DropNamePrefix = "DROP#"

// DropName returns the collection name of a drop, e.g. "DROP#3".
func DropName(dropId uint64) string {
	return fmt.Sprintf("%s%d", DropNamePrefix, dropId)
}

// DropSymbol is identical to the name.
func DropSymbol(dropId uint64) string {
	return DropName(dropId)
}

// The returned string has No 0x prefix
func ByteSliceToPureHexStr(b []byte) string {
	return Trim0xPrefix(ethcommon.Bytes2Hex(b))
}

func HexStrToByteSlice(hexStr string) []byte {
	return ethcommon.Hex2Bytes(Trim0xPrefix(hexStr))
}

// HexStrToBigInt converts a hex string (with/without prefix 0x) to *big.Int
func HexStrToBigInt(hexStr string) *big.Int {
	bigInt, ok := new(big.Int).SetString(Trim0xPrefix(hexStr), 16)
	if !ok {
		return nil
	}
	return bigInt
}

// BigIntToHexStr converts a big int to hex string with prefix 0x
func BigIntToHexStr(bigInt *big.Int) string {
	return Prepend0xPrefix(bigInt.Text(16))
}

// DecStrToBigInt parses a base-10 amount. Returns nil on malformed input.
func DecStrToBigInt(s string) *big.Int {
	if s == "" {
		return nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil
	}
	return v
}

// ParseAmount accepts either a decimal amount or a 0x-prefixed hex amount.
func ParseAmount(s string) (*big.Int, error) {
	var v *big.Int
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v = HexStrToBigInt(s)
	} else {
		v = DecStrToBigInt(s)
	}
	if v == nil {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	return v, nil
}

// Trim 0x or 0X prefix off the string.
func Trim0xPrefix(str string) string {
	s := strings.TrimPrefix(str, "0x")
	return strings.TrimPrefix(s, "0X")
}

func Prepend0xPrefix(str string) string {
	if strings.HasPrefix(str, "0x") || strings.HasPrefix(str, "0X") {
		return str
	}
	return "0x" + str
}

func RandBytes(n int) []byte {
	b := make([]byte, n)
	_, err := rand.Read(b)
	if err != nil {
		return nil
	}
	return b
}

func RandBigInt(byteNum int) *big.Int {
	return new(big.Int).SetBytes(RandBytes(byteNum))
}

// BigIntClone returns a copy of bigInt; nil stays nil.
func BigIntClone(bigInt *big.Int) *big.Int {
	if bigInt == nil {
		return nil
	}
	return new(big.Int).Set(bigInt)
}

// Shorten keeps n characters on both sides of a hex string.
func Shorten(hexStr string, n int) string {
	str := Trim0xPrefix(hexStr)

	if len(str) <= n*2 {
		return Prepend0xPrefix(str)
	}
	return Prepend0xPrefix(str[:n] + "..." + str[len(str)-n:])
}
