package statedb

import (
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	KeyStoreOwner = crypto.Keccak256Hash([]byte("KeyStoreOwner"))
	KeyStoreAddr  = crypto.Keccak256Hash([]byte("KeyStoreAddr"))
)
