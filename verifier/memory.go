package verifier

import (
	"context"
	"errors"
	"math/big"
	"sync"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

var (
	ErrUnknownContract  = errors.New("unknown token contract")
	ErrNonexistentToken = errors.New("nonexistent token")
)

// MemoryTokens is an in-process token ledger. It serves both as a
// verifier and as a prober and backs tests and local setups.
type MemoryTokens struct {
	mu        sync.RWMutex
	owners    map[ethcommon.Address]map[string]ethcommon.Address
	standards map[ethcommon.Address]bool
}

func NewMemoryTokens() *MemoryTokens {
	return &MemoryTokens{
		owners:    make(map[ethcommon.Address]map[string]ethcommon.Address),
		standards: make(map[ethcommon.Address]bool),
	}
}

// Deploy registers a collection. erc721 controls the probe answer.
func (m *MemoryTokens) Deploy(tokenContract ethcommon.Address, erc721 bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.owners[tokenContract]; !ok {
		m.owners[tokenContract] = make(map[string]ethcommon.Address)
	}
	m.standards[tokenContract] = erc721
}

func (m *MemoryTokens) SetOwner(tokenContract ethcommon.Address, tokenId *big.Int, owner ethcommon.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tokens, ok := m.owners[tokenContract]
	if !ok {
		return ErrUnknownContract
	}
	tokens[tokenId.String()] = owner
	return nil
}

func (m *MemoryTokens) OwnerOf(_ context.Context, tokenContract ethcommon.Address, tokenId *big.Int) (ethcommon.Address, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tokens, ok := m.owners[tokenContract]
	if !ok {
		return ethcommon.Address{}, ErrOwnerQuery(tokenContract, tokenId, ErrUnknownContract)
	}
	owner, ok := tokens[tokenId.String()]
	if !ok {
		return ethcommon.Address{}, ErrOwnerQuery(tokenContract, tokenId, ErrNonexistentToken)
	}
	return owner, nil
}

func (m *MemoryTokens) SupportsInterface(_ context.Context, tokenContract ethcommon.Address, interfaceId [4]byte) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	erc721, ok := m.standards[tokenContract]
	if !ok {
		return false, ErrUnknownContract
	}
	switch interfaceId {
	case InterfaceIdERC165:
		return true, nil
	case InterfaceIdERC721:
		return erc721, nil
	}
	return false, nil
}
