package verifier

import (
	"sync"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

// Directory maps verifier ids, as stored in a drop's interface registry,
// to verifier implementations known to this process.
type Directory struct {
	mu        sync.RWMutex
	verifiers map[ethcommon.Address]TokenOwnershipVerifier
}

func NewDirectory() *Directory {
	return &Directory{
		verifiers: make(map[ethcommon.Address]TokenOwnershipVerifier),
	}
}

func (d *Directory) Register(id ethcommon.Address, v TokenOwnershipVerifier) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.verifiers[id] = v
}

func (d *Directory) Unregister(id ethcommon.Address) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.verifiers, id)
}

func (d *Directory) Get(id ethcommon.Address) (TokenOwnershipVerifier, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, ok := d.verifiers[id]
	return v, ok
}

func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.verifiers)
}
