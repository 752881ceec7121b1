package drop

import (
	"github.com/premier-io/drops-go/common"
)

// InterfaceRegistry maps a token contract to the id of the verifier that
// knows how to query its ownership. It is guarded by the owning Drop.
type InterfaceRegistry struct {
	entries map[common.Address]common.Address
}

func NewInterfaceRegistry() *InterfaceRegistry {
	return &InterfaceRegistry{
		entries: make(map[common.Address]common.Address),
	}
}

// Get returns the zero address when no verifier is registered.
func (r *InterfaceRegistry) Get(tokenContract common.Address) common.Address {
	return r.entries[tokenContract]
}

// Set registers verifierId. The zero address removes the entry.
func (r *InterfaceRegistry) Set(tokenContract, verifierId common.Address) {
	if common.IsZeroAddress(verifierId) {
		delete(r.entries, tokenContract)
		return
	}
	r.entries[tokenContract] = verifierId
}

func (r *InterfaceRegistry) Len() int {
	return len(r.entries)
}

func (r *InterfaceRegistry) Entries() map[common.Address]common.Address {
	m := make(map[common.Address]common.Address, len(r.entries))
	for k, v := range r.entries {
		m[k] = v
	}
	return m
}
