package verifier

import (
	"context"

	"github.com/ethereum/go-ethereum"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/lru"
	logger "github.com/sirupsen/logrus"
)

const DefaultProbeCacheSize = 1024

type ResolverConfig struct {
	Directory *Directory

	// Standards probe and the verifier used when the probe succeeds.
	Prober   InterfaceProber
	Standard TokenOwnershipVerifier

	// When set, a registered verifier id missing from the directory is
	// treated as the address of an adapter contract.
	Caller ethereum.ContractCaller

	ProbeCacheSize int
}

// Resolver picks the verifier for a token contract: the registered id
// first, then the ERC-721 probe.
type Resolver struct {
	directory *Directory
	prober    InterfaceProber
	standard  TokenOwnershipVerifier
	caller    ethereum.ContractCaller
	probes    *lru.Cache[ethcommon.Address, bool]
}

func NewResolver(cfg *ResolverConfig) *Resolver {
	size := cfg.ProbeCacheSize
	if size <= 0 {
		size = DefaultProbeCacheSize
	}
	dir := cfg.Directory
	if dir == nil {
		dir = NewDirectory()
	}
	return &Resolver{
		directory: dir,
		prober:    cfg.Prober,
		standard:  cfg.Standard,
		caller:    cfg.Caller,
		probes:    lru.NewCache[ethcommon.Address, bool](size),
	}
}

func (r *Resolver) Directory() *Directory {
	return r.directory
}

// Resolve returns the verifier for tokenContract. A zero verifierId means
// the drop has no registry entry for the contract.
func (r *Resolver) Resolve(ctx context.Context, tokenContract, verifierId ethcommon.Address) (TokenOwnershipVerifier, error) {
	if verifierId != (ethcommon.Address{}) {
		if v, ok := r.directory.Get(verifierId); ok {
			return v, nil
		}
		if r.caller != nil {
			return NewCustomVerifier(r.caller, verifierId), nil
		}
		logger.WithFields(logger.Fields{
			"tokenContract": tokenContract.Hex(),
			"verifierId":    verifierId.Hex(),
		}).Warn("registered verifier not found")
		return nil, ErrUnsupported(tokenContract)
	}

	if r.isStandard(ctx, tokenContract) {
		return r.standard, nil
	}
	return nil, ErrUnsupported(tokenContract)
}

func (r *Resolver) isStandard(ctx context.Context, tokenContract ethcommon.Address) bool {
	if r.prober == nil || r.standard == nil {
		return false
	}

	if ok, found := r.probes.Get(tokenContract); found {
		return ok
	}

	ok, err := r.prober.SupportsInterface(ctx, tokenContract, InterfaceIdERC721)
	if err != nil {
		// not cached, the contract may answer later
		logger.WithFields(logger.Fields{
			"tokenContract": tokenContract.Hex(),
			"err":           err,
		}).Debug("erc165 probe failed")
		return false
	}
	r.probes.Add(tokenContract, ok)
	return ok
}
