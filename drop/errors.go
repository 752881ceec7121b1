package drop

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/premier-io/drops-go/common"
	"github.com/premier-io/drops-go/verifier"
)

var (
	ErrInvalidMaxSupply = errors.New("max supply must be positive")
	ErrInvalidVersions  = errors.New("version count must be positive")
	ErrInvalidVersionId = errors.New("version id out of range")
	ErrInvalidPrice     = errors.New("invalid price")
	ErrInvalidDripId    = errors.New("drip does not exist")
	ErrInvalidTokenId   = errors.New("token id is missing")
	ErrInvalidAccount   = errors.New("account is the zero address")

	ErrCallerNotOwner = errors.New("caller is not the drop owner")

	ErrInvalidDripOwner         = errors.New("caller is not the drip owner")
	ErrInvalidTokenOwner        = errors.New("caller does not own the token")
	ErrUnsupportedTokenContract = verifier.ErrUnsupportedTokenContract
	ErrAlreadyMutated           = errors.New("drip already mutated")
	ErrMaxSupplyReached         = errors.New("max supply reached")

	ErrTransferFailed = errors.New("fund transfer failed")
	ErrPersist        = errors.New("failed to persist drop state")
	ErrInvalidRecord  = errors.New("stored drop record is inconsistent")
)

// DropError builds errors carrying the failing drop's context. Every
// returned error wraps one of the package sentinels.
type DropError struct {
	dropId uint64
}

func (e DropError) CallerNotOwner(caller common.Address) error {
	return fmt.Errorf("%w: drop=%d, caller=%s", ErrCallerNotOwner, e.dropId, caller.Hex())
}

func (e DropError) MaxSupplyReached(maxSupply uint64) error {
	return fmt.Errorf("%w: drop=%d, maxSupply=%d", ErrMaxSupplyReached, e.dropId, maxSupply)
}

func (e DropError) InvalidVersionId(version, versions uint64) error {
	return fmt.Errorf("%w: drop=%d, version=%d, versions=%d", ErrInvalidVersionId, e.dropId, version, versions)
}

func (e DropError) InvalidPayment(payment, price *big.Int) error {
	return fmt.Errorf("%w: drop=%d, payment=%v, price=%v", ErrInvalidPrice, e.dropId, payment, price)
}

func (e DropError) InvalidDripId(dripId, supply uint64) error {
	return fmt.Errorf("%w: drop=%d, drip=%d, supply=%d", ErrInvalidDripId, e.dropId, dripId, supply)
}

func (e DropError) InvalidDripOwner(dripId uint64, caller common.Address) error {
	return fmt.Errorf("%w: drop=%d, drip=%d, caller=%s", ErrInvalidDripOwner, e.dropId, dripId, caller.Hex())
}

func (e DropError) AlreadyMutated(dripId uint64) error {
	return fmt.Errorf("%w: drop=%d, drip=%d", ErrAlreadyMutated, e.dropId, dripId)
}

func (e DropError) InvalidTokenOwner(tokenContract common.Address, tokenId *big.Int, owner, caller common.Address) error {
	return fmt.Errorf("%w: contract=%s, tokenId=%v, owner=%s, caller=%s",
		ErrInvalidTokenOwner, tokenContract.Hex(), tokenId, owner.Hex(), caller.Hex())
}

func (e DropError) TransferFailed(amount *big.Int, err error) error {
	return fmt.Errorf("%w: drop=%d, amount=%v: %w", ErrTransferFailed, e.dropId, amount, err)
}

func (e DropError) Persist(step string, err error) error {
	return fmt.Errorf("%w: drop=%d, step=%s: %w", ErrPersist, e.dropId, step, err)
}
