package drop

import (
	"context"
	"errors"
	"math/big"
	"strconv"
	"sync"
	"time"

	"github.com/premier-io/drops-go/common"
	"github.com/premier-io/drops-go/verifier"
	logger "github.com/sirupsen/logrus"
)

const DefaultCallTimeout = 10 * time.Second

// VerifierResolver finds the ownership verifier of a token contract. A
// zero verifierId means the drop has no registry entry for the contract.
type VerifierResolver interface {
	Resolve(ctx context.Context, tokenContract, verifierId common.Address) (verifier.TokenOwnershipVerifier, error)
}

// FundTransferrer moves custodied funds out to an account.
type FundTransferrer interface {
	Transfer(ctx context.Context, to common.Address, amount *big.Int) error
}

// Persister is written through before any in-memory change is applied.
type Persister interface {
	SaveDrop(r *Record) error
	// SaveMint stores the updated drop record and the new drip atomically.
	SaveMint(r *Record, d *Drip) error
	SaveDrip(dropId uint64, d *Drip) error
	SaveInterface(dropId uint64, tokenContract, verifierId common.Address) error
}

type Config struct {
	Resolver  VerifierResolver
	Funds     FundTransferrer
	Persister Persister
	Publisher *Publisher

	// Bound on every verifier query and fund transfer.
	CallTimeout time.Duration
}

// Drop is a capped-supply, versioned series of drips. All operations are
// serialized by mu. The lock is never held across a call into a
// verifier or a fund transferrer.
type Drop struct {
	mu sync.Mutex

	id            uint64
	owner         common.Address
	maxSupply     uint64
	price         *big.Int
	versions      uint64
	currentSupply uint64
	balance       *big.Int
	dropURI       string
	contractURI   string
	baseURI       string

	registry *InterfaceRegistry
	drips    []*Drip
	holdings map[common.Address]uint64

	// drips with a verifier query in flight
	mutating map[uint64]struct{}

	cfg  *Config
	errs DropError
}

// New creates drop id owned by owner. The initial record is persisted
// before the drop is returned.
func New(id, maxSupply uint64, price *big.Int, versions uint64, owner common.Address, cfg *Config) (*Drop, error) {
	if maxSupply == 0 {
		return nil, ErrInvalidMaxSupply
	}
	if versions == 0 {
		return nil, ErrInvalidVersions
	}
	if price == nil || price.Sign() < 0 {
		return nil, ErrInvalidPrice
	}
	if common.IsZeroAddress(owner) {
		return nil, ErrInvalidAccount
	}

	d := newDrop(&Record{
		Id:        id,
		Owner:     owner,
		MaxSupply: maxSupply,
		Price:     common.BigIntClone(price),
		Versions:  versions,
		Balance:   big.NewInt(0),
	}, cfg)

	if p := d.cfg.Persister; p != nil {
		if err := p.SaveDrop(d.record()); err != nil {
			return nil, d.errs.Persist("create", err)
		}
	}

	logger.WithFields(logger.Fields{
		"dropId":    id,
		"maxSupply": maxSupply,
		"price":     price,
		"versions":  versions,
	}).Debug("drop created")

	return d, nil
}

// Restore rebuilds a drop from persisted state without writing it back.
func Restore(r *Record, drips []*Drip, interfaces map[common.Address]common.Address, cfg *Config) (*Drop, error) {
	if r.MaxSupply == 0 || r.Versions == 0 || r.Price == nil || r.Balance == nil {
		return nil, ErrInvalidRecord
	}
	if r.CurrentSupply > r.MaxSupply || uint64(len(drips)) != r.CurrentSupply {
		return nil, ErrInvalidRecord
	}

	d := newDrop(r.Clone(), cfg)
	for i, drip := range drips {
		if drip.Id != uint64(i) || drip.Version >= r.Versions || !drip.Status.Valid() {
			return nil, ErrInvalidRecord
		}
		if (drip.Status == DripStatusMutated) != (drip.Mutation != nil) {
			return nil, ErrInvalidRecord
		}
		c := drip.Clone()
		d.drips = append(d.drips, c)
		d.holdings[c.Owner]++
	}
	d.currentSupply = r.CurrentSupply
	for tokenContract, verifierId := range interfaces {
		d.registry.Set(tokenContract, verifierId)
	}

	return d, nil
}

func newDrop(r *Record, cfg *Config) *Drop {
	if cfg == nil {
		cfg = &Config{}
	}
	return &Drop{
		id:          r.Id,
		owner:       r.Owner,
		maxSupply:   r.MaxSupply,
		price:       r.Price,
		versions:    r.Versions,
		balance:     r.Balance,
		dropURI:     r.DropURI,
		contractURI: r.ContractURI,
		baseURI:     r.BaseURI,
		registry:    NewInterfaceRegistry(),
		drips:       make([]*Drip, 0, r.CurrentSupply),
		holdings:    make(map[common.Address]uint64),
		mutating:    make(map[uint64]struct{}),
		cfg:         cfg,
		errs:        DropError{dropId: r.Id},
	}
}

// record must be called with mu held.
func (d *Drop) record() *Record {
	return &Record{
		Id:            d.id,
		Owner:         d.owner,
		MaxSupply:     d.maxSupply,
		CurrentSupply: d.currentSupply,
		Price:         new(big.Int).Set(d.price),
		Versions:      d.versions,
		Balance:       new(big.Int).Set(d.balance),
		DropURI:       d.dropURI,
		ContractURI:   d.contractURI,
		BaseURI:       d.baseURI,
	}
}

func (d *Drop) onlyOwner(caller common.Address) error {
	if caller != d.owner {
		return d.errs.CallerNotOwner(caller)
	}
	return nil
}

func (d *Drop) timeout() time.Duration {
	if d.cfg.CallTimeout > 0 {
		return d.cfg.CallTimeout
	}
	return DefaultCallTimeout
}

func (d *Drop) Id() uint64 {
	return d.id
}

// Mint issues the next drip of the given version to caller.
func (d *Drop) Mint(version uint64, payment *big.Int, caller common.Address) (uint64, error) {
	return d.MintTo(version, payment, caller)
}

// MintTo issues the next drip to recipient. Checks run in the order
// supply, version, payment.
func (d *Drop) MintTo(version uint64, payment *big.Int, recipient common.Address) (uint64, error) {
	d.mu.Lock()

	if d.currentSupply >= d.maxSupply {
		d.mu.Unlock()
		return 0, d.errs.MaxSupplyReached(d.maxSupply)
	}
	if version >= d.versions {
		d.mu.Unlock()
		return 0, d.errs.InvalidVersionId(version, d.versions)
	}
	if payment == nil || payment.Cmp(d.price) != 0 {
		d.mu.Unlock()
		return 0, d.errs.InvalidPayment(payment, d.price)
	}
	if common.IsZeroAddress(recipient) {
		d.mu.Unlock()
		return 0, ErrInvalidAccount
	}

	drip := &Drip{
		Id:      d.currentSupply,
		Version: version,
		Status:  DripStatusDefault,
		Owner:   recipient,
	}

	rec := d.record()
	rec.CurrentSupply++
	rec.Balance.Add(rec.Balance, payment)
	if p := d.cfg.Persister; p != nil {
		if err := p.SaveMint(rec, drip); err != nil {
			d.mu.Unlock()
			logger.WithFields(logger.Fields{"dropId": d.id, "err": err}).Error("failed to persist mint")
			return 0, d.errs.Persist("mint", err)
		}
	}

	d.drips = append(d.drips, drip)
	d.holdings[recipient]++
	d.currentSupply = rec.CurrentSupply
	d.balance = rec.Balance
	d.mu.Unlock()

	logger.WithFields(logger.Fields{
		"dropId":    d.id,
		"dripId":    drip.Id,
		"version":   version,
		"recipient": recipient.Hex(),
	}).Debug("drip minted")

	d.cfg.Publisher.Notify(Event{Kind: EventMinted, DropId: d.id, DripId: drip.Id, To: recipient})
	return drip.Id, nil
}

// GetDrip returns a copy of the drip.
func (d *Drop) GetDrip(dripId uint64) (*Drip, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if dripId >= d.currentSupply {
		return nil, d.errs.InvalidDripId(dripId, d.currentSupply)
	}
	return d.drips[dripId].Clone(), nil
}

// Mutate binds drip dripId to token (tokenContract, tokenId) once caller
// has been proven to own both.
func (d *Drop) Mutate(ctx context.Context, dripId uint64, tokenContract common.Address, tokenId *big.Int, caller common.Address) error {
	if tokenId == nil {
		return ErrInvalidTokenId
	}

	d.mu.Lock()
	if dripId >= d.currentSupply {
		d.mu.Unlock()
		return d.errs.InvalidDripId(dripId, d.currentSupply)
	}
	if d.drips[dripId].Owner != caller {
		d.mu.Unlock()
		return d.errs.InvalidDripOwner(dripId, caller)
	}
	if d.drips[dripId].Status == DripStatusMutated {
		d.mu.Unlock()
		return d.errs.AlreadyMutated(dripId)
	}
	if _, ok := d.mutating[dripId]; ok {
		d.mu.Unlock()
		return d.errs.AlreadyMutated(dripId)
	}
	verifierId := d.registry.Get(tokenContract)
	d.mutating[dripId] = struct{}{}
	d.mu.Unlock()

	owner, err := d.queryTokenOwner(ctx, tokenContract, verifierId, tokenId)

	d.mu.Lock()
	delete(d.mutating, dripId)
	if err != nil {
		d.mu.Unlock()
		return err
	}

	newLogger := logger.WithFields(logger.Fields{
		"dropId": d.id,
		"dripId": dripId,
		"caller": caller.Hex(),
	})

	if owner != caller {
		d.mu.Unlock()
		newLogger.Warn("mutation rejected: token owned by another account")
		return d.errs.InvalidTokenOwner(tokenContract, tokenId, owner, caller)
	}
	// the drip may have been transferred while the verifier was queried
	drip := d.drips[dripId]
	if drip.Owner != caller {
		d.mu.Unlock()
		return d.errs.InvalidDripOwner(dripId, caller)
	}

	mutated := drip.Clone()
	mutated.Status = DripStatusMutated
	mutated.Mutation = &Mutation{
		TokenContract: tokenContract,
		TokenId:       new(big.Int).Set(tokenId),
	}
	if p := d.cfg.Persister; p != nil {
		if err := p.SaveDrip(d.id, mutated); err != nil {
			d.mu.Unlock()
			newLogger.WithField("err", err).Error("failed to persist mutation")
			return d.errs.Persist("mutate", err)
		}
	}
	d.drips[dripId] = mutated
	d.mu.Unlock()

	newLogger.WithFields(logger.Fields{
		"tokenContract": tokenContract.Hex(),
		"tokenId":       tokenId,
	}).Debug("drip mutated")

	d.cfg.Publisher.Notify(Event{Kind: EventMutated, DropId: d.id, DripId: dripId, From: caller})
	return nil
}

func (d *Drop) queryTokenOwner(ctx context.Context, tokenContract, verifierId common.Address, tokenId *big.Int) (common.Address, error) {
	if d.cfg.Resolver == nil {
		return common.Address{}, verifier.ErrUnsupported(tokenContract)
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout())
	defer cancel()

	v, err := d.cfg.Resolver.Resolve(ctx, tokenContract, verifierId)
	if err != nil {
		return common.Address{}, err
	}
	if v == nil {
		return common.Address{}, verifier.ErrUnsupported(tokenContract)
	}
	return v.OwnerOf(ctx, tokenContract, tokenId)
}

// Withdraw sends the whole custodied balance to the owner. The balance is
// zeroed and persisted before the transfer; a failed transfer puts the
// amount back.
func (d *Drop) Withdraw(ctx context.Context, caller common.Address) (*big.Int, error) {
	d.mu.Lock()
	if err := d.onlyOwner(caller); err != nil {
		d.mu.Unlock()
		return nil, err
	}

	amount := new(big.Int).Set(d.balance)
	if amount.Sign() == 0 {
		d.mu.Unlock()
		d.cfg.Publisher.Notify(Event{Kind: EventWithdrawn, DropId: d.id, Amount: amount, To: caller})
		return amount, nil
	}
	if d.cfg.Funds == nil {
		d.mu.Unlock()
		return nil, d.errs.TransferFailed(amount, errors.New("no fund transferrer"))
	}

	rec := d.record()
	rec.Balance = big.NewInt(0)
	if p := d.cfg.Persister; p != nil {
		if err := p.SaveDrop(rec); err != nil {
			d.mu.Unlock()
			return nil, d.errs.Persist("withdraw", err)
		}
	}
	d.balance = rec.Balance
	to := d.owner
	d.mu.Unlock()

	tctx, cancel := context.WithTimeout(ctx, d.timeout())
	err := d.cfg.Funds.Transfer(tctx, to, amount)
	cancel()
	if err != nil {
		d.restoreBalance(amount)
		return nil, d.errs.TransferFailed(amount, err)
	}

	logger.WithFields(logger.Fields{
		"dropId": d.id,
		"amount": amount,
		"to":     to.Hex(),
	}).Debug("balance withdrawn")

	d.cfg.Publisher.Notify(Event{Kind: EventWithdrawn, DropId: d.id, Amount: new(big.Int).Set(amount), To: to})
	return amount, nil
}

// restoreBalance adds amount back. Mints may have landed while the
// transfer was in flight, so the balance is not simply reset.
func (d *Drop) restoreBalance(amount *big.Int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	rec := d.record()
	rec.Balance.Add(rec.Balance, amount)
	if p := d.cfg.Persister; p != nil {
		if err := p.SaveDrop(rec); err != nil {
			logger.WithFields(logger.Fields{
				"dropId": d.id,
				"amount": amount,
				"err":    err,
			}).Error("failed to persist restored balance")
		}
	}
	d.balance = rec.Balance
}

// updateRecord applies fn to a copy of the record, persists it and then
// commits it. Only the owner may call it.
func (d *Drop) updateRecord(caller common.Address, step string, fn func(r *Record)) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.onlyOwner(caller); err != nil {
		return err
	}

	rec := d.record()
	fn(rec)
	if p := d.cfg.Persister; p != nil {
		if err := p.SaveDrop(rec); err != nil {
			return d.errs.Persist(step, err)
		}
	}

	d.owner = rec.Owner
	d.dropURI = rec.DropURI
	d.contractURI = rec.ContractURI
	d.baseURI = rec.BaseURI
	return nil
}

func (d *Drop) SetDropURI(uri string, caller common.Address) error {
	return d.updateRecord(caller, "dropURI", func(r *Record) { r.DropURI = uri })
}

func (d *Drop) SetContractURI(uri string, caller common.Address) error {
	return d.updateRecord(caller, "contractURI", func(r *Record) { r.ContractURI = uri })
}

func (d *Drop) SetBaseURI(uri string, caller common.Address) error {
	return d.updateRecord(caller, "baseURI", func(r *Record) { r.BaseURI = uri })
}

// TransferOwnership hands the drop to newOwner.
func (d *Drop) TransferOwnership(newOwner, caller common.Address) error {
	if common.IsZeroAddress(newOwner) {
		return ErrInvalidAccount
	}
	if err := d.updateRecord(caller, "owner", func(r *Record) { r.Owner = newOwner }); err != nil {
		return err
	}

	d.cfg.Publisher.Notify(Event{Kind: EventOwnershipTransferred, DropId: d.id, From: caller, To: newOwner})
	return nil
}

// SetTokenContractInterface registers the verifier id used for
// tokenContract. The zero id removes the entry.
func (d *Drop) SetTokenContractInterface(tokenContract, verifierId, caller common.Address) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.onlyOwner(caller); err != nil {
		return err
	}
	if p := d.cfg.Persister; p != nil {
		if err := p.SaveInterface(d.id, tokenContract, verifierId); err != nil {
			return d.errs.Persist("interface", err)
		}
	}
	d.registry.Set(tokenContract, verifierId)
	return nil
}

// GetTokenContractInterface returns the zero address when unset.
func (d *Drop) GetTokenContractInterface(tokenContract common.Address) common.Address {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.registry.Get(tokenContract)
}

func (d *Drop) TokenContractInterfaces() map[common.Address]common.Address {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.registry.Entries()
}

// TransferDrip moves a drip between accounts. Mutated drips stay
// transferable.
func (d *Drop) TransferDrip(dripId uint64, to, caller common.Address) error {
	d.mu.Lock()

	if dripId >= d.currentSupply {
		d.mu.Unlock()
		return d.errs.InvalidDripId(dripId, d.currentSupply)
	}
	drip := d.drips[dripId]
	if drip.Owner != caller {
		d.mu.Unlock()
		return d.errs.InvalidDripOwner(dripId, caller)
	}
	if common.IsZeroAddress(to) {
		d.mu.Unlock()
		return ErrInvalidAccount
	}

	moved := drip.Clone()
	moved.Owner = to
	if p := d.cfg.Persister; p != nil {
		if err := p.SaveDrip(d.id, moved); err != nil {
			d.mu.Unlock()
			return d.errs.Persist("transfer", err)
		}
	}
	d.drips[dripId] = moved
	d.holdings[caller]--
	if d.holdings[caller] == 0 {
		delete(d.holdings, caller)
	}
	d.holdings[to]++
	d.mu.Unlock()

	d.cfg.Publisher.Notify(Event{Kind: EventDripTransferred, DropId: d.id, DripId: dripId, From: caller, To: to})
	return nil
}

func (d *Drop) OwnerOf(dripId uint64) (common.Address, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if dripId >= d.currentSupply {
		return common.Address{}, d.errs.InvalidDripId(dripId, d.currentSupply)
	}
	return d.drips[dripId].Owner, nil
}

// BalanceOf returns the number of drips held by account.
func (d *Drop) BalanceOf(account common.Address) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.holdings[account]
}

func (d *Drop) TotalSupply() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.currentSupply
}

func (d *Drop) Name() string {
	return common.DropName(d.id)
}

func (d *Drop) Symbol() string {
	return common.DropSymbol(d.id)
}

func (d *Drop) Owner() common.Address {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.owner
}

// Balance is the custodied amount not yet withdrawn.
func (d *Drop) Balance() *big.Int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return new(big.Int).Set(d.balance)
}

// TokenURI is baseURI followed by the drip id, or empty without a baseURI.
func (d *Drop) TokenURI(dripId uint64) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if dripId >= d.currentSupply {
		return "", d.errs.InvalidDripId(dripId, d.currentSupply)
	}
	return d.tokenURI(dripId), nil
}

func (d *Drop) tokenURI(dripId uint64) string {
	if d.baseURI == "" {
		return ""
	}
	return d.baseURI + strconv.FormatUint(dripId, 10)
}

func (d *Drop) Info() *DropInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.record().Info()
}

func (d *Drop) DripInfo(dripId uint64) (*DripInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if dripId >= d.currentSupply {
		return nil, d.errs.InvalidDripId(dripId, d.currentSupply)
	}
	drip := d.drips[dripId].Clone()
	return &DripInfo{
		DropId:   d.id,
		Name:     d.Name(),
		DripId:   drip.Id,
		Version:  drip.Version,
		Status:   drip.Status,
		Owner:    drip.Owner,
		Mutation: drip.Mutation,
		TokenURI: d.tokenURI(dripId),
	}, nil
}

// Drips returns copies of the drips in id order.
func (d *Drop) Drips() []*Drip {
	d.mu.Lock()
	defer d.mu.Unlock()

	drips := make([]*Drip, len(d.drips))
	for i, drip := range d.drips {
		drips[i] = drip.Clone()
	}
	return drips
}
