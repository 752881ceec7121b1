package store

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/premier-io/drops-go/common"
	"github.com/premier-io/drops-go/drop"
	logger "github.com/sirupsen/logrus"
)

var (
	ErrInvalidDropId    = errors.New("drop does not exist")
	ErrStoreNotFound    = errors.New("no store found in database")
	ErrInvalidOwner     = errors.New("store owner is the zero address")
	ErrStoreOwnerChange = errors.New("failed to persist store owner")
)

// Database is the persistence a Store is loaded from and written
// through to.
type Database interface {
	drop.Persister

	GetDrop(id uint64) (*drop.Record, bool, error)
	ListDrops() ([]*drop.Record, error)
	ListDrips(dropId uint64) ([]*drop.Drip, error)
	ListInterfaces(dropId uint64) (map[common.Address]common.Address, error)

	SetStoreOwner(owner common.Address) error
	GetStoreOwner() (common.Address, bool, error)
	SetStoreAddress(addr common.Address) error
	GetStoreAddress() (common.Address, bool, error)
}

type Config struct {
	Owner common.Address
	// Account that owns every drop. Derived from Owner when zero.
	Address common.Address

	Resolver drop.VerifierResolver
	// Pays withdrawn balances out to the store owner.
	Funds drop.FundTransferrer
	// Optional.
	DB        Database
	Publisher *drop.Publisher

	CallTimeout time.Duration
}

// Store is a registry of drops. It owns every drop it creates and routes
// calls to them. Its lock guards the drop list and the owner only, and is
// never held while a drop operation runs.
type Store struct {
	mu      sync.RWMutex
	owner   common.Address
	address common.Address
	drops   []*drop.Drop

	cfg     *Config
	dropCfg *drop.Config
}

// New creates an empty store owned by cfg.Owner.
func New(cfg *Config) (*Store, error) {
	if common.IsZeroAddress(cfg.Owner) {
		return nil, ErrInvalidOwner
	}

	address := cfg.Address
	if common.IsZeroAddress(address) {
		address = crypto.CreateAddress(cfg.Owner, 0)
	}

	if cfg.DB != nil {
		if err := cfg.DB.SetStoreOwner(cfg.Owner); err != nil {
			return nil, err
		}
		if err := cfg.DB.SetStoreAddress(address); err != nil {
			return nil, err
		}
	}

	s := newStore(cfg, cfg.Owner, address)
	logger.WithFields(logger.Fields{
		"owner":   cfg.Owner.Hex(),
		"address": address.Hex(),
	}).Info("store created")
	return s, nil
}

// Load restores a store and all its drops from cfg.DB. cfg.Owner and
// cfg.Address are ignored in favour of the stored values.
func Load(cfg *Config) (*Store, error) {
	if cfg.DB == nil {
		return nil, ErrStoreNotFound
	}

	owner, ok, err := cfg.DB.GetStoreOwner()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrStoreNotFound
	}
	address, ok, err := cfg.DB.GetStoreAddress()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrStoreNotFound
	}

	s := newStore(cfg, owner, address)

	records, err := cfg.DB.ListDrops()
	if err != nil {
		return nil, err
	}
	for i, r := range records {
		if r.Id != uint64(i) {
			return nil, fmt.Errorf("%w: expected drop %d, found %d", drop.ErrInvalidRecord, i, r.Id)
		}
		drips, err := cfg.DB.ListDrips(r.Id)
		if err != nil {
			return nil, err
		}
		ifaces, err := cfg.DB.ListInterfaces(r.Id)
		if err != nil {
			return nil, err
		}
		d, err := drop.Restore(r, drips, ifaces, s.dropCfg)
		if err != nil {
			return nil, fmt.Errorf("drop %d: %w", r.Id, err)
		}
		s.drops = append(s.drops, d)
	}

	logger.WithFields(logger.Fields{
		"owner": owner.Hex(),
		"drops": len(s.drops),
	}).Info("store loaded")
	return s, nil
}

func newStore(cfg *Config, owner, address common.Address) *Store {
	s := &Store{
		owner:   owner,
		address: address,
		drops:   make([]*drop.Drop, 0),
		cfg:     cfg,
	}

	var persister drop.Persister
	if cfg.DB != nil {
		persister = cfg.DB
	}
	s.dropCfg = &drop.Config{
		Resolver:    cfg.Resolver,
		Funds:       &treasury{store: s, funds: cfg.Funds},
		Persister:   persister,
		Publisher:   cfg.Publisher,
		CallTimeout: cfg.CallTimeout,
	}
	return s
}

func (s *Store) Owner() common.Address {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.owner
}

// Address is the account every drop of this store is owned by.
func (s *Store) Address() common.Address {
	return s.address
}

func (s *Store) onlyOwner(caller common.Address) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.checkOwner(caller)
}

// checkOwner must be called with mu held.
func (s *Store) checkOwner(caller common.Address) error {
	if caller != s.owner {
		return fmt.Errorf("%w: store owner=%s, caller=%s", drop.ErrCallerNotOwner, s.owner.Hex(), caller.Hex())
	}
	return nil
}

func (s *Store) TransferOwnership(newOwner, caller common.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOwner(caller); err != nil {
		return err
	}
	if common.IsZeroAddress(newOwner) {
		return drop.ErrInvalidAccount
	}

	if s.cfg.DB != nil {
		if err := s.cfg.DB.SetStoreOwner(newOwner); err != nil {
			return fmt.Errorf("%w: %w", ErrStoreOwnerChange, err)
		}
	}
	s.owner = newOwner
	return nil
}

// CreateDrop appends a new drop owned by the store and returns its id.
func (s *Store) CreateDrop(maxSupply uint64, price *big.Int, versions uint64, caller common.Address) (uint64, error) {
	s.mu.Lock()
	if err := s.checkOwner(caller); err != nil {
		s.mu.Unlock()
		return 0, err
	}
	id := uint64(len(s.drops))
	d, err := drop.New(id, maxSupply, price, versions, s.address, s.dropCfg)
	if err != nil {
		s.mu.Unlock()
		return 0, err
	}
	s.drops = append(s.drops, d)
	s.mu.Unlock()

	logger.WithFields(logger.Fields{
		"dropId":    id,
		"maxSupply": maxSupply,
		"price":     price,
		"versions":  versions,
	}).Info("drop created")

	s.cfg.Publisher.Notify(drop.Event{Kind: drop.EventDropCreated, DropId: id})
	return id, nil
}

func (s *Store) Drop(dropId uint64) (*drop.Drop, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if dropId >= uint64(len(s.drops)) {
		return nil, fmt.Errorf("%w: drop=%d, supply=%d", ErrInvalidDropId, dropId, len(s.drops))
	}
	return s.drops[dropId], nil
}

// DropSupply is the number of drops created.
func (s *Store) DropSupply() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.drops))
}

func (s *Store) DropInfo(dropId uint64) (*drop.DropInfo, error) {
	d, err := s.Drop(dropId)
	if err != nil {
		return nil, err
	}
	return d.Info(), nil
}

// Drops returns a snapshot of every drop in id order.
func (s *Store) Drops() []*drop.DropInfo {
	s.mu.RLock()
	drops := make([]*drop.Drop, len(s.drops))
	copy(drops, s.drops)
	s.mu.RUnlock()

	infos := make([]*drop.DropInfo, len(drops))
	for i, d := range drops {
		infos[i] = d.Info()
	}
	return infos
}

func (s *Store) DripInfo(dropId, dripId uint64) (*drop.DripInfo, error) {
	d, err := s.Drop(dropId)
	if err != nil {
		return nil, err
	}
	return d.DripInfo(dripId)
}

// Mint issues a drip of dropId to caller.
func (s *Store) Mint(dropId, version uint64, payment *big.Int, caller common.Address) (uint64, error) {
	d, err := s.Drop(dropId)
	if err != nil {
		return 0, err
	}
	return d.Mint(version, payment, caller)
}

func (s *Store) Mutate(ctx context.Context, dropId, dripId uint64, tokenContract common.Address, tokenId *big.Int, caller common.Address) error {
	d, err := s.Drop(dropId)
	if err != nil {
		return err
	}
	return d.Mutate(ctx, dripId, tokenContract, tokenId, caller)
}

// Withdraw pays the balance of dropId out to the store owner.
func (s *Store) Withdraw(ctx context.Context, dropId uint64, caller common.Address) (*big.Int, error) {
	d, err := s.Drop(dropId)
	if err != nil {
		return nil, err
	}
	if err := s.onlyOwner(caller); err != nil {
		return nil, err
	}
	return d.Withdraw(ctx, s.address)
}

func (s *Store) SetDropURI(dropId uint64, uri string, caller common.Address) error {
	d, err := s.adminDrop(dropId, caller)
	if err != nil {
		return err
	}
	return d.SetDropURI(uri, s.address)
}

func (s *Store) SetContractURI(dropId uint64, uri string, caller common.Address) error {
	d, err := s.adminDrop(dropId, caller)
	if err != nil {
		return err
	}
	return d.SetContractURI(uri, s.address)
}

func (s *Store) SetBaseURI(dropId uint64, uri string, caller common.Address) error {
	d, err := s.adminDrop(dropId, caller)
	if err != nil {
		return err
	}
	return d.SetBaseURI(uri, s.address)
}

func (s *Store) SetTokenContractInterface(dropId uint64, tokenContract, verifierId, caller common.Address) error {
	d, err := s.adminDrop(dropId, caller)
	if err != nil {
		return err
	}
	return d.SetTokenContractInterface(tokenContract, verifierId, s.address)
}

func (s *Store) GetTokenContractInterface(dropId uint64, tokenContract common.Address) (common.Address, error) {
	d, err := s.Drop(dropId)
	if err != nil {
		return common.Address{}, err
	}
	return d.GetTokenContractInterface(tokenContract), nil
}

func (s *Store) TransferDrip(dropId, dripId uint64, to, caller common.Address) error {
	d, err := s.Drop(dropId)
	if err != nil {
		return err
	}
	return d.TransferDrip(dripId, to, caller)
}

// BalanceOf is the number of drips of dropId held by account.
func (s *Store) BalanceOf(dropId uint64, account common.Address) (uint64, error) {
	d, err := s.Drop(dropId)
	if err != nil {
		return 0, err
	}
	return d.BalanceOf(account), nil
}

func (s *Store) TokenURI(dropId, dripId uint64) (string, error) {
	d, err := s.Drop(dropId)
	if err != nil {
		return "", err
	}
	return d.TokenURI(dripId)
}

// adminDrop resolves dropId and checks that caller owns the store.
func (s *Store) adminDrop(dropId uint64, caller common.Address) (*drop.Drop, error) {
	d, err := s.Drop(dropId)
	if err != nil {
		return nil, err
	}
	if err := s.onlyOwner(caller); err != nil {
		return nil, err
	}
	return d, nil
}

// treasury receives withdrawals addressed to the store and forwards
// them to the current store owner.
type treasury struct {
	store *Store
	funds drop.FundTransferrer
}

func (t *treasury) Transfer(ctx context.Context, to common.Address, amount *big.Int) error {
	if t.funds == nil {
		return errors.New("no fund transferrer configured")
	}
	if to == t.store.address {
		to = t.store.Owner()
	}
	return t.funds.Transfer(ctx, to, amount)
}
