package statedb

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/big"
	"time"

	"github.com/dgraph-io/badger/v4"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/premier-io/drops-go/common"
	"github.com/premier-io/drops-go/drop"
	logger "github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v4"
)

const (
	prefixDrop      = "DROPS:DROP:"
	prefixDrip      = "DROPS:DRIP:"
	prefixInterface = "DROPS:IFACE:"
	prefixKV        = "DROPS:KV:"
	prefixBalance   = "DROPS:BAL:"
)

// BadgerDB persists the same state as StateDB in a badger key space.
// Ids are encoded big-endian so iteration follows id order.
type BadgerDB struct {
	db *badger.DB
}

// OpenBadger opens the database at path. An empty path opens an
// in-memory database.
func OpenBadger(path string) (*BadgerDB, error) {
	opts := badger.DefaultOptions(path).
		WithLogger(badgerLogger{logger.WithField("db", "badger")})
	if path == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &BadgerDB{db: db}, nil
}

// badger reports routine compaction progress at info level
type badgerLogger struct {
	*logger.Entry
}

func (l badgerLogger) Infof(format string, args ...interface{}) {
	l.Entry.Debugf(format, args...)
}

func (bs *BadgerDB) Close() error {
	return bs.db.Close()
}

// RunGC collects the value log periodically until ctx is done.
func (bs *BadgerDB) RunGC(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			lsm, vlog := bs.db.Size()
			logger.WithFields(logger.Fields{"lsm": lsm, "vlog": vlog}).Debug("badger size")
			if lsm > 1024*1024*8 || vlog > 1024*1024*32 {
				err := bs.db.RunValueLogGC(0.5)
				logger.WithField("err", err).Debug("badger value log gc")
			}
		}
	}
}

func uint64Bytes(v uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return buf
}

func dropKey(id uint64) []byte {
	return append([]byte(prefixDrop), uint64Bytes(id)...)
}

func dripPrefix(dropId uint64) []byte {
	return append([]byte(prefixDrip), uint64Bytes(dropId)...)
}

func dripKey(dropId, dripId uint64) []byte {
	return append(dripPrefix(dropId), uint64Bytes(dripId)...)
}

func interfacePrefix(dropId uint64) []byte {
	return append([]byte(prefixInterface), uint64Bytes(dropId)...)
}

func interfaceKey(dropId uint64, tokenContract common.Address) []byte {
	return append(interfacePrefix(dropId), tokenContract.Bytes()...)
}

func kvKey(key ethcommon.Hash) []byte {
	return append([]byte(prefixKV), key.Bytes()...)
}

func (bs *BadgerDB) writeDrop(txn *badger.Txn, r *drop.Record) error {
	val, err := msgpack.Marshal((&dbDrop{}).encode(r))
	if err != nil {
		return err
	}
	return txn.Set(dropKey(r.Id), val)
}

func (bs *BadgerDB) writeDrip(txn *badger.Txn, dropId uint64, d *drop.Drip) error {
	val, err := msgpack.Marshal((&dbDrip{}).encode(dropId, d))
	if err != nil {
		return err
	}
	return txn.Set(dripKey(dropId, d.Id), val)
}

func (bs *BadgerDB) SaveDrop(r *drop.Record) error {
	return bs.db.Update(func(txn *badger.Txn) error {
		return bs.writeDrop(txn, r)
	})
}

func (bs *BadgerDB) SaveMint(r *drop.Record, d *drop.Drip) error {
	return bs.db.Update(func(txn *badger.Txn) error {
		if err := bs.writeDrop(txn, r); err != nil {
			return err
		}
		return bs.writeDrip(txn, r.Id, d)
	})
}

func (bs *BadgerDB) SaveDrip(dropId uint64, d *drop.Drip) error {
	return bs.db.Update(func(txn *badger.Txn) error {
		return bs.writeDrip(txn, dropId, d)
	})
}

func (bs *BadgerDB) SaveInterface(dropId uint64, tokenContract, verifierId common.Address) error {
	return bs.db.Update(func(txn *badger.Txn) error {
		key := interfaceKey(dropId, tokenContract)
		if common.IsZeroAddress(verifierId) {
			return txn.Delete(key)
		}
		return txn.Set(key, verifierId.Bytes())
	})
}

func (bs *BadgerDB) GetDrop(id uint64) (*drop.Record, bool, error) {
	txn := bs.db.NewTransaction(false)
	defer txn.Discard()

	item, err := txn.Get(dropKey(id))
	if err == badger.ErrKeyNotFound {
		return nil, false, nil
	} else if err != nil {
		return nil, false, err
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return nil, false, err
	}

	r, err := decodeDropValue(val)
	if err != nil {
		return nil, false, err
	}
	return r, true, nil
}

func decodeDropValue(val []byte) (*drop.Record, error) {
	var s dbDrop
	if err := msgpack.Unmarshal(val, &s); err != nil {
		return nil, err
	}
	return s.decode()
}

// iterate calls fn with the key and value of every item under prefix.
func (bs *BadgerDB) iterate(prefix []byte, fn func(key, val []byte) error) error {
	txn := bs.db.NewTransaction(false)
	defer txn.Discard()

	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if err := fn(item.KeyCopy(nil), val); err != nil {
			return err
		}
	}
	return nil
}

func (bs *BadgerDB) ListDrops() ([]*drop.Record, error) {
	records := []*drop.Record{}
	err := bs.iterate([]byte(prefixDrop), func(_, val []byte) error {
		r, err := decodeDropValue(val)
		if err != nil {
			return err
		}
		records = append(records, r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (bs *BadgerDB) ListDrips(dropId uint64) ([]*drop.Drip, error) {
	drips := []*drop.Drip{}
	err := bs.iterate(dripPrefix(dropId), func(_, val []byte) error {
		var s dbDrip
		if err := msgpack.Unmarshal(val, &s); err != nil {
			return err
		}
		d, err := s.decode()
		if err != nil {
			return err
		}
		drips = append(drips, d)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return drips, nil
}

func (bs *BadgerDB) ListInterfaces(dropId uint64) (map[common.Address]common.Address, error) {
	prefix := interfacePrefix(dropId)
	entries := make(map[common.Address]common.Address)
	err := bs.iterate(prefix, func(key, val []byte) error {
		tokenContract := ethcommon.BytesToAddress(key[len(prefix):])
		entries[tokenContract] = ethcommon.BytesToAddress(val)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (bs *BadgerDB) GetKeyedValue(key ethcommon.Hash) (ethcommon.Hash, bool, error) {
	txn := bs.db.NewTransaction(false)
	defer txn.Discard()

	item, err := txn.Get(kvKey(key))
	if err == badger.ErrKeyNotFound {
		return ethcommon.Hash{}, false, nil
	} else if err != nil {
		return ethcommon.Hash{}, false, err
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return ethcommon.Hash{}, false, err
	}
	return ethcommon.BytesToHash(val), true, nil
}

func (bs *BadgerDB) SetKeyedValue(key, value ethcommon.Hash) error {
	return bs.db.Update(func(txn *badger.Txn) error {
		return txn.Set(kvKey(key), value.Bytes())
	})
}

func (bs *BadgerDB) SetStoreOwner(owner common.Address) error {
	return bs.SetKeyedValue(KeyStoreOwner, ethcommon.BytesToHash(owner.Bytes()))
}

func (bs *BadgerDB) GetStoreOwner() (common.Address, bool, error) {
	v, ok, err := bs.GetKeyedValue(KeyStoreOwner)
	if err != nil || !ok {
		return common.Address{}, ok, err
	}
	return ethcommon.BytesToAddress(v.Bytes()), true, nil
}

func (bs *BadgerDB) SetStoreAddress(addr common.Address) error {
	return bs.SetKeyedValue(KeyStoreAddr, ethcommon.BytesToHash(addr.Bytes()))
}

func (bs *BadgerDB) GetStoreAddress() (common.Address, bool, error) {
	v, ok, err := bs.GetKeyedValue(KeyStoreAddr)
	if err != nil || !ok {
		return common.Address{}, ok, err
	}
	return ethcommon.BytesToAddress(v.Bytes()), true, nil
}

func balanceKey(account common.Address) []byte {
	return append([]byte(prefixBalance), account.Bytes()...)
}

// SaveBalance sets the ledger balance of account.
func (bs *BadgerDB) SaveBalance(account common.Address, amount *big.Int) error {
	return bs.db.Update(func(txn *badger.Txn) error {
		return txn.Set(balanceKey(account), []byte(amount.String()))
	})
}

func (bs *BadgerDB) ListBalances() (map[common.Address]*big.Int, error) {
	prefix := []byte(prefixBalance)
	balances := make(map[common.Address]*big.Int)
	err := bs.iterate(prefix, func(key, val []byte) error {
		account := ethcommon.BytesToAddress(key[len(prefix):])
		amount := common.DecStrToBigInt(string(val))
		if amount == nil {
			return fmt.Errorf("%w: balance of %s", ErrCorruptedRecord, account.Hex())
		}
		balances[account] = amount
		return nil
	})
	if err != nil {
		return nil, err
	}
	return balances, nil
}
