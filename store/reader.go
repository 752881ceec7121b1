package store

import (
	"fmt"

	"github.com/premier-io/drops-go/common"
	"github.com/premier-io/drops-go/drop"
)

// Reader serves store reads straight from the database. It sees every
// write committed by any store opened on the same database.
type Reader struct {
	db Database
}

func NewReader(db Database) *Reader {
	return &Reader{db: db}
}

func (r *Reader) Owner() (common.Address, error) {
	owner, ok, err := r.db.GetStoreOwner()
	if err != nil {
		return common.Address{}, err
	}
	if !ok {
		return common.Address{}, ErrStoreNotFound
	}
	return owner, nil
}

func (r *Reader) DropSupply() (uint64, error) {
	records, err := r.db.ListDrops()
	if err != nil {
		return 0, err
	}
	return uint64(len(records)), nil
}

func (r *Reader) Drops() ([]*drop.DropInfo, error) {
	records, err := r.db.ListDrops()
	if err != nil {
		return nil, err
	}

	infos := make([]*drop.DropInfo, len(records))
	for i, rec := range records {
		infos[i] = rec.Info()
	}
	return infos, nil
}

func (r *Reader) DropInfo(dropId uint64) (*drop.DropInfo, error) {
	rec, err := r.record(dropId)
	if err != nil {
		return nil, err
	}
	return rec.Info(), nil
}

func (r *Reader) DripInfo(dropId, dripId uint64) (*drop.DripInfo, error) {
	d, err := r.load(dropId)
	if err != nil {
		return nil, err
	}
	return d.DripInfo(dripId)
}

func (r *Reader) BalanceOf(dropId uint64, account common.Address) (uint64, error) {
	d, err := r.load(dropId)
	if err != nil {
		return 0, err
	}
	return d.BalanceOf(account), nil
}

func (r *Reader) GetTokenContractInterface(dropId uint64, tokenContract common.Address) (common.Address, error) {
	if _, err := r.record(dropId); err != nil {
		return common.Address{}, err
	}
	entries, err := r.db.ListInterfaces(dropId)
	if err != nil {
		return common.Address{}, err
	}
	return entries[tokenContract], nil
}

func (r *Reader) record(dropId uint64) (*drop.Record, error) {
	rec, ok, err := r.db.GetDrop(dropId)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: drop=%d", ErrInvalidDropId, dropId)
	}
	return rec, nil
}

// load rebuilds a read-only copy of dropId.
func (r *Reader) load(dropId uint64) (*drop.Drop, error) {
	rec, err := r.record(dropId)
	if err != nil {
		return nil, err
	}
	drips, err := r.db.ListDrips(dropId)
	if err != nil {
		return nil, err
	}
	// a mint committed after the drop row was read
	if uint64(len(drips)) > rec.CurrentSupply {
		drips = drips[:rec.CurrentSupply]
	}
	ifaces, err := r.db.ListInterfaces(dropId)
	if err != nil {
		return nil, err
	}

	d, err := drop.Restore(rec, drips, ifaces, nil)
	if err != nil {
		return nil, fmt.Errorf("drop %d: %w", dropId, err)
	}
	return d, nil
}
