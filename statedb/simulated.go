package statedb

import (
	"database/sql"
	"math/big"

	_ "github.com/mattn/go-sqlite3"
	"github.com/premier-io/drops-go/common"
	"github.com/premier-io/drops-go/drop"
)

func RandRecord(id uint64) *drop.Record {
	return &drop.Record{
		Id:          id,
		Owner:       common.RandEthAddress(),
		MaxSupply:   100,
		Price:       common.RandBigInt(16),
		Versions:    3,
		Balance:     big.NewInt(0),
		DropURI:     "ipfs://drop",
		ContractURI: "ipfs://contract",
	}
}

func RandDrip(id uint64, status drop.DripStatus) *drop.Drip {
	d := &drop.Drip{
		Id:      id,
		Version: id % 3,
		Status:  status,
		Owner:   common.RandEthAddress(),
	}
	if status == drop.DripStatusMutated {
		d.Mutation = &drop.Mutation{
			TokenContract: common.RandEthAddress(),
			TokenId:       common.RandBigInt(32),
		}
	}
	return d
}

// NewMemoryStateDB returns a sqlite state db backed by ":memory:".
func NewMemoryStateDB() (*StateDB, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, err
	}
	return NewStateDB(db)
}
