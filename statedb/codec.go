package statedb

import (
	"errors"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/premier-io/drops-go/common"
	"github.com/premier-io/drops-go/drop"
)

var ErrCorruptedRecord = errors.New("stored record cannot be decoded")

// dbDrop is the storage form of drop.Record. Addresses are hex without
// 0x, amounts are decimal strings.
type dbDrop struct {
	Id            uint64 `msgpack:"id"`
	Owner         string `msgpack:"owner"`
	MaxSupply     uint64 `msgpack:"max_supply"`
	CurrentSupply uint64 `msgpack:"current_supply"`
	Price         string `msgpack:"price"`
	Versions      uint64 `msgpack:"versions"`
	Balance       string `msgpack:"balance"`
	DropURI       string `msgpack:"drop_uri"`
	ContractURI   string `msgpack:"contract_uri"`
	BaseURI       string `msgpack:"base_uri"`
}

func (s *dbDrop) encode(r *drop.Record) *dbDrop {
	s.Id = r.Id
	s.Owner = encodeAddress(r.Owner)
	s.MaxSupply = r.MaxSupply
	s.CurrentSupply = r.CurrentSupply
	s.Price = r.Price.String()
	s.Versions = r.Versions
	s.Balance = r.Balance.String()
	s.DropURI = r.DropURI
	s.ContractURI = r.ContractURI
	s.BaseURI = r.BaseURI
	return s
}

func (s *dbDrop) decode() (*drop.Record, error) {
	price := common.DecStrToBigInt(s.Price)
	balance := common.DecStrToBigInt(s.Balance)
	if price == nil || balance == nil {
		return nil, ErrCorruptedRecord
	}

	return &drop.Record{
		Id:            s.Id,
		Owner:         decodeAddress(s.Owner),
		MaxSupply:     s.MaxSupply,
		CurrentSupply: s.CurrentSupply,
		Price:         price,
		Versions:      s.Versions,
		Balance:       balance,
		DropURI:       s.DropURI,
		ContractURI:   s.ContractURI,
		BaseURI:       s.BaseURI,
	}, nil
}

// dbDrip is the storage form of drop.Drip. The token fields are empty
// unless the drip is mutated.
type dbDrip struct {
	DropId        uint64 `msgpack:"drop_id"`
	Id            uint64 `msgpack:"id"`
	Version       uint64 `msgpack:"version"`
	Status        string `msgpack:"status"`
	Owner         string `msgpack:"owner"`
	TokenContract string `msgpack:"token_contract"`
	TokenId       string `msgpack:"token_id"`
}

func (s *dbDrip) encode(dropId uint64, d *drop.Drip) *dbDrip {
	s.DropId = dropId
	s.Id = d.Id
	s.Version = d.Version
	s.Status = d.Status.String()
	s.Owner = encodeAddress(d.Owner)
	s.TokenContract = ""
	s.TokenId = ""
	if d.Mutation != nil {
		s.TokenContract = encodeAddress(d.Mutation.TokenContract)
		s.TokenId = d.Mutation.TokenId.String()
	}
	return s
}

func (s *dbDrip) decode() (*drop.Drip, error) {
	status := drop.DripStatus(s.Status)
	if !status.Valid() {
		return nil, ErrCorruptedRecord
	}

	d := &drop.Drip{
		Id:      s.Id,
		Version: s.Version,
		Status:  status,
		Owner:   decodeAddress(s.Owner),
	}
	if status == drop.DripStatusMutated {
		tokenId := common.DecStrToBigInt(s.TokenId)
		if tokenId == nil || s.TokenContract == "" {
			return nil, ErrCorruptedRecord
		}
		d.Mutation = &drop.Mutation{
			TokenContract: decodeAddress(s.TokenContract),
			TokenId:       tokenId,
		}
	}
	return d, nil
}

func encodeAddress(addr common.Address) string {
	return common.ByteSliceToPureHexStr(addr.Bytes())
}

func decodeAddress(s string) common.Address {
	return ethcommon.HexToAddress(common.Prepend0xPrefix(s))
}
