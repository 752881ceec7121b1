package drop

import (
	"encoding/json"
	"math/big"

	"github.com/premier-io/drops-go/common"
)

type DripStatus string

const (
	DripStatusDefault DripStatus = "DEFAULT"
	DripStatusMutated DripStatus = "MUTATED"
)

func (s DripStatus) String() string {
	return string(s)
}

func (s DripStatus) Valid() bool {
	return s == DripStatusDefault || s == DripStatusMutated
}

// Mutation records the external token a drip was bound to.
type Mutation struct {
	TokenContract common.Address
	TokenId       *big.Int
}

// Drip is one minted unit. Mutation is non-nil iff Status is MUTATED.
type Drip struct {
	Id       uint64
	Version  uint64
	Status   DripStatus
	Mutation *Mutation
	Owner    common.Address
}

func (d *Drip) Clone() *Drip {
	c := *d
	if d.Mutation != nil {
		c.Mutation = &Mutation{
			TokenContract: d.Mutation.TokenContract,
			TokenId:       common.BigIntClone(d.Mutation.TokenId),
		}
	}
	return &c
}

// Record holds the scalar state of a drop as it is persisted.
type Record struct {
	Id            uint64
	Owner         common.Address
	MaxSupply     uint64
	CurrentSupply uint64
	Price         *big.Int
	Versions      uint64
	Balance       *big.Int
	DropURI       string
	ContractURI   string
	BaseURI       string
}

func (r *Record) Clone() *Record {
	c := *r
	c.Price = common.BigIntClone(r.Price)
	c.Balance = common.BigIntClone(r.Balance)
	return &c
}

// Info is the public view of the record.
func (r *Record) Info() *DropInfo {
	return &DropInfo{
		Name:          common.DropName(r.Id),
		Symbol:        common.DropSymbol(r.Id),
		Id:            r.Id,
		CurrentSupply: r.CurrentSupply,
		MaxSupply:     r.MaxSupply,
		Price:         common.BigIntClone(r.Price),
		Versions:      r.Versions,
		DropURI:       r.DropURI,
		ContractURI:   r.ContractURI,
		BaseURI:       r.BaseURI,
		Owner:         r.Owner,
	}
}

type DropInfo struct {
	Name          string
	Symbol        string
	Id            uint64
	CurrentSupply uint64
	MaxSupply     uint64
	Price         *big.Int
	Versions      uint64
	DropURI       string
	ContractURI   string
	BaseURI       string
	Owner         common.Address
}

type jsonDropInfo struct {
	Name          string `json:"name"`
	Symbol        string `json:"symbol"`
	Id            uint64 `json:"id"`
	CurrentSupply uint64 `json:"currentSupply"`
	MaxSupply     uint64 `json:"maxSupply"`
	Price         string `json:"price"`
	Versions      uint64 `json:"versions"`
	DropURI       string `json:"dropURI"`
	ContractURI   string `json:"contractURI"`
	BaseURI       string `json:"baseURI"`
	Owner         string `json:"owner"`
}

// Amounts are rendered as decimal strings.
func (i *DropInfo) MarshalJSON() ([]byte, error) {
	return json.Marshal(&jsonDropInfo{
		Name:          i.Name,
		Symbol:        i.Symbol,
		Id:            i.Id,
		CurrentSupply: i.CurrentSupply,
		MaxSupply:     i.MaxSupply,
		Price:         i.Price.String(),
		Versions:      i.Versions,
		DropURI:       i.DropURI,
		ContractURI:   i.ContractURI,
		BaseURI:       i.BaseURI,
		Owner:         i.Owner.Hex(),
	})
}

func (i *DropInfo) UnmarshalJSON(data []byte) error {
	var j jsonDropInfo
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	price, err := common.ParseAmount(j.Price)
	if err != nil {
		return err
	}
	owner, err := common.ParseAddress(j.Owner)
	if err != nil {
		return err
	}
	*i = DropInfo{
		Name:          j.Name,
		Symbol:        j.Symbol,
		Id:            j.Id,
		CurrentSupply: j.CurrentSupply,
		MaxSupply:     j.MaxSupply,
		Price:         price,
		Versions:      j.Versions,
		DropURI:       j.DropURI,
		ContractURI:   j.ContractURI,
		BaseURI:       j.BaseURI,
		Owner:         owner,
	}
	return nil
}

// DripInfo is a drip together with the context of its drop.
type DripInfo struct {
	DropId   uint64
	Name     string
	DripId   uint64
	Version  uint64
	Status   DripStatus
	Owner    common.Address
	Mutation *Mutation
	TokenURI string
}

type jsonMutation struct {
	TokenContract string `json:"tokenContract"`
	TokenId       string `json:"tokenId"`
}

type jsonDripInfo struct {
	DropId   uint64        `json:"dropId"`
	Name     string        `json:"name"`
	DripId   uint64        `json:"dripId"`
	Version  uint64        `json:"version"`
	Status   string        `json:"status"`
	Owner    string        `json:"owner"`
	Mutation *jsonMutation `json:"mutation,omitempty"`
	TokenURI string        `json:"tokenURI"`
}

func (i *DripInfo) MarshalJSON() ([]byte, error) {
	j := &jsonDripInfo{
		DropId:   i.DropId,
		Name:     i.Name,
		DripId:   i.DripId,
		Version:  i.Version,
		Status:   i.Status.String(),
		Owner:    i.Owner.Hex(),
		TokenURI: i.TokenURI,
	}
	if i.Mutation != nil {
		j.Mutation = &jsonMutation{
			TokenContract: i.Mutation.TokenContract.Hex(),
			TokenId:       i.Mutation.TokenId.String(),
		}
	}
	return json.Marshal(j)
}

func (i *DripInfo) UnmarshalJSON(data []byte) error {
	var j jsonDripInfo
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	owner, err := common.ParseAddress(j.Owner)
	if err != nil {
		return err
	}
	*i = DripInfo{
		DropId:   j.DropId,
		Name:     j.Name,
		DripId:   j.DripId,
		Version:  j.Version,
		Status:   DripStatus(j.Status),
		Owner:    owner,
		TokenURI: j.TokenURI,
	}
	if j.Mutation != nil {
		contract, err := common.ParseAddress(j.Mutation.TokenContract)
		if err != nil {
			return err
		}
		tokenId, err := common.ParseAmount(j.Mutation.TokenId)
		if err != nil {
			return err
		}
		i.Mutation = &Mutation{TokenContract: contract, TokenId: tokenId}
	}
	return nil
}
