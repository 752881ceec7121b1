package etherman

import (
	"crypto/ecdsa"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
)

var (
	simulatedChainID = big.NewInt(1337)
	blockGasLimit    = uint64(999999999999999999)
)

type SimulatedChain struct {
	Backend  *simulated.Backend
	Keys     []*ecdsa.PrivateKey
	Accounts []*bind.TransactOpts
}

// NewSimulatedChain starts an in-process chain with nAccount funded
// accounts.
func NewSimulatedChain(nAccount int) *SimulatedChain {
	keys := make([]*ecdsa.PrivateKey, nAccount)
	accounts := make([]*bind.TransactOpts, nAccount)
	for i := 0; i < nAccount; i++ {
		keys[i], accounts[i] = newAuth()
	}

	// allocate funds to accounts
	genesisAlloc := map[common.Address]types.Account{}
	for _, account := range accounts {
		balance, _ := new(big.Int).SetString("100000000000000000000", 10)
		genesisAlloc[account.From] = types.Account{
			Balance: balance,
		}
	}

	backend := simulated.NewBackend(genesisAlloc, simulated.WithBlockGasLimit(blockGasLimit))

	return &SimulatedChain{
		Backend:  backend,
		Keys:     keys,
		Accounts: accounts,
	}
}

// NewEtherman connects to the simulated chain paying out from account
// payer. A negative payer gives a read-only instance.
func (sim *SimulatedChain) NewEtherman(payer int) (*Etherman, error) {
	cfg := &Config{}
	if payer >= 0 {
		cfg.PayerKey = common.Bytes2Hex(crypto.FromECDSA(sim.Keys[payer]))
	}
	return newEtherman(sim.Backend.Client(), cfg)
}

func newAuth() (*ecdsa.PrivateKey, *bind.TransactOpts) {
	sk, _ := crypto.GenerateKey()
	auth, _ := bind.NewKeyedTransactorWithChainID(sk, simulatedChainID)
	return sk, auth
}
