package etherman

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/premier-io/drops-go/common"
	logger "github.com/sirupsen/logrus"
)

const DefaultTransferGas = uint64(21000)

var (
	ErrNoPayer         = errors.New("no payer account configured")
	ErrInvalidPayerKey = errors.New("invalid payer key")
	ErrInvalidAmount   = errors.New("invalid payout amount")
)

type ethereumClient interface {
	ethereum.ChainStateReader
	ethereum.ContractCaller
	ethereum.GasPricer
	ethereum.PendingStateReader
	ethereum.TransactionReader
	ethereum.TransactionSender

	bind.DeployBackend

	ChainID(ctx context.Context) (*big.Int, error)
}

// Etherman wraps the node connection. It answers the read-only calls of
// the token verifiers and pays withdrawals out from the payer account.
type Etherman struct {
	ethClient ethereumClient
	payer     *bind.TransactOpts
	gasLimit  uint64

	mu sync.Mutex // serializes nonce assignment
}

func NewEtherman(cfg *Config) (*Etherman, error) {
	ethClient, err := ethclient.Dial(cfg.URL)
	if err != nil {
		return nil, err
	}

	return newEtherman(ethClient, cfg)
}

func newEtherman(ethClient ethereumClient, cfg *Config) (*Etherman, error) {
	etherman := &Etherman{
		ethClient: ethClient,
		gasLimit:  cfg.GasLimit,
	}
	if etherman.gasLimit == 0 {
		etherman.gasLimit = DefaultTransferGas
	}

	if cfg.PayerKey == "" {
		return etherman, nil
	}

	sk, err := crypto.HexToECDSA(common.Trim0xPrefix(cfg.PayerKey))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayerKey, err)
	}
	chainId, err := ethClient.ChainID(context.Background())
	if err != nil {
		return nil, err
	}
	payer, err := bind.NewKeyedTransactorWithChainID(sk, chainId)
	if err != nil {
		return nil, err
	}
	etherman.payer = payer

	logger.WithFields(logger.Fields{
		"payer":   payer.From.Hex(),
		"chainId": chainId,
	}).Info("payout account loaded")
	return etherman, nil
}

// Caller is the read-only view used by token verifiers and probes.
func (etherman *Etherman) Caller() ethereum.ContractCaller {
	return etherman.ethClient
}

// Payer returns the payout account, or false if none is configured.
func (etherman *Etherman) Payer() (ethcommon.Address, bool) {
	if etherman.payer == nil {
		return ethcommon.Address{}, false
	}
	return etherman.payer.From, true
}

func (etherman *Etherman) BalanceAt(ctx context.Context, account ethcommon.Address) (*big.Int, error) {
	return etherman.ethClient.BalanceAt(ctx, account, nil)
}

// IsContract reports whether code is deployed at addr.
func (etherman *Etherman) IsContract(ctx context.Context, addr ethcommon.Address) (bool, error) {
	code, err := etherman.ethClient.CodeAt(ctx, addr, nil)
	if err != nil {
		return false, err
	}
	return len(code) > 0, nil
}

// Transfer sends amount wei from the payer account to to. It returns once
// the node has accepted the transaction.
func (etherman *Etherman) Transfer(ctx context.Context, to ethcommon.Address, amount *big.Int) error {
	if etherman.payer == nil {
		return ErrNoPayer
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}

	etherman.mu.Lock()
	defer etherman.mu.Unlock()

	from := etherman.payer.From
	nonce, err := etherman.ethClient.PendingNonceAt(ctx, from)
	if err != nil {
		return err
	}
	gasPrice, err := etherman.ethClient.SuggestGasPrice(ctx)
	if err != nil {
		return err
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    amount,
		Gas:      etherman.gasLimit,
		GasPrice: gasPrice,
	})
	signed, err := etherman.payer.Signer(from, tx)
	if err != nil {
		return err
	}
	if err := etherman.ethClient.SendTransaction(ctx, signed); err != nil {
		return err
	}

	logger.WithFields(logger.Fields{
		"tx":     signed.Hash().Hex(),
		"to":     to.Hex(),
		"amount": amount,
		"nonce":  nonce,
	}).Info("payout sent")
	return nil
}
