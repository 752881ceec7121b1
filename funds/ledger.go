package funds

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/premier-io/drops-go/common"
	logger "github.com/sirupsen/logrus"
)

var (
	ErrInvalidAmount = errors.New("amount must not be negative")
	ErrPersist       = errors.New("failed to persist ledger balance")
)

// BalanceStore persists ledger balances.
type BalanceStore interface {
	SaveBalance(account common.Address, amount *big.Int) error
	ListBalances() (map[common.Address]*big.Int, error)
}

// Ledger keeps account balances. It pays out withdrawals when no node
// is configured. With a BalanceStore every credit is written through
// before it is applied.
type Ledger struct {
	mu       sync.Mutex // prevent concurrent updates
	balances map[common.Address]*big.Int
	db       BalanceStore
}

// NewLedger returns a ledger that lives in memory only.
func NewLedger() *Ledger {
	return &Ledger{balances: make(map[common.Address]*big.Int)}
}

// LoadLedger returns a ledger restored from db and written through to it.
func LoadLedger(db BalanceStore) (*Ledger, error) {
	balances, err := db.ListBalances()
	if err != nil {
		return nil, err
	}
	return &Ledger{balances: balances, db: db}, nil
}

// Transfer credits to with amount. It satisfies drop.FundTransferrer.
func (l *Ledger) Transfer(ctx context.Context, to common.Address, amount *big.Int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return l.Credit(to, amount)
}

func (l *Ledger) Credit(to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	bal := new(big.Int).Add(l.balanceOf(to), amount)
	if l.db != nil {
		if err := l.db.SaveBalance(to, bal); err != nil {
			return fmt.Errorf("%w: account=%s: %w", ErrPersist, to.Hex(), err)
		}
	}
	l.balances[to] = bal

	logger.WithFields(logger.Fields{
		"account": to.Hex(),
		"amount":  amount,
		"balance": bal,
	}).Debug("ledger credit")
	return nil
}

func (l *Ledger) BalanceOf(account common.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.balanceOf(account))
}

// balanceOf must be called with mu held.
func (l *Ledger) balanceOf(account common.Address) *big.Int {
	bal, ok := l.balances[account]
	if !ok {
		return big.NewInt(0)
	}
	return bal
}
