package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"os"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/premier-io/drops-go/common"
	"github.com/premier-io/drops-go/drop"
	"github.com/premier-io/drops-go/etherman"
	"github.com/premier-io/drops-go/funds"
	"github.com/premier-io/drops-go/statedb"
	"github.com/premier-io/drops-go/store"
	"github.com/premier-io/drops-go/verifier"
	logger "github.com/sirupsen/logrus"
)

const (
	DB_ENGINE_SQLITE = "sqlite"
	DB_ENGINE_BADGER = "badger"
)

var ErrUnknownDbEngine = errors.New("unknown database engine")

// fileExists checks if a file exists and is readable
func FileExists(filePath string) bool {
	file, err := os.Open(filePath)
	if err != nil {
		return false
	}
	defer file.Close()
	return true
}

// Database is a store database that also keeps ledger balances and can
// be closed.
type Database interface {
	store.Database
	funds.BalanceStore
	Close() error
}

type sqliteDatabase struct {
	*statedb.StateDB
	sqldb *sql.DB
}

func (d *sqliteDatabase) Close() error {
	if err := d.StateDB.Close(); err != nil {
		return err
	}
	return d.sqldb.Close()
}

// Shared Helper function. Open the database of the given engine at path.
func OpenDatabase(engine string, path string) (Database, error) {
	switch engine {
	case DB_ENGINE_SQLITE, "":
		sqldb, err := sql.Open("sqlite3", path)
		if err != nil {
			return nil, err
		}
		st, err := statedb.NewStateDB(sqldb)
		if err != nil {
			sqldb.Close()
			return nil, err
		}
		return &sqliteDatabase{StateDB: st, sqldb: sqldb}, nil
	case DB_ENGINE_BADGER:
		return statedb.OpenBadger(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDbEngine, engine)
	}
}

// Chain is everything the store needs from the token side: how token
// ownership is verified and how withdrawals are paid out.
type Chain struct {
	Resolver *verifier.Resolver
	Funds    drop.FundTransferrer

	// Set when connected to a node.
	Etherman *etherman.Etherman
	// Set when rpcUrl is empty.
	Tokens *verifier.MemoryTokens
	// Set when withdrawals are not paid on chain. Kept in db.
	Ledger *funds.Ledger
}

// Shared Helper function. Connect to the node at rpcUrl, or fall back to an
// in-process token ledger when rpcUrl is empty. Withdrawals are paid on
// chain when a payer key is given and booked in a ledger kept in db
// otherwise.
func SetupChain(db Database, rpcUrl string, payerKey string, cacheSize int) (*Chain, error) {
	if rpcUrl == "" {
		tokens := verifier.NewMemoryTokens()
		ledger, err := funds.LoadLedger(db)
		if err != nil {
			return nil, err
		}
		logger.Warn("no eth rpc configured, using in-process token ledger")
		return &Chain{
			Resolver: verifier.NewResolver(&verifier.ResolverConfig{
				Prober:         tokens,
				Standard:       tokens,
				ProbeCacheSize: cacheSize,
			}),
			Funds:  ledger,
			Tokens: tokens,
			Ledger: ledger,
		}, nil
	}

	em, err := etherman.NewEtherman(&etherman.Config{
		URL:      rpcUrl,
		PayerKey: payerKey,
	})
	if err != nil {
		return nil, err
	}

	caller := em.Caller()
	chain := &Chain{
		Resolver: verifier.NewResolver(&verifier.ResolverConfig{
			Prober:         verifier.NewERC165Prober(caller),
			Standard:       verifier.NewERC721Verifier(caller),
			Caller:         caller,
			ProbeCacheSize: cacheSize,
		}),
		Etherman: em,
	}

	if _, ok := em.Payer(); ok {
		chain.Funds = em
		return chain, nil
	}

	// withdrawals are booked locally until a payer key is configured
	logger.Warn("no payer key configured, withdrawals are booked in the database ledger")
	ledger, err := funds.LoadLedger(db)
	if err != nil {
		return nil, err
	}
	chain.Ledger = ledger
	chain.Funds = ledger
	return chain, nil
}

// BalanceOf is what account has been paid: its ledger balance when
// withdrawals are booked locally, its chain balance otherwise.
func (c *Chain) BalanceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	if c.Ledger != nil {
		return c.Ledger.BalanceOf(account), nil
	}
	return c.Etherman.BalanceAt(ctx, account)
}

// Shared Helper function. Load the store kept in db, or create it for
// owner if db holds none.
func OpenStore(db Database, chain *Chain, owner string, publisher *drop.Publisher, callTimeout time.Duration) (*store.Store, error) {
	cfg := &store.Config{
		Resolver:    chain.Resolver,
		Funds:       chain.Funds,
		DB:          db,
		Publisher:   publisher,
		CallTimeout: callTimeout,
	}

	st, err := store.Load(cfg)
	if err == nil {
		if owner != "" {
			if addr, perr := common.ParseAddress(owner); perr == nil && addr != st.Owner() {
				logger.WithFields(logger.Fields{
					"configured": addr.Hex(),
					"stored":     st.Owner().Hex(),
				}).Warn("configured store owner ignored, using the stored owner")
			}
		}
		return st, nil
	}
	if !errors.Is(err, store.ErrStoreNotFound) {
		return nil, err
	}

	ownerAddr, err := common.ParseAddress(owner)
	if err != nil {
		return nil, fmt.Errorf("store owner %q: %w", owner, err)
	}
	cfg.Owner = ownerAddr
	return store.New(cfg)
}
