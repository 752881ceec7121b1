// dropctl operates a drop store kept in a local database.
//
// Usage:
//
//	dropctl --db <path> [--db-engine sqlite|badger] [--rpc <url>] <command> [flags]
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/premier-io/drops-go/cmd"
	"github.com/premier-io/drops-go/common"
	"github.com/premier-io/drops-go/logconfig"
	"github.com/premier-io/drops-go/store"
	logger "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var (
	dbEngineFlag = &cli.StringFlag{
		Name:    "db-engine",
		Usage:   "database engine, sqlite or badger",
		Value:   cmd.DB_ENGINE_SQLITE,
		EnvVars: []string{"DB_ENGINE"},
	}
	dbFlag = &cli.StringFlag{
		Name:     "db",
		Usage:    "database file (sqlite) or directory (badger)",
		EnvVars:  []string{"DB_FILE_PATH"},
		Required: true,
	}
	rpcFlag = &cli.StringFlag{
		Name:    "rpc",
		Usage:   "Ethereum JSON-RPC endpoint used to verify token ownership",
		EnvVars: []string{"ETH_RPC_URL"},
	}
	payerFlag = &cli.StringFlag{
		Name:    "payer-key",
		Usage:   "private key of the account paying out withdrawals",
		EnvVars: []string{"ETH_PAYER_PRIV"},
	}
	ownerFlag = &cli.StringFlag{
		Name:    "owner",
		Usage:   "owner of the store, used when the database holds none",
		EnvVars: []string{"STORE_OWNER"},
	}
	logLevelFlag = &cli.StringFlag{
		Name:  "log-level",
		Usage: "debug, info, production or a logrus level",
		Value: "warn",
	}

	callerFlag = &cli.StringFlag{
		Name:     "caller",
		Usage:    "account the operation is performed as",
		Required: true,
	}
	dropFlag = &cli.Uint64Flag{
		Name:     "drop",
		Usage:    "drop id",
		Required: true,
	}
	dripFlag = &cli.Uint64Flag{
		Name:     "drip",
		Usage:    "drip id",
		Required: true,
	}
)

// chainFunc sets up the token side of a store opened on db.
type chainFunc func(c *cli.Context, db cmd.Database) (*cmd.Chain, error)

func setupChain(c *cli.Context, db cmd.Database) (*cmd.Chain, error) {
	return cmd.SetupChain(db, c.String(rpcFlag.Name), c.String(payerFlag.Name), 0)
}

type dropctl struct {
	setupChain chainFunc
}

func main() {
	app := newApp(setupChain)
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp(chain chainFunc) *cli.App {
	ctl := &dropctl{setupChain: chain}
	return &cli.App{
		Name:  "dropctl",
		Usage: "operate a drop store",
		Flags: []cli.Flag{dbEngineFlag, dbFlag, rpcFlag, payerFlag, ownerFlag, logLevelFlag},
		Before: func(c *cli.Context) error {
			return logconfig.ConfigLogger(c.String(logLevelFlag.Name))
		},
		Commands: []*cli.Command{
			{
				Name:  "create-drop",
				Usage: "create a new drop",
				Flags: []cli.Flag{
					callerFlag,
					&cli.Uint64Flag{Name: "max-supply", Required: true},
					&cli.StringFlag{Name: "price", Usage: "price in wei", Value: "0"},
					&cli.Uint64Flag{Name: "versions", Value: 1},
				},
				Action: ctl.createDrop,
			},
			{
				Name:  "mint",
				Usage: "mint a drip to the caller",
				Flags: []cli.Flag{
					callerFlag,
					dropFlag,
					&cli.Uint64Flag{Name: "version"},
					&cli.StringFlag{Name: "payment", Usage: "payment in wei", Value: "0"},
				},
				Action: ctl.mint,
			},
			{
				Name:  "mutate",
				Usage: "bind a drip to a token the caller owns",
				Flags: []cli.Flag{
					callerFlag,
					dropFlag,
					dripFlag,
					&cli.StringFlag{Name: "token-contract", Required: true},
					&cli.StringFlag{Name: "token-id", Required: true},
				},
				Action: ctl.mutate,
			},
			{
				Name:   "withdraw",
				Usage:  "pay the balance of a drop out to the store owner",
				Flags:  []cli.Flag{callerFlag, dropFlag},
				Action: ctl.withdraw,
			},
			{
				Name:  "set-uri",
				Usage: "set the drop, contract or base URI of a drop",
				Flags: []cli.Flag{
					callerFlag,
					dropFlag,
					&cli.StringFlag{Name: "kind", Usage: "drop, contract or base", Required: true},
					&cli.StringFlag{Name: "uri", Required: true},
				},
				Action: ctl.setURI,
			},
			{
				Name:  "set-interface",
				Usage: "register the verifier of a token contract",
				Flags: []cli.Flag{
					callerFlag,
					dropFlag,
					&cli.StringFlag{Name: "token-contract", Required: true},
					&cli.StringFlag{Name: "verifier", Usage: "verifier id, zero address to remove", Required: true},
				},
				Action: ctl.setInterface,
			},
			{
				Name:  "transfer-drip",
				Usage: "transfer a drip to another account",
				Flags: []cli.Flag{
					callerFlag,
					dropFlag,
					dripFlag,
					&cli.StringFlag{Name: "to", Required: true},
				},
				Action: ctl.transferDrip,
			},
			{
				Name:  "transfer-ownership",
				Usage: "hand the store over to another owner",
				Flags: []cli.Flag{
					callerFlag,
					&cli.StringFlag{Name: "to", Required: true},
				},
				Action: ctl.transferOwnership,
			},
			{
				Name:  "info",
				Usage: "print a drop, a drip or every drop",
				Flags: []cli.Flag{
					&cli.Uint64Flag{Name: "drop"},
					&cli.Uint64Flag{Name: "drip"},
				},
				Action: ctl.info,
			},
			{
				Name:  "balance",
				Usage: "print what an account has been paid out",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "account", Required: true},
				},
				Action: ctl.balance,
			},
		},
	}
}

// withStore opens the store of the global flags, runs fn and closes it.
func (ctl *dropctl) withStore(c *cli.Context, fn func(st *store.Store, chain *cmd.Chain) error) error {
	db, err := cmd.OpenDatabase(c.String(dbEngineFlag.Name), c.String(dbFlag.Name))
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.WithField("err", err).Error("failed to close database")
		}
	}()

	chain, err := ctl.setupChain(c, db)
	if err != nil {
		return err
	}

	st, err := cmd.OpenStore(db, chain, c.String(ownerFlag.Name), nil, 0)
	if err != nil {
		return err
	}
	return fn(st, chain)
}

func addressFlag(c *cli.Context, name string) (common.Address, error) {
	addr, err := common.ParseAddress(c.String(name))
	if err != nil {
		return common.Address{}, fmt.Errorf("--%s: %w", name, err)
	}
	return addr, nil
}

func printJSON(c *cli.Context, v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, string(out))
	return nil
}

func (ctl *dropctl) createDrop(c *cli.Context) error {
	caller, err := addressFlag(c, "caller")
	if err != nil {
		return err
	}
	price, err := common.ParseAmount(c.String("price"))
	if err != nil {
		return fmt.Errorf("--price: %w", err)
	}

	return ctl.withStore(c, func(st *store.Store, _ *cmd.Chain) error {
		id, err := st.CreateDrop(c.Uint64("max-supply"), price, c.Uint64("versions"), caller)
		if err != nil {
			return err
		}
		return printJSON(c, map[string]uint64{"dropId": id})
	})
}

func (ctl *dropctl) mint(c *cli.Context) error {
	caller, err := addressFlag(c, "caller")
	if err != nil {
		return err
	}
	payment, err := common.ParseAmount(c.String("payment"))
	if err != nil {
		return fmt.Errorf("--payment: %w", err)
	}

	return ctl.withStore(c, func(st *store.Store, _ *cmd.Chain) error {
		dripId, err := st.Mint(c.Uint64("drop"), c.Uint64("version"), payment, caller)
		if err != nil {
			return err
		}
		return printJSON(c, map[string]uint64{"dripId": dripId})
	})
}

func (ctl *dropctl) mutate(c *cli.Context) error {
	caller, err := addressFlag(c, "caller")
	if err != nil {
		return err
	}
	tokenContract, err := addressFlag(c, "token-contract")
	if err != nil {
		return err
	}
	tokenId, err := common.ParseAmount(c.String("token-id"))
	if err != nil {
		return fmt.Errorf("--token-id: %w", err)
	}

	return ctl.withStore(c, func(st *store.Store, _ *cmd.Chain) error {
		dropId, dripId := c.Uint64("drop"), c.Uint64("drip")
		if err := st.Mutate(context.Background(), dropId, dripId, tokenContract, tokenId, caller); err != nil {
			return err
		}
		info, err := st.DripInfo(dropId, dripId)
		if err != nil {
			return err
		}
		return printJSON(c, info)
	})
}

func (ctl *dropctl) withdraw(c *cli.Context) error {
	caller, err := addressFlag(c, "caller")
	if err != nil {
		return err
	}

	return ctl.withStore(c, func(st *store.Store, _ *cmd.Chain) error {
		amount, err := st.Withdraw(context.Background(), c.Uint64("drop"), caller)
		if err != nil {
			return err
		}
		return printJSON(c, map[string]string{
			"amount": amount.String(),
			"to":     st.Owner().Hex(),
		})
	})
}

func (ctl *dropctl) setURI(c *cli.Context) error {
	caller, err := addressFlag(c, "caller")
	if err != nil {
		return err
	}

	return ctl.withStore(c, func(st *store.Store, _ *cmd.Chain) error {
		dropId, uri := c.Uint64("drop"), c.String("uri")
		switch kind := c.String("kind"); kind {
		case "drop":
			err = st.SetDropURI(dropId, uri, caller)
		case "contract":
			err = st.SetContractURI(dropId, uri, caller)
		case "base":
			err = st.SetBaseURI(dropId, uri, caller)
		default:
			return fmt.Errorf("--kind: unknown uri kind %q", kind)
		}
		if err != nil {
			return err
		}
		dropInfo, err := st.DropInfo(dropId)
		if err != nil {
			return err
		}
		return printJSON(c, dropInfo)
	})
}

func (ctl *dropctl) setInterface(c *cli.Context) error {
	caller, err := addressFlag(c, "caller")
	if err != nil {
		return err
	}
	tokenContract, err := addressFlag(c, "token-contract")
	if err != nil {
		return err
	}
	verifierId, err := addressFlag(c, "verifier")
	if err != nil {
		return err
	}

	return ctl.withStore(c, func(st *store.Store, _ *cmd.Chain) error {
		return st.SetTokenContractInterface(c.Uint64("drop"), tokenContract, verifierId, caller)
	})
}

func (ctl *dropctl) transferDrip(c *cli.Context) error {
	caller, err := addressFlag(c, "caller")
	if err != nil {
		return err
	}
	to, err := addressFlag(c, "to")
	if err != nil {
		return err
	}

	return ctl.withStore(c, func(st *store.Store, _ *cmd.Chain) error {
		return st.TransferDrip(c.Uint64("drop"), c.Uint64("drip"), to, caller)
	})
}

func (ctl *dropctl) transferOwnership(c *cli.Context) error {
	caller, err := addressFlag(c, "caller")
	if err != nil {
		return err
	}
	to, err := addressFlag(c, "to")
	if err != nil {
		return err
	}

	return ctl.withStore(c, func(st *store.Store, _ *cmd.Chain) error {
		return st.TransferOwnership(to, caller)
	})
}

func (ctl *dropctl) info(c *cli.Context) error {
	return ctl.withStore(c, func(st *store.Store, _ *cmd.Chain) error {
		if !c.IsSet("drop") {
			return printJSON(c, st.Drops())
		}
		dropId := c.Uint64("drop")
		if c.IsSet("drip") {
			dripInfo, err := st.DripInfo(dropId, c.Uint64("drip"))
			if err != nil {
				return err
			}
			return printJSON(c, dripInfo)
		}
		dropInfo, err := st.DropInfo(dropId)
		if err != nil {
			return err
		}
		return printJSON(c, dropInfo)
	})
}

func (ctl *dropctl) balance(c *cli.Context) error {
	account, err := addressFlag(c, "account")
	if err != nil {
		return err
	}

	return ctl.withStore(c, func(_ *store.Store, chain *cmd.Chain) error {
		amount, err := chain.BalanceOf(c.Context, account)
		if err != nil {
			return err
		}
		return printJSON(c, map[string]string{
			"account": account.Hex(),
			"balance": amount.String(),
		})
	})
}
