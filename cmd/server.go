// Server = store + verifiers + db + http reporter.
// All components are configured via environment variables (strings!).

package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	logger "github.com/sirupsen/logrus"

	"github.com/premier-io/drops-go/drop"
	"github.com/premier-io/drops-go/logconfig"
	"github.com/premier-io/drops-go/reporter"
	"github.com/premier-io/drops-go/statedb"
	"github.com/premier-io/drops-go/store"
)

// Default params for server.
// More often we don't recommend users to tweak those.
// So we list them here.
const (
	frequencyToCollectBadgerGarbage = 5 * time.Minute
	timeoutOnHttpShutdown           = 5 * time.Second

	// publisher-observer config
	CHANNEL_BUFFER_SIZE = 10
)

// Keep the configuration's fields as "text" as possible.
// Its easier to load it from env vars or a config file.
type ServerConfig struct {
	// state side
	DbEngine   string // sqlite or badger
	DbFilePath string // db file (sqlite) or directory (badger)
	StoreOwner string // owner of a newly created store, ignored once the store exists

	// eth side
	EthRpcUrl    string // json rpc url, empty to run on an in-process token ledger
	EthPayerPriv string // private key of the account paying out withdrawals

	// verifier side
	VerifierCacheSize int           // erc165 probe cache entries, 0 for default
	CallTimeout       time.Duration // bound on verifier queries and payouts, 0 for default

	// Http side
	HttpIp   string // eg. 0.0.0.0
	HttpPort string // eg. 8080

	LogLevel string // debug, info, production or a logrus level
}

// DropServer holds the objects that consists of the drop server.
// MyStore is the store as loaded at startup; the http reporter reads the
// database, which dropctl writes to.
type DropServer struct {
	MyDatabase  Database
	MyChain     *Chain
	MyStore     *store.Store
	MyPublisher *drop.Publisher
	MyReporter  *reporter.HttpReporter

	listener net.Listener
}

// Addr is the address the http reporter listens on.
func (ds *DropServer) Addr() string {
	return ds.listener.Addr().String()
}

// NewDropServer creates a new drop server.
// ctx is used for parental context to cancel the operation of drop server.
// wg is used to wait for all the goroutines inside the server (reporter, observer, db gc) to finish.
func NewDropServer(dsc *ServerConfig, ctx context.Context, wg *sync.WaitGroup) (*DropServer, error) {
	if err := logconfig.ConfigLogger(dsc.LogLevel); err != nil {
		return nil, err
	}

	// 1) Open the database.
	db, err := OpenDatabase(dsc.DbEngine, dsc.DbFilePath)
	if err != nil {
		logger.WithField("err", err).Error("failed to open database")
		return nil, err
	}

	// 2) Token side: verifiers and payouts.
	chain, err := SetupChain(db, dsc.EthRpcUrl, dsc.EthPayerPriv, dsc.VerifierCacheSize)
	if err != nil {
		db.Close()
		logger.WithField("err", err).Error("failed to set up chain")
		return nil, err
	}

	// 3) Store, loaded from the database or created.
	publisher := drop.NewPublisher()
	myStore, err := OpenStore(db, chain, dsc.StoreOwner, publisher, dsc.CallTimeout)
	if err != nil {
		db.Close()
		logger.WithField("err", err).Error("failed to open store")
		return nil, err
	}

	// 4) Event observer.
	events := make(chan drop.Event, CHANNEL_BUFFER_SIZE)
	publisher.Register(events)
	wg.Add(1)
	go func() {
		defer wg.Done()
		observeEvents(ctx, events)
	}()

	// 5) Badger value log collection.
	if bdb, ok := db.(*statedb.BadgerDB); ok {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bdb.RunGC(ctx, frequencyToCollectBadgerGarbage)
		}()
	}

	// *** Setup a http server to report status ***
	// Reads go to the database so writes by dropctl show up.
	myReporter := reporter.NewHttpReporter(dsc.HttpIp, dsc.HttpPort, store.NewReader(db))
	listener, err := net.Listen("tcp", net.JoinHostPort(dsc.HttpIp, dsc.HttpPort))
	if err != nil {
		db.Close()
		return nil, err
	}
	httpServer := myReporter.Server()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithField("err", err).Error("http reporter stopped")
		}
	}()

	// Shut everything down once ctx is cancelled.
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeoutOnHttpShutdown)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.WithField("err", err).Error("failed to shut down http reporter")
		}
		if err := db.Close(); err != nil {
			logger.WithField("err", err).Error("failed to close database")
		}
	}()

	logger.WithFields(logger.Fields{
		"owner":   myStore.Owner().Hex(),
		"address": myStore.Address().Hex(),
		"drops":   myStore.DropSupply(),
		"http":    listener.Addr().String(),
	}).Info("drop server started")

	return &DropServer{
		MyDatabase:  db,
		MyChain:     chain,
		MyStore:     myStore,
		MyPublisher: publisher,
		MyReporter:  myReporter,
		listener:    listener,
	}, nil
}

func observeEvents(ctx context.Context, events chan drop.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			logger.WithFields(logger.Fields{
				"kind":   ev.Kind,
				"dropId": ev.DropId,
				"dripId": ev.DripId,
				"amount": ev.Amount,
			}).Info("store event")
		}
	}
}

// Create, then start the drop server and wait.
// It contains a prepared drop server and context + waitgroup.
// Press Ctrl-C to kill the server.
func StartDropServerAndWait(dsc *ServerConfig) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up a signal channel to listen for Ctrl-C (SIGINT) or SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		fmt.Printf("Received signal: %v, cancelling context...\n", sig)
		cancel()
	}()

	var wg sync.WaitGroup

	_, err := NewDropServer(dsc, ctx, &wg)
	if err != nil {
		logger.Fatalf("failed to create drop server: %v", err)
		return
	}

	// wait for all routines to finish
	wg.Wait()
}
