package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"nftstake/config"
	"nftstake/core/events"
	"nftstake/core/runtime"
	"nftstake/core/state"
	"nftstake/crypto"
	"nftstake/indexer"
	"nftstake/native/staking"
	"nftstake/native/token"
	"nftstake/observability/logging"
	"nftstake/rpc"
	"nftstake/storage"
)

const (
	indexerBuffer = 4096
	metricsBuffer = 1024
)

// daemon owns every long-lived component of the staking node.
type daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	db      *storage.LevelDB
	ledger  *runtime.Ledger
	bus     *events.Bus
	indexer *indexer.Indexer
	sqlDB   *gorm.DB
	server  *rpc.Server
}

func newDaemon(cfg *config.Config, logger *slog.Logger) (*daemon, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("prepare data dir: %w", err)
	}
	db, err := storage.NewLevelDB(cfg.StatePath())
	if err != nil {
		return nil, fmt.Errorf("open state database: %w", err)
	}
	d := &daemon{cfg: cfg, logger: logger, db: db, bus: events.NewBus()}
	if err := d.init(); err != nil {
		d.close()
		return nil, err
	}
	return d, nil
}

func (d *daemon) init() error {
	store, err := state.NewStore(d.db)
	if err != nil {
		return fmt.Errorf("open account store: %w", err)
	}
	d.ledger = runtime.New(store)
	d.ledger.SetLogger(d.logger)
	d.ledger.SetEmitter(d.bus)
	for _, program := range []runtime.Program{token.New(), staking.New()} {
		if err := d.ledger.Register(program); err != nil {
			return err
		}
	}
	if err := d.applyGenesis(); err != nil {
		return err
	}

	var eventStore rpc.EventStore
	if d.cfg.Indexer.Driver != "" {
		dsn := d.cfg.IndexerDSN()
		gdb, err := indexer.Open(d.cfg.Indexer.Driver, dsn)
		if err != nil {
			return err
		}
		d.sqlDB = gdb
		d.indexer = indexer.New(gdb, d.logger)
		eventStore = d.indexer
		d.logger.Info("event indexer ready",
			slog.String("driver", d.cfg.Indexer.Driver),
			logging.MaskDSN("dsn", dsn))
	}

	d.server = rpc.NewServer(d.ledger, eventStore, d.bus, rpc.ServerConfig{
		RequestsPerSecond: d.cfg.RPC.RequestsPerSecond,
		Burst:             d.cfg.RPC.Burst,
		TrustProxyHeaders: d.cfg.RPC.TrustProxyHeaders,
		ReadHeaderTimeout: seconds(d.cfg.RPC.ReadHeaderTimeout),
		ReadTimeout:       seconds(d.cfg.RPC.ReadTimeout),
		WriteTimeout:      seconds(d.cfg.RPC.WriteTimeout),
		IdleTimeout:       seconds(d.cfg.RPC.IdleTimeout),
		EnableFaucet:      d.cfg.RPC.EnableFaucet,
		FaucetLamports:    d.cfg.RPC.FaucetLamports,
	}, d.logger)
	return nil
}

// applyGenesis funds the operator and configured accounts on an empty ledger.
func (d *daemon) applyGenesis() error {
	if d.ledger.Sequence() != 0 {
		return nil
	}
	operator, err := crypto.LoadKeypair(d.cfg.OperatorKeypairPath)
	if err != nil {
		return fmt.Errorf("load operator keypair: %w", err)
	}
	pub := operator.PublicKey()
	allocations, err := d.cfg.GenesisAllocations(&pub)
	if err != nil {
		return err
	}
	if err := d.ledger.Genesis(allocations); err != nil && !errors.Is(err, runtime.ErrGenesisApplied) {
		return fmt.Errorf("apply genesis: %w", err)
	}
	d.logger.Info("genesis applied", "accounts", len(allocations), "operator", pub.String())
	return nil
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// run serves RPC on listener and drives the event consumers until ctx is done.
func (d *daemon) run(ctx context.Context, listener net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	if d.indexer != nil {
		feed, cancel := d.bus.Subscribe("indexer", indexerBuffer)
		g.Go(func() error {
			defer cancel()
			return d.indexer.Run(gctx, feed)
		})
	}

	metricsFeed, cancelMetrics := d.bus.Subscribe("metrics", metricsBuffer)
	g.Go(func() error {
		defer cancelMetrics()
		for {
			select {
			case <-gctx.Done():
				return nil
			case evt, ok := <-metricsFeed:
				if !ok {
					return nil
				}
				staking.ObserveCommitted(evt)
			}
		}
	})

	g.Go(func() error {
		return d.server.Serve(gctx, listener)
	})
	return g.Wait()
}

func (d *daemon) close() {
	if d.sqlDB != nil {
		if sqlDB, err := d.sqlDB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if d.db != nil {
		d.db.Close()
	}
}
