// Command mstoned runs the consensus DAG engine as a standalone process:
// parse config, open the store, start the three worker pools, wire the
// DAG Manager, and block until an interrupt signal drains everything in
// order (spec.md §5 "Shutdown").
package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/mstonedag/node/config"
	"github.com/mstonedag/node/dag"
	"github.com/mstonedag/node/dagconfig"
	"github.com/mstonedag/node/logger"
	"github.com/mstonedag/node/store"
	"github.com/mstonedag/node/util/daghash"
	"github.com/mstonedag/node/util/panics"
)

var log, _ = logger.Get(logger.SubsystemTags.NODE)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return err
	}

	defer panics.HandlePanic(log, nil)

	level, _ := logger.LevelFromString(cfg.LogLevel)
	log.SetLevel(level)

	backend := logger.SharedBackend()
	logFile := filepath.Join(cfg.LogDir, "mstoned.log")
	if err := backend.AddLogFile(logFile, level); err != nil {
		return err
	}
	if err := backend.Run(); err != nil {
		return err
	}
	defer backend.Close()

	st, err := store.Open(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	workers := dag.NewWorkers()
	manager := dag.NewManager(st, dagconfig.MainnetParams.GenesisBlock, cfg.Params(), workers)

	manager.Listeners().OnLvsConfirmed(func(vertices []*dag.Vertex, created, removed []dag.Outpoint, regCommitment daghash.Hash) {
		log.Infof("flushed milestone level-set: %d vertices, %d utxos created, %d removed, regChange=%s",
			len(vertices), len(created), len(removed), regCommitment)
	})
	manager.Listeners().OnChainUpdated(func(block *dag.Block, isMain bool) {
		log.Infof("chain updated: %s (main=%v)", block.Hash(), isMain)
	})

	log.Infof("mstoned starting, datadir=%s", cfg.DataDir)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	<-interrupt

	log.Infof("shutting down")
	shutdown(workers)
	return nil
}

// shutdown drains and stops the three worker pools in sync, verify,
// storage order (spec.md §5): storage last, since a flush in flight may
// still have a pending verify -> storage -> verify handoff to complete.
func shutdown(workers *dag.Workers) {
	workers.Wait()
	workers.Stop()
}
