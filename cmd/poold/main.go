// poold - Main entry point for a privacy pool node
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/ccoin/privacypool/groth16verify"
	"github.com/ccoin/privacypool/merkletree"
	"github.com/ccoin/privacypool/nullifier"
	"github.com/ccoin/privacypool/pool"
	"github.com/ccoin/privacypool/relayer"
	"github.com/ccoin/privacypool/storage"
)

const (
	version = "0.1.0"
	banner  = `
  _ __  ___   ___ | | __| |
 | '_ \/ _ \ / _ \| |/ _' |
 | |_) | (_) | (_) | | (_| |
 | .__/ \___/ \___/|_|\__,_|
 |_|
  poold v%s
  Privacy Pool Daemon
`
)

// Config holds node configuration, generalizing cmd/ccoind's Config from
// a block-DAG node to a single pool.
type Config struct {
	PoolID string

	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string

	ListenAddr     string
	BootstrapPeers string
	MaxPeers       int
	EnableMDNS     bool

	MaxDepositAmount uint64

	LogLevel string
}

func main() {
	cfg := parseFlags()
	fmt.Printf(banner, version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nShutting down...")
		cancel()
	}()

	if err := run(ctx, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() *Config {
	cfg := &Config{}

	flag.StringVar(&cfg.PoolID, "pool", "default", "pool identifier")

	flag.StringVar(&cfg.DBHost, "db-host", "localhost", "PostgreSQL host")
	flag.IntVar(&cfg.DBPort, "db-port", 5432, "PostgreSQL port")
	flag.StringVar(&cfg.DBUser, "db-user", "privacypool", "PostgreSQL user")
	flag.StringVar(&cfg.DBPassword, "db-password", "", "PostgreSQL password")
	flag.StringVar(&cfg.DBName, "db-name", "privacypool", "PostgreSQL database name")

	flag.StringVar(&cfg.ListenAddr, "listen", "/ip4/0.0.0.0/tcp/9100", "relayer P2P listen address")
	flag.StringVar(&cfg.BootstrapPeers, "bootstrap", "", "comma-separated relayer bootstrap peer multiaddrs")
	flag.IntVar(&cfg.MaxPeers, "max-peers", 50, "maximum relayer peer count")
	flag.BoolVar(&cfg.EnableMDNS, "mdns", true, "enable mDNS local peer discovery")

	flag.Uint64Var(&cfg.MaxDepositAmount, "max-deposit", 1_000_000_000, "maximum single deposit amount for a new pool")

	flag.StringVar(&cfg.LogLevel, "log-level", "info", "log level (debug, info, warn, error)")

	flag.Parse()
	return cfg
}

func run(ctx context.Context, cfg *Config) error {
	log := newLogger(cfg.LogLevel)
	log.Info("connecting to database")

	dbConfig := &storage.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		Database: cfg.DBName,
		SSLMode:  "disable",
		MaxConns: 20,
	}
	store, err := storage.NewPostgresStore(ctx, dbConfig)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer store.Close()
	log.Info("database connected")

	tree, err := merkletree.New(ctx, cfg.PoolID, store.Trees())
	if err != nil {
		return fmt.Errorf("load tree: %w", err)
	}
	if _, ok, err := store.Configs().Load(ctx, cfg.PoolID); err != nil {
		return fmt.Errorf("load config: %w", err)
	} else if !ok {
		log.WithField("pool_id", cfg.PoolID).Info("pool not yet initialized, run poolctl init first")
	}
	log.WithFields(logrus.Fields{
		"pool_id":    cfg.PoolID,
		"next_index": tree.NextIndex(),
	}).Info("tree loaded")

	nullregs := nullifier.New(store)
	verifier := groth16verify.New(groth16verify.DefaultVerifyingKey())
	exec := pool.NewExecutor(cfg.PoolID, tree, nullregs, verifier, store, store.Configs())

	relayCfg := relayer.DefaultConfig()
	relayCfg.ListenAddrs = []string{cfg.ListenAddr}
	relayCfg.BootstrapPeers = splitNonEmpty(cfg.BootstrapPeers)
	relayCfg.MaxPeers = cfg.MaxPeers
	relayCfg.EnableMDNS = cfg.EnableMDNS

	node, err := relayer.NewNode(ctx, relayCfg, log.WithField("component", "relayer"))
	if err != nil {
		return fmt.Errorf("start relayer: %w", err)
	}
	defer node.Close()

	node.SetSubmitHandler(func(ctx context.Context, ix pool.Instruction) error {
		receipt, err := exec.Dispatch(ctx, ix)
		if err != nil {
			log.WithError(err).Warn("rejected gossiped instruction")
			return nil
		}
		log.WithFields(logrus.Fields{
			"pool_id":    cfg.PoolID,
			"leaf_index": receipt.Event.LeafIndex,
		}).Info("transact accepted via gossip")
		return node.BroadcastAccepted(receipt)
	})
	node.Start()

	log.WithFields(logrus.Fields{
		"peer_id": node.ID().String(),
		"pool_id": cfg.PoolID,
	}).Info("privacy pool node started")
	fmt.Println("Press Ctrl+C to stop.")

	<-ctx.Done()
	log.Info("node stopped")
	return nil
}

func newLogger(level string) *logrus.Entry {
	logger := logrus.New()
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logger.SetLevel(parsed)
	return logrus.NewEntry(logger)
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
