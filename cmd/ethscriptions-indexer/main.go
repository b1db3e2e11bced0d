// Command ethscriptions-indexer runs the Block Processor loop: it dials a
// pool of JSON-RPC endpoints, classifies every transaction and log it sees,
// and materializes the result into a sqlite store.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"ethscriptions-indexer/internal/config"
	"ethscriptions-indexer/internal/processor"
	"ethscriptions-indexer/internal/rpcpool"
	"ethscriptions-indexer/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	rpcOverride := flag.String("rpc", "", "comma-separated override of rpc_urls")
	chainID := flag.Uint64("chain-id", 0, "override chain_id")
	batchSize := flag.Int("batch-size", 0, "override batch_size")
	concurrency := flag.Int("concurrency", 0, "override concurrency")
	startBlock := flag.Int64("start-block", -1, "override starting block (otherwise resumes from checkpoint)")
	storeURL := flag.String("store", "", "override store_url (sqlite DSN)")
	pollIntervalMS := flag.Int("poll-interval", 0, "override poll_interval_ms")
	status := flag.Bool("status", false, "print store stats and exit")
	flag.Parse()

	cfg := config.Defaults()
	cfg, err := config.LoadFile(cfg, *configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	cfg = config.LoadEnv(cfg)

	if *rpcOverride != "" {
		cfg.RPCURLs = strings.Split(*rpcOverride, ",")
	}
	if *chainID != 0 {
		cfg.ChainID = *chainID
	}
	if *batchSize != 0 {
		cfg.BatchSize = *batchSize
	}
	if *concurrency != 0 {
		cfg.Concurrency = *concurrency
	}
	if *startBlock >= 0 {
		v := uint64(*startBlock)
		cfg.StartBlock = &v
	}
	if *storeURL != "" {
		cfg.StoreURL = *storeURL
	}
	if *pollIntervalMS != 0 {
		cfg.PollIntervalMS = *pollIntervalMS
	}

	cfg, err = cfg.Finalize()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	st, err := store.Open(ctx, cfg.StoreURL, log.New(os.Stderr, "store: ", log.LstdFlags))
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer st.Close()

	if *status {
		printStatus(ctx, st)
		return
	}

	pool, err := rpcpool.New(ctx, cfg.RPCURLs, cfg.ChainID, rpcpool.Config{
		Logger: log.New(os.Stderr, "rpcpool: ", log.LstdFlags),
	})
	if err != nil {
		log.Fatalf("rpcpool: %v", err)
	}
	defer pool.Close()

	proc := processor.New(pool, st, processor.Config{
		BatchSize:    cfg.BatchSize,
		Concurrency:  cfg.Concurrency,
		StartBlock:   cfg.StartBlock,
		PollInterval: cfg.PollInterval,
		Logger:       log.New(os.Stderr, "processor: ", log.LstdFlags),
	})

	if err := proc.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("processor: %v", err)
	}
}

func printStatus(ctx context.Context, st *store.Store) {
	stats, err := st.LoadStats(ctx)
	if err != nil {
		log.Fatalf("stats: %v", err)
	}
	last, ok, err := st.LoadCheckpoint(ctx, "ethscriptions-indexer")
	if err != nil {
		log.Fatalf("checkpoint: %v", err)
	}
	ckpt := "none"
	if ok {
		ckpt = strconv.FormatUint(last, 10)
	}
	fmt.Printf("checkpoint=%s inscriptions=%d transfers=%d collections=%d tokens_fixed=%d tokens_bonding=%d\n",
		ckpt, stats.Inscriptions, stats.Transfers, stats.Collections, stats.TokensFixed, stats.TokensBonding)
}
