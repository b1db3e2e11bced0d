// Package processor implements the Block Processor: the orchestrator that
// drives a moving window of blocks through fetch -> classify -> materialize
// -> checkpoint with bounded fetch concurrency and strictly serial,
// in-order application.
package processor

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"ethscriptions-indexer/internal/chaintypes"
	"ethscriptions-indexer/internal/classify"
	"ethscriptions-indexer/internal/protocol"
	"ethscriptions-indexer/internal/rpcpool"
	"ethscriptions-indexer/internal/store"
)

const indexerName = "ethscriptions-indexer"

// Config controls batch shape and pacing.
type Config struct {
	BatchSize    int
	Concurrency  int
	StartBlock   *uint64
	PollInterval time.Duration
	Logger       *log.Logger
}

// Processor ties the RPC Pool, Classifier, State Materializer, and Protocol
// Handler into the fetch/apply/checkpoint batch loop.
type Processor struct {
	pool   *rpcpool.Pool
	st     *store.Store
	cfg    Config
	logger *log.Logger
}

// New builds a Processor. Zero-valued Config fields fall back to
// conservative defaults.
func New(pool *rpcpool.Pool, st *store.Store, cfg Config) *Processor {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(log.Writer(), "processor: ", log.LstdFlags)
	}
	return &Processor{pool: pool, st: st, cfg: cfg, logger: cfg.Logger}
}

// Run drives the IDLE -> FETCH_HEAD -> CHOOSE_BATCH -> FETCH_BLOCKS -> APPLY
// -> CHECKPOINT loop until ctx is canceled.
func (p *Processor) Run(ctx context.Context) error {
	next, err := p.startingBlock(ctx)
	if err != nil {
		return err
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		head, err := p.pool.GetHead(ctx)
		if err != nil {
			p.logger.Printf("fetch head failed: %v", err)
			if !sleepCtx(ctx, p.cfg.PollInterval) {
				return ctx.Err()
			}
			continue
		}

		if head < next {
			if !sleepCtx(ctx, p.cfg.PollInterval) {
				return ctx.Err()
			}
			continue
		}

		end := next + uint64(p.cfg.BatchSize) - 1
		if end > head {
			end = head
		}

		advanced, err := p.runBatch(ctx, next, end)
		if err != nil {
			p.logger.Printf("batch [%d,%d] aborted, not checkpointed: %v", next, end, err)
			if !sleepCtx(ctx, p.cfg.PollInterval) {
				return ctx.Err()
			}
			continue
		}
		next = advanced + 1

		if end == head {
			if !sleepCtx(ctx, p.cfg.PollInterval) {
				return ctx.Err()
			}
		}
	}
}

func (p *Processor) startingBlock(ctx context.Context) (uint64, error) {
	if p.cfg.StartBlock != nil {
		return *p.cfg.StartBlock, nil
	}
	last, ok, err := p.st.LoadCheckpoint(ctx, indexerName)
	if err != nil {
		return 0, fmt.Errorf("processor: load checkpoint: %w", err)
	}
	if !ok {
		return 0, nil
	}
	return last + 1, nil
}

// runBatch fetches [from,to] with bounded concurrency, applies whatever
// contiguous prefix fetched successfully in strict order, and checkpoints
// only that prefix. It returns the highest block number actually applied.
func (p *Processor) runBatch(ctx context.Context, from, to uint64) (uint64, error) {
	results := p.fetchBatch(ctx, from, to)

	lastApplied, err := p.applyResults(ctx, from, results)
	if err != nil {
		return lastApplied, err
	}

	if err := p.st.SaveCheckpoint(ctx, indexerName, lastApplied, time.Now()); err != nil {
		return lastApplied, fmt.Errorf("save checkpoint: %w", err)
	}
	return lastApplied, nil
}

// applyResults applies the contiguous prefix of results that fetched
// successfully, in strict block order, stopping at the first fetch failure
// (the rest of the batch is left for a later run). It never
// advances past a block whose fetch failed.
func (p *Processor) applyResults(ctx context.Context, from uint64, results []fetchResult) (uint64, error) {
	lastApplied := from - 1
	applied := false
	for i, r := range results {
		blockNum := from + uint64(i)
		if r.err != nil {
			p.logger.Printf("block %d: fetch failed after endpoint exhaustion, stopping batch: %v", blockNum, r.err)
			break
		}
		if err := p.applyBlock(ctx, r.block, r.logs); err != nil {
			return lastApplied, fmt.Errorf("apply block %d: %w", blockNum, err)
		}
		lastApplied = blockNum
		applied = true
	}

	if !applied {
		return from - 1, fmt.Errorf("no block in batch starting at %d could be fetched", from)
	}
	return lastApplied, nil
}

type fetchResult struct {
	block *chaintypes.Block
	logs  []chaintypes.Log
	err   error
}

// fetchBatch fetches every block/logs pair in [from,to] concurrently, bounded
// by cfg.Concurrency. Individual fetch failures are recorded per-slot, not
// propagated — runBatch decides where the applicable contiguous prefix ends.
func (p *Processor) fetchBatch(ctx context.Context, from, to uint64) []fetchResult {
	n := int(to-from) + 1
	results := make([]fetchResult, n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)

	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			blockNum := from + uint64(i)
			blk, err := p.pool.GetBlock(gctx, blockNum)
			if err != nil {
				results[i] = fetchResult{err: err}
				return nil
			}
			logs, err := p.pool.GetLogs(gctx, blockNum, classify.Topics)
			if err != nil {
				results[i] = fetchResult{err: err}
				return nil
			}
			results[i] = fetchResult{block: blk, logs: logs}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// applyBlock applies every transaction intent in block order, then every log
// intent in log order: transactions always settle before same-block logs.
func (p *Processor) applyBlock(ctx context.Context, blk *chaintypes.Block, logs []chaintypes.Log) error {
	for _, tx := range blk.Transactions {
		for _, in := range classify.Transaction(tx) {
			if err := p.applyIntent(ctx, in, blk); err != nil {
				return err
			}
		}
	}
	for _, lg := range logs {
		in := classify.Log(lg)
		if in == nil {
			continue
		}
		if err := p.applyIntent(ctx, *in, blk); err != nil {
			return err
		}
	}
	return nil
}

func (p *Processor) applyIntent(ctx context.Context, in classify.Intent, blk *chaintypes.Block) error {
	switch in.Kind {
	case classify.KindCreate, classify.KindCreateContract:
		return p.applyCreate(ctx, in, blk)
	case classify.KindTransferEOA, classify.KindTransferContract:
		return p.applyTransfer(ctx, in, blk)
	default:
		return nil
	}
}

func (p *Processor) applyCreate(ctx context.Context, in classify.Intent, blk *chaintypes.Block) error {
	creator := strings.ToLower(in.Creator.Hex())
	owner := strings.ToLower(in.InitialOwner.Hex())
	var creatorContract *string
	if in.CreatorContract != nil {
		v := strings.ToLower(in.CreatorContract.Hex())
		creatorContract = &v
	}

	res, err := p.st.ApplyCreate(ctx, store.CreateInput{
		ContentHash:       in.ContentHash,
		ContentType:       in.ContentType,
		Creator:           creator,
		InitialOwner:      owner,
		ESIP6:             in.ESIP6,
		CreatedByContract: in.Kind == classify.KindCreateContract,
		CreatorContract:   creatorContract,
		CreationTx:        in.TxHash.Hex(),
		CreationBlock:     blk.Number,
		CreationTimestamp: blk.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("materialize create: %w", err)
	}
	if !res.IsNew {
		return nil
	}

	protocol.Handle(ctx, p.st, p.logger, protocol.Context{
		Creator:       creator,
		InscriptionID: res.ID,
		ContentType:   in.ContentType,
		Body:          in.Body,
		BodyIsBase64:  in.BodyIsBase64,
	})
	return nil
}

func (p *Processor) applyTransfer(ctx context.Context, in classify.Intent, blk *chaintypes.Block) error {
	var expected *string
	if in.ExpectedFrom != nil {
		v := strings.ToLower(in.ExpectedFrom.Hex())
		expected = &v
	}
	var contractAddr *string
	if in.ContractAddress != nil {
		v := strings.ToLower(in.ContractAddress.Hex())
		contractAddr = &v
	}
	var logIdx *uint
	if in.LogIndex != nil {
		v := *in.LogIndex
		logIdx = &v
	}

	_, err := p.st.ApplyTransfer(ctx, store.TransferInput{
		InscriptionID:   in.InscriptionID,
		To:              strings.ToLower(in.To.Hex()),
		ExpectedFrom:    expected,
		TxHash:          in.TxHash.Hex(),
		BlockNumber:     blk.Number,
		Timestamp:       blk.Timestamp,
		LogIndex:        logIdx,
		ContractAddress: contractAddr,
		TransferType:    string(in.TransferType),
	})
	if err != nil {
		return fmt.Errorf("materialize transfer: %w", err)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
