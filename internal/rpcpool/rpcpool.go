// Package rpcpool implements the RPC Pool: a round-robin set of JSON-RPC
// endpoints with failover on rate-limiting and transport errors. It is built
// directly on go-ethereum's ethclient, the same dependency every geth-edu
// module dials against (see geth-02-rpc-basics, geth-24-monitor).
package rpcpool

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"ethscriptions-indexer/internal/chaintypes"
)

// ErrEndpointsExhausted is returned once every configured endpoint has
// failed for a single logical call.
var ErrEndpointsExhausted = errors.New("rpcpool: all endpoints exhausted")

// ErrNoEndpoints is returned by New when called with an empty URL list.
var ErrNoEndpoints = errors.New("rpcpool: no endpoints configured")

const (
	defaultRetries     = 3
	defaultCallTimeout = 20 * time.Second
	backoffUnit        = 500 * time.Millisecond
)

// Pool is a round-robin pool of JSON-RPC endpoints bound to a single,
// configuration-supplied chain ID (static-network mode: no per-call chain-id
// probe, which would hang against a degraded endpoint).
type Pool struct {
	mu      sync.Mutex
	clients []*ethclient.Client
	idx     int
	chainID *big.Int
	signer  types.Signer
	retries int
	logger  *log.Logger
}

// Config controls retry/backoff behavior. A zero Retries falls back to 3.
// CallTimeout is not read: RPC calls run under the caller's context with no
// per-call deadline, and only dialing in New is bounded, by a fixed 20s.
type Config struct {
	Retries     int
	CallTimeout time.Duration
	Logger      *log.Logger
}

// New dials every URL in urls and returns a Pool bound to chainID. Dial
// failures for individual endpoints are logged and that endpoint is skipped;
// New fails only if no endpoint could be dialed at all.
func New(ctx context.Context, urls []string, chainID uint64, cfg Config) (*Pool, error) {
	if len(urls) == 0 {
		return nil, ErrNoEndpoints
	}
	if cfg.Retries <= 0 {
		cfg.Retries = defaultRetries
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(log.Writer(), "rpcpool: ", log.LstdFlags)
	}

	clients := make([]*ethclient.Client, 0, len(urls))
	for _, u := range urls {
		dialCtx, cancel := context.WithTimeout(ctx, defaultCallTimeout)
		c, err := ethclient.DialContext(dialCtx, u)
		cancel()
		if err != nil {
			cfg.Logger.Printf("dial %s: %v (skipping)", u, err)
			continue
		}
		clients = append(clients, c)
	}
	if len(clients) == 0 {
		return nil, fmt.Errorf("rpcpool: could not dial any of %d endpoints", len(urls))
	}

	return &Pool{
		clients: clients,
		chainID: new(big.Int).SetUint64(chainID),
		signer:  types.LatestSignerForChainID(new(big.Int).SetUint64(chainID)),
		retries: cfg.Retries,
		logger:  cfg.Logger,
	}, nil
}

// Close releases every dialed client.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.clients {
		c.Close()
	}
}

// rotate advances the pool's current index by one, wrapping around, so
// successive rotate() calls cycle the pool.
func (p *Pool) rotate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.idx = (p.idx + 1) % len(p.clients)
}

func (p *Pool) clientAt(i int) *ethclient.Client {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clients[i%len(p.clients)]
}

func (p *Pool) startIdx() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.idx
}

// isRateLimited reports whether err represents an HTTP 429 or a JSON-RPC
// error carrying code 429.
func isRateLimited(err error) bool {
	if err == nil {
		return false
	}
	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == 429
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return rpcErr.ErrorCode() == 429
	}
	return false
}

// call drives a single logical operation across the whole pool: for each
// endpoint (starting from the current one), it retries up to p.retries times
// with linear backoff (500ms * attempt). A rate-limit response skips the
// remaining retries and rotates immediately. Once every endpoint has been
// tried, it returns ErrEndpointsExhausted.
func call[T any](ctx context.Context, p *Pool, fn func(context.Context, *ethclient.Client) (T, error)) (T, error) {
	var zero T
	numEndpoints := len(p.clients)
	start := p.startIdx()

	var lastErr error
	for offset := 0; offset < numEndpoints; offset++ {
		idx := (start + offset) % numEndpoints
		client := p.clientAt(idx)

		for attempt := 1; attempt <= p.retries; attempt++ {
			v, err := fn(ctx, client)
			if err == nil {
				return v, nil
			}
			lastErr = err

			if isRateLimited(err) {
				p.logger.Printf("endpoint %d rate-limited, rotating", idx)
				break
			}
			if attempt == p.retries {
				p.logger.Printf("endpoint %d exhausted retries: %v", idx, err)
				break
			}
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(time.Duration(attempt) * backoffUnit):
			}
		}
		p.rotate()
	}
	if lastErr != nil {
		return zero, fmt.Errorf("%w: last error: %v", ErrEndpointsExhausted, lastErr)
	}
	return zero, ErrEndpointsExhausted
}

// GetHead returns the current chain head (latest block number).
func (p *Pool) GetHead(ctx context.Context) (uint64, error) {
	return call(ctx, p, func(ctx context.Context, c *ethclient.Client) (uint64, error) {
		h, err := c.HeaderByNumber(ctx, nil)
		if err != nil {
			return 0, err
		}
		return h.Number.Uint64(), nil
	})
}

// GetBlock fetches block n with full transaction objects, recovering each
// transaction's sender via the chain's signer (the same approach used by
// every ethclient-based indexer in this family: the "from" address is not a
// JSON field on core/types.Transaction, it is recovered from the signature).
func (p *Pool) GetBlock(ctx context.Context, n uint64) (*chaintypes.Block, error) {
	return call(ctx, p, func(ctx context.Context, c *ethclient.Client) (*chaintypes.Block, error) {
		blk, err := c.BlockByNumber(ctx, new(big.Int).SetUint64(n))
		if err != nil {
			return nil, err
		}
		txs := blk.Transactions()
		out := &chaintypes.Block{
			Number:       blk.NumberU64(),
			Timestamp:    blk.Time(),
			Transactions: make([]chaintypes.Transaction, 0, len(txs)),
		}
		for _, tx := range txs {
			from, err := types.Sender(p.signer, tx)
			if err != nil {
				// Senders that cannot be recovered (malformed signature) are
				// dropped from classification; they can never be a valid
				// self-transfer or bulk-transfer sender anyway.
				continue
			}
			out.Transactions = append(out.Transactions, chaintypes.Transaction{
				From:  from,
				To:    tx.To(),
				Hash:  tx.Hash(),
				Input: tx.Data(),
			})
		}
		return out, nil
	})
}

// GetLogs fetches every log in [n, n] whose topic-0 is one of topics.
func (p *Pool) GetLogs(ctx context.Context, n uint64, topics []common.Hash) ([]chaintypes.Log, error) {
	return call(ctx, p, func(ctx context.Context, c *ethclient.Client) ([]chaintypes.Log, error) {
		q := ethereum.FilterQuery{
			FromBlock: new(big.Int).SetUint64(n),
			ToBlock:   new(big.Int).SetUint64(n),
			Topics:    [][]common.Hash{topics},
		}
		logs, err := c.FilterLogs(ctx, q)
		if err != nil {
			return nil, err
		}
		out := make([]chaintypes.Log, 0, len(logs))
		for _, lg := range logs {
			out = append(out, chaintypes.Log{
				Address:  lg.Address,
				Topics:   lg.Topics,
				Data:     lg.Data,
				TxHash:   lg.TxHash,
				LogIndex: lg.Index,
			})
		}
		return out, nil
	})
}
