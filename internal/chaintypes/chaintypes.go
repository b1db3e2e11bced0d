// Package chaintypes holds the block/tx/log shapes the indexing pipeline
// consumes. Keeping them distinct from go-ethereum's own RPC types isolates
// the classifier and materializer from ethclient wire-format churn; the only
// place that translates between the two is internal/rpcpool.
package chaintypes

import "github.com/ethereum/go-ethereum/common"

// Transaction is the slice of an on-chain transaction the classifier needs.
type Transaction struct {
	From  common.Address
	To    *common.Address
	Hash  common.Hash
	Input []byte
}

// Log is the slice of an on-chain event log the classifier needs.
type Log struct {
	Address  common.Address
	Topics   []common.Hash
	Data     []byte
	TxHash   common.Hash
	LogIndex uint
}

// Block is a fetched block's header plus its transactions. Matching logs are
// fetched separately (RPC Pool's GetLogs) and carried alongside a Block
// rather than inside it, since log fetch and block fetch are independent
// RPC calls.
type Block struct {
	Number       uint64
	Timestamp    uint64
	Transactions []Transaction
}
