package processor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"ethscriptions-indexer/internal/chaintypes"
	"ethscriptions-indexer/internal/classify"
	"ethscriptions-indexer/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	s, err := store.Open(context.Background(), dsn, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func testProcessor(st *store.Store) *Processor {
	return &Processor{st: st, cfg: Config{BatchSize: 50, Concurrency: 4}, logger: log.New(discardWriter{}, "", 0)}
}

func addr(s string) common.Address { return common.HexToAddress(s) }

func TestApplyCreateDispatchesProtocolHandler(t *testing.T) {
	st := newTestStore(t)
	p := testProcessor(st)
	ctx := context.Background()

	a := addr("0xaaaa000000000000000000000000000000aaaa")
	blk := &chaintypes.Block{Number: 10, Timestamp: 1000}
	intent := classify.Intent{
		Kind:         classify.KindCreate,
		Creator:      a,
		InitialOwner: a,
		ContentHash:  "hash1",
		ContentType:  "application/json",
		Body:         `{"p":"erc-20-fixed-denomination","op":"deploy","tick":"abc","max":"10","lim":"10"}`,
		TxHash:       common.HexToHash("0x01"),
	}

	if err := p.applyCreate(ctx, intent, blk); err != nil {
		t.Fatalf("applyCreate: %v", err)
	}

	tok, err := st.GetFixedToken(ctx, "abc")
	if err != nil || tok == nil {
		t.Fatalf("expected protocol handler to deploy token, got %+v, %v", tok, err)
	}
}

func TestApplyTransferUpdatesOwner(t *testing.T) {
	st := newTestStore(t)
	p := testProcessor(st)
	ctx := context.Background()

	a := addr("0x1111111111111111111111111111111111111e")
	b := addr("0x2222222222222222222222222222222222222e")
	blk := &chaintypes.Block{Number: 5, Timestamp: 500}

	createIntent := classify.Intent{
		Kind: classify.KindCreate, Creator: a, InitialOwner: a,
		ContentHash: "xfer-target", ContentType: "text/plain", TxHash: common.HexToHash("0x01"),
	}
	if err := p.applyCreate(ctx, createIntent, blk); err != nil {
		t.Fatalf("applyCreate: %v", err)
	}

	transferIntent := classify.Intent{
		Kind: classify.KindTransferEOA, InscriptionID: "xfer-target",
		From: a, To: b, ExpectedFrom: &a, TransferType: classify.TransferEOA,
		TxHash: common.HexToHash("0x02"),
	}
	blk2 := &chaintypes.Block{Number: 6, Timestamp: 600}
	if err := p.applyTransfer(ctx, transferIntent, blk2); err != nil {
		t.Fatalf("applyTransfer: %v", err)
	}

	got, err := st.GetInscription(ctx, "xfer-target")
	if err != nil || got == nil {
		t.Fatalf("get inscription: %v, %v", got, err)
	}
	if got.CurrentOwner != "0x2222222222222222222222222222222222222e" {
		t.Errorf("owner = %s want transferred owner", got.CurrentOwner)
	}
}

func TestApplyResultsStopsAtFirstFetchFailure(t *testing.T) {
	st := newTestStore(t)
	p := testProcessor(st)
	ctx := context.Background()

	results := []fetchResult{
		{block: &chaintypes.Block{Number: 100, Timestamp: 1}},
		{block: &chaintypes.Block{Number: 101, Timestamp: 2}},
		{err: errors.New("endpoints exhausted")},
		{block: &chaintypes.Block{Number: 103, Timestamp: 4}}, // must not be applied
	}

	last, err := p.applyResults(ctx, 100, results)
	if err != nil {
		t.Fatalf("applyResults: %v", err)
	}
	if last != 101 {
		t.Fatalf("expected last applied = 101, got %d", last)
	}
}

func TestApplyResultsAllFailuresReturnsError(t *testing.T) {
	st := newTestStore(t)
	p := testProcessor(st)
	ctx := context.Background()

	results := []fetchResult{{err: errors.New("down")}}
	if _, err := p.applyResults(ctx, 50, results); err == nil {
		t.Fatal("expected error when no block in batch could be fetched")
	}
}

func TestApplyBlockOrdersTransactionsBeforeLogs(t *testing.T) {
	st := newTestStore(t)
	p := testProcessor(st)
	ctx := context.Background()

	a := addr("0x3333333333333333333333333333333333333e")
	b := addr("0x4444444444444444444444444444444444444e")

	// The transaction creates the inscription; the log (ESIP-1 transfer, no
	// owner check) in the same block then transfers it. Transaction intents
	// must apply before log intents for this to succeed in one pass.
	createTx := chaintypes.Transaction{From: a, To: &a, Input: []byte("data:,ordering"), Hash: common.HexToHash("0x10")}
	recipientTopic := b.Hash()
	idHash := classify.Transaction(createTx)[0].ContentHash
	lg := chaintypes.Log{
		Topics: []common.Hash{classify.TopicTransferEthscription, recipientTopic, common.HexToHash(idHash)},
		TxHash: common.HexToHash("0x11"),
	}

	blk := &chaintypes.Block{Number: 7, Timestamp: 7, Transactions: []chaintypes.Transaction{createTx}}
	if err := p.applyBlock(ctx, blk, []chaintypes.Log{lg}); err != nil {
		t.Fatalf("applyBlock: %v", err)
	}

	got, err := st.GetInscription(ctx, idHash)
	if err != nil || got == nil {
		t.Fatalf("expected inscription created, got %+v, %v", got, err)
	}
	if got.CurrentOwner != "0x4444444444444444444444444444444444444e" {
		t.Errorf("owner = %s want %s (transfer should apply after create)", got.CurrentOwner, b.Hex())
	}
}
