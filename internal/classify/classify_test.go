package classify

import (
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"ethscriptions-indexer/internal/chaintypes"
	"ethscriptions-indexer/internal/codec"
)

func addr(s string) common.Address { return common.HexToAddress(s) }

func TestTransactionIgnoresNoRecipient(t *testing.T) {
	tx := chaintypes.Transaction{From: addr("0x1"), To: nil, Input: []byte("data:,x")}
	if got := Transaction(tx); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

func TestTransactionCreate(t *testing.T) {
	a := addr("0xaaaa000000000000000000000000000000aaaa")
	tx := chaintypes.Transaction{From: a, To: &a, Input: []byte("data:,hello")}
	intents := Transaction(tx)
	if len(intents) != 1 || intents[0].Kind != KindCreate {
		t.Fatalf("expected one Create intent, got %+v", intents)
	}
	want := codec.SHA256LowerHex([]byte("data:,hello"))
	if intents[0].ContentHash != want {
		t.Errorf("hash = %s want %s", intents[0].ContentHash, want)
	}
	if intents[0].ContentType != "text/plain" {
		t.Errorf("content type = %s", intents[0].ContentType)
	}
}

func TestTransactionCreateIgnoresNonDataURI(t *testing.T) {
	a := addr("0xbbbb000000000000000000000000000000bbbb")
	tx := chaintypes.Transaction{From: a, To: &a, Input: []byte("not a data uri")}
	if got := Transaction(tx); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

func TestTransactionCreateESIP6(t *testing.T) {
	a := addr("0xcccc000000000000000000000000000000cccc")
	tx := chaintypes.Transaction{From: a, To: &a, Input: []byte("data:,foo;rule=esip6")}
	intents := Transaction(tx)
	if len(intents) != 1 || !intents[0].ESIP6 {
		t.Fatalf("expected ESIP6 create, got %+v", intents)
	}
}

func TestTransactionBulkTransfer(t *testing.T) {
	from := addr("0x1111111111111111111111111111111111111e")
	to := addr("0x2222222222222222222222222222222222222e")
	id1 := make([]byte, 32)
	id1[31] = 0x01
	id2 := make([]byte, 32)
	id2[31] = 0x02
	input := append(append([]byte{}, id1...), id2...)

	tx := chaintypes.Transaction{From: from, To: &to, Input: input}
	intents := Transaction(tx)
	if len(intents) != 2 {
		t.Fatalf("expected 2 bulk transfer intents, got %d", len(intents))
	}
	for _, in := range intents {
		if in.Kind != KindTransferEOA {
			t.Errorf("expected KindTransferEOA, got %v", in.Kind)
		}
		if in.From != from || in.To != to {
			t.Errorf("unexpected from/to: %+v", in)
		}
	}
	if !strings.HasSuffix(intents[0].InscriptionID, "01") {
		t.Errorf("expected first id to end in 01, got %s", intents[0].InscriptionID)
	}
}

func TestTransactionBulkTransferWrongLengthIgnored(t *testing.T) {
	from := addr("0x3333333333333333333333333333333333333e")
	to := addr("0x4444444444444444444444444444444444444e")
	input := make([]byte, 48) // hex length 96, not a multiple of 64
	tx := chaintypes.Transaction{From: from, To: &to, Input: input}
	if got := Transaction(tx); got != nil {
		t.Fatalf("expected nil for non-multiple-of-64 input, got %v", got)
	}
}

func TestLogTransferESIP1(t *testing.T) {
	recipient := addr("0x5555555555555555555555555555555555555e")
	id := common.HexToHash("0xdead")
	lg := chaintypes.Log{
		Address: addr("0x9999999999999999999999999999999999999e"),
		Topics:  []common.Hash{TopicTransferEthscription, recipient.Hash(), id},
	}
	in := Log(lg)
	if in == nil || in.Kind != KindTransferContract || in.TransferType != TransferESIP1 {
		t.Fatalf("unexpected intent: %+v", in)
	}
	if in.ExpectedFrom != nil {
		t.Error("ESIP1 must have no owner check")
	}
	if in.To != recipient {
		t.Errorf("recipient = %s want %s", in.To, recipient)
	}
}

func TestLogTransferESIP2(t *testing.T) {
	prev := addr("0x6666666666666666666666666666666666666e")
	recipient := addr("0x7777777777777777777777777777777777777e")
	id := common.HexToHash("0xbeef")
	lg := chaintypes.Log{
		Address: addr("0x8888888888888888888888888888888888888e"),
		Topics:  []common.Hash{TopicTransferEthscriptionForPreviousOwner, prev.Hash(), recipient.Hash(), id},
	}
	in := Log(lg)
	if in == nil || in.TransferType != TransferESIP2 {
		t.Fatalf("unexpected intent: %+v", in)
	}
	if in.ExpectedFrom == nil || *in.ExpectedFrom != prev {
		t.Errorf("expected owner check against %s, got %v", prev, in.ExpectedFrom)
	}
}

func TestLogUnknownTopicIgnored(t *testing.T) {
	lg := chaintypes.Log{Topics: []common.Hash{common.HexToHash("0x1234")}}
	if got := Log(lg); got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
}
