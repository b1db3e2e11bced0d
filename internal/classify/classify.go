// Package classify implements the Classifier: turning one transaction or one
// log into a typed intent the State Materializer can apply.
package classify

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"ethscriptions-indexer/internal/chaintypes"
	"ethscriptions-indexer/internal/codec"
)

// Kind discriminates the variants of Intent.
type Kind int

const (
	// KindIgnore carries no work; the classifier produced nothing actionable.
	KindIgnore Kind = iota
	// KindCreate is an EOA self-transfer inscribing new content.
	KindCreate
	// KindCreateContract is an ESIP-3 contract-emitted creation.
	KindCreateContract
	// KindTransferEOA is a direct or ESIP-5 bulk EOA transfer.
	KindTransferEOA
	// KindTransferContract is an ESIP-1 or ESIP-2 contract-emitted transfer.
	KindTransferContract
)

// TransferType mirrors the stored transfer_type column.
type TransferType string

const (
	TransferEOA   TransferType = "eoa"
	TransferESIP1 TransferType = "esip1"
	TransferESIP2 TransferType = "esip2"
)

// Intent is the classifier's sole output type: exactly one of the Kind
// tags, with the fields relevant to that kind populated.
type Intent struct {
	Kind Kind

	// Populated for KindCreate / KindCreateContract.
	ContentHash       string // base hash, no ESIP-6 suffix
	ContentType       string
	Body              string // payload, held only in memory, never persisted
	BodyIsBase64      bool   // true if Body is still base64-encoded
	ESIP6             bool
	CreatedByContract bool
	CreatorContract   *common.Address
	Creator           common.Address // EOA creator, or emitting contract for ESIP-3
	InitialOwner      common.Address

	// Populated for KindTransferEOA / KindTransferContract.
	InscriptionID   string
	From            common.Address
	To              common.Address
	TransferType    TransferType
	ExpectedFrom    *common.Address // nil means "no check" (ESIP-1)
	LogIndex        *uint
	ContractAddress *common.Address

	TxHash common.Hash
}

var (
	// TopicTransferEthscription is keccak256("ethscriptions_protocol_TransferEthscription(address,bytes32)").
	TopicTransferEthscription = crypto.Keccak256Hash([]byte("ethscriptions_protocol_TransferEthscription(address,bytes32)"))
	// TopicTransferEthscriptionForPreviousOwner is keccak256("ethscriptions_protocol_TransferEthscriptionForPreviousOwner(address,address,bytes32)").
	TopicTransferEthscriptionForPreviousOwner = crypto.Keccak256Hash([]byte("ethscriptions_protocol_TransferEthscriptionForPreviousOwner(address,address,bytes32)"))
	// TopicCreateEthscription is keccak256("ethscriptions_protocol_CreateEthscription(address,string)").
	TopicCreateEthscription = crypto.Keccak256Hash([]byte("ethscriptions_protocol_CreateEthscription(address,string)"))
)

// Topics is the filter list passed to the RPC Pool's GetLogs call.
var Topics = []common.Hash{
	TopicTransferEthscription,
	TopicTransferEthscriptionForPreviousOwner,
	TopicCreateEthscription,
}

// Transaction classifies one transaction from block B into zero or more
// intents (zero for Ignore, one for Create, k for an ESIP-5 bulk transfer of
// k hashes).
func Transaction(tx chaintypes.Transaction) []Intent {
	if tx.To == nil {
		return nil
	}
	from := tx.From
	to := *tx.To

	if strings.EqualFold(from.Hex(), to.Hex()) {
		return transactionCreate(tx, from)
	}
	return transactionBulkTransfer(tx, from, to)
}

func transactionCreate(tx chaintypes.Transaction, from common.Address) []Intent {
	raw, ok := codec.ToUTF8(tx.Input)
	if !ok || !strings.HasPrefix(raw, "data:") {
		return nil
	}

	esip6 := codec.HasRuleESIP6(raw)
	canonical := codec.CanonicalizeGzip(raw)

	du, err := codec.ParseDataURI(canonical)
	if err != nil {
		return nil
	}

	hash := codec.SHA256LowerHex([]byte(canonical))

	return []Intent{{
		Kind:         KindCreate,
		Creator:      from,
		InitialOwner: from,
		ContentHash:  hash,
		ContentType:  du.MIME,
		Body:         du.Body,
		BodyIsBase64: du.IsBase64,
		ESIP6:        esip6,
		TxHash:       tx.Hash,
	}}
}

func transactionBulkTransfer(tx chaintypes.Transaction, from, to common.Address) []Intent {
	input := tx.Input
	hexLen := len(input) * 2
	if hexLen == 0 || hexLen%64 != 0 {
		return nil
	}
	k := len(input) / 32
	intents := make([]Intent, 0, k)
	for i := 0; i < k; i++ {
		chunk := input[i*32 : (i+1)*32]
		id := "0x" + common.Bytes2Hex(chunk)
		expected := from
		intents = append(intents, Intent{
			Kind:          KindTransferEOA,
			InscriptionID: id,
			From:          from,
			To:            to,
			TransferType:  TransferEOA,
			ExpectedFrom:  &expected,
			TxHash:        tx.Hash,
		})
	}
	return intents
}

var abiString, _ = abi.NewType("string", "", nil)

// Log classifies one event log into an intent, or nil if its topic-0 does
// not match any of the three ethscriptions protocol signatures.
func Log(lg chaintypes.Log) *Intent {
	if len(lg.Topics) == 0 {
		return nil
	}
	switch lg.Topics[0] {
	case TopicTransferEthscription:
		return logTransferESIP1(lg)
	case TopicTransferEthscriptionForPreviousOwner:
		return logTransferESIP2(lg)
	case TopicCreateEthscription:
		return logCreateESIP3(lg)
	default:
		return nil
	}
}

func topicAddress(t common.Hash) common.Address {
	return common.BytesToAddress(t.Bytes()[12:])
}

func logTransferESIP1(lg chaintypes.Log) *Intent {
	if len(lg.Topics) < 3 {
		return nil
	}
	recipient := topicAddress(lg.Topics[1])
	id := "0x" + common.Bytes2Hex(lg.Topics[2].Bytes())
	contract := lg.Address
	logIdx := lg.LogIndex
	return &Intent{
		Kind:            KindTransferContract,
		InscriptionID:   id,
		To:              recipient,
		TransferType:    TransferESIP1,
		ExpectedFrom:    nil,
		LogIndex:        &logIdx,
		ContractAddress: &contract,
		TxHash:          lg.TxHash,
	}
}

func logTransferESIP2(lg chaintypes.Log) *Intent {
	if len(lg.Topics) < 4 {
		return nil
	}
	prev := topicAddress(lg.Topics[1])
	recipient := topicAddress(lg.Topics[2])
	id := "0x" + common.Bytes2Hex(lg.Topics[3].Bytes())
	contract := lg.Address
	logIdx := lg.LogIndex
	return &Intent{
		Kind:            KindTransferContract,
		InscriptionID:   id,
		To:              recipient,
		TransferType:    TransferESIP2,
		ExpectedFrom:    &prev,
		LogIndex:        &logIdx,
		ContractAddress: &contract,
		TxHash:          lg.TxHash,
	}
}

func logCreateESIP3(lg chaintypes.Log) *Intent {
	if len(lg.Topics) < 2 {
		return nil
	}
	initialOwner := topicAddress(lg.Topics[1])
	contract := lg.Address

	args := abi.Arguments{{Type: abiString}}
	vals, err := args.UnpackValues(lg.Data)
	if err != nil || len(vals) == 0 {
		return nil
	}
	contentURI, ok := vals[0].(string)
	if !ok {
		return nil
	}

	esip6 := codec.HasRuleESIP6(contentURI)
	canonical := codec.CanonicalizeGzip(contentURI)
	du, err := codec.ParseDataURI(canonical)
	if err != nil {
		return nil
	}
	hash := codec.SHA256LowerHex([]byte(canonical))

	return &Intent{
		Kind:              KindCreateContract,
		Creator:           contract,
		CreatedByContract: true,
		CreatorContract:   &contract,
		InitialOwner:      initialOwner,
		ContentHash:       hash,
		ContentType:       du.MIME,
		Body:              du.Body,
		BodyIsBase64:      du.IsBase64,
		ESIP6:             esip6,
		TxHash:            lg.TxHash,
	}
}
