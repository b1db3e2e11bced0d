// Package protocol implements the Protocol Handler: dispatch of JSON-payload
// inscriptions to their collection / fixed-denomination-token /
// bonding-curve-token sub-state-machines.
package protocol

import (
	"context"
	"encoding/base64"
	"log"
	"strings"

	"ethscriptions-indexer/internal/store"
)

const (
	protoCollection   = "erc-721-ethscriptions-collection"
	protoFixedDenom   = "erc-20-fixed-denomination"
	protoBondingCurve = "erc-20-bonding-curve"
	maxTickLen        = 28
)

// Context carries everything the Protocol Handler needs about the
// inscription that just succeeded materialization, without importing the
// classify package back into store's dependency graph.
type Context struct {
	Creator       string // lowercase hex address
	InscriptionID string
	ContentType   string
	Body          string
	BodyIsBase64  bool
}

// Handle is called once, immediately after a Create intent is newly
// materialized. It is a no-op (not an error) whenever the content does not
// look like a protocol payload at all: only `data:application/json[...]`
// inscriptions whose decoded JSON carries a `p` field are protocol
// invocations. Validation failures inside a recognized `p`/`op` are dropped
// and logged; the parent inscription is left exactly as materialized.
func Handle(ctx context.Context, st *store.Store, logger *log.Logger, pctx Context) {
	if !strings.HasPrefix(pctx.ContentType, "application/json") {
		return
	}
	body := pctx.Body
	if pctx.BodyIsBase64 {
		decoded, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return
		}
		body = string(decoded)
	}

	p, ok := parsePayload(body)
	if !ok {
		return
	}

	switch p.P {
	case protoCollection:
		handleCollection(ctx, st, logger, pctx, p)
	case protoFixedDenom:
		handleFixedDenom(ctx, st, logger, pctx, p)
	case protoBondingCurve:
		handleBondingCurve(ctx, st, logger, pctx, p)
	default:
		// Unrecognized protocol tag: not an error, just not ours.
	}
}

func logDrop(logger *log.Logger, inscriptionID, op, reason string) {
	logger.Printf("protocol: dropped op=%s inscription=%s: %s", op, inscriptionID, reason)
}

func int64OrZero(f *flexInt) int64 {
	if f == nil {
		return 0
	}
	return int64(*f)
}
