package protocol

import (
	"encoding/json"
	"strconv"
)

// flexInt accepts a JSON number or a JSON string containing digits — the
// protocol's deploy/mint payloads write supply figures as strings
// (`"max":"1000"`).
type flexInt int64

func (f *flexInt) UnmarshalJSON(data []byte) error {
	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexInt(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}

// payload is the envelope every erc-* protocol message shares: a protocol
// tag `p` and an operation `op`, plus every field any of the three
// sub-protocols might carry. Unused fields for a given `p`/`op` are simply
// left zero.
type payload struct {
	P    string `json:"p"`
	Op   string `json:"op"`
	Tick string `json:"tick"`

	// erc-721-ethscriptions-collection
	Name         string          `json:"name"`
	Symbol       string          `json:"symbol"`
	Description  string          `json:"description"`
	MaxSupply    *flexInt        `json:"max_supply"`
	CollectionID string          `json:"collection_id"`
	Item         *collectionItem `json:"item"`
	NewOwner     string          `json:"new_owner"`

	// erc-20-fixed-denomination / erc-20-bonding-curve
	Max            *flexInt `json:"max"`
	Lim            *flexInt `json:"lim"`
	Amt            *flexInt `json:"amt"`
	BasePrice      *flexInt `json:"base_price"`
	PriceIncrement *flexInt `json:"price_increment"`
}

type collectionItem struct {
	InscriptionID string `json:"id"`
	Metadata      string `json:"metadata"`
}

func parsePayload(body string) (*payload, bool) {
	var p payload
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		return nil, false
	}
	if p.P == "" {
		return nil, false
	}
	return &p, true
}
