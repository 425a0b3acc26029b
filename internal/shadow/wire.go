package shadow

import "encoding/json"

// Wire shape of the upstream auction endpoint (spec §4.7: "fetched from an
// upstream HTTP endpoint, an external orderbook"). It carries a subset of
// the order fields C5's driver client sends outbound, with a single
// feeAmount and no validTo, appData, signature or fee policies.

type wireInteraction struct {
	Target   string `json:"target"`
	Value    string `json:"value"`
	CallData string `json:"callData"`
}

type wireOrder struct {
	UID               string            `json:"uid"`
	Owner             string            `json:"owner"`
	SellToken         string            `json:"sellToken"`
	BuyToken          string            `json:"buyToken"`
	SellAmount        string            `json:"sellAmount"`
	BuyAmount         string            `json:"buyAmount"`
	FeeAmount         string            `json:"feeAmount"`
	Kind              string            `json:"kind"`
	Class             string            `json:"class"`
	PartiallyFillable bool              `json:"partiallyFillable"`
	PreInteractions   []wireInteraction `json:"preInteractions"`
	PostInteractions  []wireInteraction `json:"postInteractions"`
}

type wireAuction struct {
	ID     json.Number       `json:"id"`
	Block  uint64            `json:"block"`
	Orders []wireOrder       `json:"orders"`
	Prices map[string]string `json:"prices"`
}
