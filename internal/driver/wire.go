package driver

import "encoding/json"

// Wire types for the driver HTTP protocol (spec §6). Field names are
// fixed by the protocol and therefore camelCase, unlike the rest of this
// module's Go-idiomatic identifiers.

type wireToken struct {
	Address string  `json:"address"`
	Price   *string `json:"price,omitempty"`
	Trusted bool    `json:"trusted"`
}

type wireInteraction struct {
	Target   string `json:"target"`
	Value    string `json:"value"`
	CallData string `json:"callData"`
}

type wireFeePolicy struct {
	Kind            string  `json:"kind"`
	Factor          float64 `json:"factor"`
	MaxVolumeFactor float64 `json:"maxVolumeFactor"`
}

type wireOrder struct {
	UID               string            `json:"uid"`
	SellToken         string            `json:"sellToken"`
	BuyToken          string            `json:"buyToken"`
	SellAmount        string            `json:"sellAmount"`
	BuyAmount         string            `json:"buyAmount"`
	SolverFee         string            `json:"solverFee"`
	UserFee           string            `json:"userFee"`
	ValidTo           int64             `json:"validTo"`
	Kind              string            `json:"kind"`
	Owner             string            `json:"owner"`
	PartiallyFillable bool              `json:"partiallyFillable"`
	Executed          string            `json:"executed"`
	PreInteractions   []wireInteraction `json:"preInteractions"`
	PostInteractions  []wireInteraction `json:"postInteractions"`
	Class             string            `json:"class"`
	AppData           string            `json:"appData"`
	SigningScheme     string            `json:"signingScheme"`
	Signature         string            `json:"signature"`
	FeePolicies       []wireFeePolicy   `json:"feePolicies"`
}

type solveRequest struct {
	ID        string      `json:"id"`
	Tokens    []wireToken `json:"tokens"`
	Orders    []wireOrder `json:"orders"`
	Deadline  string      `json:"deadline"`
	ScoreCap  string      `json:"scoreCap"`
}

type wireSolution struct {
	SolutionID        json.Number `json:"solutionId"`
	Score             string      `json:"score"`
	SubmissionAddress string      `json:"submissionAddress"`
	Orders            []string    `json:"orders"`
}

type solveResponse struct {
	Solutions []wireSolution `json:"solutions"`
}

type revealRequest struct {
	SolutionID json.Number `json:"solutionId"`
}

type wireCalldata struct {
	Internalized   string `json:"internalized"`
	Uninternalized string `json:"uninternalized"`
}

type revealResponse struct {
	Calldata wireCalldata `json:"calldata"`
}

type settleRequest struct {
	SolutionID json.Number `json:"solutionId"`
}

type settleResponse struct {
	TxHash   string       `json:"txHash"`
	Calldata wireCalldata `json:"calldata"`
}
