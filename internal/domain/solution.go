package domain

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// SolutionID identifies a solution within its driver+auction round.
type SolutionID uint64

// Calldata is the settlement calldata a driver reveals for its winning
// solution; Internalized is what will actually be submitted on-chain and
// must carry the auction-id tag, Uninternalized is reported only for audit.
type Calldata struct {
	Internalized   []byte
	Uninternalized []byte
}

// Solution is one driver's proposed settlement for the round. Score must
// be strictly positive for the solution to be eligible.
type Solution struct {
	ID                 SolutionID
	Score              *uint256.Int
	SubmissionAddress  common.Address
	Calldata           *Calldata // nil until reveal succeeds
	TradedOrders       []OrderUid
}

// AuctionIDTag returns the big-endian 8-byte encoding of id, the suffix
// every internalized winning calldata must carry.
func AuctionIDTag(id AuctionID) [8]byte {
	var tag [8]byte
	binary.BigEndian.PutUint64(tag[:], uint64(id))
	return tag
}

// HasValidAuctionTag reports whether calldata's last 8 bytes decode,
// big-endian, to id. This is the sole binding between an on-chain
// settlement and the auction that produced it.
func HasValidAuctionTag(calldata []byte, id AuctionID) bool {
	if len(calldata) < 8 {
		return false
	}
	tag := AuctionIDTag(id)
	return [8]byte(calldata[len(calldata)-8:]) == tag
}
