package main

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/KRD-Kai/services/internal/domain"
	"github.com/KRD-Kai/services/internal/indexer"
)

var (
	settlementTopic    = crypto.Keccak256Hash([]byte("Settlement(address)"))
	orderPlacementTopic = crypto.Keccak256Hash([]byte("OrderPlacement(address,bytes)"))
	orderRefundTopic    = crypto.Keccak256Hash([]byte("OrderRefund(address,bytes)"))
)

// settlementSource watches the settlement contract's Settlement event,
// one per settle() call (spec §4.1/§4.2).
func settlementSource(addr common.Address) indexer.Source {
	return indexer.Source{
		Name:    "settlement",
		Address: addr,
		Topics:  []common.Hash{settlementTopic},
		Kind:    indexer.EventSettlement,
		Decode: func(l types.Log) ([]indexer.DecodedEvent, error) {
			return []indexer.DecodedEvent{{
				Kind:        indexer.EventSettlement,
				BlockNumber: l.BlockNumber,
				LogIndex:    uint64(l.Index),
				TxHash:      l.TxHash,
			}}, nil
		},
	}
}

// ethflowPlacementSource watches the ethflow contract's OrderPlacement
// event: the order uid is the event's trailing bytes payload (spec §4.1).
func ethflowPlacementSource(addr common.Address) indexer.Source {
	return indexer.Source{
		Name:    "ethflow-placement",
		Address: addr,
		Topics:  []common.Hash{orderPlacementTopic},
		Kind:    indexer.EventOrderPlacement,
		Decode: func(l types.Log) ([]indexer.DecodedEvent, error) {
			uid, err := decodeTrailingOrderUID(l.Data)
			if err != nil {
				return nil, fmt.Errorf("ethflow order placement: %w", err)
			}
			return []indexer.DecodedEvent{{
				Kind:        indexer.EventOrderPlacement,
				BlockNumber: l.BlockNumber,
				LogIndex:    uint64(l.Index),
				TxHash:      l.TxHash,
				OrderUID:    uid,
			}}, nil
		},
	}
}

// ethflowRefundSource watches the ethflow contract's OrderRefund event.
func ethflowRefundSource(addr common.Address) indexer.Source {
	return indexer.Source{
		Name:    "ethflow-refund",
		Address: addr,
		Topics:  []common.Hash{orderRefundTopic},
		Kind:    indexer.EventRefund,
		Decode: func(l types.Log) ([]indexer.DecodedEvent, error) {
			uid, err := decodeTrailingOrderUID(l.Data)
			if err != nil {
				return nil, fmt.Errorf("ethflow order refund: %w", err)
			}
			return []indexer.DecodedEvent{{
				Kind:        indexer.EventRefund,
				BlockNumber: l.BlockNumber,
				LogIndex:    uint64(l.Index),
				TxHash:      l.TxHash,
				OrderUID:    uid,
			}}, nil
		},
	}
}

// decodeTrailingOrderUID reads the 56-byte order uid out of a dynamic
// `bytes` ABI payload: 32-byte length word, then the content. Both
// ethflow events carry the uid as their sole dynamic field, after one
// fixed (indexed, so not in Data) argument.
func decodeTrailingOrderUID(data []byte) (domain.OrderUid, error) {
	const uidLen = len(domain.OrderUid{})
	if len(data) < 32+uidLen {
		return domain.OrderUid{}, fmt.Errorf("log data too short: %d bytes", len(data))
	}
	var uid domain.OrderUid
	copy(uid[:], data[32:32+uidLen])
	return uid, nil
}
