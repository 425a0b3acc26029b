// Package onchain provides the real, eth_call-backed implementations of
// the solvable-orders cache's collaborator interfaces (spec §4.3):
// balance/allowance, EIP-1271 signature verification and a native-price
// oracle lookup. Hand-packed ABI calls, grounded on the same
// CallContract + selector pattern core/txpool and the chain package use
// for reading node state without pulling in a full ABI/bind dependency.
package onchain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/KRD-Kai/services/internal/chain"
)

func selector(sig string) []byte {
	return crypto.Keccak256([]byte(sig))[:4]
}

func packAddress(addr common.Address) []byte {
	out := make([]byte, 32)
	copy(out[12:], addr.Bytes())
	return out
}

func packBytes32(b [32]byte) []byte {
	out := make([]byte, 32)
	copy(out, b[:])
	return out
}

// callUint256 invokes a read-only function returning a single uint256.
func callUint256(ctx context.Context, client chain.Client, to common.Address, data []byte) (*uint256.Int, error) {
	out, err := client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, err
	}
	if len(out) < 32 {
		return nil, fmt.Errorf("short return data from %s: %d bytes", to, len(out))
	}
	v, overflow := uint256.FromBig(new(big.Int).SetBytes(out[:32]))
	if overflow {
		return nil, fmt.Errorf("return value from %s overflows uint256", to)
	}
	return v, nil
}

func callBool(ctx context.Context, client chain.Client, to common.Address, data []byte) (bool, error) {
	out, err := client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return false, err
	}
	if len(out) < 32 {
		return false, fmt.Errorf("short return data from %s: %d bytes", to, len(out))
	}
	for _, b := range out[:31] {
		if b != 0 {
			return false, fmt.Errorf("malformed bool return from %s", to)
		}
	}
	return out[31] != 0, nil
}
