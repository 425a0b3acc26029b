package onchain

import (
	"context"
	"encoding/binary"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/KRD-Kai/services/internal/chain"
	"github.com/KRD-Kai/services/internal/domain"
)

var (
	isValidSignatureSelector = selector("isValidSignature(bytes32,bytes)")
	preSignatureSelector     = selector("preSignature(bytes)")
	eip1271MagicValue        = [4]byte{0x16, 0x26, 0xba, 0x7e}
)

// SignatureValidator implements solvableorders.SignatureValidator for the
// two schemes that require a chain round-trip: presign (checked against
// the settlement contract's preSignature mapping) and eip1271 (checked
// against the order owner's isValidSignature). eip712/ethsign orders are
// reported valid without any chain call or signature check.
type SignatureValidator struct {
	client     chain.Client
	settlement common.Address
}

func NewSignatureValidator(client chain.Client, settlement common.Address) *SignatureValidator {
	return &SignatureValidator{client: client, settlement: settlement}
}

func (v *SignatureValidator) IsValid(ctx context.Context, order *domain.Order, atBlock uint64) (bool, error) {
	switch order.SigningScheme {
	case domain.SigningSchemePreSign:
		return v.preSigned(ctx, order, atBlock)
	case domain.SigningSchemeEip1271:
		return v.eip1271Valid(ctx, order, atBlock)
	default:
		return true, nil // eip712/ethsign: not checked here
	}
}

func (v *SignatureValidator) preSigned(ctx context.Context, order *domain.Order, atBlock uint64) (bool, error) {
	data := append(append([]byte{}, preSignatureSelector...), encodeDynamicBytes(order.UID[:], 1)...)
	out, err := callAt(ctx, v.client, v.settlement, data, atBlock)
	if err != nil {
		return false, err
	}
	if len(out) < 32 {
		return false, nil
	}
	return !allZero(out[:32]), nil
}

func (v *SignatureValidator) eip1271Valid(ctx context.Context, order *domain.Order, atBlock uint64) (bool, error) {
	var digest [32]byte
	copy(digest[:], order.UID[:32])
	data := append(append(append([]byte{}, isValidSignatureSelector...), packBytes32(digest)...), encodeDynamicBytes(order.Signature, 2)...)
	out, err := callAt(ctx, v.client, order.Owner, data, atBlock)
	if err != nil {
		return false, err
	}
	if len(out) < 4 {
		return false, nil
	}
	return [4]byte{out[0], out[1], out[2], out[3]} == eip1271MagicValue, nil
}

func callAt(ctx context.Context, client chain.Client, to common.Address, data []byte, atBlock uint64) ([]byte, error) {
	return client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, &atBlock)
}

// encodeDynamicBytes packs a single trailing dynamic `bytes` ABI argument:
// the head-side offset word (headWords*32 bytes in), then the tail's
// length word and content, right-padded to a 32-byte boundary. Both call
// sites here have exactly one dynamic argument, so a single offset word
// is always sufficient.
func encodeDynamicBytes(b []byte, headWords int) []byte {
	offset := make([]byte, 32)
	binary.BigEndian.PutUint64(offset[24:], uint64(headWords*32))
	length := make([]byte, 32)
	binary.BigEndian.PutUint64(length[24:], uint64(len(b)))
	padded := len(b)
	if r := padded % 32; r != 0 {
		padded += 32 - r
	}
	content := make([]byte, padded)
	copy(content, b)
	out := make([]byte, 0, 32+32+len(content))
	out = append(out, offset...)
	out = append(out, length...)
	out = append(out, content...)
	return out
}

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
