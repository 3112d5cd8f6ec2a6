// Package identity derives deterministic, collision-resistant order ids.
package identity

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/trustmesh/escrow-engine/internal/core/domain"
)

// Derive computes the order id as Keccak-256 over a fixed-layout packing of
// the identity fields:
//
//	token (20) | len(symbol) uint32 BE | symbol | sender (20) | recipient (20)
//	| amount (32, BE, left-padded) | fee (32) | draftAt (8, BE)
//
// Symbol is the only variable-length field and is length-prefixed, so no two
// distinct tuples share a packing. Amount and fee must already be validated
// to fit 256 bits.
func Derive(p domain.OrderParams) common.Hash {
	buf := make([]byte, 0, 20+4+len(p.Symbol)+20+20+32+32+8)

	buf = append(buf, p.Token.Bytes()...)

	var symLen [4]byte
	binary.BigEndian.PutUint32(symLen[:], uint32(len(p.Symbol)))
	buf = append(buf, symLen[:]...)
	buf = append(buf, p.Symbol...)

	buf = append(buf, p.Sender.Bytes()...)
	buf = append(buf, p.Recipient.Bytes()...)

	var word [32]byte
	p.Amount.FillBytes(word[:])
	buf = append(buf, word[:]...)
	p.Fee.FillBytes(word[:])
	buf = append(buf, word[:]...)

	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(p.DraftAt))
	buf = append(buf, ts[:]...)

	return crypto.Keccak256Hash(buf)
}
