package pool

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// SellStateLen is the serialized size of a SellState record. It is fixed
// regardless of content because rent for the record is computed from it.
const SellStateLen = 344

// PoolLen is the serialized size reserved for a pool record:
// 8 tag + 3*32 identities + 16 uuid + 8 expiry + 8 spot + 1 curve kind +
// 8 curve delta + 4*4 bp rates + 2 reinvest flags + 6*33 allowlist slots +
// 3*8 counters + 32 annotation, padded with reserved space.
const PoolLen = 528

var sellStateTag = [8]byte{'s', 'e', 'l', 'l', 's', 't', 'a', 't'}

var errSellStateCorrupt = errors.New("corrupt sell state record")

// EncodeSellState serializes the record into its fixed 344-byte layout:
// 8-byte tag, pool, pool owner, asset mint, little-endian amount, cosigner
// annotation, zero padding.
func EncodeSellState(s *SellState) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("encode sell state: nil record")
	}
	buf := make([]byte, SellStateLen)
	copy(buf[0:8], sellStateTag[:])
	copy(buf[8:40], s.Pool[:])
	copy(buf[40:72], s.PoolOwner[:])
	copy(buf[72:104], s.AssetMint[:])
	binary.LittleEndian.PutUint64(buf[104:112], s.AssetAmount)
	copy(buf[112:144], s.CosignerAnnotation[:])
	return buf, nil
}

// DecodeSellState parses a fixed-layout record produced by EncodeSellState.
func DecodeSellState(buf []byte) (*SellState, error) {
	if len(buf) != SellStateLen {
		return nil, fmt.Errorf("%w: length %d", errSellStateCorrupt, len(buf))
	}
	if [8]byte(buf[0:8]) != sellStateTag {
		return nil, fmt.Errorf("%w: bad tag", errSellStateCorrupt)
	}
	s := &SellState{}
	copy(s.Pool[:], buf[8:40])
	copy(s.PoolOwner[:], buf[40:72])
	copy(s.AssetMint[:], buf[72:104])
	s.AssetAmount = binary.LittleEndian.Uint64(buf[104:112])
	copy(s.CosignerAnnotation[:], buf[112:144])
	return s, nil
}
