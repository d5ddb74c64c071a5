package pool

import "testing"

func TestSellStateCodecRoundTrip(t *testing.T) {
	s := &SellState{
		Pool:               newTestAddress(0x11),
		PoolOwner:          newTestAddress(0x22),
		AssetMint:          newTestAddress(0x33),
		AssetAmount:        7,
		CosignerAnnotation: newTestAddress(0x44),
	}
	buf, err := EncodeSellState(s)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(buf) != SellStateLen {
		t.Fatalf("encoded length = %d, want %d", len(buf), SellStateLen)
	}
	decoded, err := DecodeSellState(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if *decoded != *s {
		t.Fatalf("decoded = %+v, want %+v", decoded, s)
	}
	// Everything past the annotation is reserved padding.
	for i := 144; i < SellStateLen; i++ {
		if buf[i] != 0 {
			t.Fatalf("padding byte %d = %#x, want 0", i, buf[i])
		}
	}
}

func TestDecodeSellStateRejectsCorruptRecords(t *testing.T) {
	s := &SellState{Pool: newTestAddress(0x11), AssetMint: newTestAddress(0x33), AssetAmount: 1}
	buf, err := EncodeSellState(s)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := DecodeSellState(buf[:SellStateLen-1]); err == nil {
		t.Fatalf("truncated record decoded")
	}
	buf[0] ^= 0xFF
	if _, err := DecodeSellState(buf); err == nil {
		t.Fatalf("bad tag decoded")
	}
}
