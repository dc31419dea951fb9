package wire

import "testing"

func TestVarintRoundTrip(t *testing.T) {
	cases := []uint64{0, 1, 2, 127, 128, 129, 16383, 16384, 1 << 20, 1 << 40, ^uint64(0)}
	for _, v := range cases {
		buf := EncodeVarint(nil, v)
		got, n, err := DecodeVarint(buf, 0)
		if err != nil {
			t.Fatalf("decode(%d): %v", v, err)
		}
		if n != len(buf) {
			t.Fatalf("decode(%d): consumed %d, want %d", v, n, len(buf))
		}
		if got != v {
			t.Fatalf("decode(%d): got %d", v, got)
		}
	}
}

func TestDecodeVarintWithTrailingBytes(t *testing.T) {
	buf := EncodeVarint(nil, 300)
	buf = append(buf, 0xff, 0xff, 0xff)
	got, n, err := DecodeVarint(buf, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 300 {
		t.Fatalf("got %d, want 300", got)
	}
	if n != 2 {
		t.Fatalf("consumed %d, want 2", n)
	}
}

func TestDecodeVarintTruncated(t *testing.T) {
	buf := []byte{0x80, 0x80}
	if _, _, err := DecodeVarint(buf, 0); err == nil {
		t.Fatal("expected error for truncated varint")
	}
}

func TestDecodeVarintAtOffset(t *testing.T) {
	buf := []byte{0xAA, 0xBB}
	buf = EncodeVarint(buf, 42)
	got, n, err := DecodeVarint(buf, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 42 || n != 1 {
		t.Fatalf("got (%d,%d), want (42,1)", got, n)
	}
}
