package farc

import (
	"encoding/binary"
	"testing"
)

func TestOffsetValid(t *testing.T) {
	if InvalidOffset.Valid() {
		t.Fatal("InvalidOffset.Valid() = true")
	}
	if !Offset(0).Valid() {
		t.Fatal("Offset(0).Valid() = false")
	}
}

func TestCompressionString(t *testing.T) {
	cases := map[Compression]string{
		CompressionNone:    "none",
		CompressionFastLZ:  "fastlz",
		CompressionDeflate: "deflate",
		Compression(0xDEAD): "unknown",
	}
	for kind, want := range cases {
		if got := kind.String(); got != want {
			t.Errorf("Compression(%#x).String() = %q, want %q", uint32(kind), got, want)
		}
	}
}

func TestBlockHeaderLiteral(t *testing.T) {
	h := blockHeader{Original: 100, Compressed: 100 | compressionSizeIgnore}
	if !h.literal() {
		t.Fatal("expected literal block")
	}
	if h.payloadSize() != 100 {
		t.Fatalf("payloadSize() = %d, want 100", h.payloadSize())
	}

	h2 := blockHeader{Original: 100, Compressed: 40}
	if h2.literal() {
		t.Fatal("expected compressed block")
	}
	if h2.payloadSize() != 40 {
		t.Fatalf("payloadSize() = %d, want 40", h2.payloadSize())
	}
}

func TestFooterSize(t *testing.T) {
	var f Footer
	size := binary.Size(f)
	if size != footerSize {
		t.Fatalf("Footer binary size = %d, want %d", size, footerSize)
	}
}
