package farc

import (
	"bytes"
	"math/rand"
	"testing"
)

func TestCompressDecompressRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	cases := []struct {
		name string
		kind Compression
		data []byte
	}{
		{"none/empty", CompressionNone, nil},
		{"none/short", CompressionNone, []byte("hello")},
		{"fastlz/compressible", CompressionFastLZ, bytes.Repeat([]byte("abcdefgh"), 2048)},
		{"deflate/compressible", CompressionDeflate, bytes.Repeat([]byte("abcdefgh"), 2048)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dst := make([]byte, maxBlockSize*2)
			n := compressBlock(tc.kind, dst, tc.data)

			if tc.kind == CompressionNone {
				if n != len(tc.data) {
					t.Fatalf("compressBlock(none) = %d, want %d", n, len(tc.data))
				}
				return
			}

			out := make([]byte, len(tc.data))
			got := decompressBlock(tc.kind, out, len(tc.data), dst[:n])
			if got != len(tc.data) {
				t.Fatalf("decompressBlock = %d, want %d", got, len(tc.data))
			}
			if !bytes.Equal(out, tc.data) {
				t.Fatalf("round trip mismatch for %s", tc.name)
			}
		})
	}

	_ = rng
}

func TestCompressBlockDeclinesSmallFastLZ(t *testing.T) {
	dst := make([]byte, maxBlockSize)
	src := []byte("short")
	n := compressBlock(CompressionFastLZ, dst, src)
	if n != len(src) {
		t.Fatalf("expected decline (copy-through) for <16 byte input, got n=%d", n)
	}
}

func TestDecompressBlockRejectsGarbage(t *testing.T) {
	dst := make([]byte, 64)
	n := decompressBlock(CompressionFastLZ, dst, 64, []byte{0xff, 0xff, 0xff, 0xff})
	if n != 0 {
		t.Fatalf("expected 0 on corrupt input, got %d", n)
	}
}
