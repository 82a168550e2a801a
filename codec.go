package farc

import (
	"bytes"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/s2"
)

// compressBlock encodes src into a caller-owned destination, returning the
// number of bytes written. It never returns an error — a codec that
// declines (too small, incompressible) returns len(src) or more, and the
// caller (file/TOC writer) compares that against len(src) to decide
// whether to store the block raw.
func compressBlock(kind Compression, dst []byte, src []byte) int {
	switch kind {
	case CompressionNone:
		return copy(dst, src)

	case CompressionFastLZ:
		if len(src) < 16 {
			return copy(dst, src)
		}
		out := s2.EncodeBetter(make([]byte, s2.MaxEncodedLen(len(src))), src)
		return copy(dst, out)

	case CompressionDeflate:
		var buf bytes.Buffer
		fw, _ := flate.NewWriter(&buf, flate.BestSpeed)
		_, _ = fw.Write(src)
		_ = fw.Close()
		if buf.Len() >= len(src) {
			return copy(dst, src)
		}
		return copy(dst, buf.Bytes())

	default:
		return copy(dst, src)
	}
}

// decompressBlock is the decompress_block contract: expand src (exactly
// originalSize logical bytes) into dst. It returns 0 on failure and
// originalSize on success — callers never see partial output.
func decompressBlock(kind Compression, dst []byte, originalSize int, src []byte) int {
	switch kind {
	case CompressionFastLZ:
		out, err := s2.Decode(dst[:originalSize], src)
		if err != nil || len(out) != originalSize {
			return 0
		}
		return originalSize

	case CompressionDeflate:
		fr := flate.NewReader(bytes.NewReader(src))
		defer fr.Close()
		n := 0
		for n < originalSize {
			m, err := fr.Read(dst[n:originalSize])
			n += m
			if err != nil {
				break
			}
		}
		if n != originalSize {
			return 0
		}
		return originalSize

	default:
		return 0
	}
}
