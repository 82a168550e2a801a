// Package farc implements the FARC content-addressable file archive
// format: a self-describing container of block-compressed file streams
// addressable by path or by SHA-1 content hash.
//
// An archive is laid out as [data region][TOC][footer]. Readers locate
// the footer by scanning backwards from the end of the file for its
// cookie, decompress and digest-verify the table of contents, then
// resolve files by walking a directory tree or by a linear scan of the
// content-hash table. Writers append file streams sequentially and can
// only finalize an archive once, on Close.
package farc

import (
	"encoding/binary"
	"io"
)

// Offset is a 32-bit byte offset, either relative to the start of the TOC
// (container and entry fields) or relative to the start of the data
// region (entry.Data). InvalidOffset is the "none" sentinel.
type Offset uint32

// InvalidOffset marks an absent offset (no parent, no sibling, no name, ...).
const InvalidOffset Offset = 0xFFFFFFFF

// Valid reports whether the offset refers to real data.
func (o Offset) Valid() bool { return o != InvalidOffset }

// Compression identifies a block codec.
type Compression uint32

const (
	// CompressionNone stores blocks verbatim; compress_block/decompress_block
	// are never invoked.
	CompressionNone Compression = 0
	// CompressionFastLZ is the 'FLZ0' tag; see codec.go for the concrete codec.
	CompressionFastLZ Compression = 0x464C5A30
	// CompressionDeflate is the 'ZLDF' tag.
	CompressionDeflate Compression = 0x5A4C4446
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionFastLZ:
		return "fastlz"
	case CompressionDeflate:
		return "deflate"
	default:
		return "unknown"
	}
}

const (
	magicCookieHeader uint32 = 0x46415248 // "FARH"
	magicCookieFooter uint32 = 0x46415246 // "FARF"

	versionCurrent uint32 = 1

	// maxBlockSize is the largest number of logical bytes a single block
	// may hold, for both file data and TOC blocks.
	maxBlockSize = 16384

	// compressionSizeIgnore is the literal-block bit (0x8000) of a block
	// header's Compressed field.
	compressionSizeIgnore uint16 = 0x8000

	// archiveCacheSize is the scratch buffer every archive handle owns:
	// four maximum-size blocks.
	archiveCacheSize = maxBlockSize * 4

	// footerSize is the fixed on-disk size of Footer: 56 bytes, padded past
	// the 44 bytes its visible fields sum to so the trailer has room to
	// grow without shifting the backward footer scan.
	footerSize = 56

	// EntryType / container entry kinds surfaced to directory listers.
)

// EntryType distinguishes files from directories in a DirEntry.
type EntryType int

const (
	EntryFile EntryType = 0
	EntryDir  EntryType = 1
)

// Hash is a 20-byte SHA-1 content digest.
type Hash [20]byte

// Container is one node of the TOC's directory tree. All offset fields
// are relative to the start of the TOC, or InvalidOffset.
type Container struct {
	Parent       Offset
	Children     Offset
	Next         Offset // next sibling
	Name         Offset // offset into the TOC string pool
	EntryOffset  Offset // offset of the first owned entry in the entry array
	EntryCount   uint32
}

const containerSize = 4 * 6

// Entry is one file record in the TOC. Name is relative to the TOC;
// Data is relative to the start of the data region.
type Entry struct {
	Data           Offset
	Name           Offset
	Compression    Compression
	BlockSize      uint32
	SizeOriginal   uint32
	SizeCompressed uint32
}

const entrySize = 4 * 6

// blockHeader prefixes every block in a compressed stream (file data or TOC).
type blockHeader struct {
	Original   uint16
	Compressed uint16
}

const blockHeaderSize = 4

// literal reports whether the block's payload is stored uncompressed.
func (b blockHeader) literal() bool { return b.Compressed&compressionSizeIgnore != 0 }

// payloadSize is the number of bytes following the header on disk.
func (b blockHeader) payloadSize() uint16 { return b.Compressed &^ compressionSizeIgnore }

// Header is the first structure inside the TOC.
type Header struct {
	Cookie          uint32
	Version         uint32
	Size            uint32
	Flags           uint32
	ContainerOffset Offset
	ContainerCount  uint32
	EntryOffset     Offset
	EntryCount      uint32
	HashesOffset    Offset
}

const headerSize = 4*4 + 4*2 + 4*2 + 4

// Footer is the fixed-size trailer that ends every archive exactly.
// Reserved is unused on read and zeroed on write; it pads the struct out
// to the mandated 56-byte footer (the visible fields alone sum to 44).
type Footer struct {
	Cookie         uint32
	TOCCompression Compression
	TOCOriginal    uint32
	TOCCompressed  uint32
	TOCHash        Hash
	DataOriginal   uint32
	DataCompressed uint32
	Reserved       [footerSize - 44]byte
}

// Info is returned from Open (read mode) and Close (write mode) with a
// snapshot of the archive's header and footer.
type Info struct {
	Header Header
	Footer Footer
}

func readBinary(r io.Reader, v any) error {
	return binary.Read(r, binary.LittleEndian, v)
}

func writeBinary(w io.Writer, v any) error {
	return binary.Write(w, binary.LittleEndian, v)
}
