package farc

import (
	"encoding/hex"
	"io"
)

// FileReader is a read-side file stream. Uncompressed entries support
// random access; compressed entries are forward-only, so Seek rejects
// them outright rather than silently reading from the start.
type FileReader struct {
	archive *Archive
	entry   Entry
	dataStart int64
	pos       int64
	closed    bool

	blockRemain  []byte
	nextBlockPos int64
}

// OpenFile resolves path to a file entry and returns a reader over its
// content. A leading "@" followed by 40 hex characters resolves by
// content hash instead of by directory path.
func (a *Archive) OpenFile(path string) (*FileReader, error) {
	if a.mode != ModeRead {
		return nil, wrapf(ErrMode, "open %s: archive not in read mode", path)
	}
	entry, ok := resolveEntry(a, path)
	if !ok {
		return nil, wrapf(ErrNotFound, "open %s", path)
	}

	compressed := entry.Compression != CompressionNone
	if compressed && a.cacheOwner != nil {
		return nil, wrapf(ErrMode, "open %s: another compressed file is already open", path)
	}

	fr := &FileReader{
		archive:      a,
		entry:        entry,
		dataStart:    a.base + int64(entry.Data),
		nextBlockPos: a.base + int64(entry.Data),
	}
	if compressed {
		a.claimCache(fr)
	}
	return fr, nil
}

func resolveEntry(a *Archive, path string) (Entry, bool) {
	if hash, ok := parseHashPath(path); ok {
		return a.findByHash(hash)
	}
	e, _, ok := a.findEntry(normalizePath(path))
	return e, ok
}

func parseHashPath(path string) (Hash, bool) {
	if len(path) != 41 || path[0] != '@' {
		return Hash{}, false
	}
	raw, err := hex.DecodeString(path[1:])
	if err != nil || len(raw) != 20 {
		return Hash{}, false
	}
	var h Hash
	copy(h[:], raw)
	return h, true
}

// Read fills p from the file's uncompressed content, decompressing one
// block at a time for compressed entries.
func (fr *FileReader) Read(p []byte) (int, error) {
	if fr.closed {
		return 0, wrapf(ErrMode, "read: file already closed")
	}
	a := fr.archive

	if fr.entry.Compression == CompressionNone {
		remaining := int64(fr.entry.SizeOriginal) - fr.pos
		if remaining <= 0 {
			return 0, io.EOF
		}
		if int64(len(p)) > remaining {
			p = p[:remaining]
		}
		if _, err := a.h.Seek(fr.dataStart+fr.pos, SeekSet); err != nil {
			return 0, wrapf(ErrIO, "seek file data")
		}
		n, err := a.h.Read(p)
		fr.pos += int64(n)
		if err != nil && err != io.EOF {
			return n, wrapf(ErrIO, "read file data")
		}
		return n, nil
	}

	total := 0
	for len(p) > 0 {
		if len(fr.blockRemain) == 0 {
			if uint32(fr.pos) >= fr.entry.SizeOriginal {
				if total > 0 {
					return total, nil
				}
				return 0, io.EOF
			}
			if err := fr.fillBlock(); err != nil {
				return total, err
			}
		}
		n := copy(p, fr.blockRemain)
		fr.blockRemain = fr.blockRemain[n:]
		fr.pos += int64(n)
		p = p[n:]
		total += n
	}
	return total, nil
}

func (fr *FileReader) fillBlock() error {
	a := fr.archive
	if _, err := a.h.Seek(fr.nextBlockPos, SeekSet); err != nil {
		return wrapf(ErrIO, "seek block header")
	}
	var hdr blockHeader
	if err := readBinary(a.h, &hdr); err != nil {
		return wrapf(ErrFormat, "read block header")
	}
	payload := make([]byte, hdr.payloadSize())
	if _, err := io.ReadFull(a.h, payload); err != nil {
		return wrapf(ErrFormat, "read block payload")
	}
	fr.nextBlockPos += blockHeaderSize + int64(hdr.payloadSize())

	bytesReadTotal.Add(float64(blockHeaderSize + len(payload)))

	if hdr.literal() {
		fr.blockRemain = payload
		return nil
	}

	if int(hdr.Original) > len(a.cache) {
		return wrapf(ErrFormat, "block exceeds scratch cache")
	}
	n := decompressBlock(fr.entry.Compression, a.cache[:hdr.Original], int(hdr.Original), payload)
	if n == 0 {
		return wrapf(ErrFormat, "corrupt block")
	}
	observeDecompress(fr.entry.Compression)
	fr.blockRemain = a.cache[:n]
	return nil
}

// Seek repositions an uncompressed file's read cursor, returning the new
// absolute offset on success. Compressed entries reject Seek with
// ErrMode rather than desynchronizing the block cursor.
func (fr *FileReader) Seek(offset int64, whence SeekWhence) (int64, error) {
	if fr.entry.Compression != CompressionNone {
		return 0, wrapf(ErrMode, "seek: entry is compressed")
	}

	var base int64
	switch whence {
	case SeekCurrent:
		base = fr.pos
	case SeekEnd:
		base = int64(fr.entry.SizeOriginal)
	}
	pos := base + offset
	if pos < 0 || pos > int64(fr.entry.SizeOriginal) {
		return 0, wrapf(ErrFormat, "seek out of range")
	}
	fr.pos = pos
	return fr.pos, nil
}

// Tell reports the current logical read position.
func (fr *FileReader) Tell() (int64, error) { return fr.pos, nil }

// Close releases the reader's claim on the archive's scratch cache.
func (fr *FileReader) Close() error {
	if fr.closed {
		return wrapf(ErrMode, "close: file already closed")
	}
	fr.closed = true
	fr.archive.releaseCache(fr)
	return nil
}
