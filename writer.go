package farc

import "strings"

// writerEntry is one pending file recorded between OpenFile and the TOC
// build that happens in Archive.Close. It mirrors fa_writer_entry_t.
type writerEntry struct {
	path        string
	container   Offset
	dataOffset  uint32
	compression Compression

	sizeOriginal   uint32
	sizeCompressed uint32

	hash      *digest
	finalHash Hash
}

func openWrite(ops Ops, path string, alignment uint32) (*Archive, *Info, error) {
	h, err := ops.OpenHandle(path, ModeWrite)
	if err != nil {
		return nil, nil, wrapf(ErrIO, "open %s for write", path)
	}
	a := newArchive(ops, ModeWrite, path, h)
	a.alignment = alignment
	return a, nil, nil
}

// normalizePath folds backslashes to '/' and collapses duplicate (and
// leading) separators, the same character-by-character pass fa_open_file
// runs over a write-mode filename before recording it.
func normalizePath(path string) string {
	var b strings.Builder
	b.Grow(len(path))
	var last byte
	for i := 0; i < len(path); i++ {
		c := path[i]
		if c == '\\' {
			c = '/'
		}
		if c == '/' && (last == '/' || last == 0) {
			continue
		}
		b.WriteByte(c)
		last = c
	}
	return b.String()
}

func lastSegment(path string) string {
	if idx := strings.LastIndexByte(path, '/'); idx >= 0 {
		return path[idx+1:]
	}
	return path
}

func alignUp(offset, alignment uint32) uint32 {
	if alignment == 0 {
		return offset
	}
	rem := offset % alignment
	if rem == 0 {
		return offset
	}
	return offset + (alignment - rem)
}

// CreateFile begins a new file write, the write-mode counterpart to
// Archive.OpenFile. Only one write-file may be open on an archive handle
// at a time: a second call fails with ErrMode until the first is Closed.
// Opening the same logical path twice is permitted and appends a second,
// independent entry; only the later one is reachable by path afterward,
// though both remain reachable by content hash.
func (a *Archive) CreateFile(path string, compression Compression) (*FileWriter, error) {
	if a.mode != ModeWrite {
		return nil, wrapf(ErrMode, "open %s: archive not in write mode", path)
	}
	if a.cacheOwner != nil {
		return nil, wrapf(ErrMode, "open %s: another write file is already open", path)
	}

	dataOffset := a.offsetCompressed
	if a.alignment > 0 {
		padded := alignUp(a.offsetCompressed, a.alignment)
		if pad := padded - a.offsetCompressed; pad > 0 {
			zeros := make([]byte, pad)
			if _, err := a.h.Write(zeros); err != nil {
				return nil, wrapf(ErrIO, "write alignment padding for %s", path)
			}
			a.offsetCompressed = padded
		}
		dataOffset = padded
	}

	entry := &writerEntry{
		path:        normalizePath(path),
		container:   InvalidOffset,
		dataOffset:  dataOffset,
		compression: compression,
		hash:        newDigest(),
	}
	a.entries = append(a.entries, entry)

	fw := &FileWriter{
		archive: a,
		entry:   entry,
		buf:     make([]byte, maxBlockSize),
	}
	a.claimCache(fw)
	return fw, nil
}

// compressAndEmitBlock compresses data (at most maxBlockSize bytes) into
// the archive's scratch cache, writes the resulting block (or a literal
// fallback if the codec's output is not smaller), and advances both the
// entry's and the archive's size counters.
func compressAndEmitBlock(a *Archive, entry *writerEntry, data []byte) error {
	compressedLen := compressBlock(entry.compression, a.cache, data)

	var hdr blockHeader
	var payload []byte
	if compressedLen >= len(data) {
		hdr = blockHeader{Original: uint16(len(data)), Compressed: uint16(len(data)) | compressionSizeIgnore}
		payload = data
	} else {
		hdr = blockHeader{Original: uint16(len(data)), Compressed: uint16(compressedLen)}
		payload = a.cache[:compressedLen]
	}

	if err := writeBinary(a.h, hdr); err != nil {
		return wrapf(ErrIO, "write block header")
	}
	if _, err := a.h.Write(payload); err != nil {
		return wrapf(ErrIO, "write block payload")
	}
	observeCompress(entry.compression, hdr.literal())
	bytesWrittenTotal.Add(float64(blockHeaderSize + len(payload)))

	entry.sizeOriginal += uint32(len(data))
	entry.sizeCompressed += blockHeaderSize + uint32(len(payload))
	a.offsetOriginal += uint32(len(data))
	a.offsetCompressed += blockHeaderSize + uint32(len(payload))

	return nil
}
