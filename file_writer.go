package farc

// FileWriter is a write-side file stream bound to one pending writer
// entry. It exclusively holds the archive's scratch cache until Close.
type FileWriter struct {
	archive *Archive
	entry   *writerEntry
	buf     []byte
	fill    uint32
	closed  bool
}

// Write feeds bytes through the file's content digest and, for
// compressed entries, accumulates them into the per-file staging buffer,
// flushing a full block every time it fills to maxBlockSize. Uncompressed
// entries are written straight through the I/O handle.
func (fw *FileWriter) Write(p []byte) (int, error) {
	if fw.closed {
		return 0, wrapf(ErrMode, "write: file already closed")
	}
	a := fw.archive
	entry := fw.entry
	entry.hash.Input(p)

	if entry.compression == CompressionNone {
		n, err := a.h.Write(p)
		entry.sizeOriginal += uint32(n)
		entry.sizeCompressed += uint32(n)
		a.offsetOriginal += uint32(n)
		a.offsetCompressed += uint32(n)
		if err != nil {
			return n, wrapf(ErrIO, "write %s", entry.path)
		}
		return n, nil
	}

	written := 0
	for len(p) > 0 {
		room := maxBlockSize - int(fw.fill)
		n := room
		if n > len(p) {
			n = len(p)
		}
		copy(fw.buf[fw.fill:], p[:n])
		fw.fill += uint32(n)
		p = p[n:]
		written += n

		if fw.fill == maxBlockSize {
			if err := compressAndEmitBlock(a, entry, fw.buf[:maxBlockSize]); err != nil {
				return written, err
			}
			fw.fill = 0
		}
	}
	return written, nil
}

// Close finalizes the file: flushes any residual buffered bytes as a
// final short block, releases the archive's scratch cache, and returns
// the resulting directory entry (name, compression, sizes, content hash).
func (fw *FileWriter) Close() (*DirEntry, error) {
	if fw.closed {
		return nil, wrapf(ErrMode, "close: file already closed")
	}
	fw.closed = true
	a := fw.archive
	entry := fw.entry

	var err error
	if fw.fill > 0 {
		err = compressAndEmitBlock(a, entry, fw.buf[:fw.fill])
		fw.fill = 0
	}

	entry.finalHash = entry.hash.Result()
	a.releaseCache(fw)

	info := &DirEntry{
		Name:        lastSegment(entry.path),
		Type:        EntryFile,
		Compression: entry.compression,
		Size: SizePair{
			Original:   entry.sizeOriginal,
			Compressed: entry.sizeCompressed,
		},
		Hash: entry.finalHash,
	}
	return info, err
}
