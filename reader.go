package farc

import (
	"bytes"
	"io"
)

// footerSearchWindow bounds how much of the tail openRead buffers before
// scanning for the footer cookie. The footer must end the file exactly,
// so only one position in the window can ever match; the window just
// avoids reading files larger than it in their entirety.
const footerSearchWindow = 1 << 20

func openRead(ops Ops, path string) (*Archive, *Info, error) {
	h, err := ops.OpenHandle(path, ModeRead)
	if err != nil {
		return nil, nil, wrapf(ErrIO, "open %s for read", path)
	}

	a := newArchive(ops, ModeRead, path, h)

	size, err := h.Seek(0, SeekEnd)
	if err != nil {
		return nil, nil, wrapf(ErrIO, "seek end of %s", path)
	}

	window := int64(footerSearchWindow)
	if window > size {
		window = size
	}
	tailStart := size - window
	if _, err := h.Seek(tailStart, SeekSet); err != nil {
		return nil, nil, wrapf(ErrIO, "seek %s", path)
	}
	tail := make([]byte, window)
	if _, err := io.ReadFull(h, tail); err != nil {
		return nil, nil, wrapf(ErrFormat, "read tail of %s", path)
	}

	footerPos, footer, err := locateFooter(tail, tailStart, size)
	if err != nil {
		return nil, nil, err
	}

	tocStart := footerPos - int64(footer.TOCCompressed)
	if tocStart < 0 {
		return nil, nil, wrapf(ErrFormat, "%s: footer claims a TOC larger than the file", path)
	}

	if _, err := h.Seek(tocStart, SeekSet); err != nil {
		return nil, nil, wrapf(ErrIO, "seek TOC of %s", path)
	}

	toc, err := readTOCBody(h, footer, a.cache)
	if err != nil {
		return nil, nil, err
	}

	d := newDigest()
	d.Input(toc)
	if d.Result() != footer.TOCHash {
		return nil, nil, wrapf(ErrIntegrity, "%s: TOC hash mismatch", path)
	}

	var header Header
	if err := readBinary(bytes.NewReader(toc), &header); err != nil {
		return nil, nil, wrapf(ErrFormat, "%s: malformed TOC header", path)
	}
	if header.Cookie != magicCookieHeader {
		return nil, nil, wrapf(ErrFormat, "%s: bad TOC cookie", path)
	}
	if header.Version != versionCurrent {
		return nil, nil, wrapf(ErrFormat, "%s: unsupported version %d", path, header.Version)
	}

	a.toc = toc
	a.header = header
	a.footer = footer
	a.base = 0

	return a, &Info{Header: header, Footer: footer}, nil
}

// locateFooter scans tail (the last len(tail) bytes of the file, starting
// at absolute offset tailBase) backwards for the footer cookie, accepting
// only a match whose distance to EOF equals the fixed footer size.
func locateFooter(tail []byte, tailBase, size int64) (int64, Footer, error) {
	var cookie [4]byte
	writeLE32(cookie[:], magicCookieFooter)

	for i := len(tail) - footerSize; i >= 0; i-- {
		if !bytes.Equal(tail[i:i+4], cookie[:]) {
			continue
		}
		if tailBase+int64(i)+footerSize != size {
			continue
		}
		var footer Footer
		if err := readBinary(bytes.NewReader(tail[i:i+footerSize]), &footer); err != nil {
			continue
		}
		return tailBase + int64(i), footer, nil
	}
	return 0, Footer{}, wrapf(ErrFormat, "footer cookie not found in last %d bytes", len(tail))
}

func writeLE32(dst []byte, v uint32) {
	dst[0] = byte(v)
	dst[1] = byte(v >> 8)
	dst[2] = byte(v >> 16)
	dst[3] = byte(v >> 24)
}

// readTOCBody reads footer.TOCCompressed bytes from the current position
// of h and returns the footer.TOCOriginal logical bytes they decode to:
// a straight copy if the TOC was stored raw, or a sequence of
// blockHeader-prefixed blocks otherwise, using the same block codec as
// file data.
func readTOCBody(h Handle, footer Footer, scratch []byte) ([]byte, error) {
	out := make([]byte, 0, footer.TOCOriginal)

	if footer.TOCCompression == CompressionNone {
		raw := make([]byte, footer.TOCCompressed)
		if _, err := io.ReadFull(h, raw); err != nil {
			return nil, wrapf(ErrFormat, "read raw TOC")
		}
		return raw, nil
	}

	remaining := int64(footer.TOCCompressed)
	for remaining > 0 {
		var hdr blockHeader
		if err := readBinary(h, &hdr); err != nil {
			return nil, wrapf(ErrFormat, "read TOC block header")
		}
		remaining -= blockHeaderSize

		payloadLen := int(hdr.payloadSize())
		payload := make([]byte, payloadLen)
		if _, err := io.ReadFull(h, payload); err != nil {
			return nil, wrapf(ErrFormat, "read TOC block payload")
		}
		remaining -= int64(payloadLen)

		if hdr.literal() {
			out = append(out, payload...)
			continue
		}

		if int(hdr.Original) > len(scratch) {
			return nil, wrapf(ErrFormat, "TOC block too large")
		}
		n := decompressBlock(footer.TOCCompression, scratch[:hdr.Original], int(hdr.Original), payload)
		if n == 0 {
			return nil, wrapf(ErrFormat, "corrupt TOC block")
		}
		out = append(out, scratch[:n]...)
	}

	if uint32(len(out)) != footer.TOCOriginal {
		return nil, wrapf(ErrFormat, "TOC size mismatch")
	}
	return out, nil
}

// ---- TOC accessors (read mode) --------------------------------------------

func (a *Archive) containerAt(off Offset) Container {
	var c Container
	_ = readBinary(bytes.NewReader(a.toc[off:off+containerSize]), &c)
	return c
}

func (a *Archive) entryAt(off Offset) Entry {
	var e Entry
	_ = readBinary(bytes.NewReader(a.toc[off:off+entrySize]), &e)
	return e
}

func (a *Archive) stringAt(off Offset) string {
	if !off.Valid() {
		return ""
	}
	end := int(off)
	for end < len(a.toc) && a.toc[end] != 0 {
		end++
	}
	return string(a.toc[off:end])
}

func (a *Archive) hashAt(index uint32) Hash {
	base := int(a.header.HashesOffset) + int(index)*20
	var h Hash
	copy(h[:], a.toc[base:base+20])
	return h
}

// findContainer walks path's segments against the TOC's container tree,
// read-mode counterpart to findBuildContainer in toc.go.
func (a *Archive) findContainer(path string) (Offset, bool) {
	offset := a.header.ContainerOffset
	if path == "" {
		return offset, true
	}

	curr := path
	for {
		term := stringsIndexByte(curr, '/')
		name := curr
		if term >= 0 {
			name = curr[:term]
		}

		parent := a.containerAt(offset)
		child := parent.Children
		found := false
		for child.Valid() {
			c := a.containerAt(child)
			if a.stringAt(c.Name) == name {
				offset = child
				found = true
				break
			}
			child = c.Next
		}
		if !found {
			return InvalidOffset, false
		}
		if term < 0 {
			return offset, true
		}
		curr = curr[term+1:]
	}
}

// findEntry resolves the final path segment against the owning
// container's contiguous entry run.
func (a *Archive) findEntry(path string) (Entry, Offset, bool) {
	dir := ""
	name := path
	if idx := lastSlash(path); idx >= 0 {
		dir, name = path[:idx], path[idx+1:]
	}

	containerOff, ok := a.findContainer(dir)
	if !ok {
		return Entry{}, InvalidOffset, false
	}
	container := a.containerAt(containerOff)
	if !container.EntryOffset.Valid() {
		return Entry{}, InvalidOffset, false
	}

	// Scan in reverse so that a path opened for write more than once
	// resolves to the most recently written entry, while earlier ones
	// remain reachable only by content hash.
	base := container.EntryOffset
	for i := int64(container.EntryCount) - 1; i >= 0; i-- {
		off := base + Offset(uint32(i)*entrySize)
		e := a.entryAt(off)
		if a.stringAt(e.Name) == name {
			return e, off, true
		}
	}
	return Entry{}, InvalidOffset, false
}

func lastSlash(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '/' {
			return i
		}
	}
	return -1
}

// findByHash linearly scans the hash table for an exact SHA-1 match, the
// resolution path for an "@"-prefixed hex-digest lookup.
func (a *Archive) findByHash(want Hash) (Entry, bool) {
	base := a.header.EntryOffset
	for i := uint32(0); i < a.header.EntryCount; i++ {
		if a.hashAt(i) == want {
			return a.entryAt(base + Offset(i*entrySize)), true
		}
	}
	return Entry{}, false
}
