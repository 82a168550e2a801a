package farc

import (
	"bytes"
)

// buildContainer is the pre-relocation, in-memory form of Container: its
// offset fields are raw container-array byte offsets (index*containerSize)
// or string-pool byte offsets, not yet shifted to be relative to the TOC.
// The whole tree is constructed this way and relocated in one pass once
// every container and entry exists.
type buildContainer = Container

type stringPool struct {
	buf []byte
}

func (s *stringPool) add(str string) Offset {
	off := Offset(len(s.buf))
	s.buf = append(s.buf, str...)
	s.buf = append(s.buf, 0)
	return off
}

func (s *stringPool) at(off Offset) string {
	if !off.Valid() {
		return ""
	}
	end := int(off)
	for end < len(s.buf) && s.buf[end] != 0 {
		end++
	}
	return string(s.buf[off:end])
}

func containerOffset(index int) Offset { return Offset(index * containerSize) }
func containerIndex(off Offset) int    { return int(off) / containerSize }

// findBuildContainer walks path's non-terminal segments against the
// children/next sibling lists under construction, exactly as
// fa_archive.c's static findContainer does, operating on raw
// (pre-relocation) offsets.
func findBuildContainer(path string, containers []buildContainer, pool *stringPool) Offset {
	curr := path
	offset := Offset(0)

	for {
		term := stringsIndexByte(curr, '/')
		if term < 0 {
			return offset
		}
		name := curr[:term]

		parent := containers[containerIndex(offset)]
		child := parent.Children
		found := false
		for child.Valid() {
			c := containers[containerIndex(child)]
			if pool.at(c.Name) == name {
				found = true
				break
			}
			child = c.Next
		}
		if !found {
			return InvalidOffset
		}
		offset = child
		curr = curr[term+1:]
	}
}

func stringsIndexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

// buildTOC turns the archive's pending writer entries into the five
// serialized TOC blocks (header, containers, entries, hashes, strings)
// with fully relocated offsets: it builds the container tree from each
// entry's path, groups entries by owning container, then shifts every
// intra-TOC offset to be relative to the TOC start.
func (a *Archive) buildTOC() (header Header, containersBuf, entriesBuf, hashesBuf, stringsBuf []byte) {
	containers := []buildContainer{{
		Parent:      InvalidOffset,
		Children:    InvalidOffset,
		Next:        InvalidOffset,
		Name:        InvalidOffset,
		EntryOffset: InvalidOffset,
		EntryCount:  0,
	}}
	pool := &stringPool{}

	// 1-2: construct containers for every non-terminal path segment.
	for _, we := range a.entries {
		curr := we.path
		parent := Offset(0)

		for {
			term := stringsIndexByte(curr, '/')
			if term < 0 {
				break
			}
			segment := curr[:term]
			prefix := we.path[:len(we.path)-len(curr)+term+1]

			actual := findBuildContainer(prefix, containers, pool)
			if !actual.Valid() {
				nameOff := pool.add(segment)
				parentIdx := containerIndex(parent)
				newIdx := len(containers)
				containers = append(containers, buildContainer{
					Parent:      parent,
					Children:    InvalidOffset,
					Next:        containers[parentIdx].Children,
					Name:        nameOff,
					EntryOffset: InvalidOffset,
					EntryCount:  0,
				})
				containers[parentIdx].Children = containerOffset(newIdx)
				parent = containerOffset(newIdx)
			} else {
				parent = actual
			}
			curr = curr[term+1:]
		}
	}

	// 3: resolve each writer entry's owning container. A path with no "/"
	// (including the empty path) has no non-terminal segment to walk, so
	// findBuildContainer returns the root immediately.
	for _, we := range a.entries {
		we.container = findBuildContainer(we.path, containers, pool)
	}

	// 4: group entries by container, in container index order. Bucket
	// once by container offset, preserving each entry's original
	// insertion order within its bucket, rather than rescanning the full
	// writer-entry list once per container.
	byContainer := make(map[Offset][]*writerEntry, len(containers))
	for _, we := range a.entries {
		byContainer[we.container] = append(byContainer[we.container], we)
	}

	var entries []Entry
	var hashes []Hash
	for i := 0; i <= len(containers); i++ {
		var containerOff Offset
		hasContainer := i < len(containers)
		if hasContainer {
			containerOff = containerOffset(i)
		} else {
			containerOff = InvalidOffset
		}

		for _, we := range byContainer[containerOff] {
			if hasContainer && !containers[i].EntryOffset.Valid() {
				containers[i].EntryOffset = Offset(len(entries) * entrySize)
			}

			e := Entry{
				Data:           Offset(we.dataOffset),
				Compression:    we.compression,
				BlockSize:      maxBlockSize,
				SizeOriginal:   we.sizeOriginal,
				SizeCompressed: we.sizeCompressed,
			}
			if we.path != "" {
				e.Name = pool.add(lastSegment(we.path))
			} else {
				e.Name = InvalidOffset
			}

			entries = append(entries, e)
			hashes = append(hashes, we.finalHash)

			if hasContainer {
				containers[i].EntryCount++
			}
		}
	}

	// 5: relocate every offset to be TOC-absolute.
	containersLen := Offset(len(containers) * containerSize)
	entriesLen := Offset(len(entries) * entrySize)
	hashesLen := Offset(len(hashes) * 20)

	nameBase := headerSize + containersLen + entriesLen + hashesLen
	entryArrayBase := Offset(headerSize) + containersLen

	relocate := func(off Offset, delta Offset) Offset {
		if !off.Valid() {
			return InvalidOffset
		}
		return off + delta
	}

	for i := range containers {
		containers[i].Parent = relocate(containers[i].Parent, headerSize)
		containers[i].Children = relocate(containers[i].Children, headerSize)
		containers[i].Next = relocate(containers[i].Next, headerSize)
		containers[i].Name = relocate(containers[i].Name, nameBase)
		containers[i].EntryOffset = relocate(containers[i].EntryOffset, entryArrayBase)
	}
	for i := range entries {
		entries[i].Name = relocate(entries[i].Name, nameBase)
	}

	// 6: header.
	header = Header{
		Cookie:          magicCookieHeader,
		Version:         versionCurrent,
		Flags:           0,
		ContainerOffset: headerSize,
		ContainerCount:  uint32(len(containers)),
		EntryOffset:     entryArrayBase,
		EntryCount:      uint32(len(entries)),
		HashesOffset:    entryArrayBase + entriesLen,
	}
	header.Size = uint32(headerSize) + uint32(containersLen) + uint32(entriesLen) + uint32(hashesLen) + uint32(len(pool.buf))

	containersBuf = marshalSlice(containers, marshalContainer)
	entriesBuf = marshalSlice(entries, marshalEntry)
	hashesBuf = make([]byte, 0, len(hashes)*20)
	for _, h := range hashes {
		hashesBuf = append(hashesBuf, h[:]...)
	}
	stringsBuf = pool.buf

	return header, containersBuf, entriesBuf, hashesBuf, stringsBuf
}

func marshalContainer(c Container) []byte {
	var buf bytes.Buffer
	_ = writeBinary(&buf, c)
	return buf.Bytes()
}

func marshalEntry(e Entry) []byte {
	var buf bytes.Buffer
	_ = writeBinary(&buf, e)
	return buf.Bytes()
}

func marshalSlice[T any](items []T, marshal func(T) []byte) []byte {
	var out []byte
	for _, it := range items {
		out = append(out, marshal(it)...)
	}
	return out
}

// writeTOC is the write-mode half of Archive.Close: it builds the TOC
// (above), streams it through the block codec in maxBlockSize chunks
// (raw, if tocCompression is CompressionNone), digests the uncompressed
// bytes, and appends the footer.
func (a *Archive) writeTOC(tocCompression Compression) (*Info, error) {
	header, containersBuf, entriesBuf, hashesBuf, stringsBuf := a.buildTOC()

	var headerBuf bytes.Buffer
	if err := writeBinary(&headerBuf, header); err != nil {
		return nil, wrapf(ErrFormat, "marshal TOC header")
	}

	blocks := [][]byte{headerBuf.Bytes(), containersBuf, entriesBuf, hashesBuf, stringsBuf}

	footer := Footer{Cookie: magicCookieFooter, TOCCompression: tocCompression}
	d := newDigest()

	pack := make([]byte, maxBlockSize)
	for {
		packed := 0
		for i := range blocks {
			if packed == maxBlockSize {
				break
			}
			take := maxBlockSize - packed
			if take > len(blocks[i]) {
				take = len(blocks[i])
			}
			copy(pack[packed:], blocks[i][:take])
			blocks[i] = blocks[i][take:]
			packed += take
		}
		if packed == 0 {
			break
		}

		chunk := pack[:packed]
		d.Input(chunk)

		if tocCompression == CompressionNone {
			if _, err := a.h.Write(chunk); err != nil {
				return nil, wrapf(ErrIO, "write TOC block")
			}
			footer.TOCOriginal += uint32(packed)
			footer.TOCCompressed += uint32(packed)
			continue
		}

		compressedLen := compressBlock(tocCompression, a.cache, chunk)
		var hdr blockHeader
		var payload []byte
		if compressedLen >= packed {
			hdr = blockHeader{Original: uint16(packed), Compressed: uint16(packed) | compressionSizeIgnore}
			payload = chunk
		} else {
			hdr = blockHeader{Original: uint16(packed), Compressed: uint16(compressedLen)}
			payload = a.cache[:compressedLen]
		}

		if err := writeBinary(a.h, hdr); err != nil {
			return nil, wrapf(ErrIO, "write TOC block header")
		}
		if _, err := a.h.Write(payload); err != nil {
			return nil, wrapf(ErrIO, "write TOC block payload")
		}

		footer.TOCOriginal += uint32(packed)
		footer.TOCCompressed += blockHeaderSize + uint32(len(payload))
	}

	footer.TOCHash = d.Result()
	footer.DataOriginal = a.offsetOriginal
	footer.DataCompressed = a.offsetCompressed

	if err := writeBinary(a.h, footer); err != nil {
		return nil, wrapf(ErrIO, "write footer")
	}

	return &Info{Header: header, Footer: footer}, nil
}
