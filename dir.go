package farc

import "io"

// SizePair reports a stream's size before and after block compression.
type SizePair struct {
	Original   uint32
	Compressed uint32
}

// DirEntry is one child of a directory: either a subdirectory (Size and
// Hash are zero) or a file.
type DirEntry struct {
	Name        string
	Type        EntryType
	Compression Compression
	Size        SizePair
	Hash        Hash
}

// Dir iterates one container's children: every subdirectory first (in
// sibling-list order, which is reverse declaration order — new
// containers are prepended to their parent's child list on construction),
// then every owned file in entry array order.
type Dir struct {
	archive *Archive
	entries []DirEntry
	pos     int
}

// OpenDir resolves path (""  for the archive root) to a container and
// returns an iterator over its immediate children. It is only valid on a
// read-mode archive.
func (a *Archive) OpenDir(path string) (*Dir, error) {
	if a.mode != ModeRead {
		return nil, wrapf(ErrMode, "opendir %s: archive not in read mode", path)
	}

	containerOff, ok := a.findContainer(normalizePath(path))
	if !ok {
		return nil, wrapf(ErrNotFound, "opendir %s", path)
	}
	container := a.containerAt(containerOff)

	var entries []DirEntry

	child := container.Children
	for child.Valid() {
		c := a.containerAt(child)
		entries = append(entries, DirEntry{
			Name: a.stringAt(c.Name),
			Type: EntryDir,
		})
		child = c.Next
	}

	if container.EntryOffset.Valid() {
		startIndex := uint32((container.EntryOffset - a.header.EntryOffset) / entrySize)
		for i := uint32(0); i < container.EntryCount; i++ {
			e := a.entryAt(container.EntryOffset + Offset(i*entrySize))
			entries = append(entries, DirEntry{
				Name:        a.stringAt(e.Name),
				Type:        EntryFile,
				Compression: e.Compression,
				Size: SizePair{
					Original:   e.SizeOriginal,
					Compressed: e.SizeCompressed,
				},
				Hash: a.hashAt(startIndex + i),
			})
		}
	}

	return &Dir{archive: a, entries: entries}, nil
}

// Read returns the next child, or io.EOF once the directory is exhausted.
func (d *Dir) Read() (*DirEntry, error) {
	if d.pos >= len(d.entries) {
		return nil, io.EOF
	}
	e := d.entries[d.pos]
	d.pos++
	return &e, nil
}

// Close releases the iterator. It never fails; Dir holds no archive
// resources beyond the snapshot taken at OpenDir.
func (d *Dir) Close() error { return nil }
