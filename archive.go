package farc

// Archive is a single open handle: either a read-mode archive with its
// TOC resident in memory, or a write-mode archive accumulating pending
// entries. A handle is opened in exactly one mode for its entire life,
// and is not safe for concurrent use from multiple goroutines.
type Archive struct {
	mode  Mode
	ops   Ops
	path  string
	h     Handle
	cache []byte

	// cacheOwner is the single tagged owner of the scratch cache: nil when
	// free, a *FileWriter while a write-file's final flush/compression is
	// in flight, or a *FileReader while it is servicing compressed reads.
	cacheOwner any

	// read-mode state
	toc    []byte
	header Header
	footer Footer
	base   int64

	// write-mode state
	alignment        uint32
	offsetOriginal   uint32
	offsetCompressed uint32
	entries          []*writerEntry
}

// Open opens an archive for reading or writing through ops. alignment is
// only meaningful in ModeWrite, where it pads each file's data offset up
// to the next multiple of alignment bytes; pass 0 in ModeRead.
func Open(ops Ops, path string, mode Mode, alignment uint32) (*Archive, *Info, error) {
	switch mode {
	case ModeRead:
		return openRead(ops, path)
	case ModeWrite:
		return openWrite(ops, path, alignment)
	default:
		return nil, nil, wrapf(ErrMode, "open %s: unknown mode", path)
	}
}

func newArchive(ops Ops, mode Mode, path string, h Handle) *Archive {
	return &Archive{
		mode:  mode,
		ops:   ops,
		path:  path,
		h:     h,
		cache: make([]byte, archiveCacheSize),
	}
}

// Close finalizes the archive. In ModeWrite this is the only point at
// which the TOC and footer are written; a handle dropped without Close
// leaves no usable archive (with DefaultOps, nothing appears at the
// destination path — see ioops.go). tocCompression is ignored in ModeRead.
func (a *Archive) Close(tocCompression Compression) (*Info, error) {
	if a == nil {
		return nil, wrapf(ErrMode, "close: nil archive")
	}

	var info *Info
	var err error

	if a.mode == ModeWrite {
		if a.cacheOwner != nil {
			return nil, wrapf(ErrMode, "close: a write file is still open")
		}
		info, err = a.writeTOC(tocCompression)
	}

	if cerr := a.h.Close(); cerr != nil && err == nil {
		err = wrapf(ErrIO, "close %s: %v", a.path, cerr)
	}

	return info, err
}

// Info returns a snapshot of the archive's header and footer. It is only
// meaningful once a read-mode archive has been opened (Open already
// returns the same snapshot); write-mode archives have no header or
// footer until Close.
func (a *Archive) Info() (*Info, error) {
	if a.mode != ModeRead {
		return nil, wrapf(ErrMode, "info: archive not in read mode")
	}
	return &Info{Header: a.header, Footer: a.footer}, nil
}

// claimCache assigns the scratch cache to owner. The cache carries no fill
// state of its own, so nothing else is reset.
func (a *Archive) claimCache(owner any) {
	if a.cacheOwner != owner {
		a.cacheOwner = owner
	}
}

// releaseCache frees the cache if owner currently holds it.
func (a *Archive) releaseCache(owner any) {
	if a.cacheOwner == owner {
		a.cacheOwner = nil
	}
}
