package farc

import (
	"io"
	"os"

	"github.com/google/renameio"
	"github.com/orcaman/writerseeker"
	"golang.org/x/sys/unix"
)

// SeekWhence enumerates the seek origins the injected I/O table supports.
type SeekWhence int

const (
	SeekSet SeekWhence = iota
	SeekCurrent
	SeekEnd
)

// Mode selects how an archive handle is opened.
type Mode int

const (
	ModeRead Mode = iota
	ModeWrite
)

// Ops is the I/O operations table the core consumes: an abstract byte
// stream with open/close/read/write/seek/tell. The default implementation
// (DefaultOps) talks to the host filesystem; MemFS.Ops talks to memory,
// for tests and for embedders that don't want a real file.
type Ops interface {
	OpenHandle(path string, mode Mode) (Handle, error)
}

// Handle is one opened stream. Read-mode handles must support Seek;
// write-mode handles are only ever Written to and then Closed (the core
// never seeks or reads a write handle).
type Handle interface {
	io.Reader
	io.Writer
	io.Closer
	Seek(offset int64, whence SeekWhence) (int64, error)
	Tell() (int64, error)
}

// ---- default, host-filesystem-backed ops ----------------------------------

// DefaultOps opens real files. Write-mode archives are staged through
// renameio.TempFile and only appear at the destination path once Close
// succeeds; a handle dropped without a successful Close leaves nothing at
// the destination path, rather than a half-written archive.
var DefaultOps Ops = defaultOps{}

type defaultOps struct{}

func (defaultOps) OpenHandle(path string, mode Mode) (Handle, error) {
	switch mode {
	case ModeRead:
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		return &readHandle{f: f}, nil

	case ModeWrite:
		pf, err := renameio.TempFile("", path)
		if err != nil {
			return nil, err
		}
		if err := unix.Flock(int(pf.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
			pf.Cleanup()
			return nil, wrapf(ErrIO, "lock %s", path)
		}
		return &writeHandle{pf: pf}, nil

	default:
		return nil, wrapf(ErrMode, "unknown mode %d", int(mode))
	}
}

type readHandle struct{ f *os.File }

func (h *readHandle) Read(p []byte) (int, error)  { return h.f.Read(p) }
func (h *readHandle) Write([]byte) (int, error)   { return 0, wrapf(ErrMode, "write on read handle") }
func (h *readHandle) Close() error                { return h.f.Close() }
func (h *readHandle) Tell() (int64, error)         { return h.f.Seek(0, io.SeekCurrent) }

func (h *readHandle) Seek(offset int64, whence SeekWhence) (int64, error) {
	return h.f.Seek(offset, whenceToStd(whence))
}

// writeHandle commits the finished archive to its destination only when
// Close is called with no error having occurred; anything else leaves the
// temp file to be cleaned up, never the destination.
type writeHandle struct {
	pf      *renameio.PendingFile
	written int64
	failed  bool
}

func (h *writeHandle) Read([]byte) (int, error) { return 0, wrapf(ErrMode, "read on write handle") }

func (h *writeHandle) Write(p []byte) (int, error) {
	n, err := h.pf.Write(p)
	h.written += int64(n)
	if err != nil {
		h.failed = true
	}
	return n, err
}

func (h *writeHandle) Seek(int64, SeekWhence) (int64, error) {
	return 0, wrapf(ErrMode, "seek on write handle")
}

func (h *writeHandle) Tell() (int64, error) { return h.written, nil }

func (h *writeHandle) Close() error {
	if h.failed {
		h.pf.Cleanup() //nolint:errcheck
		return wrapf(ErrIO, "archive write failed")
	}
	if err := h.pf.CloseAtomicallyReplace(); err != nil {
		return wrapf(ErrIO, "finalize archive")
	}
	return nil
}

func whenceToStd(w SeekWhence) int {
	switch w {
	case SeekCurrent:
		return io.SeekCurrent
	case SeekEnd:
		return io.SeekEnd
	default:
		return io.SeekStart
	}
}

// ---- in-memory ops, for tests and embedding --------------------------------

// MemFS is a tiny named-blob store backing the Ops returned by MemFS.Ops:
// OpenHandle(name, ModeRead) replays a committed blob, OpenHandle(name,
// ModeWrite) stages one through writerseeker.WriterSeeker and commits it
// to the map on Close.
type MemFS struct {
	blobs map[string][]byte
}

// NewMemFS returns an empty in-memory filesystem.
func NewMemFS() *MemFS { return &MemFS{blobs: map[string][]byte{}} }

// Ops returns an Ops backed by this filesystem.
func (m *MemFS) Ops() Ops { return memOps{fs: m} }

type memOps struct{ fs *MemFS }

func (o memOps) OpenHandle(path string, mode Mode) (Handle, error) {
	switch mode {
	case ModeRead:
		blob, ok := o.fs.blobs[path]
		if !ok {
			return nil, wrapf(ErrNotFound, "open %s", path)
		}
		return &memReadHandle{data: blob}, nil

	case ModeWrite:
		return &memWriteHandle{fs: o.fs, name: path, ws: &writerseeker.WriterSeeker{}}, nil

	default:
		return nil, wrapf(ErrMode, "unknown mode %d", int(mode))
	}
}

type memReadHandle struct {
	data   []byte
	offset int64
}

func (h *memReadHandle) Read(p []byte) (int, error) {
	if h.offset >= int64(len(h.data)) {
		return 0, io.EOF
	}
	n := copy(p, h.data[h.offset:])
	h.offset += int64(n)
	return n, nil
}

func (h *memReadHandle) Write([]byte) (int, error) { return 0, wrapf(ErrMode, "write on read handle") }
func (h *memReadHandle) Close() error               { return nil }
func (h *memReadHandle) Tell() (int64, error)       { return h.offset, nil }

func (h *memReadHandle) Seek(offset int64, whence SeekWhence) (int64, error) {
	var base int64
	switch whence {
	case SeekCurrent:
		base = h.offset
	case SeekEnd:
		base = int64(len(h.data))
	}
	h.offset = base + offset
	return h.offset, nil
}

type memWriteHandle struct {
	fs   *MemFS
	name string
	ws   *writerseeker.WriterSeeker
	n    int64
}

func (h *memWriteHandle) Read([]byte) (int, error) { return 0, wrapf(ErrMode, "read on write handle") }

func (h *memWriteHandle) Write(p []byte) (int, error) {
	n, err := h.ws.Write(p)
	h.n += int64(n)
	return n, err
}

func (h *memWriteHandle) Seek(int64, SeekWhence) (int64, error) {
	return 0, wrapf(ErrMode, "seek on write handle")
}

func (h *memWriteHandle) Tell() (int64, error) { return h.n, nil }

func (h *memWriteHandle) Close() error {
	r := h.ws.Reader()
	data, err := io.ReadAll(r)
	if err != nil {
		return wrapf(ErrIO, "finalize in-memory archive")
	}
	h.fs.blobs[h.name] = data
	return nil
}
