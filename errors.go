package farc

import (
	"errors"

	"golang.org/x/xerrors"
)

// Sentinel error kinds. Callers distinguish them with errors.Is; the core
// always wraps one of these with xerrors.Errorf so context survives.
var (
	// ErrIO is returned when the injected I/O operations table reports a
	// short read/write or a failed seek.
	ErrIO = errors.New("farc: i/o failure")
	// ErrFormat covers bad cookies, bad versions, truncated block
	// headers, and offsets that fall outside the TOC.
	ErrFormat = errors.New("farc: format error")
	// ErrIntegrity is a TOC digest mismatch.
	ErrIntegrity = errors.New("farc: integrity check failed")
	// ErrNotFound is returned when a path or content hash does not
	// resolve to an entry.
	ErrNotFound = errors.New("farc: not found")
	// ErrMode is returned for operations invalid in the archive's current
	// mode: writing to a read-mode archive, seeking a compressed file,
	// opening a second write-file concurrently, and so on.
	ErrMode = errors.New("farc: invalid for this mode")
)

func wrapf(kind error, format string, args ...any) error {
	args = append(args, kind)
	return xerrors.Errorf(format+": %w", args...)
}
