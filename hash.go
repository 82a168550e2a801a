package farc

import (
	"crypto/sha1" //nolint:gosec // content-addressing, not a security boundary
	"hash"
)

// digest is the streaming SHA-1 primitive the core consumes to compute
// content hashes: reset/input/result.
type digest struct {
	h hash.Hash
}

func newDigest() *digest {
	return &digest{h: sha1.New()}
}

func (d *digest) Reset() { d.h.Reset() }

func (d *digest) Input(p []byte) { d.h.Write(p) } //nolint:errcheck // hash.Hash.Write never errors

func (d *digest) Result() Hash {
	var out Hash
	copy(out[:], d.h.Sum(nil))
	return out
}

// sha1Sum is a convenience for one-shot digests, used by the tests.
func sha1Sum(p []byte) Hash {
	d := newDigest()
	d.Input(p)
	return d.Result()
}
