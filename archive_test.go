package farc

import (
	"bytes"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func buildArchive(t *testing.T, ops Ops, name string, files map[string][]byte, compression Compression, alignment uint32) *Info {
	t.Helper()
	a, _, err := Open(ops, name, ModeWrite, alignment)
	if err != nil {
		t.Fatalf("open write: %v", err)
	}

	// Iterate in a fixed order so tests are deterministic regardless of
	// Go's randomized map iteration.
	for _, path := range sortedKeys(files) {
		w, err := a.CreateFile(path, compression)
		if err != nil {
			t.Fatalf("create %s: %v", path, err)
		}
		if _, err := w.Write(files[path]); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		if _, err := w.Close(); err != nil {
			t.Fatalf("close %s: %v", path, err)
		}
	}

	info, err := a.Close(compression)
	if err != nil {
		t.Fatalf("close archive: %v", err)
	}
	return info
}

func sortedKeys(m map[string][]byte) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

func TestRoundTripUncompressed(t *testing.T) {
	fs := NewMemFS()
	files := map[string][]byte{
		"a/b/c.txt": []byte("hello"),
		"a/d.txt":   []byte("there"),
		"root.txt":  []byte(""),
	}
	buildArchive(t, fs.Ops(), "archive", files, CompressionNone, 0)

	a, info, err := Open(fs.Ops(), "archive", ModeRead, 0)
	if err != nil {
		t.Fatalf("open read: %v", err)
	}
	if info.Header.Cookie != magicCookieHeader {
		t.Fatalf("bad header cookie")
	}

	for path, want := range files {
		f, err := a.OpenFile(path)
		if err != nil {
			t.Fatalf("open %s: %v", path, err)
		}
		got, err := io.ReadAll(f)
		if err != nil {
			t.Fatalf("read %s: %v", path, err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("content mismatch for %s: got %q want %q", path, got, want)
		}
		if err := f.Close(); err != nil {
			t.Fatalf("close %s: %v", path, err)
		}

		hashPath := "@" + hexHash(sha1Sum(want))
		hf, err := a.OpenFile(hashPath)
		if err != nil {
			t.Fatalf("open by hash %s: %v", hashPath, err)
		}
		gotByHash, _ := io.ReadAll(hf)
		if !bytes.Equal(gotByHash, want) {
			t.Fatalf("hash-resolved content mismatch for %s", path)
		}
		hf.Close()
	}

	if _, err := a.Close(CompressionNone); err != nil {
		t.Fatalf("close reader: %v", err)
	}
}

func TestRoundTripCompressed(t *testing.T) {
	fs := NewMemFS()
	big := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog "), 1000)
	files := map[string][]byte{
		"data/big.bin": big,
	}
	buildArchive(t, fs.Ops(), "archive", files, CompressionFastLZ, 0)

	a, _, err := Open(fs.Ops(), "archive", ModeRead, 0)
	if err != nil {
		t.Fatalf("open read: %v", err)
	}
	f, err := a.OpenFile("data/big.bin")
	if err != nil {
		t.Fatalf("open file: %v", err)
	}
	got, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, big) {
		t.Fatalf("compressed round trip mismatch")
	}
}

func TestDirectoryWalk(t *testing.T) {
	fs := NewMemFS()
	files := map[string][]byte{
		"a/b/c.txt": []byte("1"),
		"a/b/d.txt": []byte("2"),
		"a/e.txt":   []byte("3"),
	}
	buildArchive(t, fs.Ops(), "archive", files, CompressionNone, 0)

	a, _, err := Open(fs.Ops(), "archive", ModeRead, 0)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	d, err := a.OpenDir("")
	if err != nil {
		t.Fatalf("opendir root: %v", err)
	}
	var names []string
	for {
		e, err := d.Read()
		if err == io.EOF {
			break
		}
		names = append(names, e.Name)
	}
	want := []string{"a"}
	if diff := cmp.Diff(want, names, cmpopts.SortSlices(func(a, b string) bool { return a < b })); diff != "" {
		t.Fatalf("root listing mismatch (-want +got):\n%s", diff)
	}

	d2, err := a.OpenDir("a/b")
	if err != nil {
		t.Fatalf("opendir a/b: %v", err)
	}
	var fileNames []string
	for {
		e, err := d2.Read()
		if err == io.EOF {
			break
		}
		fileNames = append(fileNames, e.Name)
	}
	want2 := []string{"c.txt", "d.txt"}
	if diff := cmp.Diff(want2, fileNames, cmpopts.SortSlices(func(a, b string) bool { return a < b })); diff != "" {
		t.Fatalf("a/b listing mismatch (-want +got):\n%s", diff)
	}
}

func TestDuplicatePathLastWins(t *testing.T) {
	fs := NewMemFS()
	a, _, err := Open(fs.Ops(), "archive", ModeWrite, 0)
	if err != nil {
		t.Fatalf("open write: %v", err)
	}

	for _, content := range []string{"first", "second"} {
		w, err := a.CreateFile("dup.txt", CompressionNone)
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		w.Write([]byte(content))
		w.Close()
	}
	if _, err := a.Close(CompressionNone); err != nil {
		t.Fatalf("close: %v", err)
	}

	r, _, err := Open(fs.Ops(), "archive", ModeRead, 0)
	if err != nil {
		t.Fatalf("open read: %v", err)
	}
	f, err := r.OpenFile("dup.txt")
	if err != nil {
		t.Fatalf("open dup.txt: %v", err)
	}
	got, _ := io.ReadAll(f)
	if string(got) != "second" {
		t.Fatalf("path lookup = %q, want %q (last writer wins)", got, "second")
	}

	firstHash := "@" + hexHash(sha1Sum([]byte("first")))
	hf, err := r.OpenFile(firstHash)
	if err != nil {
		t.Fatalf("hash lookup of shadowed entry failed: %v", err)
	}
	gotFirst, _ := io.ReadAll(hf)
	if string(gotFirst) != "first" {
		t.Fatalf("hash lookup = %q, want %q", gotFirst, "first")
	}
}

func TestAlignment(t *testing.T) {
	fs := NewMemFS()
	files := map[string][]byte{
		"a.bin": []byte("1234567"),
		"b.bin": []byte("x"),
	}
	buildArchive(t, fs.Ops(), "archive", files, CompressionNone, 4096)

	a, _, err := Open(fs.Ops(), "archive", ModeRead, 0)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	e, _, ok := a.findEntry("b.bin")
	if !ok {
		t.Fatalf("b.bin not found")
	}
	if uint32(e.Data)%4096 != 0 {
		t.Fatalf("b.bin data offset %d not aligned to 4096", e.Data)
	}
}

func TestCorruptTOCFailsIntegrity(t *testing.T) {
	fs := NewMemFS()
	buildArchive(t, fs.Ops(), "archive", map[string][]byte{"f.txt": []byte("data")}, CompressionNone, 0)

	blob := fs.blobs["archive"]
	corrupt := append([]byte(nil), blob...)
	corrupt[len(corrupt)/2] ^= 0xFF
	fs.blobs["archive"] = corrupt

	_, _, err := Open(fs.Ops(), "archive", ModeRead, 0)
	if err == nil {
		t.Fatal("expected integrity error on corrupted TOC")
	}
}

func TestTruncatedArchiveFailsFormat(t *testing.T) {
	fs := NewMemFS()
	buildArchive(t, fs.Ops(), "archive", map[string][]byte{"f.txt": []byte("data")}, CompressionNone, 0)

	blob := fs.blobs["archive"]
	fs.blobs["archive"] = blob[:len(blob)-10]

	_, _, err := Open(fs.Ops(), "archive", ModeRead, 0)
	if err == nil {
		t.Fatal("expected format error on truncated archive")
	}
}

func TestExactBlockMultipleProducesNoShortBlock(t *testing.T) {
	fs := NewMemFS()
	content := bytes.Repeat([]byte("x"), maxBlockSize*3)
	files := map[string][]byte{"even.bin": content}
	buildArchive(t, fs.Ops(), "archive", files, CompressionFastLZ, 0)

	a, _, err := Open(fs.Ops(), "archive", ModeRead, 0)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	f, err := a.OpenFile("even.bin")
	if err != nil {
		t.Fatalf("open even.bin: %v", err)
	}
	got, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Fatalf("round trip mismatch for exact block multiple")
	}

	e, _, ok := a.findEntry("even.bin")
	if !ok {
		t.Fatalf("even.bin not found")
	}
	blob := fs.blobs["archive"]
	pos := int(e.Data)
	end := pos + int(e.SizeCompressed)
	blocks := 0
	for ; pos < end; blocks++ {
		var hdr blockHeader
		if err := readBinary(bytes.NewReader(blob[pos:]), &hdr); err != nil {
			t.Fatalf("read block header %d: %v", blocks, err)
		}
		if hdr.Original != maxBlockSize {
			t.Fatalf("block %d holds %d bytes, want %d", blocks, hdr.Original, maxBlockSize)
		}
		pos += blockHeaderSize + int(hdr.payloadSize())
	}
	if blocks != 3 {
		t.Fatalf("got %d blocks, want 3", blocks)
	}
}

func hexHash(h Hash) string {
	const digits = "0123456789abcdef"
	out := make([]byte, 40)
	for i, b := range h {
		out[i*2] = digits[b>>4]
		out[i*2+1] = digits[b&0xf]
	}
	return string(out)
}
