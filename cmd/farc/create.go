package main

import (
	"crypto/sha1" //nolint:gosec // pre-hash is informational only, not the archive's own digest
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/farcfmt/go-farc"
)

type pendingFile struct {
	absPath string
	relPath string
	size    int64
	hash    [20]byte
}

func runCreate(args []string) error {
	fs := flagSet("create")
	compressionName := fs.String("compress", "fastlz", "block compression: none, fastlz, deflate")
	alignment := fs.Uint("align", 0, "pad each file's data offset up to a multiple of this many bytes (0 disables)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) < 2 {
		return wrapUsage("create <archive> <path>...")
	}
	archivePath := rest[0]
	roots := rest[1:]

	compression, err := parseCompression(*compressionName)
	if err != nil {
		return err
	}

	files, err := discover(roots)
	if err != nil {
		return err
	}
	if err := prehash(files); err != nil {
		return err
	}
	logDuplicateContent(files)

	a, _, err := farc.Open(farc.DefaultOps, archivePath, farc.ModeWrite, uint32(*alignment))
	if err != nil {
		return err
	}

	for _, f := range files {
		if err := addFile(a, f, compression); err != nil {
			return err
		}
	}

	info, err := a.Close(compression)
	if err != nil {
		return err
	}
	log.Info("created archive", "path", archivePath, "files", len(files),
		"data_compressed", info.Footer.DataCompressed, "toc_compressed", info.Footer.TOCCompressed)
	return nil
}

// discover walks every root and returns every non-directory entry found, with
// paths relative to the root they were found under, sorted for
// deterministic archive layout.
func discover(roots []string) ([]pendingFile, error) {
	var out []pendingFile
	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			out = append(out, pendingFile{absPath: root, relPath: filepath.Base(root), size: info.Size()})
			continue
		}
		err = filepath.Walk(root, func(p string, fi os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if fi.IsDir() {
				return nil
			}
			rel, err := filepath.Rel(root, p)
			if err != nil {
				return err
			}
			out = append(out, pendingFile{absPath: p, relPath: filepath.ToSlash(rel), size: fi.Size()})
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].relPath < out[j].relPath })
	return out, nil
}

// prehash computes every candidate file's content SHA-1 concurrently,
// ahead of the (necessarily sequential) archive write, so duplicate
// content across source paths can be reported before any bytes are
// written to the archive.
func prehash(files []pendingFile) error {
	g := new(errgroup.Group)
	g.SetLimit(8)
	for i := range files {
		i := i
		g.Go(func() error {
			f, err := os.Open(files[i].absPath)
			if err != nil {
				return err
			}
			defer f.Close()
			h := sha1.New() //nolint:gosec
			if _, err := io.Copy(h, f); err != nil {
				return err
			}
			copy(files[i].hash[:], h.Sum(nil))
			return nil
		})
	}
	return g.Wait()
}

// logDuplicateContent logs, at info level, source paths that will land in the
// archive under the same content hash: both remain independently
// reachable by path, but only one is the canonical hit for @hash lookups
// across unrelated paths with identical bytes.
func logDuplicateContent(files []pendingFile) {
	byHash := make(map[[20]byte][]string, len(files))
	for _, f := range files {
		byHash[f.hash] = append(byHash[f.hash], f.relPath)
	}
	for hash, paths := range byHash {
		if len(paths) < 2 {
			continue
		}
		log.Info("duplicate content across source paths", "hash", hexHash(hash), "paths", paths)
	}
}

func hexHash(h [20]byte) string {
	const digits = "0123456789abcdef"
	out := make([]byte, 40)
	for i, b := range h {
		out[i*2] = digits[b>>4]
		out[i*2+1] = digits[b&0xf]
	}
	return string(out)
}

func addFile(a *farc.Archive, f pendingFile, compression farc.Compression) error {
	src, err := os.Open(f.absPath)
	if err != nil {
		return err
	}
	defer src.Close()

	w, err := a.CreateFile(f.relPath, compression)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, src); err != nil {
		w.Close() //nolint:errcheck
		return err
	}
	_, err = w.Close()
	return err
}

func parseCompression(name string) (farc.Compression, error) {
	switch strings.ToLower(name) {
	case "none":
		return farc.CompressionNone, nil
	case "fastlz":
		return farc.CompressionFastLZ, nil
	case "deflate":
		return farc.CompressionDeflate, nil
	default:
		return 0, wrapUsage("unknown compression " + name)
	}
}
