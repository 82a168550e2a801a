package main

import (
	"fmt"
	"io"
	"os"

	"github.com/farcfmt/go-farc"
)

func runList(args []string) error {
	fs := flagSet("list")
	recursive := fs.Bool("r", false, "recurse into subdirectories")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) < 1 {
		return wrapUsage("list <archive> [path]")
	}
	archivePath := rest[0]
	start := ""
	if len(rest) > 1 {
		start = rest[1]
	}

	a, _, err := farc.Open(farc.DefaultOps, archivePath, farc.ModeRead, 0)
	if err != nil {
		return err
	}
	defer a.Close(farc.CompressionNone) //nolint:errcheck

	return listDir(a, start, *recursive, os.Stdout)
}

func listDir(a *farc.Archive, path string, recursive bool, w io.Writer) error {
	d, err := a.OpenDir(path)
	if err != nil {
		return err
	}
	defer d.Close()

	for {
		ent, err := d.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		full := ent.Name
		if path != "" {
			full = path + "/" + ent.Name
		}

		switch ent.Type {
		case farc.EntryDir:
			fmt.Fprintf(w, "%s/\n", full)
			if recursive {
				if err := listDir(a, full, recursive, w); err != nil {
					return err
				}
			}
		default:
			fmt.Fprintf(w, "%-8s %8d %8d  %x  %s\n",
				ent.Compression, ent.Size.Original, ent.Size.Compressed, ent.Hash, full)
		}
	}
	return nil
}
