package main

import (
	"io"
	"os"

	"github.com/farcfmt/go-farc"
)

func runCat(args []string) error {
	fs := flagSet("cat")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) != 2 {
		return wrapUsage("cat <archive> <path|@hash>")
	}
	archivePath, target := rest[0], rest[1]

	a, _, err := farc.Open(farc.DefaultOps, archivePath, farc.ModeRead, 0)
	if err != nil {
		return err
	}
	defer a.Close(farc.CompressionNone) //nolint:errcheck

	f, err := a.OpenFile(target)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(os.Stdout, f)
	return err
}
