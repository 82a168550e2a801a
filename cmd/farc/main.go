// Command farc is a thin front end over package farc: create, list, cat
// and verify archives from the shell.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
)

var log *slog.Logger

func main() {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	log = slog.New(handler)

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "create":
		err = runCreate(os.Args[2:])
	case "list":
		err = runList(os.Args[2:])
	case "cat":
		err = runCat(os.Args[2:])
	case "verify":
		err = runVerify(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: farc <create|list|cat|verify> ...")
}

// isTTY reports whether f is a terminal. No subcommand calls it; the CLI
// prints no progress output.
func isTTY(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	return fs
}

func wrapUsage(msg string) error {
	return fmt.Errorf("usage: farc %s", msg)
}
