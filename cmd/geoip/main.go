// Command geoip prints the geolocation of one IP address.
//
//	geoip [--db path] [--format kv|country|country-prefixed|json] <ip-address>
//
// It exits 0 whether or not the address resolves; an unresolved address
// prints the fallback rendering of the chosen format.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/TomasB/geoheader/internal/config"
	"github.com/TomasB/geoheader/internal/data"
	"github.com/TomasB/geoheader/internal/extract"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("geoip", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	config.RegisterLookupFlags(fs)
	format := fs.StringP("format", "f", extract.ModeKeyValue.String(), "Output format: kv, country, country-prefixed, json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}

	mode, err := extract.ParseMode(*format)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	cfg, err := config.Load(fs)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	// Stdout carries only the result.
	level := slog.LevelWarn
	if fs.Changed("log-level") {
		level = cfg.SlogLevel()
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	resolved := ""
	if fs.NArg() == 1 {
		db := data.NewDatabase(
			data.MmdbOpener(cfg.MmdbPath, cfg.MemoryCache),
			data.WithLogger(logger),
			data.WithFallbackCountry(cfg.FallbackCountry),
		)
		defer db.Close()

		addr := fs.Arg(0)
		resolved = cfg.Formatter().Format(addr, db.Lookup(addr), mode)
	}

	fmt.Fprintln(stdout, resolved)
	return 0
}
