// Command kvrange serves a key-value store over HTTP and QUIC and runs range
// scans against it.
//
//	kvrange serve  -config kvrange.yaml
//	kvrange put    -http 127.0.0.1:8080 key value
//	kvrange scan   -addr 127.0.0.1:9090 -from a -to m -limit 10
//	kvrange digest -path ./data -prefix user/
//	kvrange diff   -a ./data-1 -b ./data-2
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/eigerco/kvrange/pkg/config"
	"github.com/eigerco/kvrange/pkg/db"
	"github.com/eigerco/kvrange/pkg/db/memory"
	"github.com/eigerco/kvrange/pkg/db/pebble"
	"github.com/eigerco/kvrange/pkg/log"
	"github.com/eigerco/kvrange/pkg/scan"
)

type command struct {
	name  string
	usage string
	run   func(args []string) error
}

var commands = []command{
	{name: "serve", usage: "run the HTTP and QUIC servers", run: runServe},
	{name: "put", usage: "write a key through the HTTP API", run: runPut},
	{name: "scan", usage: "scan a range over QUIC", run: runScan},
	{name: "digest", usage: "hash a range of a local pebble store", run: runDigest},
	{name: "diff", usage: "diff a range of two local pebble stores", run: runDiff},
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	for _, c := range commands {
		if c.name == os.Args[1] {
			if err := c.run(os.Args[2:]); err != nil {
				fmt.Fprintf(os.Stderr, "kvrange %s: %v\n", c.name, err)
				os.Exit(1)
			}
			return
		}
	}
	usage()
	os.Exit(2)
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: kvrange <command> [flags]")
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-7s %s\n", c.name, c.usage)
	}
}

// initLogger routes component logs to stderr so command output stays clean.
func initLogger(cfg config.LoggerConfig) error {
	level, err := log.ParseLogLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	typ := log.ConsoleLogger
	if cfg.JSON {
		typ = log.JSONLogger
	}
	log.Init(log.Options{LogLevel: level, Type: typ, Output: os.Stderr})
	return nil
}

func openStore(cfg config.StorageConfig) (db.KVStore, error) {
	switch cfg.Engine {
	case config.EngineMemory:
		return memory.New(), nil
	case config.EnginePebble:
		store, err := pebble.NewKVStore(
			pebble.WithPath(cfg.Path),
			pebble.WithCacheSize(cfg.CacheSizeMB<<20),
			pebble.WithMemTableSize(cfg.MemTableSizeMB<<20),
		)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("%w: unknown storage engine %q", config.ErrInvalid, cfg.Engine)
	}
}

// rangeFlags registers the scan bounds shared by scan, digest and diff.
type rangeFlags struct {
	from, to, prefix string
	limit            int
	reverse          bool
}

func (r *rangeFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&r.from, "from", "", "first key of the range (last for -reverse)")
	fs.StringVar(&r.to, "to", "", "last key of the range, inclusive")
	fs.StringVar(&r.prefix, "prefix", "", "only keys with this prefix")
	fs.IntVar(&r.limit, "limit", scan.Unlimited, "maximum entries, negative for no limit")
	fs.BoolVar(&r.reverse, "reverse", false, "scan in descending key order")
}

// options builds scan options. Bounds that were not given stay open.
func (r *rangeFlags) options(fs *flag.FlagSet) scan.Options {
	var opts []scan.Option
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "from":
			opts = append(opts, scan.From([]byte(r.from)))
		case "to":
			opts = append(opts, scan.To([]byte(r.to)))
		case "prefix":
			opts = append(opts, scan.Prefix([]byte(r.prefix)))
		}
	})
	opts = append(opts, scan.Limit(r.limit))
	if r.reverse {
		opts = append(opts, scan.Reverse())
	}
	return scan.NewOptions(opts...)
}
