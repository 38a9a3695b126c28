package main

import (
	"errors"
	"flag"
	"fmt"

	"github.com/eigerco/kvrange/internal/digest"
	"github.com/eigerco/kvrange/internal/rangediff"
	"github.com/eigerco/kvrange/pkg/config"
	"github.com/eigerco/kvrange/pkg/db"
	"github.com/eigerco/kvrange/pkg/db/pebble"
	"github.com/eigerco/kvrange/pkg/scan"
)

// openLocal opens the existing pebble directory dir with the default tuning.
// Pebble locks the directory, so the store must not be served at the same
// time.
func openLocal(dir string) (db.KVStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: data directory required", config.ErrInvalid)
	}
	cfg := config.Default().Storage
	store, err := pebble.NewKVStore(
		pebble.WithPath(dir),
		pebble.WithCacheSize(cfg.CacheSizeMB<<20),
		pebble.WithMemTableSize(cfg.MemTableSizeMB<<20),
		pebble.WithErrorIfNotExists(),
	)
	if err != nil {
		return nil, err
	}
	return store, nil
}

func runDigest(args []string) (err error) {
	fs := flag.NewFlagSet("digest", flag.ExitOnError)
	dir := fs.String("path", "", "pebble data directory")
	var rf rangeFlags
	rf.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := openLocal(*dir)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, store.Close())
	}()

	seq, err := scan.NewWithOptions(store, rf.options(fs))
	if err != nil {
		return err
	}
	sum, n, err := digest.Sum(seq)
	if err != nil {
		return err
	}
	fmt.Printf("%s  %d entries\n", sum, n)
	return nil
}

// runDiff prints the unified diff of the same range in two stores and exits
// non-zero when they differ.
func runDiff(args []string) (err error) {
	fs := flag.NewFlagSet("diff", flag.ExitOnError)
	dirA := fs.String("a", "", "first pebble data directory")
	dirB := fs.String("b", "", "second pebble data directory")
	var rf rangeFlags
	rf.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := openLocal(*dirA)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, a.Close())
	}()
	b, err := openLocal(*dirB)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, b.Close())
	}()

	opts := rf.options(fs)
	seqA, err := scan.NewWithOptions(a, opts)
	if err != nil {
		return err
	}
	seqB, err := scan.NewWithOptions(b, opts)
	if err != nil {
		return err
	}
	diff, err := rangediff.Unified(seqA, seqB, *dirA, *dirB)
	if err != nil {
		return err
	}
	if diff == "" {
		return nil
	}
	fmt.Print(diff)
	return errors.New("ranges differ")
}
