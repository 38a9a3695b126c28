package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/eigerco/kvrange/internal/server"
	"github.com/eigerco/kvrange/pkg/config"
	"github.com/eigerco/kvrange/pkg/log"
	"github.com/eigerco/kvrange/pkg/network/cert"
	"github.com/eigerco/kvrange/pkg/network/scanrpc"
	"github.com/eigerco/kvrange/pkg/network/transport"
)

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	path := fs.String("config", "kvrange.yaml", "config file, defaults apply when missing")
	engine := fs.String("engine", "", "storage engine: pebble or memory")
	dir := fs.String("path", "", "pebble data directory, empty for in-memory")
	httpAddr := fs.String("http", "", "HTTP listen address, empty string disables")
	quicAddr := fs.String("quic", "", "QUIC listen address, empty string disables")
	level := fs.String("log-level", "", "log level")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*path)
	if err != nil {
		return err
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "engine":
			cfg.Storage.Engine = *engine
		case "path":
			cfg.Storage.Path = *dir
		case "http":
			cfg.HTTP.Addr = *httpAddr
		case "quic":
			cfg.QUIC.Addr = *quicAddr
		case "log-level":
			cfg.Logger.Level = *level
		}
	})
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := initLogger(cfg.Logger); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return serve(ctx, cfg)
}

// serve runs until ctx is done, then stops the listeners before closing the
// store.
func serve(ctx context.Context, cfg config.Config) (err error) {
	store, err := openStore(cfg.Storage)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, store.Close())
	}()
	log.Root.Info().Str("engine", cfg.Storage.Engine).Str("path", cfg.Storage.Path).Msg("store opened")

	if cfg.HTTP.Addr != "" {
		api := server.New(store, cfg.HTTP.Addr, cfg.Scan)
		if err := api.Start(); err != nil {
			return err
		}
		defer func() {
			err = errors.Join(err, api.Stop())
		}()
	}

	if cfg.QUIC.Addr != "" {
		tlsCert, err := cert.NewSelfSigned(cert.DefaultValidity)
		if err != nil {
			return err
		}
		tr, err := transport.NewTransport(transport.Config{
			TLSCert:       tlsCert,
			ListenAddr:    cfg.QUIC.Addr,
			CertValidator: cert.NewValidator(),
			Handler:       scanrpc.NewServer(store, cfg.Scan.MaxLimit),
		})
		if err != nil {
			return err
		}
		if err := tr.Start(); err != nil {
			return fmt.Errorf("start QUIC transport: %w", err)
		}
		defer func() {
			err = errors.Join(err, tr.Stop())
		}()
		log.Root.Info().Stringer("addr", tr.Addr()).Msg("QUIC scan server started")
	}

	<-ctx.Done()
	log.Root.Info().Msg("shutting down")
	return nil
}
