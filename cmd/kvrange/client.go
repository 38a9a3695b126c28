package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"time"

	"github.com/eigerco/kvrange/internal/rangediff"
	"github.com/eigerco/kvrange/internal/server"
	"github.com/eigerco/kvrange/pkg/config"
	"github.com/eigerco/kvrange/pkg/network/scanrpc"
	"github.com/eigerco/kvrange/pkg/scan"
)

func runPut(args []string) error {
	fs := flag.NewFlagSet("put", flag.ExitOnError)
	addr := fs.String("http", config.Default().HTTP.Addr, "HTTP address of the server")
	timeout := fs.Duration("timeout", 10*time.Second, "request timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return fmt.Errorf("expected <key> <value>, got %d arguments", fs.NArg())
	}

	target := "http://" + *addr + "/api/kv/" + url.PathEscape(fs.Arg(0))
	req, err := http.NewRequest(http.MethodPut, target, bytes.NewBufferString(fs.Arg(1)))
	if err != nil {
		return err
	}
	client := &http.Client{Timeout: *timeout}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var out server.Response
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if out.Status != server.StatusSuccess {
		return fmt.Errorf("%s: %s", resp.Status, out.Error)
	}
	return nil
}

func runScan(args []string) error {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	addr := fs.String("addr", config.Default().QUIC.Addr, "QUIC address of the server")
	asJSON := fs.Bool("json", false, "print one JSON object per entry")
	var rf rangeFlags
	rf.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	client, err := scanrpc.Dial(ctx, *addr, nil)
	if err != nil {
		return err
	}
	defer client.Close()

	enc := json.NewEncoder(os.Stdout)
	var werr error
	err = client.Scan(ctx, rf.options(fs), func(e scan.Entry) bool {
		if *asJSON {
			werr = enc.Encode(e)
		} else {
			_, werr = io.WriteString(os.Stdout, rangediff.Line(e))
		}
		return werr == nil
	})
	if err != nil {
		return err
	}
	return werr
}
