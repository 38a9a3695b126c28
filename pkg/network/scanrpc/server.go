// Package scanrpc serves range scans over QUIC. A client opens one stream
// per scan and sends the scan options as a JSON frame; the server answers with
// one frame per entry followed by a done or error frame.
package scanrpc

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/quic-go/quic-go"

	"github.com/eigerco/kvrange/pkg/db"
	"github.com/eigerco/kvrange/pkg/log"
	"github.com/eigerco/kvrange/pkg/network/frame"
	"github.com/eigerco/kvrange/pkg/network/transport"
	"github.com/eigerco/kvrange/pkg/scan"
)

// MaxRequestSize bounds the request frame.
const MaxRequestSize = 64 << 10

var _ transport.StreamHandler = (*Server)(nil)

// Server answers scan requests from a store. Every request reads from its own
// snapshot, so a streamed range is consistent even under concurrent writes.
type Server struct {
	store    db.KVStore
	maxLimit int
}

// NewServer serves store. maxLimit caps the entries of one request; a
// negative value disables the cap.
func NewServer(store db.KVStore, maxLimit int) *Server {
	return &Server{store: store, maxLimit: maxLimit}
}

func (s *Server) HandleStream(ctx context.Context, stream quic.Stream, peerKey ed25519.PublicKey) error {
	defer stream.Close()

	msg, err := frame.Read(ctx, stream, MaxRequestSize)
	if err != nil {
		stream.CancelRead(0)
		return fmt.Errorf("read request: %w", err)
	}
	opts := scan.NewOptions()
	if err := json.Unmarshal(msg.Content, &opts); err != nil {
		return s.fail(ctx, stream, fmt.Errorf("decode request: %w", err))
	}
	opts = opts.Clamp(s.maxLimit)

	n, err := s.stream(ctx, stream, opts)
	if err != nil {
		return s.fail(ctx, stream, err)
	}
	log.Network.Debug().
		Hex("peer", peerKey).
		Int("entries", n).
		Bool("reverse", opts.Reverse).
		Msg("scan served")
	return frame.Write(ctx, stream, []byte{kindDone})
}

func (s *Server) stream(ctx context.Context, stream quic.Stream, opts scan.Options) (int, error) {
	snap, err := s.store.Snapshot()
	if err != nil {
		return 0, err
	}
	defer snap.Close()

	seq, err := scan.NewWithOptions(snap, opts)
	if err != nil {
		return 0, err
	}
	n := 0
	err = seq.Each(func(e scan.Entry) error {
		n++
		return frame.Write(ctx, stream, encodeEntry(e))
	})
	return n, err
}

// fail reports err to the client. The returned error is err itself unless the
// report could not be written.
func (s *Server) fail(ctx context.Context, stream quic.Stream, err error) error {
	if werr := frame.Write(ctx, stream, encodeError(err)); werr != nil {
		return errors.Join(err, werr)
	}
	return err
}
