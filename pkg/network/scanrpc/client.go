package scanrpc

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/eigerco/kvrange/pkg/network/cert"
	"github.com/eigerco/kvrange/pkg/network/frame"
	"github.com/eigerco/kvrange/pkg/network/transport"
	"github.com/eigerco/kvrange/pkg/scan"
)

// MaxEntrySize bounds one response frame read by the client.
const MaxEntrySize = frame.DefaultMaxSize

// Client runs scans against one server connection.
type Client struct {
	transport *transport.Transport
	conn      *transport.Conn
}

// Dial connects to addr presenting tlsCert, or a fresh self-signed
// certificate when tlsCert is nil.
func Dial(ctx context.Context, addr string, tlsCert *tls.Certificate) (*Client, error) {
	if tlsCert == nil {
		var err error
		if tlsCert, err = cert.NewSelfSigned(cert.DefaultValidity); err != nil {
			return nil, err
		}
	}
	tr, err := transport.NewTransport(transport.Config{
		TLSCert:       tlsCert,
		CertValidator: cert.NewValidator(),
	})
	if err != nil {
		return nil, err
	}
	conn, err := tr.Connect(ctx, addr)
	if err != nil {
		return nil, errors.Join(err, tr.Stop())
	}
	return &Client{transport: tr, conn: conn}, nil
}

// Scan streams the entries selected by opts to fn until fn returns false.
// Server failures are returned wrapped in ErrRemote.
func (c *Client) Scan(ctx context.Context, opts scan.Options, fn func(scan.Entry) bool) error {
	req, err := json.Marshal(opts)
	if err != nil {
		return fmt.Errorf("scanrpc: encode request: %w", err)
	}
	stream, err := c.conn.OpenStream(ctx)
	if err != nil {
		return err
	}
	if err := frame.Write(ctx, stream, req); err != nil {
		stream.CancelRead(0)
		return err
	}
	if err := stream.Close(); err != nil {
		return err
	}

	for {
		msg, err := frame.Read(ctx, stream, MaxEntrySize)
		if err != nil {
			stream.CancelRead(0)
			return fmt.Errorf("scanrpc: read response: %w", err)
		}
		e, done, err := decode(msg.Content)
		if err != nil || done {
			return err
		}
		if !fn(e) {
			stream.CancelRead(0)
			return nil
		}
	}
}

// Collect returns every entry selected by opts.
func (c *Client) Collect(ctx context.Context, opts scan.Options) ([]scan.Entry, error) {
	var out []scan.Entry
	err := c.Scan(ctx, opts, func(e scan.Entry) bool {
		out = append(out, e)
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Close() error {
	return c.transport.Stop()
}
