// Package transport runs authenticated QUIC connections between kvrange
// nodes and clients. Both sides present self-signed Ed25519 certificates and
// negotiate the kvrange ALPN protocol; every bidirectional stream a peer opens
// is passed to a StreamHandler.
package transport

import (
	"context"
	"crypto/ed25519"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/quic-go/quic-go"

	"github.com/eigerco/kvrange/pkg/log"
)

const (
	MaxIdleTimeout  = 5 * time.Minute
	KeepAlivePeriod = 30 * time.Second
)

// StreamHandler serves one stream opened by a peer. The handler owns the
// stream and must close it.
type StreamHandler interface {
	HandleStream(ctx context.Context, stream quic.Stream, peerKey ed25519.PublicKey) error
}

// CertValidator checks peer certificates and extracts their identity.
type CertValidator interface {
	ValidateCertificate(cert *x509.Certificate) error
	ExtractPublicKey(cert *x509.Certificate) (ed25519.PublicKey, error)
}

// Dialer opens outgoing QUIC connections.
type Dialer interface {
	DialAddr(ctx context.Context, addr string, tlsConf *tls.Config, quicConf *quic.Config) (quic.Connection, error)
}

type quicDialer struct{}

func (quicDialer) DialAddr(ctx context.Context, addr string, tlsConf *tls.Config, quicConf *quic.Config) (quic.Connection, error) {
	return quic.DialAddr(ctx, addr, tlsConf, quicConf)
}

type Config struct {
	TLSCert       *tls.Certificate
	ListenAddr    string        // only needed by Start
	CertValidator CertValidator // checks every peer certificate
	Handler       StreamHandler // only needed by Start
}

// Transport owns a listener and every connection made through it.
type Transport struct {
	config Config
	dialer Dialer

	listener *quic.Listener
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	mu    sync.Mutex
	conns map[*Conn]struct{}
}

func NewTransport(config Config) (*Transport, error) {
	if config.TLSCert == nil {
		return nil, fmt.Errorf("TLS certificate required")
	}
	if config.CertValidator == nil {
		return nil, fmt.Errorf("certificate validator required")
	}
	if err := config.CertValidator.ValidateCertificate(config.TLSCert.Leaf); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCertificate, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Transport{
		config: config,
		dialer: quicDialer{},
		ctx:    ctx,
		cancel: cancel,
		conns:  make(map[*Conn]struct{}),
	}, nil
}

// SetDialer replaces the QUIC dialer used by Connect.
func (t *Transport) SetDialer(d Dialer) {
	t.dialer = d
}

func (t *Transport) quicConfig() *quic.Config {
	return &quic.Config{
		MaxIdleTimeout:  MaxIdleTimeout,
		KeepAlivePeriod: KeepAlivePeriod,
	}
}

func (t *Transport) verifyPeer(rawCerts [][]byte) error {
	if len(rawCerts) == 0 {
		return fmt.Errorf("%w: no peer certificate provided", ErrInvalidCertificate)
	}
	c, err := x509.ParseCertificate(rawCerts[0])
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCertificate, err)
	}
	if err := t.config.CertValidator.ValidateCertificate(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCertificate, err)
	}
	return nil
}

// Start listens on the configured address and serves incoming streams in the
// background until Stop.
func (t *Transport) Start() error {
	if t.config.Handler == nil {
		return ErrNoHandler
	}
	tlsConfig := &tls.Config{
		Certificates:       []tls.Certificate{*t.config.TLSCert},
		NextProtos:         AcceptableProtocols(),
		ClientAuth:         tls.RequireAnyClientCert,
		MinVersion:         tls.VersionTLS13,
		InsecureSkipVerify: true,
		VerifyConnection: func(cs tls.ConnectionState) error {
			if err := ValidateALPNProtocol(cs.NegotiatedProtocol); err != nil {
				return err
			}
			if len(cs.PeerCertificates) == 0 {
				return fmt.Errorf("%w: no peer certificate provided", ErrInvalidCertificate)
			}
			if err := t.config.CertValidator.ValidateCertificate(cs.PeerCertificates[0]); err != nil {
				return fmt.Errorf("%w: %w", ErrInvalidCertificate, err)
			}
			return nil
		},
	}

	listener, err := quic.ListenAddr(t.config.ListenAddr, tlsConfig, t.quicConfig())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrListenerFailed, err)
	}
	t.listener = listener
	log.Network.Info().Str("addr", listener.Addr().String()).Msg("listening")

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		t.acceptLoop()
	}()
	return nil
}

// Addr returns the listening address, or nil before Start.
func (t *Transport) Addr() net.Addr {
	if t.listener == nil {
		return nil
	}
	return t.listener.Addr()
}

// Stop closes the listener and every connection, then waits for running
// stream handlers to return.
func (t *Transport) Stop() error {
	t.cancel()

	t.mu.Lock()
	conns := make([]*Conn, 0, len(t.conns))
	for conn := range t.conns {
		conns = append(conns, conn)
	}
	t.mu.Unlock()

	var errs []error
	for _, conn := range conns {
		if err := conn.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if t.listener != nil {
		if err := t.listener.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close listener: %w", err))
		}
	}

	t.wg.Wait()
	return errors.Join(errs...)
}

// Connect dials addr and returns the authenticated connection.
func (t *Transport) Connect(ctx context.Context, addr string) (*Conn, error) {
	if t.ctx.Err() != nil {
		return nil, ErrStopped
	}
	tlsConf := &tls.Config{
		Certificates:       []tls.Certificate{*t.config.TLSCert},
		NextProtos:         AcceptableProtocols(),
		MinVersion:         tls.VersionTLS13,
		InsecureSkipVerify: true,
		VerifyPeerCertificate: func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
			return t.verifyPeer(rawCerts)
		},
	}

	qConn, err := t.dialer.DialAddr(ctx, addr, tlsConf, t.quicConfig())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDialFailed, err)
	}
	conn, err := t.handleConnection(qConn)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnFailed, err)
	}
	return conn, nil
}

func (t *Transport) acceptLoop() {
	for {
		qConn, err := t.listener.Accept(t.ctx)
		if err != nil {
			if t.ctx.Err() == nil {
				log.Network.Error().Err(err).Msg("failed to accept connection")
			}
			return
		}

		conn, err := t.handleConnection(qConn)
		if err != nil {
			continue
		}
		t.wg.Add(1)
		go func() {
			defer t.wg.Done()
			t.serve(conn)
		}()
	}
}

// handleConnection identifies the peer of a new connection and registers it.
func (t *Transport) handleConnection(qConn quic.Connection) (*Conn, error) {
	state := qConn.ConnectionState()
	if len(state.TLS.PeerCertificates) == 0 {
		_ = qConn.CloseWithError(0, ErrInvalidCertificate.Error())
		return nil, ErrInvalidCertificate
	}
	peerKey, err := t.config.CertValidator.ExtractPublicKey(state.TLS.PeerCertificates[0])
	if err != nil {
		log.Network.Warn().Err(err).Msg("failed to extract peer key")
		if cerr := qConn.CloseWithError(0, fmt.Sprintf("%s: %v", ErrInvalidCertificate, err)); cerr != nil {
			log.Network.Warn().Err(cerr).Msg("failed to close connection")
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidCertificate, err)
	}

	conn := newConn(qConn, t, peerKey)
	t.mu.Lock()
	t.conns[conn] = struct{}{}
	t.mu.Unlock()
	return conn, nil
}

// serve hands every stream the peer opens to the handler.
func (t *Transport) serve(conn *Conn) {
	defer conn.Close()
	for {
		stream, err := conn.AcceptStream()
		if err != nil {
			if conn.ctx.Err() == nil {
				log.Network.Debug().Err(err).Msg("connection ended")
			}
			return
		}
		t.wg.Add(1)
		go func() {
			defer t.wg.Done()
			if err := t.config.Handler.HandleStream(conn.ctx, stream, conn.peerKey); err != nil {
				log.Network.Warn().Err(err).Int64("stream", int64(stream.StreamID())).Msg("stream handler failed")
			}
		}()
	}
}

func (t *Transport) forget(c *Conn) {
	t.mu.Lock()
	delete(t.conns, c)
	t.mu.Unlock()
}
