// Package mocks provides testify mocks of the quic-go connection and stream
// interfaces.
package mocks

import (
	"context"
	"crypto/ed25519"
	"crypto/tls"
	"crypto/x509"
	"net"
	"time"

	"github.com/quic-go/quic-go"
	"github.com/stretchr/testify/mock"
)

// MockQuicConnection implements quic.Connection.
type MockQuicConnection struct {
	mock.Mock
}

// NewMockQuicConnection returns a connection whose TLS state presents peer.
// A nil peer leaves ConnectionState unset.
func NewMockQuicConnection(peer *x509.Certificate) *MockQuicConnection {
	m := new(MockQuicConnection)
	if peer != nil {
		m.On("ConnectionState").Return(quic.ConnectionState{
			TLS: tls.ConnectionState{PeerCertificates: []*x509.Certificate{peer}},
		})
	}
	return m
}

func stream(args mock.Arguments) (quic.Stream, error) {
	s, _ := args.Get(0).(quic.Stream)
	return s, args.Error(1)
}

func (m *MockQuicConnection) AcceptStream(ctx context.Context) (quic.Stream, error) {
	return stream(m.Called(ctx))
}

func (m *MockQuicConnection) AcceptUniStream(ctx context.Context) (quic.ReceiveStream, error) {
	args := m.Called(ctx)
	s, _ := args.Get(0).(quic.ReceiveStream)
	return s, args.Error(1)
}

func (m *MockQuicConnection) OpenStream() (quic.Stream, error) {
	return stream(m.Called())
}

func (m *MockQuicConnection) OpenStreamSync(ctx context.Context) (quic.Stream, error) {
	return stream(m.Called(ctx))
}

func (m *MockQuicConnection) OpenUniStream() (quic.SendStream, error) {
	args := m.Called()
	s, _ := args.Get(0).(quic.SendStream)
	return s, args.Error(1)
}

func (m *MockQuicConnection) OpenUniStreamSync(ctx context.Context) (quic.SendStream, error) {
	args := m.Called(ctx)
	s, _ := args.Get(0).(quic.SendStream)
	return s, args.Error(1)
}

func (m *MockQuicConnection) LocalAddr() net.Addr {
	addr, _ := m.Called().Get(0).(net.Addr)
	return addr
}

func (m *MockQuicConnection) RemoteAddr() net.Addr {
	addr, _ := m.Called().Get(0).(net.Addr)
	return addr
}

func (m *MockQuicConnection) CloseWithError(code quic.ApplicationErrorCode, reason string) error {
	return m.Called(code, reason).Error(0)
}

func (m *MockQuicConnection) ConnectionState() quic.ConnectionState {
	return m.Called().Get(0).(quic.ConnectionState)
}

func (m *MockQuicConnection) Context() context.Context {
	ctx, _ := m.Called().Get(0).(context.Context)
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

func (m *MockQuicConnection) SendDatagram(b []byte) error {
	return m.Called(b).Error(0)
}

func (m *MockQuicConnection) ReceiveDatagram(ctx context.Context) ([]byte, error) {
	args := m.Called(ctx)
	b, _ := args.Get(0).([]byte)
	return b, args.Error(1)
}

// MockQuicStream implements quic.Stream.
type MockQuicStream struct {
	mock.Mock
}

func (m *MockQuicStream) Read(p []byte) (int, error) {
	args := m.Called(p)
	return args.Int(0), args.Error(1)
}

func (m *MockQuicStream) Write(p []byte) (int, error) {
	args := m.Called(p)
	return args.Int(0), args.Error(1)
}

func (m *MockQuicStream) Close() error {
	return m.Called().Error(0)
}

func (m *MockQuicStream) CancelRead(code quic.StreamErrorCode) {
	m.Called(code)
}

func (m *MockQuicStream) CancelWrite(code quic.StreamErrorCode) {
	m.Called(code)
}

func (m *MockQuicStream) SetReadDeadline(t time.Time) error {
	return m.Called(t).Error(0)
}

func (m *MockQuicStream) SetWriteDeadline(t time.Time) error {
	return m.Called(t).Error(0)
}

func (m *MockQuicStream) SetDeadline(t time.Time) error {
	return m.Called(t).Error(0)
}

func (m *MockQuicStream) StreamID() quic.StreamID {
	return m.Called().Get(0).(quic.StreamID)
}

func (m *MockQuicStream) Context() context.Context {
	ctx, _ := m.Called().Get(0).(context.Context)
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

// MockStreamHandler implements transport.StreamHandler.
type MockStreamHandler struct {
	mock.Mock
}

func (m *MockStreamHandler) HandleStream(ctx context.Context, s quic.Stream, peerKey ed25519.PublicKey) error {
	return m.Called(ctx, s, peerKey).Error(0)
}

// MockDialer implements transport.Dialer.
type MockDialer struct {
	mock.Mock
}

func (m *MockDialer) DialAddr(ctx context.Context, addr string, tlsConf *tls.Config, quicConf *quic.Config) (quic.Connection, error) {
	args := m.Called(ctx, addr, tlsConf, quicConf)
	conn, _ := args.Get(0).(quic.Connection)
	return conn, args.Error(1)
}
