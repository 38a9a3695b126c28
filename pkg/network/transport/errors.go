package transport

import "errors"

var (
	ErrInvalidCertificate = errors.New("invalid certificate")
	ErrInvalidProtocol    = errors.New("invalid ALPN protocol")
	ErrListenerFailed     = errors.New("failed to create QUIC listener")
	ErrDialFailed         = errors.New("failed to dial peer")
	ErrConnFailed         = errors.New("failed to establish connection")
	ErrNoHandler          = errors.New("no stream handler configured")
	ErrStopped            = errors.New("transport stopped")
)
