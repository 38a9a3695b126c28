package transport

import (
	"fmt"
	"strings"
)

const (
	protocolPrefix = "kvrange"
	currentVersion = "1"
)

// ProtocolID is the ALPN identifier negotiated on every connection,
// "kvrange/<version>".
type ProtocolID struct {
	Version string
}

func NewProtocolID() ProtocolID {
	return ProtocolID{Version: currentVersion}
}

func (p ProtocolID) String() string {
	return protocolPrefix + "/" + p.Version
}

func ParseProtocolID(protocol string) (ProtocolID, error) {
	prefix, version, ok := strings.Cut(protocol, "/")
	if !ok {
		return ProtocolID{}, fmt.Errorf("%w: %q", ErrInvalidProtocol, protocol)
	}
	if prefix != protocolPrefix {
		return ProtocolID{}, fmt.Errorf("%w: prefix %q", ErrInvalidProtocol, prefix)
	}
	if version != currentVersion {
		return ProtocolID{}, fmt.Errorf("%w: unsupported version %q", ErrInvalidProtocol, version)
	}
	return ProtocolID{Version: version}, nil
}

func ValidateALPNProtocol(protocol string) error {
	_, err := ParseProtocolID(protocol)
	return err
}

// AcceptableProtocols lists the ALPN strings offered in the TLS handshake.
func AcceptableProtocols() []string {
	return []string{NewProtocolID().String()}
}
