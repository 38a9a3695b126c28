// Package cert issues and checks the self-signed Ed25519 certificates that
// kvrange nodes and clients present on QUIC connections. A certificate's only
// DNS name encodes its public key, so peers are identified by key rather than
// by a certificate authority.
package cert

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base32"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"
)

// DNSNamePrefix starts every encoded public key.
const DNSNamePrefix = "k"

// DefaultValidity is used by NewSelfSigned.
const DefaultValidity = 365 * 24 * time.Hour

var (
	ErrAlgorithm = errors.New("cert: signature algorithm is not Ed25519")
	ErrKeyType   = errors.New("cert: public key is not Ed25519")
	ErrDNSName   = errors.New("cert: DNS name does not encode the public key")
	ErrExpired   = errors.New("cert: certificate has expired")
	ErrNotYet    = errors.New("cert: certificate is not yet valid")
)

var base32Encoding = base32.NewEncoding("abcdefghijklmnopqrstuvwxyz234567").WithPadding(base32.NoPadding)

type Config struct {
	PublicKey          ed25519.PublicKey
	PrivateKey         ed25519.PrivateKey
	CertValidityPeriod time.Duration
}

// Generator creates certificates for one key pair.
type Generator struct {
	config Config
}

func NewGenerator(config Config) *Generator {
	return &Generator{config: config}
}

// NewSelfSigned generates a fresh key pair and a certificate for it.
func NewSelfSigned(validity time.Duration) (*tls.Certificate, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return NewGenerator(Config{PublicKey: pub, PrivateKey: priv, CertValidityPeriod: validity}).GenerateCertificate()
}

// EncodePubKeyToDNS returns DNSNamePrefix followed by the key in lowercase
// unpadded base32.
func EncodePubKeyToDNS(pubKey ed25519.PublicKey) string {
	return DNSNamePrefix + base32Encoding.EncodeToString(pubKey)
}

// GenerateCertificate returns a self-signed certificate usable for both
// server and client authentication.
func (g *Generator) GenerateCertificate() (*tls.Certificate, error) {
	dnsName := EncodePubKeyToDNS(g.config.PublicKey)

	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("failed to generate serial number: %w", err)
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber: serialNumber,
		Subject:      pkix.Name{CommonName: dnsName},
		DNSNames:     []string{dnsName},
		NotBefore:    now.Add(-time.Minute),
		NotAfter:     now.Add(g.config.CertValidityPeriod),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage: []x509.ExtKeyUsage{
			x509.ExtKeyUsageServerAuth,
			x509.ExtKeyUsageClientAuth,
		},
		SignatureAlgorithm:    x509.PureEd25519,
		PublicKeyAlgorithm:    x509.Ed25519,
		BasicConstraintsValid: true,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, template, template, g.config.PublicKey, g.config.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create certificate: %w", err)
	}
	leaf, err := x509.ParseCertificate(certDER)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}

	return &tls.Certificate{
		Certificate: [][]byte{certDER},
		PrivateKey:  g.config.PrivateKey,
		Leaf:        leaf,
	}, nil
}

// Validator checks peer certificates. It implements transport.CertValidator.
type Validator struct {
	now func() time.Time
}

func NewValidator() *Validator {
	return &Validator{now: time.Now}
}

func (v *Validator) ValidateCertificate(cert *x509.Certificate) error {
	if cert.SignatureAlgorithm != x509.PureEd25519 {
		return ErrAlgorithm
	}
	pubKey, err := v.ExtractPublicKey(cert)
	if err != nil {
		return err
	}
	if len(cert.DNSNames) != 1 {
		return fmt.Errorf("%w: want exactly one DNS name, got %d", ErrDNSName, len(cert.DNSNames))
	}
	dnsName := cert.DNSNames[0]
	if !strings.HasPrefix(dnsName, DNSNamePrefix) || dnsName != EncodePubKeyToDNS(pubKey) {
		return fmt.Errorf("%w: %s", ErrDNSName, dnsName)
	}

	now := v.now()
	if now.Before(cert.NotBefore) {
		return ErrNotYet
	}
	if now.After(cert.NotAfter) {
		return ErrExpired
	}
	return nil
}

func (v *Validator) ExtractPublicKey(cert *x509.Certificate) (ed25519.PublicKey, error) {
	pubKey, ok := cert.PublicKey.(ed25519.PublicKey)
	if !ok {
		return nil, ErrKeyType
	}
	return pubKey, nil
}
