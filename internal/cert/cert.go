// Package cert mints ephemeral, self-signed TLS credentials. A qcp
// session never consults a CA bundle: the only trust decision the QUIC
// handshake makes is "does the presented leaf match the DER bytes
// exchanged over the control channel."
package cert

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base32"
	"errors"
	"fmt"
	"math/big"
	"time"
)

// sessionLifetime bounds how long a minted certificate would validate if
// it outlived its session; it is never persisted or reused across runs.
const sessionLifetime = 6 * time.Hour

// Identity bundles a peer's minted certificate with the display name
// carried in the control exchange and its DER bytes for comparison.
type Identity struct {
	Certificate tls.Certificate
	DER         []byte
	Name        string
}

// Mint generates a fresh ECDSA P-256 key pair and a self-signed leaf
// certificate whose CN is a freshly generated short identifier.
func Mint() (*Identity, error) {
	name, err := randomName()
	if err != nil {
		return nil, fmt.Errorf("cert: generate identity: %w", err)
	}

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("cert: generate key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("cert: generate serial: %w", err)
	}

	notBefore := time.Now().Add(-time.Minute)
	template := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: name},
		NotBefore:             notBefore,
		NotAfter:              notBefore.Add(sessionLifetime),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &priv.PublicKey, priv)
	if err != nil {
		return nil, fmt.Errorf("cert: self-sign: %w", err)
	}

	return &Identity{
		Certificate: tls.Certificate{Certificate: [][]byte{der}, PrivateKey: priv},
		DER:         der,
		Name:        name,
	}, nil
}

func randomName() (string, error) {
	raw := make([]byte, 10)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return "qcp-" + base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(raw), nil
}

// ErrPeerMismatch indicates the certificate the QUIC handshake presented
// does not byte-exactly match the DER exchanged over the control channel.
var ErrPeerMismatch = errors.New("cert: peer certificate does not match control-channel exchange")

// VerifyPeerDER builds a tls.Config.VerifyPeerCertificate callback that
// accepts only a leaf whose raw bytes equal want. It is meant to pair
// with tls.Config{InsecureSkipVerify: true}, since there is no CA to walk
// a chain against: want is the entire trust store for this session.
func VerifyPeerDER(want []byte) func([][]byte, [][]*x509.Certificate) error {
	return func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		if len(rawCerts) == 0 {
			return ErrPeerMismatch
		}
		if len(rawCerts[0]) != len(want) {
			return ErrPeerMismatch
		}
		for i := range want {
			if rawCerts[0][i] != want[i] {
				return ErrPeerMismatch
			}
		}
		return nil
	}
}
