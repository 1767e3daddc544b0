/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package pki implements the certificate authority (C7): a self-signed CA,
// a server certificate with an encrypted private key, and on-demand
// per-user client certificate issuance.
package pki

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const (
	caKeyBits     = 4096
	leafKeyBits   = 2048
	validity      = 10 * 365 * 24 * time.Hour
	organization  = "KaZa"
	country       = "FR"
	caCertFile    = "ca.cert.pem"
	caKeyFileName = "ca.key"
	srvCertFile   = "server.cert.pem"
	srvKeyFile    = "server.key"
)

var (
	ErrNoCA = errors.New("pki: CA not bootstrapped")
)

// Authority owns the on-disk certificate store under BasePath (§6).
type Authority struct {
	BasePath string
	Hostname string

	lock *flock.Flock
}

func New(basePath, hostname string) *Authority {
	return &Authority{
		BasePath: basePath,
		Hostname: hostname,
		lock:     flock.New(filepath.Join(basePath, ".kazad-pki.lock")),
	}
}

func (a *Authority) path(name string) string { return filepath.Join(a.BasePath, name) }

// Bootstrap ensures the CA and server credentials exist under BasePath,
// generating them on first run (§4.7). It is idempotent: if all four
// files (CA cert and key, server cert and key) already exist, it does
// nothing.
func (a *Authority) Bootstrap(keyPassword string) error {
	if err := os.MkdirAll(a.BasePath, 0700); err != nil {
		return err
	}
	if err := a.lock.Lock(); err != nil {
		return fmt.Errorf("pki: acquiring bootstrap lock: %w", err)
	}
	defer a.lock.Unlock()

	if a.filesExist(caCertFile, caKeyFileName, srvCertFile, srvKeyFile) {
		return nil
	}

	caCert, caKey, err := a.generateCA()
	if err != nil {
		return fmt.Errorf("pki: generating CA: %w", err)
	}
	if err := a.writeCA(caCert, caKey); err != nil {
		return fmt.Errorf("pki: writing CA: %w", err)
	}

	if err := a.generateServerCert(caCert, caKey, keyPassword); err != nil {
		return fmt.Errorf("pki: generating server certificate: %w", err)
	}
	return nil
}

func (a *Authority) filesExist(names ...string) bool {
	for _, n := range names {
		if _, err := os.Stat(a.path(n)); err != nil {
			return false
		}
	}
	return true
}

// generateCA builds the self-signed CA certificate per §4.7: 4096-bit RSA,
// 10 years, CN=<hostname> CA, O=KaZa, C=FR, CA:TRUE critical.
func (a *Authority) generateCA() (*x509.Certificate, *rsa.PrivateKey, error) {
	key, err := rsa.GenerateKey(rand.Reader, caKeyBits)
	if err != nil {
		return nil, nil, err
	}

	serial, err := randomSerial()
	if err != nil {
		return nil, nil, err
	}

	ski, err := subjectKeyID(&key.PublicKey)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now()
	tmpl := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName:   a.Hostname + " CA",
			Organization: []string{organization},
			Country:      []string{country},
		},
		NotBefore:             now,
		NotAfter:              now.Add(validity),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
		SubjectKeyId:          ski,
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return nil, nil, err
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, nil, err
	}
	return cert, key, nil
}

func randomSerial() (*big.Int, error) {
	limit := new(big.Int).Lsh(big.NewInt(1), 128)
	return rand.Int(rand.Reader, limit)
}

func subjectKeyID(pub *rsa.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, err
	}
	sum := sha1.Sum(der)
	return sum[:], nil
}
