/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package pki

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"os"
	"path/filepath"
	"time"
)

func clientCertPath(base, username string) string { return filepath.Join(base, username+".cert.pem") }
func clientKeyPath(base, username string) string  { return filepath.Join(base, username+".key") }

// HasClientCertificate reports whether a client certificate already exists
// for username (§8 property 9: repeated clientconf? reuses existing files).
func (a *Authority) HasClientCertificate(username string) bool {
	return a.filesExist(username + ".cert.pem")
}

// GenerateClientCertificate produces a 2048-bit RSA key (written as
// unencrypted PKCS#8, §4.7) and a CA-signed certificate for username,
// unless one already exists. It is idempotent under concurrent callers via
// the same file lock Bootstrap uses (§8 property 9).
func (a *Authority) GenerateClientCertificate(username string) error {
	if err := a.lock.Lock(); err != nil {
		return err
	}
	defer a.lock.Unlock()

	if a.filesExist(username+".cert.pem", username+".key") {
		return nil
	}

	caCert, caKey, err := a.loadCA()
	if err != nil {
		return ErrNoCA
	}

	key, err := rsa.GenerateKey(rand.Reader, leafKeyBits)
	if err != nil {
		return err
	}

	ski, err := subjectKeyID(&key.PublicKey)
	if err != nil {
		return err
	}

	now := time.Now()
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(now.Unix()),
		Subject: pkix.Name{
			CommonName: username,
		},
		NotBefore:             now,
		NotAfter:              now.Add(validity),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
		IsCA:                  false,
		SubjectKeyId:          ski,
		AuthorityKeyId:        caCert.SubjectKeyId,
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, caCert, &key.PublicKey, caKey)
	if err != nil {
		return err
	}

	if err := writePEM(clientCertPath(a.BasePath, username), "CERTIFICATE", der, 0644); err != nil {
		return err
	}

	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return err
	}
	return writePEM(clientKeyPath(a.BasePath, username), "PRIVATE KEY", keyDER, 0600)
}

// ClientCertPEM and ClientKeyPEM return the per-user credential PEM bytes;
// callers (the control service) assemble these into the bundle of §4.6.
func (a *Authority) ClientCertPEM(username string) ([]byte, error) {
	return os.ReadFile(clientCertPath(a.BasePath, username))
}

func (a *Authority) ClientKeyPEM(username string) ([]byte, error) {
	return os.ReadFile(clientKeyPath(a.BasePath, username))
}
