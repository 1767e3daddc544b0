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
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"time"
)

// generateServerCert builds and writes the server certificate and its
// encrypted private key per §4.7: 2048-bit RSA, CN=<hostname>, O=KaZa,
// C=FR, CA:FALSE, key usage digitalSignature+keyEncipherment, EKU
// serverAuth+clientAuth, SAN DNS:<hostname>.
func (a *Authority) generateServerCert(caCert *x509.Certificate, caKey *rsa.PrivateKey, keyPassword string) error {
	key, err := rsa.GenerateKey(rand.Reader, leafKeyBits)
	if err != nil {
		return err
	}

	serial, err := randomSerial()
	if err != nil {
		return err
	}
	ski, err := subjectKeyID(&key.PublicKey)
	if err != nil {
		return err
	}

	now := time.Now()
	tmpl := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName:   a.Hostname,
			Organization: []string{organization},
			Country:      []string{country},
		},
		NotBefore:             now,
		NotAfter:              now.Add(validity),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
		IsCA:                  false,
		DNSNames:              []string{a.Hostname},
		SubjectKeyId:          ski,
		AuthorityKeyId:        caCert.SubjectKeyId,
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, caCert, &key.PublicKey, caKey)
	if err != nil {
		return err
	}

	if err := writePEM(a.path(srvCertFile), "CERTIFICATE", der, 0644); err != nil {
		return err
	}

	keyDER := x509.MarshalPKCS1PrivateKey(key)
	//lint:ignore SA1019 §4.7 requires the legacy triple-DES-CBC PEM
	//encryption format some target clients still expect; there is no
	//ecosystem replacement that emits this exact PEM header shape.
	block, err := x509.EncryptPEMBlock(rand.Reader, "RSA PRIVATE KEY", keyDER, []byte(keyPassword), x509.PEMCipherDES3)
	if err != nil {
		return err
	}
	return os.WriteFile(a.path(srvKeyFile), pem.EncodeToMemory(block), 0600)
}

// writeCA writes the CA certificate and its unencrypted private key
// (§6: "CA key unencrypted, owner-readable").
func (a *Authority) writeCA(cert *x509.Certificate, key *rsa.PrivateKey) error {
	if err := writePEM(a.path(caCertFile), "CERTIFICATE", cert.Raw, 0644); err != nil {
		return err
	}
	keyDER := x509.MarshalPKCS1PrivateKey(key)
	return writePEM(a.path(caKeyFileName), "RSA PRIVATE KEY", keyDER, 0600)
}

func writePEM(path, blockType string, der []byte, mode os.FileMode) error {
	block := &pem.Block{Type: blockType, Bytes: der}
	return os.WriteFile(path, pem.EncodeToMemory(block), mode)
}

// ServerCertPEM returns the server certificate PEM bytes.
func (a *Authority) ServerCertPEM() ([]byte, error) { return os.ReadFile(a.path(srvCertFile)) }

// ServerKeyPEM returns the encrypted server key PEM bytes.
func (a *Authority) ServerKeyPEM() ([]byte, error) { return os.ReadFile(a.path(srvKeyFile)) }

// ServerKeyPEMDecrypted decrypts the server private key with keyPassword
// and returns it as an unencrypted PKCS#1 PEM block, the shape
// tls.X509KeyPair expects.
func (a *Authority) ServerKeyPEMDecrypted(keyPassword string) ([]byte, error) {
	encPEM, err := a.ServerKeyPEM()
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(encPEM)
	if block == nil {
		return nil, errors.New("pki: server key is not valid PEM")
	}
	//lint:ignore SA1019 matches the EncryptPEMBlock carve-out in generateServerCert.
	der, err := x509.DecryptPEMBlock(block, []byte(keyPassword))
	if err != nil {
		return nil, fmt.Errorf("pki: decrypting server key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: der}), nil
}

// CACertPEM returns the CA certificate PEM bytes.
func (a *Authority) CACertPEM() ([]byte, error) { return os.ReadFile(a.path(caCertFile)) }

func (a *Authority) caKeyPEM() ([]byte, error) { return os.ReadFile(a.path(caKeyFileName)) }

// loadCA reads back the CA certificate and key for signing new leaf
// certificates (e.g. per-user client certs generated after Bootstrap).
func (a *Authority) loadCA() (*x509.Certificate, *rsa.PrivateKey, error) {
	certPEM, err := a.CACertPEM()
	if err != nil {
		return nil, nil, err
	}
	keyPEM, err := a.caKeyPEM()
	if err != nil {
		return nil, nil, err
	}
	certBlock, _ := pem.Decode(certPEM)
	cert, err := x509.ParseCertificate(certBlock.Bytes)
	if err != nil {
		return nil, nil, err
	}
	keyBlock, _ := pem.Decode(keyPEM)
	key, err := x509.ParsePKCS1PrivateKey(keyBlock.Bytes)
	if err != nil {
		return nil, nil, err
	}
	return cert, key, nil
}
