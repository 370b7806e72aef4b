// Package keys provides utilities for loading trust material: certificates
// from PEM and DER encoded data and trust stores from PKCS#12 archives.
package keys

import (
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"

	pkcs12 "software.sslmate.com/src/go-pkcs12"

	"github.com/georgepadayatti/certpath/verification"
)

// Common errors
var (
	ErrNoCertFound   = errors.New("no certificate found in data")
	ErrMultipleCerts = errors.New("expected exactly one certificate")
)

// LoadCertFromPemDer loads a single certificate from a PEM or DER encoded file.
func LoadCertFromPemDer(filename string) (*x509.Certificate, error) {
	certs, err := LoadCertsFromPemDer(filename)
	if err != nil {
		return nil, err
	}
	if len(certs) != 1 {
		return nil, fmt.Errorf("%w: found %d certificates in %s", ErrMultipleCerts, len(certs), filename)
	}
	return certs[0], nil
}

// LoadCertFromPemDerData loads a single certificate from PEM or DER encoded data.
func LoadCertFromPemDerData(data []byte) (*x509.Certificate, error) {
	certs, err := LoadCertsFromPemDerData(data)
	if err != nil {
		return nil, err
	}
	if len(certs) != 1 {
		return nil, fmt.Errorf("%w: found %d certificates", ErrMultipleCerts, len(certs))
	}
	return certs[0], nil
}

// LoadCertsFromPemDer loads certificates from a PEM or DER encoded file.
func LoadCertsFromPemDer(filename string) ([]*x509.Certificate, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filename, err)
	}
	return LoadCertsFromPemDerData(data)
}

// LoadCertsFromPemDerData loads certificates from PEM or DER encoded data.
// Undecodable input yields a *verification.MalformedCertificateError.
func LoadCertsFromPemDerData(data []byte) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate

	if isPEM(data) {
		rest := data
		for len(rest) > 0 {
			var block *pem.Block
			block, rest = pem.Decode(rest)
			if block == nil {
				break
			}
			if block.Type != "CERTIFICATE" {
				continue
			}
			cert, err := x509.ParseCertificate(block.Bytes)
			if err != nil {
				return nil, verification.NewMalformedCertificateError("failed to parse certificate", err)
			}
			certs = append(certs, cert)
		}
	} else {
		parsed, err := x509.ParseCertificates(data)
		if err != nil {
			return nil, verification.NewMalformedCertificateError("failed to parse DER certificate", err)
		}
		certs = parsed
	}

	if len(certs) == 0 {
		return nil, verification.NewMalformedCertificateError("no certificate found in data", ErrNoCertFound)
	}

	return certs, nil
}

// LoadCertsFromPemDerFiles loads certificates from multiple files.
func LoadCertsFromPemDerFiles(filenames []string) ([]*x509.Certificate, error) {
	var allCerts []*x509.Certificate
	for _, filename := range filenames {
		certs, err := LoadCertsFromPemDer(filename)
		if err != nil {
			return nil, fmt.Errorf("failed to load certs from %s: %w", filename, err)
		}
		allCerts = append(allCerts, certs...)
	}
	return allCerts, nil
}

// LoadTrustStoreFromPKCS12 builds a trust store from the CA entries of a
// PKCS#12 trust-store archive.
func LoadTrustStoreFromPKCS12(data []byte, password string) (*verification.TrustStore, error) {
	anchors, err := pkcs12.DecodeTrustStore(data, password)
	if err != nil {
		return nil, verification.NewMalformedCertificateError("failed to decode PKCS#12 trust store", err)
	}
	if len(anchors) == 0 {
		return nil, verification.NewMalformedCertificateError("PKCS#12 archive holds no certificates", ErrNoCertFound)
	}
	return verification.NewTrustStore(anchors), nil
}

// LoadTrustStoreFromPKCS12File builds a trust store from a PKCS#12 file.
func LoadTrustStoreFromPKCS12File(filename, password string) (*verification.TrustStore, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filename, err)
	}
	return LoadTrustStoreFromPKCS12(data, password)
}

func isPEM(data []byte) bool {
	return len(data) > 10 && string(data[:5]) == "-----"
}
