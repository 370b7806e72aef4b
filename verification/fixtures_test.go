// Package verification provides X.509 certification path building and
// validation against a trust store.
// This file contains shared certificate fixtures for tests.
package verification

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net"
	"sync/atomic"
	"testing"
	"time"
)

var testSerial atomic.Int64

// certSpec describes a test certificate to issue.
type certSpec struct {
	cn         string
	isCA       bool
	selfIssued bool

	// pathLen, when non-nil, sets a basic constraints path length.
	pathLen *int

	notBefore time.Time
	notAfter  time.Time

	dnsNames    []string
	ipAddresses []net.IP

	// noKeyUsage omits the key usage extension entirely.
	noKeyUsage bool
	keyUsage   x509.KeyUsage
	ekus       []x509.ExtKeyUsage

	permittedDNS   []string
	excludedDNS    []string
	permittedEmail []string
	excludedEmail  []string
	permittedIP    []*net.IPNet
	excludedIP     []*net.IPNet
}

func intPtr(n int) *int {
	return &n
}

// issueCert creates a certificate from a spec. A nil issuer produces a
// self-signed certificate.
func issueCert(t *testing.T, spec certSpec, issuer *x509.Certificate, issuerKey *rsa.PrivateKey) (*x509.Certificate, *rsa.PrivateKey) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}

	notBefore := spec.notBefore
	if notBefore.IsZero() {
		notBefore = time.Now().Add(-time.Hour)
	}
	notAfter := spec.notAfter
	if notAfter.IsZero() {
		notAfter = time.Now().Add(24 * time.Hour)
	}

	template := &x509.Certificate{
		SerialNumber: big.NewInt(testSerial.Add(1)),
		Subject: pkix.Name{
			CommonName:   spec.cn,
			Organization: []string{"Test Org"},
		},
		NotBefore:               notBefore,
		NotAfter:                notAfter,
		BasicConstraintsValid:   true,
		IsCA:                    spec.isCA,
		DNSNames:                spec.dnsNames,
		IPAddresses:             spec.ipAddresses,
		ExtKeyUsage:             spec.ekus,
		PermittedDNSDomains:     spec.permittedDNS,
		ExcludedDNSDomains:      spec.excludedDNS,
		PermittedEmailAddresses: spec.permittedEmail,
		ExcludedEmailAddresses:  spec.excludedEmail,
		PermittedIPRanges:       spec.permittedIP,
		ExcludedIPRanges:        spec.excludedIP,
	}
	if len(spec.permittedDNS)+len(spec.excludedDNS)+
		len(spec.permittedEmail)+len(spec.excludedEmail)+
		len(spec.permittedIP)+len(spec.excludedIP) > 0 {
		template.PermittedDNSDomainsCritical = true
	}

	if !spec.noKeyUsage {
		if spec.keyUsage != 0 {
			template.KeyUsage = spec.keyUsage
		} else if spec.isCA {
			template.KeyUsage = x509.KeyUsageCertSign | x509.KeyUsageCRLSign
		} else {
			template.KeyUsage = x509.KeyUsageDigitalSignature
		}
	}

	if spec.pathLen != nil {
		template.MaxPathLen = *spec.pathLen
		template.MaxPathLenZero = *spec.pathLen == 0
	}

	signingCert := template
	signingKey := key
	if issuer != nil {
		signingCert = issuer
		signingKey = issuerKey
	}

	certBytes, err := x509.CreateCertificate(rand.Reader, template, signingCert, &key.PublicKey, signingKey)
	if err != nil {
		t.Fatalf("failed to create certificate: %v", err)
	}

	cert, err := x509.ParseCertificate(certBytes)
	if err != nil {
		t.Fatalf("failed to parse certificate: %v", err)
	}

	return cert, key
}

// reissueCert issues a new certificate with the same subject and key as an
// existing one, signed by the given issuer. Used to model self-issued CA
// certificates and cross-signed duplicates.
func reissueCert(t *testing.T, cert *x509.Certificate, certKey *rsa.PrivateKey, issuer *x509.Certificate, issuerKey *rsa.PrivateKey) *x509.Certificate {
	t.Helper()

	template := &x509.Certificate{
		SerialNumber:          big.NewInt(testSerial.Add(1)),
		Subject:               cert.Subject,
		NotBefore:             cert.NotBefore,
		NotAfter:              cert.NotAfter,
		BasicConstraintsValid: cert.BasicConstraintsValid,
		IsCA:                  cert.IsCA,
		KeyUsage:              cert.KeyUsage,
		MaxPathLen:            cert.MaxPathLen,
		MaxPathLenZero:        cert.MaxPathLenZero,
	}

	certBytes, err := x509.CreateCertificate(rand.Reader, template, issuer, &certKey.PublicKey, issuerKey)
	if err != nil {
		t.Fatalf("failed to reissue certificate: %v", err)
	}

	reissued, err := x509.ParseCertificate(certBytes)
	if err != nil {
		t.Fatalf("failed to parse reissued certificate: %v", err)
	}
	return reissued
}

// testChain is a ready-made root -> intermediate -> leaf hierarchy.
type testChain struct {
	root    *x509.Certificate
	rootKey *rsa.PrivateKey

	intermediate    *x509.Certificate
	intermediateKey *rsa.PrivateKey

	leaf    *x509.Certificate
	leafKey *rsa.PrivateKey
}

// newTestChain issues a three-certificate hierarchy with the leaf valid for
// example.com.
func newTestChain(t *testing.T) *testChain {
	t.Helper()

	root, rootKey := issueCert(t, certSpec{cn: "Test Root CA", isCA: true}, nil, nil)
	intermediate, intermediateKey := issueCert(t, certSpec{cn: "Test Intermediate CA", isCA: true}, root, rootKey)
	leaf, leafKey := issueCert(t, certSpec{
		cn:       "example.com",
		dnsNames: []string{"example.com"},
		ekus:     []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}, intermediate, intermediateKey)

	return &testChain{
		root: root, rootKey: rootKey,
		intermediate: intermediate, intermediateKey: intermediateKey,
		leaf: leaf, leafKey: leafKey,
	}
}

// newTestVerifier builds a server verifier over the chain's root for the
// given DNS name.
func newTestVerifier(t *testing.T, tc *testChain, dnsName string, opts ...PolicyOption) *ServerVerifier {
	t.Helper()

	policyOpts := append([]PolicyOption{WithTrustStore(NewTrustStore([]*x509.Certificate{tc.root}))}, opts...)
	policy, err := NewPolicy(policyOpts...)
	if err != nil {
		t.Fatalf("failed to build policy: %v", err)
	}

	subject, err := NewDNSName(dnsName)
	if err != nil {
		t.Fatalf("failed to build DNS name: %v", err)
	}

	verifier, err := policy.BuildServerVerifier(subject)
	if err != nil {
		t.Fatalf("failed to build verifier: %v", err)
	}
	return verifier
}
