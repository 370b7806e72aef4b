// Package verification provides X.509 certification path building and
// validation against a trust store.
// This file contains the trust store and the untrusted intermediate pool.
package verification

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"sync"
)

// TrustStore is an immutable set of trust anchor certificates. Chains
// terminate at the first trust anchor reached; anchors are never searched
// further, even when self-issued. A TrustStore may be shared read-only
// across concurrent verifications.
type TrustStore struct {
	anchors       []*x509.Certificate
	bySubject     map[string][]*x509.Certificate
	byFingerprint map[[32]byte]struct{}
}

// NewTrustStore creates a trust store from the given anchor certificates.
// Duplicates (by DER identity) are dropped; insertion order is preserved for
// deterministic candidate ordering.
func NewTrustStore(anchors []*x509.Certificate) *TrustStore {
	ts := &TrustStore{
		bySubject:     make(map[string][]*x509.Certificate),
		byFingerprint: make(map[[32]byte]struct{}),
	}
	for _, anchor := range anchors {
		fp := CertificateFingerprint(anchor)
		if _, seen := ts.byFingerprint[fp]; seen {
			continue
		}
		ts.byFingerprint[fp] = struct{}{}
		ts.anchors = append(ts.anchors, anchor)

		key := subjectHashKey(anchor.Subject)
		ts.bySubject[key] = append(ts.bySubject[key], anchor)
	}
	return ts
}

// Contains reports whether the certificate is a trust anchor, by DER identity.
func (ts *TrustStore) Contains(cert *x509.Certificate) bool {
	_, ok := ts.byFingerprint[CertificateFingerprint(cert)]
	return ok
}

// AnchorsFor returns the trust anchors whose subject matches the given name,
// in insertion order.
func (ts *TrustStore) AnchorsFor(issuer pkix.Name) []*x509.Certificate {
	return ts.bySubject[subjectHashKey(issuer)]
}

// All returns all trust anchors in insertion order.
func (ts *TrustStore) All() []*x509.Certificate {
	result := make([]*x509.Certificate, len(ts.anchors))
	copy(result, ts.anchors)
	return result
}

// Len returns the number of trust anchors.
func (ts *TrustStore) Len() int {
	return len(ts.anchors)
}

// CertificatePool holds untrusted intermediate certificates supplied for a
// verification, indexed by subject. Registration order is preserved: the
// path builder visits pool candidates in the order they were added.
type CertificatePool struct {
	mu sync.RWMutex

	certs         []*x509.Certificate
	bySubject     map[string][]*x509.Certificate
	byFingerprint map[[32]byte]struct{}
}

// NewCertificatePool creates a pool containing the given certificates.
func NewCertificatePool(certs ...*x509.Certificate) *CertificatePool {
	pool := &CertificatePool{
		bySubject:     make(map[string][]*x509.Certificate),
		byFingerprint: make(map[[32]byte]struct{}),
	}
	for _, cert := range certs {
		pool.Add(cert)
	}
	return pool
}

// Add registers a certificate in the pool. Returns true if the certificate
// was newly added.
func (p *CertificatePool) Add(cert *x509.Certificate) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	fp := CertificateFingerprint(cert)
	if _, seen := p.byFingerprint[fp]; seen {
		return false
	}
	p.byFingerprint[fp] = struct{}{}
	p.certs = append(p.certs, cert)

	key := subjectHashKey(cert.Subject)
	p.bySubject[key] = append(p.bySubject[key], cert)
	return true
}

// CandidatesFor returns the pool certificates whose subject matches the
// given issuer name, in registration order.
func (p *CertificatePool) CandidatesFor(issuer pkix.Name) []*x509.Certificate {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.bySubject[subjectHashKey(issuer)]
}

// All returns all pool certificates in registration order.
func (p *CertificatePool) All() []*x509.Certificate {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make([]*x509.Certificate, len(p.certs))
	copy(result, p.certs)
	return result
}

// Len returns the number of certificates in the pool.
func (p *CertificatePool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return len(p.certs)
}
