// Package verification provides X.509 certification path validation.
// This file contains tests for the trust store and certificate pool.
package verification

import (
	"crypto/x509"
	"sync"
	"testing"
)

func TestTrustStoreDeduplicates(t *testing.T) {
	root, _ := issueCert(t, certSpec{cn: "Dup Root", isCA: true}, nil, nil)
	other, _ := issueCert(t, certSpec{cn: "Other Root", isCA: true}, nil, nil)

	store := NewTrustStore([]*x509.Certificate{root, other, root})
	if store.Len() != 2 {
		t.Errorf("Expected 2 anchors after deduplication, got %d", store.Len())
	}
}

func TestTrustStoreContains(t *testing.T) {
	root, _ := issueCert(t, certSpec{cn: "C Root", isCA: true}, nil, nil)
	stranger, _ := issueCert(t, certSpec{cn: "Stranger", isCA: true}, nil, nil)

	store := NewTrustStore([]*x509.Certificate{root})
	if !store.Contains(root) {
		t.Error("Expected store to contain its anchor")
	}
	if store.Contains(stranger) {
		t.Error("Expected store not to contain a foreign certificate")
	}
}

func TestTrustStoreAnchorsFor(t *testing.T) {
	rootA, _ := issueCert(t, certSpec{cn: "Shared Name", isCA: true}, nil, nil)
	rootB, _ := issueCert(t, certSpec{cn: "Shared Name", isCA: true}, nil, nil)
	rootC, _ := issueCert(t, certSpec{cn: "Different Name", isCA: true}, nil, nil)

	store := NewTrustStore([]*x509.Certificate{rootA, rootB, rootC})

	matches := store.AnchorsFor(rootA.Subject)
	if len(matches) != 2 {
		t.Fatalf("Expected 2 anchors for the shared subject, got %d", len(matches))
	}
	// Insertion order.
	if !CertificatesEqual(matches[0], rootA) || !CertificatesEqual(matches[1], rootB) {
		t.Error("Expected anchors in insertion order")
	}

	if got := store.AnchorsFor(rootC.Subject); len(got) != 1 {
		t.Errorf("Expected 1 anchor for the distinct subject, got %d", len(got))
	}
}

func TestCertificatePoolAdd(t *testing.T) {
	certA, _ := issueCert(t, certSpec{cn: "Pool A", isCA: true}, nil, nil)
	certB, _ := issueCert(t, certSpec{cn: "Pool B", isCA: true}, nil, nil)

	pool := NewCertificatePool()
	if !pool.Add(certA) {
		t.Error("Expected first Add to report a new certificate")
	}
	if pool.Add(certA) {
		t.Error("Expected duplicate Add to report false")
	}
	pool.Add(certB)

	if pool.Len() != 2 {
		t.Errorf("Expected pool of 2 certificates, got %d", pool.Len())
	}

	all := pool.All()
	if !CertificatesEqual(all[0], certA) || !CertificatesEqual(all[1], certB) {
		t.Error("Expected certificates in registration order")
	}
}

func TestCertificatePoolCandidatesFor(t *testing.T) {
	certA, _ := issueCert(t, certSpec{cn: "Same Subject", isCA: true}, nil, nil)
	certB, _ := issueCert(t, certSpec{cn: "Same Subject", isCA: true}, nil, nil)

	pool := NewCertificatePool(certA, certB)
	candidates := pool.CandidatesFor(certA.Subject)
	if len(candidates) != 2 {
		t.Fatalf("Expected 2 candidates, got %d", len(candidates))
	}

	other, _ := issueCert(t, certSpec{cn: "Unrelated", isCA: true}, nil, nil)
	if got := pool.CandidatesFor(other.Subject); len(got) != 0 {
		t.Errorf("Expected no candidates for an unknown subject, got %d", len(got))
	}
}

func TestCertificatePoolConcurrentAccess(t *testing.T) {
	certs := make([]*x509.Certificate, 4)
	for i := range certs {
		certs[i], _ = issueCert(t, certSpec{cn: "Concurrent", isCA: true}, nil, nil)
	}

	pool := NewCertificatePool()
	var wg sync.WaitGroup
	for _, cert := range certs {
		wg.Add(1)
		go func(c *x509.Certificate) {
			defer wg.Done()
			pool.Add(c)
			pool.CandidatesFor(c.Subject)
			pool.Len()
		}(cert)
	}
	wg.Wait()

	if pool.Len() != len(certs) {
		t.Errorf("Expected %d certificates after concurrent adds, got %d", len(certs), pool.Len())
	}
}
