// Package verification provides X.509 certification path building and
// validation against a trust store.
// This file contains the candidate path builder.
package verification

import (
	"crypto/x509"
	"fmt"
)

// hardDepthCeiling bounds the total length of any chain prefix the walker
// will explore, independent of the configured depth budget, so pathological
// inputs cannot drive unbounded recursion.
const hardDepthCeiling = 32

// BuiltChain is an ordered certification path: the leaf certificate first,
// the trust anchor last, and every adjacent pair linked by
// chain[i].Issuer == chain[i+1].Subject.
type BuiltChain []*x509.Certificate

// Leaf returns the end-entity certificate at the head of the chain.
func (c BuiltChain) Leaf() *x509.Certificate {
	if len(c) == 0 {
		return nil
	}
	return c[0]
}

// Anchor returns the trust anchor at the tail of the chain.
func (c BuiltChain) Anchor() *x509.Certificate {
	if len(c) == 0 {
		return nil
	}
	return c[len(c)-1]
}

// PathBuilder discovers candidate certification paths from a leaf
// certificate to a trust anchor by depth-first search over the intermediate
// pool and the trust store.
//
// Candidate issuers for a certificate are exactly those whose subject equals
// its issuer name (NamesEqual); no key identifier filtering is applied, since
// wrong-key candidates are rejected by signature checking during validation.
// Candidates are visited in a documented deterministic order: trust anchors
// first, then pool certificates, each in insertion order.
type PathBuilder struct {
	store    *TrustStore
	pool     *CertificatePool
	maxDepth int
}

// NewPathBuilder creates a path builder. maxDepth bounds the number of
// non-self-issued intermediate certificates permitted in a chain, excluding
// the leaf and the trust anchor.
func NewPathBuilder(store *TrustStore, pool *CertificatePool, maxDepth int) *PathBuilder {
	return &PathBuilder{
		store:    store,
		pool:     pool,
		maxDepth: maxDepth,
	}
}

// BuildAll returns every candidate chain for the leaf, in search order.
// If no branch reaches a trust anchor, the error wraps ErrNoPathFound.
func (pb *PathBuilder) BuildAll(leaf *x509.Certificate) ([]BuiltChain, error) {
	var chains []BuiltChain

	errs := NewErrors()
	pb.visitChains(leaf, errs, func(chain BuiltChain) bool {
		chains = append(chains, chain)
		return false
	})

	if len(chains) == 0 {
		if last := errs.Last(); last != nil {
			return nil, fmt.Errorf("%w for certificate with subject %q: %v",
				ErrNoPathFound, leaf.Subject.String(), last)
		}
		return nil, fmt.Errorf("%w for certificate with subject %q",
			ErrNoPathFound, leaf.Subject.String())
	}
	return chains, nil
}

// visitChains runs the depth-first search, invoking visit for each completed
// candidate chain. The search stops early when visit returns true; the
// return value reports whether that happened. Branch-local failures
// (depth budget exhaustion) are recorded in errs and prune only their branch.
func (pb *PathBuilder) visitChains(leaf *x509.Certificate, errs *Errors, visit func(BuiltChain) bool) bool {
	// A leaf that is itself a trust anchor forms a complete single-element
	// chain before any search happens.
	if pb.store.Contains(leaf) {
		if visit(BuiltChain{leaf}) {
			return true
		}
	}

	w := &pathWalker{
		builder:    pb,
		errs:       errs,
		seen:       map[[32]byte]bool{CertificateFingerprint(leaf): true},
		prefix:     []*x509.Certificate{leaf},
		interDepth: 0,
	}
	return w.walk(visit)
}

// pathWalker holds the state of one depth-first search. The prefix under
// construction is owned exclusively by the walker; emitted chains are copies.
type pathWalker struct {
	builder *PathBuilder
	errs    *Errors

	// seen guards against cycles, keyed by certificate fingerprint.
	seen map[[32]byte]bool

	// prefix is the chain built so far, leaf first.
	prefix []*x509.Certificate

	// interDepth counts the non-self-issued intermediates in prefix,
	// excluding the leaf.
	interDepth int
}

func (w *pathWalker) walk(visit func(BuiltChain) bool) bool {
	tail := w.prefix[len(w.prefix)-1]

	// Trust anchors terminate a chain immediately and are never extended.
	for _, anchor := range w.builder.store.AnchorsFor(tail.Issuer) {
		if !NamesEqual(anchor.Subject, tail.Issuer) {
			continue
		}
		if w.seen[CertificateFingerprint(anchor)] {
			continue
		}
		chain := make(BuiltChain, len(w.prefix)+1)
		copy(chain, w.prefix)
		chain[len(w.prefix)] = anchor
		if visit(chain) {
			return true
		}
	}

	for _, issuer := range w.builder.pool.CandidatesFor(tail.Issuer) {
		if !NamesEqual(issuer.Subject, tail.Issuer) {
			continue
		}
		fp := CertificateFingerprint(issuer)
		if w.seen[fp] {
			continue
		}
		if w.builder.store.Contains(issuer) {
			// Already handled through the anchor branch above.
			continue
		}

		depth := w.interDepth
		if !IsSelfIssued(issuer) {
			depth++
		}
		if depth > w.builder.maxDepth || len(w.prefix)+1 >= hardDepthCeiling {
			w.errs.Add(NewMaxDepthExceededError(w.builder.maxDepth))
			continue
		}

		w.seen[fp] = true
		child := &pathWalker{
			builder:    w.builder,
			errs:       w.errs,
			seen:       w.seen,
			prefix:     append(w.prefix[:len(w.prefix):len(w.prefix)], issuer),
			interDepth: depth,
		}
		if child.walk(visit) {
			return true
		}
		delete(w.seen, fp)
	}

	return false
}
