// Package verification provides X.509 certification path building and
// validation against a trust store.
// This file contains the verification policy and the server verifier facade.
package verification

import (
	"crypto/x509"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultMaxChainDepth is the depth budget applied when a policy does not
// set one: the maximum number of non-self-issued intermediate certificates
// in a chain, excluding the leaf and the trust anchor. Web PKI chains
// ordinarily carry no more than two or three intermediates; eight leaves
// room for pathological but legitimate deployments.
const DefaultMaxChainDepth = 8

// Policy is the immutable per-verification configuration: trust store,
// validation time, chain depth budget, and collaborator implementations.
// A Policy is constructed once and may be reused across verifications.
type Policy struct {
	store             *TrustStore
	moment            time.Time
	momentSet         bool
	maxChainDepth     int
	clock             clockwork.Clock
	signatureVerifier SignatureVerifier
}

// PolicyOption configures a Policy under construction.
type PolicyOption func(*Policy) error

// WithTrustStore sets the trust anchors for the policy.
func WithTrustStore(store *TrustStore) PolicyOption {
	return func(p *Policy) error {
		if store == nil {
			return fmt.Errorf("trust store must not be nil")
		}
		p.store = store
		return nil
	}
}

// WithValidationTime pins the validation time. The time may only be set
// once; without it, the policy's clock supplies the current time at each
// verification.
func WithValidationTime(moment time.Time) PolicyOption {
	return func(p *Policy) error {
		if p.momentSet {
			return fmt.Errorf("the validation time may only be set once")
		}
		p.moment = moment
		p.momentSet = true
		return nil
	}
}

// WithMaxChainDepth bounds the number of non-self-issued intermediate
// certificates permitted in a built chain.
func WithMaxChainDepth(depth int) PolicyOption {
	return func(p *Policy) error {
		if depth < 0 {
			return fmt.Errorf("max chain depth must not be negative")
		}
		p.maxChainDepth = depth
		return nil
	}
}

// WithClock sets the wall-clock collaborator consulted when no validation
// time is pinned.
func WithClock(clock clockwork.Clock) PolicyOption {
	return func(p *Policy) error {
		if clock == nil {
			return fmt.Errorf("clock must not be nil")
		}
		p.clock = clock
		return nil
	}
}

// WithSignatureVerifier replaces the signature verification collaborator.
func WithSignatureVerifier(verifier SignatureVerifier) PolicyOption {
	return func(p *Policy) error {
		if verifier == nil {
			return fmt.Errorf("signature verifier must not be nil")
		}
		p.signatureVerifier = verifier
		return nil
	}
}

// NewPolicy creates a verification policy. A trust store is required;
// everything else has defaults.
func NewPolicy(opts ...PolicyOption) (*Policy, error) {
	p := &Policy{
		maxChainDepth:     DefaultMaxChainDepth,
		clock:             clockwork.NewRealClock(),
		signatureVerifier: NewStdSignatureVerifier(),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	if p.store == nil {
		return nil, fmt.Errorf("a policy requires a trust store")
	}
	return p, nil
}

// validationTime returns the pinned validation time, or the clock's current
// time when none was set.
func (p *Policy) validationTime() time.Time {
	if p.momentSet {
		return p.moment
	}
	return p.clock.Now()
}

// MaxChainDepth returns the policy's chain depth budget.
func (p *Policy) MaxChainDepth() int {
	return p.maxChainDepth
}

// TrustStore returns the policy's trust store.
func (p *Policy) TrustStore() *TrustStore {
	return p.store
}

// BuildServerVerifier constructs a server-authentication verifier for the
// given peer identity. A nil subject skips peer identity matching, which is
// only appropriate for diagnostics.
func (p *Policy) BuildServerVerifier(subject Subject) (*ServerVerifier, error) {
	if p.store == nil {
		return nil, fmt.Errorf("cannot build a verifier without a trust store")
	}
	return &ServerVerifier{policy: p, subject: subject}, nil
}

// verifierState tracks a verification run through its lifecycle.
type verifierState int

const (
	// stateConfigured: policy built, verification not yet started.
	stateConfigured verifierState = iota
	// stateSearching: candidate chains are being produced and validated.
	stateSearching
	// stateTerminal: a chain validated or the search space was exhausted.
	stateTerminal
)

// ServerVerifier verifies end-entity certificates for server authentication
// under a fixed policy and peer identity. A ServerVerifier is stateless
// across calls: each Verify runs an independent search, so a verifier may be
// shared between goroutines.
type ServerVerifier struct {
	policy  *Policy
	subject Subject
}

// Policy returns the verifier's policy.
func (v *ServerVerifier) Policy() *Policy {
	return v.policy
}

// Subject returns the peer identity this verifier matches leaves against.
func (v *ServerVerifier) Subject() Subject {
	return v.subject
}

// Verify searches for a valid certification path from peer to one of the
// policy's trust anchors, using the supplied untrusted intermediates.
// On success the chain is returned leaf first, trust anchor last. On failure
// the returned error is a *VerificationError carrying the last per-branch
// failure observed before the search space was exhausted.
//
// The first candidate chain that validates wins; candidates are produced in
// the path builder's documented deterministic order, so identical inputs
// yield identical outcomes.
func (v *ServerVerifier) Verify(peer *x509.Certificate, intermediates []*x509.Certificate) (BuiltChain, error) {
	if peer == nil {
		return nil, NewMalformedCertificateError("no peer certificate supplied", nil)
	}

	run := &verifyRun{
		verifier: v,
		state:    stateConfigured,
		errs:     NewErrors(),
	}
	return run.run(peer, intermediates)
}

// verifyRun is the state of one verification: it moves from Configured to
// Searching when candidate production starts, and to Terminal when a chain
// validates or the search space is exhausted.
type verifyRun struct {
	verifier *ServerVerifier
	state    verifierState
	errs     *Errors
}

func (r *verifyRun) run(peer *x509.Certificate, intermediates []*x509.Certificate) (BuiltChain, error) {
	pool := NewCertificatePool(intermediates...)
	builder := NewPathBuilder(r.verifier.policy.store, pool, r.verifier.policy.maxChainDepth)
	validator := &chainValidator{policy: r.verifier.policy}

	r.state = stateSearching
	var validated BuiltChain
	builder.visitChains(peer, r.errs, func(chain BuiltChain) bool {
		if err := validator.validate(chain, r.verifier.subject); err != nil {
			r.errs.Add(err)
			return false
		}
		validated = chain
		return true
	})
	r.state = stateTerminal

	if validated != nil {
		return validated, nil
	}

	reason := r.errs.Last()
	if reason == nil {
		reason = ErrNoPathFound
	}
	return nil, NewVerificationError(
		fmt.Sprintf("could not validate %s to a trust anchor", describeCert(peer)), reason)
}
