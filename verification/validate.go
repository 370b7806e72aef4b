// Package verification provides X.509 certification path building and
// validation against a trust store.
// This file contains per-chain validation checks.
package verification

import (
	"crypto/x509"
	"fmt"
	"time"
)

// chainValidator applies the full set of validation checks to one candidate
// chain under a policy. Validation of a single chain short-circuits on its
// first unmet check; failed chains never abort the overall search.
type chainValidator struct {
	policy *Policy
}

// validate checks the chain, leaf to anchor, against the policy and the
// requested peer identity. A nil return means the chain is fully valid.
func (v *chainValidator) validate(chain BuiltChain, subject Subject) error {
	if len(chain) == 0 {
		return NewVerificationError("cannot validate an empty chain", nil)
	}

	if err := v.checkSignatures(chain); err != nil {
		return err
	}
	if err := v.checkValidity(chain); err != nil {
		return err
	}
	if err := v.checkBasicConstraints(chain); err != nil {
		return err
	}
	if err := v.checkKeyUsage(chain); err != nil {
		return err
	}
	if err := v.checkNameConstraints(chain); err != nil {
		return err
	}
	if subject != nil {
		if err := v.checkPeerIdentity(chain.Leaf(), subject); err != nil {
			return err
		}
	}
	return nil
}

// checkSignatures verifies signature linkage for every adjacent pair.
// A single-element chain is a leaf that is itself a trust anchor; its own
// signature needs no verification, trust in it is axiomatic.
func (v *chainValidator) checkSignatures(chain BuiltChain) error {
	for i := 0; i < len(chain)-1; i++ {
		child, issuer := chain[i], chain[i+1]
		if err := v.policy.signatureVerifier.VerifySignature(child, issuer); err != nil {
			return NewInvalidSignatureError(
				fmt.Sprintf("%s is not signed by %s", describeCert(child), describeCert(issuer)), err)
		}
	}
	return nil
}

// checkValidity checks that the validation time lies within every
// certificate's validity window. Bounds are inclusive: a validation time
// exactly equal to notBefore or notAfter is valid.
func (v *chainValidator) checkValidity(chain BuiltChain) error {
	moment := v.policy.validationTime()
	for _, cert := range chain {
		if moment.Before(cert.NotBefore) {
			return FormatNotYetValidError(describeCert(cert), cert.NotBefore)
		}
		if moment.After(cert.NotAfter) {
			return FormatExpiredError(describeCert(cert), cert.NotAfter)
		}
	}
	return nil
}

// checkBasicConstraints requires every certificate above the leaf to be a CA
// and enforces path length constraints. Per RFC 5280, a CA's constraint
// bounds the number of non-self-issued intermediate certificates below it,
// not counting the leaf.
func (v *chainValidator) checkBasicConstraints(chain BuiltChain) error {
	for _, cert := range chain[1:] {
		if !cert.BasicConstraintsValid || !cert.IsCA {
			return NewBasicConstraintsError(
				fmt.Sprintf("%s appears as an issuer but is not a CA certificate", describeCert(cert)))
		}
	}

	// Walk from the anchor toward the leaf, consuming the tightest budget
	// seen so far at each non-self-issued intermediate.
	budget := -1 // unbounded
	if n, ok := pathLenConstraint(chain.Anchor()); ok {
		budget = n
	}
	for i := len(chain) - 2; i >= 1; i-- {
		cert := chain[i]
		if !IsSelfIssued(cert) {
			if budget == 0 {
				return NewPathLengthExceededError(
					fmt.Sprintf("path length constraint violated at %s", describeCert(cert)))
			}
			if budget > 0 {
				budget--
			}
		}
		if n, ok := pathLenConstraint(cert); ok && (budget < 0 || n < budget) {
			budget = n
		}
	}
	return nil
}

// checkKeyUsage requires CA certificates that assert key usage to include
// keyCertSign, and the leaf's extended key usage, when present, to include
// serverAuth (or anyExtendedKeyUsage).
func (v *chainValidator) checkKeyUsage(chain BuiltChain) error {
	for _, cert := range chain[1:] {
		if cert.KeyUsage != 0 && cert.KeyUsage&x509.KeyUsageCertSign == 0 {
			return NewKeyUsageError(
				fmt.Sprintf("%s does not assert the keyCertSign usage required of a CA", describeCert(cert)))
		}
	}

	leaf := chain.Leaf()
	if len(leaf.ExtKeyUsage) == 0 && len(leaf.UnknownExtKeyUsage) == 0 {
		// A missing EKU is treated as "any", consistent with the wide
		// majority of validators.
		return nil
	}
	for _, eku := range leaf.ExtKeyUsage {
		if eku == x509.ExtKeyUsageServerAuth || eku == x509.ExtKeyUsageAny {
			return nil
		}
	}
	return NewKeyUsageError(
		fmt.Sprintf("%s does not permit server authentication", describeCert(leaf)))
}

// checkNameConstraints enforces each CA's permitted and excluded subtrees
// against every certificate below it in the chain.
func (v *chainValidator) checkNameConstraints(chain BuiltChain) error {
	for i := 1; i < len(chain); i++ {
		ncs, err := nameConstraintsFromCert(chain[i])
		if err != nil {
			return err
		}
		if ncs.isEmpty() {
			continue
		}
		for j := i - 1; j >= 0; j-- {
			if err := ncs.checkCert(chain[j]); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkPeerIdentity requires the leaf's subject alternative names to contain
// a name matching the requested peer identity.
func (v *chainValidator) checkPeerIdentity(leaf *x509.Certificate, subject Subject) error {
	if subject.MatchesSAN(leaf) {
		return nil
	}
	return NewPeerNameMismatchError(subject.String())
}

// CheckValidity reports whether a single certificate is valid at the given
// moment, with inclusive bounds.
func CheckValidity(cert *x509.Certificate, moment time.Time) error {
	if moment.Before(cert.NotBefore) {
		return FormatNotYetValidError(describeCert(cert), cert.NotBefore)
	}
	if moment.After(cert.NotAfter) {
		return FormatExpiredError(describeCert(cert), cert.NotAfter)
	}
	return nil
}
