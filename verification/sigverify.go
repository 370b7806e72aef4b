// Package verification provides X.509 certification path building and
// validation against a trust store.
// This file contains the signature verification collaborator contract.
package verification

import (
	"crypto/x509"
)

// SignatureVerifier abstracts the asymmetric primitive collaborator: it
// checks that an issuer's public key verifies a child certificate's
// signature over its to-be-signed bytes, under the child's declared
// signature algorithm. Implementations must not reinterpret failures; the
// validator wraps them.
type SignatureVerifier interface {
	// VerifySignature returns nil when issuer's public key verifies child's
	// signature, and the underlying primitive error otherwise.
	VerifySignature(child, issuer *x509.Certificate) error
}

// StdSignatureVerifier verifies signatures through the platform certificate
// library, which dispatches on the signature algorithm (RSA PKCS#1 v1.5,
// RSA-PSS, ECDSA, Ed25519).
type StdSignatureVerifier struct{}

// NewStdSignatureVerifier creates the default signature verifier.
func NewStdSignatureVerifier() *StdSignatureVerifier {
	return &StdSignatureVerifier{}
}

// VerifySignature checks child's signature over its raw TBS bytes against
// issuer's public key.
func (v *StdSignatureVerifier) VerifySignature(child, issuer *x509.Certificate) error {
	return issuer.CheckSignature(child.SignatureAlgorithm, child.RawTBSCertificate, child.Signature)
}
