// Package verification provides X.509 certification path building and
// validation against a trust store.
// This file contains name canonicalization and certificate identity helpers.
package verification

import (
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// canonicalNameString renders a distinguished name in a canonical form
// suitable for comparison: attribute values are NFC-normalized, trimmed and
// whitespace-compressed.
func canonicalNameString(name pkix.Name) string {
	atvs := name.Names
	if len(atvs) == 0 {
		for _, rdn := range name.ToRDNSequence() {
			atvs = append(atvs, rdn...)
		}
	}

	parts := make([]string, 0, len(atvs))
	for _, atv := range atvs {
		parts = append(parts, fmt.Sprintf("%s=%s", atv.Type.String(), normalizeRDNValue(atv.Value)))
	}
	return strings.Join(parts, ",")
}

func normalizeRDNValue(value interface{}) string {
	switch v := value.(type) {
	case string:
		return normalizeDNString(v)
	default:
		return fmt.Sprint(v)
	}
}

func normalizeDNString(value string) string {
	trimmed := strings.TrimSpace(norm.NFC.String(value))
	if trimmed == "" {
		return ""
	}
	return strings.Join(strings.Fields(trimmed), " ")
}

// NamesEqual reports whether two distinguished names match for the purposes
// of issuer/subject chaining. Comparison is over the canonical rendering,
// case-insensitively.
func NamesEqual(a, b pkix.Name) bool {
	return strings.EqualFold(canonicalNameString(a), canonicalNameString(b))
}

// subjectHashKey creates a map key from a subject name.
func subjectHashKey(name pkix.Name) string {
	h := sha256.Sum256([]byte(strings.ToLower(canonicalNameString(name))))
	return string(h[:])
}

// CertificateFingerprint returns the SHA-256 fingerprint of a certificate's
// DER encoding. Certificate identity throughout this package is by encoded
// bytes, not by field-wise comparison.
func CertificateFingerprint(cert *x509.Certificate) [32]byte {
	return sha256.Sum256(cert.Raw)
}

// CertificatesEqual reports whether two certificates are the same stored
// object (identical DER encodings).
func CertificatesEqual(a, b *x509.Certificate) bool {
	return CertificateFingerprint(a) == CertificateFingerprint(b)
}

// IsSelfIssued reports whether a certificate's issuer and subject are the
// same name. Self-issued certificates do not count against path length or
// chain depth budgets.
func IsSelfIssued(cert *x509.Certificate) bool {
	return NamesEqual(cert.Subject, cert.Issuer)
}

// pathLenConstraint returns the certificate's path length constraint and
// whether one is present.
func pathLenConstraint(cert *x509.Certificate) (int, bool) {
	if cert.MaxPathLenZero {
		return 0, true
	}
	if cert.MaxPathLen > 0 {
		return cert.MaxPathLen, true
	}
	return 0, false
}

// describeCert renders a short human-readable identifier for a certificate,
// used in error messages.
func describeCert(cert *x509.Certificate) string {
	if cn := cert.Subject.CommonName; cn != "" {
		return fmt.Sprintf("certificate %q", cn)
	}
	return fmt.Sprintf("certificate with subject %q", cert.Subject.String())
}
