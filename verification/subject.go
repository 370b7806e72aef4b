// Package verification provides X.509 certification path building and
// validation against a trust store.
// This file contains the peer identity types matched against leaf
// certificates.
package verification

import (
	"crypto/x509"
	"fmt"
	"net/netip"
	"strings"
)

// Subject is a logical peer identity: a principal that must match one of the
// names in the leaf certificate's subjectAltName extension. Implementations
// are DNSName and IPAddress.
type Subject interface {
	// MatchesSAN reports whether any subject alternative name in the
	// certificate matches this identity.
	MatchesSAN(cert *x509.Certificate) bool

	fmt.Stringer
}

// DNSName is a DNS peer identity.
//
// Matching against certificate names is case-insensitive. A certificate name
// may carry a wildcard, but only as the entire leftmost label, and the
// wildcard must be followed by at least two labels. Public-suffix wildcard
// rejection is deliberately not enforced. Trailing dots are not stripped on
// either side.
type DNSName struct {
	name string
}

// NewDNSName creates a DNS peer identity. The name must be a non-empty,
// non-wildcard domain name.
func NewDNSName(name string) (DNSName, error) {
	if name == "" {
		return DNSName{}, fmt.Errorf("DNS name must not be empty")
	}
	if strings.Contains(name, "*") {
		return DNSName{}, fmt.Errorf("peer DNS name %q must not contain a wildcard", name)
	}
	for _, label := range strings.Split(name, ".") {
		if label == "" {
			return DNSName{}, fmt.Errorf("DNS name %q has an empty label", name)
		}
	}
	return DNSName{name: name}, nil
}

// MatchesSAN reports whether any DNS SAN entry matches this name.
func (d DNSName) MatchesSAN(cert *x509.Certificate) bool {
	for _, san := range cert.DNSNames {
		if matchDNSPattern(san, d.name) {
			return true
		}
	}
	return false
}

// String returns the DNS name.
func (d DNSName) String() string {
	return d.name
}

// matchDNSPattern reports whether the certificate name pattern matches the
// peer name. The pattern is either an exact name or a single leftmost
// wildcard label.
func matchDNSPattern(pattern, name string) bool {
	pattern = strings.ToLower(pattern)
	name = strings.ToLower(name)

	if !strings.Contains(pattern, "*") {
		return pattern == name
	}

	patternLabels := strings.Split(pattern, ".")
	nameLabels := strings.Split(name, ".")

	// The wildcard must be the entire first label, and at least two labels
	// must follow it.
	if patternLabels[0] != "*" || len(patternLabels) < 3 {
		return false
	}
	for _, label := range patternLabels[1:] {
		if strings.Contains(label, "*") || label == "" {
			return false
		}
	}

	// A wildcard matches exactly one label.
	if len(nameLabels) != len(patternLabels) {
		return false
	}
	for i := 1; i < len(patternLabels); i++ {
		if patternLabels[i] != nameLabels[i] {
			return false
		}
	}
	return nameLabels[0] != ""
}

// IPAddress is an IP peer identity. Matching is exact address equality; no
// wildcard form exists for IP subject alternative names.
type IPAddress struct {
	addr netip.Addr
}

// NewIPAddress creates an IP peer identity from its textual form.
func NewIPAddress(s string) (IPAddress, error) {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return IPAddress{}, fmt.Errorf("invalid IP address %q: %w", s, err)
	}
	return IPAddress{addr: addr.Unmap()}, nil
}

// MatchesSAN reports whether any IP SAN entry equals this address.
func (i IPAddress) MatchesSAN(cert *x509.Certificate) bool {
	for _, san := range cert.IPAddresses {
		sanAddr, ok := netip.AddrFromSlice(san)
		if !ok {
			continue
		}
		if sanAddr.Unmap() == i.addr {
			return true
		}
	}
	return false
}

// String returns the textual form of the address.
func (i IPAddress) String() string {
	return i.addr.String()
}
