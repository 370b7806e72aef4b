// Package verification provides X.509 certification path building and
// validation against a trust store.
// This file contains RFC 5280 name constraint processing.
package verification

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/crypto/cryptobyte"
	cryptobyte_asn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// oidNameConstraints is the id-ce-nameConstraints extension identifier.
var oidNameConstraints = asn1.ObjectIdentifier{2, 5, 29, 30}

// hostTreeContains checks whether otherHost falls inside the baseHost
// constraint. A base starting with '.' names a domain that must be expanded
// with one or more labels; any other base requires an exact host match.
func hostTreeContains(baseHost, otherHost string) bool {
	if len(baseHost) == 0 {
		return false
	}

	if baseHost[0] == '.' {
		if !strings.HasSuffix(strings.ToLower(otherHost), strings.ToLower(baseHost)) {
			return false
		}
		return len(otherHost) > len(baseHost)
	}

	return strings.EqualFold(otherHost, baseHost)
}

// dnsTreeContains checks whether other consists of adding zero or more
// labels to the left of base.
func dnsTreeContains(base, other string) bool {
	baseLabels := strings.Split(strings.ToLower(strings.TrimPrefix(base, ".")), ".")
	otherLabels := strings.Split(strings.ToLower(other), ".")

	if len(otherLabels) < len(baseLabels) {
		return false
	}

	offset := len(otherLabels) - len(baseLabels)
	for i := range baseLabels {
		if otherLabels[offset+i] != baseLabels[i] {
			return false
		}
	}
	return true
}

// emailTreeContains checks whether the other email address falls inside the
// base constraint. A base with a local part requires an exact match;
// otherwise the base constrains the host.
func emailTreeContains(base, other string) bool {
	baseMailbox, baseHost := splitEmail(base)
	otherMailbox, otherHost := splitEmail(other)

	if baseMailbox != "" {
		return strings.EqualFold(base, other)
	}
	if otherMailbox == "" {
		return false
	}
	if baseHost == "" {
		baseHost = base
	}
	return hostTreeContains(baseHost, otherHost)
}

func splitEmail(email string) (mailbox, host string) {
	idx := strings.LastIndex(email, "@")
	if idx < 0 {
		return "", email
	}
	return email[:idx], email[idx+1:]
}

// uriTreeContains checks whether the URI's host falls inside the base
// constraint. URI constraints apply to the host part only.
func uriTreeContains(base, uri string) (bool, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return false, fmt.Errorf("cannot parse URI %q: %w", uri, err)
	}
	host := parsed.Hostname()
	if host == "" {
		return false, fmt.Errorf("URI %q has no host to constrain", uri)
	}
	return hostTreeContains(base, host), nil
}

// ipTreeContains checks whether the address falls inside the constrained
// range. Address families must match.
func ipTreeContains(base *net.IPNet, ip net.IP) bool {
	if (base.IP.To4() == nil) != (ip.To4() == nil) {
		return false
	}
	return base.Contains(ip)
}

// directoryNameTreeContains checks whether base is an RDN-wise prefix of
// other, which is the RFC 5280 containment rule for directoryName subtrees.
func directoryNameTreeContains(base, other pkix.Name) bool {
	baseATVs := flattenName(base)
	otherATVs := flattenName(other)

	if len(baseATVs) > len(otherATVs) {
		return false
	}
	for i := range baseATVs {
		if !rdnAttributeEqual(baseATVs[i], otherATVs[i]) {
			return false
		}
	}
	return true
}

func flattenName(name pkix.Name) []pkix.AttributeTypeAndValue {
	if len(name.Names) > 0 {
		return name.Names
	}
	var atvs []pkix.AttributeTypeAndValue
	for _, rdn := range name.ToRDNSequence() {
		atvs = append(atvs, rdn...)
	}
	return atvs
}

func rdnAttributeEqual(a, b pkix.AttributeTypeAndValue) bool {
	if !a.Type.Equal(b.Type) {
		return false
	}
	return strings.EqualFold(normalizeRDNValue(a.Value), normalizeRDNValue(b.Value))
}

// nameConstraintSet holds the permitted and excluded subtrees declared by
// one CA certificate, across every supported name form.
type nameConstraintSet struct {
	permittedDNS   []string
	excludedDNS    []string
	permittedEmail []string
	excludedEmail  []string
	permittedURI   []string
	excludedURI    []string
	permittedIP    []*net.IPNet
	excludedIP     []*net.IPNet
	permittedDir   []pkix.Name
	excludedDir    []pkix.Name
}

// nameConstraintsFromCert collects the CA's declared constraints. DNS,
// email, URI and IP subtrees come from the parsed certificate; directoryName
// subtrees are extracted from the raw extension, which the platform parser
// does not surface.
func nameConstraintsFromCert(cert *x509.Certificate) (*nameConstraintSet, error) {
	ncs := &nameConstraintSet{
		permittedDNS:   cert.PermittedDNSDomains,
		excludedDNS:    cert.ExcludedDNSDomains,
		permittedEmail: cert.PermittedEmailAddresses,
		excludedEmail:  cert.ExcludedEmailAddresses,
		permittedURI:   cert.PermittedURIDomains,
		excludedURI:    cert.ExcludedURIDomains,
		permittedIP:    cert.PermittedIPRanges,
		excludedIP:     cert.ExcludedIPRanges,
	}

	permitted, excluded, err := parseDirectoryNameSubtrees(cert)
	if err != nil {
		return nil, err
	}
	ncs.permittedDir = permitted
	ncs.excludedDir = excluded

	return ncs, nil
}

func (ncs *nameConstraintSet) isEmpty() bool {
	return len(ncs.permittedDNS) == 0 && len(ncs.excludedDNS) == 0 &&
		len(ncs.permittedEmail) == 0 && len(ncs.excludedEmail) == 0 &&
		len(ncs.permittedURI) == 0 && len(ncs.excludedURI) == 0 &&
		len(ncs.permittedIP) == 0 && len(ncs.excludedIP) == 0 &&
		len(ncs.permittedDir) == 0 && len(ncs.excludedDir) == 0
}

// checkCert validates a subordinate certificate's subject and subject
// alternative names against this constraint set. Excluded subtrees are
// checked before permitted ones: exclusion wins on overlap. Permitted
// subtrees of a given name form restrict only names of that form.
func (ncs *nameConstraintSet) checkCert(cert *x509.Certificate) error {
	for _, dns := range cert.DNSNames {
		for _, base := range ncs.excludedDNS {
			if dnsTreeContains(base, dns) {
				return NewNameConstraintError(fmt.Sprintf("DNS name %q is excluded by constraint %q", dns, base))
			}
		}
		if len(ncs.permittedDNS) > 0 && !anyDNSContains(ncs.permittedDNS, dns) {
			return NewNameConstraintError(fmt.Sprintf("DNS name %q is not in any permitted subtree", dns))
		}
	}

	for _, email := range cert.EmailAddresses {
		for _, base := range ncs.excludedEmail {
			if emailTreeContains(base, email) {
				return NewNameConstraintError(fmt.Sprintf("email address %q is excluded by constraint %q", email, base))
			}
		}
		if len(ncs.permittedEmail) > 0 && !anyEmailContains(ncs.permittedEmail, email) {
			return NewNameConstraintError(fmt.Sprintf("email address %q is not in any permitted subtree", email))
		}
	}

	for _, uri := range cert.URIs {
		uriStr := uri.String()
		for _, base := range ncs.excludedURI {
			contained, err := uriTreeContains(base, uriStr)
			if err != nil {
				return NewNameConstraintError(err.Error())
			}
			if contained {
				return NewNameConstraintError(fmt.Sprintf("URI %q is excluded by constraint %q", uriStr, base))
			}
		}
		if len(ncs.permittedURI) > 0 {
			permitted := false
			for _, base := range ncs.permittedURI {
				contained, err := uriTreeContains(base, uriStr)
				if err != nil {
					return NewNameConstraintError(err.Error())
				}
				if contained {
					permitted = true
					break
				}
			}
			if !permitted {
				return NewNameConstraintError(fmt.Sprintf("URI %q is not in any permitted subtree", uriStr))
			}
		}
	}

	for _, ip := range cert.IPAddresses {
		for _, base := range ncs.excludedIP {
			if ipTreeContains(base, ip) {
				return NewNameConstraintError(fmt.Sprintf("IP address %s is excluded by constraint %s", ip, base))
			}
		}
		if len(ncs.permittedIP) > 0 {
			permitted := false
			for _, base := range ncs.permittedIP {
				if ipTreeContains(base, ip) {
					permitted = true
					break
				}
			}
			if !permitted {
				return NewNameConstraintError(fmt.Sprintf("IP address %s is not in any permitted subtree", ip))
			}
		}
	}

	// Directory name constraints apply to the subject DN. An empty subject
	// (SAN-only certificate) is not constrained.
	if len(flattenName(cert.Subject)) > 0 {
		for _, base := range ncs.excludedDir {
			if directoryNameTreeContains(base, cert.Subject) {
				return NewNameConstraintError(fmt.Sprintf("subject %q is excluded by a directory name constraint", cert.Subject.String()))
			}
		}
		if len(ncs.permittedDir) > 0 {
			permitted := false
			for _, base := range ncs.permittedDir {
				if directoryNameTreeContains(base, cert.Subject) {
					permitted = true
					break
				}
			}
			if !permitted {
				return NewNameConstraintError(fmt.Sprintf("subject %q is not in any permitted directory name subtree", cert.Subject.String()))
			}
		}
	}

	return nil
}

func anyDNSContains(bases []string, dns string) bool {
	for _, base := range bases {
		if dnsTreeContains(base, dns) {
			return true
		}
	}
	return false
}

func anyEmailContains(bases []string, email string) bool {
	for _, base := range bases {
		if emailTreeContains(base, email) {
			return true
		}
	}
	return false
}

// parseDirectoryNameSubtrees extracts directoryName bases from the raw
// nameConstraints extension.
//
//	NameConstraints ::= SEQUENCE {
//	    permittedSubtrees [0] GeneralSubtrees OPTIONAL,
//	    excludedSubtrees  [1] GeneralSubtrees OPTIONAL }
//	GeneralSubtree ::= SEQUENCE { base GeneralName, ... }
//
// directoryName is the explicitly tagged [4] GeneralName alternative.
func parseDirectoryNameSubtrees(cert *x509.Certificate) (permitted, excluded []pkix.Name, err error) {
	var extValue []byte
	for _, ext := range cert.Extensions {
		if ext.Id.Equal(oidNameConstraints) {
			extValue = ext.Value
			break
		}
	}
	if extValue == nil {
		return nil, nil, nil
	}

	outer := cryptobyte.String(extValue)
	var constraints cryptobyte.String
	if !outer.ReadASN1(&constraints, cryptobyte_asn1.SEQUENCE) {
		return nil, nil, NewMalformedCertificateError("malformed nameConstraints extension", nil)
	}

	for _, field := range []struct {
		tag  cryptobyte_asn1.Tag
		dest *[]pkix.Name
	}{
		{cryptobyte_asn1.Tag(0).Constructed().ContextSpecific(), &permitted},
		{cryptobyte_asn1.Tag(1).Constructed().ContextSpecific(), &excluded},
	} {
		var subtrees cryptobyte.String
		var present bool
		if !constraints.ReadOptionalASN1(&subtrees, &present, field.tag) {
			return nil, nil, NewMalformedCertificateError("malformed nameConstraints subtree list", nil)
		}
		if !present {
			continue
		}
		names, err := readDirectoryNameBases(subtrees)
		if err != nil {
			return nil, nil, err
		}
		*field.dest = names
	}

	return permitted, excluded, nil
}

func readDirectoryNameBases(subtrees cryptobyte.String) ([]pkix.Name, error) {
	var names []pkix.Name
	for !subtrees.Empty() {
		var subtree cryptobyte.String
		if !subtrees.ReadASN1(&subtree, cryptobyte_asn1.SEQUENCE) {
			return nil, NewMalformedCertificateError("malformed GeneralSubtree", nil)
		}

		var base cryptobyte.String
		var baseTag cryptobyte_asn1.Tag
		if !subtree.ReadAnyASN1(&base, &baseTag) {
			return nil, NewMalformedCertificateError("malformed GeneralSubtree base", nil)
		}
		if baseTag != cryptobyte_asn1.Tag(4).Constructed().ContextSpecific() {
			// Not a directoryName; the other name forms are already
			// surfaced by the certificate parser.
			continue
		}

		var rdnSeq pkix.RDNSequence
		if _, err := asn1.Unmarshal(base, &rdnSeq); err != nil {
			return nil, NewMalformedCertificateError("malformed directoryName subtree", err)
		}
		var name pkix.Name
		name.FillFromRDNSequence(&rdnSeq)
		names = append(names, name)
	}
	return names, nil
}
