// Package limbo runs x509-limbo conformance testcases against the
// verification engine.
// This file contains tests for corpus loading and the testcase runner.
package limbo

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"strings"
	"testing"
	"time"
)

func generateLimboCerts(t *testing.T) (rootPEM, intermediatePEM, leafPEM string) {
	t.Helper()

	rootKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	rootTemplate := &x509.Certificate{
		SerialNumber:          big.NewInt(time.Now().UnixNano()),
		Subject:               pkix.Name{CommonName: "Limbo Root"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	rootDER, err := x509.CreateCertificate(rand.Reader, rootTemplate, rootTemplate, &rootKey.PublicKey, rootKey)
	if err != nil {
		t.Fatalf("failed to create root: %v", err)
	}
	root, _ := x509.ParseCertificate(rootDER)

	intKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	intTemplate := &x509.Certificate{
		SerialNumber:          big.NewInt(time.Now().UnixNano() + 1),
		Subject:               pkix.Name{CommonName: "Limbo Intermediate"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	intDER, err := x509.CreateCertificate(rand.Reader, intTemplate, root, &intKey.PublicKey, rootKey)
	if err != nil {
		t.Fatalf("failed to create intermediate: %v", err)
	}
	intermediate, _ := x509.ParseCertificate(intDER)

	leafKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	leafTemplate := &x509.Certificate{
		SerialNumber:          big.NewInt(time.Now().UnixNano() + 2),
		Subject:               pkix.Name{CommonName: "example.com"},
		DNSNames:              []string{"example.com"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}
	leafDER, err := x509.CreateCertificate(rand.Reader, leafTemplate, intermediate, &leafKey.PublicKey, intKey)
	if err != nil {
		t.Fatalf("failed to create leaf: %v", err)
	}

	toPEM := func(der []byte) string {
		return string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}))
	}
	return toPEM(rootDER), toPEM(intDER), toPEM(leafDER)
}

func TestLoadCorpus(t *testing.T) {
	data := `{
		"version": 1,
		"testcases": [
			{
				"id": "example/simple",
				"validation_kind": "SERVER",
				"trusted_certs": [],
				"peer_certificate": "",
				"expected_peer_name": {"kind": "DNS", "value": "example.com"},
				"expected_result": "SUCCESS"
			}
		]
	}`

	corpus, err := Load(strings.NewReader(data))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if corpus.Version != 1 {
		t.Errorf("Expected version 1, got %d", corpus.Version)
	}
	if len(corpus.Testcases) != 1 {
		t.Fatalf("Expected 1 testcase, got %d", len(corpus.Testcases))
	}

	tc := corpus.Testcases[0]
	if tc.ID != "example/simple" {
		t.Errorf("Unexpected ID: %q", tc.ID)
	}
	if tc.ExpectedPeerName == nil || tc.ExpectedPeerName.Value != "example.com" {
		t.Errorf("Unexpected peer name: %+v", tc.ExpectedPeerName)
	}
	if !tc.ShouldPass() {
		t.Error("Expected SUCCESS testcase to report ShouldPass")
	}
}

func TestLoadCorpusBadJSON(t *testing.T) {
	if _, err := Load(strings.NewReader("{not json")); err == nil {
		t.Error("Expected error for malformed JSON")
	}
}

func TestSkipReason(t *testing.T) {
	base := func() *Testcase {
		return &Testcase{
			ID:               "t",
			ValidationKind:   "SERVER",
			ExpectedPeerName: &PeerName{Kind: "DNS", Value: "example.com"},
		}
	}

	if reason := SkipReason(base()); reason != "" {
		t.Errorf("Expected runnable testcase, got skip reason %q", reason)
	}

	tc := base()
	tc.Features = []string{"pedantic-rfc5280"}
	if SkipReason(tc) == "" {
		t.Error("Expected unsupported feature to be skipped")
	}

	tc = base()
	tc.ValidationKind = "CLIENT"
	if SkipReason(tc) == "" {
		t.Error("Expected CLIENT validation to be skipped")
	}

	tc = base()
	tc.ExpectedPeerName = nil
	if SkipReason(tc) == "" {
		t.Error("Expected missing peer name to be skipped")
	}

	tc = base()
	tc.SignatureAlgorithms = []string{"RSASSA_PKCS1v15_SHA256"}
	if SkipReason(tc) == "" {
		t.Error("Expected signature algorithm restriction to be skipped")
	}

	tc = base()
	tc.ExtendedKeyUsage = []string{"clientAuth"}
	if SkipReason(tc) == "" {
		t.Error("Expected non-serverAuth EKU restriction to be skipped")
	}

	tc = base()
	tc.ExtendedKeyUsage = []string{"serverAuth"}
	if reason := SkipReason(tc); reason != "" {
		t.Errorf("Expected serverAuth EKU restriction to run, got %q", reason)
	}
}

func TestRunSuccessCase(t *testing.T) {
	rootPEM, intPEM, leafPEM := generateLimboCerts(t)

	tc := &Testcase{
		ID:                     "generated/success",
		ValidationKind:         "SERVER",
		TrustedCerts:           []string{rootPEM},
		UntrustedIntermediates: []string{intPEM},
		PeerCertificate:        leafPEM,
		ExpectedPeerName:       &PeerName{Kind: "DNS", Value: "example.com"},
		ExpectedResult:         "SUCCESS",
	}

	result := Run(tc)
	if result.Status != StatusPass {
		t.Errorf("Expected PASS, got %s (%v)", result.Status, result.Err)
	}
}

func TestRunFailureCase(t *testing.T) {
	rootPEM, intPEM, leafPEM := generateLimboCerts(t)

	// The corpus expects a failure because the peer name does not match.
	tc := &Testcase{
		ID:                     "generated/wrong-name",
		ValidationKind:         "SERVER",
		TrustedCerts:           []string{rootPEM},
		UntrustedIntermediates: []string{intPEM},
		PeerCertificate:        leafPEM,
		ExpectedPeerName:       &PeerName{Kind: "DNS", Value: "other.com"},
		ExpectedResult:         "FAILURE",
	}

	result := Run(tc)
	if result.Status != StatusPass {
		t.Errorf("Expected PASS for an expected failure, got %s (%v)", result.Status, result.Err)
	}
}

func TestRunDetectsMismatch(t *testing.T) {
	rootPEM, intPEM, leafPEM := generateLimboCerts(t)

	// A verifiable chain declared as FAILURE must be reported as FAIL.
	tc := &Testcase{
		ID:                     "generated/mismatch",
		ValidationKind:         "SERVER",
		TrustedCerts:           []string{rootPEM},
		UntrustedIntermediates: []string{intPEM},
		PeerCertificate:        leafPEM,
		ExpectedPeerName:       &PeerName{Kind: "DNS", Value: "example.com"},
		ExpectedResult:         "FAILURE",
	}

	result := Run(tc)
	if result.Status != StatusFail {
		t.Errorf("Expected FAIL, got %s", result.Status)
	}
	if result.Err == nil {
		t.Error("Expected an explanatory error")
	}
}

func TestRunHonorsValidationTime(t *testing.T) {
	rootPEM, intPEM, leafPEM := generateLimboCerts(t)

	past := time.Now().Add(-48 * time.Hour)
	tc := &Testcase{
		ID:                     "generated/expired-at-time",
		ValidationKind:         "SERVER",
		TrustedCerts:           []string{rootPEM},
		UntrustedIntermediates: []string{intPEM},
		PeerCertificate:        leafPEM,
		ExpectedPeerName:       &PeerName{Kind: "DNS", Value: "example.com"},
		ValidationTime:         &past,
		ExpectedResult:         "FAILURE",
	}

	result := Run(tc)
	if result.Status != StatusPass {
		t.Errorf("Expected PASS (verification fails before notBefore), got %s (%v)", result.Status, result.Err)
	}
}

func TestRunHonorsMaxChainDepth(t *testing.T) {
	rootPEM, intPEM, leafPEM := generateLimboCerts(t)

	zero := 0
	tc := &Testcase{
		ID:                     "generated/depth-zero",
		ValidationKind:         "SERVER",
		TrustedCerts:           []string{rootPEM},
		UntrustedIntermediates: []string{intPEM},
		PeerCertificate:        leafPEM,
		ExpectedPeerName:       &PeerName{Kind: "DNS", Value: "example.com"},
		MaxChainDepth:          &zero,
		ExpectedResult:         "FAILURE",
	}

	result := Run(tc)
	if result.Status != StatusPass {
		t.Errorf("Expected PASS (depth 0 prunes the intermediate), got %s (%v)", result.Status, result.Err)
	}
}

func TestRunAllSummary(t *testing.T) {
	rootPEM, intPEM, leafPEM := generateLimboCerts(t)

	corpus := &Corpus{
		Version: 1,
		Testcases: []Testcase{
			{
				ID:                     "all/pass",
				ValidationKind:         "SERVER",
				TrustedCerts:           []string{rootPEM},
				UntrustedIntermediates: []string{intPEM},
				PeerCertificate:        leafPEM,
				ExpectedPeerName:       &PeerName{Kind: "DNS", Value: "example.com"},
				ExpectedResult:         "SUCCESS",
			},
			{
				ID:                     "all/fail",
				ValidationKind:         "SERVER",
				TrustedCerts:           []string{rootPEM},
				UntrustedIntermediates: []string{intPEM},
				PeerCertificate:        leafPEM,
				ExpectedPeerName:       &PeerName{Kind: "DNS", Value: "example.com"},
				ExpectedResult:         "FAILURE",
			},
			{
				ID:             "all/skip",
				ValidationKind: "CLIENT",
			},
		},
	}

	summary := RunAll(corpus)
	if summary.Passed != 1 || summary.Failed != 1 || summary.Skipped != 1 {
		t.Errorf("Unexpected summary: %d passed, %d failed, %d skipped",
			summary.Passed, summary.Failed, summary.Skipped)
	}
	if summary.Total() != 3 {
		t.Errorf("Expected total 3, got %d", summary.Total())
	}
	if len(summary.Results) != 3 {
		t.Errorf("Expected 3 results, got %d", len(summary.Results))
	}
}
