package limbo

import (
	"crypto/x509"
	"fmt"

	"github.com/georgepadayatti/certpath/keys"
	"github.com/georgepadayatti/certpath/verification"
)

// Status is the outcome of running one testcase.
type Status int

const (
	StatusPass Status = iota
	StatusFail
	StatusSkip
)

func (s Status) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusFail:
		return "FAIL"
	case StatusSkip:
		return "SKIP"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Result records the outcome of one testcase.
type Result struct {
	ID     string
	Status Status
	Reason string
	Err    error
}

// Summary aggregates the results of a corpus run.
type Summary struct {
	Passed  int
	Failed  int
	Skipped int
	Results []Result
}

// Total returns the number of testcases that were run or skipped.
func (s *Summary) Total() int {
	return s.Passed + s.Failed + s.Skipped
}

// Features the engine does not implement. Cases carrying any of these
// are skipped rather than reported as failures.
var unsupportedFeatures = map[string]string{
	"pedantic-public-suffix-wildcard": "public suffix list not enforced",
	"name-constraint-dn":              "distinguished name constraints diverge from upstream fixtures",
	"pedantic-webpki-eku":             "CA extended key usage not policed",
	"pedantic-rfc5280":                "pedantic RFC 5280 profile checks not implemented",
}

// SkipReason reports why a testcase cannot be run, or "" if it can.
func SkipReason(tc *Testcase) string {
	for _, feat := range tc.Features {
		if why, ok := unsupportedFeatures[feat]; ok {
			return fmt.Sprintf("unsupported feature %s: %s", feat, why)
		}
	}
	if tc.ValidationKind != "SERVER" {
		return fmt.Sprintf("unsupported validation kind %s", tc.ValidationKind)
	}
	if tc.ExpectedPeerName == nil {
		return "no expected peer name"
	}
	if len(tc.ExpectedPeerNames) > 0 {
		return "multiple expected peer names not supported"
	}
	if len(tc.SignatureAlgorithms) > 0 {
		return "signature algorithm restrictions not supported"
	}
	if len(tc.KeyUsage) > 0 {
		return "peer key usage restrictions not supported"
	}
	for _, eku := range tc.ExtendedKeyUsage {
		if eku != "serverAuth" {
			return fmt.Sprintf("unsupported extended key usage %s", eku)
		}
	}
	return ""
}

// Run executes a single testcase and reports the outcome.
func Run(tc *Testcase) Result {
	if reason := SkipReason(tc); reason != "" {
		return Result{ID: tc.ID, Status: StatusSkip, Reason: reason}
	}

	subject, err := buildSubject(tc.ExpectedPeerName)
	if err != nil {
		return Result{ID: tc.ID, Status: StatusSkip, Reason: err.Error()}
	}

	roots, err := loadAll(tc.TrustedCerts)
	if err != nil {
		return Result{ID: tc.ID, Status: StatusFail, Err: fmt.Errorf("failed to load trusted certs: %w", err)}
	}
	intermediates, err := loadAll(tc.UntrustedIntermediates)
	if err != nil {
		return Result{ID: tc.ID, Status: StatusFail, Err: fmt.Errorf("failed to load intermediates: %w", err)}
	}
	peer, err := keys.LoadCertFromPemDerData([]byte(tc.PeerCertificate))
	if err != nil {
		return Result{ID: tc.ID, Status: StatusFail, Err: fmt.Errorf("failed to load peer certificate: %w", err)}
	}

	opts := []verification.PolicyOption{
		verification.WithTrustStore(verification.NewTrustStore(roots)),
	}
	if tc.ValidationTime != nil {
		opts = append(opts, verification.WithValidationTime(*tc.ValidationTime))
	}
	if tc.MaxChainDepth != nil {
		opts = append(opts, verification.WithMaxChainDepth(*tc.MaxChainDepth))
	}
	policy, err := verification.NewPolicy(opts...)
	if err != nil {
		return Result{ID: tc.ID, Status: StatusFail, Err: fmt.Errorf("failed to build policy: %w", err)}
	}

	verifier, err := policy.BuildServerVerifier(subject)
	if err != nil {
		return Result{ID: tc.ID, Status: StatusFail, Err: fmt.Errorf("failed to build verifier: %w", err)}
	}
	_, verifyErr := verifier.Verify(peer, intermediates)

	succeeded := verifyErr == nil
	if succeeded == tc.ShouldPass() {
		return Result{ID: tc.ID, Status: StatusPass}
	}
	if tc.ShouldPass() {
		return Result{ID: tc.ID, Status: StatusFail, Err: fmt.Errorf("expected success, got: %w", verifyErr)}
	}
	return Result{ID: tc.ID, Status: StatusFail, Err: fmt.Errorf("expected failure, chain validated")}
}

// RunAll executes every testcase in the corpus.
func RunAll(corpus *Corpus) *Summary {
	summary := &Summary{}
	for i := range corpus.Testcases {
		result := Run(&corpus.Testcases[i])
		switch result.Status {
		case StatusPass:
			summary.Passed++
		case StatusFail:
			summary.Failed++
		case StatusSkip:
			summary.Skipped++
		}
		summary.Results = append(summary.Results, result)
	}
	return summary
}

func buildSubject(name *PeerName) (verification.Subject, error) {
	switch name.Kind {
	case "DNS":
		subject, err := verification.NewDNSName(name.Value)
		if err != nil {
			return nil, err
		}
		return subject, nil
	case "IP":
		subject, err := verification.NewIPAddress(name.Value)
		if err != nil {
			return nil, err
		}
		return subject, nil
	default:
		return nil, fmt.Errorf("unsupported peer name kind %s", name.Kind)
	}
}

func loadAll(pems []string) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate
	for _, p := range pems {
		loaded, err := keys.LoadCertsFromPemDerData([]byte(p))
		if err != nil {
			return nil, err
		}
		certs = append(certs, loaded...)
	}
	return certs, nil
}
