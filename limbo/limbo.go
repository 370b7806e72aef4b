// Package limbo runs x509-limbo conformance testcases against the
// verification engine.
// This file contains the corpus model.
package limbo

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// Corpus is a decoded limbo testcase collection.
type Corpus struct {
	Version   int        `json:"version"`
	Testcases []Testcase `json:"testcases"`
}

// PeerName is the peer identity a testcase expects the verifier to match.
type PeerName struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

// Testcase is one limbo conformance case: trust material, a peer
// certificate, policy inputs, and the expected verdict.
type Testcase struct {
	ID            string   `json:"id"`
	Description   string   `json:"description"`
	Features      []string `json:"features"`
	ConflictsWith []string `json:"conflicts_with"`

	ValidationKind string `json:"validation_kind"`

	TrustedCerts           []string `json:"trusted_certs"`
	UntrustedIntermediates []string `json:"untrusted_intermediates"`
	PeerCertificate        string   `json:"peer_certificate"`

	ExpectedPeerName  *PeerName  `json:"expected_peer_name"`
	ExpectedPeerNames []PeerName `json:"expected_peer_names"`

	ValidationTime *time.Time `json:"validation_time"`
	MaxChainDepth  *int       `json:"max_chain_depth"`

	SignatureAlgorithms []string `json:"signature_algorithms"`
	ExtendedKeyUsage    []string `json:"extended_key_usage"`
	KeyUsage            []string `json:"key_usage"`

	ExpectedResult string `json:"expected_result"`
}

// ShouldPass reports whether the testcase expects successful verification.
func (tc *Testcase) ShouldPass() bool {
	return tc.ExpectedResult == "SUCCESS"
}

// Load decodes a limbo corpus from a reader.
func Load(r io.Reader) (*Corpus, error) {
	var corpus Corpus
	dec := json.NewDecoder(r)
	if err := dec.Decode(&corpus); err != nil {
		return nil, fmt.Errorf("failed to decode limbo corpus: %w", err)
	}
	return &corpus, nil
}

// LoadFile decodes a limbo corpus from a file.
func LoadFile(path string) (*Corpus, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open limbo corpus %s: %w", path, err)
	}
	defer f.Close()
	return Load(f)
}
