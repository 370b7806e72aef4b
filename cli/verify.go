package cli

import (
	"crypto/x509"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/georgepadayatti/certpath/config"
	"github.com/georgepadayatti/certpath/keys"
	"github.com/georgepadayatti/certpath/verification"
)

// VerifyOptions contains options for the verify command.
type VerifyOptions struct {
	ConfigFile        string
	TrustRootsFile    string
	IntermediatesFile string
	DNSName           string
	IPAddress         string
	ValidationTime    string
	MaxChainDepth     int
	JSON              bool
}

// VerifyCommand implements the 'verify' command.
func VerifyCommand(args []string) {
	verifyFlags := flag.NewFlagSet("verify", flag.ExitOnError)

	var opts VerifyOptions

	verifyFlags.StringVar(&opts.ConfigFile, "config", "", "YAML policy configuration file")
	verifyFlags.StringVar(&opts.TrustRootsFile, "trust-roots", "", "File containing trusted root certificates (PEM or DER)")
	verifyFlags.StringVar(&opts.IntermediatesFile, "intermediates", "", "File containing untrusted intermediate certificates")
	verifyFlags.StringVar(&opts.DNSName, "name", "", "Expected peer DNS name")
	verifyFlags.StringVar(&opts.IPAddress, "ip", "", "Expected peer IP address")
	verifyFlags.StringVar(&opts.ValidationTime, "time", "", "Validation time (RFC 3339, default now)")
	verifyFlags.IntVar(&opts.MaxChainDepth, "max-depth", 0, "Maximum number of intermediate certificates (0 = default)")
	verifyFlags.BoolVar(&opts.JSON, "json", false, "Output results in JSON format")

	verifyFlags.Usage = func() {
		fmt.Printf("Usage: %s verify [options] <leaf.pem>\n\n", os.Args[0])
		fmt.Println("Verify a certificate chain against a trust store.")
		fmt.Println("")
		fmt.Println("Arguments:")
		fmt.Println("  leaf.pem  End-entity certificate to verify")
		fmt.Println("")
		fmt.Println("Options:")
		verifyFlags.PrintDefaults()
		fmt.Println("")
		fmt.Println("Examples:")
		fmt.Printf("  %s verify -trust-roots roots.pem -name example.com leaf.pem\n", os.Args[0])
		fmt.Printf("  %s verify -trust-roots roots.pem -intermediates chain.pem -ip 192.0.2.1 leaf.pem\n", os.Args[0])
		fmt.Printf("  %s verify -config policy.yml leaf.pem\n", os.Args[0])
	}

	if err := verifyFlags.Parse(args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		osExit(1)
	}

	if len(verifyFlags.Args()) < 1 {
		verifyFlags.Usage()
		osExit(1)
	}

	leafPath := verifyFlags.Arg(0)

	output, err := verifyLeaf(leafPath, &opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		osExit(1)
	}

	if opts.JSON {
		outputJSON(output)
	} else {
		outputText(output)
	}

	if !output.Valid {
		osExit(1)
	}
}

// VerifyOutput is a JSON-serializable verification result.
type VerifyOutput struct {
	Valid   bool             `json:"valid"`
	Subject string           `json:"subject,omitempty"`
	Chain   []*ChainCertInfo `json:"chain,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// ChainCertInfo describes one certificate of a validated chain.
type ChainCertInfo struct {
	Subject   string `json:"subject"`
	Issuer    string `json:"issuer"`
	Serial    string `json:"serial"`
	NotBefore string `json:"not_before"`
	NotAfter  string `json:"not_after"`
	IsAnchor  bool   `json:"is_anchor"`
}

func verifyLeaf(leafPath string, opts *VerifyOptions) (*VerifyOutput, error) {
	verifier, intermediates, err := buildVerifier(opts)
	if err != nil {
		return nil, err
	}

	leaf, err := keys.LoadCertFromPemDer(leafPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load leaf certificate: %w", err)
	}

	output := &VerifyOutput{Subject: verifier.Subject().String()}
	chain, err := verifier.Verify(leaf, intermediates)
	if err != nil {
		output.Valid = false
		output.Error = err.Error()
		return output, nil
	}

	output.Valid = true
	for i, cert := range chain {
		output.Chain = append(output.Chain, &ChainCertInfo{
			Subject:   cert.Subject.String(),
			Issuer:    cert.Issuer.String(),
			Serial:    cert.SerialNumber.String(),
			NotBefore: cert.NotBefore.Format(time.RFC3339),
			NotAfter:  cert.NotAfter.Format(time.RFC3339),
			IsAnchor:  i == len(chain)-1,
		})
	}
	return output, nil
}

func buildVerifier(opts *VerifyOptions) (*verification.ServerVerifier, []*x509.Certificate, error) {
	if opts.ConfigFile != "" {
		cfg, err := config.LoadConfig(opts.ConfigFile)
		if err != nil {
			return nil, nil, err
		}
		if opts.DNSName != "" {
			cfg.PeerName = "dns:" + opts.DNSName
		}
		if opts.IPAddress != "" {
			cfg.PeerName = "ip:" + opts.IPAddress
		}
		verifier, err := cfg.BuildVerifier()
		if err != nil {
			return nil, nil, err
		}
		return verifier, cfg.Intermediates, nil
	}

	if opts.TrustRootsFile == "" {
		return nil, nil, fmt.Errorf("either -config or -trust-roots is required")
	}
	if opts.DNSName == "" && opts.IPAddress == "" {
		return nil, nil, fmt.Errorf("either -name or -ip is required")
	}
	if opts.DNSName != "" && opts.IPAddress != "" {
		return nil, nil, fmt.Errorf("-name and -ip are mutually exclusive")
	}

	roots, err := keys.LoadCertsFromPemDer(opts.TrustRootsFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load trust roots: %w", err)
	}

	var intermediates []*x509.Certificate
	if opts.IntermediatesFile != "" {
		intermediates, err = keys.LoadCertsFromPemDer(opts.IntermediatesFile)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load intermediates: %w", err)
		}
	}

	policyOpts := []verification.PolicyOption{
		verification.WithTrustStore(verification.NewTrustStore(roots)),
	}
	if opts.ValidationTime != "" {
		moment, err := time.Parse(time.RFC3339, opts.ValidationTime)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid -time value %q: %w", opts.ValidationTime, err)
		}
		policyOpts = append(policyOpts, verification.WithValidationTime(moment))
	}
	if opts.MaxChainDepth > 0 {
		policyOpts = append(policyOpts, verification.WithMaxChainDepth(opts.MaxChainDepth))
	}

	policy, err := verification.NewPolicy(policyOpts...)
	if err != nil {
		return nil, nil, err
	}

	var subject verification.Subject
	if opts.DNSName != "" {
		subject, err = verification.NewDNSName(opts.DNSName)
	} else {
		subject, err = verification.NewIPAddress(opts.IPAddress)
	}
	if err != nil {
		return nil, nil, err
	}

	verifier, err := policy.BuildServerVerifier(subject)
	if err != nil {
		return nil, nil, err
	}
	return verifier, intermediates, nil
}

func outputJSON(output *VerifyOutput) {
	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling JSON: %v\n", err)
		osExit(1)
	}
	fmt.Println(string(data))
}

func outputText(output *VerifyOutput) {
	if !output.Valid {
		fmt.Printf("INVALID: %s\n", output.Error)
		return
	}
	fmt.Printf("VALID: chain of %d certificate(s) for %s\n", len(output.Chain), output.Subject)
	for i, info := range output.Chain {
		role := "intermediate"
		if i == 0 {
			role = "leaf"
		}
		if info.IsAnchor {
			role = "anchor"
		}
		fmt.Printf("  %d. [%s] %s\n", i, role, info.Subject)
		fmt.Printf("     issuer:  %s\n", info.Issuer)
		fmt.Printf("     serial:  %s\n", info.Serial)
		fmt.Printf("     validity: %s to %s\n", info.NotBefore, info.NotAfter)
	}
}
