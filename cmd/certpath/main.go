// Command certpath is a CLI tool for X.509 certificate chain verification.
//
// Usage:
//
//	certpath <command> [options] <args>
//
// Commands:
//
//	verify   Verify a certificate chain against a trust store
//	limbo    Run an x509-limbo conformance corpus
//	version  Show version information
//	help     Show help message
//
// Examples:
//
//	# Verify a server certificate
//	certpath verify -trust-roots roots.pem -name example.com leaf.pem
//
//	# Verify using a YAML policy file
//	certpath verify -config policy.yml leaf.pem
//
//	# Run a conformance corpus
//	certpath limbo limbo.json
package main

import (
	"os"

	"github.com/georgepadayatti/certpath/cli"
)

// These variables are set at build time using ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.buildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)" ./cmd/certpath
var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	// Set version info
	cli.Version = version
	cli.BuildTime = buildTime

	// Run the CLI
	cli.Run(os.Args)
}
