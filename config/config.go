// Package config loads verification policy configuration from YAML.
package config

import (
	"bytes"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/georgepadayatti/certpath/keys"
	"github.com/georgepadayatti/certpath/verification"
)

// Common errors
var (
	ErrConfigurationError   = errors.New("configuration error")
	ErrMissingRequiredField = errors.New("missing required field")
	ErrUnexpectedField      = errors.New("unexpected field in configuration")
)

// ConfigError represents a configuration error with context.
type ConfigError struct {
	Field   string
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config error in '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("config error: %s", e.Message)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message}
}

// TrustStoreConfig describes where trust anchors come from: plain
// certificate files, a PKCS#12 archive, or both.
type TrustStoreConfig struct {
	// TrustRootFiles are paths to PEM or DER encoded anchor certificates.
	TrustRootFiles []string `yaml:"trust-roots" json:"trust_roots,omitempty"`

	// PKCS12File is a path to a PKCS#12 trust store archive.
	PKCS12File string `yaml:"pkcs12-file" json:"pkcs12_file,omitempty"`

	// PKCS12Passphrase is the archive passphrase.
	PKCS12Passphrase string `yaml:"pkcs12-passphrase" json:"pkcs12_passphrase,omitempty"`
}

// Validate validates the trust store configuration.
func (c *TrustStoreConfig) Validate() error {
	if len(c.TrustRootFiles) == 0 && c.PKCS12File == "" {
		return NewConfigError("trust-roots", "at least one trust root source is required")
	}
	return nil
}

// Load builds the trust store from the configured sources.
func (c *TrustStoreConfig) Load() (*verification.TrustStore, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	var anchors []*x509.Certificate
	if len(c.TrustRootFiles) > 0 {
		certs, err := keys.LoadCertsFromPemDerFiles(c.TrustRootFiles)
		if err != nil {
			return nil, fmt.Errorf("failed to load trust roots: %w", err)
		}
		anchors = certs
	}
	if c.PKCS12File != "" {
		store, err := keys.LoadTrustStoreFromPKCS12File(c.PKCS12File, c.PKCS12Passphrase)
		if err != nil {
			return nil, fmt.Errorf("failed to load PKCS#12 trust store: %w", err)
		}
		anchors = append(anchors, store.All()...)
	}
	return verification.NewTrustStore(anchors), nil
}

// VerificationConfig is the top-level configuration for building a
// server certificate verifier.
type VerificationConfig struct {
	// TrustStore configures the trust anchor sources.
	TrustStore *TrustStoreConfig `yaml:"trust-store" json:"trust_store"`

	// OtherCertsFiles are paths to untrusted intermediate certificates.
	OtherCertsFiles []string `yaml:"other-certs" json:"other_certs,omitempty"`

	// ValidationTime pins the validation moment (RFC 3339). Empty means
	// the current time at verification.
	ValidationTime string `yaml:"validation-time" json:"validation_time,omitempty"`

	// MaxChainDepth bounds the number of intermediate certificates.
	// Zero means the default depth.
	MaxChainDepth int `yaml:"max-chain-depth" json:"max_chain_depth,omitempty"`

	// PeerName is the expected peer identity, "dns:example.com" or
	// "ip:192.0.2.1".
	PeerName string `yaml:"peer-name" json:"peer_name,omitempty"`

	// Intermediates contains the loaded untrusted certificates (after processing).
	Intermediates []*x509.Certificate `yaml:"-" json:"-"`
}

// Validate validates the verification configuration.
func (c *VerificationConfig) Validate() error {
	if c.TrustStore == nil {
		return NewConfigError("trust-store", "required field is missing")
	}
	if err := c.TrustStore.Validate(); err != nil {
		return err
	}
	if c.ValidationTime != "" {
		if _, err := time.Parse(time.RFC3339, c.ValidationTime); err != nil {
			return &ConfigError{
				Field:   "validation-time",
				Message: fmt.Sprintf("not an RFC 3339 timestamp: %q", c.ValidationTime),
				Err:     err,
			}
		}
	}
	if c.MaxChainDepth < 0 {
		return NewConfigError("max-chain-depth", "must not be negative")
	}
	if c.PeerName != "" {
		if _, err := ParsePeerName(c.PeerName); err != nil {
			return err
		}
	}
	return nil
}

// LoadIntermediates loads the untrusted intermediates from the configured files.
func (c *VerificationConfig) LoadIntermediates() error {
	if len(c.OtherCertsFiles) == 0 {
		return nil
	}
	certs, err := keys.LoadCertsFromPemDerFiles(c.OtherCertsFiles)
	if err != nil {
		return fmt.Errorf("failed to load other certs: %w", err)
	}
	c.Intermediates = certs
	return nil
}

// BuildPolicy constructs a verification policy from the configuration.
func (c *VerificationConfig) BuildPolicy() (*verification.Policy, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	store, err := c.TrustStore.Load()
	if err != nil {
		return nil, err
	}

	opts := []verification.PolicyOption{verification.WithTrustStore(store)}
	if c.ValidationTime != "" {
		moment, err := time.Parse(time.RFC3339, c.ValidationTime)
		if err != nil {
			return nil, NewConfigError("validation-time", err.Error())
		}
		opts = append(opts, verification.WithValidationTime(moment))
	}
	if c.MaxChainDepth > 0 {
		opts = append(opts, verification.WithMaxChainDepth(c.MaxChainDepth))
	}
	return verification.NewPolicy(opts...)
}

// BuildVerifier constructs a server verifier from the configuration.
// The peer-name field is required here.
func (c *VerificationConfig) BuildVerifier() (*verification.ServerVerifier, error) {
	if c.PeerName == "" {
		return nil, NewConfigError("peer-name", "required field is missing")
	}
	subject, err := ParsePeerName(c.PeerName)
	if err != nil {
		return nil, err
	}
	policy, err := c.BuildPolicy()
	if err != nil {
		return nil, err
	}
	if err := c.LoadIntermediates(); err != nil {
		return nil, err
	}
	return policy.BuildServerVerifier(subject)
}

// ParsePeerName parses a "dns:name" or "ip:address" peer identity.
func ParsePeerName(s string) (verification.Subject, error) {
	kind, value, found := strings.Cut(s, ":")
	if !found {
		return nil, NewConfigError("peer-name", fmt.Sprintf("expected 'dns:...' or 'ip:...', got %q", s))
	}
	switch strings.ToLower(kind) {
	case "dns":
		subject, err := verification.NewDNSName(value)
		if err != nil {
			return nil, &ConfigError{Field: "peer-name", Message: err.Error(), Err: err}
		}
		return subject, nil
	case "ip":
		subject, err := verification.NewIPAddress(value)
		if err != nil {
			return nil, &ConfigError{Field: "peer-name", Message: err.Error(), Err: err}
		}
		return subject, nil
	default:
		return nil, NewConfigError("peer-name", fmt.Sprintf("unknown peer name kind %q", kind))
	}
}

// LoadConfig loads a configuration from a YAML file.
func LoadConfig(filename string) (*VerificationConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses configuration from YAML data. Unknown fields are
// rejected.
func ParseConfig(data []byte) (*VerificationConfig, error) {
	var config VerificationConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrConfigurationError, err)
	}
	return &config, nil
}

// LoadConfigFromMap loads configuration from a map.
func LoadConfigFromMap(data map[string]any) (*VerificationConfig, error) {
	yamlData, err := yaml.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config map: %w", err)
	}
	return ParseConfig(yamlData)
}
