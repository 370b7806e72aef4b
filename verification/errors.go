// Package verification provides X.509 certification path building and
// validation against a trust store.
// This file contains the error types surfaced during path validation.
package verification

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoPathFound is returned when the search space is exhausted without
// reaching a trust anchor.
var ErrNoPathFound = errors.New("no candidate certification path found")

// MalformedCertificateError indicates that input bytes could not be decoded
// into a certificate.
type MalformedCertificateError struct {
	Message string
	Err     error
}

func (e *MalformedCertificateError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *MalformedCertificateError) Unwrap() error {
	return e.Err
}

// NewMalformedCertificateError creates a new MalformedCertificateError.
func NewMalformedCertificateError(message string, err error) *MalformedCertificateError {
	return &MalformedCertificateError{Message: message, Err: err}
}

// ChainError is the base error type for per-chain validation failures.
// A ChainError is local to one candidate chain; other candidates may still
// validate.
type ChainError struct {
	Message string
}

func (e *ChainError) Error() string {
	return e.Message
}

// InvalidSignatureError indicates that a certificate's signature could not be
// verified against its issuer's public key.
type InvalidSignatureError struct {
	ChainError
	Err error
}

func (e *InvalidSignatureError) Unwrap() error {
	return e.Err
}

// NewInvalidSignatureError creates a new InvalidSignatureError.
func NewInvalidSignatureError(message string, err error) *InvalidSignatureError {
	return &InvalidSignatureError{ChainError: ChainError{Message: message}, Err: err}
}

// ExpiredError indicates a certificate in the chain had expired at the
// validation time.
type ExpiredError struct {
	ChainError
	ExpiredAt time.Time
}

// NewExpiredError creates a new ExpiredError.
func NewExpiredError(message string, expiredAt time.Time) *ExpiredError {
	return &ExpiredError{ChainError: ChainError{Message: message}, ExpiredAt: expiredAt}
}

// FormatExpiredError creates an ExpiredError for the given certificate description.
func FormatExpiredError(certDesc string, expiredAt time.Time) *ExpiredError {
	msg := fmt.Sprintf("%s expired %s", certDesc, expiredAt.Format("2006-01-02 15:04:05Z"))
	return NewExpiredError(msg, expiredAt)
}

// NotYetValidError indicates a certificate in the chain was not yet valid at
// the validation time.
type NotYetValidError struct {
	ChainError
	ValidFrom time.Time
}

// NewNotYetValidError creates a new NotYetValidError.
func NewNotYetValidError(message string, validFrom time.Time) *NotYetValidError {
	return &NotYetValidError{ChainError: ChainError{Message: message}, ValidFrom: validFrom}
}

// FormatNotYetValidError creates a NotYetValidError for the given certificate description.
func FormatNotYetValidError(certDesc string, validFrom time.Time) *NotYetValidError {
	msg := fmt.Sprintf("%s is not valid until %s", certDesc, validFrom.Format("2006-01-02 15:04:05Z"))
	return NewNotYetValidError(msg, validFrom)
}

// PathLengthExceededError indicates a CA's path length constraint was
// violated by the certificates below it.
type PathLengthExceededError struct {
	ChainError
}

// NewPathLengthExceededError creates a new PathLengthExceededError.
func NewPathLengthExceededError(message string) *PathLengthExceededError {
	return &PathLengthExceededError{ChainError: ChainError{Message: message}}
}

// KeyUsageError indicates a key usage or extended key usage requirement was
// not met.
type KeyUsageError struct {
	ChainError
}

// NewKeyUsageError creates a new KeyUsageError.
func NewKeyUsageError(message string) *KeyUsageError {
	return &KeyUsageError{ChainError: ChainError{Message: message}}
}

// NameConstraintError indicates a name constraint violation.
type NameConstraintError struct {
	ChainError
}

// NewNameConstraintError creates a new NameConstraintError.
func NewNameConstraintError(message string) *NameConstraintError {
	return &NameConstraintError{ChainError: ChainError{Message: message}}
}

// PeerNameMismatchError indicates the leaf certificate's subject alternative
// names did not contain the required peer identity.
type PeerNameMismatchError struct {
	ChainError
	Subject string
}

// NewPeerNameMismatchError creates a new PeerNameMismatchError.
func NewPeerNameMismatchError(subject string) *PeerNameMismatchError {
	return &PeerNameMismatchError{
		ChainError: ChainError{Message: fmt.Sprintf("leaf certificate does not match peer identity %s", subject)},
		Subject:    subject,
	}
}

// BasicConstraintsError indicates a non-leaf certificate in the chain is not
// a CA certificate.
type BasicConstraintsError struct {
	ChainError
}

// NewBasicConstraintsError creates a new BasicConstraintsError.
func NewBasicConstraintsError(message string) *BasicConstraintsError {
	return &BasicConstraintsError{ChainError: ChainError{Message: message}}
}

// MaxDepthExceededError indicates a search branch hit the chain depth bound.
// It prunes the branch, not the overall search.
type MaxDepthExceededError struct {
	ChainError
	Depth int
}

// NewMaxDepthExceededError creates a new MaxDepthExceededError.
func NewMaxDepthExceededError(depth int) *MaxDepthExceededError {
	return &MaxDepthExceededError{
		ChainError: ChainError{Message: fmt.Sprintf("maximum chain depth of %d exceeded", depth)},
		Depth:      depth,
	}
}

// VerificationError is the terminal failure surfaced to the caller when no
// candidate chain validates. Reason carries one representative branch error:
// the last one recorded before the search space was exhausted.
type VerificationError struct {
	Message string
	Reason  error
}

func (e *VerificationError) Error() string {
	if e.Reason != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Reason)
	}
	return e.Message
}

func (e *VerificationError) Unwrap() error {
	return e.Reason
}

// NewVerificationError creates a new VerificationError.
func NewVerificationError(message string, reason error) *VerificationError {
	return &VerificationError{Message: message, Reason: reason}
}

// Errors collects per-branch errors during a path search.
type Errors struct {
	errors []error
}

// NewErrors creates a new Errors collector.
func NewErrors() *Errors {
	return &Errors{errors: make([]error, 0)}
}

// Add adds an error to the collection.
func (e *Errors) Add(err error) {
	if err != nil {
		e.errors = append(e.errors, err)
	}
}

// HasErrors returns true if any errors have been collected.
func (e *Errors) HasErrors() bool {
	return len(e.errors) > 0
}

// Count returns the number of errors collected.
func (e *Errors) Count() int {
	return len(e.errors)
}

// All returns all collected errors.
func (e *Errors) All() []error {
	return e.errors
}

// First returns the first error, or nil if none.
func (e *Errors) First() error {
	if len(e.errors) == 0 {
		return nil
	}
	return e.errors[0]
}

// Last returns the most recently added error, or nil if none.
func (e *Errors) Last() error {
	if len(e.errors) == 0 {
		return nil
	}
	return e.errors[len(e.errors)-1]
}
