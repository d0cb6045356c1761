package account

import (
	"errors"
	"fmt"
)

// ErrPasswordMismatch is returned when the password and its confirmation differ.
var ErrPasswordMismatch = errors.New("password does not match")

type PolicyCode int

const (
	InvalidCharacters PolicyCode = iota + 1
	TooShort
	InsufficientComplexity
)

func (c PolicyCode) String() string {
	switch c {
	case InvalidCharacters:
		return "InvalidCharacters"
	case TooShort:
		return "TooShort"
	case InsufficientComplexity:
		return "InsufficientComplexity"
	default:
		return "Unknown"
	}
}

// PolicyError describes the first password policy rule a password broke.
type PolicyError struct {
	Code    PolicyCode
	Message string
}

func (e *PolicyError) Error() string {
	return e.Message
}

// Source names the namespace a username collided in.
type Source string

const (
	SourceDirectory Source = "LDAP"
	SourceHome      Source = "home"
	SourceAliases   Source = "aliases"
)

type CollisionError struct {
	Source   Source
	UID      string
	Location string // human readable place, e.g. "/home" or "/etc/aliases"
}

func (e *CollisionError) Error() string {
	location := e.Location
	if location == "" {
		location = string(e.Source)
	}
	return fmt.Sprintf("%s already found in %s", e.UID, location)
}

// RequestError reports missing or malformed form fields.
type RequestError struct {
	Problems []string
}

func (e *RequestError) Error() string {
	if len(e.Problems) == 1 {
		return e.Problems[0]
	}
	msg := "invalid request:"
	for _, p := range e.Problems {
		msg += " " + p + ";"
	}
	return msg[:len(msg)-1]
}

// IsInputError reports whether err was caused by what the operator submitted
// rather than by a backend failure.
func IsInputError(err error) bool {
	var (
		policyErr    *PolicyError
		collisionErr *CollisionError
		requestErr   *RequestError
	)
	return errors.Is(err, ErrPasswordMismatch) ||
		errors.As(err, &policyErr) ||
		errors.As(err, &collisionErr) ||
		errors.As(err, &requestErr)
}

// Outcome labels the result of a Provision call.
type Outcome string

const (
	OutcomeSuccess      Outcome = "success"
	OutcomeInputError   Outcome = "input_error"
	OutcomeCollision    Outcome = "collision"
	OutcomeBackendError Outcome = "backend_error"
)

func OutcomeOf(err error) Outcome {
	var collisionErr *CollisionError
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.As(err, &collisionErr):
		return OutcomeCollision
	case IsInputError(err):
		return OutcomeInputError
	default:
		return OutcomeBackendError
	}
}
