// Package clierr provides typed error values for the envmgr terminal
// client.
//
// Sentinel errors let command code handle specific failure conditions with
// errors.Is() rather than string matching, and keep the exit-code and
// colored-output decisions in one place.
package clierr

import "errors"

// Auth and connectivity errors.
var (
	// ErrNotLoggedIn indicates no token is stored in the global config.
	ErrNotLoggedIn = errors.New("not logged in")

	// ErrUnauthorized indicates the server rejected the stored token.
	ErrUnauthorized = errors.New("authentication failed")

	// ErrForbidden indicates the token is valid but the role is insufficient.
	ErrForbidden = errors.New("insufficient permissions")

	// ErrUnreachable indicates the API server could not be contacted at all.
	ErrUnreachable = errors.New("server unreachable")
)

// Local state errors.
var (
	// ErrNotLinked indicates the working directory has no link record.
	ErrNotLinked = errors.New("directory is not linked to a project")

	// ErrMalformedState indicates a state file exists but cannot be parsed.
	// Malformed state is surfaced, never silently reset.
	ErrMalformedState = errors.New("state file is malformed")

	// ErrEnvFileNotFound indicates the configured variable file is missing.
	ErrEnvFileNotFound = errors.New("variable file not found")
)

// Remote resource errors.
var (
	// ErrNotFound indicates the requested remote resource does not exist
	// or is not visible to the caller.
	ErrNotFound = errors.New("resource not found")

	// ErrNoMatch indicates an environment name or alias matched nothing.
	ErrNoMatch = errors.New("no matching environment")

	// ErrAmbiguous indicates a selection matched more than one candidate.
	ErrAmbiguous = errors.New("selection is ambiguous")
)
