package domain

import (
	"errors"
	"fmt"
)

// Download lookup outcomes. An identifier that was never issued (or whose
// entry has already been evicted) is NotFound; an entry found past its
// deadline is Expired. The two are never conflated.
var (
	ErrNotFound = errors.New("artifact not found")
	ErrExpired  = errors.New("artifact expired")
)

// InputKind classifies client-correctable manifest problems.
type InputKind int

const (
	InputMissing InputKind = iota
	InputTooLarge
	InputMalformed
)

// InputError reports a rejected manifest. These are client mistakes, not
// incidents: handlers map them to a 4xx response and do not log them as
// failures.
type InputError struct {
	Kind   InputKind
	Reason string
}

func (e *InputError) Error() string { return e.Reason }

// ProvisionError wraps a failure to allocate workspace storage.
type ProvisionError struct {
	Err error
}

func (e *ProvisionError) Error() string { return fmt.Sprintf("provision workspace: %v", e.Err) }
func (e *ProvisionError) Unwrap() error { return e.Err }

// WriteError wraps a failure to persist the manifest into a workspace.
type WriteError struct {
	Err error
}

func (e *WriteError) Error() string { return fmt.Sprintf("write manifest: %v", e.Err) }
func (e *WriteError) Unwrap() error { return e.Err }

// BuildFailure carries the install tool's diagnostics for a non-zero exit.
// Diagnostics are bounded at capture time and surfaced to the client
// verbatim; the failure is the manifest's fault, not the system's.
type BuildFailure struct {
	ExitCode    int
	Diagnostics string
}

func (e *BuildFailure) Error() string {
	return fmt.Sprintf("dependency install failed (exit %d)", e.ExitCode)
}

// ArchiveFailure carries the compression tool's diagnostics for a non-zero
// exit.
type ArchiveFailure struct {
	ExitCode    int
	Diagnostics string
}

func (e *ArchiveFailure) Error() string {
	return fmt.Sprintf("archive creation failed (exit %d)", e.ExitCode)
}
