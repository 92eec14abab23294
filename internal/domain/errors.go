package domain

import (
	"context"
	"errors"
)

// ErrNetwork indicates the remote source could not be reached or the stream broke mid-transfer.
var ErrNetwork = errors.New("network error")

// ErrStorage indicates the destination store is unwritable (permission, no space).
var ErrStorage = errors.New("storage error")

// ErrArchiveCorrupt indicates an archive entry could not be read back intact
var ErrArchiveCorrupt = errors.New("archive corrupt")

// ErrCancelled indicates the user cancelled the job
var ErrCancelled = errors.New("cancelled")

// ErrDirectoryRace is returned by a document provider when a sibling job created the
// same directory first. Provisioning resolves it internally.
var ErrDirectoryRace = errors.New("directory already exists")

var ErrInvalidTransition = errors.New("invalid job state transition")
var ErrSessionNotFound = errors.New("session not found")
var ErrJobNotFound = errors.New("job not found")

// FailureKind is the user facing category of a failed job
type FailureKind string

const (
	FailureNone           FailureKind = ""
	FailureNetwork        FailureKind = "network"
	FailureStorage        FailureKind = "storage"
	FailureArchiveCorrupt FailureKind = "archive_corrupt"
	FailureCancelled      FailureKind = "cancelled"
	FailureUnknown        FailureKind = "unknown"
)

// Classify maps an error returned anywhere in a job onto the failure taxonomy.
func Classify(err error) FailureKind {
	switch {
	case err == nil:
		return FailureNone
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return FailureCancelled
	case errors.Is(err, ErrArchiveCorrupt):
		return FailureArchiveCorrupt
	case errors.Is(err, ErrStorage):
		return FailureStorage
	case errors.Is(err, ErrNetwork):
		return FailureNetwork
	default:
		return FailureUnknown
	}
}
