package snapshot

import (
	"errors"
	"fmt"
)

var (
	// ErrSnapshotFormat means a token is structurally invalid.
	ErrSnapshotFormat = errors.New("invalid snapshot")
	// ErrPassphraseRequired means the token is encrypted and no passphrase was given.
	ErrPassphraseRequired = errors.New("snapshot is encrypted: passphrase required")
	// ErrIncorrectPassphrase means decryption failed; the caller may ask again.
	ErrIncorrectPassphrase = errors.New("incorrect passphrase")
	// ErrInvalidSummary means a summary cannot be encoded losslessly.
	ErrInvalidSummary = errors.New("invalid summary")
	// ErrNothingToShare means the result has no groups to summarize.
	ErrNothingToShare = errors.New("nothing to share: result has no groups")
)

// FormatError describes which decoding stage rejected a token.
type FormatError struct {
	Stage string
	Err   error
}

func (e *FormatError) Error() string {
	if e == nil {
		return ErrSnapshotFormat.Error()
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", ErrSnapshotFormat.Error(), e.Stage)
	}
	return fmt.Sprintf("%s: %s: %v", ErrSnapshotFormat.Error(), e.Stage, e.Err)
}

func (e *FormatError) Unwrap() error { return ErrSnapshotFormat }

func formatErr(stage string, err error) error { return &FormatError{Stage: stage, Err: err} }
