// Package autherr holds the user-facing error taxonomy of the auth core.
// Everything here is recoverable and maps to a 4xx response; store failures
// stay out of this package and surface as generic server errors.
package autherr

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidCredentials covers both unknown account and wrong password,
	// so callers cannot enumerate accounts.
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrChallengeNotFound = errors.New("no reauthentication challenge for account")
	ErrChallengeExpired  = errors.New("reauthentication challenge expired")
	ErrInvalidCode       = errors.New("invalid reauthentication code")

	// ErrCapabilityInvalid covers bad signature, wrong purpose, account
	// mismatch and replayed capabilities alike.
	ErrCapabilityInvalid = errors.New("invalid reauthorization capability")
)

// AccountLockedError carries the lock expiry so handlers can report it.
type AccountLockedError struct {
	Until time.Time
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account locked until %s", e.Until.Format(time.RFC3339))
}

// Locked extracts an AccountLockedError from err, if there is one.
func Locked(err error) (*AccountLockedError, bool) {
	var le *AccountLockedError
	if errors.As(err, &le) {
		return le, true
	}
	return nil, false
}
