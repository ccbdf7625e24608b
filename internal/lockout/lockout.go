// Package lockout is the pure lockout policy: decisions over failed-attempt
// counts and lock-expiry timestamps, no I/O.
package lockout

import "time"

const (
	// Threshold is the failed-attempt count at which a lock is imposed.
	Threshold = 3

	// LoginWindow is the lock duration for plain login failures.
	LoginWindow = 15 * time.Minute

	// ReauthWindow is the stricter lock duration for failures on the
	// step-up path, which gates credential changes.
	ReauthWindow = 30 * time.Minute
)

// IsLocked reports whether the account is locked at now. Expiry is lazy:
// a past lockedUntil means unlocked, nothing ever clears the column.
func IsLocked(lockedUntil *time.Time, now time.Time) bool {
	return lockedUntil != nil && lockedUntil.After(now)
}

// ShouldLock reports whether the post-increment failure count triggers a lock.
func ShouldLock(failedAttempts int) bool {
	return failedAttempts >= Threshold
}

// Until computes the lock expiry for a lock imposed at now.
func Until(now time.Time, window time.Duration) time.Time {
	return now.Add(window)
}
