// Package reauth implements step-up reauthentication: per-account one-time
// codes proving a fresh password re-verification, exchanged for a short-lived
// reauthorization capability.
package reauth

import (
	"context"
	"crypto/rand"
	"math/big"
	"strconv"
	"time"

	"github.com/google/uuid"
)

const (
	// ChallengeTTL is the absolute lifetime of an issued code.
	ChallengeTTL = 5 * time.Minute

	// MaxAttempts caps wrong-code submissions per challenge.
	MaxAttempts = 3
)

// Challenge is ephemeral state keyed by account id. At most one lives per
// account; saving a new one replaces any prior one.
type Challenge struct {
	AccountID uuid.UUID `json:"account_id"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
	Attempts  int       `json:"attempts"`
}

func (c *Challenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// ChallengeStore holds live challenges plus the step-up path's own
// password-failure counters (separate from the login counter).
//
// Get returns (nil, nil) when no challenge exists: absence is a normal
// outcome, not a store error.
type ChallengeStore interface {
	Save(ctx context.Context, ch *Challenge) error
	Get(ctx context.Context, accountID uuid.UUID) (*Challenge, error)
	Delete(ctx context.Context, accountID uuid.UUID) error

	IncrementPasswordFailures(ctx context.Context, accountID uuid.UUID, window time.Duration) (int, error)
	ResetPasswordFailures(ctx context.Context, accountID uuid.UUID) error
}

// NewCode draws a 6-digit code uniformly from [100000, 999999].
func NewCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n.Int64()+100000, 10), nil
}
