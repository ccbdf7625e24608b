package stepup

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/vitatrack/fitness_backend/internal/audit"
	"github.com/vitatrack/fitness_backend/internal/autherr"
	"github.com/vitatrack/fitness_backend/internal/tokens"
)

// Gate authorizes sensitive mutations. A capability passes exactly once:
// signature and purpose must check out, the subject must be the target
// account, and the jti must not have been spent before.
type Gate struct {
	ReauthSecret []byte
	Used         UsedStore
	Audit        audit.Recorder
}

func (g *Gate) recorder() audit.Recorder {
	if g.Audit != nil {
		return g.Audit
	}
	return audit.NopRecorder{}
}

// Authorize returns nil when the capability grants the mutation for
// accountID. Every other outcome is autherr.ErrCapabilityInvalid; callers
// must treat it as "reauthentication required" and not touch the store.
func (g *Gate) Authorize(ctx context.Context, capability string, accountID uuid.UUID) error {
	claims, err := tokens.ReauthClaimsFromToken(capability, g.ReauthSecret)
	if err != nil {
		g.deny(ctx, accountID, "bad signature or claims")
		return autherr.ErrCapabilityInvalid
	}
	if claims.Subject != accountID.String() {
		g.deny(ctx, accountID, "capability minted for another account")
		return autherr.ErrCapabilityInvalid
	}

	// Ledger entries live as long as the token could still verify.
	ttl := tokens.ReauthTTL
	if claims.ExpiresAt != nil {
		if remaining := time.Until(claims.ExpiresAt.Time); remaining > 0 && remaining < ttl {
			ttl = remaining
		}
	}
	fresh, err := g.Used.Consume(ctx, claims.ID, ttl)
	if err != nil {
		return err
	}
	if !fresh {
		g.deny(ctx, accountID, "capability already used")
		return autherr.ErrCapabilityInvalid
	}

	g.recorder().Record(ctx, audit.Event{
		Action:    audit.ActionStepUp,
		Outcome:   audit.OutcomeSuccess,
		AccountID: accountID.String(),
	})
	return nil
}

func (g *Gate) deny(ctx context.Context, accountID uuid.UUID, reason string) {
	g.recorder().Record(ctx, audit.Event{
		Action:      audit.ActionStepUp,
		Outcome:     audit.OutcomeFailure,
		AccountID:   accountID.String(),
		Description: reason,
	})
}
