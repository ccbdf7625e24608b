package reauth

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/vitatrack/fitness_backend/internal/audit"
	"github.com/vitatrack/fitness_backend/internal/autherr"
	"github.com/vitatrack/fitness_backend/internal/hash"
	"github.com/vitatrack/fitness_backend/internal/lockout"
	"github.com/vitatrack/fitness_backend/internal/logging"
	"github.com/vitatrack/fitness_backend/internal/repo"
	"github.com/vitatrack/fitness_backend/internal/tokens"
)

// Manager orchestrates the reauthentication exchange: Request re-proves the
// password and issues a one-time code, Verify trades the code for a
// reauthorization capability. Verification is fail-closed: missing or
// ambiguous state is always treated as invalid.
type Manager struct {
	Repo   *repo.CredentialRepo
	Store  ChallengeStore
	Issuer *tokens.Issuer
	Sender CodeSender
	Audit  audit.Recorder

	// Now is overridable for tests; nil means time.Now.
	Now func() time.Time
}

func (m *Manager) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

func (m *Manager) recorder() audit.Recorder {
	if m.Audit != nil {
		return m.Audit
	}
	return audit.NopRecorder{}
}

// Request re-verifies the password and, on success, replaces any live
// challenge for the account with a fresh 6-digit code. Password failures
// feed the step-up path's own counter and can lock the account for the
// stricter reauth window.
func (m *Manager) Request(ctx context.Context, email, password string) (uuid.UUID, error) {
	l := logging.FromContext(ctx).With("svc", "reauth.request")
	email = normalizeEmail(email)
	now := m.now()

	account, err := m.Repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			m.recorder().Record(ctx, audit.Event{
				Action:      audit.ActionReauthRequest,
				Outcome:     audit.OutcomeFailure,
				Description: "unknown account",
			})
			return uuid.Nil, autherr.ErrInvalidCredentials
		}
		l.Error("account lookup failed", "error", err)
		return uuid.Nil, err
	}

	if lockout.IsLocked(account.AccountLockedUntil, now) {
		m.recorder().Record(ctx, audit.Event{
			Action:      audit.ActionReauthRequest,
			Outcome:     audit.OutcomeFailure,
			AccountID:   account.ID.String(),
			Description: "account locked",
		})
		return uuid.Nil, &autherr.AccountLockedError{Until: *account.AccountLockedUntil}
	}

	if !hash.CheckPassword(account.PasswordHash, password) {
		failures, ferr := m.Store.IncrementPasswordFailures(ctx, account.ID, lockout.ReauthWindow)
		if ferr != nil {
			l.Error("failure counter unavailable", "error", ferr)
			return uuid.Nil, ferr
		}
		if lockout.ShouldLock(failures) {
			until := lockout.Until(now, lockout.ReauthWindow)
			if lerr := m.Repo.LockAccount(ctx, email, until); lerr != nil {
				l.Error("lock account failed", "error", lerr)
				return uuid.Nil, lerr
			}
			_ = m.Store.ResetPasswordFailures(ctx, account.ID)
			m.recorder().Record(ctx, audit.Event{
				Action:      audit.ActionAccountLock,
				Outcome:     audit.OutcomeFailure,
				AccountID:   account.ID.String(),
				Description: "locked after repeated reauth password failures",
				Metadata:    map[string]string{"until": until.Format(time.RFC3339)},
			})
			return uuid.Nil, &autherr.AccountLockedError{Until: until}
		}
		m.recorder().Record(ctx, audit.Event{
			Action:      audit.ActionReauthRequest,
			Outcome:     audit.OutcomeFailure,
			AccountID:   account.ID.String(),
			Description: "password mismatch",
		})
		return uuid.Nil, autherr.ErrInvalidCredentials
	}

	_ = m.Store.ResetPasswordFailures(ctx, account.ID)

	code, err := NewCode()
	if err != nil {
		return uuid.Nil, err
	}
	ch := &Challenge{
		AccountID: account.ID,
		Code:      code,
		ExpiresAt: now.Add(ChallengeTTL),
	}
	// Save overwrites: requesting a new code invalidates the previous one.
	if err := m.Store.Save(ctx, ch); err != nil {
		l.Error("challenge save failed", "error", err)
		return uuid.Nil, err
	}

	m.recorder().Record(ctx, audit.Event{
		Action:    audit.ActionReauthRequest,
		Outcome:   audit.OutcomeSuccess,
		AccountID: account.ID.String(),
	})

	if err := m.Sender.Deliver(ctx, account.Email, code); err != nil {
		l.Warn("code delivery failed", "error", err)
		m.recorder().Record(ctx, audit.Event{
			Action:      audit.ActionCodeDelivery,
			Outcome:     audit.OutcomeFailure,
			AccountID:   account.ID.String(),
			Description: err.Error(),
		})
	} else {
		m.recorder().Record(ctx, audit.Event{
			Action:    audit.ActionCodeDelivery,
			Outcome:   audit.OutcomeSuccess,
			AccountID: account.ID.String(),
		})
	}

	return account.ID, nil
}

// Verify checks the submitted code against the live challenge. The attempt
// cap is checked before the comparison, so an over-limit submission is
// rejected even when the code is correct.
func (m *Manager) Verify(ctx context.Context, accountID uuid.UUID, code string) (string, error) {
	l := logging.FromContext(ctx).With("svc", "reauth.verify")
	now := m.now()

	ch, err := m.Store.Get(ctx, accountID)
	if err != nil {
		l.Error("challenge load failed", "error", err)
		return "", err
	}
	if ch == nil {
		m.recorder().Record(ctx, audit.Event{
			Action:      audit.ActionReauthVerify,
			Outcome:     audit.OutcomeFailure,
			AccountID:   accountID.String(),
			Description: "no live challenge",
		})
		return "", autherr.ErrChallengeNotFound
	}

	if ch.Expired(now) {
		_ = m.Store.Delete(ctx, accountID)
		m.recorder().Record(ctx, audit.Event{
			Action:      audit.ActionReauthVerify,
			Outcome:     audit.OutcomeFailure,
			AccountID:   accountID.String(),
			Description: "challenge expired",
		})
		return "", autherr.ErrChallengeExpired
	}

	if ch.Attempts >= MaxAttempts {
		_ = m.Store.Delete(ctx, accountID)
		until := lockout.Until(now, lockout.ReauthWindow)
		if lerr := m.lockByID(ctx, accountID, until); lerr != nil {
			l.Error("lock account failed", "error", lerr)
			return "", lerr
		}
		m.recorder().Record(ctx, audit.Event{
			Action:      audit.ActionAccountLock,
			Outcome:     audit.OutcomeFailure,
			AccountID:   accountID.String(),
			Description: "locked after exhausting reauth code attempts",
			Metadata:    map[string]string{"until": until.Format(time.RFC3339)},
		})
		return "", &autherr.AccountLockedError{Until: until}
	}

	if subtle.ConstantTimeCompare([]byte(ch.Code), []byte(code)) != 1 {
		ch.Attempts++
		if serr := m.Store.Save(ctx, ch); serr != nil {
			l.Error("challenge update failed", "error", serr)
			return "", serr
		}
		m.recorder().Record(ctx, audit.Event{
			Action:      audit.ActionReauthVerify,
			Outcome:     audit.OutcomeFailure,
			AccountID:   accountID.String(),
			Description: "code mismatch",
			Metadata:    map[string]string{"attempts": itoa(ch.Attempts)},
		})
		return "", autherr.ErrInvalidCode
	}

	if err := m.Store.Delete(ctx, accountID); err != nil {
		l.Error("challenge delete failed", "error", err)
		return "", err
	}

	capability, err := m.Issuer.NewReauthToken(accountID)
	if err != nil {
		return "", err
	}
	m.recorder().Record(ctx, audit.Event{
		Action:    audit.ActionReauthVerify,
		Outcome:   audit.OutcomeSuccess,
		AccountID: accountID.String(),
	})
	return capability, nil
}

func (m *Manager) lockByID(ctx context.Context, accountID uuid.UUID, until time.Time) error {
	account, err := m.Repo.FindByID(ctx, accountID)
	if err != nil {
		return err
	}
	return m.Repo.LockAccount(ctx, account.Email, until)
}
