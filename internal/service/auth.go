package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vitatrack/fitness_backend/internal/audit"
	"github.com/vitatrack/fitness_backend/internal/autherr"
	"github.com/vitatrack/fitness_backend/internal/hash"
	"github.com/vitatrack/fitness_backend/internal/lockout"
	"github.com/vitatrack/fitness_backend/internal/logging"
	"github.com/vitatrack/fitness_backend/internal/models"
	"github.com/vitatrack/fitness_backend/internal/repo"
	"github.com/vitatrack/fitness_backend/internal/stepup"
	"github.com/vitatrack/fitness_backend/internal/tokens"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("account already exists")
)

const minPasswordLen = 6

// AuthService orchestrates login, registration, token refresh and the
// step-up-gated credential mutations.
type AuthService struct {
	Repo   *repo.CredentialRepo
	Issuer *tokens.Issuer
	Gate   *stepup.Gate
	Audit  audit.Recorder

	// Now is overridable for tests; nil means time.Now.
	Now func() time.Time
}

type LoginResult struct {
	AccessToken    string
	RefreshToken   string
	AccountID      uuid.UUID
	Role           string
	ProfessionalID uint
}

func (s *AuthService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *AuthService) recorder() audit.Recorder {
	if s.Audit != nil {
		return s.Audit
	}
	return audit.NopRecorder{}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an account with a hashed password. Email is lowercased
// here, the single entry point for new addresses.
func (s *AuthService) Register(ctx context.Context, email, username, password, role string) (*models.Account, error) {
	l := logging.FromContext(ctx).With("svc", "auth.register")

	email = normalizeEmail(email)
	if email == "" || username == "" || len(password) < minPasswordLen || !models.ValidRole(role) {
		return nil, ErrValidation
	}

	pwHash, err := hash.HashPassword(password)
	if err != nil {
		l.Error("password hash failed", "error", err)
		return nil, err
	}
	account := &models.Account{
		Email:        email,
		Username:     username,
		PasswordHash: pwHash,
		Role:         role,
	}
	if err := s.Repo.Create(ctx, account); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrConflict
		}
		l.Error("account create failed", "error", err)
		return nil, err
	}

	s.recorder().Record(ctx, audit.Event{
		Action:    audit.ActionRegister,
		Outcome:   audit.OutcomeSuccess,
		AccountID: account.ID.String(),
	})
	return account, nil
}

// Login runs the credential check behind the lockout policy. Unknown email
// and wrong password are indistinguishable to the caller; a live lock wins
// before the password is even evaluated.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	l := logging.FromContext(ctx).With("svc", "auth.login")
	email = normalizeEmail(email)
	now := s.now()

	account, err := s.Repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			s.recorder().Record(ctx, audit.Event{
				Action:      audit.ActionLogin,
				Outcome:     audit.OutcomeFailure,
				Description: "unknown account",
			})
			return nil, autherr.ErrInvalidCredentials
		}
		l.Error("account lookup failed", "error", err)
		return nil, err
	}

	if lockout.IsLocked(account.AccountLockedUntil, now) {
		s.recorder().Record(ctx, audit.Event{
			Action:      audit.ActionLogin,
			Outcome:     audit.OutcomeFailure,
			AccountID:   account.ID.String(),
			Description: "account locked",
		})
		return nil, &autherr.AccountLockedError{Until: *account.AccountLockedUntil}
	}

	if !hash.CheckPassword(account.PasswordHash, password) {
		attempts, ierr := s.Repo.IncrementFailedAttempts(ctx, email)
		if ierr != nil {
			l.Error("failed-attempt increment failed", "error", ierr)
			return nil, ierr
		}
		if lockout.ShouldLock(attempts) {
			until := lockout.Until(now, lockout.LoginWindow)
			if lerr := s.Repo.LockAccount(ctx, email, until); lerr != nil {
				l.Error("lock account failed", "error", lerr)
				return nil, lerr
			}
			s.recorder().Record(ctx, audit.Event{
				Action:      audit.ActionAccountLock,
				Outcome:     audit.OutcomeFailure,
				AccountID:   account.ID.String(),
				Description: "locked after repeated login failures",
				Metadata:    map[string]string{"until": until.Format(time.RFC3339)},
			})
			return nil, &autherr.AccountLockedError{Until: until}
		}
		s.recorder().Record(ctx, audit.Event{
			Action:      audit.ActionLogin,
			Outcome:     audit.OutcomeFailure,
			AccountID:   account.ID.String(),
			Description: "password mismatch",
		})
		return nil, autherr.ErrInvalidCredentials
	}

	if err := s.Repo.ResetFailedAttempts(ctx, email); err != nil {
		l.Error("failed-attempt reset failed", "error", err)
		return nil, err
	}
	if err := s.Repo.UpdateLastLogin(ctx, email, now); err != nil {
		l.Error("last-login update failed", "error", err)
		return nil, err
	}

	result, err := s.issueTokenPair(ctx, account)
	if err != nil {
		l.Error("token issuance failed", "error", err)
		return nil, err
	}

	s.recorder().Record(ctx, audit.Event{
		Action:    audit.ActionLogin,
		Outcome:   audit.OutcomeSuccess,
		AccountID: account.ID.String(),
	})
	return result, nil
}

// Refresh trades a valid refresh token for a new pair. Only the most
// recently issued refresh token verifies: the store keeps a hash of it and
// issuing a new one supersedes the old value.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	l := logging.FromContext(ctx).With("svc", "auth.refresh")

	claims, err := tokens.RefreshClaimsFromToken(refreshToken, s.Issuer.RefreshSecret)
	if err != nil {
		return nil, autherr.ErrInvalidCredentials
	}
	account, err := s.Repo.FindByEmail(ctx, normalizeEmail(claims.Email))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, autherr.ErrInvalidCredentials
		}
		l.Error("account lookup failed", "error", err)
		return nil, err
	}
	if lockout.IsLocked(account.AccountLockedUntil, s.now()) {
		return nil, &autherr.AccountLockedError{Until: *account.AccountLockedUntil}
	}
	if account.RefreshToken == nil || *account.RefreshToken != tokens.Sha256Hex(refreshToken) {
		s.recorder().Record(ctx, audit.Event{
			Action:      audit.ActionRefresh,
			Outcome:     audit.OutcomeFailure,
			AccountID:   account.ID.String(),
			Description: "superseded or unknown refresh token",
		})
		return nil, autherr.ErrInvalidCredentials
	}

	result, err := s.issueTokenPair(ctx, account)
	if err != nil {
		l.Error("token issuance failed", "error", err)
		return nil, err
	}
	s.recorder().Record(ctx, audit.Event{
		Action:    audit.ActionRefresh,
		Outcome:   audit.OutcomeSuccess,
		AccountID: account.ID.String(),
	})
	return result, nil
}

// UpdateEmail is step-up gated: the capability must authorize this exact
// account, once, before the store is touched.
func (s *AuthService) UpdateEmail(ctx context.Context, capability string, accountID uuid.UUID, newEmail string) error {
	if err := s.Gate.Authorize(ctx, capability, accountID); err != nil {
		s.recorder().Record(ctx, audit.Event{
			Action:      audit.ActionEmailChange,
			Outcome:     audit.OutcomeFailure,
			AccountID:   accountID.String(),
			Description: "reauthorization denied",
		})
		return err
	}

	newEmail = normalizeEmail(newEmail)
	if newEmail == "" || !strings.Contains(newEmail, "@") {
		return ErrValidation
	}
	if existing, err := s.Repo.FindByEmail(ctx, newEmail); err == nil && existing.ID != accountID {
		return ErrConflict
	}
	if err := s.Repo.UpdateEmail(ctx, accountID, newEmail); err != nil {
		return err
	}

	s.recorder().Record(ctx, audit.Event{
		Action:    audit.ActionEmailChange,
		Outcome:   audit.OutcomeSuccess,
		AccountID: accountID.String(),
	})
	return nil
}

// UpdatePassword is step-up gated like UpdateEmail.
func (s *AuthService) UpdatePassword(ctx context.Context, capability string, accountID uuid.UUID, newPassword string) error {
	if err := s.Gate.Authorize(ctx, capability, accountID); err != nil {
		s.recorder().Record(ctx, audit.Event{
			Action:      audit.ActionPasswordChange,
			Outcome:     audit.OutcomeFailure,
			AccountID:   accountID.String(),
			Description: "reauthorization denied",
		})
		return err
	}

	if len(newPassword) < minPasswordLen {
		return ErrValidation
	}
	pwHash, err := hash.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.Repo.UpdatePassword(ctx, accountID, pwHash); err != nil {
		return err
	}

	s.recorder().Record(ctx, audit.Event{
		Action:    audit.ActionPasswordChange,
		Outcome:   audit.OutcomeSuccess,
		AccountID: accountID.String(),
	})
	return nil
}

func (s *AuthService) issueTokenPair(ctx context.Context, account *models.Account) (*LoginResult, error) {
	professionalID, err := s.Repo.ProfessionalID(ctx, account.Role, account.ID)
	if err != nil {
		return nil, err
	}

	access, _, err := s.Issuer.NewAccessToken(account.ID, account.Email, account.Role, professionalID)
	if err != nil {
		return nil, err
	}
	refresh, _, err := s.Issuer.NewRefreshToken(account.Email)
	if err != nil {
		return nil, err
	}
	if err := s.Repo.UpdateRefreshToken(ctx, account.Email, tokens.Sha256Hex(refresh)); err != nil {
		return nil, err
	}

	return &LoginResult{
		AccessToken:    access,
		RefreshToken:   refresh,
		AccountID:      account.ID,
		Role:           account.Role,
		ProfessionalID: professionalID,
	}, nil
}
