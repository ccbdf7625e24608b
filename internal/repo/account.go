// Package repo is the gorm-backed credential store.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vitatrack/fitness_backend/internal/models"
)

var (
	ErrNotFound  = errors.New("account not found")
	ErrDuplicate = errors.New("account already exists")
)

type CredentialRepo struct {
	DB *gorm.DB
}

func (r *CredentialRepo) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	var account models.Account
	if err := r.DB.WithContext(ctx).Where("email = ?", email).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (r *CredentialRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	var account models.Account
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (r *CredentialRepo) Create(ctx context.Context, account *models.Account) error {
	var existing models.Account
	err := r.DB.WithContext(ctx).
		Where("email = ? OR username = ?", account.Email, account.Username).
		First(&existing).Error
	if err == nil {
		return ErrDuplicate
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	// the pre-check races with concurrent registrations; the unique
	// constraint is the real arbiter, so its violation maps to ErrDuplicate
	if err := r.DB.WithContext(ctx).Create(account).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint") ||
		strings.Contains(msg, "duplicate key value")
}

func (r *CredentialRepo) UpdateRefreshToken(ctx context.Context, email, tokenHash string) error {
	return r.update(ctx, email, map[string]any{"refresh_token": tokenHash})
}

func (r *CredentialRepo) UpdateLastLogin(ctx context.Context, email string, at time.Time) error {
	return r.update(ctx, email, map[string]any{"last_login": at})
}

// IncrementFailedAttempts bumps the counter in a single UPDATE expression so
// concurrent failures for the same account never undercount, and reads the
// post-increment value back inside the same transaction.
func (r *CredentialRepo) IncrementFailedAttempts(ctx context.Context, email string) (int, error) {
	var attempts int
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Account{}).
			Where("email = ?", email).
			UpdateColumn("failed_attempts", gorm.Expr("failed_attempts + ?", 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Model(&models.Account{}).
			Where("email = ?", email).
			Pluck("failed_attempts", &attempts).Error
	})
	return attempts, err
}

func (r *CredentialRepo) ResetFailedAttempts(ctx context.Context, email string) error {
	return r.update(ctx, email, map[string]any{"failed_attempts": 0})
}

// LockAccount imposes a lock and resets the counter, so the next window
// starts clean once the lock lapses.
func (r *CredentialRepo) LockAccount(ctx context.Context, email string, until time.Time) error {
	return r.update(ctx, email, map[string]any{
		"account_locked_until": until,
		"failed_attempts":      0,
	})
}

func (r *CredentialRepo) UpdateEmail(ctx context.Context, id uuid.UUID, newEmail string) error {
	res := r.DB.WithContext(ctx).Model(&models.Account{}).
		Where("id = ?", id).
		Update("email", newEmail)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *CredentialRepo) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	res := r.DB.WithContext(ctx).Model(&models.Account{}).
		Where("id = ?", id).
		Update("password_hash", passwordHash)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ProfessionalID resolves the role-specific profile row for professional
// accounts. Patients (and professionals without a profile yet) get 0.
func (r *CredentialRepo) ProfessionalID(ctx context.Context, role string, accountID uuid.UUID) (uint, error) {
	switch role {
	case models.RoleNutritionist:
		var n models.Nutritionist
		if err := r.DB.WithContext(ctx).Where("account_id = ?", accountID).First(&n).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return 0, nil
			}
			return 0, err
		}
		return n.ID, nil
	case models.RolePhysicalEducator:
		var p models.PhysicalEducator
		if err := r.DB.WithContext(ctx).Where("account_id = ?", accountID).First(&p).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return 0, nil
			}
			return 0, err
		}
		return p.ID, nil
	}
	return 0, nil
}

func (r *CredentialRepo) update(ctx context.Context, email string, values map[string]any) error {
	res := r.DB.WithContext(ctx).Model(&models.Account{}).
		Where("email = ?", email).
		Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
