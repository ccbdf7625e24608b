package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RolePatient          = "patient"
	RoleNutritionist     = "nutritionist"
	RolePhysicalEducator = "physical_educator"
)

// ValidRole reports whether role is one of the known account roles.
func ValidRole(role string) bool {
	switch role {
	case RolePatient, RoleNutritionist, RolePhysicalEducator:
		return true
	}
	return false
}

// Account is the credential record. Email is lowercased before it ever
// reaches the store; FailedAttempts and AccountLockedUntil drive lockout.
type Account struct {
	ID                 uuid.UUID  `gorm:"type:uuid;primaryKey"  json:"id"`
	Email              string     `gorm:"uniqueIndex;not null"  json:"email"`
	Username           string     `gorm:"unique;not null"       json:"username"`
	PasswordHash       string     `gorm:"not null"              json:"-"`
	Role               string     `gorm:"not null"              json:"role"`
	FailedAttempts     int        `gorm:"not null;default:0"    json:"-"`
	AccountLockedUntil *time.Time `json:"-"`
	RefreshToken       *string    `json:"-"`
	LastLogin          *time.Time `json:"last_login,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func (a *Account) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// Nutritionist links a professional account to its nutritionist profile.
// The row ID is the professional id carried in access-token claims.
type Nutritionist struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"account_id"`
	CRN       string    `json:"crn"`
	CreatedAt time.Time `json:"created_at"`
}

type PhysicalEducator struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"account_id"`
	CREF      string    `json:"cref"`
	CreatedAt time.Time `json:"created_at"`
}
