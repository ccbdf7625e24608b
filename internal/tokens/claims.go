package tokens

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	AccessTTL  = time.Hour
	RefreshTTL = 7 * 24 * time.Hour
	ReauthTTL  = 10 * time.Minute

	// ReauthPurpose must be present in reauth capability claims. Signature
	// validity alone never qualifies a token for the step-up gate.
	ReauthPurpose = "reauth"
)

// AccessClaims prove identity and role for API calls.
type AccessClaims struct {
	Email          string `json:"email"`
	Role           string `json:"role"`
	ProfessionalID uint   `json:"professional_id,omitempty"`
	jwt.RegisteredClaims
}

// RefreshClaims carry only the account email plus a jti.
type RefreshClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// ReauthClaims are the reauthorization capability: subject is the account id,
// jti feeds the single-use ledger.
type ReauthClaims struct {
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}
