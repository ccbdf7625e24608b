package tokens

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Issuer mints the three token classes. Each class is signed with its own
// secret, so a token of one class never verifies as another.
type Issuer struct {
	AccessSecret  []byte
	RefreshSecret []byte
	ReauthSecret  []byte

	// Now is overridable for tests; nil means time.Now.
	Now func() time.Time
}

func (i *Issuer) now() time.Time {
	if i.Now != nil {
		return i.Now()
	}
	return time.Now()
}

func (i *Issuer) NewAccessToken(accountID uuid.UUID, email, role string, professionalID uint) (string, time.Time, error) {
	exp := i.now().Add(AccessTTL)
	claims := AccessClaims{
		Email:          email,
		Role:           role,
		ProfessionalID: professionalID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID.String(),
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(i.now()),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.AccessSecret)
	return token, exp, err
}

func (i *Issuer) NewRefreshToken(email string) (string, time.Time, error) {
	exp := i.now().Add(RefreshTTL)
	claims := RefreshClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(i.now()),
			ID:        uuid.NewString(),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.RefreshSecret)
	return token, exp, err
}

func (i *Issuer) NewReauthToken(accountID uuid.UUID) (string, error) {
	claims := ReauthClaims{
		Purpose: ReauthPurpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID.String(),
			ExpiresAt: jwt.NewNumericDate(i.now().Add(ReauthTTL)),
			IssuedAt:  jwt.NewNumericDate(i.now()),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.ReauthSecret)
}

// Sha256Hex is how refresh tokens are stored server-side: the raw token is
// only ever held by the client.
func Sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
