package tokens

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid token")

func parseHS256(tokenStr string, secret []byte, claims jwt.Claims) error {
	tkn, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected sign method")
		}
		return secret, nil
	})
	if err != nil || !tkn.Valid {
		return ErrInvalidToken
	}
	return nil
}

func AccessClaimsFromToken(tokenStr string, accessSecret []byte) (*AccessClaims, error) {
	var claims AccessClaims
	if err := parseHS256(tokenStr, accessSecret, &claims); err != nil {
		return nil, err
	}
	if claims.Email == "" || claims.Role == "" {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}

func RefreshClaimsFromToken(tokenStr string, refreshSecret []byte) (*RefreshClaims, error) {
	var claims RefreshClaims
	if err := parseHS256(tokenStr, refreshSecret, &claims); err != nil {
		return nil, err
	}
	if claims.Email == "" {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}

// ReauthClaimsFromToken rejects any token whose purpose claim is not
// exactly ReauthPurpose, no matter how it is signed.
func ReauthClaimsFromToken(tokenStr string, reauthSecret []byte) (*ReauthClaims, error) {
	var claims ReauthClaims
	if err := parseHS256(tokenStr, reauthSecret, &claims); err != nil {
		return nil, err
	}
	if claims.Purpose != ReauthPurpose || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}
