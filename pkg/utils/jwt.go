package utils

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"

	"github.com/DayMoonDevelopment/post-for-me-sub000/internal/transfer"
)

// ValidateAPIToken parses and verifies the project-scoped token recorded on a
// post at submission time. The API layer mints these; the pipeline only
// verifies them before publishing.
func ValidateAPIToken(secretKey, tokenString string) (*transfer.ProjectClaims, error) {
	claims := &transfer.ProjectClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secretKey), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	return claims, nil
}
