package transfer

import "github.com/golang-jwt/jwt/v5"

type ProjectClaims struct {
	ProjectID int64 `json:"project_id"`
	jwt.RegisteredClaims
}
