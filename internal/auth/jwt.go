package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims represents JWT claims used by this service.
type Claims struct {
	CompanyID   string   `json:"company_id"`
	Role        string   `json:"role"`
	ContractIDs []string `json:"contract_ids,omitempty"`
	jwt.RegisteredClaims
}

// ParseJWT validates a JWT and returns claims.
func ParseJWT(tokenString string, secret []byte) (*Claims, error) {
	if tokenString == "" {
		return nil, errors.New("auth: empty token")
	}
	if len(secret) == 0 {
		return nil, errors.New("auth: empty secret")
	}

	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &Claims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("auth: invalid signing method")
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.CompanyID == "" {
		return nil, errors.New("auth: missing company_id")
	}
	role, ok := NormalizeRole(claims.Role)
	if !ok {
		return nil, errors.New("auth: invalid role")
	}
	if role == RoleDriver && len(claims.ContractIDs) == 0 {
		return nil, errors.New("auth: driver token without contract_ids")
	}
	if claims.ExpiresAt != nil && time.Now().After(claims.ExpiresAt.Time) {
		return nil, errors.New("auth: token expired")
	}
	return claims, nil
}

// Identity converts validated claims into a context identity.
func (c *Claims) Identity() Identity {
	role, _ := NormalizeRole(c.Role)
	return Identity{
		CompanyID:   c.CompanyID,
		Role:        role,
		Subject:     c.Subject,
		ContractIDs: append([]string(nil), c.ContractIDs...),
	}
}
