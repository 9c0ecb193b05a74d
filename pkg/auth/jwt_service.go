package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "openforge-gateway"

// JWTService issues and checks the HS256 tokens of the admin API.
type JWTService struct {
	secret   []byte
	lifespan time.Duration
	now      func() time.Time
}

type CustomClaims struct {
	OwnerID uuid.UUID `json:"owner_id"`
	jwt.RegisteredClaims
}

func NewJWTService(secretKey string, tokenLifespan time.Duration) *JWTService {
	if tokenLifespan <= 0 {
		tokenLifespan = 24 * time.Hour
	}
	return &JWTService{secret: []byte(secretKey), lifespan: tokenLifespan, now: time.Now}
}

// Issue signs a token for ownerID and reports when it expires.
func (s *JWTService) Issue(ownerID uuid.UUID) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.lifespan)
	claims := CustomClaims{
		OwnerID: ownerID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   ownerID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("cannot sign token: %w", err)
	}
	return signed, expiresAt, nil
}

func (s *JWTService) GenerateToken(ownerID uuid.UUID) (string, error) {
	token, _, err := s.Issue(ownerID)
	return token, err
}

func (s *JWTService) ValidateToken(tokenString string) (*CustomClaims, error) {
	claims := &CustomClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithIssuer(issuer),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if claims.OwnerID == uuid.Nil {
		return nil, errors.New("token carries no owner")
	}
	return claims, nil
}
