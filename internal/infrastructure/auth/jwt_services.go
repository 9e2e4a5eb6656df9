package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/honeynil/ReWearExchange/internal/models"
	pkgerrors "github.com/honeynil/ReWearExchange/pkg/errors"
)

// GenerateToken signs an HS256 token carrying user_id and role.
func GenerateToken(secret string, identity models.Identity, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"user_id": identity.UserID,
		"role":    identity.Role,
		"exp":     time.Now().Add(ttl).Unix(),
		"iat":     time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func ParseToken(secret, tokenStr string) (models.Identity, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Method.Alg())
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return models.Identity{}, fmt.Errorf("%w: invalid token", pkgerrors.ErrUnauthorized)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return models.Identity{}, fmt.Errorf("%w: invalid token claims", pkgerrors.ErrUnauthorized)
	}

	userID, ok := claims["user_id"].(float64)
	if !ok || userID <= 0 {
		return models.Identity{}, fmt.Errorf("%w: invalid user_id in token", pkgerrors.ErrUnauthorized)
	}
	role, _ := claims["role"].(string)

	return models.Identity{UserID: int64(userID), Role: role}, nil
}
