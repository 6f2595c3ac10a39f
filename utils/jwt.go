package utils

import (
	"errors"
	"time"

	"tablebook/config"

	"github.com/golang-jwt/jwt"
)

// RoleStaff is the only role allowed on the admin routes.
const RoleStaff = "staff"

var ErrInvalidToken = errors.New("invalid token")

func signingKey() ([]byte, error) {
	if config.AppConfig.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is not configured")
	}
	return []byte(config.AppConfig.JWTSecret), nil
}

// GenerateStaffToken creates a signed HS256 token for a staff member.
// The token expires after the specified duration.
func GenerateStaffToken(subject string, duration time.Duration) (string, error) {
	key, err := signingKey()
	if err != nil {
		return "", err
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  subject,
		"role": RoleStaff,
		"iat":  now.Unix(),
		"exp":  now.Add(duration).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
}

// ValidateStaffToken parses a token and returns its subject when it carries the staff role.
func ValidateStaffToken(tokenString string) (string, error) {
	key, err := signingKey()
	if err != nil {
		return "", err
	}
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return key, nil
	})
	if err != nil {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}
	if role, _ := claims["role"].(string); role != RoleStaff {
		return "", ErrInvalidToken
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", ErrInvalidToken
	}
	return sub, nil
}
