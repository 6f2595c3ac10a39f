package utils

import (
	"crypto/rand"
	"encoding/base64"

	"github.com/google/uuid"
)

//go:generate mockgen -package=mocks -destination=mocks/mock_ids.go tablebook/utils IDGenerator
type IDGenerator interface {
	// NewID returns a UUIDv4 for bookings and group requests.
	NewID() string
	// NewToken returns an unguessable session token.
	NewToken() (string, error)
}

type RandomIDs struct{}

func (RandomIDs) NewID() string {
	return uuid.New().String()
}

// NewToken returns 256 bits from crypto/rand, base64url encoded.
func (RandomIDs) NewToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
