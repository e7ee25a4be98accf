package session

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"
)

func NewToken() string { return uuid.NewString() }

func HashToken(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
