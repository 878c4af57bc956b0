package utils

import (
	"crypto/rand"
	"encoding/hex"
)

// lockTokenBytes gives a 64 character hex token, long enough that guessing
// another party's hold credential is not feasible.
const lockTokenBytes = 32

// NewLockToken returns a cryptographically random opaque token used as the
// credential for a seat hold.  On failure it returns an error; callers
// must not fall back to a weaker source.
func NewLockToken() (string, error) {
	b := make([]byte, lockTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
