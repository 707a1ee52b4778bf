// Package credential implements password hashing and bearer token
// issuance for storectl principals.
package credential

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// argon2 tuning parameters. Chosen to match the passlib argon2 defaults
// the original implementation relied on: reasonably fast for interactive
// login while still memory-hard.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024 // KiB
	argonThreads = 4
	argonKeyLen  = 32
	saltLen      = 16
)

// HashPassword pre-normalizes the password with SHA-256 (matching the
// original implementation's normalization step) and hashes the result with
// argon2id. The returned string encodes the salt and parameters so it can
// be verified without external state.
func HashPassword(password string) (string, error) {
	normalized := normalize(password)

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	hash := argon2.IDKey(normalized, salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	encoded := fmt.Sprintf("$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		argonMemory, argonTime, argonThreads,
		hex.EncodeToString(salt),
		hex.EncodeToString(hash),
	)
	return encoded, nil
}

// VerifyPassword reports whether password matches the given encoded hash.
func VerifyPassword(password, encoded string) bool {
	salt, hash, mem, t, p, err := decode(encoded)
	if err != nil {
		return false
	}

	normalized := normalize(password)
	candidate := argon2.IDKey(normalized, salt, t, mem, p, uint32(len(hash)))

	return subtle.ConstantTimeCompare(candidate, hash) == 1
}

// normalize applies the SHA-256 pre-hash step so arbitrarily long passwords
// are reduced to a fixed-size input before argon2, matching the original
// implementation's hashlib.sha256(password).hexdigest() normalization.
func normalize(password string) []byte {
	sum := sha256.Sum256([]byte(password))
	return []byte(hex.EncodeToString(sum[:]))
}

func decode(encoded string) (salt, hash []byte, mem uint32, t uint32, p uint8, err error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return nil, nil, 0, 0, 0, fmt.Errorf("invalid encoded hash format")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, nil, 0, 0, 0, fmt.Errorf("parsing version: %w", err)
	}

	var m uint32
	var ti uint32
	var pi uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &m, &ti, &pi); err != nil {
		return nil, nil, 0, 0, 0, fmt.Errorf("parsing params: %w", err)
	}

	salt, err = hex.DecodeString(parts[4])
	if err != nil {
		return nil, nil, 0, 0, 0, fmt.Errorf("decoding salt: %w", err)
	}

	hash, err = hex.DecodeString(parts[5])
	if err != nil {
		return nil, nil, 0, 0, 0, fmt.Errorf("decoding hash: %w", err)
	}

	return salt, hash, m, ti, pi, nil
}
