package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
)

// argon2id parameters follow the OWASP recommendation:
// memory=64MB, iterations=3, parallelism=4.
const (
	argonTime    = 3
	argonMemory  = 64 * 1024 // 64 MB in KiB
	argonThreads = 4
	argonKeyLen  = 32
	argonSaltLen = 16
)

// legacyHashLen is the length of an unsalted SHA-256 hex digest, the format
// accounts imported from the previous backend still carry.
const legacyHashLen = sha256.Size * 2

// hashPassword creates an argon2id hash of the given password in PHC
// format: $argon2id$v=19$m=65536,t=3,p=4$<salt>$<hash>
func hashPassword(password string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	hash := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	b64Salt := base64.RawStdEncoding.EncodeToString(salt)
	b64Hash := base64.RawStdEncoding.EncodeToString(hash)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonTime, argonThreads, b64Salt, b64Hash), nil
}

// verifyPassword checks a plaintext password against a stored hash. Both
// argon2id PHC strings and legacy SHA-256 hex digests are accepted.
func verifyPassword(password, encodedHash string) bool {
	if isLegacyHash(encodedHash) {
		sum := sha256.Sum256([]byte(password))
		computed := hex.EncodeToString(sum[:])
		return subtle.ConstantTimeCompare([]byte(computed), []byte(strings.ToLower(encodedHash))) == 1
	}

	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false
	}

	var memory uint32
	var iterations uint32
	var parallelism uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism); err != nil {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}

	expectedHash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false
	}

	computedHash := argon2.IDKey([]byte(password), salt, iterations, memory, parallelism, uint32(len(expectedHash)))
	return subtle.ConstantTimeCompare(expectedHash, computedHash) == 1
}

// isLegacyHash reports whether the stored hash is an unsalted SHA-256 hex
// digest that should be upgraded on the next successful login.
func isLegacyHash(encodedHash string) bool {
	if len(encodedHash) != legacyHashLen {
		return false
	}
	_, err := hex.DecodeString(encodedHash)
	return err == nil
}

var (
	dummyHash     string
	dummyHashOnce sync.Once
)

// burnVerify runs one verification against a throwaway hash so a login for
// an unknown email costs the same as a wrong password.
func burnVerify(password string) {
	dummyHashOnce.Do(func() {
		dummyHash, _ = hashPassword("nexus-timing-equalizer")
	})
	_ = verifyPassword(password, dummyHash)
}
