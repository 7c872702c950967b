// Package creds implements the credential primitives the auth core is built
// on: memory-hard hashing of short-lived secrets, uniform random code and
// token generation, and a random-delay helper that equalizes observable
// timing between code paths.
package creds

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"
	"time"

	"golang.org/x/crypto/argon2"
)

// ErrHashing is returned when the hashing backend fails or when a stored
// hash cannot be parsed. A caller must treat it as fatal for the current
// operation, not retryable with the same input.
var ErrHashing = errors.New("hashing error")

const (
	saltLength = 16
	keyLength  = 32

	// Fixed argon2id parameters apart from the time cost: memory is 64 MiB,
	// parallelism is pinned to 1 so hashing cost is deterministic per core.
	memoryCost  = 64 * 1024
	parallelism = 1
)

// Hasher produces and verifies salted argon2id hashes in PHC string format.
// The time cost is configuration; everything else is fixed above.
type Hasher struct {
	timeCost uint32
}

func NewHasher(timeCost uint32) *Hasher {
	if timeCost == 0 {
		timeCost = 1
	}
	return &Hasher{timeCost: timeCost}
}

// Hash returns a self-describing argon2id hash of secret with a fresh
// random salt.
func (h *Hasher) Hash(secret string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("%w: %v", ErrHashing, err)
	}

	key := argon2.IDKey([]byte(secret), salt, h.timeCost, memoryCost, parallelism, keyLength)

	encoded := fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, memoryCost, h.timeCost, parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key))

	return encoded, nil
}

// Verify reports whether secret matches the encoded hash. The comparison is
// constant time in the derived key. A malformed hash yields ErrHashing,
// never a silent false.
func (h *Hasher) Verify(secret, encoded string) (bool, error) {
	salt, key, timeCost, memory, threads, err := parseEncoded(encoded)
	if err != nil {
		return false, err
	}

	candidate := argon2.IDKey([]byte(secret), salt, timeCost, memory, threads, uint32(len(key)))
	return subtle.ConstantTimeCompare(candidate, key) == 1, nil
}

func parseEncoded(encoded string) (salt, key []byte, timeCost, memory uint32, threads uint8, err error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return nil, nil, 0, 0, 0, fmt.Errorf("%w: malformed hash", ErrHashing)
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return nil, nil, 0, 0, 0, fmt.Errorf("%w: unsupported version", ErrHashing)
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &timeCost, &threads); err != nil {
		return nil, nil, 0, 0, 0, fmt.Errorf("%w: malformed parameters", ErrHashing)
	}

	salt, err = base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, nil, 0, 0, 0, fmt.Errorf("%w: malformed salt", ErrHashing)
	}
	key, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return nil, nil, 0, 0, 0, fmt.Errorf("%w: malformed key", ErrHashing)
	}

	return salt, key, timeCost, memory, threads, nil
}

// GenerateCode draws length characters uniformly from alphabet using
// rejection sampling over a 64-bit CSPRNG source: any draw v at or above
// floor(MaxUint64/n)*n is rejected before mapping v%n, so no residue class
// of the alphabet is favored.
func GenerateCode(alphabet string, length int) (string, error) {
	if len(alphabet) == 0 || length <= 0 {
		return "", errors.New("invalid alphabet or length")
	}

	n := uint64(len(alphabet))
	limit := (math.MaxUint64 / n) * n

	out := make([]byte, 0, length)
	var buf [8]byte
	for len(out) < length {
		if _, err := rand.Read(buf[:]); err != nil {
			return "", err
		}
		v := binary.BigEndian.Uint64(buf[:])
		if v >= limit {
			continue
		}
		out = append(out, alphabet[v%n])
	}

	return string(out), nil
}

// GenerateToken returns byteLength cryptographically random bytes, hex
// encoded (so the string is twice as long).
func GenerateToken(byteLength int) (string, error) {
	b := make([]byte, byteLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// FingerprintToken returns the SHA-256 hex digest of a handshake private
// token. Both peers compute the same deterministic digest, so the value on
// the wire is never the secret itself.
func FingerprintToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// RandomDelay suspends the caller for a cryptographically random duration in
// [0, max]. Call sites use it after code/token generation so the "user
// exists" and "user does not exist" paths stop being distinguishable by
// response latency. Returns early if ctx is cancelled.
func RandomDelay(ctx context.Context, max time.Duration) error {
	if max <= 0 {
		return nil
	}

	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)+1))
	if err != nil {
		return err
	}

	timer := time.NewTimer(time.Duration(n.Int64()))
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
