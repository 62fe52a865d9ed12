package auth

import (
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/pbkdf2"
)

// Argon2Params are the tunable argon2id costs. Memory is in KiB.
type Argon2Params struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLen     uint32
	KeyLen      uint32
}

var DefaultArgon2Params = Argon2Params{
	Memory:      64 * 1024,
	Iterations:  3,
	Parallelism: 2,
	SaltLen:     16,
	KeyLen:      32,
}

// Legacy secrets are hex(salt):hex(digest) with PBKDF2-SHA512. They still
// verify but are flagged for upgrade.
const (
	legacyPBKDF2Iterations = 10000
	legacyPBKDF2KeyLen     = 64
	legacyMinSaltLen       = 16

	maxArgon2Memory     = 1 << 20
	maxArgon2Iterations = 64
)

var errEmptyPassword = errors.New("password cannot be empty")

// Hasher turns plaintext passwords into self-describing argon2id secrets.
type Hasher struct {
	params Argon2Params
}

func NewHasher(p Argon2Params) *Hasher {
	if p.SaltLen < 16 {
		p.SaltLen = 16
	}
	if p.KeyLen == 0 {
		p.KeyLen = 32
	}
	if p.Iterations == 0 {
		p.Iterations = 1
	}
	if p.Parallelism == 0 {
		p.Parallelism = 1
	}
	if p.Memory < 8*uint32(p.Parallelism) {
		p.Memory = 8 * uint32(p.Parallelism)
	}
	return &Hasher{params: p}
}

// Hash draws a fresh salt on every call, so equal inputs give different secrets.
func (h *Hasher) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", errEmptyPassword
	}
	p := h.params
	salt := make([]byte, p.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}

	key := argon2.IDKey([]byte(plaintext), salt, p.Iterations, p.Memory, p.Parallelism, p.KeyLen)

	b64 := base64.RawStdEncoding
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		p.Memory,
		p.Iterations,
		p.Parallelism,
		b64.EncodeToString(salt),
		b64.EncodeToString(key),
	), nil
}

// Verify reports whether plaintext matches secret. Malformed secrets never
// match; Verify does not panic or return errors.
func (h *Hasher) Verify(plaintext, secret string) bool {
	if strings.HasPrefix(secret, "$argon2id$") {
		params, salt, key, err := parseArgon2idHash(secret)
		if err != nil {
			return false
		}
		other := argon2.IDKey([]byte(plaintext), salt, params.Iterations, params.Memory, params.Parallelism, params.KeyLen)
		return subtle.ConstantTimeCompare(key, other) == 1
	}

	salt, digest, ok := parseLegacyHash(secret)
	if !ok {
		return false
	}
	other := pbkdf2.Key([]byte(plaintext), salt, legacyPBKDF2Iterations, len(digest), sha512.New)
	return subtle.ConstantTimeCompare(digest, other) == 1
}

// NeedsUpgrade is true for secrets that are not argon2id with at least the
// hasher's current costs.
func (h *Hasher) NeedsUpgrade(secret string) bool {
	params, _, _, err := parseArgon2idHash(secret)
	if err != nil {
		return true
	}
	return params.Memory < h.params.Memory ||
		params.Iterations < h.params.Iterations ||
		params.KeyLen < h.params.KeyLen
}

func parseArgon2idHash(hash string) (Argon2Params, []byte, []byte, error) {
	parts := strings.Split(hash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return Argon2Params{}, nil, nil, errors.New("invalid argon2id hash format")
	}
	if parts[2] != "v="+strconv.Itoa(argon2.Version) {
		return Argon2Params{}, nil, nil, errors.New("unsupported argon2 version")
	}

	var p Argon2Params
	for _, kv := range strings.Split(parts[3], ",") {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return Argon2Params{}, nil, nil, errors.New("invalid argon2 params")
		}
		switch k {
		case "m":
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil {
				return Argon2Params{}, nil, nil, errors.New("invalid argon2 memory param")
			}
			p.Memory = uint32(n)
		case "t":
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil {
				return Argon2Params{}, nil, nil, errors.New("invalid argon2 time param")
			}
			p.Iterations = uint32(n)
		case "p":
			n, err := strconv.ParseUint(v, 10, 8)
			if err != nil {
				return Argon2Params{}, nil, nil, errors.New("invalid argon2 parallelism param")
			}
			p.Parallelism = uint8(n)
		default:
			return Argon2Params{}, nil, nil, errors.New("unknown argon2 param")
		}
	}
	if p.Iterations == 0 || p.Parallelism == 0 || p.Memory < 8*uint32(p.Parallelism) ||
		p.Memory > maxArgon2Memory || p.Iterations > maxArgon2Iterations {
		return Argon2Params{}, nil, nil, errors.New("invalid argon2 cost params")
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return Argon2Params{}, nil, nil, errors.New("invalid argon2 salt")
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return Argon2Params{}, nil, nil, errors.New("invalid argon2 key")
	}
	p.SaltLen = uint32(len(salt))
	p.KeyLen = uint32(len(key))
	if p.SaltLen == 0 || p.KeyLen == 0 {
		return Argon2Params{}, nil, nil, errors.New("invalid argon2 salt/key")
	}

	return p, salt, key, nil
}

func parseLegacyHash(secret string) ([]byte, []byte, bool) {
	saltHex, digestHex, ok := strings.Cut(secret, ":")
	if !ok || saltHex == "" || digestHex == "" {
		return nil, nil, false
	}
	salt, err := hex.DecodeString(saltHex)
	if err != nil || len(salt) < legacyMinSaltLen {
		return nil, nil, false
	}
	digest, err := hex.DecodeString(digestHex)
	if err != nil || len(digest) != legacyPBKDF2KeyLen {
		return nil, nil, false
	}
	return salt, digest, true
}
