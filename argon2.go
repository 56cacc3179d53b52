package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/crypto/argon2"
)

// Argon2Params tunes the argon2id hasher.
type Argon2Params struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2Params returns the parameters used when none are configured.
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		Memory:      64 * 1024,
		Time:        2,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Argon2Hasher implements PasswordHasher with argon2id, encoding hashes in
// the PHC string format. Stored hashes whose parameters drift from the
// configured ones verify with VerifySuccessNeedsRehash.
type Argon2Hasher struct {
	params Argon2Params
}

// NewArgon2Hasher validates the parameters and returns a hasher.
func NewArgon2Hasher(params Argon2Params) (*Argon2Hasher, error) {
	if params.Memory < 8*1024 {
		return nil, goerrors.New("argon2 memory must be at least 8 MiB", goerrors.CategoryBadInput)
	}
	if params.Time < 1 || params.Parallelism < 1 {
		return nil, goerrors.New("argon2 time and parallelism must be at least 1", goerrors.CategoryBadInput)
	}
	if params.SaltLength < 16 || params.KeyLength < 16 {
		return nil, goerrors.New("argon2 salt and key must be at least 16 bytes", goerrors.CategoryBadInput)
	}
	return &Argon2Hasher{params: params}, nil
}

// Hash will generate an argon2id PHC hash string.
func (h *Argon2Hasher) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", goerrors.New("password must not be empty", goerrors.CategoryValidation)
	}

	salt := make([]byte, h.params.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate salt")
	}

	key := argon2.IDKey(
		[]byte(plaintext),
		salt,
		h.params.Time,
		h.params.Memory,
		h.params.Parallelism,
		h.params.KeyLength,
	)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.Memory,
		h.params.Time,
		h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify compares plaintext against a PHC-encoded hash.
func (h *Argon2Hasher) Verify(hash, plaintext string) VerifyResult {
	parsed, err := parseArgon2Hash(hash)
	if err != nil {
		return VerifyFailed
	}

	computed := argon2.IDKey(
		[]byte(plaintext),
		parsed.salt,
		parsed.time,
		parsed.memory,
		parsed.parallelism,
		uint32(len(parsed.key)),
	)

	if subtle.ConstantTimeCompare(parsed.key, computed) != 1 {
		return VerifyFailed
	}

	if parsed.memory != h.params.Memory ||
		parsed.time != h.params.Time ||
		parsed.parallelism != h.params.Parallelism ||
		uint32(len(parsed.key)) != h.params.KeyLength ||
		uint32(len(parsed.salt)) != h.params.SaltLength {
		return VerifySuccessNeedsRehash
	}
	return VerifySuccess
}

var _ PasswordHasher = (*Argon2Hasher)(nil)

type parsedArgon2 struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

func parseArgon2Hash(encoded string) (parsedArgon2, error) {
	var parsed parsedArgon2

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return parsed, goerrors.New("not an argon2id hash", goerrors.CategoryValidation)
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return parsed, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid argon2 version segment")
	}
	if version != argon2.Version {
		return parsed, goerrors.New("unsupported argon2 version", goerrors.CategoryValidation)
	}

	var parallelism uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &parsed.memory, &parsed.time, &parallelism); err != nil {
		return parsed, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid argon2 parameter segment")
	}
	if parallelism == 0 || parallelism > 255 {
		return parsed, goerrors.New("argon2 parallelism out of range", goerrors.CategoryValidation)
	}
	parsed.parallelism = uint8(parallelism)

	var err error
	if parsed.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return parsed, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid argon2 salt encoding")
	}
	if parsed.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return parsed, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid argon2 key encoding")
	}
	if len(parsed.salt) == 0 || len(parsed.key) == 0 {
		return parsed, goerrors.New("argon2 salt and key must not be empty", goerrors.CategoryValidation)
	}

	return parsed, nil
}
