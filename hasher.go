package auth

import (
	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is the work factor used when none is configured.
const DefaultBcryptCost = 12

// BcryptHasher implements PasswordHasher with bcrypt. A stored hash whose
// cost is below the configured cost verifies successfully but reports
// VerifySuccessNeedsRehash, which drives the opportunistic upgrade in
// PasswordFlow.Authenticate.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher will create a hasher with the given cost, clamped to the
// bcrypt-supported range.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost {
		cost = DefaultBcryptCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &BcryptHasher{cost: cost}
}

// Hash will generate a password hash
func (h *BcryptHasher) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", goerrors.New("password must not be empty", goerrors.CategoryValidation)
	}

	out, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}
	return string(out), nil
}

// Verify compares plaintext against the stored hash.
func (h *BcryptHasher) Verify(hash, plaintext string) VerifyResult {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)); err != nil {
		return VerifyFailed
	}

	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil || cost < h.cost {
		return VerifySuccessNeedsRehash
	}
	return VerifySuccess
}

var _ PasswordHasher = (*BcryptHasher)(nil)
