package auth

import (
	"crypto/rand"
	"encoding/base64"

	goerrors "github.com/goliatone/go-errors"
)

// SecurityStampBytes is the entropy used for security stamps.
const SecurityStampBytes = 32

// ResetTokenBytes is the entropy used for password reset tokens.
const ResetTokenBytes = 32

type cryptoRandomTokens struct{}

// CryptoRandomTokens returns a RandomTokenGenerator backed by crypto/rand,
// rendering tokens as compact base64url with no padding.
func CryptoRandomTokens() RandomTokenGenerator { return cryptoRandomTokens{} }

func (cryptoRandomTokens) Generate(byteCount int) (string, error) {
	if byteCount <= 0 {
		return "", goerrors.New("token byte count must be positive", goerrors.CategoryBadInput)
	}

	raw := make([]byte, byteCount)
	if _, err := rand.Read(raw); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read random bytes")
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
