package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"io"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"
)

// AccessTokenPayload is the content of a bearer access token. It is never
// persisted; its only durable form is the encoded token held by the client.
type AccessTokenPayload struct {
	UserID        uuid.UUID
	SecurityStamp string
	IssuedAt      time.Time
}

// tokenLayoutV1 is the fixed binary layout:
// [version:1][userID:16][stampLen:2 BE][stamp][issuedAt:8 BE unix seconds]
const (
	tokenLayoutV1    = 0x01
	tokenKeySize     = 32
	maxStampLength   = 1 << 16
	tokenHeaderBytes = 1 + 16 + 2
)

// codecKeyInfo scopes the HKDF subkey to this codec so the same master key
// material can never decrypt tokens minted for another purpose.
var codecKeyInfo = []byte("castellan/auth:access-token:v1")

// TokenCodec serializes access-token payloads, encrypts them with AES-GCM
// under a purpose-scoped subkey, and renders them as padding-free base64url
// text. Encode/Decode are pure transforms; no network or storage access.
type TokenCodec struct {
	aead cipher.AEAD
}

// NewTokenCodec derives the codec subkey from masterKey and prepares the
// AEAD. The master key must carry at least 16 bytes of material.
func NewTokenCodec(masterKey []byte) (*TokenCodec, error) {
	if len(masterKey) < 16 {
		return nil, goerrors.New("token master key must be at least 16 bytes", goerrors.CategoryBadInput)
	}

	subkey := make([]byte, tokenKeySize)
	kdf := hkdf.New(sha256.New, masterKey, nil, codecKeyInfo)
	if _, err := io.ReadFull(kdf, subkey); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to derive token subkey")
	}

	block, err := aes.NewCipher(subkey)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create token cipher")
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create token AEAD")
	}

	return &TokenCodec{aead: aead}, nil
}

// Encode serializes and encrypts the payload into URL-safe token text.
func (c *TokenCodec) Encode(payload AccessTokenPayload) (string, error) {
	plaintext, err := marshalTokenPayload(payload)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate token nonce")
	}

	sealed := c.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decode reverses Encode. It fails with a format error when the input is
// not valid base64url text and with a crypto error when authenticated
// decryption fails. The two are logged and monitored differently.
func (c *TokenCodec) Decode(token string) (AccessTokenPayload, error) {
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return AccessTokenPayload{}, goerrors.Wrap(err, ErrTokenFormat.Category, ErrTokenFormat.Message).
			WithTextCode(TextCodeTokenFormat)
	}

	if len(data) < c.aead.NonceSize() {
		return AccessTokenPayload{}, ErrTokenCrypto
	}

	nonce := data[:c.aead.NonceSize()]
	ciphertext := data[c.aead.NonceSize():]

	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return AccessTokenPayload{}, goerrors.Wrap(err, ErrTokenCrypto.Category, ErrTokenCrypto.Message).
			WithTextCode(TextCodeTokenCrypto)
	}

	return unmarshalTokenPayload(plaintext)
}

func marshalTokenPayload(payload AccessTokenPayload) ([]byte, error) {
	stamp := []byte(payload.SecurityStamp)
	if len(stamp) >= maxStampLength {
		return nil, goerrors.New("security stamp exceeds layout limit", goerrors.CategoryBadInput)
	}

	buf := make([]byte, 0, tokenHeaderBytes+len(stamp)+8)
	buf = append(buf, tokenLayoutV1)
	buf = append(buf, payload.UserID[:]...)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(stamp)))
	buf = append(buf, stamp...)
	buf = binary.BigEndian.AppendUint64(buf, uint64(payload.IssuedAt.Unix()))
	return buf, nil
}

func unmarshalTokenPayload(data []byte) (AccessTokenPayload, error) {
	// The bytes authenticated; any shape mismatch here means a layout the
	// codec does not speak, reported as a format failure.
	if len(data) < tokenHeaderBytes {
		return AccessTokenPayload{}, ErrTokenFormat
	}
	if data[0] != tokenLayoutV1 {
		return AccessTokenPayload{}, goerrors.New("unknown token layout version", ErrTokenFormat.Category).
			WithTextCode(TextCodeTokenFormat)
	}

	var payload AccessTokenPayload
	copy(payload.UserID[:], data[1:17])

	stampLen := int(binary.BigEndian.Uint16(data[17:19]))
	rest := data[tokenHeaderBytes:]
	if len(rest) != stampLen+8 {
		return AccessTokenPayload{}, ErrTokenFormat
	}

	payload.SecurityStamp = string(rest[:stampLen])
	payload.IssuedAt = time.Unix(int64(binary.BigEndian.Uint64(rest[stampLen:])), 0).UTC()
	return payload, nil
}
