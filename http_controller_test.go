package auth_test

import (
	"testing"

	"github.com/castellan/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginRequestValidate(t *testing.T) {
	t.Run("accepts a well formed payload", func(t *testing.T) {
		payload := auth.LoginRequest{
			Email:    "test@example.com",
			Password: "secret-password",
		}
		assert.NoError(t, payload.Validate())
	})

	t.Run("rejects missing fields and bad emails", func(t *testing.T) {
		assert.Error(t, auth.LoginRequest{}.Validate())
		assert.Error(t, auth.LoginRequest{Email: "not-an-email", Password: "secret"}.Validate())
		assert.Error(t, auth.LoginRequest{Email: "test@example.com"}.Validate())
	})
}

func TestPasswordResetVerifyPayloadValidate(t *testing.T) {
	t.Run("requires matching passwords", func(t *testing.T) {
		payload := auth.PasswordResetVerifyPayload{
			Password:        "new-password",
			ConfirmPassword: "new-password",
		}
		require.NoError(t, payload.Validate())

		payload.ConfirmPassword = "different-pass"
		assert.Error(t, payload.Validate())
	})
}

func TestFormatValidationErrorToMap(t *testing.T) {
	t.Run("flattens field errors", func(t *testing.T) {
		err := auth.LoginRequest{Email: "not-an-email"}.Validate()
		require.Error(t, err)

		fields := auth.FormatValidationErrorToMap(err)
		assert.Contains(t, fields, "email")
		assert.Contains(t, fields, "password")
	})

	t.Run("falls back for non validation errors", func(t *testing.T) {
		fields := auth.FormatValidationErrorToMap(assert.AnError)
		assert.Equal(t, map[string]string{"error": assert.AnError.Error()}, fields)
	})

	t.Run("empty for nil", func(t *testing.T) {
		assert.Empty(t, auth.FormatValidationErrorToMap(nil))
	})
}
