package validate

import (
	"strings"
	"testing"

	"github.com/inkpost/apiserver/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmail(t *testing.T) {
	valid := []string{
		"a@b.com",
		"john.doe@example.co.uk",
		"first-last@mail-server.io",
		"user_1@domain.travel",
	}
	for _, value := range valid {
		assert.NoError(t, Email(value), value)
	}

	invalid := []string{
		"not-an-email",
		"a@b",
		"a@b.c",
		"@example.com",
		"a..b@example.com",
		"a b@example.com",
	}
	for _, value := range invalid {
		err := Email(value)
		require.Error(t, err, value)
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
		assert.Equal(t, "Email is incorrect.", apperr.Message(err))
	}
}

func TestEmailEmpty(t *testing.T) {
	err := Email("")
	require.Error(t, err)
	assert.Equal(t, "Email not specified.", apperr.Message(err))
}

func TestPassword(t *testing.T) {
	assert.NoError(t, Password("Abc123!@"))
	assert.NoError(t, Password("Longer_Passw0rd^"))
	assert.NoError(t, Password("Abc123!@"+strings.Repeat("x", 64)))

	weak := map[string]string{
		"too short":      "Ab1!",
		"three letters":  "abc",
		"no digit":       "Abcdefg!",
		"no upper":       "abc123!@",
		"no lower":       "ABC123!@",
		"no symbol":      "Abc12345",
		"foreign symbol": "Abc123!(",
		"whitespace":     "Abc 123!@",
		"over 72 bytes":  "Abc123!@" + strings.Repeat("x", 65),
	}
	for name, value := range weak {
		t.Run(name, func(t *testing.T) {
			err := Password(value)
			require.Error(t, err)
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
			assert.Equal(t, "Password too weak.", apperr.Message(err))
		})
	}
}

func TestPasswordEmpty(t *testing.T) {
	err := Password("")
	require.Error(t, err)
	assert.Equal(t, "Password not specified.", apperr.Message(err))
}
