package cryptox_test

import (
	"strings"
	"testing"

	"github.com/aussiebroadwan/gatekeeper/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerifyPassword(t *testing.T) {
	t.Parallel()

	hash, err := cryptox.HashPassword("correct horse battery staple")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(hash, "$argon2id$v=19$"))

	require.NoError(t, cryptox.VerifyPassword("correct horse battery staple", hash))
	require.ErrorIs(t, cryptox.VerifyPassword("wrong password", hash), cryptox.ErrPasswordMismatch)
}

func TestHashPasswordUniqueSalts(t *testing.T) {
	t.Parallel()

	a, err := cryptox.HashPassword("same password")
	require.NoError(t, err)
	b, err := cryptox.HashPassword("same password")
	require.NoError(t, err)

	require.NotEqual(t, a, b)
	require.NoError(t, cryptox.VerifyPassword("same password", a))
	require.NoError(t, cryptox.VerifyPassword("same password", b))
}

func TestVerifyPasswordMalformedHash(t *testing.T) {
	t.Parallel()

	for name, hash := range map[string]string{
		"empty":         "",
		"not argon2id":  "$bcrypt$v=19$m=65536,t=3,p=2$c2FsdA$aGFzaA",
		"wrong version": "$argon2id$v=18$m=65536,t=3,p=2$c2FsdA$aGFzaA",
		"bad base64":    "$argon2id$v=19$m=65536,t=3,p=2$!!!$aGFzaA",
	} {
		t.Run(name, func(t *testing.T) {
			require.Error(t, cryptox.VerifyPassword("anything", hash))
		})
	}
}
