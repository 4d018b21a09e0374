package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gpuforge/gpuforge-backend/pkg/config"
)

func fastParams() config.PasswordConfig {
	return config.PasswordConfig{
		ArgonMemoryKB:    8,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     8,
		ArgonKeyLen:      16,
	}
}

func TestHashAndVerify(t *testing.T) {
	hash, err := HashPassword("hunter2!", fastParams())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$"))

	ok, err := VerifyPassword("hunter2!", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword("wrong", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashRejectsEmptyPassword(t *testing.T) {
	_, err := HashPassword("", fastParams())
	assert.Error(t, err)
}

func TestVerifyRejectsMalformedHash(t *testing.T) {
	_, err := VerifyPassword("x", "not-a-hash")
	assert.ErrorIs(t, err, ErrInvalidHash)

	_, err = VerifyPassword("x", "$argon2id$v=19$m=8,t=1$short")
	assert.ErrorIs(t, err, ErrInvalidHash)
}

func TestHashesAreSalted(t *testing.T) {
	first, err := HashPassword("same-password", fastParams())
	require.NoError(t, err)
	second, err := HashPassword("same-password", fastParams())
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}
