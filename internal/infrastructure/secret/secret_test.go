package secret

import (
	"testing"

	"github.com/mcygoogle/demo-for-google-identity/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndCheck(t *testing.T) {
	hash, err := Hash("secret")
	require.NoError(t, err)
	assert.NotEqual(t, "secret", hash)
	assert.True(t, IsHashed(hash))

	assert.NoError(t, Check("secret", hash))
	assert.ErrorIs(t, Check("wrong", hash), domain.ErrInvalidClientSecret)
}

func TestCheck_MalformedHash(t *testing.T) {
	err := Check("secret", "not-a-hash")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrInvalidClientSecret)
}

func TestIsHashed(t *testing.T) {
	assert.False(t, IsHashed("secret"))
	assert.False(t, IsHashed("$2nothash"))
	assert.False(t, IsHashed(""))
}
