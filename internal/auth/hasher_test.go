package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestNewHasher_ClampsCost(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, NewHasher(0).Cost)
	assert.Equal(t, bcrypt.MinCost, NewHasher(1).Cost)
	assert.Equal(t, bcrypt.MaxCost, NewHasher(99).Cost)
}

func TestHasher_HashAndCompare(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	hash, err := h.Hash("pw")
	require.NoError(t, err)

	assert.NoError(t, h.Compare(hash, "pw"))
	assert.ErrorIs(t, h.Compare(hash, "pw2"), ErrPasswordMismatch)
}

func TestHasher_ComparePlaintextLegacy(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	assert.NoError(t, h.Compare("legacy", "legacy"))
	assert.ErrorIs(t, h.Compare("legacy", "legac"), ErrPasswordMismatch)
}
