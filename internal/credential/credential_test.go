package credential

import (
	"encoding/hex"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTokenFormat(t *testing.T) {
	tok, err := NewToken()
	require.NoError(t, err)
	assert.Len(t, tok, 32)
	_, err = hex.DecodeString(tok)
	assert.NoError(t, err)
}

func TestNewTokenUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		tok, err := NewToken()
		require.NoError(t, err)
		assert.False(t, seen[tok], "token repeated")
		seen[tok] = true
	}
}

func TestNewPINRange(t *testing.T) {
	for i := 0; i < 500; i++ {
		pin, err := NewPIN()
		require.NoError(t, err)
		require.Len(t, pin, 4)
		n, err := strconv.Atoi(pin)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 1000)
		assert.LessOrEqual(t, n, 9999)
	}
}
