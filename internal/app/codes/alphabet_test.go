package codes

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlphabetExcludesConfusables(t *testing.T) {
	assert.NotContains(t, Alphabet, "o")
	assert.NotContains(t, Alphabet, "l")
	assert.Len(t, Alphabet, 34)
}

func TestRandomClassic(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		code, err := RandomClassic()
		require.NoError(t, err)
		require.Len(t, code, ClassicLength)
		for _, r := range code {
			require.True(t, strings.ContainsRune(Alphabet, r), "unexpected character %q in %q", r, code)
		}
		seen[code] = struct{}{}
	}
	// With a billion-scale space, a thousand draws colliding would mean a
	// broken source.
	assert.Len(t, seen, 1000)
}

func TestRandomDigits(t *testing.T) {
	for length := DigitMinLength; length <= DigitMaxLength; length++ {
		code, err := RandomDigits(length)
		require.NoError(t, err)
		require.Len(t, code, length)
		for _, r := range code {
			require.True(t, r >= '0' && r <= '9', "unexpected character %q in %q", r, code)
		}
	}
}

func TestNewQRID(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		id, err := NewQRID()
		require.NoError(t, err)
		assert.Len(t, id, 10)
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, 100)
}
