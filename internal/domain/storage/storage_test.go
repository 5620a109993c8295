package storage

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewKeyKeepsFilename(t *testing.T) {
	key := NewKey("family-image-my photo.png")

	prefix, name, ok := strings.Cut(key, "-family")
	require.True(t, ok)
	_, err := uuid.Parse(prefix)
	require.NoError(t, err)
	assert.Equal(t, "-image-my-photo.png", name)
}

func TestNewKeyStripsDirectories(t *testing.T) {
	key := NewKey("../../etc/passwd")

	assert.True(t, strings.HasSuffix(key, "-passwd"))
	assert.NotContains(t, key, "/")
}

func TestNewKeyWithoutName(t *testing.T) {
	key := NewKey("   ")

	_, err := uuid.Parse(key)
	assert.NoError(t, err)
}

func TestNewKeyIsUnique(t *testing.T) {
	assert.NotEqual(t, NewKey("a.png"), NewKey("a.png"))
}
