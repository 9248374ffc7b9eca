package util

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashUserKey(t *testing.T) {
	got := HashUserKey("guest:device-1")
	assert.Equal(t, got, HashUserKey("guest:device-1"))
	assert.NotEqual(t, got, HashUserKey("guest:device-2"))
	assert.Len(t, got, 64)
	assert.Equal(t, -1, strings.IndexFunc(got, func(r rune) bool {
		return !strings.ContainsRune("0123456789abcdef", r)
	}))
}

func TestShortHash(t *testing.T) {
	assert.Len(t, ShortHash("vaccines autism", 12), 24)
	assert.Equal(t, HashUserKey("x"), ShortHash("x", 0))
	assert.True(t, strings.HasPrefix(HashUserKey("x"), ShortHash("x", 4)))
}

func TestSanitizeFileName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"shot.png", "shot.png"},
		{"  shot.png ", "shot.png"},
		{"dir/shot.png", "dir_shot.png"},
		{`C:\shots\shot.png`, "C:_shots_shot.png"},
		{"shot\x00\n.png", "shot.png"},
	}
	for _, tc := range cases {
		got, err := SanitizeFileName(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got)
	}

	for _, bad := range []string{"../etc/passwd", "", "   ", "\x01"} {
		_, err := SanitizeFileName(bad)
		assert.Error(t, err, "%q", bad)
	}
}

func TestSanitizeFileNameKeepsExtensionWhenShortening(t *testing.T) {
	got, err := SanitizeFileName(strings.Repeat("a", 300) + ".heic")
	require.NoError(t, err)
	assert.Equal(t, maxFileNameRunes, len([]rune(got)))
	assert.True(t, strings.HasSuffix(got, ".heic"))
}
