package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewAvatarURL(t *testing.T) {
	a := NewAvatarURL("bottts")
	b := NewAvatarURL("bottts")

	assert.True(t, strings.HasPrefix(a, "https://api.dicebear.com/7.x/bottts/svg?seed="))
	assert.NotEqual(t, a, b, "each call seeds a new avatar")
	assert.Contains(t, NewAvatarURL(""), "/identicon/")
}
