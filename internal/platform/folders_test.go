package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFolder(t *testing.T) {
	cases := map[string]string{
		"snes":    "snes",
		"sms":     "mastersystem",
		"md":      "megadrive",
		"psv":     "psvita",
		"mame":    "arcade",
		"tg-cd":   "tgcd",
		"unknown": "unknown",
	}
	for slug, want := range cases {
		assert.Equal(t, want, Folder(slug), slug)
	}
}

func TestHasMapping(t *testing.T) {
	assert.True(t, HasMapping("dc"))
	assert.False(t, HasMapping("pico8"))
	assert.Contains(t, Slugs(), "32x")
	assert.IsIncreasing(t, Slugs())
}
