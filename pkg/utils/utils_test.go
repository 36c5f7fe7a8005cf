package utils

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAttachmentType(t *testing.T) {
	cases := map[string]string{
		"https://bucket.s3.amazonaws.com/a/b/photo.JPG":   "image",
		"https://bucket.s3.amazonaws.com/voice.webm?x=1":  "audio",
		"https://bucket.s3.amazonaws.com/clip.mov":        "video",
		"https://bucket.s3.amazonaws.com/report.pdf":      "file",
		"":                                                "file",
	}
	for in, want := range cases {
		assert.Equal(t, want, AttachmentType(in), in)
	}
}

func TestThemeDisplayName(t *testing.T) {
	assert.Equal(t, "#28a745", ThemeDisplayName("#28a745"))
	assert.Equal(t, "default", ThemeDisplayName("#123456"))
	assert.True(t, IsKnownTheme(DefaultTheme))
}

func TestSequencerIsStrictlyIncreasing(t *testing.T) {
	fixed := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	seq := NewSequencer(func() time.Time { return fixed })

	var out []string
	for i := 0; i < 5; i++ {
		out = append(out, seq.NextString())
	}
	assert.True(t, sort.StringsAreSorted(out))
	for i := 1; i < len(out); i++ {
		assert.NotEqual(t, out[i-1], out[i])
	}
	assert.Equal(t, "2025-05-01T10:00:00.000000000Z", out[0])
	assert.Equal(t, "2025-05-01T10:00:00.000000001Z", out[1])
}

func TestSequencerFollowsClockBackwards(t *testing.T) {
	times := []time.Time{
		time.Date(2025, 5, 1, 10, 0, 1, 0, time.UTC),
		time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC),
	}
	i := 0
	seq := NewSequencer(func() time.Time { t := times[i]; i++; return t })

	first := seq.Next()
	second := seq.Next()
	assert.True(t, second.After(first))
}
