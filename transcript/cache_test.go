package transcript

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ytpipeline/internal/logging"
)

func TestTieredCache_MemoryOnly(t *testing.T) {
	c, err := NewTieredCache(context.Background(), "", time.Minute, logging.Discard())
	require.NoError(t, err)
	defer c.Close()

	_, ok, err := c.Get(context.Background(), "dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.False(t, ok)

	want := &Transcript{Segments: []Segment{{Text: "hi", StartMs: 0, DurationMs: 1000}}, Strategy: StrategyYouTube}
	require.NoError(t, c.Set(context.Background(), "dQw4w9WgXcQ", want))

	got, ok, err := c.Get(context.Background(), "dQw4w9WgXcQ")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)

	// The cached value is a copy.
	got.Segments[0].Text = "changed"
	again, _, _ := c.Get(context.Background(), "dQw4w9WgXcQ")
	assert.Equal(t, "hi", again.Segments[0].Text)
}

func TestTieredCache_Expiry(t *testing.T) {
	c, err := NewTieredCache(context.Background(), "", time.Minute, nil)
	require.NoError(t, err)

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(context.Background(), "dQw4w9WgXcQ", &Transcript{Segments: []Segment{{Text: "x"}}}))
	now = now.Add(59 * time.Second)
	_, ok, _ := c.Get(context.Background(), "dQw4w9WgXcQ")
	assert.True(t, ok)

	now = now.Add(2 * time.Second)
	_, ok, _ = c.Get(context.Background(), "dQw4w9WgXcQ")
	assert.False(t, ok)
}

func TestTieredCache_SetNil(t *testing.T) {
	c, err := NewTieredCache(context.Background(), "", 0, nil)
	require.NoError(t, err)
	assert.NoError(t, c.Set(context.Background(), "dQw4w9WgXcQ", nil))
	_, ok, _ := c.Get(context.Background(), "dQw4w9WgXcQ")
	assert.False(t, ok)
}

func TestNewTieredCache_BadRedis(t *testing.T) {
	_, err := NewTieredCache(context.Background(), "not-a-url://", time.Minute, logging.Discard())
	assert.Error(t, err)

	_, err = NewTieredCache(context.Background(), "redis://127.0.0.1:1/0", time.Minute, logging.Discard())
	assert.Error(t, err)
}
