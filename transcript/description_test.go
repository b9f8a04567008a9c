package transcript

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ytpipeline/youtube"
)

func TestDescriptionSegments(t *testing.T) {
	desc := `Welcome to the channel! Today we build a small web server in Go.
Chapters:
0:00 Intro
1:23:45 Wrap up
Source code: https://github.com/example/repo?tab=readme
Short one. This sentence is long enough to keep!`

	segs, err := DescriptionSegments(desc)
	require.NoError(t, err)

	var texts []string
	for i, s := range segs {
		texts = append(texts, s.Text)
		assert.Equal(t, int64(i)*DescriptionChunkMs, s.StartMs)
		assert.Equal(t, int64(DescriptionChunkMs), s.DurationMs)
		assert.NotContains(t, s.Text, "https://")
		assert.GreaterOrEqual(t, len(s.Text), 20)
	}
	assert.Equal(t, []string{
		"Welcome to the channel",
		"Today we build a small web server in Go",
		"Chapters: Intro Wrap up Source code: Short one",
		"This sentence is long enough to keep",
	}, texts)
}

func TestDescriptionSegments_TooShort(t *testing.T) {
	tests := []string{
		"",
		"https://example.com/a https://example.com/b 0:00 1:00",
		"Only a short blurb here.",
	}
	for _, desc := range tests {
		_, err := DescriptionSegments(desc)
		assert.ErrorIs(t, err, errDescriptionTooShort, desc)
	}
}

func TestDescriptionStrategy_UsesFetcherWhenNoMetadata(t *testing.T) {
	fetcher := &fakeMetadata{meta: &youtube.VideoMetadata{
		VideoID:     "dQw4w9WgXcQ",
		Description: "This description is fetched because the request carried no metadata at all.",
	}}
	s := NewDescriptionStrategy(fetcher)

	segs, err := s.Attempt(context.Background(), Request{VideoID: "dQw4w9WgXcQ"})
	require.NoError(t, err)
	assert.Len(t, segs, 1)
	assert.Equal(t, 1, fetcher.calls)
}

type fakeMetadata struct {
	meta  *youtube.VideoMetadata
	err   error
	calls int
}

func (f *fakeMetadata) FetchMetadata(context.Context, string) (*youtube.VideoMetadata, error) {
	f.calls++
	return f.meta, f.err
}
