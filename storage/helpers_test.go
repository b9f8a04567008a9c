package storage

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"ytpipeline/youtube"
)

const testVideoID = "dQw4w9WgXcQ"

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func sampleMetadata(id string) *youtube.VideoMetadata {
	return &youtube.VideoMetadata{
		VideoID:         id,
		Title:           "Never Gonna Give You Up",
		Description:     "The official video.",
		ChannelName:     "Rick Astley",
		PublishedAt:     "2009-10-25T06:57:33Z",
		DurationDisplay: "3:33",
		DurationSeconds: 213,
		ViewCount:       1500000000,
		LikeCount:       16000000,
		Tags:            []string{"rick", "astley"},
		CategoryID:      "10",
		Thumbnails: map[string]youtube.Thumbnail{
			"default": {URL: "https://i.ytimg.com/vi/dQw4w9WgXcQ/default.jpg", Width: 120, Height: 90},
		},
	}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newTestStore(t *testing.T, opts ...Option) *MetadataStore {
	t.Helper()
	opts = append([]Option{
		WithLogger(quietLogger()),
		WithClock(fixedClock(time.Date(2024, 3, 1, 12, 30, 45, 123e6, time.UTC))),
	}, opts...)
	store, err := NewMetadataStore(t.TempDir(), opts...)
	require.NoError(t, err)
	return store
}

type stubView struct {
	rows map[string]*ViewRow
	err  error
}

func (v *stubView) Row(_ context.Context, videoID string) (*ViewRow, error) {
	if v.err != nil {
		return nil, v.err
	}
	return v.rows[videoID], nil
}

type stubRefetcher struct {
	mu    sync.Mutex
	meta  map[string]*youtube.VideoMetadata
	calls []string
}

func (f *stubRefetcher) FetchMetadata(_ context.Context, videoIDOrURL string) (*youtube.VideoMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, videoIDOrURL)
	id, ok := youtube.ExtractVideoID(videoIDOrURL)
	if !ok {
		return nil, youtube.ErrInvalidInput
	}
	m, ok := f.meta[id]
	if !ok {
		return nil, youtube.ErrVideoNotFound
	}
	return m.Clone(), nil
}

type recordingSink struct {
	mu    sync.Mutex
	names []string
	err   error
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Save(_ context.Context, _, name string, _ []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.names = append(s.names, name)
	return s.err
}

var errBoom = errors.New("boom")
