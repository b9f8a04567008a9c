package youtube

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// SharedFetcher collapses concurrent metadata fetches for the same video
// into a single upstream call. Results are not cached beyond the call.
type SharedFetcher struct {
	next  MetadataFetcher
	group singleflight.Group
}

// NewSharedFetcher wraps next.
func NewSharedFetcher(next MetadataFetcher) *SharedFetcher {
	return &SharedFetcher{next: next}
}

// FetchMetadata implements MetadataFetcher. Callers sharing a flight each
// receive their own copy of the metadata. The upstream call is detached from
// any single caller's cancellation; each caller still returns as soon as its
// own ctx is done.
func (s *SharedFetcher) FetchMetadata(ctx context.Context, videoIDOrURL string) (*VideoMetadata, error) {
	key := videoIDOrURL
	if id, ok := ExtractVideoID(videoIDOrURL); ok {
		key = id
	}

	flightCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (any, error) {
		return s.next.FetchMetadata(flightCtx, videoIDOrURL)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*VideoMetadata).Clone(), nil
	}
}

// Clone returns a deep copy of m.
func (m *VideoMetadata) Clone() *VideoMetadata {
	c := *m
	c.Tags = append([]string{}, m.Tags...)
	c.Thumbnails = make(map[string]Thumbnail, len(m.Thumbnails))
	for k, v := range m.Thumbnails {
		c.Thumbnails[k] = v
	}
	return &c
}
