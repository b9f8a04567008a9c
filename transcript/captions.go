package transcript

import (
	"context"
	"errors"

	"ytpipeline/youtube"
)

// CaptionFetcher fetches platform captions for a video in a language.
type CaptionFetcher interface {
	FetchCaptions(ctx context.Context, videoID, lang string) ([]youtube.Caption, error)
}

// CaptionsStrategy is the primary strategy: the platform caption API.
type CaptionsStrategy struct {
	fetcher CaptionFetcher
	lang    string
}

// NewCaptionsStrategy creates the primary strategy.
func NewCaptionsStrategy(fetcher CaptionFetcher, lang string) *CaptionsStrategy {
	return &CaptionsStrategy{fetcher: fetcher, lang: lang}
}

func (s *CaptionsStrategy) Name() string { return StrategyYouTube }

// Attempt treats a missing caption track as an empty result.
func (s *CaptionsStrategy) Attempt(ctx context.Context, req Request) ([]Segment, error) {
	captions, err := s.fetcher.FetchCaptions(ctx, req.VideoID, s.lang)
	if err != nil {
		if errors.Is(err, youtube.ErrNoCaptions) {
			return nil, nil
		}
		return nil, err
	}
	return fromCaptions(captions), nil
}
