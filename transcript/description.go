package transcript

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"ytpipeline/youtube"
)

// Description mining parameters.
const (
	DescriptionChunkMs       = 3000
	minDescriptionLength     = 50
	minDescriptionChunkChars = 20
)

var (
	descURLRegex       = regexp.MustCompile(`https?://\S+`)
	descTimestampRegex = regexp.MustCompile(`\b\d{1,2}:\d{2}(?::\d{2})?\b`)
	sentenceSplitRegex = regexp.MustCompile(`[.!?]+`)
)

// errDescriptionTooShort marks a description with too little prose left.
var errDescriptionTooShort = errors.New("description too short after cleaning")

// DescriptionStrategy turns the video description into synthetic segments.
type DescriptionStrategy struct {
	metadata youtube.MetadataFetcher
}

// NewDescriptionStrategy creates the strategy. metadata is used only when a
// request carries no metadata.
func NewDescriptionStrategy(metadata youtube.MetadataFetcher) *DescriptionStrategy {
	return &DescriptionStrategy{metadata: metadata}
}

func (s *DescriptionStrategy) Name() string { return StrategyDescription }

func (s *DescriptionStrategy) Attempt(ctx context.Context, req Request) ([]Segment, error) {
	meta, err := requestMetadata(ctx, req, s.metadata)
	if err != nil {
		return nil, err
	}
	return DescriptionSegments(meta.Description)
}

// DescriptionSegments strips URLs and timestamps from description, splits
// the rest into sentence-like chunks of at least 20 characters and lays them
// out 3s apart starting at 0.
func DescriptionSegments(description string) ([]Segment, error) {
	cleaned := cleanDescription(description)
	if len([]rune(cleaned)) < minDescriptionLength {
		return nil, errDescriptionTooShort
	}

	var segs []Segment
	for _, chunk := range sentenceSplitRegex.Split(cleaned, -1) {
		chunk = strings.TrimSpace(chunk)
		if len([]rune(chunk)) < minDescriptionChunkChars {
			continue
		}
		segs = append(segs, Segment{
			Text:       chunk,
			StartMs:    int64(len(segs)) * DescriptionChunkMs,
			DurationMs: DescriptionChunkMs,
		})
	}
	return segs, nil
}

func cleanDescription(s string) string {
	s = descURLRegex.ReplaceAllString(s, " ")
	s = descTimestampRegex.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

// requestMetadata returns req.Metadata, the caller's loader result, or
// fetches it.
func requestMetadata(ctx context.Context, req Request, fetcher youtube.MetadataFetcher) (*youtube.VideoMetadata, error) {
	if req.Metadata != nil {
		return req.Metadata, nil
	}
	if req.LoadMetadata != nil {
		return req.LoadMetadata(ctx)
	}
	if fetcher == nil {
		return nil, errors.New("no metadata available")
	}
	return fetcher.FetchMetadata(ctx, req.VideoID)
}
