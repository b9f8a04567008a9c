package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

// Defaults substituted for fields the Data API leaves empty.
const (
	UnknownTitle   = "Unknown Title"
	UnknownChannel = "Unknown Channel"
)

// APIClient reads video metadata and comment threads from the YouTube Data
// API v3. Calls are made once; retry policy belongs to the caller.
type APIClient struct {
	service *youtube.Service
	log     logrus.FieldLogger
}

// NewAPIClient creates a Data API client authenticated with apiKey. Extra
// options are appended, which lets tests point the client at a fake endpoint.
func NewAPIClient(ctx context.Context, apiKey string, log logrus.FieldLogger, opts ...option.ClientOption) (*APIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key required")
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	service, err := youtube.NewService(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}

	return &APIClient{service: service, log: log.WithField("component", "youtube-api")}, nil
}

// FetchMetadata resolves videoIDOrURL and fetches snippet, statistics and
// content details in a single videos.list call.
func (a *APIClient) FetchMetadata(ctx context.Context, videoIDOrURL string) (*VideoMetadata, error) {
	videoID, ok := ExtractVideoID(videoIDOrURL)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidInput, videoIDOrURL)
	}

	resp, err := a.service.Videos.List([]string{"snippet", "statistics", "contentDetails"}).
		Id(videoID).
		Context(ctx).
		Do()
	if err != nil {
		return nil, &UpstreamError{Op: "videos.list", VideoID: videoID, Err: err}
	}
	if len(resp.Items) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrVideoNotFound, videoID)
	}

	meta := mapVideo(videoID, resp.Items[0])
	a.log.WithFields(logrus.Fields{"video_id": videoID, "duration": meta.DurationDisplay}).Debug("metadata fetched")
	return meta, nil
}

// mapVideo converts an API video resource, substituting defaults for absent fields.
func mapVideo(videoID string, v *youtube.Video) *VideoMetadata {
	meta := &VideoMetadata{
		VideoID:         videoID,
		Title:           UnknownTitle,
		ChannelName:     UnknownChannel,
		DurationDisplay: UnknownDuration,
		Tags:            []string{},
		Thumbnails:      map[string]Thumbnail{},
	}

	if s := v.Snippet; s != nil {
		if s.Title != "" {
			meta.Title = s.Title
		}
		if s.ChannelTitle != "" {
			meta.ChannelName = s.ChannelTitle
		}
		meta.Description = s.Description
		meta.PublishedAt = s.PublishedAt
		meta.CategoryID = s.CategoryId
		if len(s.Tags) > 0 {
			meta.Tags = append(meta.Tags, s.Tags...)
		}
		if t := s.Thumbnails; t != nil {
			for name, th := range map[string]*youtube.Thumbnail{
				"default":  t.Default,
				"medium":   t.Medium,
				"high":     t.High,
				"standard": t.Standard,
				"maxres":   t.Maxres,
			} {
				if th != nil && th.Url != "" {
					meta.Thumbnails[name] = Thumbnail{URL: th.Url, Width: th.Width, Height: th.Height}
				}
			}
		}
	}

	if st := v.Statistics; st != nil {
		meta.ViewCount = int64(st.ViewCount)
		meta.LikeCount = int64(st.LikeCount)
	}

	if cd := v.ContentDetails; cd != nil {
		meta.DurationDisplay = ParseDuration(cd.Duration)
		if secs, ok := DurationSeconds(cd.Duration); ok {
			meta.DurationSeconds = secs
		}
	}

	return meta
}

// FetchComments returns up to max top-level comments ordered by relevance,
// as plain text. Videos with comments disabled yield an empty slice.
func (a *APIClient) FetchComments(ctx context.Context, videoID string, max int64) ([]string, error) {
	if max <= 0 || max > 100 {
		max = 100
	}

	resp, err := a.service.CommentThreads.List([]string{"snippet"}).
		VideoId(videoID).
		Order("relevance").
		TextFormat("plainText").
		MaxResults(max).
		Context(ctx).
		Do()
	if err != nil {
		if commentsDisabled(err) {
			a.log.WithField("video_id", videoID).Info("comments disabled")
			return []string{}, nil
		}
		return nil, &UpstreamError{Op: "commentThreads.list", VideoID: videoID, Err: err}
	}

	comments := make([]string, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.Snippet == nil || item.Snippet.TopLevelComment == nil || item.Snippet.TopLevelComment.Snippet == nil {
			continue
		}
		comments = append(comments, item.Snippet.TopLevelComment.Snippet.TextDisplay)
	}
	return comments, nil
}

// commentsDisabled reports the 403 the API returns for videos with comments turned off.
func commentsDisabled(err error) bool {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) || apiErr.Code != http.StatusForbidden {
		return false
	}
	for _, e := range apiErr.Errors {
		if e.Reason == "commentsDisabled" {
			return true
		}
	}
	return false
}
