package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// YtdlpMetadataFetcher builds VideoMetadata from `yt-dlp -J`. It serves
// deployments without a Data API key; view and like counts are whatever
// yt-dlp scrapes and the category ID is left empty.
type YtdlpMetadataFetcher struct {
	// Path is the yt-dlp executable. Empty means "yt-dlp" from PATH.
	Path string
	// Timeout bounds a single call. Zero means no limit beyond ctx.
	Timeout time.Duration

	log logrus.FieldLogger
}

// NewYtdlpMetadataFetcher creates a fetcher using the given executable.
func NewYtdlpMetadataFetcher(path string, timeout time.Duration, log logrus.FieldLogger) *YtdlpMetadataFetcher {
	if path == "" {
		path = "yt-dlp"
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &YtdlpMetadataFetcher{Path: path, Timeout: timeout, log: log.WithField("component", "yt-dlp")}
}

// ytdlpInfo is the subset of yt-dlp's info JSON that maps onto VideoMetadata.
type ytdlpInfo struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Channel     string   `json:"channel"`
	Uploader    string   `json:"uploader"`
	UploadDate  string   `json:"upload_date"`
	Duration    float64  `json:"duration"`
	ViewCount   int64    `json:"view_count"`
	LikeCount   int64    `json:"like_count"`
	Tags        []string `json:"tags"`
	Thumbnails  []struct {
		ID     string `json:"id"`
		URL    string `json:"url"`
		Width  int64  `json:"width"`
		Height int64  `json:"height"`
	} `json:"thumbnails"`
	Thumbnail string `json:"thumbnail"`
}

// FetchMetadata implements MetadataFetcher.
func (f *YtdlpMetadataFetcher) FetchMetadata(ctx context.Context, videoIDOrURL string) (*VideoMetadata, error) {
	videoID, ok := ExtractVideoID(videoIDOrURL)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidInput, videoIDOrURL)
	}
	if _, err := exec.LookPath(f.Path); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrYtdlpNotInstalled, err)
	}

	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, f.Path, "-J", "--no-warnings", "--no-playlist", "--skip-download", WatchURL(videoID))
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		msg := strings.TrimSpace(stderr.String())
		if videoUnavailable(msg) {
			return nil, fmt.Errorf("%w: %s", ErrVideoNotFound, videoID)
		}
		if msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		return nil, &UpstreamError{Op: "yt-dlp metadata", VideoID: videoID, Err: err}
	}

	var info ytdlpInfo
	if err := json.Unmarshal(stdout.Bytes(), &info); err != nil {
		return nil, &UpstreamError{Op: "yt-dlp metadata", VideoID: videoID, Err: fmt.Errorf("parse info JSON: %w", err)}
	}

	meta := mapYtdlpInfo(videoID, &info)
	f.log.WithFields(logrus.Fields{"video_id": videoID, "duration": meta.DurationDisplay}).Debug("metadata fetched")
	return meta, nil
}

func videoUnavailable(stderr string) bool {
	for _, marker := range []string{"Video unavailable", "Private video", "This video has been removed", "is not a valid URL"} {
		if strings.Contains(stderr, marker) {
			return true
		}
	}
	return false
}

func mapYtdlpInfo(videoID string, info *ytdlpInfo) *VideoMetadata {
	meta := &VideoMetadata{
		VideoID:         videoID,
		Title:           UnknownTitle,
		ChannelName:     UnknownChannel,
		DurationDisplay: UnknownDuration,
		Description:     info.Description,
		ViewCount:       info.ViewCount,
		LikeCount:       info.LikeCount,
		Tags:            []string{},
		Thumbnails:      map[string]Thumbnail{},
	}
	if info.Title != "" {
		meta.Title = info.Title
	}
	switch {
	case info.Channel != "":
		meta.ChannelName = info.Channel
	case info.Uploader != "":
		meta.ChannelName = info.Uploader
	}
	if info.Duration > 0 {
		meta.DurationSeconds = int64(info.Duration)
		meta.DurationDisplay = FormatDuration(meta.DurationSeconds)
	}
	if t, err := time.Parse("20060102", info.UploadDate); err == nil {
		meta.PublishedAt = t.UTC().Format(time.RFC3339)
	}
	if len(info.Tags) > 0 {
		meta.Tags = append(meta.Tags, info.Tags...)
	}
	for _, th := range info.Thumbnails {
		if th.URL == "" || th.ID == "" || th.Width == 0 {
			continue
		}
		meta.Thumbnails[th.ID] = Thumbnail{URL: th.URL, Width: th.Width, Height: th.Height}
	}
	if info.Thumbnail != "" {
		if _, ok := meta.Thumbnails["default"]; !ok {
			meta.Thumbnails["default"] = Thumbnail{URL: info.Thumbnail}
		}
	}
	return meta
}
