package youtube

// VideoMetadata is the immutable snapshot of a video's public metadata as
// returned by the Data API. JSON field names are the on-disk record format.
type VideoMetadata struct {
	// VideoID is the canonical 11-character identifier.
	VideoID string `json:"videoId"`
	// Title is the video title, "Unknown Title" when absent.
	Title string `json:"title"`
	// Description is the full video description.
	Description string `json:"description"`
	// ChannelName is the channel title, "Unknown Channel" when absent.
	ChannelName string `json:"channelName"`
	// PublishedAt is the RFC 3339 publish time as reported upstream.
	PublishedAt string `json:"publishedAt"`
	// DurationDisplay is the human form, e.g. "4:13" or "1:02:03".
	DurationDisplay string `json:"durationDisplay"`
	// DurationSeconds is the total length in seconds.
	DurationSeconds int64 `json:"durationSeconds"`
	ViewCount       int64 `json:"viewCount"`
	LikeCount       int64 `json:"likeCount"`
	// Tags is never nil.
	Tags       []string `json:"tags"`
	CategoryID string   `json:"categoryId"`
	// Thumbnails is keyed by size name: default, medium, high, standard, maxres.
	Thumbnails map[string]Thumbnail `json:"thumbnails"`
}

// Thumbnail is one thumbnail rendition.
type Thumbnail struct {
	URL    string `json:"url"`
	Width  int64  `json:"width,omitempty"`
	Height int64  `json:"height,omitempty"`
}

// WatchURL returns the canonical watch page URL for m.
func (m *VideoMetadata) WatchURL() string {
	return WatchURL(m.VideoID)
}
