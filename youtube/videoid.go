package youtube

import (
	"regexp"
	"strings"
)

var (
	bareIDRegex = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
	// The identifier must end at '/', '?', '&', '#', whitespace or end of input.
	urlIDRegex = regexp.MustCompile(
		`(?:youtube(?:-nocookie)?\.com/(?:watch\?(?:[^#\s]*&)?v=|embed/|v/|shorts/|live/)|youtu\.be/)` +
			`([A-Za-z0-9_-]{11})(?:[/?&#\s]|$)`)
)

// ExtractVideoID returns the canonical 11-character video ID contained in
// input, which may be a watch, short-link, embed or shorts URL, or a bare ID.
// It reports false for empty or unrecognized input and never panics.
func ExtractVideoID(input string) (string, bool) {
	s := strings.TrimSpace(input)
	if s == "" {
		return "", false
	}
	if bareIDRegex.MatchString(s) {
		return s, true
	}
	if m := urlIDRegex.FindStringSubmatch(s); m != nil {
		return m[1], true
	}
	return "", false
}

// WatchURL returns the watch page URL for a video ID.
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}
