package transcript

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"ytpipeline/youtube"
)

// Comment mining parameters.
const (
	CommentChunkMs     = 4000
	commentPrefix      = "Comment: "
	commentsToFetch    = 50
	maxCommentSegments = 20
	minCommentChars    = 30
	maxCommentChars    = 200
	minCommentWords    = 3
)

var (
	ordinalSpamRegex = regexp.MustCompile(`(?i)^\W*(first|second|third|1st|2nd|3rd)\b`)
	subscribeRegex   = regexp.MustCompile(`(?i)(sub4sub|sub 4 sub|subscribe to (me|my)|check out my channel|visit my channel|follow me on)`)
	symbolsOnlyRegex = regexp.MustCompile(`^[^\p{L}\p{N}]+$`)
	mentionSpamRegex = regexp.MustCompile(`(@\w+\s*){3,}`)
)

// CommentsStrategy turns top-level comments into synthetic segments.
type CommentsStrategy struct {
	comments youtube.CommentFetcher
}

// NewCommentsStrategy creates the strategy.
func NewCommentsStrategy(comments youtube.CommentFetcher) *CommentsStrategy {
	return &CommentsStrategy{comments: comments}
}

func (s *CommentsStrategy) Name() string { return StrategyComments }

func (s *CommentsStrategy) Attempt(ctx context.Context, req Request) ([]Segment, error) {
	comments, err := s.comments.FetchComments(ctx, req.VideoID, commentsToFetch)
	if err != nil {
		return nil, err
	}
	return CommentSegments(comments), nil
}

// CommentSegments keeps up to 20 non-spam comments between 30 and 199
// characters and lays them out 4s apart starting at 0.
func CommentSegments(comments []string) []Segment {
	var segs []Segment
	for _, c := range comments {
		if len(segs) == maxCommentSegments {
			break
		}
		text := strings.TrimSpace(c)
		n := utf8.RuneCountInString(text)
		if n < minCommentChars || n >= maxCommentChars || isSpamComment(text) {
			continue
		}
		segs = append(segs, Segment{
			Text:       commentPrefix + text,
			StartMs:    int64(len(segs)) * CommentChunkMs,
			DurationMs: CommentChunkMs,
		})
	}
	return segs
}

func isSpamComment(text string) bool {
	return ordinalSpamRegex.MatchString(text) ||
		subscribeRegex.MatchString(text) ||
		symbolsOnlyRegex.MatchString(text) ||
		len(strings.Fields(text)) < minCommentWords ||
		mentionSpamRegex.MatchString(text)
}
