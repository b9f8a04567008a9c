package transcript

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsSpamComment(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"First! I was here before anyone else watched it", true},
		{"second comment, love this channel so much", true},
		{"sub4sub anyone? I always sub back to everyone", true},
		{"Great vid, check out my channel for more content like this", true},
		{"!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!", true},
		{"@alice @bob @carol look at this one right here", true},
		{"Supercalifragilisticexpialidocious!!!!!!!", true},
		{"The explanation of the scheduler at 4:20 finally made it click for me", false},
		{"Thirdly, this is a word that starts with third but is fine", false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, isSpamComment(tt.text))
		})
	}
}

func TestCommentSegments(t *testing.T) {
	good := "This is a thoughtful comment about the video content"
	comments := []string{
		"too short",
		good,
		strings.Repeat("long comment words ", 12), // over 200 chars
		"first! first! first! first! first! first!",
		"  Another genuinely useful remark about the topic  ",
	}

	segs := CommentSegments(comments)
	require.Len(t, segs, 2)
	assert.Equal(t, Segment{Text: "Comment: " + good, StartMs: 0, DurationMs: CommentChunkMs}, segs[0])
	assert.Equal(t, Segment{Text: "Comment: Another genuinely useful remark about the topic", StartMs: CommentChunkMs, DurationMs: CommentChunkMs}, segs[1])
}

func TestCommentSegments_LengthBounds(t *testing.T) {
	exactly30 := "abcde fghij klmno pqrst uvwxyz" // 30 chars, 5 words
	require.Len(t, []rune(exactly30), 30)
	assert.Len(t, CommentSegments([]string{exactly30}), 1)
	assert.Empty(t, CommentSegments([]string{exactly30[:29]}))

	words := strings.Repeat("word ", 40)
	at200 := words[:199] + "x"
	require.Len(t, []rune(at200), 200)
	assert.Empty(t, CommentSegments([]string{at200}))
	assert.Len(t, CommentSegments([]string{at200[:199]}), 1)
}

func TestCommentSegments_CapsAtTwenty(t *testing.T) {
	var comments []string
	for i := range 30 {
		comments = append(comments, fmt.Sprintf("Comment number %d says something useful about it", i))
	}
	segs := CommentSegments(comments)
	require.Len(t, segs, 20)
	for i, s := range segs {
		assert.Equal(t, int64(i)*CommentChunkMs, s.StartMs)
	}
}

type fakeComments struct {
	comments []string
	err      error
	max      int64
}

func (f *fakeComments) FetchComments(_ context.Context, _ string, max int64) ([]string, error) {
	f.max = max
	return f.comments, f.err
}

func TestCommentsStrategy(t *testing.T) {
	f := &fakeComments{comments: []string{"A very helpful comment that explains the whole thing"}}
	s := NewCommentsStrategy(f)

	segs, err := s.Attempt(context.Background(), Request{VideoID: "dQw4w9WgXcQ"})
	require.NoError(t, err)
	assert.Len(t, segs, 1)
	assert.Equal(t, int64(50), f.max)

	st := Classify(&Transcript{Segments: segs})
	assert.Equal(t, SourceComments, st.Source)

	f.err = errors.New("quota")
	_, err = s.Attempt(context.Background(), Request{VideoID: "dQw4w9WgXcQ"})
	assert.Error(t, err)
}
