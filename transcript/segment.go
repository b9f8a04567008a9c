// Package transcript resolves a video's transcript through an ordered chain
// of strategies and classifies where the result probably came from.
package transcript

import (
	"strings"
	"unicode/utf8"

	"ytpipeline/youtube"
)

// Segment is a timed fragment of spoken or inferred text.
type Segment struct {
	Text       string `json:"text"`
	StartMs    int64  `json:"startMs"`
	DurationMs int64  `json:"durationMs"`
}

// Transcript is the ordered output of one strategy. Segments keep the order
// the strategy produced them in.
type Transcript struct {
	Segments []Segment `json:"segments"`
	// Strategy names the chain strategy that produced the segments.
	Strategy string `json:"strategy,omitempty"`
}

// Text joins segment texts with single spaces.
func (t *Transcript) Text() string {
	if t == nil {
		return ""
	}
	parts := make([]string, len(t.Segments))
	for i, s := range t.Segments {
		parts[i] = s.Text
	}
	return strings.Join(parts, " ")
}

// Source is the inferred origin of a transcript.
type Source string

const (
	SourceNone        Source = "none"
	SourceYouTube     Source = "youtube"
	SourceAlternative Source = "alternative-libs"
	SourceWhisper     Source = "whisper"
	SourceDescription Source = "description"
	SourceComments    Source = "comments"
	SourceUnknown     Source = "unknown"
)

// Quality is the inferred reliability of a transcript.
type Quality string

const (
	QualityNone   Quality = "none"
	QualityLow    Quality = "low"
	QualityMedium Quality = "medium"
	QualityHigh   Quality = "high"
)

// Status summarizes a transcript. It is derived, never stored.
type Status struct {
	Available    bool    `json:"available"`
	Source       Source  `json:"source"`
	Quality      Quality `json:"quality"`
	Length       int     `json:"length"`
	SegmentCount int     `json:"segmentCount"`
}

// Heuristic thresholds for Classify.
const (
	commentMarker = "Comment:"
	// whisperMinDurationMs is the per-segment length above which every
	// segment of a transcript is taken to come from speech-to-text.
	whisperMinDurationMs = 5000
)

// Classify infers source and quality from segment shape alone. It is a
// heuristic and ignores Transcript.Strategy. Rules, first match wins:
//
//   - no segments: none/none
//   - first segment starts with "Comment:": comments/low
//   - exactly one segment: description/low
//   - every segment is a DescriptionChunkMs chunk on the description grid: description/low
//   - every segment lasts at least 5s: whisper/high
//   - otherwise: youtube/high
func Classify(t *Transcript) Status {
	if t == nil || len(t.Segments) == 0 {
		return Status{Source: SourceNone, Quality: QualityNone}
	}

	st := Status{
		Available:    true,
		Length:       utf8.RuneCountInString(t.Text()),
		SegmentCount: len(t.Segments),
	}

	segs := t.Segments
	switch {
	case strings.HasPrefix(segs[0].Text, commentMarker):
		st.Source, st.Quality = SourceComments, QualityLow
	case len(segs) == 1:
		st.Source, st.Quality = SourceDescription, QualityLow
	case onDescriptionGrid(segs):
		st.Source, st.Quality = SourceDescription, QualityLow
	case allAtLeast(segs, whisperMinDurationMs):
		st.Source, st.Quality = SourceWhisper, QualityHigh
	default:
		st.Source, st.Quality = SourceYouTube, QualityHigh
	}
	return st
}

func onDescriptionGrid(segs []Segment) bool {
	for i, s := range segs {
		if s.DurationMs != DescriptionChunkMs || s.StartMs != int64(i)*DescriptionChunkMs {
			return false
		}
	}
	return true
}

func allAtLeast(segs []Segment, ms int64) bool {
	for _, s := range segs {
		if s.DurationMs < ms {
			return false
		}
	}
	return true
}

// fromCaptions converts caption lines into segments.
func fromCaptions(captions []youtube.Caption) []Segment {
	if len(captions) == 0 {
		return nil
	}
	segs := make([]Segment, 0, len(captions))
	for _, c := range captions {
		segs = append(segs, Segment{Text: c.Text, StartMs: c.StartMs, DurationMs: c.DurationMs})
	}
	return segs
}
