package youtube

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPickBestTrack(t *testing.T) {
	manualEN := captionTrack{BaseURL: "https://x/manual-en", LanguageCode: "en"}
	asrEN := captionTrack{BaseURL: "https://x/asr-en", LanguageCode: "en", Kind: "asr"}
	manualDE := captionTrack{BaseURL: "https://x/manual-de", LanguageCode: "de"}
	enGB := captionTrack{BaseURL: "https://x/en-gb", LanguageCode: "en-GB"}
	poToken := captionTrack{BaseURL: "https://x/po?v=1&exp=xpe", LanguageCode: "de"}

	tests := []struct {
		name   string
		tracks []captionTrack
		lang   string
		want   captionTrack
		wantOK bool
	}{
		{"manual beats asr", []captionTrack{asrEN, manualEN}, "en", manualEN, true},
		{"asr in language beats other language", []captionTrack{manualDE, asrEN}, "en", asrEN, true},
		{"requested language", []captionTrack{manualEN, manualDE}, "de", manualDE, true},
		{"english fallback", []captionTrack{manualDE, enGB}, "fr", enGB, true},
		{"first usable", []captionTrack{manualDE}, "fr", manualDE, true},
		{"po token skipped", []captionTrack{poToken, asrEN}, "de", asrEN, true},
		{"nothing usable", []captionTrack{poToken, {LanguageCode: "en"}}, "en", captionTrack{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := pickBestTrack(tt.tracks, tt.lang)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseTimedTextXML_Legacy(t *testing.T) {
	data := []byte(`<?xml version="1.0" encoding="utf-8" ?><transcript>` +
		`<text start="0.5" dur="2.25">Never gonna give you up</text>` +
		`<text start="2.75" dur="1">   </text>` +
		`<text start="3.75" dur="2.1">I&amp;#39;m never gonna</text>` +
		`</transcript>`)

	captions, err := parseTimedTextXML(data)
	require.NoError(t, err)
	assert.Equal(t, []Caption{
		{Text: "Never gonna give you up", StartMs: 500, DurationMs: 2250},
		{Text: "I'm never gonna", StartMs: 3750, DurationMs: 2100},
	}, captions)
}

func TestParseTimedTextXML_Srv3(t *testing.T) {
	data := []byte(`<timedtext format="3"><body>` +
		`<p t="1000" d="1500">Hello <s t="200">world</s></p>` +
		`<p t="2500" d="800"></p>` +
		`</body></timedtext>`)

	captions, err := parseTimedTextXML(data)
	require.NoError(t, err)
	assert.Equal(t, []Caption{{Text: "Hello world", StartMs: 1000, DurationMs: 1500}}, captions)
}

func TestMarkupText(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{`plain line`, "plain line"},
		{`Hello <s t="200">world</s>`, "Hello world"},
		{`<s>rock</s><s t="300"> &amp;</s><s t="600"> roll</s>`, "rock & roll"},
		{`a <font color="#fff"><s>b</s></font> c`, "a b c"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cleanCaptionText(markupText(tt.body)), tt.body)
	}
}

func TestParseTimedTextXML_Invalid(t *testing.T) {
	_, err := parseTimedTextXML([]byte("<transcript><text"))
	assert.Error(t, err)
}

func TestPlayerResponseTracks(t *testing.T) {
	var empty playerResponse
	_, err := empty.tracks()
	assert.ErrorIs(t, err, ErrNoCaptions)

	blocked := playerResponse{}
	blocked.PlayabilityStatus = &struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	}{Status: "LOGIN_REQUIRED", Reason: "Sign in to confirm you're not a bot"}
	_, err = blocked.tracks()
	require.ErrorIs(t, err, ErrNoCaptions)
	assert.Contains(t, err.Error(), "not a bot")
}
