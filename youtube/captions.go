package youtube

import (
	"context"
	"encoding/xml"
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Caption is one timed caption line.
type Caption struct {
	Text       string
	StartMs    int64
	DurationMs int64
}

// CaptionTechnique is one named way of obtaining captions for a video.
type CaptionTechnique struct {
	Name  string
	Fetch func(ctx context.Context, videoID string) ([]Caption, error)
}

// captionTrack is a track entry from a player response.
type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"` // "asr" = auto-generated
}

type playerResponse struct {
	Captions *struct {
		PlayerCaptionsTracklistRenderer struct {
			CaptionTracks []captionTrack `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
	PlayabilityStatus *struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
}

// tracks returns the caption tracks or an error naming why there are none.
func (p *playerResponse) tracks() ([]captionTrack, error) {
	if p.Captions == nil || len(p.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks) == 0 {
		if p.PlayabilityStatus != nil && p.PlayabilityStatus.Reason != "" {
			return nil, fmt.Errorf("%w: %s", ErrNoCaptions, p.PlayabilityStatus.Reason)
		}
		return nil, ErrNoCaptions
	}
	return p.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks, nil
}

// needsPoToken reports whether a track URL can only be fetched by a browser.
func needsPoToken(baseURL string) bool {
	return strings.Contains(baseURL, "&exp=xpe")
}

// pickBestTrack prefers a manual track in lang, then an auto-generated one
// in lang, then any English track, then the first usable track.
func pickBestTrack(tracks []captionTrack, lang string) (captionTrack, bool) {
	usable := make([]captionTrack, 0, len(tracks))
	for _, t := range tracks {
		if t.BaseURL != "" && !needsPoToken(t.BaseURL) {
			usable = append(usable, t)
		}
	}
	if len(usable) == 0 {
		return captionTrack{}, false
	}
	for _, t := range usable {
		if t.LanguageCode == lang && t.Kind != "asr" {
			return t, true
		}
	}
	for _, t := range usable {
		if t.LanguageCode == lang {
			return t, true
		}
	}
	for _, t := range usable {
		if strings.HasPrefix(t.LanguageCode, "en") {
			return t, true
		}
	}
	return usable[0], true
}

// timedTextXML covers both the legacy <transcript><text start dur> format
// and the srv3 <timedtext><body><p t d> format.
type timedTextXML struct {
	Texts []struct {
		Start string `xml:"start,attr"`
		Dur   string `xml:"dur,attr"`
		Body  string `xml:",chardata"`
	} `xml:"text"`
	Paragraphs []struct {
		T    int64  `xml:"t,attr"`
		D    int64  `xml:"d,attr"`
		Body string `xml:",innerxml"`
	} `xml:"body>p"`
}

// parseTimedTextXML converts caption XML into captions, dropping blank lines.
func parseTimedTextXML(data []byte) ([]Caption, error) {
	var doc timedTextXML
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse timedtext XML: %w", err)
	}

	var out []Caption
	for _, t := range doc.Texts {
		text := cleanCaptionText(t.Body)
		if text == "" {
			continue
		}
		out = append(out, Caption{Text: text, StartMs: secondsToMs(t.Start), DurationMs: secondsToMs(t.Dur)})
	}
	for _, p := range doc.Paragraphs {
		text := cleanCaptionText(markupText(p.Body))
		if text == "" {
			continue
		}
		out = append(out, Caption{Text: text, StartMs: p.T, DurationMs: p.D})
	}
	return out, nil
}

func secondsToMs(s string) int64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return int64(f*1000 + 0.5)
}

// cleanCaptionText unescapes entities (captions are often escaped twice)
// and collapses whitespace.
func cleanCaptionText(s string) string {
	s = html.UnescapeString(html.UnescapeString(s))
	return strings.Join(strings.Fields(s), " ")
}

// markupText returns the text of an srv3 paragraph body, dropping inline
// markup such as the <s> word-timing spans.
func markupText(body string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return body
	}
	return doc.Text()
}
