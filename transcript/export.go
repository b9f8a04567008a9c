package transcript

import (
	"encoding/json"
	"fmt"
	"html"
	"strings"
)

// Format is a transcript export format.
type Format string

const (
	FormatJSON      Format = "json"
	FormatVTT       Format = "vtt"
	FormatSRT       Format = "srt"
	FormatTTML      Format = "ttml"
	FormatPlainText Format = "txt"
)

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json; charset=utf-8"
	case FormatVTT:
		return "text/vtt; charset=utf-8"
	case FormatTTML:
		return "application/ttml+xml; charset=utf-8"
	case FormatSRT:
		return "application/x-subrip; charset=utf-8"
	default:
		return "text/plain; charset=utf-8"
	}
}

// ParseFormat maps a user-supplied name to a Format. "text" is accepted for txt.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case FormatJSON, FormatVTT, FormatSRT, FormatTTML, FormatPlainText:
		return f, nil
	case "text", "":
		return FormatPlainText, nil
	default:
		return "", fmt.Errorf("unknown transcript format %q", name)
	}
}

// Export renders t in format. A nil transcript renders as empty output.
func Export(t *Transcript, format Format) (string, error) {
	var segs []Segment
	if t != nil {
		segs = t.Segments
	}
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(struct {
			Segments []Segment `json:"segments"`
			Status   Status    `json:"status"`
		}{segs, Classify(t)}, "", "  ")
		if err != nil {
			return "", err
		}
		return string(data), nil
	case FormatVTT:
		return toVTT(segs), nil
	case FormatSRT:
		return toSRT(segs), nil
	case FormatTTML:
		return toTTML(segs), nil
	case FormatPlainText:
		return t.Text(), nil
	default:
		return "", fmt.Errorf("unknown transcript format %q", format)
	}
}

func toVTT(segs []Segment) string {
	var b strings.Builder
	b.WriteString("WEBVTT\n\n")
	for _, s := range segs {
		fmt.Fprintf(&b, "%s --> %s\n%s\n\n", clock(s.StartMs, '.'), clock(s.StartMs+s.DurationMs, '.'), s.Text)
	}
	return b.String()
}

func toSRT(segs []Segment) string {
	var b strings.Builder
	for i, s := range segs {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n", i+1, clock(s.StartMs, ','), clock(s.StartMs+s.DurationMs, ','), s.Text)
	}
	return b.String()
}

func toTTML(segs []Segment) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<tt xmlns="http://www.w3.org/ns/ttml"><body><div>` + "\n")
	for _, s := range segs {
		fmt.Fprintf(&b, `<p begin="%s" end="%s">%s</p>`+"\n",
			clock(s.StartMs, '.'), clock(s.StartMs+s.DurationMs, '.'), html.EscapeString(s.Text))
	}
	b.WriteString("</div></body></tt>\n")
	return b.String()
}

// clock renders ms as HH:MM:SS<sep>mmm.
func clock(ms int64, sep byte) string {
	if ms < 0 {
		ms = 0
	}
	h := ms / 3_600_000
	m := (ms / 60_000) % 60
	s := (ms / 1000) % 60
	return fmt.Sprintf("%02d:%02d:%02d%c%03d", h, m, s, sep, ms%1000)
}
