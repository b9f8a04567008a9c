package transcript

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	httpclient "ytpipeline/http"
)

// DefaultOpenAIBaseURL is the OpenAI API root.
const DefaultOpenAIBaseURL = "https://api.openai.com/v1"

// WhisperClient transcribes audio with OpenAI's transcription endpoint.
type WhisperClient struct {
	httpClient *httpclient.Client
	apiKey     string
	baseURL    string
	model      string
}

// NewWhisperClient creates a client. An empty baseURL selects
// DefaultOpenAIBaseURL.
func NewWhisperClient(client *httpclient.Client, apiKey, baseURL string) *WhisperClient {
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	return &WhisperClient{
		httpClient: client,
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      "whisper-1",
	}
}

type verboseTranscription struct {
	Text     string `json:"text"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

// Transcribe uploads audioPath and converts the returned segment times from
// seconds to milliseconds. Blank segments are dropped.
func (w *WhisperClient) Transcribe(ctx context.Context, audioPath string) ([]Segment, error) {
	if w.apiKey == "" {
		return nil, fmt.Errorf("openai api key not configured")
	}

	body, contentType, err := w.multipartBody(audioPath)
	if err != nil {
		return nil, err
	}

	resp, err := w.httpClient.Do(ctx, "POST", w.baseURL+"/audio/transcriptions", body, map[string]string{
		"Authorization": "Bearer " + w.apiKey,
		"Content-Type":  contentType,
	})
	if err != nil {
		return nil, fmt.Errorf("whisper request: %w", err)
	}

	var out verboseTranscription
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, fmt.Errorf("decode whisper response: %w", err)
	}
	return whisperSegments(&out), nil
}

func whisperSegments(out *verboseTranscription) []Segment {
	segs := make([]Segment, 0, len(out.Segments))
	for _, s := range out.Segments {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		start := secondsToMs(s.Start)
		dur := secondsToMs(s.End) - start
		if dur < 0 {
			dur = 0
		}
		segs = append(segs, Segment{Text: text, StartMs: start, DurationMs: dur})
	}
	return segs
}

func secondsToMs(s float64) int64 {
	return int64(math.Round(s * 1000))
}

func (w *WhisperClient) multipartBody(audioPath string) ([]byte, string, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, "", fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fields := [][2]string{
		{"model", w.model},
		{"response_format", "verbose_json"},
		{"timestamp_granularities[]", "segment"},
	}
	for _, kv := range fields {
		if err := mw.WriteField(kv[0], kv[1]); err != nil {
			return nil, "", err
		}
	}

	part, err := mw.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("read audio: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}
