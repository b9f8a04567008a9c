package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	httpclient "ytpipeline/http"
)

// DefaultTimedtextURL is YouTube's caption endpoint.
const DefaultTimedtextURL = "https://www.youtube.com/api/timedtext"

// TimedtextClient fetches captions directly from the timedtext endpoint in
// json3 format.
type TimedtextClient struct {
	httpClient *httpclient.Client
	baseURL    string
}

// NewTimedtextClient creates a timedtext client. An empty baseURL selects
// DefaultTimedtextURL.
func NewTimedtextClient(client *httpclient.Client, baseURL string) *TimedtextClient {
	if baseURL == "" {
		baseURL = DefaultTimedtextURL
	}
	return &TimedtextClient{httpClient: client, baseURL: baseURL}
}

// timedtextResponse is the json3 caption document.
type timedtextResponse struct {
	Events []struct {
		TStartMs    int64 `json:"tStartMs"`
		DDurationMs int64 `json:"dDurationMs"`
		Segs        []struct {
			UTF8 string `json:"utf8"`
		} `json:"segs"`
	} `json:"events"`
}

// FetchCaptions returns the caption track for videoID in langCode ("en" when
// empty). A missing track yields ErrNoCaptions.
func (tc *TimedtextClient) FetchCaptions(ctx context.Context, videoID, langCode string) ([]Caption, error) {
	if videoID == "" {
		return nil, fmt.Errorf("%w: empty video ID", ErrInvalidInput)
	}
	if langCode == "" {
		langCode = "en"
	}

	params := url.Values{}
	params.Set("v", videoID)
	params.Set("lang", langCode)
	params.Set("fmt", "json3")

	resp, err := tc.httpClient.Get(ctx, tc.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		switch httpclient.StatusCode(err) {
		case http.StatusNotFound:
			return nil, fmt.Errorf("%w: %s (%s)", ErrNoCaptions, videoID, langCode)
		case http.StatusForbidden:
			return nil, fmt.Errorf("%w: access denied for %s", ErrNoCaptions, videoID)
		}
		return nil, &UpstreamError{Op: "timedtext", VideoID: videoID, Err: err}
	}

	// An empty 200 is how the endpoint reports "no such track".
	if len(strings.TrimSpace(string(resp.Body))) == 0 {
		return nil, fmt.Errorf("%w: %s (%s)", ErrNoCaptions, videoID, langCode)
	}

	captions, err := parseTimedtext(resp.Body)
	if err != nil {
		return nil, &UpstreamError{Op: "timedtext", VideoID: videoID, Err: err}
	}
	return captions, nil
}

// parseTimedtext joins each event's segments into one caption, skipping
// events that carry no text (window and wave events).
func parseTimedtext(data []byte) ([]Caption, error) {
	var resp timedtextResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal timedtext JSON: %w", err)
	}

	var captions []Caption
	for _, event := range resp.Events {
		if len(event.Segs) == 0 {
			continue
		}
		var text strings.Builder
		for _, seg := range event.Segs {
			text.WriteString(seg.UTF8)
		}
		clean := strings.Join(strings.Fields(text.String()), " ")
		if clean == "" {
			continue
		}
		captions = append(captions, Caption{
			Text:       clean,
			StartMs:    event.TStartMs,
			DurationMs: event.DDurationMs,
		})
	}
	return captions, nil
}
