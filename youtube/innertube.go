package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	httpclient "ytpipeline/http"
)

// Innertube client identities.
const (
	DefaultYouTubeBaseURL = "https://www.youtube.com"

	webClientVersion     = "2.20250222.10.00"
	androidClientVersion = "20.10.38"
	androidUserAgent     = "com.google.android.youtube/" + androidClientVersion + " (Linux; U; Android 11) gzip"

	playerResponseMarker = "ytInitialPlayerResponse = "
)

// transcriptTokenRE finds the get_transcript continuation in a /next response.
var transcriptTokenRE = regexp.MustCompile(`"getTranscriptEndpoint":\{"params":"([^"]+)"`)

// InnertubeClient obtains captions without the Data API, through the watch
// page, the ANDROID player endpoint and the WEB transcript panel.
type InnertubeClient struct {
	httpClient *httpclient.Client
	baseURL    string
	lang       string
	log        logrus.FieldLogger
}

// NewInnertubeClient creates a client. An empty baseURL selects
// DefaultYouTubeBaseURL and an empty lang selects "en".
func NewInnertubeClient(client *httpclient.Client, baseURL, lang string, log logrus.FieldLogger) *InnertubeClient {
	if baseURL == "" {
		baseURL = DefaultYouTubeBaseURL
	}
	if lang == "" {
		lang = "en"
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &InnertubeClient{
		httpClient: client,
		baseURL:    strings.TrimRight(baseURL, "/"),
		lang:       lang,
		log:        log.WithField("component", "innertube"),
	}
}

// Techniques lists the caption techniques in the order they should be tried.
func (c *InnertubeClient) Techniques() []CaptionTechnique {
	return []CaptionTechnique{
		{Name: "watch-page", Fetch: c.FetchViaWatchPage},
		{Name: "android-player", Fetch: c.FetchViaPlayer},
		{Name: "transcript-panel", Fetch: c.FetchViaTranscriptPanel},
	}
}

// FetchViaWatchPage scrapes ytInitialPlayerResponse from the watch page and
// downloads the best caption track it lists.
func (c *InnertubeClient) FetchViaWatchPage(ctx context.Context, videoID string) ([]Caption, error) {
	resp, err := c.httpClient.Get(ctx, c.baseURL+"/watch?v="+url.QueryEscape(videoID)+"&hl=en", map[string]string{
		"Accept-Language": "en-US,en;q=0.9",
	})
	if err != nil {
		return nil, &UpstreamError{Op: "watch page", VideoID: videoID, Err: err}
	}

	player, err := playerResponseFromHTML(resp.Body)
	if err != nil {
		return nil, err
	}
	return c.captionsFromPlayer(ctx, videoID, player)
}

// playerResponseFromHTML finds the script that assigns ytInitialPlayerResponse
// and decodes the object literal it assigns.
func playerResponseFromHTML(page []byte) (*playerResponse, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse watch page: %w", err)
	}

	var raw []byte
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		idx := strings.Index(text, playerResponseMarker)
		if idx < 0 {
			return true
		}
		raw = extractJSONObject([]byte(text[idx+len(playerResponseMarker):]))
		return raw == nil
	})
	if raw == nil {
		return nil, errors.New("ytInitialPlayerResponse not found in watch page")
	}

	var player playerResponse
	if err := json.Unmarshal(raw, &player); err != nil {
		return nil, fmt.Errorf("decode ytInitialPlayerResponse: %w", err)
	}
	return &player, nil
}

// extractJSONObject returns the balanced {...} object at the start of data,
// honoring string literals and escapes. It returns nil when unbalanced.
func extractJSONObject(data []byte) []byte {
	start := bytes.IndexByte(data, '{')
	if start < 0 {
		return nil
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(data); i++ {
		ch := data[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case ch == '\\' && inString:
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == '{':
			depth++
		case ch == '}':
			depth--
			if depth == 0 {
				return data[start : i+1]
			}
		}
	}
	return nil
}

type androidPlayerRequest struct {
	VideoID string `json:"videoId"`
	Context struct {
		Client struct {
			ClientName        string `json:"clientName"`
			ClientVersion     string `json:"clientVersion"`
			AndroidSdkVersion int    `json:"androidSdkVersion"`
			Hl                string `json:"hl"`
			Gl                string `json:"gl"`
		} `json:"client"`
	} `json:"context"`
	RacyCheckOk    bool `json:"racyCheckOk"`
	ContentCheckOk bool `json:"contentCheckOk"`
}

// FetchViaPlayer asks the ANDROID Innertube player endpoint for caption tracks.
func (c *InnertubeClient) FetchViaPlayer(ctx context.Context, videoID string) ([]Caption, error) {
	var req androidPlayerRequest
	req.VideoID = videoID
	req.Context.Client.ClientName = "ANDROID"
	req.Context.Client.ClientVersion = androidClientVersion
	req.Context.Client.AndroidSdkVersion = 30
	req.Context.Client.Hl = "en"
	req.Context.Client.Gl = "US"
	req.RacyCheckOk = true
	req.ContentCheckOk = true

	resp, err := c.httpClient.PostJSON(ctx, c.baseURL+"/youtubei/v1/player?prettyPrint=false", req, map[string]string{
		"User-Agent":               androidUserAgent,
		"X-Youtube-Client-Name":    "3",
		"X-Youtube-Client-Version": androidClientVersion,
	})
	if err != nil {
		return nil, &UpstreamError{Op: "android player", VideoID: videoID, Err: err}
	}

	var player playerResponse
	if err := json.Unmarshal(resp.Body, &player); err != nil {
		return nil, fmt.Errorf("decode player response: %w", err)
	}
	return c.captionsFromPlayer(ctx, videoID, &player)
}

func (c *InnertubeClient) captionsFromPlayer(ctx context.Context, videoID string, player *playerResponse) ([]Caption, error) {
	tracks, err := player.tracks()
	if err != nil {
		return nil, err
	}
	track, ok := pickBestTrack(tracks, c.lang)
	if !ok {
		return nil, fmt.Errorf("%w: every track requires a PoToken", ErrNoCaptions)
	}
	c.log.WithFields(logrus.Fields{"video_id": videoID, "lang": track.LanguageCode, "kind": track.Kind}).Debug("caption track selected")

	resp, err := c.httpClient.Get(ctx, track.BaseURL, nil)
	if err != nil {
		return nil, &UpstreamError{Op: "caption track", VideoID: videoID, Err: err}
	}
	return parseTimedTextXML(resp.Body)
}

// transcriptPanelResponse is the subset of /get_transcript that carries segments.
type transcriptPanelResponse struct {
	Actions []struct {
		UpdateEngagementPanelAction *struct {
			Content struct {
				TranscriptRenderer struct {
					Content struct {
						TranscriptSearchPanelRenderer struct {
							Body struct {
								TranscriptSegmentListRenderer struct {
									InitialSegments []struct {
										TranscriptSegmentRenderer *struct {
											StartMs string `json:"startMs"`
											EndMs   string `json:"endMs"`
											Snippet struct {
												Runs []struct {
													Text string `json:"text"`
												} `json:"runs"`
											} `json:"snippet"`
										} `json:"transcriptSegmentRenderer"`
									} `json:"initialSegments"`
								} `json:"transcriptSegmentListRenderer"`
							} `json:"body"`
						} `json:"transcriptSearchPanelRenderer"`
					} `json:"content"`
				} `json:"transcriptRenderer"`
			} `json:"content"`
		} `json:"updateEngagementPanelAction"`
	} `json:"actions"`
}

// FetchViaTranscriptPanel reads the transcript engagement panel through the
// WEB client: /next yields a continuation token that /get_transcript accepts.
func (c *InnertubeClient) FetchViaTranscriptPanel(ctx context.Context, videoID string) ([]Caption, error) {
	visitorData := randomVisitorData()
	headers := map[string]string{
		"X-Youtube-Client-Name":    "1",
		"X-Youtube-Client-Version": webClientVersion,
		"X-Goog-Visitor-Id":        visitorData,
		"Origin":                   DefaultYouTubeBaseURL,
		"Referer":                  DefaultYouTubeBaseURL + "/",
	}
	webContext := map[string]any{
		"client": map[string]any{
			"clientName":    "WEB",
			"clientVersion": webClientVersion,
			"visitorData":   visitorData,
			"hl":            "en",
			"gl":            "US",
		},
	}

	next, err := c.httpClient.PostJSON(ctx, c.baseURL+"/youtubei/v1/next?prettyPrint=false", map[string]any{
		"videoId": videoID,
		"context": webContext,
	}, headers)
	if err != nil {
		return nil, &UpstreamError{Op: "next", VideoID: videoID, Err: err}
	}

	token, err := transcriptToken(next.Body)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.PostJSON(ctx, c.baseURL+"/youtubei/v1/get_transcript?prettyPrint=false", map[string]any{
		"params":  token,
		"context": webContext,
	}, headers)
	if err != nil {
		return nil, &UpstreamError{Op: "get_transcript", VideoID: videoID, Err: err}
	}

	var panel transcriptPanelResponse
	if err := json.Unmarshal(resp.Body, &panel); err != nil {
		return nil, fmt.Errorf("decode transcript panel: %w", err)
	}
	return panelCaptions(&panel), nil
}

// transcriptToken extracts and URL-decodes the get_transcript params.
func transcriptToken(data []byte) (string, error) {
	m := transcriptTokenRE.FindSubmatch(data)
	if len(m) < 2 {
		return "", fmt.Errorf("%w: no transcript panel", ErrNoCaptions)
	}
	decoded, err := url.QueryUnescape(string(m[1]))
	if err != nil {
		return string(m[1]), nil
	}
	return decoded, nil
}

func panelCaptions(panel *transcriptPanelResponse) []Caption {
	var out []Caption
	for _, action := range panel.Actions {
		if action.UpdateEngagementPanelAction == nil {
			continue
		}
		segs := action.UpdateEngagementPanelAction.Content.
			TranscriptRenderer.Content.
			TranscriptSearchPanelRenderer.Body.
			TranscriptSegmentListRenderer.InitialSegments
		for _, seg := range segs {
			r := seg.TranscriptSegmentRenderer
			if r == nil {
				continue
			}
			var parts []string
			for _, run := range r.Snippet.Runs {
				if run.Text != "" {
					parts = append(parts, run.Text)
				}
			}
			text := cleanCaptionText(strings.Join(parts, " "))
			if text == "" {
				continue
			}
			start, _ := strconv.ParseInt(r.StartMs, 10, 64)
			end, _ := strconv.ParseInt(r.EndMs, 10, 64)
			dur := end - start
			if dur < 0 {
				dur = 0
			}
			out = append(out, Caption{Text: text, StartMs: start, DurationMs: dur})
		}
	}
	return out
}

// randomVisitorData creates an 11-character visitor ID.
func randomVisitorData() string {
	const chars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"
	b := make([]byte, 11)
	for i := range b {
		b[i] = chars[rand.Intn(len(chars))] //nolint:gosec // not security sensitive
	}
	return string(b)
}
