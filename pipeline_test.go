package ytpipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	httpclient "ytpipeline/http"
	"ytpipeline/internal/config"
	"ytpipeline/internal/logging"
	"ytpipeline/internal/retry"
	"ytpipeline/storage"
	"ytpipeline/transcript"
	"ytpipeline/youtube"
)

const videoJSON = `{"items": [{
  "id": "dQw4w9WgXcQ",
  "snippet": {"title": "Never Gonna Give You Up", "channelTitle": "Rick Astley", "description": "The official video."},
  "statistics": {"viewCount": "1500000000", "likeCount": "17000000"},
  "contentDetails": {"duration": "PT3M33S"}
}]}`

const captionsJSON = `{"events": [
  {"tStartMs": 0, "dDurationMs": 1500, "segs": [{"utf8": "Never gonna"}]},
  {"tStartMs": 1500, "dDurationMs": 2000, "segs": [{"utf8": "give you up"}]}
]}`

type fakeYouTube struct {
	videos     string
	captions   string
	videoCalls atomic.Int32
}

func (f *fakeYouTube) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/youtube/v3/videos":
		f.videoCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(f.videos))
	case "/api/timedtext":
		if f.captions == "" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(f.captions))
	default:
		http.NotFound(w, r)
	}
}

func newTestPipeline(t *testing.T, fake *fakeYouTube) *Pipeline {
	t.Helper()
	return newTestPipelineOrder(t, fake, []string{transcript.StrategyYouTube})
}

func newTestPipelineOrder(t *testing.T, fake *fakeYouTube, order []string) *Pipeline {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	log := logging.Discard()
	api, err := youtube.NewAPIClient(context.Background(), "test-key", log, option.WithEndpoint(srv.URL+"/"))
	require.NoError(t, err)

	hcfg := httpclient.DefaultConfig()
	hcfg.Retry = retry.Config{MaxRetries: 1, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond, Multiplier: 2}
	hc := httpclient.New(hcfg)

	shared := youtube.NewSharedFetcher(api)
	chain := transcript.NewChain(
		transcript.Config{Order: order, EnableDescription: true},
		[]transcript.Strategy{
			transcript.NewCaptionsStrategy(youtube.NewTimedtextClient(hc, srv.URL+"/api/timedtext"), "en"),
			transcript.NewDescriptionStrategy(shared),
		},
		transcript.WithLogger(log),
	)
	store, err := storage.NewMetadataStore(t.TempDir(), storage.WithLogger(log))
	require.NoError(t, err)

	return New(shared, chain, store, log)
}

func TestPipeline_Process(t *testing.T) {
	p := newTestPipeline(t, &fakeYouTube{videos: videoJSON, captions: captionsJSON})

	data, err := p.Process(context.Background(), "https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=42")
	require.NoError(t, err)

	assert.Equal(t, "dQw4w9WgXcQ", data.VideoID)
	assert.Equal(t, "https://www.youtube.com/watch?v=dQw4w9WgXcQ", data.SourceURL)
	assert.Equal(t, "Never Gonna Give You Up", data.Metadata.Title)
	assert.Equal(t, "3:33", data.Metadata.DurationDisplay)

	require.NotNil(t, data.Transcript)
	assert.Len(t, data.Transcript.Segments, 2)
	assert.Equal(t, transcript.SourceYouTube, data.Status.Source)
	assert.Equal(t, transcript.QualityHigh, data.Status.Quality)
	assert.Equal(t, 2, data.Status.SegmentCount)

	require.NotNil(t, data.Record)
	assert.True(t, storage.Validate(data.Record))
	assert.NotNil(t, data.Record.WorkflowMetadata.ProcessedAt)
	assert.Equal(t, 1, data.Record.WorkflowMetadata.ProcessingAttempts)
}

func TestPipeline_ProcessTwiceKeepsOriginal(t *testing.T) {
	fake := &fakeYouTube{videos: videoJSON, captions: captionsJSON}
	p := newTestPipeline(t, fake)
	ctx := context.Background()

	first, err := p.Process(ctx, "dQw4w9WgXcQ")
	require.NoError(t, err)

	fake.videos = `{"items":[{"id":"dQw4w9WgXcQ","snippet":{"title":"Renamed"},"contentDetails":{"duration":"PT1M"}}]}`
	second, err := p.Process(ctx, "dQw4w9WgXcQ")
	require.NoError(t, err)

	assert.Equal(t, first.Record.OriginalMetadata.Checksum, second.Record.OriginalMetadata.Checksum)
	assert.Equal(t, "Never Gonna Give You Up", second.Metadata.Title)
	assert.Equal(t, 2, second.Record.WorkflowMetadata.ProcessingAttempts)
}

func TestPipeline_ProcessWithoutTranscript(t *testing.T) {
	p := newTestPipeline(t, &fakeYouTube{videos: videoJSON})

	data, err := p.Process(context.Background(), "dQw4w9WgXcQ")
	require.NoError(t, err)

	assert.Nil(t, data.Transcript)
	assert.False(t, data.Status.Available)
	assert.Equal(t, transcript.SourceNone, data.Status.Source)
	assert.Equal(t, transcript.QualityNone, data.Status.Quality)
	assert.NotNil(t, data.Record)
}

func TestPipeline_ProcessVideoNotFound(t *testing.T) {
	p := newTestPipeline(t, &fakeYouTube{videos: `{"items": []}`, captions: captionsJSON})

	_, err := p.Process(context.Background(), "dQw4w9WgXcQ")
	assert.ErrorIs(t, err, ErrVideoNotFound)

	_, statErr := os.Stat(filepath.Join(p.Store().Dir(), "dQw4w9WgXcQ.json"))
	assert.True(t, os.IsNotExist(statErr), "nothing is stored when metadata fails")
}

func TestPipeline_ProcessFallbackReusesMetadata(t *testing.T) {
	fake := &fakeYouTube{videos: `{"items": [{
  "id": "dQw4w9WgXcQ",
  "snippet": {"title": "Talk", "channelTitle": "Speaker", "description": "In this talk we walk through the whole release process. Every step is covered from branching to tagging."},
  "contentDetails": {"duration": "PT12M"}
}]}`}
	p := newTestPipelineOrder(t, fake, []string{transcript.StrategyYouTube, transcript.StrategyDescription})

	data, err := p.Process(context.Background(), "dQw4w9WgXcQ")
	require.NoError(t, err)

	require.NotNil(t, data.Transcript)
	assert.Equal(t, transcript.SourceDescription, data.Status.Source)
	assert.Equal(t, int32(1), fake.videoCalls.Load(), "metadata is fetched once per video")
}

func TestPipeline_ProcessInvalidInput(t *testing.T) {
	p := newTestPipeline(t, &fakeYouTube{videos: videoJSON})

	_, err := p.Process(context.Background(), "https://example.com/not-a-video")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestPipeline_Transcript(t *testing.T) {
	p := newTestPipeline(t, &fakeYouTube{videos: videoJSON, captions: captionsJSON})

	tr, status, err := p.Transcript(context.Background(), "youtu.be/dQw4w9WgXcQ")
	require.NoError(t, err)
	require.NotNil(t, tr)
	assert.Equal(t, "Never gonna give you up", tr.Text())
	assert.True(t, status.Available)
}

func TestTranscriptConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.EnableWhisper = true
	cfg.TranscriptOrder = []string{"comments", "youtube"}

	tc := TranscriptConfig(cfg)
	assert.Equal(t, []string{"comments", "youtube"}, tc.Order)
	assert.True(t, tc.EnableWhisper)
	assert.Equal(t, "en", tc.Language)
	assert.Equal(t, 30.0, tc.MaxWhisperMinutes)
}

func TestFromConfig_WithoutAPIKey(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.MetadataDir = t.TempDir()

	p, err := FromConfig(context.Background(), cfg, logging.Discard())
	require.NoError(t, err)
	defer p.Close()
	assert.NotNil(t, p.Store())
}

func TestFromConfig_MinimalWiring(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.YouTubeAPIKey = "test-key"
	cfg.MetadataDir = t.TempDir()

	p, err := FromConfig(context.Background(), cfg, logging.Discard())
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, cfg.MetadataDir, p.Store().Dir())
	assert.Equal(t, filepath.Join(cfg.MetadataDir, "backups"), p.Store().BackupDir())
	assert.Equal(t, cfg.TranscriptOrder, p.Chain().Config().Order)
}
