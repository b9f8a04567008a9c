package transcript

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpclient "ytpipeline/http"
	"ytpipeline/internal/retry"
)

func testHTTPClient() *httpclient.Client {
	cfg := httpclient.DefaultConfig()
	cfg.Retry = retry.Config{MaxRetries: 1, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond, Multiplier: 2}
	return httpclient.New(cfg)
}

func TestWhisperClient_Transcribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/audio/transcriptions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		assert.Equal(t, "whisper-1", r.FormValue("model"))
		assert.Equal(t, "verbose_json", r.FormValue("response_format"))
		assert.Equal(t, "segment", r.FormValue("timestamp_granularities[]"))

		f, hdr, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "fake mp3", string(data))
		assert.Equal(t, "clip.mp3", hdr.Filename)

		fmt.Fprint(w, `{"text":"hello world again","segments":[
		  {"id":0,"start":0.0,"end":2.5,"text":" hello world"},
		  {"id":1,"start":2.5,"end":2.9,"text":"   "},
		  {"id":2,"start":2.9,"end":7.25,"text":" again"}
		]}`)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "clip.mp3")
	require.NoError(t, os.WriteFile(path, []byte("fake mp3"), 0o644))

	wc := NewWhisperClient(testHTTPClient(), "sk-test", srv.URL+"/v1/")
	segs, err := wc.Transcribe(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []Segment{
		{Text: "hello world", StartMs: 0, DurationMs: 2500},
		{Text: "again", StartMs: 2900, DurationMs: 4350},
	}, segs)
}

func TestWhisperClient_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "clip.mp3")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	_, err := NewWhisperClient(testHTTPClient(), "", srv.URL).Transcribe(context.Background(), path)
	assert.Error(t, err, "missing key")

	_, err = NewWhisperClient(testHTTPClient(), "sk", srv.URL).Transcribe(context.Background(), path)
	assert.Equal(t, http.StatusUnauthorized, httpclient.StatusCode(err))

	_, err = NewWhisperClient(testHTTPClient(), "sk", srv.URL).Transcribe(context.Background(), filepath.Join(t.TempDir(), "missing.mp3"))
	assert.Error(t, err)
}
