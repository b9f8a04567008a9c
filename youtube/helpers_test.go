package youtube

import (
	"time"

	httpclient "ytpipeline/http"
	"ytpipeline/internal/retry"
)

// testHTTPClient returns a client that retries quickly against local servers.
func testHTTPClient() *httpclient.Client {
	cfg := httpclient.DefaultConfig()
	cfg.Retry = retry.Config{
		MaxRetries:     1,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
	return httpclient.New(cfg)
}
