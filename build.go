package ytpipeline

import (
	"context"

	"github.com/sirupsen/logrus"

	httpclient "ytpipeline/http"
	"ytpipeline/internal/config"
	"ytpipeline/internal/retry"
	"ytpipeline/sheet"
	"ytpipeline/storage"
	"ytpipeline/transcript"
	"ytpipeline/youtube"
)

// TranscriptConfig converts the application config into chain settings.
func TranscriptConfig(cfg *config.Config) transcript.Config {
	return transcript.Config{
		Order:             cfg.TranscriptOrder,
		EnableWhisper:     cfg.EnableWhisper,
		EnableDescription: cfg.EnableDescription,
		EnableComments:    cfg.EnableComments,
		MaxWhisperMinutes: cfg.MaxWhisperMinutes,
		Language:          cfg.CaptionLanguage,
	}
}

// HTTPConfig converts the application's retry settings into client settings.
func HTTPConfig(cfg *config.Config) *httpclient.Config {
	hc := httpclient.DefaultConfig()
	hc.Retry = retry.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxBackoff:     cfg.MaxBackoff,
		Multiplier:     cfg.BackoffMultiplier,
		JitterFraction: retry.DefaultConfig().JitterFraction,
	}
	return hc
}

// FromConfig wires every component named in cfg: the Data API client (or
// yt-dlp when no API key is set), the caption clients, the speech-to-text stack when an OpenAI key is set, the
// transcript cache, the sheet view and any S3 backup sink.
func FromConfig(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (*Pipeline, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	var closers []func() error
	fail := func(err error) (*Pipeline, error) {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
		return nil, err
	}

	hc := httpclient.New(HTTPConfig(cfg))
	closers = append(closers, hc.Close)

	tcfg := TranscriptConfig(cfg)
	innertube := youtube.NewInnertubeClient(hc, "", tcfg.Language, log)

	// Without a Data API key metadata comes from yt-dlp and there is no
	// comment source.
	var source youtube.MetadataFetcher
	var comments youtube.CommentFetcher
	if cfg.YouTubeAPIKey != "" {
		api, err := youtube.NewAPIClient(ctx, cfg.YouTubeAPIKey, log)
		if err != nil {
			return fail(err)
		}
		source, comments = api, api
	} else {
		log.WithField("component", "pipeline").Warn("no YouTube API key set, fetching metadata with yt-dlp")
		source = youtube.NewYtdlpMetadataFetcher(cfg.YtdlpPath, cfg.YtdlpTimeout, log)
	}
	metadata := youtube.NewSharedFetcher(source)

	strategies := []transcript.Strategy{
		transcript.NewCaptionsStrategy(youtube.NewTimedtextClient(hc, ""), tcfg.Language),
		transcript.NewAlternativeStrategy(innertube.Techniques(), log),
		transcript.NewDescriptionStrategy(metadata),
	}
	if comments != nil {
		strategies = append(strategies, transcript.NewCommentsStrategy(comments))
	}
	if cfg.OpenAIAPIKey != "" {
		strategies = append(strategies, transcript.NewSpeechStrategy(transcript.SpeechConfig{
			Metadata:   metadata,
			Audio:      youtube.NewAudioDownloader(cfg.YtdlpPath, cfg.YtdlpTimeout, log),
			Transcoder: &transcript.FFmpegTranscoder{Path: cfg.FFmpegPath},
			STT:        transcript.NewWhisperClient(hc, cfg.OpenAIAPIKey, cfg.OpenAIBaseURL),
			MaxMinutes: tcfg.MaxWhisperMinutes,
			TempDir:    cfg.TempDir,
			Log:        log,
		}))
	} else if tcfg.Enabled(transcript.StrategyWhisper) {
		log.WithField("component", "pipeline").Warn("speech-to-text enabled but no OpenAI key set, skipping it")
	}

	cache, err := transcript.NewTieredCache(ctx, cfg.RedisURL, cfg.CacheTTL, log)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, cache.Close)
	chain := transcript.NewChain(tcfg, strategies, transcript.WithCache(cache), transcript.WithLogger(log))

	opts := []storage.Option{
		storage.WithBackupDir(cfg.BackupPath()),
		storage.WithLockTimeout(cfg.LockTimeout),
		storage.WithLogger(log),
		storage.WithRefetcher(metadata),
	}
	if cfg.SpreadsheetID != "" {
		view, err := sheet.NewFromCredentialsFile(ctx, cfg.SheetsCredentialsFile, cfg.SpreadsheetID, cfg.SheetName, log)
		if err != nil {
			return fail(err)
		}
		opts = append(opts, storage.WithView(view))
	}
	if cfg.S3Bucket != "" {
		sink, err := storage.NewS3BackupFromEnv(ctx, cfg.S3Bucket, cfg.S3Region, cfg.S3Prefix, cfg.S3UsePathStyle)
		if err != nil {
			return fail(err)
		}
		opts = append(opts, storage.WithBackupSink(sink))
	}
	store, err := storage.NewMetadataStore(cfg.MetadataDir, opts...)
	if err != nil {
		return fail(err)
	}

	p := New(metadata, chain, store, log)
	p.closers = closers
	return p, nil
}
