package transcript

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"ytpipeline/youtube"
)

// AudioExtractor downloads a video's audio-only stream into dir and returns
// the written file's path.
type AudioExtractor interface {
	DownloadAudio(ctx context.Context, videoID, dir, name string) (string, error)
}

// Transcoder converts an audio file to mono 16 kHz low-bitrate audio.
type Transcoder interface {
	Transcode(ctx context.Context, inPath, outPath string) error
}

// SpeechToText transcribes an audio file into timed segments.
type SpeechToText interface {
	Transcribe(ctx context.Context, audioPath string) ([]Segment, error)
}

// SpeechStrategy transcribes the video's audio. Temporary audio files are
// removed whether or not transcription succeeds.
type SpeechStrategy struct {
	metadata   youtube.MetadataFetcher
	audio      AudioExtractor
	transcoder Transcoder
	stt        SpeechToText
	maxMinutes float64
	tempDir    string
	log        logrus.FieldLogger
}

// SpeechConfig holds SpeechStrategy's collaborators and limits.
type SpeechConfig struct {
	Metadata   youtube.MetadataFetcher
	Audio      AudioExtractor
	Transcoder Transcoder
	STT        SpeechToText
	MaxMinutes float64
	// TempDir holds intermediate audio. Empty means os.TempDir().
	TempDir string
	Log     logrus.FieldLogger
}

// NewSpeechStrategy creates the speech-to-text strategy.
func NewSpeechStrategy(cfg SpeechConfig) *SpeechStrategy {
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	if cfg.Log == nil {
		cfg.Log = logrus.StandardLogger()
	}
	return &SpeechStrategy{
		metadata:   cfg.Metadata,
		audio:      cfg.Audio,
		transcoder: cfg.Transcoder,
		stt:        cfg.STT,
		maxMinutes: cfg.MaxMinutes,
		tempDir:    cfg.TempDir,
		log:        cfg.Log.WithField("component", "speech"),
	}
}

func (s *SpeechStrategy) Name() string { return StrategyWhisper }

// Attempt rejects videos longer than the ceiling with ErrTooLong before any
// audio is downloaded.
func (s *SpeechStrategy) Attempt(ctx context.Context, req Request) ([]Segment, error) {
	meta, err := requestMetadata(ctx, req, s.metadata)
	if err != nil {
		return nil, err
	}
	minutes := youtube.ToMinutes(meta.DurationDisplay)
	if minutes > s.maxMinutes {
		return nil, fmt.Errorf("%w: %.1f minutes exceeds %.1f", ErrTooLong, minutes, s.maxMinutes)
	}

	// Everything yt-dlp and ffmpeg write, partial files included, lives in
	// a per-attempt scratch directory removed on every exit path.
	if err := os.MkdirAll(s.tempDir, 0o755); err != nil {
		return nil, fmt.Errorf("create temp directory: %w", err)
	}
	scratch, err := os.MkdirTemp(s.tempDir, "stt-*")
	if err != nil {
		return nil, fmt.Errorf("create scratch directory: %w", err)
	}
	defer s.removeAll(scratch)

	name := "audio-" + uuid.NewString()
	downloaded, err := s.audio.DownloadAudio(ctx, req.VideoID, scratch, name)
	if err != nil {
		return nil, fmt.Errorf("extract audio: %w", err)
	}

	normalized := filepath.Join(scratch, name+"-16k.mp3")
	if err := s.transcoder.Transcode(ctx, downloaded, normalized); err != nil {
		return nil, fmt.Errorf("transcode audio: %w", err)
	}

	segs, err := s.stt.Transcribe(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("transcribe: %w", err)
	}
	s.log.WithFields(logrus.Fields{"video_id": req.VideoID, "segments": len(segs), "minutes": minutes}).Debug("audio transcribed")
	return segs, nil
}

func (s *SpeechStrategy) removeAll(dir string) {
	if err := os.RemoveAll(dir); err != nil {
		s.log.WithError(err).WithField("path", dir).Warn("remove temp audio")
	}
}
