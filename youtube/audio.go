package youtube

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// AudioDownloader fetches a video's best audio stream with yt-dlp.
type AudioDownloader struct {
	// YtdlpPath is the yt-dlp executable. Empty means "yt-dlp" from PATH.
	YtdlpPath string
	// Timeout bounds a single download. Zero means no limit beyond ctx.
	Timeout time.Duration

	log logrus.FieldLogger
}

// NewAudioDownloader creates a downloader with the given executable and timeout.
func NewAudioDownloader(ytdlpPath string, timeout time.Duration, log logrus.FieldLogger) *AudioDownloader {
	if ytdlpPath == "" {
		ytdlpPath = "yt-dlp"
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &AudioDownloader{YtdlpPath: ytdlpPath, Timeout: timeout, log: log.WithField("component", "yt-dlp")}
}

// DownloadAudio writes the audio of videoID into dir with the file stem name
// and returns the path yt-dlp chose (the extension depends on the stream).
func (d *AudioDownloader) DownloadAudio(ctx context.Context, videoID, dir, name string) (string, error) {
	if _, err := exec.LookPath(d.YtdlpPath); err != nil {
		return "", fmt.Errorf("%w: %v", ErrYtdlpNotInstalled, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create audio directory: %w", err)
	}

	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	args := []string{
		"-f", "bestaudio",
		"-o", filepath.Join(dir, name+".%(ext)s"),
		"--no-playlist",
		"--no-warnings",
		"--print", "after_move:filepath",
		WatchURL(videoID),
	}

	cmd := exec.CommandContext(ctx, d.YtdlpPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		return "", &UpstreamError{Op: "yt-dlp audio", VideoID: videoID, Err: err}
	}

	path := lastPathLine(stdout.String())
	if path == "" {
		return "", &UpstreamError{Op: "yt-dlp audio", VideoID: videoID, Err: errors.New("no output path reported")}
	}

	d.log.WithFields(logrus.Fields{
		"video_id": videoID,
		"path":     path,
		"elapsed":  time.Since(start).Round(time.Millisecond),
	}).Debug("audio downloaded")
	return path, nil
}

// lastPathLine returns the last non-empty line of yt-dlp's --print output.
func lastPathLine(out string) string {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
