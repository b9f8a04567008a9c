package transcript

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// FFmpegTranscoder normalizes audio with the ffmpeg binary.
type FFmpegTranscoder struct {
	// Path is the ffmpeg executable. Empty means "ffmpeg" from PATH.
	Path string
}

// transcodeArgs builds the ffmpeg argument list for a mono 16 kHz 32 kbps MP3.
func transcodeArgs(inPath, outPath string) []string {
	return ffmpeg.Input(inPath).
		Output(outPath, ffmpeg.KwArgs{
			"ac":  1,
			"ar":  16000,
			"b:a": "32k",
			"f":   "mp3",
		}).
		OverWriteOutput().
		GetArgs()
}

// Transcode writes the normalized form of inPath to outPath.
func (t *FFmpegTranscoder) Transcode(ctx context.Context, inPath, outPath string) error {
	bin := t.Path
	if bin == "" {
		bin = "ffmpeg"
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, transcodeArgs(inPath, outPath)...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("ffmpeg: %w: %s", err, lastLine(stderr.String()))
	}
	return nil
}

func lastLine(s string) string {
	b := bytes.TrimSpace([]byte(s))
	if i := bytes.LastIndexByte(b, '\n'); i >= 0 {
		return string(b[i+1:])
	}
	return string(b)
}
