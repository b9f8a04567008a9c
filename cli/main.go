package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/sirupsen/logrus"

	"ytpipeline"
	"ytpipeline/api"
	"ytpipeline/internal/config"
	"ytpipeline/internal/logging"
	"ytpipeline/storage"
	"ytpipeline/transcript"
	"ytpipeline/youtube"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "process":
		err = cmdProcess(args)
	case "metadata":
		err = cmdMetadata(args)
	case "transcript":
		err = cmdTranscript(args)
	case "workflow":
		err = cmdWorkflow(args)
	case "reconcile":
		err = cmdReconcile(args)
	case "serve":
		err = cmdServe(args)
	case "version":
		fmt.Println("ytpipeline", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `ytpipeline - YouTube metadata and transcript acquisition

Usage:
  ytpipeline process [flags] <url-or-id>     Fetch metadata and transcript, store the record
  ytpipeline metadata [flags] <url-or-id>    Show stored metadata, recovering it if needed
  ytpipeline transcript [flags] <url-or-id>  Resolve a transcript without storing anything
  ytpipeline workflow [flags] <video-id>     Update workflow fields of a stored record
  ytpipeline reconcile <video-id>            Compare a record with its master sheet row
  ytpipeline serve [flags]                   Run the HTTP API
  ytpipeline version                         Print the version

Examples:
  ytpipeline process https://youtu.be/dQw4w9WgXcQ
  ytpipeline transcript --format srt dQw4w9WgXcQ
  ytpipeline workflow --title "Better title" --attempt dQw4w9WgXcQ
  ytpipeline serve --addr :9090

Configuration is read from ytpipeline.json, .env and YTPIPELINE_* variables.
For help on a specific command: ytpipeline <command> -h
`)
}

// exitCode maps well-known failures to distinct exit statuses.
func exitCode(err error) int {
	switch {
	case errors.Is(err, ytpipeline.ErrInvalidInput), errors.Is(err, storage.ErrInvalidInput):
		return 2
	case errors.Is(err, ytpipeline.ErrVideoNotFound), errors.Is(err, ytpipeline.ErrNotFound),
		errors.Is(err, ytpipeline.ErrNoReliableSource):
		return 3
	default:
		return 1
	}
}

// setup loads configuration and builds the pipeline.
func setup(ctx context.Context) (*config.Config, *logrus.Logger, *ytpipeline.Pipeline, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	log := logging.NewWithOutput(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	p, err := ytpipeline.FromConfig(ctx, cfg, log)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, log, p, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func singleArg(fs *flag.FlagSet, what string) (string, error) {
	argv := fs.Args()
	if len(argv) == 0 {
		fs.Usage()
		return "", fmt.Errorf("missing %s", what)
	}
	return argv[0], nil
}

func newFlagSet(name, usage string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: ytpipeline %s\n\nFlags:\n", usage)
		fs.PrintDefaults()
	}
	return fs
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func cmdProcess(args []string) error {
	fs := newFlagSet("process", "process [flags] <url-or-id>")
	asJSON := fs.Bool("json", false, "Print the full result as JSON")
	timeout := fs.Duration("timeout", 15*time.Minute, "Overall timeout")
	fs.Parse(args)

	input, err := singleArg(fs, "url-or-id")
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, *timeout)
	defer cancelTimeout()

	_, _, p, err := setup(ctx)
	if err != nil {
		return err
	}
	defer p.Close()

	fmt.Fprintf(os.Stderr, "Processing %s...\n", input)
	data, err := p.Process(ctx, input)
	if err != nil {
		return err
	}
	if *asJSON {
		return printJSON(data)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Video ID:\t%s\n", data.VideoID)
	fmt.Fprintf(w, "Title:\t%s\n", data.Metadata.Title)
	fmt.Fprintf(w, "Channel:\t%s\n", data.Metadata.ChannelName)
	fmt.Fprintf(w, "Duration:\t%s\n", data.Metadata.DurationDisplay)
	fmt.Fprintf(w, "Views:\t%d\n", data.Metadata.ViewCount)
	fmt.Fprintf(w, "Transcript:\t%s (%s quality, %d segments, %d chars)\n",
		data.Status.Source, data.Status.Quality, data.Status.SegmentCount, data.Status.Length)
	fmt.Fprintf(w, "Checksum:\t%s\n", data.Record.OriginalMetadata.Checksum)
	fmt.Fprintf(w, "Backup:\t%v\n", data.Record.SystemIntegrity.BackupCreated)
	return w.Flush()
}

func cmdMetadata(args []string) error {
	fs := newFlagSet("metadata", "metadata [flags] <url-or-id>")
	fresh := fs.Bool("fresh", false, "Fetch from the Data API instead of the store")
	fs.Parse(args)

	input, err := singleArg(fs, "url-or-id")
	if err != nil {
		return err
	}
	videoID, ok := youtube.ExtractVideoID(input)
	if !ok {
		return fmt.Errorf("%w: %q", ytpipeline.ErrInvalidInput, input)
	}

	ctx, cancel := signalContext()
	defer cancel()

	_, _, p, err := setup(ctx)
	if err != nil {
		return err
	}
	defer p.Close()

	if *fresh {
		meta, err := p.FetchMetadata(ctx, videoID)
		if err != nil {
			return err
		}
		return printJSON(meta)
	}

	meta, err := p.Store().GetReliable(ctx, videoID)
	if err != nil {
		return err
	}
	return printJSON(meta)
}

func cmdTranscript(args []string) error {
	fs := newFlagSet("transcript", "transcript [flags] <url-or-id>")
	formatName := fs.String("format", "txt", "Output format: json, vtt, srt, ttml or txt")
	order := fs.String("order", "", "Comma-separated strategy order, overriding configuration")
	whisper := fs.Bool("whisper", false, "Enable speech-to-text")
	noDescription := fs.Bool("no-description", false, "Disable the description strategy")
	noComments := fs.Bool("no-comments", false, "Disable the comments strategy")
	fs.Parse(args)

	input, err := singleArg(fs, "url-or-id")
	if err != nil {
		return err
	}
	format, err := transcript.ParseFormat(*formatName)
	if err != nil {
		return err
	}
	// Flags override configuration through the same variables config.Load reads.
	if *order != "" {
		os.Setenv("YTPIPELINE_TRANSCRIPT_ORDER", *order)
	}
	if *whisper {
		os.Setenv("YTPIPELINE_ENABLE_WHISPER", "true")
	}
	if *noDescription {
		os.Setenv("YTPIPELINE_ENABLE_DESCRIPTION", "false")
	}
	if *noComments {
		os.Setenv("YTPIPELINE_ENABLE_COMMENTS", "false")
	}

	ctx, cancel := signalContext()
	defer cancel()

	_, _, p, err := setup(ctx)
	if err != nil {
		return err
	}
	defer p.Close()

	fmt.Fprintf(os.Stderr, "Resolving transcript for %s...\n", input)
	t, status, err := p.Transcript(ctx, input)
	if err != nil {
		return err
	}
	if t == nil {
		fmt.Fprintln(os.Stderr, "No transcript available for this video")
		return nil
	}
	fmt.Fprintf(os.Stderr, "Source: %s, quality: %s, %d segments\n", status.Source, status.Quality, status.SegmentCount)

	out, err := transcript.Export(t, format)
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}

func cmdWorkflow(args []string) error {
	fs := newFlagSet("workflow", "workflow [flags] <video-id>")
	title := fs.String("title", "", "AI-enhanced title")
	script := fs.String("script", "", "Set scriptGenerated (true/false)")
	processed := fs.Bool("processed", false, "Set processedAt to now")
	attempt := fs.Bool("attempt", false, "Increment processingAttempts")
	costs := fs.String("cost", "", "Cost entries as name=amount, comma-separated")
	fs.Parse(args)

	videoID, err := singleArg(fs, "video-id")
	if err != nil {
		return err
	}

	upd := storage.WorkflowUpdate{IncrementAttempts: *attempt}
	if *title != "" {
		upd.AIEnhancedTitle = title
	}
	if *script != "" {
		b, err := strconv.ParseBool(*script)
		if err != nil {
			return fmt.Errorf("-script: %w", err)
		}
		upd.ScriptGenerated = &b
	}
	if *processed {
		now := time.Now().UTC()
		upd.ProcessedAt = &now
	}
	if *costs != "" {
		upd.CostTracking, err = parseCosts(*costs)
		if err != nil {
			return err
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	_, _, p, err := setup(ctx)
	if err != nil {
		return err
	}
	defer p.Close()

	record, err := p.Store().UpdateWorkflowFields(ctx, videoID, upd)
	if err != nil {
		return err
	}
	return printJSON(record.WorkflowMetadata)
}

func parseCosts(s string) (map[string]float64, error) {
	out := make(map[string]float64)
	for _, part := range strings.Split(s, ",") {
		name, amount, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid cost entry %q (use name=amount)", part)
		}
		v, err := strconv.ParseFloat(amount, 64)
		if err != nil || v < 0 {
			return nil, fmt.Errorf("invalid cost amount %q", amount)
		}
		out[name] = v
	}
	return out, nil
}

func cmdReconcile(args []string) error {
	fs := newFlagSet("reconcile", "reconcile <video-id>")
	fs.Parse(args)

	videoID, err := singleArg(fs, "video-id")
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	_, _, p, err := setup(ctx)
	if err != nil {
		return err
	}
	defer p.Close()

	result, err := p.Store().Reconcile(ctx, videoID)
	if err != nil {
		return err
	}
	if result.IsValid {
		fmt.Printf("%s: record matches sheet\n", videoID)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FIELD\tSTORED\tSHEET")
	for _, d := range result.Discrepancies {
		fmt.Fprintf(w, "%s\t%s\t%s\n", d.Field, d.Stored, d.View)
	}
	return w.Flush()
}

func cmdServe(args []string) error {
	fs := newFlagSet("serve", "serve [flags]")
	addr := fs.String("addr", "", "Listen address (default from config)")
	fs.Parse(args)

	ctx, cancel := signalContext()
	defer cancel()

	cfg, log, p, err := setup(ctx)
	if err != nil {
		return err
	}
	defer p.Close()

	if *addr == "" {
		*addr = cfg.ListenAddr
	}
	srv := &http.Server{
		Addr:              *addr,
		Handler:           api.NewRouter(p, p.Store(), log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", *addr).Info("http api listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()
	return srv.Shutdown(shutdownCtx)
}
