package ytpipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"ytpipeline/storage"
	"ytpipeline/transcript"
	"ytpipeline/youtube"
)

// VideoData is the result of processing one video.
type VideoData struct {
	VideoID    string                  `json:"videoId"`
	SourceURL  string                  `json:"sourceUrl"`
	Metadata   *youtube.VideoMetadata  `json:"metadata"`
	Transcript *transcript.Transcript  `json:"transcript"`
	Status     transcript.Status       `json:"transcriptStatus"`
	Record     *storage.MetadataRecord `json:"record"`
}

// Pipeline runs metadata acquisition, transcript resolution and record
// storage for single videos. It is safe for concurrent use.
type Pipeline struct {
	metadata youtube.MetadataFetcher
	chain    *transcript.Chain
	store    *storage.MetadataStore
	log      logrus.FieldLogger
	now      func() time.Time
	closers  []func() error
}

// New assembles a pipeline from its parts. Use FromConfig to build one
// from configuration.
func New(metadata youtube.MetadataFetcher, chain *transcript.Chain, store *storage.MetadataStore, log logrus.FieldLogger) *Pipeline {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Pipeline{
		metadata: metadata,
		chain:    chain,
		store:    store,
		log:      log.WithField("component", "pipeline"),
		now:      time.Now,
	}
}

// Store returns the metadata store.
func (p *Pipeline) Store() *storage.MetadataStore { return p.store }

// Chain returns the transcript chain.
func (p *Pipeline) Chain() *transcript.Chain { return p.chain }

// FetchMetadata fetches metadata without storing it.
func (p *Pipeline) FetchMetadata(ctx context.Context, videoIDOrURL string) (*youtube.VideoMetadata, error) {
	return p.metadata.FetchMetadata(ctx, videoIDOrURL)
}

// Transcript resolves a transcript without touching the store. A nil
// transcript with a nil error means none could be found.
func (p *Pipeline) Transcript(ctx context.Context, videoIDOrURL string) (*transcript.Transcript, transcript.Status, error) {
	videoID, ok := youtube.ExtractVideoID(videoIDOrURL)
	if !ok {
		return nil, transcript.Classify(nil), fmt.Errorf("%w: %q", ErrInvalidInput, videoIDOrURL)
	}
	t, err := p.chain.Resolve(ctx, transcript.Request{VideoID: videoID})
	if err != nil {
		return nil, transcript.Classify(nil), err
	}
	return t, transcript.Classify(t), nil
}

// Process fetches metadata and resolves the transcript concurrently,
// writes the metadata record and marks it processed. A missing transcript
// is reported through Status, not as an error; a metadata failure aborts
// before anything is stored.
func (p *Pipeline) Process(ctx context.Context, videoIDOrURL string) (*VideoData, error) {
	videoID, ok := youtube.ExtractVideoID(videoIDOrURL)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidInput, videoIDOrURL)
	}
	log := p.log.WithField("video_id", videoID)
	start := p.now()

	var (
		meta *youtube.VideoMetadata
		t    *transcript.Transcript
	)
	load := p.metadataOnce(videoID)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		meta, err = load(gctx)
		if err != nil {
			return fmt.Errorf("fetch metadata: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		t, err = p.chain.Resolve(gctx, transcript.Request{VideoID: videoID, LoadMetadata: load})
		return err
	})
	if err := g.Wait(); err != nil {
		log.WithError(err).Warn("processing failed")
		return nil, err
	}

	if _, err := p.store.Write(ctx, videoID, meta); err != nil {
		return nil, fmt.Errorf("store metadata: %w", err)
	}

	processedAt := p.now().UTC()
	record, err := p.store.UpdateWorkflowFields(ctx, videoID, storage.WorkflowUpdate{
		ProcessedAt:       &processedAt,
		IncrementAttempts: true,
	})
	if err != nil {
		return nil, fmt.Errorf("mark processed: %w", err)
	}

	status := transcript.Classify(t)
	log.WithFields(logrus.Fields{
		"source":   status.Source,
		"quality":  status.Quality,
		"segments": status.SegmentCount,
		"elapsed":  p.now().Sub(start).String(),
	}).Info("video processed")

	return &VideoData{
		VideoID:    videoID,
		SourceURL:  youtube.WatchURL(videoID),
		Metadata:   &record.OriginalMetadata.VideoMetadata,
		Transcript: t,
		Status:     status,
		Record:     record,
	}, nil
}

// metadataOnce returns a loader that fetches videoID's metadata on first use
// and returns that same result to every later call.
func (p *Pipeline) metadataOnce(videoID string) func(context.Context) (*youtube.VideoMetadata, error) {
	var (
		once sync.Once
		meta *youtube.VideoMetadata
		err  error
	)
	return func(ctx context.Context) (*youtube.VideoMetadata, error) {
		once.Do(func() {
			meta, err = p.metadata.FetchMetadata(ctx, videoID)
		})
		if err != nil {
			return nil, err
		}
		return meta.Clone(), nil
	}
}

// Close releases network clients and caches opened by FromConfig.
func (p *Pipeline) Close() error {
	var errs []error
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
