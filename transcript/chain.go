package transcript

import (
	"context"
	"errors"
	"slices"

	"github.com/sirupsen/logrus"

	"ytpipeline/youtube"
)

// Strategy names, also used in Config.Order.
const (
	StrategyYouTube     = "youtube"
	StrategyAlternative = "alternative-libs"
	StrategyWhisper     = "whisper"
	StrategyDescription = "description"
	StrategyComments    = "comments"
)

// ErrTooLong is returned by the speech strategy when a video exceeds the
// configured duration ceiling.
var ErrTooLong = errors.New("transcript: video too long for speech-to-text")

// Config selects and orders the strategies a Chain runs.
type Config struct {
	// Order lists strategy names in the order they are tried. Empty means
	// only the primary caption strategy runs.
	Order []string
	// EnableWhisper, EnableDescription and EnableComments gate the
	// corresponding strategies; a strategy must be listed and enabled.
	EnableWhisper     bool
	EnableDescription bool
	EnableComments    bool
	// MaxWhisperMinutes is the speech-to-text duration ceiling.
	MaxWhisperMinutes float64
	// Language is the preferred caption language.
	Language string
}

// DefaultConfig returns the canonical order with speech-to-text disabled.
func DefaultConfig() Config {
	return Config{
		Order:             []string{StrategyYouTube, StrategyAlternative, StrategyWhisper, StrategyDescription, StrategyComments},
		EnableWhisper:     false,
		EnableDescription: true,
		EnableComments:    true,
		MaxWhisperMinutes: 30,
		Language:          "en",
	}
}

// Enabled reports whether the named strategy may run under c.
func (c Config) Enabled(name string) bool {
	listed := slices.Contains(c.Order, name)
	switch name {
	case StrategyYouTube:
		return listed || len(c.Order) == 0
	case StrategyWhisper:
		return listed && c.EnableWhisper
	case StrategyDescription:
		return listed && c.EnableDescription
	case StrategyComments:
		return listed && c.EnableComments
	default:
		return listed
	}
}

// Request is what a strategy receives. Metadata may be nil; strategies that
// need it fetch it themselves.
type Request struct {
	VideoID  string
	Metadata *youtube.VideoMetadata
	// LoadMetadata, when set and Metadata is nil, supplies metadata the
	// caller is already fetching so strategies do not fetch it again.
	LoadMetadata func(ctx context.Context) (*youtube.VideoMetadata, error)
}

// Strategy is one self-contained way of producing segments. An empty result
// with a nil error means the strategy found nothing.
type Strategy interface {
	Name() string
	Attempt(ctx context.Context, req Request) ([]Segment, error)
}

// Cache stores resolved transcripts by video ID.
type Cache interface {
	Get(ctx context.Context, videoID string) (*Transcript, bool, error)
	Set(ctx context.Context, videoID string, t *Transcript) error
}

// Chain tries strategies in configured order and returns the first
// non-empty result.
type Chain struct {
	cfg        Config
	strategies map[string]Strategy
	cache      Cache
	log        logrus.FieldLogger
}

// ChainOption configures a Chain.
type ChainOption func(*Chain)

// WithCache consults c before running strategies and stores results in it.
func WithCache(c Cache) ChainOption {
	return func(ch *Chain) { ch.cache = c }
}

// WithLogger sets the chain's logger.
func WithLogger(log logrus.FieldLogger) ChainOption {
	return func(ch *Chain) {
		if log != nil {
			ch.log = log
		}
	}
}

// NewChain builds a chain from cfg and the available strategies, keyed by
// Name. A later strategy with a duplicate name replaces an earlier one.
func NewChain(cfg Config, strategies []Strategy, opts ...ChainOption) *Chain {
	c := &Chain{
		cfg:        cfg,
		strategies: make(map[string]Strategy, len(strategies)),
		log:        logrus.StandardLogger(),
	}
	for _, s := range strategies {
		c.strategies[s.Name()] = s
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.WithField("component", "transcript-chain")
	return c
}

// Config returns the chain's configuration.
func (c *Chain) Config() Config { return c.cfg }

// plan returns the strategies to try, in order.
func (c *Chain) plan() []Strategy {
	order := c.cfg.Order
	if len(order) == 0 {
		order = []string{StrategyYouTube}
	}
	var out []Strategy
	seen := make(map[string]bool, len(order))
	for _, name := range order {
		if seen[name] || !c.cfg.Enabled(name) {
			continue
		}
		seen[name] = true
		s, ok := c.strategies[name]
		if !ok {
			c.log.WithField("strategy", name).Debug("strategy not configured, skipping")
			continue
		}
		out = append(out, s)
	}
	return out
}

// Resolve returns the first non-empty transcript. Strategy errors are logged
// and treated as empty. When every strategy comes up empty it returns
// (nil, nil). The only error returned is ctx's.
func (c *Chain) Resolve(ctx context.Context, req Request) (*Transcript, error) {
	log := c.log.WithField("video_id", req.VideoID)

	if c.cache != nil {
		t, ok, err := c.cache.Get(ctx, req.VideoID)
		switch {
		case err != nil:
			log.WithError(err).Warn("transcript cache read failed")
		case ok:
			log.WithField("strategy", t.Strategy).Debug("transcript served from cache")
			return t, nil
		}
	}

	for _, s := range c.plan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		entry := log.WithField("strategy", s.Name())
		segs, err := s.Attempt(ctx, req)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			entry.WithError(err).Warn("transcript strategy failed")
			continue
		}
		if len(segs) == 0 {
			entry.Debug("transcript strategy produced nothing")
			continue
		}

		t := &Transcript{Segments: segs, Strategy: s.Name()}
		entry.WithField("segments", len(segs)).Info("transcript resolved")

		if c.cache != nil {
			if err := c.cache.Set(ctx, req.VideoID, t); err != nil {
				log.WithError(err).Warn("transcript cache write failed")
			}
		}
		return t, nil
	}

	log.Info("no transcript available")
	return nil, nil
}
