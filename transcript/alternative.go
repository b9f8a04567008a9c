package transcript

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"ytpipeline/youtube"
)

// AlternativeStrategy tries secondary caption techniques in sequence and
// returns the first non-empty result.
type AlternativeStrategy struct {
	techniques []youtube.CaptionTechnique
	log        logrus.FieldLogger
}

// NewAlternativeStrategy creates the strategy over techniques, tried in order.
func NewAlternativeStrategy(techniques []youtube.CaptionTechnique, log logrus.FieldLogger) *AlternativeStrategy {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &AlternativeStrategy{techniques: techniques, log: log.WithField("component", "alternative-captions")}
}

func (s *AlternativeStrategy) Name() string { return StrategyAlternative }

// Attempt fails only when every technique fails.
func (s *AlternativeStrategy) Attempt(ctx context.Context, req Request) ([]Segment, error) {
	var errs []error
	for _, tech := range s.techniques {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		captions, err := tech.Fetch(ctx, req.VideoID)
		if err != nil {
			s.log.WithFields(logrus.Fields{"video_id": req.VideoID, "technique": tech.Name}).WithError(err).Debug("caption technique failed")
			errs = append(errs, fmt.Errorf("%s: %w", tech.Name, err))
			continue
		}
		if segs := fromCaptions(captions); len(segs) > 0 {
			return segs, nil
		}
	}
	if len(errs) == len(s.techniques) && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return nil, nil
}
