// Package fetcher composes the probe and headless fetchers into the
// site-fetch step of the roast pipeline.
package fetcher

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/roasting-id/roasting-service/internal/roast"
)

// Detector decides whether a probe result needs a headless render.
type Detector interface {
	ShouldEscalate(page roast.RenderedPage) bool
}

// Escalating fetches with the cheap probe first and re-renders with the
// headless browser when the probe result looks like an empty SPA shell
// or a bot-protection interstitial.
type Escalating struct {
	probe    roast.Fetcher
	headless roast.Fetcher
	detector Detector
	logger   *zap.Logger
}

// NewEscalating builds the composite fetcher. headless may be nil, in
// which case probe results are returned as-is.
func NewEscalating(probe roast.Fetcher, headless roast.Fetcher, detector Detector, logger *zap.Logger) *Escalating {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Escalating{
		probe:    probe,
		headless: headless,
		detector: detector,
		logger:   logger,
	}
}

// Fetch loads the URL. The URL is re-validated here even though callers
// validate it first; the fetcher is the last line of defense against
// internal-network probing.
func (e *Escalating) Fetch(ctx context.Context, url string) (roast.RenderedPage, error) {
	validated, err := roast.ValidateURL(url)
	if err != nil {
		return roast.RenderedPage{}, err
	}

	page, probeErr := e.probe.Fetch(ctx, validated)
	if probeErr == nil && (e.headless == nil || e.detector == nil || !e.detector.ShouldEscalate(page)) {
		return page, nil
	}

	if e.headless == nil {
		if probeErr != nil {
			return roast.RenderedPage{}, probeErr
		}
		return page, nil
	}

	if probeErr != nil {
		e.logger.Debug("probe fetch failed, trying headless", zap.String("url", validated), zap.Error(probeErr))
	} else {
		e.logger.Debug("escalating to headless render", zap.String("url", validated))
	}

	rendered, headlessErr := e.headless.Fetch(ctx, validated)
	if headlessErr != nil {
		if probeErr == nil {
			// The probe page is thin but real; better than nothing.
			e.logger.Warn("headless render failed, keeping probe result",
				zap.String("url", validated), zap.Error(headlessErr))
			return page, nil
		}
		return roast.RenderedPage{}, fmt.Errorf("headless after failed probe: %w", headlessErr)
	}
	return rendered, nil
}
