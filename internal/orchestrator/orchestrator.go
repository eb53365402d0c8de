// Package orchestrator sequences the roast pipeline: validate, fetch,
// extract, consume budget, generate, persist, announce.
package orchestrator

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/roasting-id/roasting-service/internal/extract"
	"github.com/roasting-id/roasting-service/internal/metrics"
	"github.com/roasting-id/roasting-service/internal/roast"
)

// EventRoastCreated is the event name used on the publisher.
const EventRoastCreated = "roast.created"

// BudgetConsumer charges generation attempts against the daily cost
// ceiling.
type BudgetConsumer interface {
	ConsumeBudget() bool
	RemainingBudget() int
}

// Config tunes pipeline behavior.
type Config struct {
	// SnapshotPrefix is the object-path prefix for archived pages.
	SnapshotPrefix string
	// FallbackOnFetchError degrades an unreachable site to a URL-only
	// startup instead of failing the request.
	FallbackOnFetchError bool
}

// Deps are the pipeline collaborators. Blobs and Publisher are
// optional; everything else is required.
type Deps struct {
	Fetcher   roast.Fetcher
	Extractor roast.Extractor
	Generator roast.Generator
	Store     roast.Store
	Budget    BudgetConsumer
	Blobs     roast.BlobStore
	Publisher roast.Publisher
	IDs       roast.IDGenerator
	Clock     roast.Clock
	Logger    *zap.Logger
}

// Orchestrator runs the roast pipeline for one URL at a time.
type Orchestrator struct {
	cfg  Config
	deps Deps
}

// New validates the collaborators and builds an Orchestrator.
func New(cfg Config, deps Deps) (*Orchestrator, error) {
	switch {
	case deps.Fetcher == nil:
		return nil, fmt.Errorf("fetcher is required")
	case deps.Extractor == nil:
		return nil, fmt.Errorf("extractor is required")
	case deps.Generator == nil:
		return nil, fmt.Errorf("generator is required")
	case deps.Store == nil:
		return nil, fmt.Errorf("store is required")
	case deps.Budget == nil:
		return nil, fmt.Errorf("budget consumer is required")
	case deps.IDs == nil:
		return nil, fmt.Errorf("id generator is required")
	case deps.Clock == nil:
		return nil, fmt.Errorf("clock is required")
	}
	if cfg.SnapshotPrefix == "" {
		cfg.SnapshotPrefix = "snapshots"
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Orchestrator{cfg: cfg, deps: deps}, nil
}

// CreateRoast runs the full pipeline for one URL and returns the
// persisted roast. Failures carry the typed error for the stage that
// broke; nothing is persisted unless every stage before it succeeded.
func (o *Orchestrator) CreateRoast(ctx context.Context, rawURL string, userID *string) (roast.Roast, error) {
	canonical, err := roast.ValidateURL(rawURL)
	if err != nil {
		metrics.ObserveRoast("failure", string(roast.StageAdmission))
		return roast.Roast{}, err
	}
	logger := o.deps.Logger.With(zap.String("url", canonical))

	var startup roast.Startup
	page, fetchErr := o.deps.Fetcher.Fetch(ctx, canonical)
	switch {
	case fetchErr == nil:
		mode := "probe"
		if page.UsedHeadless {
			mode = "headless"
		}
		metrics.ObserveFetch(mode, page.Duration)
		startup = o.deps.Extractor.Extract(canonical, page.HTML)
	case o.cfg.FallbackOnFetchError:
		logger.Warn("fetch failed, roasting from url alone", zap.Error(fetchErr))
		startup = extract.Fallback(canonical, fetchErr.Error())
	default:
		metrics.ObserveRoast("failure", string(roast.StageFetch))
		return roast.Roast{}, fetchErr
	}

	if !o.deps.Budget.ConsumeBudget() {
		metrics.ObserveRoast("failure", string(roast.StageAdmission))
		metrics.ObserveAdmissionRejection(string(roast.ReasonDailyCostExceeded))
		return roast.Roast{}, &roast.AdmissionError{Reason: roast.ReasonDailyCostExceeded}
	}
	metrics.SetDailyBudgetRemaining(o.deps.Budget.RemainingBudget())

	text, err := o.deps.Generator.Generate(ctx, startup)
	if err != nil {
		metrics.ObserveGenerationAttempt("failure")
		metrics.ObserveRoast("failure", string(roast.StageGenerate))
		return roast.Roast{}, err
	}
	metrics.ObserveGenerationAttempt("success")

	id, err := o.deps.IDs.NewID()
	if err != nil {
		metrics.ObserveRoast("failure", string(roast.StagePersist))
		return roast.Roast{}, &roast.PersistenceError{Err: fmt.Errorf("new roast id: %w", err)}
	}
	createdAt := o.deps.Clock.Now().UTC()

	snapshotURI := o.archiveSnapshot(ctx, logger, id, createdAt, page)

	r := roast.Roast{
		ID:          id,
		StartupName: startup.Name,
		StartupURL:  canonical,
		RoastText:   text,
		UserID:      userID,
		CreatedAt:   createdAt,
	}
	if err := o.deps.Store.CreateRoast(ctx, r); err != nil {
		metrics.ObserveRoast("failure", string(roast.StagePersist))
		return roast.Roast{}, err
	}

	o.announce(ctx, logger, r, snapshotURI)
	metrics.ObserveRoast("success", "")
	logger.Info("roast created",
		zap.String("roast_id", id),
		zap.String("startup_name", startup.Name),
		zap.Bool("synthesized", startup.Synthesized))
	return r, nil
}

// archiveSnapshot uploads the rendered page for later inspection. Best
// effort: a failed upload never fails the roast.
func (o *Orchestrator) archiveSnapshot(ctx context.Context, logger *zap.Logger, id string, createdAt time.Time, page roast.RenderedPage) string {
	if o.deps.Blobs == nil || len(page.HTML) == 0 {
		return ""
	}
	path := fmt.Sprintf("%s/%s/%s.html", o.cfg.SnapshotPrefix, createdAt.Format("2006/01/02"), id)
	uri, err := o.deps.Blobs.PutObject(ctx, path, "text/html", bytes.NewReader(page.HTML))
	if err != nil {
		logger.Warn("snapshot archive failed", zap.String("path", path), zap.Error(err))
		return ""
	}
	return uri
}

// announce publishes the roast-created event. Best effort as well.
func (o *Orchestrator) announce(ctx context.Context, logger *zap.Logger, r roast.Roast, snapshotURI string) {
	if o.deps.Publisher == nil {
		return
	}
	event := roast.RoastCreatedEvent{
		RoastID:     r.ID,
		StartupName: r.StartupName,
		StartupURL:  r.StartupURL,
		SnapshotURI: snapshotURI,
		CreatedAt:   r.CreatedAt,
	}
	if _, err := o.deps.Publisher.Publish(ctx, EventRoastCreated, event); err != nil {
		logger.Warn("roast-created publish failed", zap.String("roast_id", r.ID), zap.Error(err))
	}
}
