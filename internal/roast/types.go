// Package roast defines the core domain types and capability interfaces
// for the roast-generation pipeline.
package roast

import (
	"context"
	"io"
	"time"
)

// Startup is the bounded, sanitized summary of a scraped website that is
// fed to the generation backend.
type Startup struct {
	URL         string
	Name        string
	Description string
	Headings    []string
	Summary     string

	// Synthesized reports that the page yielded nothing usable and the
	// fields were derived from the URL alone.
	Synthesized bool
}

// Roast is a persisted, AI-generated critique of a startup's website.
// Immutable once stored except FireCount, which is derived from votes.
type Roast struct {
	ID          string
	StartupName string
	StartupURL  string
	RoastText   string
	UserID      *string
	FireCount   int
	CreatedAt   time.Time
}

// RoastDetails is a Roast enriched with author and viewer-specific data.
type RoastDetails struct {
	Roast
	AuthorName *string
	Voted      bool
}

// VoteResult is the outcome of a vote toggle.
type VoteResult struct {
	FireCount int
	Voted     bool
}

// RenderedPage holds the outcome of fetching a single URL.
type RenderedPage struct {
	URL          string
	FinalURL     string
	StatusCode   int
	HTML         []byte
	Duration     time.Duration
	UsedHeadless bool
}

// Fetcher loads a URL and returns the rendered page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (RenderedPage, error)
}

// Extractor reduces a rendered page to a Startup. It never fails; when
// extraction yields nothing usable it degrades to a synthesized Startup.
type Extractor interface {
	Extract(pageURL string, html []byte) Startup
}

// Generator produces roast text for a Startup.
type Generator interface {
	Generate(ctx context.Context, startup Startup) (string, error)
}

// Store persists roasts and toggles votes with exactly-once fire-count
// bookkeeping.
type Store interface {
	CreateRoast(ctx context.Context, r Roast) error
	GetRoast(ctx context.Context, id string, viewerID *string) (RoastDetails, error)
	Leaderboard(ctx context.Context, limit int, viewerID *string) ([]RoastDetails, error)
	ToggleVote(ctx context.Context, userID, roastID string) (VoteResult, error)
}

// BlobStore archives page snapshots and returns a URI for the object.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher emits domain events to interested downstreams.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock abstracts time.Now for tests.
type Clock interface {
	Now() time.Time
}

// IDGenerator creates unique roast identifiers.
type IDGenerator interface {
	NewID() (string, error)
}

// RoastCreatedEvent is published after a roast is persisted.
type RoastCreatedEvent struct {
	RoastID     string    `json:"roast_id"`
	StartupName string    `json:"startup_name"`
	StartupURL  string    `json:"startup_url"`
	SnapshotURI string    `json:"snapshot_uri,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
