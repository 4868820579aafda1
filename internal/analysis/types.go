package analysis

import "context"

// Target references one work unit: a single track whose lyrics will be
// fetched and scored.
type Target struct {
	// Ref is the opaque track reference understood by the lyrics provider.
	Ref string

	// Label is the human-readable name shown in progress snapshots.
	Label string
}

// UnitResult is the outcome of analyzing one target.
type UnitResult struct {
	// TargetRef echoes the analyzed target.
	TargetRef string

	// Explicit reports whether the content was flagged.
	Explicit bool

	// Score is the scorer's confidence in [0, 1].
	Score float64

	// Categories lists the content categories that triggered the flag.
	Categories []string
}

// UnitExecutor executes a single unit of work. Implementations must be
// safely re-invokable for the same (target, index) pair: an interruption
// that lands after a unit completes but before its cursor advance is
// persisted causes that unit to be re-attempted on resume.
type UnitExecutor interface {
	ExecuteUnit(ctx context.Context, target Target, index int) (*UnitResult, error)
}

// LyricsProvider fetches the lyrics text for a track reference.
type LyricsProvider interface {
	FetchLyrics(ctx context.Context, ref string) (string, error)
}

// ContentScore is the scorer's verdict on one lyrics text.
type ContentScore struct {
	Explicit   bool     `json:"explicit"`
	Score      float64  `json:"score"`
	Categories []string `json:"categories"`
}

// ContentScorer evaluates lyrics text for explicit content.
type ContentScorer interface {
	ScoreContent(ctx context.Context, lyrics string) (*ContentScore, error)
}

// CatalogSource lists track references for background sweeps. The catalog
// itself (songs, playlists) lives outside this system.
type CatalogSource interface {
	// ListTracks returns the ordered targets of a catalog segment.
	// Enumeration must be deterministic for a given segment, since a
	// resumed job re-enumerates and continues from its cursor.
	ListTracks(ctx context.Context, segment string) ([]Target, error)
}
