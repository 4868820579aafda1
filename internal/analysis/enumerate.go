package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lyricwatch/lyricwatch/internal/domain"
)

// TargetList is the resolved target sequence for one job.
type TargetList struct {
	// Targets is the ordered sequence of work units.
	Targets []Target

	// OpenEnded marks sweeps whose length is not advertised up front; the
	// job's total stays nil and progress reports only a raw count.
	OpenEnded bool
}

// TargetEnumerator resolves a job payload into its ordered target
// sequence. Enumeration must be deterministic: the worker re-enumerates on
// every dequeue and continues from the persisted cursor.
type TargetEnumerator interface {
	EnumerateTargets(ctx context.Context, payload json.RawMessage) (*TargetList, error)
}

// Registry is the explicit dispatch table from job type to enumerator.
// The job-type set is closed, so dispatch is a map lookup, not reflection.
type Registry map[domain.JobType]TargetEnumerator

// NewRegistry builds the dispatch table for all supported job types.
func NewRegistry(catalog CatalogSource) Registry {
	return Registry{
		domain.JobTypeSingleItem:      &singleItemEnumerator{},
		domain.JobTypeBatchItem:       &batchItemEnumerator{},
		domain.JobTypeBackgroundSweep: &sweepEnumerator{catalog: catalog},
	}
}

// Enumerate dispatches to the enumerator registered for the job's type.
// An unknown type is a fatal job error: the payload can never be resolved.
func (r Registry) Enumerate(ctx context.Context, job *domain.Job) (*TargetList, error) {
	enumerator, ok := r[job.Type]
	if !ok {
		return nil, &domain.FatalJobError{
			Err: fmt.Errorf("%w: %q", domain.ErrInvalidJobType, job.Type),
		}
	}
	return enumerator.EnumerateTargets(ctx, job.Payload)
}

// singleItemPayload is the payload shape for single-item jobs.
type singleItemPayload struct {
	TrackRef string `json:"track_ref"`
	Label    string `json:"label"`
}

type singleItemEnumerator struct{}

func (e *singleItemEnumerator) EnumerateTargets(ctx context.Context, payload json.RawMessage) (*TargetList, error) {
	var p singleItemPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, &domain.FatalJobError{Err: fmt.Errorf("malformed single-item payload: %w", err)}
	}
	if p.TrackRef == "" {
		return nil, &domain.FatalJobError{Err: errors.New("single-item payload missing track_ref")}
	}
	label := p.Label
	if label == "" {
		label = p.TrackRef
	}
	return &TargetList{
		Targets: []Target{{Ref: p.TrackRef, Label: label}},
	}, nil
}

// batchItemPayload is the payload shape for batch jobs, e.g. a playlist.
type batchItemPayload struct {
	Tracks []struct {
		Ref   string `json:"ref"`
		Label string `json:"label"`
	} `json:"tracks"`
}

type batchItemEnumerator struct{}

func (e *batchItemEnumerator) EnumerateTargets(ctx context.Context, payload json.RawMessage) (*TargetList, error) {
	var p batchItemPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, &domain.FatalJobError{Err: fmt.Errorf("malformed batch payload: %w", err)}
	}

	// An empty batch is legal: the job completes immediately with total=0.
	targets := make([]Target, 0, len(p.Tracks))
	for i, track := range p.Tracks {
		if track.Ref == "" {
			return nil, &domain.FatalJobError{
				Err: fmt.Errorf("batch payload track %d missing ref", i),
			}
		}
		label := track.Label
		if label == "" {
			label = track.Ref
		}
		targets = append(targets, Target{Ref: track.Ref, Label: label})
	}
	return &TargetList{Targets: targets}, nil
}

// sweepPayload is the payload shape for background sweeps.
type sweepPayload struct {
	Segment string `json:"segment"`
}

type sweepEnumerator struct {
	catalog CatalogSource
}

func (e *sweepEnumerator) EnumerateTargets(ctx context.Context, payload json.RawMessage) (*TargetList, error) {
	var p sweepPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, &domain.FatalJobError{Err: fmt.Errorf("malformed sweep payload: %w", err)}
	}
	if e.catalog == nil {
		return nil, &domain.FatalJobError{Err: errors.New("no catalog source configured for sweeps")}
	}

	targets, err := e.catalog.ListTracks(ctx, p.Segment)
	if err != nil {
		// The catalog being temporarily unreachable is not the job's fault.
		return nil, &domain.InfrastructureError{Op: "list_tracks", Err: err}
	}
	return &TargetList{Targets: targets, OpenEnded: true}, nil
}
