package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyricwatch/lyricwatch/internal/domain"
)

// fakeCatalog implements CatalogSource for tests.
type fakeCatalog struct {
	tracks map[string][]Target
	err    error
}

func (c *fakeCatalog) ListTracks(ctx context.Context, segment string) ([]Target, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.tracks[segment], nil
}

func TestRegistryDispatchesAllJobTypes(t *testing.T) {
	registry := NewRegistry(&fakeCatalog{})
	for _, jobType := range []domain.JobType{
		domain.JobTypeSingleItem,
		domain.JobTypeBatchItem,
		domain.JobTypeBackgroundSweep,
	} {
		assert.Contains(t, registry, jobType)
	}
}

func TestEnumerateUnknownTypeIsFatal(t *testing.T) {
	registry := NewRegistry(&fakeCatalog{})
	job := &domain.Job{Type: domain.JobType("reindex")}

	_, err := registry.Enumerate(context.Background(), job)
	require.Error(t, err)
	assert.True(t, domain.IsFatalJobError(err))
	assert.ErrorIs(t, err, domain.ErrInvalidJobType)
}

func TestSingleItemEnumerator(t *testing.T) {
	registry := NewRegistry(&fakeCatalog{})

	t.Run("valid payload", func(t *testing.T) {
		job := &domain.Job{
			Type:    domain.JobTypeSingleItem,
			Payload: json.RawMessage(`{"track_ref":"trk-1","label":"Song One"}`),
		}
		list, err := registry.Enumerate(context.Background(), job)
		require.NoError(t, err)
		assert.False(t, list.OpenEnded)
		require.Len(t, list.Targets, 1)
		assert.Equal(t, Target{Ref: "trk-1", Label: "Song One"}, list.Targets[0])
	})

	t.Run("label defaults to ref", func(t *testing.T) {
		job := &domain.Job{
			Type:    domain.JobTypeSingleItem,
			Payload: json.RawMessage(`{"track_ref":"trk-2"}`),
		}
		list, err := registry.Enumerate(context.Background(), job)
		require.NoError(t, err)
		assert.Equal(t, "trk-2", list.Targets[0].Label)
	})

	t.Run("missing ref is fatal", func(t *testing.T) {
		job := &domain.Job{
			Type:    domain.JobTypeSingleItem,
			Payload: json.RawMessage(`{}`),
		}
		_, err := registry.Enumerate(context.Background(), job)
		assert.True(t, domain.IsFatalJobError(err))
	})

	t.Run("malformed JSON is fatal", func(t *testing.T) {
		job := &domain.Job{
			Type:    domain.JobTypeSingleItem,
			Payload: json.RawMessage(`{not json`),
		}
		_, err := registry.Enumerate(context.Background(), job)
		assert.True(t, domain.IsFatalJobError(err))
	})
}

func TestBatchItemEnumerator(t *testing.T) {
	registry := NewRegistry(&fakeCatalog{})

	t.Run("ordered targets", func(t *testing.T) {
		job := &domain.Job{
			Type: domain.JobTypeBatchItem,
			Payload: json.RawMessage(
				`{"tracks":[{"ref":"a","label":"A"},{"ref":"b"},{"ref":"c","label":"C"}]}`),
		}
		list, err := registry.Enumerate(context.Background(), job)
		require.NoError(t, err)
		assert.False(t, list.OpenEnded)
		require.Len(t, list.Targets, 3)
		assert.Equal(t, "a", list.Targets[0].Ref)
		assert.Equal(t, "b", list.Targets[1].Label)
		assert.Equal(t, "C", list.Targets[2].Label)
	})

	t.Run("empty batch is legal", func(t *testing.T) {
		job := &domain.Job{
			Type:    domain.JobTypeBatchItem,
			Payload: json.RawMessage(`{"tracks":[]}`),
		}
		list, err := registry.Enumerate(context.Background(), job)
		require.NoError(t, err)
		assert.Empty(t, list.Targets)
	})

	t.Run("track without ref is fatal", func(t *testing.T) {
		job := &domain.Job{
			Type:    domain.JobTypeBatchItem,
			Payload: json.RawMessage(`{"tracks":[{"label":"no ref"}]}`),
		}
		_, err := registry.Enumerate(context.Background(), job)
		assert.True(t, domain.IsFatalJobError(err))
	})
}

func TestSweepEnumerator(t *testing.T) {
	catalog := &fakeCatalog{
		tracks: map[string][]Target{
			"rock": {{Ref: "r1", Label: "Rock 1"}, {Ref: "r2", Label: "Rock 2"}},
		},
	}
	registry := NewRegistry(catalog)

	t.Run("sweeps are open-ended", func(t *testing.T) {
		job := &domain.Job{
			Type:    domain.JobTypeBackgroundSweep,
			Payload: json.RawMessage(`{"segment":"rock"}`),
		}
		list, err := registry.Enumerate(context.Background(), job)
		require.NoError(t, err)
		assert.True(t, list.OpenEnded)
		assert.Len(t, list.Targets, 2)
	})

	t.Run("catalog outage is infrastructure, not job failure", func(t *testing.T) {
		broken := NewRegistry(&fakeCatalog{err: errors.New("catalog down")})
		job := &domain.Job{
			Type:    domain.JobTypeBackgroundSweep,
			Payload: json.RawMessage(`{"segment":"rock"}`),
		}
		_, err := broken.Enumerate(context.Background(), job)
		require.Error(t, err)
		assert.True(t, domain.IsInfrastructureError(err))
		assert.False(t, domain.IsFatalJobError(err))
	})

	t.Run("no catalog source is fatal", func(t *testing.T) {
		noCatalog := NewRegistry(nil)
		job := &domain.Job{
			Type:    domain.JobTypeBackgroundSweep,
			Payload: json.RawMessage(`{"segment":"rock"}`),
		}
		_, err := noCatalog.Enumerate(context.Background(), job)
		assert.True(t, domain.IsFatalJobError(err))
	})
}
