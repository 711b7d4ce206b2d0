package playlist

import (
	"context"
	"fmt"

	"TandemFM/core/player"
	"TandemFM/logger"
	"TandemFM/model"
)

// Fetcher retrieves the partner's track collection for a room. The
// repository-backed implementation lives with the server wiring; tests use a
// stub.
type Fetcher interface {
	FetchPartnerTracks(ctx context.Context, roomID string) ([]model.Track, error)
}

// Merger folds a partner's track collection into the local library on room
// join. Existing local tracks are never overwritten or removed; only tracks
// with unseen identities are appended, keeping their own AddedAt so sort
// order survives the merge.
type Merger struct {
	engine  *player.Engine
	fetcher Fetcher
}

// NewMerger creates a merger for an engine.
func NewMerger(engine *player.Engine, fetcher Fetcher) *Merger {
	return &Merger{engine: engine, fetcher: fetcher}
}

// MergeFrom fetches the partner collection for a room and appends unseen
// tracks. Returns how many were added. A fetch failure surfaces as
// ErrPlaylistFetchFailed and leaves the local collection untouched.
func (m *Merger) MergeFrom(ctx context.Context, roomID string) (int, error) {
	partner, err := m.fetcher.FetchPartnerTracks(ctx, roomID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", model.ErrPlaylistFetchFailed, err)
	}

	seen := make(map[string]struct{})
	for _, t := range m.engine.Tracks() {
		seen[t.ID] = struct{}{}
	}

	added := 0
	for _, t := range partner {
		if _, ok := seen[t.ID]; ok {
			continue
		}
		seen[t.ID] = struct{}{}
		m.engine.AddTrack(t)
		added++
	}

	if added > 0 {
		logger.Info("merged partner playlist",
			logger.String("room", roomID),
			logger.Int("added", added))
	}
	return added, nil
}
