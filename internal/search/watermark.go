package search

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/renameio/v2"
)

// SyncState is the persisted per-index watermark file. A nil timestamp means
// the index has never completed a sync and the next run scans everything.
type SyncState struct {
	Events   *time.Time `json:"events"`
	Segments *time.Time `json:"segments"`
}

// Watermark returns the stored timestamp for an index, or the zero time.
func (s *SyncState) Watermark(index string) time.Time {
	var ts *time.Time
	switch index {
	case IndexEvents:
		ts = s.Events
	case IndexSegments:
		ts = s.Segments
	}
	if ts == nil {
		return time.Time{}
	}
	return *ts
}

// Advance records a new watermark for an index.
func (s *SyncState) Advance(index string, ts time.Time) {
	switch index {
	case IndexEvents:
		s.Events = &ts
	case IndexSegments:
		s.Segments = &ts
	}
}

// LoadSyncState reads the watermark file. A missing file is not an error;
// it yields an empty state so the first run scans everything.
func LoadSyncState(path string) (*SyncState, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &SyncState{}, nil
		}
		return nil, fmt.Errorf("reading sync state: %w", err)
	}
	var state SyncState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("parsing sync state %s: %w", path, err)
	}
	return &state, nil
}

// SaveSyncState persists the watermark file atomically (write-then-rename)
// so a crash mid-write never corrupts the previous state.
func SaveSyncState(path string, state *SyncState) error {
	raw, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding sync state: %w", err)
	}
	if err := renameio.WriteFile(path, append(raw, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing sync state %s: %w", path, err)
	}
	return nil
}
