package tracks

import (
	"context"
	"errors"
)

var ErrUnknownClip = errors.New("unknown clip")

// Track is one playable entry from the catalog provider.
type Track struct {
	ClipID string
	Title  string
	Artist string
}

// Provider is the external audio-catalog/playback collaborator. The core
// never sees provider auth or device discovery; it only asks for playable
// tracks and start/stop by clip ID.
type Provider interface {
	ListPlayableTracks(ctx context.Context, poolRefs []string) ([]Track, error)
	StartClip(ctx context.Context, clipID, deviceID string) error
	StopClip(ctx context.Context, deviceID string) error
}

// Static serves a fixed catalog. Used in tests and local dev where no real
// playback device exists.
type Static struct {
	Tracks []Track
}

func (s *Static) ListPlayableTracks(_ context.Context, poolRefs []string) ([]Track, error) {
	if len(poolRefs) == 0 {
		return nil, nil
	}
	want := make(map[string]bool, len(poolRefs))
	for _, ref := range poolRefs {
		want[ref] = true
	}
	out := make([]Track, 0, len(poolRefs))
	for _, t := range s.Tracks {
		if want[t.ClipID] {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *Static) StartClip(_ context.Context, clipID, _ string) error {
	for _, t := range s.Tracks {
		if t.ClipID == clipID {
			return nil
		}
	}
	return ErrUnknownClip
}

func (s *Static) StopClip(context.Context, string) error { return nil }
