package session

import (
	"github.com/funcReveal/musicquiz-client/go/internal/models"
)

// ClipWindow is the resolved [Start, End) playback window for one track
// plus the tier that produced it.
type ClipWindow struct {
	StartSec float64
	EndSec   float64
	Source   models.TimingSource
}

// ResolveClip picks the clip window for a track: the track's own collection
// clip bounds when the room allows per-track overrides and the bounds are
// usable, otherwise the room defaults clamped into the track duration.
func ResolveClip(track models.PlaylistItem, defaults models.GameSettings, allowOverride bool) ClipWindow {
	if allowOverride && track.ClipStartSec != nil && track.ClipEndSec != nil {
		start, end := *track.ClipStartSec, *track.ClipEndSec
		if end > start && start >= 0 && (track.DurationSec == 0 || start < track.DurationSec) {
			if track.DurationSec > 0 && end > track.DurationSec {
				end = track.DurationSec
			}
			return ClipWindow{StartSec: start, EndSec: end, Source: models.TimingSourceTrackClip}
		}
	}

	start := defaults.ClipStartOffsetSec
	length := defaults.ClipLengthSec
	if track.DurationSec > 0 {
		if start >= track.DurationSec {
			start = 0
		}
		if start+length > track.DurationSec {
			length = track.DurationSec - start
		}
	}
	return ClipWindow{StartSec: start, EndSec: start + length, Source: models.TimingSourceRoomSettings}
}

// applyClipTiming re-derives the applied window for every item against the
// given room settings, tagging each item with the source that won.
func applyClipTiming(items []models.PlaylistItem, settings models.GameSettings) []models.PlaylistItem {
	out := make([]models.PlaylistItem, len(items))
	for i, item := range items {
		win := ResolveClip(item, settings, settings.AllowTrackClipOverride)
		item.StartSec = win.StartSec
		item.EndSec = win.EndSec
		item.TimingSource = win.Source
		out[i] = item
	}
	return out
}
