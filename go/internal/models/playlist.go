package models

// TimingSource records which clip bounds were actually applied to a track.
type TimingSource string

const (
	TimingSourceRoomSettings TimingSource = "room_settings"
	TimingSourceTrackClip    TimingSource = "track_clip"
)

// PlaylistItem is one uploadable track.
type PlaylistItem struct {
	Title       string  `json:"title"`
	Answer      string  `json:"answer"`
	SourceURL   string  `json:"source_url"`
	Thumbnail   string  `json:"thumbnail,omitempty"`
	Uploader    string  `json:"uploader,omitempty"`
	DurationSec float64 `json:"duration_sec"`

	// Applied clip window, [start, end).
	StartSec float64 `json:"start_sec"`
	EndSec   float64 `json:"end_sec"`

	// Optional clip bounds carried by a saved collection, distinct from the
	// applied window above.
	ClipStartSec *float64 `json:"clip_start_sec,omitempty"`
	ClipEndSec   *float64 `json:"clip_end_sec,omitempty"`

	TimingSource TimingSource `json:"timing_source"`
}

// PlaylistState is the incremental playlist view. Ready flips only once
// ReceivedCount reaches TotalCount; items are fetched in pages, never
// transferred wholesale automatically.
type PlaylistState struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	TotalCount    int    `json:"total_count"`
	ReceivedCount int    `json:"received_count"`
	Ready         bool   `json:"ready"`
	PageSize      int    `json:"page_size"`
}
