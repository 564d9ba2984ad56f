package models

// RoomVisibility defines who can discover a room.
type RoomVisibility string

const (
	RoomVisibilityPublic  RoomVisibility = "PUBLIC"
	RoomVisibilityPrivate RoomVisibility = "PRIVATE"
)

// GameSettings holds the room-level quiz configuration.
type GameSettings struct {
	QuestionCount          int     `json:"question_count"`
	ClipLengthSec          float64 `json:"clip_length_sec"`
	ClipStartOffsetSec     float64 `json:"clip_start_offset_sec"`
	AllowTrackClipOverride bool    `json:"allow_track_clip_override"`
}

// RoomSummary is the lobby-list view of a room.
type RoomSummary struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Visibility    RoomVisibility `json:"visibility"`
	HasPassword   bool           `json:"has_password"`
	PlayerCount   int            `json:"player_count"`
	MaxPlayers    int            `json:"max_players"`
	PlaylistCount int            `json:"playlist_count"`
	Settings      GameSettings   `json:"settings"`
}

// RoomDetail extends the summary with host information once joined.
type RoomDetail struct {
	RoomSummary
	HostClientID string `json:"host_client_id"`
}

// Participant is one member of a room as pushed by the server.
type Participant struct {
	ClientID string `json:"client_id"`
	Name     string `json:"name"`
	Online   bool   `json:"online"`
	Score    int    `json:"score"`
	Combo    int    `json:"combo"`
}

// ChatMessage is one entry of the bounded room chat history.
type ChatMessage struct {
	ID       string `json:"id"`
	ClientID string `json:"client_id"`
	Name     string `json:"name"`
	Text     string `json:"text"`
	SentAt   int64  `json:"sent_at"` // server epoch ms
}

// RoomState is the full authoritative room snapshot.
type RoomState struct {
	Room         RoomDetail    `json:"room"`
	Participants []Participant `json:"participants"`
	Messages     []ChatMessage `json:"messages"`
	ServerNow    int64         `json:"server_now"` // epoch ms at snapshot
}

// HostIs reports whether the given client id currently hosts the room.
func (r *RoomState) HostIs(clientID string) bool {
	return r.Room.HostClientID != "" && r.Room.HostClientID == clientID
}

// Participant returns the participant with the given client id, if present.
func (r *RoomState) Participant(clientID string) (Participant, bool) {
	for _, p := range r.Participants {
		if p.ClientID == clientID {
			return p, true
		}
	}
	return Participant{}, false
}
