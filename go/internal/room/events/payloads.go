package events

import (
	"github.com/funcReveal/musicquiz-client/go/internal/models"
)

// Push payloads. Every payload that carries server_now seeds the client
// clock offset opportunistically; there is no dedicated time-sync call.

// RoomListPayload is the payload for a RoomListUpdated push.
type RoomListPayload struct {
	Rooms     []models.RoomSummary `json:"rooms"`
	ServerNow int64                `json:"server_now"`
}

// RoomJoinedPayload is the payload for a RoomJoined push and for the acks
// of JoinRoom, CreateRoom and ResumeSession.
type RoomJoinedPayload struct {
	Room     models.RoomState     `json:"room"`
	Playlist models.PlaylistState `json:"playlist"`
	Game     *models.GameState    `json:"game,omitempty"`
	// SessionID echoes the identity the server bound this participant to.
	SessionID string `json:"session_id"`
}

// ParticipantsUpdatedPayload carries the replacement participant list.
type ParticipantsUpdatedPayload struct {
	RoomID       string               `json:"room_id"`
	Participants []models.Participant `json:"participants"`
	HostClientID string               `json:"host_client_id"`
	ServerNow    int64                `json:"server_now"`
}

// UserLeftPayload identifies a departed participant.
type UserLeftPayload struct {
	RoomID   string `json:"room_id"`
	ClientID string `json:"client_id"`
}

// PlaylistProgressPayload reports chunked-upload receipt accounting.
type PlaylistProgressPayload struct {
	RoomID        string `json:"room_id"`
	ReceivedCount int    `json:"received_count"`
	TotalCount    int    `json:"total_count"`
	Ready         bool   `json:"ready"`
}

// PlaylistUpdatedPayload replaces playlist metadata; items must be re-paged.
type PlaylistUpdatedPayload struct {
	RoomID   string               `json:"room_id"`
	Playlist models.PlaylistState `json:"playlist"`
}

// ChatMessagePayload appends one message to the bounded history.
type ChatMessagePayload struct {
	RoomID    string             `json:"room_id"`
	Message   models.ChatMessage `json:"message"`
	ServerNow int64              `json:"server_now"`
}

// GameStartedPayload carries the initial game snapshot.
type GameStartedPayload struct {
	RoomID    string           `json:"room_id"`
	Game      models.GameState `json:"game"`
	ServerNow int64            `json:"server_now"`
}

// GameUpdatedPayload replaces the game snapshot wholesale.
type GameUpdatedPayload struct {
	RoomID    string           `json:"room_id"`
	Game      models.GameState `json:"game"`
	ServerNow int64            `json:"server_now"`
}

// KickedPayload removes this client from the room, optionally with a
// timestamp before which rejoin attempts will be refused.
type KickedPayload struct {
	Reason        string `json:"reason,omitempty"`
	RebannedUntil *int64 `json:"rebanned_until,omitempty"` // epoch ms
}

// Suggestion is an alternate playlist or collection proposed by a guest.
type Suggestion struct {
	ID           string `json:"id"`
	ClientID     string `json:"client_id"`
	Kind         string `json:"kind"` // "public" | "collection"
	Title        string `json:"title"`
	URL          string `json:"url,omitempty"`
	CollectionID string `json:"collection_id,omitempty"`
	ReadToken    string `json:"read_token,omitempty"`
	TrackCount   int    `json:"track_count"`
}

// SuggestionUpdatedPayload replaces the room suggestion list.
type SuggestionUpdatedPayload struct {
	RoomID      string       `json:"room_id"`
	Suggestions []Suggestion `json:"suggestions"`
}

// Call payloads.

// PlaylistUpload is the inline head of a chunked playlist transfer: the
// first chunk rides the room-create or playlist-change call, the rest
// follow as UploadPlaylistChunk calls tagged with the same upload id.
type PlaylistUpload struct {
	UploadID   string                `json:"upload_id"`
	Title      string                `json:"title"`
	TotalCount int                   `json:"total_count"`
	Items      []models.PlaylistItem `json:"items"`
	IsLast     bool                  `json:"is_last"`
}

// CreateRoomRequest creates a room with the first playlist chunk inline.
type CreateRoomRequest struct {
	Name       string                `json:"name"`
	Password   string                `json:"password,omitempty"`
	Visibility models.RoomVisibility `json:"visibility"`
	MaxPlayers int                   `json:"max_players"`
	Settings   models.GameSettings   `json:"settings"`
	Playlist   PlaylistUpload        `json:"playlist"`
	ClientName string                `json:"client_name"`
}

// JoinRoomRequest joins an existing room.
type JoinRoomRequest struct {
	RoomID     string `json:"room_id"`
	Password   string `json:"password,omitempty"`
	ClientName string `json:"client_name"`
}

// ResumeSessionRequest re-binds a previous session after reconnect.
type ResumeSessionRequest struct {
	RoomID     string `json:"room_id"`
	SessionID  string `json:"session_id"`
	ClientName string `json:"client_name"`
}

// SendChatRequest posts one chat message.
type SendChatRequest struct {
	Text string `json:"text"`
}

// PlaylistPageRequest fetches one fixed-size page of playlist items.
type PlaylistPageRequest struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

// PlaylistPageResult is the ack payload for GetPlaylistPage.
type PlaylistPageResult struct {
	Items      []models.PlaylistItem `json:"items"`
	TotalCount int                   `json:"total_count"`
}

// ChangePlaylistRequest swaps the room playlist, first chunk inline.
type ChangePlaylistRequest struct {
	Playlist PlaylistUpload `json:"playlist"`
}

// UploadChunkRequest appends one chunk to an in-progress transfer.
type UploadChunkRequest struct {
	UploadID string                `json:"upload_id"`
	Seq      int                   `json:"seq"`
	Items    []models.PlaylistItem `json:"items"`
	IsLast   bool                  `json:"is_last"`
}

// UploadChunkResult is the ack payload for UploadPlaylistChunk.
type UploadChunkResult struct {
	ReceivedCount int `json:"received_count"`
}

// StartGameRequest starts a game with the host's question count.
type StartGameRequest struct {
	QuestionCount int `json:"question_count"`
}

// SubmitAnswerRequest locks in one choice for one question instance.
type SubmitAnswerRequest struct {
	StartedAt     int64 `json:"started_at"`
	QuestionIndex int   `json:"question_index"`
	ChoiceIndex   int   `json:"choice_index"`
}

// UpdateSettingsRequest replaces the room game settings.
type UpdateSettingsRequest struct {
	MaxPlayers int                 `json:"max_players"`
	Settings   models.GameSettings `json:"settings"`
}

// KickParticipantRequest removes a participant (host only).
type KickParticipantRequest struct {
	ClientID string `json:"client_id"`
}

// TransferHostRequest hands the room to another participant (host only).
type TransferHostRequest struct {
	ClientID string `json:"client_id"`
}

// SuggestPlaylistRequest proposes an alternate playlist or collection.
type SuggestPlaylistRequest struct {
	Kind         string `json:"kind"` // "public" | "collection"
	URL          string `json:"url,omitempty"`
	CollectionID string `json:"collection_id,omitempty"`
	ReadToken    string `json:"read_token,omitempty"`
	Title        string `json:"title"`
}
