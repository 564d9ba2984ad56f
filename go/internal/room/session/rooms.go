package session

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/funcReveal/musicquiz-client/go/internal/models"
	"github.com/funcReveal/musicquiz-client/go/internal/room/events"
	"github.com/funcReveal/musicquiz-client/go/internal/room/upload"
)

// CreateRoomParams is the host's room-creation intent.
type CreateRoomParams struct {
	Name          string
	Password      string
	Visibility    models.RoomVisibility
	MaxPlayers    int
	Settings      models.GameSettings
	PlaylistTitle string
	Items         []models.PlaylistItem
}

// CreateRoom validates and normalizes the params, uploads the playlist in
// chunks (first chunk inline with the create call) and installs the created
// room. Returns false on any failure; the reason lands in the status text.
func (s *Store) CreateRoom(ctx context.Context, params CreateRoomParams) bool {
	if !s.begin(OpCreateRoom) {
		return false
	}
	defer s.end(OpCreateRoom)

	params.Name = strings.TrimSpace(params.Name)
	if params.Name == "" {
		s.setStatus("room name is required")
		return false
	}
	if len([]rune(params.Name)) > s.config.MaxRoomNameLen {
		s.setStatus("room name is too long")
		return false
	}
	if len(params.Items) == 0 {
		s.setStatus("a playlist with at least one track is required")
		return false
	}
	params.MaxPlayers = clampInt(params.MaxPlayers, 2, s.config.MaxPlayersLimit)
	params.Settings = s.clampSettings(params.Settings, len(params.Items))

	items := applyClipTiming(params.Items, params.Settings)
	head, rest := upload.Prepare(params.PlaylistTitle, items, s.config.Upload)

	s.mu.Lock()
	req := events.CreateRoomRequest{
		Name:       params.Name,
		Password:   params.Password,
		Visibility: params.Visibility,
		MaxPlayers: params.MaxPlayers,
		Settings:   params.Settings,
		Playlist:   head,
		ClientName: s.displayName,
	}
	s.mu.Unlock()

	ack, err := s.ch.CallStaged(ctx, events.CallCreateRoom, req,
		s.config.CreateProbeTimeout, s.config.CreateConfirmTimeout,
		func() { s.setStatus("server is slow to respond, still creating the room") })
	if err != nil {
		s.setStatus("room creation failed: " + err.Error())
		return false
	}
	if !ack.OK {
		s.setStatus("room creation failed: " + ack.Error)
		return false
	}

	var joined events.RoomJoinedPayload
	if err := ack.Decode(&joined); err != nil {
		s.setStatus("room creation reply was malformed")
		return false
	}
	s.applyJoined(&joined)

	// Confirmed transition: host-side conveniences may persist now.
	if params.Password != "" {
		s.local.SetRoomPassword(joined.Room.Room.ID, params.Password)
	}
	s.local.SetQuestionCount(params.Settings.QuestionCount)

	if err := s.uploader.SendRest(ctx, head, rest); err != nil {
		log.Error().Err(err).Msg("playlist upload aborted")
		s.setStatus("playlist upload failed: " + err.Error())
		return false
	}
	return true
}

// JoinRoom enters an existing room, preferring a cached password when none
// is supplied.
func (s *Store) JoinRoom(ctx context.Context, roomID, password string) bool {
	if !s.begin(OpJoinRoom) {
		return false
	}
	defer s.end(OpJoinRoom)

	if password == "" {
		password, _ = s.local.RoomPassword(roomID)
	}

	s.mu.Lock()
	req := events.JoinRoomRequest{RoomID: roomID, Password: password, ClientName: s.displayName}
	s.mu.Unlock()

	ack, err := s.ch.Call(ctx, events.CallJoinRoom, req)
	if err != nil {
		s.setStatus("could not join room: " + err.Error())
		return false
	}
	if !ack.OK {
		s.setStatus("could not join room: " + ack.Error)
		return false
	}

	var joined events.RoomJoinedPayload
	if err := ack.Decode(&joined); err != nil {
		s.setStatus("join reply was malformed")
		return false
	}
	s.applyJoined(&joined)
	return true
}

// LeaveRoom exits the current room, clears the persisted room id and
// unfreezes the session identity.
func (s *Store) LeaveRoom(ctx context.Context) bool {
	if !s.begin(OpLeaveRoom) {
		return false
	}
	defer s.end(OpLeaveRoom)

	ack, err := s.ch.Call(ctx, events.CallLeaveRoom, struct{}{})
	if err != nil {
		s.setStatus("leave failed: " + err.Error())
		return false
	}
	if !ack.OK {
		s.setStatus("leave failed: " + ack.Error)
		return false
	}
	s.exitRoom(true)
	return true
}

// SendChat posts one chat message; the message itself arrives back as a
// push.
func (s *Store) SendChat(ctx context.Context, text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	if len([]rune(text)) > s.config.MaxChatLen {
		s.setStatus("message is too long")
		return false
	}
	if !s.begin(OpChat) {
		return false
	}
	defer s.end(OpChat)

	ack, err := s.ch.Call(ctx, events.CallSendChat, events.SendChatRequest{Text: text})
	if err != nil {
		s.setStatus("message not sent: " + err.Error())
		return false
	}
	if !ack.OK {
		s.setStatus("message not sent: " + ack.Error)
		return false
	}
	return true
}

// UpdateSettings applies new room settings. Clip timing may depend on the
// settings, so after a successful ack the complete playlist is re-fetched
// and re-uploaded with re-derived timing; a re-sync failure is reported
// separately and does not roll back the already-successful settings change.
func (s *Store) UpdateSettings(ctx context.Context, maxPlayers int, settings models.GameSettings) bool {
	if !s.begin(OpUpdateSettings) {
		return false
	}
	defer s.end(OpUpdateSettings)

	s.mu.Lock()
	totalTracks := s.playlist.TotalCount
	oldSettings := models.GameSettings{}
	if s.room != nil {
		oldSettings = s.room.Room.Settings
	}
	title := s.playlist.Title
	s.mu.Unlock()

	maxPlayers = clampInt(maxPlayers, 2, s.config.MaxPlayersLimit)
	settings = s.clampSettings(settings, totalTracks)

	req := events.UpdateSettingsRequest{MaxPlayers: maxPlayers, Settings: settings}
	ack, err := s.ch.Call(ctx, events.CallUpdateSettings, req)
	if err != nil {
		s.setStatus("settings update failed: " + err.Error())
		return false
	}
	if !ack.OK {
		s.setStatus("settings update failed: " + ack.Error)
		return false
	}

	s.mu.Lock()
	if s.room != nil {
		s.room.Room.Settings = settings
		s.room.Room.MaxPlayers = maxPlayers
	}
	s.mu.Unlock()
	s.local.SetQuestionCount(settings.QuestionCount)
	s.notify()

	if !clipTimingChanged(oldSettings, settings) {
		return true
	}

	// Timing re-sync: previously-uploaded per-track clip bounds must stay
	// consistent with the new room defaults.
	items, err := s.fetchAllItems(ctx)
	if err != nil {
		s.setStatus("settings saved, but clip timing re-sync failed: " + err.Error())
		return true
	}
	if err := s.runPlaylistChange(ctx, title, items, settings); err != nil {
		s.setStatus("settings saved, but clip timing re-sync failed: " + err.Error())
		return true
	}
	return true
}

// KickParticipant removes a participant (host only).
func (s *Store) KickParticipant(ctx context.Context, clientID string) bool {
	if !s.begin(OpKick) {
		return false
	}
	defer s.end(OpKick)

	ack, err := s.ch.Call(ctx, events.CallKickParticipant, events.KickParticipantRequest{ClientID: clientID})
	if err != nil {
		s.setStatus("kick failed: " + err.Error())
		return false
	}
	if !ack.OK {
		s.setStatus("kick failed: " + ack.Error)
		return false
	}
	return true
}

// TransferHost hands the room to another participant (host only).
func (s *Store) TransferHost(ctx context.Context, clientID string) bool {
	if !s.begin(OpTransferHost) {
		return false
	}
	defer s.end(OpTransferHost)

	ack, err := s.ch.Call(ctx, events.CallTransferHost, events.TransferHostRequest{ClientID: clientID})
	if err != nil {
		s.setStatus("host transfer failed: " + err.Error())
		return false
	}
	if !ack.OK {
		s.setStatus("host transfer failed: " + ack.Error)
		return false
	}
	return true
}

// SuggestPlaylist proposes an alternate playlist or collection to the host.
func (s *Store) SuggestPlaylist(ctx context.Context, req events.SuggestPlaylistRequest) bool {
	if !s.begin(OpSuggest) {
		return false
	}
	defer s.end(OpSuggest)

	ack, err := s.ch.Call(ctx, events.CallSuggestPlaylist, req)
	if err != nil {
		s.setStatus("suggestion failed: " + err.Error())
		return false
	}
	if !ack.OK {
		s.setStatus("suggestion failed: " + ack.Error)
		return false
	}
	return true
}

// SetDisplayName stores the display name used for future joins.
func (s *Store) SetDisplayName(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	if err := s.local.SetDisplayName(name); err != nil {
		log.Warn().Err(err).Msg("could not persist display name")
	}
	s.mu.Lock()
	s.displayName = name
	s.mu.Unlock()
	s.notify()
	return true
}

// clampSettings normalizes game settings against the config bounds and the
// available track count.
func (s *Store) clampSettings(settings models.GameSettings, totalTracks int) models.GameSettings {
	if totalTracks > 0 {
		settings.QuestionCount = clampInt(settings.QuestionCount, 1, totalTracks)
	} else if settings.QuestionCount < 1 {
		settings.QuestionCount = 1
	}
	settings.ClipLengthSec = clampFloat(settings.ClipLengthSec, s.config.MinClipLengthSec, s.config.MaxClipLengthSec)
	settings.ClipStartOffsetSec = clampFloat(settings.ClipStartOffsetSec, 0, s.config.MaxClipOffsetSec)
	return settings
}

func clipTimingChanged(a, b models.GameSettings) bool {
	return a.ClipLengthSec != b.ClipLengthSec ||
		a.ClipStartOffsetSec != b.ClipStartOffsetSec ||
		a.AllowTrackClipOverride != b.AllowTrackClipOverride
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
