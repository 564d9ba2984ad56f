package session

import (
	"github.com/rs/zerolog/log"

	"github.com/funcReveal/musicquiz-client/go/internal/models"
	"github.com/funcReveal/musicquiz-client/go/internal/room/events"
)

// handlePush merges one authoritative server push into the store. It runs
// on the channel's read goroutine, so pushes apply strictly in arrival
// order. Pushes tagged with a room id other than the live current room are
// stale fan-out from a room this client already left and are dropped.
func (s *Store) handlePush(typ events.PushType, payload interface{}) {
	switch p := payload.(type) {
	case events.RoomListPayload:
		s.clockSyn.SyncOffset(p.ServerNow)
		s.mu.Lock()
		s.rooms = p.Rooms
		s.mu.Unlock()

	case events.RoomJoinedPayload:
		s.applyJoined(&p)
		return // applyJoined notifies

	case events.ParticipantsUpdatedPayload:
		s.clockSyn.SyncOffset(p.ServerNow)
		if s.staleRoom(p.RoomID) {
			return
		}
		s.mu.Lock()
		if s.room != nil {
			s.room.Participants = p.Participants
			if p.HostClientID != "" {
				s.room.Room.HostClientID = p.HostClientID
			}
			s.room.Room.PlayerCount = len(p.Participants)
		}
		s.mu.Unlock()

	case events.UserLeftPayload:
		if s.staleRoom(p.RoomID) {
			return
		}
		s.mu.Lock()
		if s.room != nil {
			kept := s.room.Participants[:0]
			for _, part := range s.room.Participants {
				if part.ClientID != p.ClientID {
					kept = append(kept, part)
				}
			}
			s.room.Participants = kept
			s.room.Room.PlayerCount = len(kept)
		}
		s.mu.Unlock()

	case events.PlaylistProgressPayload:
		if s.staleRoom(p.RoomID) {
			return
		}
		s.mu.Lock()
		s.playlist.ReceivedCount = p.ReceivedCount
		s.playlist.TotalCount = p.TotalCount
		s.playlist.Ready = p.Ready
		s.mu.Unlock()

	case events.PlaylistUpdatedPayload:
		if s.staleRoom(p.RoomID) {
			return
		}
		s.mu.Lock()
		s.playlist = p.Playlist
		// Metadata only: items must be re-paged.
		s.receivedItems = nil
		s.itemsGen++
		if s.room != nil {
			s.room.Room.PlaylistCount = p.Playlist.TotalCount
		}
		s.mu.Unlock()

	case events.ChatMessagePayload:
		s.clockSyn.SyncOffset(p.ServerNow)
		if s.staleRoom(p.RoomID) {
			return
		}
		s.mu.Lock()
		if s.room != nil {
			s.room.Messages = append(s.room.Messages, p.Message)
			if over := len(s.room.Messages) - s.config.ChatHistoryLimit; over > 0 {
				s.room.Messages = s.room.Messages[over:]
			}
		}
		s.mu.Unlock()

	case events.GameStartedPayload:
		s.clockSyn.SyncOffset(p.ServerNow)
		if s.staleRoom(p.RoomID) {
			return
		}
		s.applyGame(&p.Game)

	case events.GameUpdatedPayload:
		s.clockSyn.SyncOffset(p.ServerNow)
		if s.staleRoom(p.RoomID) {
			return
		}
		s.applyGame(&p.Game)

	case events.KickedPayload:
		log.Info().Str("reason", p.Reason).Msg("kicked from room")
		s.mu.Lock()
		s.rebannedUntil = p.RebannedUntil
		s.statusText = "removed from room"
		s.mu.Unlock()
		s.exitRoom(true)
		return // exitRoom notifies

	case events.SuggestionUpdatedPayload:
		if s.staleRoom(p.RoomID) {
			return
		}
		s.mu.Lock()
		s.suggestions = p.Suggestions
		s.mu.Unlock()

	default:
		return
	}
	s.notify()
}

// staleRoom reports whether a push belongs to a room this client is no
// longer in. An empty id means the push is not room-scoped.
func (s *Store) staleRoom(roomID string) bool {
	if roomID == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currentRoomID != roomID {
		log.Debug().Str("room_id", roomID).Str("current", s.currentRoomID).Msg("ignoring stale room push")
		return true
	}
	return false
}

// applyGame replaces the game snapshot wholesale. The snapshot is trusted
// as-is, never locally extrapolated; a pending answer whose question no
// longer exists is discarded on the spot.
func (s *Store) applyGame(game *models.GameState) {
	s.mu.Lock()
	gameCopy := *game
	s.game = &gameCopy
	if s.pending != nil {
		stale := gameCopy.Status != models.GameStatusPlaying ||
			gameCopy.Phase != models.GamePhaseGuess ||
			gameCopy.Key() != s.pending.key
		if stale {
			s.clearPendingLocked()
		}
	}
	s.mu.Unlock()
}
