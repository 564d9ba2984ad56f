package session

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/funcReveal/musicquiz-client/go/internal/channel"
	"github.com/funcReveal/musicquiz-client/go/internal/clock"
	"github.com/funcReveal/musicquiz-client/go/internal/models"
	"github.com/funcReveal/musicquiz-client/go/internal/room/events"
	"github.com/funcReveal/musicquiz-client/go/internal/room/upload"
)

// Status is the session connection state.
type Status string

const (
	StatusDisconnected Status = "DISCONNECTED"
	StatusConnecting   Status = "CONNECTING"
	StatusIdle         Status = "CONNECTED_IDLE"
	StatusInRoom       Status = "CONNECTED_IN_ROOM"
	StatusReconnecting Status = "RECONNECTING"
)

// Operation names used for per-operation in-flight flags.
const (
	OpCreateRoom     = "create_room"
	OpJoinRoom       = "join_room"
	OpLeaveRoom      = "leave_room"
	OpChat           = "chat"
	OpPlaylistPage   = "playlist_page"
	OpChangePlaylist = "change_playlist"
	OpUpdateSettings = "update_settings"
	OpStartGame      = "start_game"
	OpKick           = "kick"
	OpTransferHost   = "transfer_host"
	OpSuggest        = "suggest"
)

// Channel is the slice of the session channel the store drives.
type Channel interface {
	Dial(ctx context.Context, auth channel.AuthPayload) error
	Close() error
	Call(ctx context.Context, call events.CallType, payload interface{}) (channel.Ack, error)
	CallWithTimeout(ctx context.Context, call events.CallType, payload interface{}, timeout time.Duration) (channel.Ack, error)
	CallStaged(ctx context.Context, call events.CallType, payload interface{}, probe, confirm time.Duration, onSlow func()) (channel.Ack, error)
	OnPush(h channel.PushHandler)
	OnDisconnect(fn func(err error))
}

// LocalStore is the slice of the persistence adapter the store uses. Only
// confirmed transitions write through it.
type LocalStore interface {
	DeviceID() (string, error)
	DisplayName() (string, error)
	SetDisplayName(name string) error
	LastRoomID() (string, error)
	SetLastRoomID(roomID string) error
	ClearLastRoomID() error
	QuestionCount() (int, error)
	SetQuestionCount(n int) error
	RoomPassword(roomID string) (string, error)
	SetRoomPassword(roomID, password string) error
	DeleteRoomPassword(roomID string) error
}

// Config holds store tuning and validation bounds.
type Config struct {
	// Two-stage room-create timeout: a short probe, then a much longer
	// confirmation window. The policy favors eventual success over
	// duplicate creation; the thresholds are tuning, not contract.
	CreateProbeTimeout   time.Duration
	CreateConfirmTimeout time.Duration

	// AnswerGuardInterval rate-limits answer submissions to one network
	// send per interval; faster calls coalesce.
	AnswerGuardInterval time.Duration

	PageSize int
	Upload   upload.Options

	MaxRoomNameLen   int
	MaxChatLen       int
	MaxPlayersLimit  int
	MinClipLengthSec float64
	MaxClipLengthSec float64
	MaxClipOffsetSec float64

	ReconnectAttempts int
	ReconnectBackoff  time.Duration
	ChatHistoryLimit  int
}

// DefaultConfig returns the default store tuning.
func DefaultConfig() Config {
	return Config{
		CreateProbeTimeout:   8 * time.Second,
		CreateConfirmTimeout: 45 * time.Second,
		AnswerGuardInterval:  400 * time.Millisecond,
		PageSize:             10,
		Upload:               upload.DefaultOptions(),
		MaxRoomNameLen:       30,
		MaxChatLen:           300,
		MaxPlayersLimit:      16,
		MinClipLengthSec:     3,
		MaxClipLengthSec:     30,
		MaxClipOffsetSec:     90,
		ReconnectAttempts:    5,
		ReconnectBackoff:     2 * time.Second,
		ChatHistoryLimit:     100,
	}
}

// Snapshot is the immutable view handed to subscribers. Internal mutable
// fields are never exposed; every intent goes through the command API.
type Snapshot struct {
	Status        Status
	StatusText    string
	Identity      models.ClientIdentity
	DisplayName   string
	Rooms         []models.RoomSummary
	Room          *models.RoomState
	Playlist      models.PlaylistState
	Game          *models.GameState
	Items         []models.PlaylistItem
	HasMoreItems  bool
	Suggestions   []events.Suggestion
	InFlight      map[string]bool
	RebannedUntil *int64
}

// Store is the root owner of room, participant, playlist and game state. It
// mirrors authoritative server state pushed over the channel and drives it
// through request/acknowledgement calls.
type Store struct {
	ch       Channel
	local    LocalStore
	clockSyn *clock.Sync
	clk      clockwork.Clock
	uploader *upload.Uploader
	config   Config

	runCtx    context.Context
	runCancel context.CancelFunc

	mu            sync.Mutex
	status        Status
	statusText    string
	identity      models.ClientIdentity
	displayName   string
	rooms         []models.RoomSummary
	room          *models.RoomState
	playlist      models.PlaylistState
	game          *models.GameState
	receivedItems []models.PlaylistItem
	// itemsGen is bumped whenever the paged view is reset (room exit,
	// playlist swap); in-flight page results from an older generation are
	// discarded.
	itemsGen      int
	suggestions   []events.Suggestion
	inFlight      map[string]bool
	currentRoomID string
	rebannedUntil *int64

	pending *pendingAnswer

	subMu       sync.Mutex
	subscribers map[int]func(Snapshot)
	nextSubID   int
}

// New creates a Store and registers its push and disconnect handlers on the
// channel. Call Connect to go online.
func New(ch Channel, local LocalStore, clk clockwork.Clock, config Config) *Store {
	s := &Store{
		ch:          ch,
		local:       local,
		clockSyn:    clock.NewSync(clk),
		clk:         clk,
		config:      config,
		status:      StatusDisconnected,
		inFlight:    make(map[string]bool),
		subscribers: make(map[int]func(Snapshot)),
	}
	s.uploader = upload.New(uploadCaller{s})
	ch.OnPush(s.handlePush)
	ch.OnDisconnect(s.handleDisconnect)
	return s
}

// uploadCaller adapts the store's channel to the uploader's Caller.
type uploadCaller struct{ s *Store }

func (u uploadCaller) Call(ctx context.Context, call events.CallType, payload interface{}) (channel.Ack, error) {
	return u.s.ch.Call(ctx, call, payload)
}

// Clock exposes the shared server-clock estimate for countdown rendering
// and clip positioning.
func (s *Store) Clock() *clock.Sync {
	return s.clockSyn
}

// Subscribe registers a snapshot listener and returns its unsubscribe
// function. The listener fires after every state change.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.subMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	s.subMu.Unlock()
	return func() {
		s.subMu.Lock()
		delete(s.subscribers, id)
		s.subMu.Unlock()
	}
}

// Snapshot returns the current derived view state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		Status:        s.status,
		StatusText:    s.statusText,
		Identity:      s.identity,
		DisplayName:   s.displayName,
		Rooms:         append([]models.RoomSummary(nil), s.rooms...),
		Playlist:      s.playlist,
		Items:         append([]models.PlaylistItem(nil), s.receivedItems...),
		HasMoreItems:  len(s.receivedItems) < s.playlist.TotalCount,
		Suggestions:   append([]events.Suggestion(nil), s.suggestions...),
		InFlight:      make(map[string]bool, len(s.inFlight)),
		RebannedUntil: s.rebannedUntil,
	}
	for op, v := range s.inFlight {
		snap.InFlight[op] = v
	}
	if s.room != nil {
		roomCopy := *s.room
		roomCopy.Participants = append([]models.Participant(nil), s.room.Participants...)
		roomCopy.Messages = append([]models.ChatMessage(nil), s.room.Messages...)
		snap.Room = &roomCopy
	}
	if s.game != nil {
		gameCopy := *s.game
		snap.Game = &gameCopy
	}
	return snap
}

func (s *Store) notify() {
	snap := s.Snapshot()
	s.subMu.Lock()
	subs := make([]func(Snapshot), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subs = append(subs, fn)
	}
	s.subMu.Unlock()
	for _, fn := range subs {
		fn(snap)
	}
}

// setStatus replaces the transient status text shown by the UI.
func (s *Store) setStatus(text string) {
	s.mu.Lock()
	s.statusText = text
	s.mu.Unlock()
	s.notify()
}

// begin marks an operation in flight; returns false when one of the same
// kind is already running so double-submission is impossible.
func (s *Store) begin(op string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[op] {
		return false
	}
	s.inFlight[op] = true
	return true
}

func (s *Store) end(op string) {
	s.mu.Lock()
	delete(s.inFlight, op)
	s.mu.Unlock()
}

// Connect dials the channel, loads the persisted identity and, when a last
// room id is persisted, resumes that session so a reload or network drop
// mid-game rejoins exactly where it left off.
func (s *Store) Connect(ctx context.Context) error {
	deviceID, err := s.local.DeviceID()
	if err != nil {
		return err
	}
	name, err := s.local.DisplayName()
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.runCtx, s.runCancel = context.WithCancel(context.Background())
	s.status = StatusConnecting
	if !s.identity.Locked {
		s.identity = models.ClientIdentity{DeviceID: deviceID, SessionID: deviceID}
	}
	s.displayName = name
	auth := channel.AuthPayload{DeviceID: deviceID, SessionID: s.identity.SessionID}
	s.mu.Unlock()
	s.notify()

	if err := s.ch.Dial(ctx, auth); err != nil {
		s.mu.Lock()
		s.status = StatusDisconnected
		s.statusText = "connection failed"
		s.mu.Unlock()
		s.notify()
		return err
	}

	s.mu.Lock()
	s.status = StatusIdle
	s.mu.Unlock()
	s.notify()

	s.tryResume(ctx)
	return nil
}

// Close leaves the channel and stops background work. Room state survives
// in memory only until the next Connect.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.runCancel != nil {
		s.runCancel()
	}
	s.status = StatusDisconnected
	s.clearPendingLocked()
	s.mu.Unlock()
	s.notify()
	return s.ch.Close()
}

// tryResume re-binds the persisted room session, if any. Success replays
// the full room and game snapshot and re-locks identity; failure clears the
// persisted id and falls back to the room list.
func (s *Store) tryResume(ctx context.Context) {
	roomID, err := s.local.LastRoomID()
	if err != nil || roomID == "" {
		return
	}

	s.mu.Lock()
	req := events.ResumeSessionRequest{
		RoomID:     roomID,
		SessionID:  s.identity.SessionID,
		ClientName: s.displayName,
	}
	s.mu.Unlock()

	ack, err := s.ch.Call(ctx, events.CallResumeSession, req)
	if err != nil || !ack.OK {
		log.Info().Str("room_id", roomID).Msg("session resume failed, falling back to room list")
		s.local.ClearLastRoomID()
		s.mu.Lock()
		s.identity.Locked = false
		s.statusText = "previous session could not be resumed"
		s.mu.Unlock()
		s.notify()
		return
	}

	var joined events.RoomJoinedPayload
	if err := ack.Decode(&joined); err != nil {
		s.local.ClearLastRoomID()
		s.setStatus("resume reply was malformed")
		return
	}
	s.applyJoined(&joined)
	log.Info().Str("room_id", roomID).Msg("session resumed")
}

// applyJoined installs a full room snapshot (join, create or resume ack)
// and locks the session identity. The only persisted mutation here is the
// confirmed last-room id.
func (s *Store) applyJoined(p *events.RoomJoinedPayload) {
	s.mu.Lock()
	room := p.Room
	s.room = &room
	s.playlist = p.Playlist
	s.game = p.Game
	s.receivedItems = nil
	s.itemsGen++
	s.suggestions = nil
	s.rebannedUntil = nil
	s.currentRoomID = room.Room.ID
	s.status = StatusInRoom
	s.statusText = ""
	if p.SessionID != "" {
		s.identity.SessionID = p.SessionID
	}
	s.identity.Locked = true
	s.clearPendingLocked()
	s.mu.Unlock()

	if room.ServerNow > 0 {
		s.clockSyn.SyncOffset(room.ServerNow)
	}
	if err := s.local.SetLastRoomID(room.Room.ID); err != nil {
		log.Warn().Err(err).Msg("could not persist last room id")
	}
	s.notify()
}

// exitRoom drops all room-scoped state and unfreezes the identity.
func (s *Store) exitRoom(persistClear bool) {
	s.mu.Lock()
	roomID := s.currentRoomID
	s.room = nil
	s.playlist = models.PlaylistState{}
	s.game = nil
	s.receivedItems = nil
	s.itemsGen++
	s.suggestions = nil
	s.currentRoomID = ""
	s.identity.Locked = false
	if s.status == StatusInRoom {
		s.status = StatusIdle
	}
	s.clearPendingLocked()
	s.mu.Unlock()

	if persistClear && roomID != "" {
		s.local.ClearLastRoomID()
		s.local.DeleteRoomPassword(roomID)
	}
	s.notify()
}

// handleDisconnect runs the reconnect-and-resume loop. The persisted room
// id survives so a successful redial resumes mid-game; running out of
// attempts destroys the room state.
func (s *Store) handleDisconnect(err error) {
	s.mu.Lock()
	if s.runCtx == nil || s.runCtx.Err() != nil {
		s.mu.Unlock()
		return
	}
	ctx := s.runCtx
	auth := channel.AuthPayload{DeviceID: s.identity.DeviceID, SessionID: s.identity.SessionID}
	s.status = StatusReconnecting
	s.statusText = "connection lost, reconnecting"
	s.clearPendingLocked()
	s.mu.Unlock()
	s.notify()
	log.Warn().Err(err).Msg("channel disconnected")

	go func() {
		for attempt := 1; attempt <= s.config.ReconnectAttempts; attempt++ {
			timer := s.clk.NewTimer(time.Duration(attempt) * s.config.ReconnectBackoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.Chan():
			}

			if err := s.ch.Dial(ctx, auth); err != nil {
				log.Warn().Err(err).Int("attempt", attempt).Msg("reconnect failed")
				continue
			}

			s.mu.Lock()
			s.status = StatusIdle
			s.statusText = ""
			s.mu.Unlock()
			s.notify()
			s.tryResume(ctx)
			return
		}

		// Unrecoverable: drop the room but keep the persisted id so a later
		// manual Connect can still resume.
		s.mu.Lock()
		s.status = StatusDisconnected
		s.statusText = "connection lost"
		s.room = nil
		s.game = nil
		s.playlist = models.PlaylistState{}
		s.receivedItems = nil
		s.itemsGen++
		s.currentRoomID = ""
		s.identity.Locked = false
		s.mu.Unlock()
		s.notify()
	}()
}
