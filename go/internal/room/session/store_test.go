package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/funcReveal/musicquiz-client/go/internal/channel"
	"github.com/funcReveal/musicquiz-client/go/internal/models"
	"github.com/funcReveal/musicquiz-client/go/internal/room/events"
)

type recordedCall struct {
	typ     events.CallType
	payload interface{}
}

// fakeChannel implements the Channel slice the store drives. Responses are
// configured per call type; unconfigured calls succeed with an empty ack.
type fakeChannel struct {
	mu            sync.Mutex
	calls         []recordedCall
	handlers      []channel.PushHandler
	onDisconnect  func(err error)
	respond       map[events.CallType]func(payload interface{}) (channel.Ack, error)
	dialErr       error
	dialCount     int
	lastAuth      channel.AuthPayload
	stagedProbe   time.Duration
	stagedConfirm time.Duration
	slowAck       bool // fire onSlow before acking staged calls
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{respond: make(map[events.CallType]func(interface{}) (channel.Ack, error))}
}

func (f *fakeChannel) Dial(_ context.Context, auth channel.AuthPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dialCount++
	f.lastAuth = auth
	return f.dialErr
}

func (f *fakeChannel) Close() error { return nil }

func (f *fakeChannel) Call(_ context.Context, call events.CallType, payload interface{}) (channel.Ack, error) {
	f.mu.Lock()
	f.calls = append(f.calls, recordedCall{typ: call, payload: payload})
	fn := f.respond[call]
	f.mu.Unlock()
	if fn != nil {
		return fn(payload)
	}
	return channel.Ack{OK: true}, nil
}

func (f *fakeChannel) CallWithTimeout(ctx context.Context, call events.CallType, payload interface{}, _ time.Duration) (channel.Ack, error) {
	return f.Call(ctx, call, payload)
}

func (f *fakeChannel) CallStaged(ctx context.Context, call events.CallType, payload interface{}, probe, confirm time.Duration, onSlow func()) (channel.Ack, error) {
	f.mu.Lock()
	f.stagedProbe = probe
	f.stagedConfirm = confirm
	slow := f.slowAck
	f.mu.Unlock()
	if slow && onSlow != nil {
		onSlow()
	}
	return f.Call(ctx, call, payload)
}

func (f *fakeChannel) OnPush(h channel.PushHandler) {
	f.mu.Lock()
	f.handlers = append(f.handlers, h)
	f.mu.Unlock()
}

func (f *fakeChannel) OnDisconnect(fn func(err error)) {
	f.mu.Lock()
	f.onDisconnect = fn
	f.mu.Unlock()
}

// push delivers one decoded payload the way the channel read pump would.
func (f *fakeChannel) push(typ events.PushType, payload interface{}) {
	f.mu.Lock()
	handlers := append([]channel.PushHandler(nil), f.handlers...)
	f.mu.Unlock()
	for _, h := range handlers {
		h(typ, payload)
	}
}

func (f *fakeChannel) disconnect(err error) {
	f.mu.Lock()
	fn := f.onDisconnect
	f.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

func (f *fakeChannel) callsOf(typ events.CallType) []recordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []recordedCall
	for _, c := range f.calls {
		if c.typ == typ {
			out = append(out, c)
		}
	}
	return out
}

// fakeLocal is an in-memory LocalStore.
type fakeLocal struct {
	mu            sync.Mutex
	deviceID      string
	displayName   string
	lastRoomID    string
	questionCount int
	passwords     map[string]string
}

func newFakeLocal() *fakeLocal {
	return &fakeLocal{deviceID: "dev-1", passwords: make(map[string]string)}
}

func (f *fakeLocal) DeviceID() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deviceID, nil
}

func (f *fakeLocal) DisplayName() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.displayName, nil
}

func (f *fakeLocal) SetDisplayName(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.displayName = name
	return nil
}

func (f *fakeLocal) LastRoomID() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastRoomID, nil
}

func (f *fakeLocal) SetLastRoomID(roomID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastRoomID = roomID
	return nil
}

func (f *fakeLocal) ClearLastRoomID() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastRoomID = ""
	return nil
}

func (f *fakeLocal) QuestionCount() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.questionCount, nil
}

func (f *fakeLocal) SetQuestionCount(n int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.questionCount = n
	return nil
}

func (f *fakeLocal) RoomPassword(roomID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.passwords[roomID], nil
}

func (f *fakeLocal) SetRoomPassword(roomID, password string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.passwords[roomID] = password
	return nil
}

func (f *fakeLocal) DeleteRoomPassword(roomID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.passwords, roomID)
	return nil
}

func okAck(payload interface{}) channel.Ack {
	ack := channel.Ack{OK: true}
	if payload != nil {
		raw, _ := json.Marshal(payload)
		ack.Payload = raw
	}
	return ack
}

func failAck(code, msg string) channel.Ack {
	return channel.Ack{OK: false, Code: code, Error: msg}
}

const testEpochMs = int64(1_700_000_000_000)

func newTestStoreWith(t *testing.T, config Config) (*Store, *fakeChannel, *fakeLocal, *clockwork.FakeClock) {
	t.Helper()
	fc := newFakeChannel()
	fl := newFakeLocal()
	clk := clockwork.NewFakeClockAt(time.UnixMilli(testEpochMs))
	st := New(fc, fl, clk, config)
	return st, fc, fl, clk
}

func newTestStore(t *testing.T) (*Store, *fakeChannel, *fakeLocal, *clockwork.FakeClock) {
	return newTestStoreWith(t, DefaultConfig())
}

func joinedPayload(roomID string, serverNow int64) events.RoomJoinedPayload {
	return events.RoomJoinedPayload{
		Room: models.RoomState{
			Room: models.RoomDetail{
				RoomSummary: models.RoomSummary{
					ID:         roomID,
					Name:       "quiz night",
					MaxPlayers: 8,
					Settings: models.GameSettings{
						QuestionCount:      10,
						ClipLengthSec:      10,
						ClipStartOffsetSec: 20,
					},
				},
				HostClientID: "host-1",
			},
			Participants: []models.Participant{{ClientID: "host-1", Name: "hosta", Online: true}},
			ServerNow:    serverNow,
		},
		Playlist:  models.PlaylistState{ID: "pl-1", Title: "mix", TotalCount: 23, Ready: true, PageSize: 10},
		SessionID: "sess-1",
	}
}

// enterRoom drives the store into a room through a RoomJoined push.
func enterRoom(t *testing.T, st *Store, fc *fakeChannel, roomID string) {
	t.Helper()
	fc.push(events.PushRoomJoined, joinedPayload(roomID, testEpochMs+5_000))
	snap := st.Snapshot()
	require.Equal(t, StatusInRoom, snap.Status)
	require.NotNil(t, snap.Room)
	require.Equal(t, roomID, snap.Room.Room.ID)
}

func TestConnectUsesPersistedIdentity(t *testing.T) {
	st, fc, _, _ := newTestStore(t)

	require.NoError(t, st.Connect(context.Background()))
	defer st.Close()

	fc.mu.Lock()
	auth := fc.lastAuth
	fc.mu.Unlock()
	require.Equal(t, "dev-1", auth.DeviceID)
	// Without a bound session the device id doubles as the session id.
	require.Equal(t, "dev-1", auth.SessionID)
	require.Equal(t, StatusIdle, st.Snapshot().Status)
	require.Empty(t, fc.callsOf(events.CallResumeSession))
}

func TestConnectResumesPersistedRoom(t *testing.T) {
	st, fc, fl, _ := newTestStore(t)
	fl.lastRoomID = "room-1"
	fl.displayName = "kiri"

	fc.respond[events.CallResumeSession] = func(payload interface{}) (channel.Ack, error) {
		req := payload.(events.ResumeSessionRequest)
		require.Equal(t, "room-1", req.RoomID)
		require.Equal(t, "dev-1", req.SessionID)
		require.Equal(t, "kiri", req.ClientName)
		return okAck(joinedPayload("room-1", testEpochMs+7_000)), nil
	}

	require.NoError(t, st.Connect(context.Background()))
	defer st.Close()

	snap := st.Snapshot()
	require.Equal(t, StatusInRoom, snap.Status)
	require.Equal(t, "room-1", snap.Room.Room.ID)
	require.True(t, snap.Identity.Locked)
	require.Equal(t, "sess-1", snap.Identity.SessionID)

	// The resumed snapshot reseeded the server clock estimate.
	require.Equal(t, testEpochMs+7_000, st.Clock().ServerNow())
	require.Equal(t, "room-1", fl.lastRoomID)
}

func TestResumeFailureFallsBackToRoomList(t *testing.T) {
	st, fc, fl, _ := newTestStore(t)
	fl.lastRoomID = "room-gone"

	fc.respond[events.CallResumeSession] = func(interface{}) (channel.Ack, error) {
		return failAck(channel.CodeRoomNotFound, "room closed"), nil
	}

	require.NoError(t, st.Connect(context.Background()))
	defer st.Close()

	snap := st.Snapshot()
	require.Equal(t, StatusIdle, snap.Status)
	require.Nil(t, snap.Room)
	require.False(t, snap.Identity.Locked)
	require.NotEmpty(t, snap.StatusText)
	require.Empty(t, fl.lastRoomID)
}

func TestRoomScopedPushFromOtherRoomIgnored(t *testing.T) {
	st, fc, _, _ := newTestStore(t)
	enterRoom(t, st, fc, "room-1")

	fc.push(events.PushChatMessage, events.ChatMessagePayload{
		RoomID:  "room-2",
		Message: models.ChatMessage{ID: "m1", Text: "stale"},
	})
	require.Empty(t, st.Snapshot().Room.Messages)

	fc.push(events.PushChatMessage, events.ChatMessagePayload{
		RoomID:  "room-1",
		Message: models.ChatMessage{ID: "m2", Text: "live"},
	})
	messages := st.Snapshot().Room.Messages
	require.Len(t, messages, 1)
	require.Equal(t, "live", messages[0].Text)
}

func TestChatHistoryBounded(t *testing.T) {
	config := DefaultConfig()
	config.ChatHistoryLimit = 5
	st, fc, _, _ := newTestStoreWith(t, config)
	enterRoom(t, st, fc, "room-1")

	for i := 0; i < 8; i++ {
		fc.push(events.PushChatMessage, events.ChatMessagePayload{
			RoomID:  "room-1",
			Message: models.ChatMessage{ID: fmt.Sprintf("m%d", i), Text: fmt.Sprintf("msg %d", i)},
		})
	}

	messages := st.Snapshot().Room.Messages
	require.Len(t, messages, 5)
	require.Equal(t, "msg 3", messages[0].Text)
	require.Equal(t, "msg 7", messages[4].Text)
}

func TestParticipantsUpdatedReplacesListAndHost(t *testing.T) {
	st, fc, _, _ := newTestStore(t)
	enterRoom(t, st, fc, "room-1")

	fc.push(events.PushParticipantsUpdated, events.ParticipantsUpdatedPayload{
		RoomID: "room-1",
		Participants: []models.Participant{
			{ClientID: "host-1", Name: "hosta", Online: true},
			{ClientID: "guest-1", Name: "gueste", Online: true},
		},
		HostClientID: "guest-1",
		ServerNow:    testEpochMs + 9_000,
	})

	snap := st.Snapshot()
	require.Len(t, snap.Room.Participants, 2)
	require.Equal(t, "guest-1", snap.Room.Room.HostClientID)
	require.Equal(t, 2, snap.Room.Room.PlayerCount)
	require.True(t, snap.Room.HostIs("guest-1"))
	require.Equal(t, testEpochMs+9_000, st.Clock().ServerNow())
}

func TestUserLeftRemovesParticipant(t *testing.T) {
	st, fc, _, _ := newTestStore(t)
	enterRoom(t, st, fc, "room-1")

	fc.push(events.PushParticipantsUpdated, events.ParticipantsUpdatedPayload{
		RoomID: "room-1",
		Participants: []models.Participant{
			{ClientID: "host-1"},
			{ClientID: "guest-1"},
		},
		HostClientID: "host-1",
	})
	fc.push(events.PushUserLeft, events.UserLeftPayload{RoomID: "room-1", ClientID: "guest-1"})

	snap := st.Snapshot()
	require.Len(t, snap.Room.Participants, 1)
	require.Equal(t, "host-1", snap.Room.Participants[0].ClientID)
	require.Equal(t, 1, snap.Room.Room.PlayerCount)
}

func TestKickedClearsRoomAndPersistence(t *testing.T) {
	st, fc, fl, _ := newTestStore(t)
	enterRoom(t, st, fc, "room-1")
	require.Equal(t, "room-1", fl.lastRoomID)
	fl.passwords["room-1"] = "hunter2"

	until := testEpochMs + 60_000
	fc.push(events.PushKicked, events.KickedPayload{Reason: "host removed you", RebannedUntil: &until})

	snap := st.Snapshot()
	require.Equal(t, StatusIdle, snap.Status)
	require.Nil(t, snap.Room)
	require.False(t, snap.Identity.Locked)
	require.NotNil(t, snap.RebannedUntil)
	require.Equal(t, until, *snap.RebannedUntil)
	require.Empty(t, fl.lastRoomID)
	require.Empty(t, fl.passwords["room-1"])
}

func TestRoomListUpdated(t *testing.T) {
	st, fc, _, _ := newTestStore(t)

	fc.push(events.PushRoomList, events.RoomListPayload{
		Rooms:     []models.RoomSummary{{ID: "room-1"}, {ID: "room-2"}},
		ServerNow: testEpochMs + 1_500,
	})

	require.Len(t, st.Snapshot().Rooms, 2)
	require.Equal(t, testEpochMs+1_500, st.Clock().ServerNow())
}

func TestDisconnectReconnectsAndResumes(t *testing.T) {
	st, fc, fl, clk := newTestStore(t)

	require.NoError(t, st.Connect(context.Background()))
	defer st.Close()
	enterRoom(t, st, fc, "room-1")

	fc.respond[events.CallResumeSession] = func(interface{}) (channel.Ack, error) {
		return okAck(joinedPayload("room-1", testEpochMs+20_000)), nil
	}

	fc.disconnect(fmt.Errorf("read: connection reset"))
	require.Equal(t, StatusReconnecting, st.Snapshot().Status)

	// Release the first backoff timer.
	clk.BlockUntil(1)
	clk.Advance(DefaultConfig().ReconnectBackoff)

	require.Eventually(t, func() bool {
		return st.Snapshot().Status == StatusInRoom
	}, 2*time.Second, 10*time.Millisecond)

	fc.mu.Lock()
	dials := fc.dialCount
	fc.mu.Unlock()
	require.Equal(t, 2, dials)
	require.Equal(t, "room-1", fl.lastRoomID)
}

func TestResumeAdoptsInProgressGame(t *testing.T) {
	st, fc, _, clk := newTestStore(t)

	require.NoError(t, st.Connect(context.Background()))
	defer st.Close()
	enterRoom(t, st, fc, "room-1")
	fc.push(events.PushGameStarted, events.GameStartedPayload{RoomID: "room-1", Game: playingGame(testEpochMs, 0), ServerNow: testEpochMs})

	// Answer staged but not yet flushed when the connection drops.
	require.True(t, st.SubmitChoice(1))

	// The game moved on server-side while this client was away.
	resumed := playingGame(testEpochMs, 2)
	resumed.Phase = models.GamePhaseReveal
	resumed.AnswerTitle = "track c"
	fc.respond[events.CallResumeSession] = func(interface{}) (channel.Ack, error) {
		p := joinedPayload("room-1", testEpochMs+20_000)
		p.Game = &resumed
		return okAck(p), nil
	}

	fc.disconnect(fmt.Errorf("read: connection reset"))
	clk.BlockUntil(1)
	clk.Advance(DefaultConfig().ReconnectBackoff)

	require.Eventually(t, func() bool {
		return st.Snapshot().Status == StatusInRoom
	}, 2*time.Second, 10*time.Millisecond)

	snap := st.Snapshot()
	require.NotNil(t, snap.Game)
	require.Equal(t, models.GamePhaseReveal, snap.Game.Phase)
	require.Equal(t, 2, snap.Game.CurrentIndex)
	require.Equal(t, "track c", snap.Game.AnswerTitle)

	// The pre-disconnect answer was dropped with the connection; nothing
	// is flushed into the resumed game.
	clk.Advance(DefaultConfig().AnswerGuardInterval)
	time.Sleep(50 * time.Millisecond)
	require.Empty(t, fc.callsOf(events.CallSubmitAnswer))
}

func TestSubscribeAndUnsubscribe(t *testing.T) {
	st, fc, _, _ := newTestStore(t)

	var mu sync.Mutex
	seen := 0
	cancel := st.Subscribe(func(Snapshot) {
		mu.Lock()
		seen++
		mu.Unlock()
	})

	enterRoom(t, st, fc, "room-1")
	mu.Lock()
	afterJoin := seen
	mu.Unlock()
	require.Positive(t, afterJoin)

	cancel()
	fc.push(events.PushChatMessage, events.ChatMessagePayload{RoomID: "room-1", Message: models.ChatMessage{Text: "hi"}})
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, afterJoin, seen)
}
