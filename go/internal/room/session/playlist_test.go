package session

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/funcReveal/musicquiz-client/go/internal/channel"
	"github.com/funcReveal/musicquiz-client/go/internal/models"
	"github.com/funcReveal/musicquiz-client/go/internal/room/events"
)

func makeTracks(n int) []models.PlaylistItem {
	items := make([]models.PlaylistItem, n)
	for i := range items {
		items[i] = models.PlaylistItem{
			Title:       fmt.Sprintf("track %d", i),
			Answer:      fmt.Sprintf("artist %d", i),
			DurationSec: 180,
		}
	}
	return items
}

// servePages answers GetPlaylistPage from a fixed item list.
func servePages(items []models.PlaylistItem) func(interface{}) (channel.Ack, error) {
	return func(payload interface{}) (channel.Ack, error) {
		req := payload.(events.PlaylistPageRequest)
		start := req.Page * req.PageSize
		if start > len(items) {
			start = len(items)
		}
		end := start + req.PageSize
		if end > len(items) {
			end = len(items)
		}
		return okAck(events.PlaylistPageResult{Items: items[start:end], TotalCount: len(items)}), nil
	}
}

func pageRequests(fc *fakeChannel) []int {
	var pages []int
	for _, c := range fc.callsOf(events.CallGetPlaylistPage) {
		pages = append(pages, c.payload.(events.PlaylistPageRequest).Page)
	}
	return pages
}

func TestFetchNextPageAppendsSequentially(t *testing.T) {
	st, fc, _, _ := newTestStore(t)
	enterRoom(t, st, fc, "room-1") // playlist: 23 tracks
	fc.respond[events.CallGetPlaylistPage] = servePages(makeTracks(23))

	require.True(t, st.FetchNextPage(context.Background()))
	snap := st.Snapshot()
	require.Len(t, snap.Items, 10)
	require.True(t, snap.HasMoreItems)

	require.True(t, st.FetchNextPage(context.Background()))
	require.True(t, st.FetchNextPage(context.Background()))
	snap = st.Snapshot()
	require.Len(t, snap.Items, 23)
	require.False(t, snap.HasMoreItems)
	require.Equal(t, []int{0, 1, 2}, pageRequests(fc))

	// Everything received: no further network traffic.
	require.True(t, st.FetchNextPage(context.Background()))
	require.Equal(t, []int{0, 1, 2}, pageRequests(fc))
}

func TestFetchNextPageDiscardsResultAfterViewReset(t *testing.T) {
	st, fc, _, _ := newTestStore(t)
	enterRoom(t, st, fc, "room-1")
	items := makeTracks(23)
	fc.respond[events.CallGetPlaylistPage] = servePages(items)

	require.True(t, st.FetchNextPage(context.Background()))
	require.Len(t, st.Snapshot().Items, 10)

	// The playlist is swapped while the page-1 request is in flight; its
	// result must not be appended to the fresh view.
	fc.respond[events.CallGetPlaylistPage] = func(payload interface{}) (channel.Ack, error) {
		fc.push(events.PushPlaylistUpdated, events.PlaylistUpdatedPayload{
			RoomID:   "room-1",
			Playlist: models.PlaylistState{ID: "pl-2", Title: "swapped", TotalCount: 5, Ready: true},
		})
		return servePages(items)(payload)
	}

	require.True(t, st.FetchNextPage(context.Background()))
	snap := st.Snapshot()
	require.Empty(t, snap.Items)
	require.Equal(t, "swapped", snap.Playlist.Title)
}

func TestFetchNextPageDiscardsResultAfterRoomExit(t *testing.T) {
	st, fc, _, _ := newTestStore(t)
	enterRoom(t, st, fc, "room-1")

	// The host kicks this client while the page-0 request is in flight;
	// the late ack must not leave ghost items in the out-of-room view.
	fc.respond[events.CallGetPlaylistPage] = func(payload interface{}) (channel.Ack, error) {
		fc.push(events.PushKicked, events.KickedPayload{Reason: "host removed you"})
		return servePages(makeTracks(23))(payload)
	}

	require.True(t, st.FetchNextPage(context.Background()))

	snap := st.Snapshot()
	require.Equal(t, StatusIdle, snap.Status)
	require.Nil(t, snap.Room)
	require.Empty(t, snap.Items)
}

func TestChangePlaylistRejectedWhileGamePlaying(t *testing.T) {
	st, fc, _, _ := newTestStore(t)
	enterGame(t, st, fc, playingGame(testEpochMs, 0))

	require.False(t, st.ChangePlaylist(context.Background(), "new mix", makeTracks(5)))
	require.Empty(t, fc.callsOf(events.CallChangePlaylist))
	require.Contains(t, st.Snapshot().StatusText, "cannot be changed while a game is running")
}

func TestChangePlaylistResetsPagedView(t *testing.T) {
	st, fc, _, _ := newTestStore(t)
	enterRoom(t, st, fc, "room-1")
	fc.respond[events.CallGetPlaylistPage] = servePages(makeTracks(23))
	require.True(t, st.FetchNextPage(context.Background()))
	require.Len(t, st.Snapshot().Items, 10)

	require.True(t, st.ChangePlaylist(context.Background(), "short mix", makeTracks(5)))

	snap := st.Snapshot()
	require.Empty(t, snap.Items)
	require.Equal(t, "short mix", snap.Playlist.Title)
	require.Equal(t, 5, snap.Playlist.TotalCount)
	require.True(t, snap.Playlist.Ready)
	// Five tracks fit in the inline head; no follow-up chunks.
	require.Empty(t, fc.callsOf(events.CallUploadChunk))
}

func TestChangePlaylistShipsFollowUpChunks(t *testing.T) {
	st, fc, _, _ := newTestStore(t)
	enterRoom(t, st, fc, "room-1")

	require.True(t, st.ChangePlaylist(context.Background(), "long mix", makeTracks(45)))

	changes := fc.callsOf(events.CallChangePlaylist)
	require.Len(t, changes, 1)
	head := changes[0].payload.(events.ChangePlaylistRequest).Playlist
	require.Len(t, head.Items, 20)
	require.Equal(t, 45, head.TotalCount)
	require.False(t, head.IsLast)

	chunks := fc.callsOf(events.CallUploadChunk)
	require.Len(t, chunks, 1)
	chunk := chunks[0].payload.(events.UploadChunkRequest)
	require.Equal(t, head.UploadID, chunk.UploadID)
	require.Len(t, chunk.Items, 25)
	require.True(t, chunk.IsLast)

	// Readiness follows server accounting, not local bookkeeping.
	snap := st.Snapshot()
	require.Equal(t, 20, snap.Playlist.ReceivedCount)
	require.False(t, snap.Playlist.Ready)

	fc.push(events.PushPlaylistProgress, events.PlaylistProgressPayload{
		RoomID: "room-1", ReceivedCount: 45, TotalCount: 45, Ready: true,
	})
	require.True(t, st.Snapshot().Playlist.Ready)
}

func TestChangePlaylistAppliesRoomClipTiming(t *testing.T) {
	st, fc, _, _ := newTestStore(t)
	enterRoom(t, st, fc, "room-1") // room defaults: 10s clips starting at 20s

	require.True(t, st.ChangePlaylist(context.Background(), "timed", makeTracks(3)))

	head := fc.callsOf(events.CallChangePlaylist)[0].payload.(events.ChangePlaylistRequest).Playlist
	for _, item := range head.Items {
		require.Equal(t, 20.0, item.StartSec)
		require.Equal(t, 30.0, item.EndSec)
		require.Equal(t, models.TimingSourceRoomSettings, item.TimingSource)
	}
}

func TestUpdateSettingsResyncsClipTiming(t *testing.T) {
	st, fc, fl, _ := newTestStore(t)
	enterRoom(t, st, fc, "room-1")
	fc.respond[events.CallGetPlaylistPage] = servePages(makeTracks(23))

	settings := models.GameSettings{QuestionCount: 12, ClipLengthSec: 12, ClipStartOffsetSec: 15}
	require.True(t, st.UpdateSettings(context.Background(), 10, settings))

	// The full playlist was re-fetched page by page, then re-uploaded with
	// windows derived from the new settings.
	require.Equal(t, []int{0, 1, 2}, pageRequests(fc))

	changes := fc.callsOf(events.CallChangePlaylist)
	require.Len(t, changes, 1)
	head := changes[0].payload.(events.ChangePlaylistRequest).Playlist
	require.Equal(t, 23, head.TotalCount)
	require.Equal(t, 15.0, head.Items[0].StartSec)
	require.Equal(t, 27.0, head.Items[0].EndSec)

	chunks := fc.callsOf(events.CallUploadChunk)
	require.Len(t, chunks, 1)
	require.Len(t, chunks[0].payload.(events.UploadChunkRequest).Items, 3)

	snap := st.Snapshot()
	require.Equal(t, settings, snap.Room.Room.Settings)
	require.Equal(t, 10, snap.Room.Room.MaxPlayers)
	require.Equal(t, 12, fl.questionCount)
}

func TestUpdateSettingsSkipsResyncWhenTimingUnchanged(t *testing.T) {
	st, fc, _, _ := newTestStore(t)
	enterRoom(t, st, fc, "room-1")

	// Same clip fields as the room's current settings, new question count.
	settings := models.GameSettings{QuestionCount: 5, ClipLengthSec: 10, ClipStartOffsetSec: 20}
	require.True(t, st.UpdateSettings(context.Background(), 8, settings))

	require.Len(t, fc.callsOf(events.CallUpdateSettings), 1)
	require.Empty(t, fc.callsOf(events.CallGetPlaylistPage))
	require.Empty(t, fc.callsOf(events.CallChangePlaylist))
}

func TestUpdateSettingsResyncFailureKeepsSettings(t *testing.T) {
	st, fc, _, _ := newTestStore(t)
	enterRoom(t, st, fc, "room-1")

	fc.respond[events.CallGetPlaylistPage] = func(interface{}) (channel.Ack, error) {
		return failAck("", "page unavailable"), nil
	}

	settings := models.GameSettings{QuestionCount: 12, ClipLengthSec: 12, ClipStartOffsetSec: 15}
	require.True(t, st.UpdateSettings(context.Background(), 10, settings))

	snap := st.Snapshot()
	require.Equal(t, settings, snap.Room.Room.Settings)
	require.Contains(t, snap.StatusText, "clip timing re-sync failed")
}
