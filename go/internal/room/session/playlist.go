package session

import (
	"context"
	"fmt"

	"github.com/funcReveal/musicquiz-client/go/internal/models"
	"github.com/funcReveal/musicquiz-client/go/internal/room/events"
	"github.com/funcReveal/musicquiz-client/go/internal/room/upload"
)

// FetchNextPage requests the next fixed-size playlist page and appends it
// to the paged view. The view never holds the full list automatically;
// "has more" is derived from len(received) < totalCount.
func (s *Store) FetchNextPage(ctx context.Context) bool {
	if !s.begin(OpPlaylistPage) {
		return false
	}
	defer s.end(OpPlaylistPage)

	s.mu.Lock()
	page := len(s.receivedItems) / s.config.PageSize
	gen := s.itemsGen
	total := s.playlist.TotalCount
	have := len(s.receivedItems)
	s.mu.Unlock()
	if total > 0 && have >= total {
		return true
	}

	req := events.PlaylistPageRequest{Page: page, PageSize: s.config.PageSize}
	ack, err := s.ch.Call(ctx, events.CallGetPlaylistPage, req)
	if err != nil {
		s.setStatus("could not load playlist page: " + err.Error())
		return false
	}
	if !ack.OK {
		s.setStatus("could not load playlist page: " + ack.Error)
		return false
	}

	var result events.PlaylistPageResult
	if err := ack.Decode(&result); err != nil {
		s.setStatus("playlist page reply was malformed")
		return false
	}

	s.mu.Lock()
	// Discard if the view was reset (room exit, playlist swap) while the
	// request was in flight.
	if s.itemsGen == gen && len(s.receivedItems)/s.config.PageSize == page {
		s.receivedItems = append(s.receivedItems, result.Items...)
		if result.TotalCount > 0 {
			s.playlist.TotalCount = result.TotalCount
		}
	}
	s.mu.Unlock()
	s.notify()
	return true
}

// fetchAllItems aggregates every playlist page for internal full-list
// needs (timing re-sync, local playback). The paged view state is left
// untouched.
func (s *Store) fetchAllItems(ctx context.Context) ([]models.PlaylistItem, error) {
	return s.fetchPagesFrom(ctx, 0, nil)
}

// fetchPagesFrom recursively fetches pages starting at page until the
// reported total is reached. Terminates after ceil(total/pageSize) calls.
func (s *Store) fetchPagesFrom(ctx context.Context, page int, acc []models.PlaylistItem) ([]models.PlaylistItem, error) {
	req := events.PlaylistPageRequest{Page: page, PageSize: s.config.PageSize}
	ack, err := s.ch.Call(ctx, events.CallGetPlaylistPage, req)
	if err != nil {
		return nil, fmt.Errorf("fetch playlist page %d: %w", page, err)
	}
	if !ack.OK {
		return nil, fmt.Errorf("fetch playlist page %d: %s", page, ack.Error)
	}

	var result events.PlaylistPageResult
	if err := ack.Decode(&result); err != nil {
		return nil, fmt.Errorf("decode playlist page %d: %w", page, err)
	}

	acc = append(acc, result.Items...)
	if len(result.Items) == 0 || len(acc) >= result.TotalCount {
		return acc, nil
	}
	return s.fetchPagesFrom(ctx, page+1, acc)
}

// ChangePlaylist swaps the room playlist. Disallowed while a game is
// playing; clip timing is re-derived against the current room settings.
func (s *Store) ChangePlaylist(ctx context.Context, title string, items []models.PlaylistItem) bool {
	if !s.begin(OpChangePlaylist) {
		return false
	}
	defer s.end(OpChangePlaylist)

	s.mu.Lock()
	playing := s.game != nil && s.game.Status == models.GameStatusPlaying
	settings := models.GameSettings{}
	if s.room != nil {
		settings = s.room.Room.Settings
	}
	s.mu.Unlock()

	if playing {
		s.setStatus("the playlist cannot be changed while a game is running")
		return false
	}
	if len(items) == 0 {
		s.setStatus("a playlist with at least one track is required")
		return false
	}

	if err := s.runPlaylistChange(ctx, title, items, settings); err != nil {
		s.setStatus("playlist change failed: " + err.Error())
		return false
	}
	return true
}

// runPlaylistChange runs the change-playlist RPC with the first chunk
// inline and ships the remaining chunks.
func (s *Store) runPlaylistChange(ctx context.Context, title string, items []models.PlaylistItem, settings models.GameSettings) error {
	timed := applyClipTiming(items, settings)
	head, rest := upload.Prepare(title, timed, s.config.Upload)

	ack, err := s.ch.Call(ctx, events.CallChangePlaylist, events.ChangePlaylistRequest{Playlist: head})
	if err != nil {
		return err
	}
	if !ack.OK {
		return fmt.Errorf("%s", ack.Error)
	}

	s.mu.Lock()
	s.receivedItems = nil
	s.itemsGen++
	s.playlist.Title = title
	s.playlist.TotalCount = head.TotalCount
	s.playlist.ReceivedCount = len(head.Items)
	s.playlist.Ready = head.IsLast
	s.mu.Unlock()
	s.notify()

	return s.uploader.SendRest(ctx, head, rest)
}
