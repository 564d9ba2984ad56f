package upload

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/funcReveal/musicquiz-client/go/internal/channel"
	"github.com/funcReveal/musicquiz-client/go/internal/models"
	"github.com/funcReveal/musicquiz-client/go/internal/room/events"
)

// Caller is the slice of the session channel the uploader needs.
type Caller interface {
	Call(ctx context.Context, call events.CallType, payload interface{}) (channel.Ack, error)
}

// Options controls chunk sizing. The first chunk rides inline with the
// room-create or playlist-change call and may be sized differently from the
// follow-up chunks.
type Options struct {
	FirstChunkSize int
	ChunkSize      int
}

// DefaultOptions returns the default chunk sizing.
func DefaultOptions() Options {
	return Options{FirstChunkSize: 20, ChunkSize: 50}
}

func (o Options) normalized() Options {
	if o.FirstChunkSize <= 0 {
		o.FirstChunkSize = DefaultOptions().FirstChunkSize
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultOptions().ChunkSize
	}
	return o
}

// Uploader drives the sequential upload-and-acknowledge protocol for an
// ordered track list. Each upload gets a fresh random id so concurrent or
// retried uploads cannot be conflated server-side.
type Uploader struct {
	caller Caller
}

// New creates an Uploader on the given caller.
func New(caller Caller) *Uploader {
	return &Uploader{caller: caller}
}

// Prepare splits items and returns the inline head of the transfer plus the
// remaining chunks. The head is embedded in the create/change call by the
// caller; SendRest ships the remainder.
func Prepare(title string, items []models.PlaylistItem, opts Options) (events.PlaylistUpload, [][]models.PlaylistItem) {
	opts = opts.normalized()

	first := opts.FirstChunkSize
	if first > len(items) {
		first = len(items)
	}
	head := events.PlaylistUpload{
		UploadID:   uuid.New().String(),
		Title:      title,
		TotalCount: len(items),
		Items:      items[:first],
		IsLast:     first == len(items),
	}

	var rest [][]models.PlaylistItem
	for off := first; off < len(items); off += opts.ChunkSize {
		end := off + opts.ChunkSize
		if end > len(items) {
			end = len(items)
		}
		rest = append(rest, items[off:end])
	}
	return head, rest
}

// SendRest uploads the remaining chunks sequentially, each blocking on its
// acknowledgement before the next is sent so the server-side append order
// equals the source order. Any chunk failure abandons the upload; the
// client does not attempt server-side rollback.
func (u *Uploader) SendRest(ctx context.Context, head events.PlaylistUpload, rest [][]models.PlaylistItem) error {
	sent := len(head.Items)
	for i, chunk := range rest {
		req := events.UploadChunkRequest{
			UploadID: head.UploadID,
			Seq:      i + 1,
			Items:    chunk,
			IsLast:   i == len(rest)-1,
		}
		ack, err := u.caller.Call(ctx, events.CallUploadChunk, req)
		if err != nil {
			return fmt.Errorf("upload chunk %d/%d: %w", i+1, len(rest), err)
		}
		if !ack.OK {
			return fmt.Errorf("upload chunk %d/%d rejected: %s", i+1, len(rest), ack.Error)
		}

		sent += len(chunk)
		var result events.UploadChunkResult
		if err := ack.Decode(&result); err == nil && result.ReceivedCount > 0 && result.ReceivedCount != sent {
			log.Warn().
				Str("upload_id", head.UploadID).
				Int("sent", sent).
				Int("received", result.ReceivedCount).
				Msg("server receipt count diverges from sent count")
		}
	}

	log.Debug().
		Str("upload_id", head.UploadID).
		Int("total", head.TotalCount).
		Int("chunks", len(rest)+1).
		Msg("playlist upload complete")
	return nil
}
