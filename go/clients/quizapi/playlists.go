package quizapi

import (
	"context"
	"fmt"
	"net/url"

	"github.com/funcReveal/musicquiz-client/go/internal/models"
)

// PlaylistPreview is the metadata of a public playlist link before import.
type PlaylistPreview struct {
	Title      string `json:"title"`
	Uploader   string `json:"uploader"`
	TrackCount int    `json:"track_count"`
	Thumbnail  string `json:"thumbnail,omitempty"`
}

// PreviewPublicPlaylist resolves a public playlist link to its metadata
// without importing the tracks.
func (c *QuizApiClient) PreviewPublicPlaylist(ctx context.Context, link string) (*PlaylistPreview, error) {
	endpoint := PlaylistPreviewEndpoint + "?url=" + url.QueryEscape(link)

	var out PlaylistPreview
	if err := c.MakeJSONRequest(ctx, "GET", endpoint, nil, &out); err != nil {
		return nil, fmt.Errorf("failed to preview playlist: %w", err)
	}
	return &out, nil
}

// ImportPublicPlaylist resolves a public playlist link to its full ordered
// track list.
func (c *QuizApiClient) ImportPublicPlaylist(ctx context.Context, link string) (string, []models.PlaylistItem, error) {
	in := struct {
		URL string `json:"url"`
	}{URL: link}

	var out struct {
		Title string                `json:"title"`
		Items []models.PlaylistItem `json:"items"`
	}
	if err := c.MakeJSONRequest(ctx, "POST", PlaylistImportEndpoint, in, &out); err != nil {
		return "", nil, fmt.Errorf("failed to import playlist: %w", err)
	}
	return out.Title, out.Items, nil
}
