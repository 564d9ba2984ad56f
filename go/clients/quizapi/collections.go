package quizapi

import (
	"context"
	"fmt"

	"github.com/funcReveal/musicquiz-client/go/internal/models"
)

// Collection is a saved track list owned by the signed-in account.
type Collection struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	TrackCount int    `json:"track_count"`
	Public     bool   `json:"public"`
	UpdatedAt  int64  `json:"updated_at"` // epoch ms
}

// CollectionUpdate is the mutable subset of a collection.
type CollectionUpdate struct {
	Title  *string               `json:"title,omitempty"`
	Public *bool                 `json:"public,omitempty"`
	Items  []models.PlaylistItem `json:"items,omitempty"`
}

// ListCollections returns the account's saved collections.
func (c *QuizApiClient) ListCollections(ctx context.Context) ([]Collection, error) {
	var out struct {
		Collections []Collection `json:"collections"`
	}
	if err := c.MakeJSONRequest(ctx, "GET", CollectionsEndpoint, nil, &out); err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	return out.Collections, nil
}

// CreateCollection saves a new collection from the given items.
func (c *QuizApiClient) CreateCollection(ctx context.Context, title string, items []models.PlaylistItem) (*Collection, error) {
	in := struct {
		Title string                `json:"title"`
		Items []models.PlaylistItem `json:"items"`
	}{Title: title, Items: items}

	var out Collection
	if err := c.MakeJSONRequest(ctx, "POST", CollectionsEndpoint, in, &out); err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}
	return &out, nil
}

// UpdateCollection applies a partial update to a collection.
func (c *QuizApiClient) UpdateCollection(ctx context.Context, id string, update CollectionUpdate) (*Collection, error) {
	var out Collection
	if err := c.MakeJSONRequest(ctx, "PUT", CollectionsEndpoint+"/"+id, update, &out); err != nil {
		return nil, fmt.Errorf("failed to update collection %s: %w", id, err)
	}
	return &out, nil
}

// CollectionItems returns the full ordered track list of a collection. An
// optional read token grants access to someone else's private collection.
func (c *QuizApiClient) CollectionItems(ctx context.Context, id, readToken string) ([]models.PlaylistItem, error) {
	endpoint := fmt.Sprintf(CollectionItemsEndpoint, id)
	if readToken != "" {
		endpoint += "?read_token=" + readToken
	}

	var out struct {
		Items []models.PlaylistItem `json:"items"`
	}
	if err := c.MakeJSONRequest(ctx, "GET", endpoint, nil, &out); err != nil {
		return nil, fmt.Errorf("failed to get collection items %s: %w", id, err)
	}
	return out.Items, nil
}

// IssueReadToken mints a short-lived read token so a private collection can
// be recommended to a room without making it public.
func (c *QuizApiClient) IssueReadToken(ctx context.Context, id string) (string, error) {
	var out struct {
		ReadToken string `json:"read_token"`
	}
	endpoint := fmt.Sprintf(CollectionTokenEndpoint, id)
	if err := c.MakeJSONRequest(ctx, "POST", endpoint, nil, &out); err != nil {
		return "", fmt.Errorf("failed to issue read token for %s: %w", id, err)
	}
	return out.ReadToken, nil
}
