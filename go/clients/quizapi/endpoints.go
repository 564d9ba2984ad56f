package quizapi

const (
	// API Endpoints
	RefreshEndpoint         = "/auth/refresh"
	CollectionsEndpoint     = "/collections"
	CollectionItemsEndpoint = "/collections/%s/items"
	CollectionTokenEndpoint = "/collections/%s/read-token"
	PlaylistPreviewEndpoint = "/playlists/preview"
	PlaylistImportEndpoint  = "/playlists/import"
)
