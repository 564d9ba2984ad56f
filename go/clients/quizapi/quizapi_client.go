package quizapi

import (
	"github.com/funcReveal/musicquiz-client/go/clients"
)

// QuizApiClient talks to the REST collaborators that live outside the game
// channel: credential refresh, saved collections and public playlist
// preview/import.
type QuizApiClient struct {
	*clients.BaseClient
}

func NewQuizApiClient(baseURL string) *QuizApiClient {
	return &QuizApiClient{
		BaseClient: clients.NewBaseClient(baseURL),
	}
}
