package quizapi

import (
	"context"
	"fmt"
)

// Profile is the account profile returned alongside a refreshed token.
type Profile struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// Credentials is the result of a credential refresh.
type Credentials struct {
	Token   string  `json:"token"`
	Profile Profile `json:"profile"`
}

// RefreshCredentials exchanges the stored refresh cookie/credential for a
// fresh bearer token plus the current profile.
func (c *QuizApiClient) RefreshCredentials(ctx context.Context) (*Credentials, error) {
	var creds Credentials
	if err := c.MakeJSONRequestNoAuth(ctx, "POST", RefreshEndpoint, nil, &creds); err != nil {
		return nil, fmt.Errorf("failed to refresh credentials: %w", err)
	}
	if creds.Token == "" {
		return nil, fmt.Errorf("refresh returned empty token")
	}
	return &creds, nil
}
