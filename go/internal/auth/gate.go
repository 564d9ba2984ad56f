package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// ErrRefreshThrottled is returned while the failure cool-down window is
// still open after a failed refresh.
var ErrRefreshThrottled = errors.New("auth: refresh throttled after failure")

// Refresher exchanges stored credentials for a fresh bearer token.
type Refresher interface {
	Refresh(ctx context.Context) (token string, err error)
}

// Config holds token gate tuning.
type Config struct {
	// ExpiryMargin treats tokens expiring within the margin as expired so a
	// call never leaves with a token about to lapse mid-flight.
	ExpiryMargin time.Duration
	// FailureCooldown throttles consecutive failed refreshes to one attempt
	// per window.
	FailureCooldown time.Duration
}

// DefaultConfig returns the default gate tuning.
func DefaultConfig() Config {
	return Config{
		ExpiryMargin:    30 * time.Second,
		FailureCooldown: 15 * time.Second,
	}
}

// Gate supplies a valid token on demand. Concurrent callers needing a
// refresh coalesce into one in-flight refresh call.
type Gate struct {
	refresher Refresher
	clock     clockwork.Clock
	config    Config

	group singleflight.Group

	mu          sync.Mutex
	token       string
	expiresAt   time.Time
	lastFailure time.Time
}

// NewGate creates a Gate over the given refresher.
func NewGate(refresher Refresher, clk clockwork.Clock, config Config) *Gate {
	return &Gate{refresher: refresher, clock: clk, config: config}
}

// SetToken seeds the gate, e.g. from an initial login outside the gate.
func (g *Gate) SetToken(token string) {
	g.mu.Lock()
	g.token = token
	g.expiresAt = expiryOf(token)
	g.mu.Unlock()
}

// ValidToken returns the current token if unexpired, otherwise triggers a
// single refresh and returns the result.
func (g *Gate) ValidToken(ctx context.Context) (string, error) {
	g.mu.Lock()
	token := g.token
	fresh := token != "" && (g.expiresAt.IsZero() || g.clock.Now().Add(g.config.ExpiryMargin).Before(g.expiresAt))
	g.mu.Unlock()

	if fresh {
		return token, nil
	}
	return g.ForceRefresh(ctx)
}

// ForceRefresh always performs a refresh, coalescing concurrent callers.
func (g *Gate) ForceRefresh(ctx context.Context) (string, error) {
	v, err, _ := g.group.Do("refresh", func() (interface{}, error) {
		g.mu.Lock()
		throttled := !g.lastFailure.IsZero() && g.clock.Now().Sub(g.lastFailure) < g.config.FailureCooldown
		g.mu.Unlock()
		if throttled {
			return "", ErrRefreshThrottled
		}

		token, err := g.refresher.Refresh(ctx)
		if err != nil {
			g.mu.Lock()
			g.lastFailure = g.clock.Now()
			g.mu.Unlock()
			log.Warn().Err(err).Msg("token refresh failed")
			return "", fmt.Errorf("auth: refresh token: %w", err)
		}

		g.mu.Lock()
		g.token = token
		g.expiresAt = expiryOf(token)
		g.lastFailure = time.Time{}
		g.mu.Unlock()
		return token, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// expiryOf extracts the exp claim without verifying the signature; the
// client only schedules around expiry, the server still enforces it.
func expiryOf(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
