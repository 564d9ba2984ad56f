package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/funcReveal/musicquiz-client/go/clients/quizapi"
	"github.com/funcReveal/musicquiz-client/go/internal/auth"
	"github.com/funcReveal/musicquiz-client/go/internal/channel"
	"github.com/funcReveal/musicquiz-client/go/internal/localstore"
	"github.com/funcReveal/musicquiz-client/go/internal/room/session"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	config := resolveConfig(getEnv("QUIZ_CONFIG", ""))
	clk := clockwork.NewRealClock()

	local, err := localstore.Open(config.Client.DataPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open local store")
	}
	defer local.Close()

	api := quizapi.NewQuizApiClient(config.Client.APIBaseURL)
	gate := auth.NewGate(credentialRefresher{api: api, local: local}, clk, auth.DefaultConfig())
	api.SetTokenFunc(gate.ValidToken)

	ch := channel.New(channel.DefaultConfig(config.Client.ServerURL), gate, clk)
	store := session.New(ch, local, clk, session.DefaultConfig())

	log.Info().
		Str("server_url", config.Client.ServerURL).
		Str("api_url", config.Client.APIBaseURL).
		Str("status_addr", config.Client.StatusAddr).
		Msg("starting music quiz client")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	connectCtx, connectCancel := context.WithTimeout(ctx, 30*time.Second)
	if err := store.Connect(connectCtx); err != nil {
		log.Error().Err(err).Msg("initial connect failed")
	}
	connectCancel()

	statusServer := newStatusServer(config.Client.StatusAddr, store)
	go func() {
		if err := statusServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("status server failed")
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	statusServer.Shutdown(shutdownCtx)
	store.Close()
}

// credentialRefresher adapts the REST credential exchange to the token
// gate. A refresh also carries the profile, which keeps the stored display
// name current.
type credentialRefresher struct {
	api   *quizapi.QuizApiClient
	local *localstore.Store
}

func (r credentialRefresher) Refresh(ctx context.Context) (string, error) {
	creds, err := r.api.RefreshCredentials(ctx)
	if err != nil {
		return "", err
	}
	if creds.Profile.DisplayName != "" {
		if err := r.local.SetDisplayName(creds.Profile.DisplayName); err != nil {
			log.Warn().Err(err).Msg("could not store display name from profile")
		}
	}
	return creds.Token, nil
}
