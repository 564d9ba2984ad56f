package session

import (
	"context"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/funcReveal/musicquiz-client/go/internal/models"
	"github.com/funcReveal/musicquiz-client/go/internal/room/events"
)

// StartGame asks the server to start a game (host only). The question
// count is clamped to the available tracks and remembered as the host's
// preference on success.
func (s *Store) StartGame(ctx context.Context, questionCount int) bool {
	if !s.begin(OpStartGame) {
		return false
	}
	defer s.end(OpStartGame)

	s.mu.Lock()
	total := s.playlist.TotalCount
	ready := s.playlist.Ready
	s.mu.Unlock()

	if !ready {
		s.setStatus("the playlist is still uploading")
		return false
	}
	if total > 0 {
		questionCount = clampInt(questionCount, 1, total)
	}

	ack, err := s.ch.Call(ctx, events.CallStartGame, events.StartGameRequest{QuestionCount: questionCount})
	if err != nil {
		s.setStatus("could not start game: " + err.Error())
		return false
	}
	if !ack.OK {
		s.setStatus("could not start game: " + ack.Error)
		return false
	}
	s.local.SetQuestionCount(questionCount)
	return true
}

// pendingAnswer is the at-most-one submission slot per question key.
type pendingAnswer struct {
	key    models.QuestionKey
	choice int
	sent   bool
	timer  clockwork.Timer
}

// SubmitChoice locks in an answer for the current question, deduplicated by
// the (startedAt, currentIndex) key:
//
//   - the same choice for the same key while one is pending is dropped;
//   - a different choice for the same key supersedes the pending one;
//   - sends are rate-limited to one per guard interval, faster calls
//     coalesce and the latest choice flushes at the next allowed instant;
//   - anything still pending is discarded the instant the phase leaves
//     guess or the question key changes.
//
// Returns true when the choice was accepted (possibly coalesced).
func (s *Store) SubmitChoice(choiceIndex int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.game == nil || s.game.Status != models.GameStatusPlaying || s.game.Phase != models.GamePhaseGuess {
		return false
	}
	if choiceIndex < 0 || choiceIndex >= len(s.game.Choices) {
		return false
	}
	key := s.game.Key()

	if s.pending != nil && s.pending.key == key {
		if s.pending.choice == choiceIndex {
			// Duplicate click; the pending submission already covers it.
			return true
		}
		if !s.pending.sent {
			// Supersede: the scheduled flush picks up the latest choice.
			s.pending.choice = choiceIndex
			return true
		}
		// The earlier choice is already on the wire; queue the replacement
		// for the next allowed instant.
	}
	s.clearPendingLocked()

	p := &pendingAnswer{key: key, choice: choiceIndex}
	s.pending = p

	// Trailing debounce: the flush fires one guard interval after the first
	// click so rapid re-clicks coalesce and only the latest choice reaches
	// the wire. The interval also keeps consecutive sends apart.
	p.timer = s.clk.AfterFunc(s.config.AnswerGuardInterval, func() {
		s.mu.Lock()
		if s.pending != p {
			s.mu.Unlock()
			return
		}
		// Re-check live state at flush time; the guard window may have
		// outlived the question.
		if s.game == nil || s.game.Status != models.GameStatusPlaying ||
			s.game.Phase != models.GamePhaseGuess || s.game.Key() != p.key {
			s.clearPendingLocked()
			s.mu.Unlock()
			return
		}
		s.flushAnswerLocked(p)
		s.mu.Unlock()
	})
	return true
}

// flushAnswerLocked sends the pending answer now. Caller holds s.mu.
func (s *Store) flushAnswerLocked(p *pendingAnswer) {
	p.sent = true
	p.timer = nil

	req := events.SubmitAnswerRequest{
		StartedAt:     p.key.StartedAt,
		QuestionIndex: p.key.Index,
		ChoiceIndex:   p.choice,
	}
	roomID := s.currentRoomID
	ctx := s.runCtx
	if ctx == nil {
		ctx = context.Background()
	}

	go func() {
		ack, err := s.ch.Call(ctx, events.CallSubmitAnswer, req)

		s.mu.Lock()
		if s.pending == p {
			s.pending = nil
		}
		// Results for a question or room that moved on are discarded.
		stale := s.currentRoomID != roomID ||
			s.game == nil || s.game.Key() != p.key
		if !stale {
			if err != nil {
				s.statusText = "answer not delivered: " + err.Error()
			} else if !ack.OK {
				s.statusText = "answer rejected: " + ack.Error
			}
		}
		s.mu.Unlock()

		if err != nil || !ack.OK {
			log.Warn().Err(err).Int("choice", p.choice).Msg("answer submission failed")
		}
		s.notify()
	}()
}

// clearPendingLocked drops any pending submission. Caller holds s.mu.
func (s *Store) clearPendingLocked() {
	if s.pending == nil {
		return
	}
	if s.pending.timer != nil {
		s.pending.timer.Stop()
		s.pending.timer = nil
	}
	s.pending = nil
}
