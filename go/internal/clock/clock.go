package clock

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Sync tracks the offset between the local clock and the authoritative
// server clock. Clients have no common ground truth, so every deadline and
// clip position is computed from ServerNow rather than raw local time.
//
// The offset is refreshed opportunistically from any server message that
// carries a timestamp; there is no dedicated time-sync round trip.
type Sync struct {
	clock clockwork.Clock

	mu       sync.RWMutex
	offsetMs int64
	synced   bool
}

// NewSync creates a Sync on the given clock source.
func NewSync(clk clockwork.Clock) *Sync {
	return &Sync{clock: clk}
}

// SyncOffset records serverEpochMs - localNow as the current offset.
func (s *Sync) SyncOffset(serverEpochMs int64) {
	if serverEpochMs <= 0 {
		return
	}
	local := s.clock.Now().UnixMilli()
	s.mu.Lock()
	s.offsetMs = serverEpochMs - local
	s.synced = true
	s.mu.Unlock()
}

// ServerNow returns the estimated server time in epoch ms.
func (s *Sync) ServerNow() int64 {
	s.mu.RLock()
	off := s.offsetMs
	s.mu.RUnlock()
	return s.clock.Now().UnixMilli() + off
}

// OffsetMs returns the current offset in ms and whether any sync happened.
func (s *Sync) OffsetMs() (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.offsetMs, s.synced
}

// Until returns the duration from the estimated server now to the given
// server-epoch-ms deadline. Negative when the deadline already passed.
func (s *Sync) Until(deadlineEpochMs int64) time.Duration {
	return time.Duration(deadlineEpochMs-s.ServerNow()) * time.Millisecond
}
