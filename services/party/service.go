// Package party issues and resolves short shareable codes that bind a set
// of participants to a single piece of content. The registry is process
// local by design; it tracks membership only and implements no media sync.
package party

import (
	"context"
	"errors"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"couchsync/models"
	"couchsync/utils"
)

var (
	ErrHostIDRequired      = errors.New("host id is required")
	ErrParticipantRequired = errors.New("participant id is required")
	ErrTitleRequired       = errors.New("content title is required")
)

const (
	// DefaultCodeLength keeps codes short enough to read over a call.
	DefaultCodeLength = 6

	// DefaultTTL is a hard lifetime from creation, not an idle timeout.
	DefaultTTL = 24 * time.Hour

	defaultSweepInterval = 10 * time.Minute
)

// Service is the in-memory session registry. Construct one per process and
// inject it; sessions do not survive a restart.
type Service struct {
	mu         sync.RWMutex
	sessions   map[string]models.PartySession // code -> session
	codeLength int
	ttl        time.Duration
	now        func() time.Time

	running    bool
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	sweepEvery time.Duration
}

func NewService(codeLength int, ttl time.Duration) *Service {
	if codeLength <= 0 {
		codeLength = DefaultCodeLength
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		sessions:   make(map[string]models.PartySession),
		codeLength: codeLength,
		ttl:        ttl,
		now:        func() time.Time { return time.Now().UTC() },
		sweepEvery: defaultSweepInterval,
	}
}

// SetClock overrides the time source so tests can drive expiry without
// real timers.
func (s *Service) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Start launches the background janitor that reclaims expired codes.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.running = true

	s.wg.Add(1)
	go s.janitorLoop(ctx)

	log.Println("[party] session janitor started")
	return nil
}

// Stop halts the janitor. Expiry is still enforced lazily on lookup, so a
// stopped registry answers correctly, it just stops reclaiming memory.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.cancel()
	s.running = false
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("[party] session janitor stopped")
	case <-ctx.Done():
		log.Println("[party] session janitor stop timed out")
	}
	return nil
}

func (s *Service) janitorLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := s.Sweep(); removed > 0 {
				log.Printf("[party] reclaimed %d expired session(s)", removed)
			}
		}
	}
}

// Sweep removes every expired session and returns how many were reclaimed.
// The janitor calls this on a timer; tests call it directly.
func (s *Service) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for code, session := range s.sessions {
		if now.Sub(session.CreatedAt) >= s.ttl {
			delete(s.sessions, code)
			removed++
		}
	}
	return removed
}

// expiredLocked reports whether the session passed its hard TTL.
func (s *Service) expiredLocked(session models.PartySession) bool {
	return s.now().Sub(session.CreatedAt) >= s.ttl
}

// CreateSession registers a new session under a freshly generated code and
// returns it. Codes are unique among all currently registered sessions;
// deactivated codes stay reserved until the janitor reclaims them.
func (s *Service) CreateSession(ref models.ContentRef, title, hostID string) (models.PartySession, error) {
	hostID = strings.TrimSpace(hostID)
	if hostID == "" {
		return models.PartySession{}, ErrHostIDRequired
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return models.PartySession{}, ErrTitleRequired
	}
	if err := ref.Validate(); err != nil {
		return models.PartySession{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var code string
	for {
		candidate, err := utils.GeneratePartyCode(s.codeLength)
		if err != nil {
			return models.PartySession{}, err
		}
		existing, taken := s.sessions[candidate]
		if !taken || s.expiredLocked(existing) {
			code = candidate
			break
		}
	}

	session := models.PartySession{
		Code:           code,
		ContentRef:     ref,
		ContentTitle:   title,
		HostID:         hostID,
		ParticipantIDs: []string{hostID},
		CreatedAt:      s.now(),
		IsActive:       true,
	}
	s.sessions[code] = session
	return session, nil
}

// JoinSession adds the participant to an active session. A missing, expired
// or deactivated code yields nil, which callers surface as "party not
// found" rather than an error. Rejoining is a no-op.
func (s *Service) JoinSession(code, participantID string) (*models.PartySession, error) {
	participantID = strings.TrimSpace(participantID)
	if participantID == "" {
		return nil, ErrParticipantRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[normalizeCode(code)]
	if !ok || !session.IsActive || s.expiredLocked(session) {
		return nil, nil
	}

	if !session.HasParticipant(participantID) {
		session.ParticipantIDs = append(session.ParticipantIDs, participantID)
		s.sessions[session.Code] = session
	}

	copied := session
	copied.ParticipantIDs = append([]string(nil), session.ParticipantIDs...)
	return &copied, nil
}

// SessionExists reports whether a live, active session answers to the code.
func (s *Service) SessionExists(code string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[normalizeCode(code)]
	return ok && session.IsActive && !s.expiredLocked(session)
}

// LeaveSession removes the participant. The host leaving, or the set
// emptying out, deactivates the session; its code is not reused until the
// janitor reclaims it. Returns whether the participant was actually removed.
func (s *Service) LeaveSession(code, participantID string) bool {
	participantID = strings.TrimSpace(participantID)
	if participantID == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[normalizeCode(code)]
	if !ok || !session.IsActive || s.expiredLocked(session) {
		return false
	}
	if !session.HasParticipant(participantID) {
		return false
	}

	remaining := make([]string, 0, len(session.ParticipantIDs)-1)
	for _, p := range session.ParticipantIDs {
		if p != participantID {
			remaining = append(remaining, p)
		}
	}
	session.ParticipantIDs = remaining

	if participantID == session.HostID || len(remaining) == 0 {
		session.IsActive = false
	}

	s.sessions[session.Code] = session
	return true
}

// GetSession returns the session for a code, or nil when the code does not
// resolve to a live, active session.
func (s *Service) GetSession(code string) *models.PartySession {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[normalizeCode(code)]
	if !ok || !session.IsActive || s.expiredLocked(session) {
		return nil
	}

	copied := session
	copied.ParticipantIDs = append([]string(nil), session.ParticipantIDs...)
	return &copied
}

// ListSessions returns every registered session including inactive ones,
// newest first. Diagnostic use only.
func (s *Service) ListSessions() []models.PartySession {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]models.PartySession, 0, len(s.sessions))
	for _, session := range s.sessions {
		copied := session
		copied.ParticipantIDs = append([]string(nil), session.ParticipantIDs...)
		sessions = append(sessions, copied)
	}

	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].CreatedAt.Equal(sessions[j].CreatedAt) {
			return sessions[i].Code < sessions[j].Code
		}
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})

	return sessions
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
