package usecase

import (
	"strings"
	"sync"

	"github.com/kirillkom/fleet-compliance/internal/core/domain"
	"github.com/kirillkom/fleet-compliance/internal/core/ports"
)

type SessionState string

const (
	SessionIdle             SessionState = "idle"
	SessionAnalyzing        SessionState = "analyzing"
	SessionAwaitingDecision SessionState = "awaiting_decision"
	SessionResolved         SessionState = "resolved"
	SessionCancelled        SessionState = "cancelled"
)

// Session is the coordinator for one interactive upload. It suspends at
// AwaitingDecision exposing the head-of-queue warning until Approve or
// Cancel is called; both are no-ops once the session has left that state,
// which guards against double-click races in the UI.
type Session struct {
	id         string
	shipID     string
	uploadedBy string

	mu           sync.Mutex
	state        SessionState
	queue        []domain.ValidationWarning
	result       *domain.ExtractionResult
	fileRef      string
	notes        []string
	override     bool
	dupConfirmed bool
	committing   bool
	committed    bool
}

func newSession(id string, uctx ports.UploadContext) *Session {
	return &Session{
		id:         id,
		shipID:     uctx.ShipID,
		uploadedBy: uctx.UploadedBy,
		state:      SessionIdle,
	}
}

func (s *Session) beginAnalysis() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = SessionAnalyzing
}

// finishAnalysis stores the extraction and the unresolved warning queue.
// The session lands on AwaitingDecision when warnings exist, otherwise it
// resolves immediately.
func (s *Session) finishAnalysis(result *domain.ExtractionResult, fileRef string, warnings []domain.ValidationWarning) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.result = result
	s.fileRef = fileRef
	s.queue = warnings
	if len(warnings) > 0 {
		s.state = SessionAwaitingDecision
		return
	}
	s.state = SessionResolved
}

// Approve resolves the current warning. For an identity mismatch the
// pre-built note is appended and the eventual commit switches to the
// override path; a duplicate approval marks the session as a confirmed
// re-registration so the commit-time re-check does not raise it again.
func (s *Session) Approve() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != SessionAwaitingDecision || len(s.queue) == 0 {
		return false
	}

	head := s.queue[0]
	switch head.Kind {
	case domain.WarningIdentityMismatch:
		s.notes = append(s.notes, head.OverrideNote)
		s.override = true
	case domain.WarningDuplicateCandidate:
		s.dupConfirmed = true
	}

	s.queue = s.queue[1:]
	if len(s.queue) == 0 {
		s.state = SessionResolved
	}
	return true
}

// Cancel discards the extracted data and reports the staged file reference
// so the caller can drop the blob. No persistence mutation has happened.
func (s *Session) Cancel() (fileRef string, changed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != SessionAwaitingDecision {
		return "", false
	}
	fileRef = s.fileRef
	s.fileRef = ""
	s.result = nil
	s.queue = nil
	s.state = SessionCancelled
	return fileRef, true
}

// beginCommit reserves the single commit slot. A second caller loses until
// finishCommit releases it, and nobody wins again after a created record.
func (s *Session) beginCommit() (commitInput, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != SessionResolved || s.committing || s.committed {
		return commitInput{}, false
	}
	s.committing = true
	return commitInput{
		ShipID:             s.shipID,
		Fields:             *s.result,
		FileRef:            s.fileRef,
		OverrideNote:       strings.Join(s.notes, "\n"),
		IsOverride:         s.override,
		DuplicateConfirmed: s.dupConfirmed,
	}, true
}

func (s *Session) finishCommit(created bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.committing = false
	if created {
		s.committed = true
	}
}

func (s *Session) View() ports.SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()

	view := ports.SessionView{
		ID:           s.id,
		State:        string(s.state),
		PendingCount: len(s.queue),
	}
	if s.state == SessionAwaitingDecision && len(s.queue) > 0 {
		head := s.queue[0]
		view.CurrentWarning = &head
	}
	if s.result != nil {
		result := *s.result
		view.Result = &result
	}
	return view
}

// SessionRegistry is the in-memory home of live interactive sessions.
// Sessions are removed on commit or cancel.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]*Session)}
}

func (r *SessionRegistry) put(session *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.id] = session
}

func (r *SessionRegistry) get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[id]
	return session, ok
}

func (r *SessionRegistry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}
