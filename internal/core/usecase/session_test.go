package usecase

import (
	"testing"

	"github.com/kirillkom/fleet-compliance/internal/core/domain"
	"github.com/kirillkom/fleet-compliance/internal/core/ports"
)

func sessionWithWarnings(t *testing.T, warnings ...domain.ValidationWarning) *Session {
	t.Helper()
	session := newSession("sess-1", ports.UploadContext{ShipID: "IMO 9321483", UploadedBy: "inspector"})
	session.beginAnalysis()
	session.finishAnalysis(completeExtraction(), "sess-1_doc.pdf", warnings)
	return session
}

func TestSessionNoWarningsResolvesImmediately(t *testing.T) {
	session := sessionWithWarnings(t)
	view := session.View()
	if view.State != string(SessionResolved) {
		t.Fatalf("state = %s, want resolved", view.State)
	}
	if view.CurrentWarning != nil {
		t.Errorf("resolved session must not expose a warning")
	}
}

func TestSessionApproveIdentityMismatchRecordsNoteOnce(t *testing.T) {
	warning := domain.ValidationWarning{
		Kind:         domain.WarningIdentityMismatch,
		OverrideNote: "Ship identifier mismatch: extracted IMO 1, expected IMO 2",
	}
	session := sessionWithWarnings(t, warning)

	if view := session.View(); view.State != string(SessionAwaitingDecision) {
		t.Fatalf("state = %s, want awaiting_decision", view.State)
	}
	if !session.Approve() {
		t.Fatal("first approve must succeed")
	}
	// The queue is empty now; a stray double-click changes nothing.
	if session.Approve() {
		t.Fatal("second approve must be a no-op")
	}

	input, ok := session.beginCommit()
	if !ok {
		t.Fatal("resolved session must accept a commit")
	}
	if !input.IsOverride {
		t.Error("identity approval must switch the commit to the override path")
	}
	if input.OverrideNote != warning.OverrideNote {
		t.Errorf("override note = %q, want %q", input.OverrideNote, warning.OverrideNote)
	}
}

func TestSessionApproveDuplicateConfirmsReRegistration(t *testing.T) {
	session := sessionWithWarnings(t, domain.ValidationWarning{
		Kind:     domain.WarningDuplicateCandidate,
		Existing: &domain.CertificateSummary{ID: "existing"},
	})

	if !session.Approve() {
		t.Fatal("approve must succeed")
	}
	input, ok := session.beginCommit()
	if !ok {
		t.Fatal("resolved session must accept a commit")
	}
	if input.IsOverride {
		t.Error("duplicate approval is a deliberate re-registration, not an identity override")
	}
	if input.OverrideNote != "" {
		t.Errorf("unexpected note %q", input.OverrideNote)
	}
	if !input.DuplicateConfirmed {
		t.Error("approval must mark the duplicate as confirmed so the commit re-check stands down")
	}
}

func TestSessionWarningsResolveInOrder(t *testing.T) {
	session := sessionWithWarnings(t,
		domain.ValidationWarning{Kind: domain.WarningIdentityMismatch, OverrideNote: "note"},
		domain.ValidationWarning{Kind: domain.WarningDuplicateCandidate},
	)

	view := session.View()
	if view.PendingCount != 2 {
		t.Fatalf("pending = %d, want 2", view.PendingCount)
	}
	if view.CurrentWarning == nil || view.CurrentWarning.Kind != domain.WarningIdentityMismatch {
		t.Fatalf("head warning = %+v, want identity mismatch", view.CurrentWarning)
	}

	session.Approve()
	view = session.View()
	if view.State != string(SessionAwaitingDecision) || view.PendingCount != 1 {
		t.Fatalf("after first approve: state=%s pending=%d", view.State, view.PendingCount)
	}
	if view.CurrentWarning.Kind != domain.WarningDuplicateCandidate {
		t.Fatalf("head warning = %s, want duplicate candidate", view.CurrentWarning.Kind)
	}

	session.Approve()
	if view := session.View(); view.State != string(SessionResolved) {
		t.Fatalf("state = %s, want resolved", view.State)
	}
}

func TestSessionCancelOnlyFromAwaitingDecision(t *testing.T) {
	session := sessionWithWarnings(t, domain.ValidationWarning{Kind: domain.WarningDuplicateCandidate})

	fileRef, changed := session.Cancel()
	if !changed || fileRef != "sess-1_doc.pdf" {
		t.Fatalf("cancel = (%q, %v), want staged ref and true", fileRef, changed)
	}
	if view := session.View(); view.State != string(SessionCancelled) {
		t.Fatalf("state = %s, want cancelled", view.State)
	}
	if view := session.View(); view.Result != nil {
		t.Error("cancelled session must discard the extraction")
	}

	if _, changed := session.Cancel(); changed {
		t.Fatal("second cancel must be a no-op")
	}

	resolved := sessionWithWarnings(t)
	if _, changed := resolved.Cancel(); changed {
		t.Fatal("resolved session must not cancel")
	}
}

func TestSessionCommitLatch(t *testing.T) {
	session := sessionWithWarnings(t)

	if _, ok := session.beginCommit(); !ok {
		t.Fatal("first beginCommit must win")
	}
	if _, ok := session.beginCommit(); ok {
		t.Fatal("in-flight commit must block a second")
	}

	// A failed commit releases the slot for a retry.
	session.finishCommit(false)
	if _, ok := session.beginCommit(); !ok {
		t.Fatal("failed commit must be retryable")
	}

	// A created record closes the session for good.
	session.finishCommit(true)
	if _, ok := session.beginCommit(); ok {
		t.Fatal("committed session must never commit again")
	}
}

func TestSessionCommitBlockedWhileAwaitingDecision(t *testing.T) {
	session := sessionWithWarnings(t, domain.ValidationWarning{Kind: domain.WarningDuplicateCandidate})
	if _, ok := session.beginCommit(); ok {
		t.Fatal("unresolved session must not commit")
	}
}
