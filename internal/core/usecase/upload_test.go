package usecase

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/fleet-compliance/internal/core/domain"
	"github.com/kirillkom/fleet-compliance/internal/core/ports"
)

type uploadFixture struct {
	repo     *repoFake
	storage  *storageFake
	analyzer *analyzerFake
	uploader *UploadCertificateUseCase
}

func newUploadFixture(t *testing.T, repo *repoFake) *uploadFixture {
	t.Helper()
	storage := newStorageFake()
	analyzer := newAnalyzerFake()
	committer := newTestCommitter(repo)
	engine := newTestEngine(repo)
	return &uploadFixture{
		repo:     repo,
		storage:  storage,
		analyzer: analyzer,
		uploader: NewUploadCertificateUseCase(analyzer, storage, engine, committer, NewSessionRegistry()),
	}
}

func pdfUpload(filename string) ports.UploadRequest {
	return ports.UploadRequest{
		Filename: filename,
		MimeType: "application/pdf",
		Content:  []byte("%PDF-1.4 stub"),
	}
}

func TestStartSessionCleanFileResolvesImmediately(t *testing.T) {
	fx := newUploadFixture(t, &repoFake{})
	fx.analyzer.results["smc.pdf"] = completeExtraction()

	view, err := fx.uploader.StartSession(context.Background(), pdfUpload("smc.pdf"), ports.UploadContext{
		ShipID: "IMO 9321483",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.State != string(SessionResolved) {
		t.Fatalf("state = %s, want resolved", view.State)
	}
	if view.Result == nil || view.Result.CertificateNo != "SMC-2026-001" {
		t.Fatalf("view must carry the extraction, got %+v", view.Result)
	}
	if fx.storage.stagedCount() != 1 {
		t.Fatalf("staged files = %d, want 1", fx.storage.stagedCount())
	}
}

func TestStartSessionAnalysisFailureDropsStagedFile(t *testing.T) {
	fx := newUploadFixture(t, &repoFake{})
	fx.analyzer.errs["bad.pdf"] = domain.WrapError(domain.ErrAnalysisFailed, "analyze document", context.DeadlineExceeded)

	_, err := fx.uploader.StartSession(context.Background(), pdfUpload("bad.pdf"), ports.UploadContext{
		ShipID: "IMO 9321483",
	})
	if !domain.IsKind(err, domain.ErrAnalysisFailed) {
		t.Fatalf("expected ErrAnalysisFailed, got %v", err)
	}
	if fx.storage.stagedCount() != 0 {
		t.Fatalf("staged files = %d, want 0 after analysis failure", fx.storage.stagedCount())
	}
}

func TestStartSessionMissingFieldsDropsStagedFile(t *testing.T) {
	fx := newUploadFixture(t, &repoFake{})
	fx.analyzer.results["partial.pdf"] = &domain.ExtractionResult{CertificateName: "SMC"}

	_, err := fx.uploader.StartSession(context.Background(), pdfUpload("partial.pdf"), ports.UploadContext{
		ShipID: "IMO 9321483",
	})
	if !domain.IsKind(err, domain.ErrMissingFields) {
		t.Fatalf("expected ErrMissingFields, got %v", err)
	}
	if fx.storage.stagedCount() != 0 {
		t.Fatalf("staged files = %d, want 0", fx.storage.stagedCount())
	}
}

func TestCancelIdentityMismatchLeavesNoTrace(t *testing.T) {
	fx := newUploadFixture(t, &repoFake{})
	extraction := completeExtraction()
	extraction.ShipIdentifier = "IMO 1111111"
	fx.analyzer.results["foreign.pdf"] = extraction

	ctx := context.Background()
	view, err := fx.uploader.StartSession(ctx, pdfUpload("foreign.pdf"), ports.UploadContext{
		ShipID:     "IMO 9321483",
		UploadedBy: "inspector",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.State != string(SessionAwaitingDecision) {
		t.Fatalf("state = %s, want awaiting_decision", view.State)
	}

	cancelled, err := fx.uploader.Cancel(ctx, view.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.State != string(SessionCancelled) {
		t.Fatalf("state = %s, want cancelled", cancelled.State)
	}
	if fx.storage.stagedCount() != 0 {
		t.Fatalf("staged files = %d, want 0 after cancel", fx.storage.stagedCount())
	}
	if fx.repo.createdCount() != 0 {
		t.Fatal("cancel must not persist anything")
	}
	if _, err := fx.uploader.Get(ctx, view.ID); !domain.IsKind(err, domain.ErrSessionNotFound) {
		t.Fatalf("cancelled session must leave the registry, got %v", err)
	}
}

func TestApproveThenCommitCarriesOverrideNote(t *testing.T) {
	fx := newUploadFixture(t, &repoFake{})
	extraction := completeExtraction()
	extraction.ShipIdentifier = "IMO 1111111"
	fx.analyzer.results["foreign.pdf"] = extraction

	ctx := context.Background()
	view, err := fx.uploader.StartSession(ctx, pdfUpload("foreign.pdf"), ports.UploadContext{
		ShipID:     "IMO 9321483",
		UploadedBy: "inspector@fleet.example",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	approved, err := fx.uploader.Approve(ctx, view.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.State != string(SessionResolved) {
		t.Fatalf("state = %s, want resolved", approved.State)
	}

	outcome, err := fx.uploader.Commit(ctx, view.ID)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if outcome.Code != domain.CommitCreated {
		t.Fatalf("code = %s, want created: %s", outcome.Code, outcome.Reason)
	}
	if !outcome.Certificate.Override {
		t.Error("override flag must persist")
	}
	if !strings.Contains(outcome.Certificate.Notes, "inspector@fleet.example") {
		t.Errorf("note must record who accepted the mismatch, got %q", outcome.Certificate.Notes)
	}
	if fx.storage.stagedCount() != 1 {
		t.Fatal("committed upload keeps its staged file")
	}
	if _, err := fx.uploader.Get(ctx, view.ID); !domain.IsKind(err, domain.ErrSessionNotFound) {
		t.Fatalf("committed session must leave the registry, got %v", err)
	}
}

func TestApproveDuplicateThenCommitCreates(t *testing.T) {
	repo := &repoFake{duplicate: &domain.CertificateSummary{ID: "existing", Number: "SMC-2026-001"}}
	fx := newUploadFixture(t, repo)
	fx.analyzer.results["dup.pdf"] = completeExtraction()

	ctx := context.Background()
	view, err := fx.uploader.StartSession(ctx, pdfUpload("dup.pdf"), ports.UploadContext{
		ShipID:     "IMO 9321483",
		UploadedBy: "inspector",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.CurrentWarning == nil || view.CurrentWarning.Kind != domain.WarningDuplicateCandidate {
		t.Fatalf("head warning = %+v, want duplicate candidate", view.CurrentWarning)
	}

	approved, err := fx.uploader.Approve(ctx, view.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.State != string(SessionResolved) {
		t.Fatalf("state = %s, want resolved", approved.State)
	}

	// The existing record is still there; approval means register anyway.
	outcome, err := fx.uploader.Commit(ctx, view.ID)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if outcome.Code != domain.CommitCreated {
		t.Fatalf("code = %s, want created: %s", outcome.Code, outcome.Reason)
	}
	if outcome.Certificate.Override {
		t.Error("duplicate approval must not flag an identity override")
	}
	if repo.createdCount() != 1 {
		t.Fatalf("created = %d, want 1", repo.createdCount())
	}
}

func TestCancelOnResolvedSessionIsNoOp(t *testing.T) {
	fx := newUploadFixture(t, &repoFake{})
	fx.analyzer.results["smc.pdf"] = completeExtraction()

	ctx := context.Background()
	view, err := fx.uploader.StartSession(ctx, pdfUpload("smc.pdf"), ports.UploadContext{ShipID: "IMO 9321483"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.State != string(SessionResolved) {
		t.Fatalf("state = %s, want resolved", view.State)
	}

	// A stray cancel on a resolved session changes nothing.
	after, err := fx.uploader.Cancel(ctx, view.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if after.State != string(SessionResolved) {
		t.Fatalf("state = %s, want still resolved", after.State)
	}
	if fx.storage.stagedCount() != 1 {
		t.Fatal("staged blob must survive the no-op cancel")
	}

	outcome, err := fx.uploader.Commit(ctx, view.ID)
	if err != nil {
		t.Fatalf("commit after stray cancel: %v", err)
	}
	if outcome.Code != domain.CommitCreated {
		t.Fatalf("code = %s, want created: %s", outcome.Code, outcome.Reason)
	}
}

func TestCommitWhileAwaitingDecisionIsInvalidState(t *testing.T) {
	fx := newUploadFixture(t, &repoFake{duplicate: &domain.CertificateSummary{ID: "existing"}})
	fx.analyzer.results["dup.pdf"] = completeExtraction()

	ctx := context.Background()
	view, err := fx.uploader.StartSession(ctx, pdfUpload("dup.pdf"), ports.UploadContext{ShipID: "IMO 9321483"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := fx.uploader.Commit(ctx, view.ID); !domain.IsKind(err, domain.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestConcurrentCommitCreatesExactlyOneRecord(t *testing.T) {
	repo := &repoFake{
		createGate:    make(chan struct{}),
		createEntered: make(chan struct{}),
	}
	fx := newUploadFixture(t, repo)
	fx.analyzer.results["smc.pdf"] = completeExtraction()

	ctx := context.Background()
	view, err := fx.uploader.StartSession(ctx, pdfUpload("smc.pdf"), ports.UploadContext{ShipID: "IMO 9321483"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	firstDone := make(chan error, 1)
	go func() {
		_, err := fx.uploader.Commit(ctx, view.ID)
		firstDone <- err
	}()

	select {
	case <-repo.createEntered:
	case <-time.After(2 * time.Second):
		t.Fatal("first commit never reached the repository")
	}

	// The second caller loses the commit slot while the first is in flight.
	if _, err := fx.uploader.Commit(ctx, view.ID); !domain.IsKind(err, domain.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}

	close(repo.createGate)
	if err := <-firstDone; err != nil {
		t.Fatalf("first commit: %v", err)
	}
	if repo.createdCount() != 1 {
		t.Fatalf("created = %d, want exactly 1", repo.createdCount())
	}

	// The winning commit retires the session.
	if _, err := fx.uploader.Commit(ctx, view.ID); !domain.IsKind(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after commit, got %v", err)
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Safety Cert (final).pdf", "Safety_Cert__final_.pdf"},
		{"../../etc/passwd", "passwd"},
		{"smc.pdf", "smc.pdf"},
		{"", "document.bin"},
	}
	for _, tc := range cases {
		if got := sanitizeFilename(tc.in); got != tc.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
