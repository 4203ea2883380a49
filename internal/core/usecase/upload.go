package usecase

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/kirillkom/fleet-compliance/internal/core/domain"
	"github.com/kirillkom/fleet-compliance/internal/core/ports"
)

// UploadCertificateUseCase runs the interactive single-file path: stage the
// blob, analyze, validate, then hand the session to the user for decisions.
// It never auto-commits.
type UploadCertificateUseCase struct {
	analyzer  ports.DocumentAnalyzer
	storage   ports.ObjectStorage
	engine    *ValidationEngine
	committer *CommitCertificateUseCase
	registry  *SessionRegistry
}

func NewUploadCertificateUseCase(
	analyzer ports.DocumentAnalyzer,
	storage ports.ObjectStorage,
	engine *ValidationEngine,
	committer *CommitCertificateUseCase,
	registry *SessionRegistry,
) *UploadCertificateUseCase {
	return &UploadCertificateUseCase{
		analyzer:  analyzer,
		storage:   storage,
		engine:    engine,
		committer: committer,
		registry:  registry,
	}
}

func (uc *UploadCertificateUseCase) StartSession(
	ctx context.Context,
	req ports.UploadRequest,
	uctx ports.UploadContext,
) (ports.SessionView, error) {
	session := newSession(uuid.NewString(), uctx)
	session.beginAnalysis()

	fileRef := fmt.Sprintf("%s_%s", session.id, sanitizeFilename(req.Filename))
	if err := uc.storage.Save(ctx, fileRef, bytes.NewReader(req.Content)); err != nil {
		return ports.SessionView{}, fmt.Errorf("stage upload: %w", err)
	}

	extraction, err := uc.analyzer.Analyze(ctx, req.Content, req.Filename, req.MimeType, ports.AnalysisContext{
		ShipIdentifier: uctx.ShipID,
		CategoryScope:  uctx.CategoryScope,
	})
	if err != nil {
		uc.dropStaged(ctx, fileRef)
		return ports.SessionView{}, err
	}

	warnings, err := uc.engine.Validate(ctx, extraction, uc.validationContext(uctx))
	if err != nil {
		// Completeness-gate and lookup failures end the pipeline before any
		// decision point; the staged blob is not kept.
		uc.dropStaged(ctx, fileRef)
		return ports.SessionView{}, err
	}

	session.finishAnalysis(extraction, fileRef, warnings)
	uc.registry.put(session)
	return session.View(), nil
}

func (uc *UploadCertificateUseCase) Get(_ context.Context, id string) (ports.SessionView, error) {
	session, err := uc.lookup(id)
	if err != nil {
		return ports.SessionView{}, err
	}
	return session.View(), nil
}

func (uc *UploadCertificateUseCase) Approve(_ context.Context, id string) (ports.SessionView, error) {
	session, err := uc.lookup(id)
	if err != nil {
		return ports.SessionView{}, err
	}
	session.Approve()
	return session.View(), nil
}

// Cancel discards an undecided session. On any other state it is a no-op
// that reports the current view; the session stays live and committable.
func (uc *UploadCertificateUseCase) Cancel(ctx context.Context, id string) (ports.SessionView, error) {
	session, err := uc.lookup(id)
	if err != nil {
		return ports.SessionView{}, err
	}
	fileRef, changed := session.Cancel()
	if !changed {
		return session.View(), nil
	}
	if fileRef != "" {
		uc.dropStaged(ctx, fileRef)
	}
	view := session.View()
	uc.registry.remove(id)
	return view, nil
}

// Commit persists a resolved session exactly once. A second call while one
// is in flight, or after a record was created, fails with ErrInvalidState.
func (uc *UploadCertificateUseCase) Commit(ctx context.Context, id string) (domain.CommitOutcome, error) {
	session, err := uc.lookup(id)
	if err != nil {
		return domain.CommitOutcome{}, err
	}

	input, ok := session.beginCommit()
	if !ok {
		return domain.CommitOutcome{}, domain.WrapError(
			domain.ErrInvalidState,
			"commit session",
			fmt.Errorf("session %s is not ready to commit", id),
		)
	}

	outcome, err := uc.committer.Commit(ctx, input)
	if err != nil {
		session.finishCommit(false)
		return domain.CommitOutcome{}, err
	}

	session.finishCommit(outcome.Succeeded())
	if outcome.Succeeded() {
		uc.registry.remove(id)
	}
	return outcome, nil
}

func (uc *UploadCertificateUseCase) lookup(id string) (*Session, error) {
	session, ok := uc.registry.get(id)
	if !ok {
		return nil, domain.WrapError(
			domain.ErrSessionNotFound,
			"lookup session",
			fmt.Errorf("no live session %s", id),
		)
	}
	return session, nil
}

func (uc *UploadCertificateUseCase) validationContext(uctx ports.UploadContext) ValidationContext {
	vctx := ValidationContext{ShipID: uctx.ShipID, UploadedBy: uctx.UploadedBy}
	if scope, ok := domain.ScopeByName(uctx.CategoryScope); ok {
		vctx.Scope = &scope
	}
	return vctx
}

func (uc *UploadCertificateUseCase) dropStaged(ctx context.Context, fileRef string) {
	if err := uc.storage.Remove(ctx, fileRef); err != nil {
		slog.Warn("drop staged file", "file_ref", fileRef, "error", err)
	}
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" {
		return "document.bin"
	}
	return base
}
