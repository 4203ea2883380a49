package ports

import (
	"context"

	"github.com/kirillkom/fleet-compliance/internal/core/domain"
)

// UploadRequest describes one file submitted for ingestion.
type UploadRequest struct {
	Filename  string
	MimeType  string
	SizeBytes int64
	Content   []byte
}

// UploadContext is shared by every file of a submission.
type UploadContext struct {
	ShipID        string
	CategoryScope string
	UploadedBy    string
}

// BatchResult is the settled outcome of a multi-file upload.
type BatchResult struct {
	BatchID string              `json:"batch_id"`
	Tasks   []domain.UploadTask `json:"tasks"`
	Summary domain.BatchSummary `json:"summary"`
	// AutoFill carries the fields of the first task to complete, for the
	// surrounding form. Nil when no task succeeded.
	AutoFill *domain.ExtractionResult `json:"auto_fill,omitempty"`
}

// SessionView is the externally visible state of an interactive session.
type SessionView struct {
	ID             string                    `json:"id"`
	State          string                    `json:"state"`
	CurrentWarning *domain.ValidationWarning `json:"current_warning,omitempty"`
	PendingCount   int                       `json:"pending_count"`
	Result         *domain.ExtractionResult  `json:"result,omitempty"`
}

// CertificateUploader is the inbound contract for the ingestion pipeline.
// Exactly one file routes to the interactive path; two or more route to the
// non-interactive batch path.
type CertificateUploader interface {
	StartSession(ctx context.Context, req UploadRequest, uctx UploadContext) (SessionView, error)
	RunBatch(ctx context.Context, files []UploadRequest, uctx UploadContext) (*BatchResult, error)
}

// SessionDriver drives an interactive session through its decision points.
type SessionDriver interface {
	Get(ctx context.Context, id string) (SessionView, error)
	Approve(ctx context.Context, id string) (SessionView, error)
	Cancel(ctx context.Context, id string) (SessionView, error)
	Commit(ctx context.Context, id string) (domain.CommitOutcome, error)
}

// CertificateReader is the inbound read model for persisted records.
type CertificateReader interface {
	GetByID(ctx context.Context, id string) (*domain.Certificate, error)
}
