package ports

import (
	"context"
	"io"

	"github.com/kirillkom/fleet-compliance/internal/core/domain"
)

// AnalysisContext carries ambient knowledge the recognition service may use
// for cross-checks. The validation engine re-checks locally regardless.
type AnalysisContext struct {
	ShipIdentifier string
	CategoryScope  string
}

// DocumentAnalyzer turns raw document bytes into a structured extraction.
// Transport failures and unusable service replies are both reported as
// domain.ErrAnalysisFailed; implementations never fabricate fields.
type DocumentAnalyzer interface {
	Analyze(ctx context.Context, content []byte, filename, mimeType string, actx AnalysisContext) (*domain.ExtractionResult, error)
}

// CertificateRepository persists and reads certificate records.
type CertificateRepository interface {
	Create(ctx context.Context, cert *domain.Certificate) error
	GetByID(ctx context.Context, id string) (*domain.Certificate, error)
	// FindDuplicate looks up an existing record with the same normalized
	// certificate number under the same ship. Returns (nil, nil) when none.
	FindDuplicate(ctx context.Context, shipID, numberNormalized string) (*domain.CertificateSummary, error)
}

// ObjectStorage stages source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Remove(ctx context.Context, key string) error
}

// PipelineEvents publishes task state transitions for the presentation
// layer to subscribe to, instead of notifications being invoked inline
// from the pipeline.
type PipelineEvents interface {
	PublishTaskTransition(ctx context.Context, event domain.TaskEvent) error
	SubscribeTaskTransitions(ctx context.Context, handler func(context.Context, domain.TaskEvent) error) error
}
