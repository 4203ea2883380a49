package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kirillkom/fleet-compliance/internal/core/domain"
	"github.com/kirillkom/fleet-compliance/internal/core/ports"
)

// ValidationContext is the ambient knowledge validation runs against.
type ValidationContext struct {
	ShipID     string
	Scope      *domain.CategoryScope
	UploadedBy string
}

// ValidationEngine checks one extraction against existing records and the
// selected ship. Checks run in a fixed priority order: category scope first
// (short-circuits on mismatch), then ship identity, then duplicate lookup.
type ValidationEngine struct {
	repo ports.CertificateRepository
	now  func() time.Time
}

func NewValidationEngine(repo ports.CertificateRepository) *ValidationEngine {
	return &ValidationEngine{repo: repo, now: time.Now}
}

// Validate returns the ordered warning list for an extraction, or an error
// when the hard completeness gate fails. The gate precedes every warning
// check: an override cannot repair a nameless or numberless extraction.
func (e *ValidationEngine) Validate(
	ctx context.Context,
	extraction *domain.ExtractionResult,
	vctx ValidationContext,
) ([]domain.ValidationWarning, error) {
	if extraction == nil || !extraction.HasRequiredFields() {
		return nil, domain.WrapError(
			domain.ErrMissingFields,
			"validate extraction",
			errors.New("certificate name and number are required"),
		)
	}

	if vctx.Scope != nil && !vctx.Scope.Matches(extraction.CertificateName) {
		// Wrong family means the rest of the file is never useful here;
		// remaining checks do not run.
		return []domain.ValidationWarning{{
			Kind:            domain.WarningCategoryMismatch,
			CertificateName: extraction.CertificateName,
			CategoryScope:   vctx.Scope.Name,
		}}, nil
	}

	var warnings []domain.ValidationWarning

	declared := strings.TrimSpace(extraction.ShipIdentifier)
	if declared != "" && !strings.EqualFold(declared, strings.TrimSpace(vctx.ShipID)) {
		warnings = append(warnings, domain.ValidationWarning{
			Kind:               domain.WarningIdentityMismatch,
			DeclaredIdentifier: declared,
			ExpectedIdentifier: vctx.ShipID,
			OverrideNote:       e.buildOverrideNote(declared, vctx),
		})
	}

	existing, err := e.repo.FindDuplicate(
		ctx,
		vctx.ShipID,
		domain.NormalizeCertificateNumber(extraction.CertificateNo),
	)
	if err != nil {
		return nil, fmt.Errorf("duplicate lookup: %w", err)
	}
	if existing != nil {
		warnings = append(warnings, domain.ValidationWarning{
			Kind:     domain.WarningDuplicateCandidate,
			Existing: existing,
		})
	}

	return warnings, nil
}

func (e *ValidationEngine) buildOverrideNote(declared string, vctx ValidationContext) string {
	user := strings.TrimSpace(vctx.UploadedBy)
	if user == "" {
		user = "unknown user"
	}
	return fmt.Sprintf(
		"Ship identifier mismatch: extracted %s, expected %s; manually verified and accepted by %s at %s",
		declared,
		vctx.ShipID,
		user,
		e.now().UTC().Format(time.RFC3339),
	)
}
