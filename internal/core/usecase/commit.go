package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/fleet-compliance/internal/core/domain"
	"github.com/kirillkom/fleet-compliance/internal/core/ports"
)

type commitInput struct {
	ShipID       string
	Fields       domain.ExtractionResult
	FileRef      string
	OverrideNote string
	IsOverride   bool
	// DuplicateConfirmed means a human already saw the duplicate candidate
	// and chose to register anyway; the commit-time re-check is skipped.
	DuplicateConfirmed bool
}

// CommitCertificateUseCase persists the final record. Non-created outcomes
// are business results, not errors: the caller surfaces each distinctly.
type CommitCertificateUseCase struct {
	repo ports.CertificateRepository
	now  func() time.Time
}

func NewCommitCertificateUseCase(repo ports.CertificateRepository) *CommitCertificateUseCase {
	return &CommitCertificateUseCase{repo: repo, now: time.Now}
}

var dateLayouts = []string{"2006-01-02", "02.01.2006", "02/01/2006"}

func normalizeDate(raw string) (string, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", nil
	}
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed.Format("2006-01-02"), nil
		}
	}
	return "", fmt.Errorf("unrecognized date %q", raw)
}

// Commit runs structural validation always, and the duplicate re-check only
// when no human has resolved that warning yet: an identity override or a
// confirmed duplicate means the conflict was already seen and accepted.
func (uc *CommitCertificateUseCase) Commit(ctx context.Context, in commitInput) (domain.CommitOutcome, error) {
	if !in.Fields.HasRequiredFields() {
		return domain.CommitOutcome{
			Code:   domain.CommitManualInput,
			Reason: "certificate name and number are required",
		}, nil
	}

	dates := map[string]*string{
		"issue_date":       &in.Fields.IssueDate,
		"expiry_date":      &in.Fields.ExpiryDate,
		"endorsement_date": &in.Fields.EndorsementDate,
		"next_survey_date": &in.Fields.NextSurveyDate,
	}
	for field, value := range dates {
		normalized, err := normalizeDate(*value)
		if err != nil {
			return domain.CommitOutcome{
				Code:   domain.CommitManualInput,
				Reason: fmt.Sprintf("%s: %v", field, err),
			}, nil
		}
		*value = normalized
	}
	if in.Fields.IssueDate != "" && in.Fields.ExpiryDate != "" && in.Fields.ExpiryDate < in.Fields.IssueDate {
		return domain.CommitOutcome{
			Code:   domain.CommitRejected,
			Reason: "expiry date precedes issue date",
		}, nil
	}

	normalizedNo := domain.NormalizeCertificateNumber(in.Fields.CertificateNo)
	if !in.IsOverride && !in.DuplicateConfirmed {
		existing, err := uc.repo.FindDuplicate(ctx, in.ShipID, normalizedNo)
		if err != nil {
			return domain.CommitOutcome{}, fmt.Errorf("duplicate lookup: %w", err)
		}
		if existing != nil {
			return domain.CommitOutcome{
				Code:     domain.CommitDuplicatePending,
				Reason:   "certificate number already registered for this ship",
				Existing: existing,
			}, nil
		}
	}

	now := uc.now().UTC()
	cert := &domain.Certificate{
		ID:               uuid.NewString(),
		ShipID:           in.ShipID,
		Name:             strings.TrimSpace(in.Fields.CertificateName),
		Number:           strings.TrimSpace(in.Fields.CertificateNo),
		NumberNormalized: normalizedNo,
		Category:         strings.TrimSpace(in.Fields.CertificateType),
		IssueDate:        in.Fields.IssueDate,
		ExpiryDate:       in.Fields.ExpiryDate,
		EndorsementDate:  in.Fields.EndorsementDate,
		NextSurveyDate:   in.Fields.NextSurveyDate,
		IssuingAuthority: strings.TrimSpace(in.Fields.IssuingAuthority),
		Notes:            in.OverrideNote,
		Override:         in.IsOverride,
		FileRef:          in.FileRef,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := uc.repo.Create(ctx, cert); err != nil {
		return domain.CommitOutcome{}, fmt.Errorf("create certificate: %w", err)
	}

	return domain.CommitOutcome{Code: domain.CommitCreated, Certificate: cert}, nil
}
