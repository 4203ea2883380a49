package domain

import (
	"strings"
	"time"
)

type Certificate struct {
	ID               string    `json:"id"`
	ShipID           string    `json:"ship_id"`
	Name             string    `json:"name"`
	Number           string    `json:"number"`
	NumberNormalized string    `json:"-"`
	Category         string    `json:"category,omitempty"`
	IssueDate        string    `json:"issue_date,omitempty"`
	ExpiryDate       string    `json:"expiry_date,omitempty"`
	EndorsementDate  string    `json:"endorsement_date,omitempty"`
	NextSurveyDate   string    `json:"next_survey_date,omitempty"`
	IssuingAuthority string    `json:"issuing_authority,omitempty"`
	Notes            string    `json:"notes,omitempty"`
	Override         bool      `json:"override"`
	FileRef          string    `json:"file_ref,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// CertificateSummary is the slice of an existing record surfaced when a
// duplicate candidate is found.
type CertificateSummary struct {
	ID         string `json:"id"`
	ShipID     string `json:"ship_id"`
	Name       string `json:"name"`
	Number     string `json:"number"`
	ExpiryDate string `json:"expiry_date,omitempty"`
}

type CommitCode string

const (
	CommitCreated          CommitCode = "created"
	CommitManualInput      CommitCode = "requires_manual_input"
	CommitRejected         CommitCode = "rejected"
	CommitDuplicatePending CommitCode = "pending_duplicate_resolution"
)

// CommitOutcome is the tagged result of a persist attempt. A non-created
// code is a business outcome, not a transport error.
type CommitOutcome struct {
	Code        CommitCode          `json:"code"`
	Reason      string              `json:"reason,omitempty"`
	Existing    *CertificateSummary `json:"existing,omitempty"`
	Certificate *Certificate        `json:"certificate,omitempty"`
}

func (o CommitOutcome) Succeeded() bool {
	return o.Code == CommitCreated
}

// NormalizeCertificateNumber collapses inner whitespace and uppercases so
// "smc 001" and "SMC  001" compare equal in duplicate lookups.
func NormalizeCertificateNumber(number string) string {
	return strings.ToUpper(strings.Join(strings.Fields(number), " "))
}
