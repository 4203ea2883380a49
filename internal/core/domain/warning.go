package domain

type WarningKind string

const (
	WarningCategoryMismatch   WarningKind = "category_mismatch"
	WarningIdentityMismatch   WarningKind = "identity_mismatch"
	WarningDuplicateCandidate WarningKind = "duplicate_candidate"
)

// ValidationWarning is a non-fatal discrepancy that needs a human decision
// before the upload may proceed. Checks emit warnings in a fixed priority
// order: category first (short-circuits), then identity, then duplicate.
type ValidationWarning struct {
	Kind WarningKind `json:"kind"`

	// CategoryMismatch
	CertificateName string `json:"certificate_name,omitempty"`
	CategoryScope   string `json:"category_scope,omitempty"`

	// IdentityMismatch
	DeclaredIdentifier string `json:"declared_identifier,omitempty"`
	ExpectedIdentifier string `json:"expected_identifier,omitempty"`
	// OverrideNote is pre-composed at validation time and appended to the
	// record only when the user approves the warning.
	OverrideNote string `json:"override_note,omitempty"`

	// DuplicateCandidate
	Existing *CertificateSummary `json:"existing,omitempty"`
}
