package domain

import "strings"

// ExtractionResult is the recognition service's best-effort read of one
// uploaded document. An empty field means the service did not recognize it;
// there is no separate confidence signal.
type ExtractionResult struct {
	CertificateName  string `json:"certificate_name,omitempty"`
	CertificateNo    string `json:"certificate_no,omitempty"`
	CertificateType  string `json:"certificate_type,omitempty"`
	IssueDate        string `json:"issue_date,omitempty"`
	ExpiryDate       string `json:"expiry_date,omitempty"`
	EndorsementDate  string `json:"endorsement_date,omitempty"`
	NextSurveyDate   string `json:"next_survey_date,omitempty"`
	IssuingAuthority string `json:"issuing_authority,omitempty"`
	ShipName         string `json:"ship_name,omitempty"`
	ShipIdentifier   string `json:"ship_identifier,omitempty"`
}

// HasRequiredFields reports whether the extraction carries the minimum a
// certificate record can be built from.
func (r ExtractionResult) HasRequiredFields() bool {
	return strings.TrimSpace(r.CertificateName) != "" && strings.TrimSpace(r.CertificateNo) != ""
}
