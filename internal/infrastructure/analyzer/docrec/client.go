package docrec

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/fleet-compliance/internal/core/domain"
	"github.com/kirillkom/fleet-compliance/internal/core/ports"
	"github.com/kirillkom/fleet-compliance/internal/infrastructure/resilience"
)

// Client calls the external certificate recognition service. It is the only
// extraction gateway: transport failures and unusable replies both surface
// as domain.ErrAnalysisFailed, and fields are never fabricated locally.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, apiKey string, timeout time.Duration, executor *resilience.Executor) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		executor:   executor,
	}
}

type analyzeRequest struct {
	FileContentBase64 string `json:"file_content_base64"`
	Filename          string `json:"filename"`
	ContentType       string `json:"content_type"`
	ShipIdentifier    string `json:"ship_identifier,omitempty"`
	CategoryScope     string `json:"category_scope,omitempty"`
}

type analyzeResponse struct {
	Success         bool                     `json:"success"`
	ExtractedFields *domain.ExtractionResult `json:"extracted_fields"`
	Error           string                   `json:"error,omitempty"`
}

func (c *Client) Analyze(
	ctx context.Context,
	content []byte,
	filename, mimeType string,
	actx ports.AnalysisContext,
) (*domain.ExtractionResult, error) {
	if len(content) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "analyze document", fmt.Errorf("empty file %s", filename))
	}
	if isPDF(mimeType, filename) {
		// A structurally unreadable PDF fails locally before spending a
		// remote call.
		if err := checkPDF(content); err != nil {
			return nil, domain.WrapError(domain.ErrInvalidInput, "analyze document", err)
		}
	}

	request := analyzeRequest{
		FileContentBase64: base64.StdEncoding.EncodeToString(content),
		Filename:          filename,
		ContentType:       mimeType,
		ShipIdentifier:    actx.ShipIdentifier,
		CategoryScope:     actx.CategoryScope,
	}

	var response analyzeResponse
	call := func(callCtx context.Context) error {
		return c.postJSON(callCtx, "/v1/analyze", request, &response, "analyze")
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "docrec.analyze", call, classifyAnalyzeError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, wrapAnalysisFailure("analyze document", err)
	}

	if !response.Success || response.ExtractedFields == nil {
		reason := strings.TrimSpace(response.Error)
		if reason == "" {
			reason = "service returned no usable data"
		}
		return nil, domain.WrapError(domain.ErrAnalysisFailed, "analyze document", fmt.Errorf("%s", reason))
	}
	return response.ExtractedFields, nil
}

func isPDF(mimeType, filename string) bool {
	if strings.EqualFold(strings.TrimSpace(mimeType), "application/pdf") {
		return true
	}
	return strings.HasSuffix(strings.ToLower(filename), ".pdf")
}

func checkPDF(content []byte) error {
	if _, err := pdf.NewReader(bytes.NewReader(content), int64(len(content))); err != nil {
		return fmt.Errorf("unreadable pdf: %w", err)
	}
	return nil
}
