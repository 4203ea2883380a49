package docrec

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/fleet-compliance/internal/core/domain"
	"github.com/kirillkom/fleet-compliance/internal/core/ports"
)

func TestAnalyzeSuccess(t *testing.T) {
	content := []byte("scanned certificate bytes")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/analyze" {
			t.Errorf("path = %s, want /v1/analyze", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("authorization = %q, want bearer token", got)
		}

		var req analyzeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.FileContentBase64 != base64.StdEncoding.EncodeToString(content) {
			t.Error("file content not base64-encoded")
		}
		if req.ShipIdentifier != "IMO 9321483" || req.CategoryScope != "ism_isps_mlc" {
			t.Errorf("analysis context not forwarded: %+v", req)
		}

		json.NewEncoder(w).Encode(analyzeResponse{
			Success: true,
			ExtractedFields: &domain.ExtractionResult{
				CertificateName: "Safety Management Certificate",
				CertificateNo:   "SMC-2026-001",
			},
		})
	}))
	defer server.Close()

	client := New(server.URL, "secret", 5*time.Second, nil)
	result, err := client.Analyze(context.Background(), content, "scan.png", "image/png", ports.AnalysisContext{
		ShipIdentifier: "IMO 9321483",
		CategoryScope:  "ism_isps_mlc",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.CertificateNo != "SMC-2026-001" {
		t.Errorf("certificate no = %q, want SMC-2026-001", result.CertificateNo)
	}
}

func TestAnalyzeServiceReportsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(analyzeResponse{Success: false, Error: "document is blank"})
	}))
	defer server.Close()

	client := New(server.URL, "", 5*time.Second, nil)
	_, err := client.Analyze(context.Background(), []byte("x"), "scan.png", "image/png", ports.AnalysisContext{})
	if !domain.IsKind(err, domain.ErrAnalysisFailed) {
		t.Fatalf("expected ErrAnalysisFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "document is blank") {
		t.Errorf("error must carry the service reason, got %v", err)
	}
}

func TestAnalyzeHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "internal", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := New(server.URL, "", 5*time.Second, nil)
	_, err := client.Analyze(context.Background(), []byte("x"), "scan.png", "image/png", ports.AnalysisContext{})
	if !domain.IsKind(err, domain.ErrAnalysisFailed) {
		t.Fatalf("expected ErrAnalysisFailed, got %v", err)
	}
}

func TestAnalyzeEmptyContent(t *testing.T) {
	client := New("http://localhost:0", "", time.Second, nil)
	_, err := client.Analyze(context.Background(), nil, "scan.png", "image/png", ports.AnalysisContext{})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestAnalyzeCorruptPDFFailsLocally(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	}))
	defer server.Close()

	client := New(server.URL, "", 5*time.Second, nil)
	_, err := client.Analyze(context.Background(), []byte("not a pdf at all"), "doc.pdf", "application/pdf", ports.AnalysisContext{})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if called {
		t.Fatal("unreadable pdf must not reach the service")
	}
}

func TestIsPDF(t *testing.T) {
	cases := []struct {
		mime, filename string
		want           bool
	}{
		{"application/pdf", "scan.bin", true},
		{"APPLICATION/PDF", "scan.bin", true},
		{"application/octet-stream", "Cert.PDF", true},
		{"image/png", "scan.png", false},
	}
	for _, tc := range cases {
		if got := isPDF(tc.mime, tc.filename); got != tc.want {
			t.Errorf("isPDF(%q, %q) = %v, want %v", tc.mime, tc.filename, got, tc.want)
		}
	}
}
