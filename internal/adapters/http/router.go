package httpadapter

import (
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/fleet-compliance/internal/core/domain"
	"github.com/kirillkom/fleet-compliance/internal/core/ports"
	"github.com/kirillkom/fleet-compliance/internal/observability/metrics"
)

type Config struct {
	Service        string
	RateLimitRPS   int
	RateLimitBurst int
	MaxInFlight    int
	MaxWait        time.Duration
	MaxUploadBytes int64
}

func (c Config) normalize() Config {
	out := c
	if out.Service == "" {
		out.Service = "api"
	}
	if out.MaxWait <= 0 {
		out.MaxWait = 2 * time.Second
	}
	if out.MaxUploadBytes <= 0 {
		out.MaxUploadBytes = 32 << 20
	}
	return out
}

type Router struct {
	uploader ports.CertificateUploader
	sessions ports.SessionDriver
	certs    ports.CertificateReader
	metrics  *metrics.HTTPServerMetrics
	cfg      Config
}

func NewRouter(
	uploader ports.CertificateUploader,
	sessions ports.SessionDriver,
	certs ports.CertificateReader,
	serverMetrics *metrics.HTTPServerMetrics,
	cfg Config,
) *Router {
	return &Router{
		uploader: uploader,
		sessions: sessions,
		certs:    certs,
		metrics:  serverMetrics,
		cfg:      cfg.normalize(),
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.Handle("/metrics", rt.metrics.Handler())
	mux.HandleFunc("/v1/certificates/upload", rt.uploadCertificates)
	mux.HandleFunc("/v1/certificates/", rt.getCertificateByID)
	mux.HandleFunc("/v1/sessions/", rt.handleSession)

	var handler http.Handler = mux
	handler = rt.metrics.Middleware(rt.cfg.Service, handler)
	handler = backpressureMiddleware(handler, rt.cfg.MaxInFlight, rt.cfg.MaxWait)
	handler = rateLimitMiddleware(handler, rt.cfg.RateLimitRPS, rt.cfg.RateLimitBurst)
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// uploadCertificates routes by file count: exactly one file starts an
// interactive session, two or more run the non-interactive batch.
func (rt *Router) uploadCertificates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	if err := r.ParseMultipartForm(rt.cfg.MaxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart request"})
		return
	}

	shipID := strings.TrimSpace(r.FormValue("ship_id"))
	if shipID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "form field 'ship_id' is required"})
		return
	}
	uctx := ports.UploadContext{
		ShipID:        shipID,
		CategoryScope: strings.TrimSpace(r.FormValue("category_scope")),
		UploadedBy:    strings.TrimSpace(r.FormValue("uploaded_by")),
	}

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		headers = r.MultipartForm.File["file"]
	}
	if len(headers) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'files' is required"})
		return
	}

	files, err := readUploads(headers)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	if len(files) == 1 {
		rt.startSession(w, r, files[0], uctx)
		return
	}
	rt.runBatch(w, r, files, uctx)
}

func (rt *Router) startSession(w http.ResponseWriter, r *http.Request, file ports.UploadRequest, uctx ports.UploadContext) {
	start := time.Now()
	view, err := rt.uploader.StartSession(r.Context(), file, uctx)
	if err != nil {
		rt.metrics.Pipeline().RecordAnalyzeFailure(rt.cfg.Service, time.Since(start))
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	var kinds []string
	if view.CurrentWarning != nil {
		kinds = append(kinds, string(view.CurrentWarning.Kind))
	}
	rt.metrics.Pipeline().RecordSessionStart(rt.cfg.Service, view.State, time.Since(start), kinds)
	writeJSON(w, http.StatusAccepted, view)
}

func (rt *Router) runBatch(w http.ResponseWriter, r *http.Request, files []ports.UploadRequest, uctx ports.UploadContext) {
	start := time.Now()
	rt.metrics.Pipeline().StartBatch(rt.cfg.Service, len(files))

	result, err := rt.uploader.RunBatch(r.Context(), files, uctx)
	if err != nil {
		rt.metrics.Pipeline().FinishBatch(rt.cfg.Service, time.Since(start), nil)
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	statuses := make([]string, 0, len(result.Tasks))
	for _, task := range result.Tasks {
		statuses = append(statuses, string(task.Status))
	}
	rt.metrics.Pipeline().FinishBatch(rt.cfg.Service, time.Since(start), statuses)
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) getCertificateByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/certificates/")
	if id == "" || strings.Contains(id, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "certificate id is required"})
		return
	}

	cert, err := rt.certs.GetByID(r.Context(), id)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, cert)
}

func (rt *Router) handleSession(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/sessions/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "session id is required"})
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		rt.respondView(w, r, func() (ports.SessionView, error) {
			return rt.sessions.Get(r.Context(), id)
		})
	case action == "approve" && r.Method == http.MethodPost:
		rt.respondView(w, r, func() (ports.SessionView, error) {
			return rt.sessions.Approve(r.Context(), id)
		})
	case action == "cancel" && r.Method == http.MethodPost:
		rt.respondView(w, r, func() (ports.SessionView, error) {
			return rt.sessions.Cancel(r.Context(), id)
		})
	case action == "commit" && r.Method == http.MethodPost:
		rt.commitSession(w, r, id)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (rt *Router) respondView(w http.ResponseWriter, _ *http.Request, op func() (ports.SessionView, error)) {
	view, err := op()
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (rt *Router) commitSession(w http.ResponseWriter, r *http.Request, id string) {
	outcome, err := rt.sessions.Commit(r.Context(), id)
	if err != nil {
		rt.metrics.Pipeline().RecordCommit(rt.cfg.Service, "error")
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	rt.metrics.Pipeline().RecordCommit(rt.cfg.Service, string(outcome.Code))
	status := http.StatusOK
	if outcome.Code == domain.CommitCreated {
		status = http.StatusCreated
	}
	writeJSON(w, status, outcome)
}

func readUploads(headers []*multipart.FileHeader) ([]ports.UploadRequest, error) {
	files := make([]ports.UploadRequest, 0, len(headers))
	for _, header := range headers {
		file, err := header.Open()
		if err != nil {
			return nil, domain.WrapError(domain.ErrInvalidInput, "open upload", err)
		}
		content, err := io.ReadAll(file)
		_ = file.Close()
		if err != nil {
			return nil, domain.WrapError(domain.ErrInvalidInput, "read upload", err)
		}
		files = append(files, ports.UploadRequest{
			Filename:  header.Filename,
			MimeType:  header.Header.Get("Content-Type"),
			SizeBytes: header.Size,
			Content:   content,
		})
	}
	return files, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
