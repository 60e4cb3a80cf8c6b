// Package handler exposes account analysis over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"autoshield/internal/analysis"
	"autoshield/internal/platform/metrics"
	"autoshield/internal/platform/middleware"
	"autoshield/pkg/domain"
	dErrors "autoshield/pkg/domain-errors"
	"autoshield/pkg/platform/httputil"
	"autoshield/pkg/platform/middleware/metadata"
	"autoshield/pkg/platform/middleware/request"
	"autoshield/pkg/platform/middleware/requesttime"
	"autoshield/pkg/requestcontext"
)

// Service is the analysis surface the handler needs.
type Service interface {
	Analyze(ctx context.Context, addr domain.Address) (analysis.Result, error)
	BatchAnalyze(ctx context.Context, addrs []domain.Address) ([]analysis.BatchItem, error)
}

type AnalyzeRequest struct {
	Address string `json:"address"`
}

type BatchRequest struct {
	Addresses []string `json:"addresses"`
}

type AnalyzeResponse struct {
	Address         string   `json:"address"`
	Status          int      `json:"status"`
	StatusName      string   `json:"status_name"`
	Confidence      float64  `json:"confidence"`
	ConfidenceScore uint64   `json:"confidence_score"`
	RiskScore       int      `json:"risk_score"`
	RiskLevel       string   `json:"risk_level,omitempty"`
	RiskFactors     []string `json:"risk_factors"`
	AttestationHash string   `json:"attestation_hash"`
	ModelVersion    string   `json:"model_version"`
	LastChecked     uint64   `json:"last_checked"`
	Sequence        uint64   `json:"sequence"`
	ProcessingMS    int64    `json:"processing_time_ms"`
}

type BatchResult struct {
	Address string           `json:"address"`
	Result  *AnalyzeResponse `json:"result,omitempty"`
	Error   string           `json:"error,omitempty"`
}

type BatchResponse struct {
	Results   []BatchResult `json:"results"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
}

type Handler struct {
	analysis  Service
	rateLimit func(http.Handler) http.Handler
	logger    *slog.Logger
	metrics   *metrics.Metrics
	clientIP  func(http.Handler) http.Handler
}

// New creates an analysis Handler. rateLimit may be nil.
func New(svc Service, rateLimit func(http.Handler) http.Handler, logger *slog.Logger, metrics *metrics.Metrics) *Handler {
	return &Handler{
		analysis:  svc,
		rateLimit: rateLimit,
		logger:    logger,
		metrics:   metrics,
		clientIP:  metadata.ClientMetadata,
	}
}

// WithClientIP replaces the middleware that records the client address the
// rate limiter keys on.
func (h *Handler) WithClientIP(mw func(http.Handler) http.Handler) *Handler {
	if mw != nil {
		h.clientIP = mw
	}
	return h
}

func (h *Handler) Register(r chi.Router) {
	r.Group(func(analysisRouter chi.Router) {
		analysisRouter.Use(request.Recovery(h.logger))
		analysisRouter.Use(request.RequestID)
		analysisRouter.Use(request.Logger(h.logger))
		analysisRouter.Use(requesttime.Middleware)
		analysisRouter.Use(h.clientIP)
		analysisRouter.Use(middleware.Latency(h.metrics))
		analysisRouter.Use(request.Timeout(60 * time.Second))
		analysisRouter.Use(request.ContentTypeJSON)
		if h.rateLimit != nil {
			analysisRouter.Use(h.rateLimit)
		}
		analysisRouter.Post("/v1/analysis", h.handleAnalyze)
		analysisRouter.Post("/v1/analysis/batch", h.handleBatch)
	})
}

func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	addr, err := parseAddress(req.Address)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	result, err := h.analysis.Analyze(r.Context(), addr)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(result))
}

func (h *Handler) handleBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req BatchRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if len(req.Addresses) > analysis.MaxBatch {
		httputil.WriteError(w, analysis.ErrBatchTooLarge)
		return
	}
	addrs := make([]domain.Address, 0, len(req.Addresses))
	for _, raw := range req.Addresses {
		addr, err := parseAddress(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		addrs = append(addrs, addr)
	}

	items, err := h.analysis.BatchAnalyze(ctx, addrs)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	resp := BatchResponse{Results: make([]BatchResult, len(items))}
	for i, item := range items {
		resp.Results[i] = BatchResult{Address: item.Address.String()}
		if item.Err != nil {
			resp.Failed++
			resp.Results[i].Error = publicMessage(item.Err)
			continue
		}
		resp.Succeeded++
		out := toResponse(item.Result)
		resp.Results[i].Result = &out
	}
	h.logger.InfoContext(ctx, "batch analysis completed",
		"requested", len(items),
		"succeeded", resp.Succeeded,
		"failed", resp.Failed,
		"request_id", requestcontext.RequestID(ctx),
	)
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func toResponse(r analysis.Result) AnalyzeResponse {
	factors := r.Assessment.RiskFactors
	if factors == nil {
		factors = []string{}
	}
	var lastChecked uint64
	if t := r.Commit.Record.LastChecked; !t.IsZero() && t.Unix() > 0 {
		lastChecked = uint64(t.Unix())
	}
	return AnalyzeResponse{
		Address:         r.Address.String(),
		Status:          int(r.Assessment.Status.Code()),
		StatusName:      r.Assessment.Status.String(),
		Confidence:      r.Assessment.Confidence,
		ConfidenceScore: r.ConfidenceScore,
		RiskScore:       r.Assessment.RiskScore,
		RiskLevel:       r.Assessment.RiskLevel,
		RiskFactors:     factors,
		AttestationHash: r.AttestationRef,
		ModelVersion:    r.Assessment.ModelVersion,
		LastChecked:     lastChecked,
		Sequence:        r.Commit.Entry.Seq,
		ProcessingMS:    r.ProcessingTime.Milliseconds(),
	}
}

// publicMessage hides internal error details in batch results.
func publicMessage(err error) string {
	code := dErrors.CodeOf(err)
	if code == dErrors.CodeInternal {
		return string(code)
	}
	return dErrors.MessageOf(err)
}

func parseAddress(raw string) (domain.Address, error) {
	addr, err := domain.ParseAddress(raw)
	if err != nil {
		return domain.Address{}, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid account address")
	}
	return addr, nil
}
