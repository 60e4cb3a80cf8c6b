// Package handler exposes the verification registry over HTTP.
package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	contract "autoshield/contracts/registry"
	"autoshield/internal/authority"
	"autoshield/internal/notification"
	"autoshield/internal/platform/metrics"
	"autoshield/internal/platform/middleware"
	"autoshield/internal/registry/models"
	"autoshield/internal/registry/service"
	"autoshield/pkg/domain"
	dErrors "autoshield/pkg/domain-errors"
	"autoshield/pkg/platform/httputil"
	"autoshield/pkg/platform/middleware/auth"
	"autoshield/pkg/platform/middleware/metadata"
	"autoshield/pkg/platform/middleware/request"
	"autoshield/pkg/platform/middleware/requesttime"
	"autoshield/pkg/requestcontext"
)

// heartbeatInterval keeps idle event streams open through proxies.
const heartbeatInterval = 15 * time.Second

// Service is the registry surface the handler needs.
type Service interface {
	service.QuerySurface
	SetStatus(ctx context.Context, cred authority.Credential, addr domain.Address, statusCode int, attestationRef string, confidenceScore uint64) (models.Commit, error)
	TransferAuthority(ctx context.Context, cred authority.Credential, newOwner domain.Address) error
	Authorize(ctx context.Context, cred authority.Credential) error
	Authority(ctx context.Context) (domain.Address, error)
}

// Subscriber streams committed changes.
type Subscriber interface {
	Subscribe() (<-chan models.ChangeNotification, func())
}

// Handler serves the /v1 registry routes.
type Handler struct {
	registry     Service
	events       Subscriber
	jwtValidator auth.JWTValidator
	logger       *slog.Logger
	metrics      *metrics.Metrics
	clientIP     func(http.Handler) http.Handler
}

// New creates a registry Handler. events may be nil, which disables /v1/events.
func New(
	registry Service,
	events Subscriber,
	jwtValidator auth.JWTValidator,
	logger *slog.Logger,
	metrics *metrics.Metrics,
) *Handler {
	return &Handler{
		registry:     registry,
		events:       events,
		jwtValidator: jwtValidator,
		logger:       logger,
		metrics:      metrics,
		clientIP:     metadata.ClientMetadata,
	}
}

// WithClientIP replaces the middleware that records the client address, for
// deployments behind trusted proxies.
func (h *Handler) WithClientIP(mw func(http.Handler) http.Handler) *Handler {
	if mw != nil {
		h.clientIP = mw
	}
	return h
}

// Register adds the registry routes to r in their own middleware group.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(registryRouter chi.Router) {
		registryRouter.Use(request.Recovery(h.logger))
		registryRouter.Use(request.RequestID)
		registryRouter.Use(request.Logger(h.logger))
		registryRouter.Use(requesttime.Middleware)
		registryRouter.Use(h.clientIP)
		registryRouter.Use(middleware.Latency(h.metrics))

		registryRouter.Group(func(r chi.Router) {
			r.Use(request.Timeout(30 * time.Second))
			r.Get("/v1/verifications/count", h.handleCount)
			r.Get("/v1/verifications/{address}", h.handleGetStatus)
			r.Get("/v1/verifications/{address}/history", h.handleGetHistory)
			r.Get("/v1/verifications/{address}/history/page", h.handleGetHistoryPage)
			r.Get("/v1/stats", h.handleStats)
			r.Get("/v1/authority", h.handleGetAuthority)
			r.With(request.ContentTypeJSON).Post("/v1/verifications/lookup", h.handleLookup)
		})

		registryRouter.Group(func(r chi.Router) {
			r.Use(request.Timeout(30 * time.Second))
			r.Use(request.ContentTypeJSON)
			r.Use(auth.RequireCaller(h.jwtValidator, h.logger))
			r.Post("/v1/verifications", h.handleUpdate)
			r.Post("/v1/authority/transfer", h.handleTransfer)
		})

		if h.events != nil {
			registryRouter.Get("/v1/events", h.handleEvents)
		}
	})
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	caller, ok := requestcontext.Caller(ctx)
	if !ok {
		h.logger.ErrorContext(ctx, "caller missing from context despite auth middleware",
			"request_id", requestID,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}
	cred := authority.NewCredential(caller)
	// A non-owner learns nothing about why its body would have been rejected.
	if err := h.registry.Authorize(ctx, cred); err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req UpdateVerificationRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.logger.WarnContext(ctx, "invalid verification update request",
			"error", err,
			"request_id", requestID,
		)
		httputil.WriteError(w, err)
		return
	}
	if req.Status == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "status is required"))
		return
	}
	addr, err := parseAddress(req.Address)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	commit, err := h.registry.SetStatus(ctx, cred, addr, *req.Status, req.AttestationHash, req.ConfidenceScore)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toUpdateResponse(commit))
}

func (h *Handler) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress(chi.URLParam(r, "address"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	view, err := h.registry.GetStatus(r.Context(), addr)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toStatusResponse(addr, view))
}

func (h *Handler) handleLookup(w http.ResponseWriter, r *http.Request) {
	var req LookupRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if len(req.Addresses) == 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "addresses must not be empty"))
		return
	}
	if len(req.Addresses) > service.MaxLookupAddresses {
		httputil.WriteError(w, service.ErrTooManyAddresses)
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

	views, err := h.registry.GetStatuses(r.Context(), addrs)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	resp := LookupResponse{Results: make([]StatusResponse, len(addrs))}
	for i, addr := range addrs {
		resp.Results[i] = toStatusResponse(addr, views[i])
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress(chi.URLParam(r, "address"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	entries, err := h.registry.GetHistory(r.Context(), addr)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, HistoryResponse{
		Address:             addr.String(),
		VerificationHistory: models.HistoryTuple(entries),
	})
}

func (h *Handler) handleGetHistoryPage(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress(chi.URLParam(r, "address"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	query := r.URL.Query()
	var cursor uint64
	if raw := query.Get("cursor"); raw != "" {
		cursor, err = strconv.ParseUint(raw, 10, 64)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "cursor must be an unsigned integer"))
			return
		}
	}
	var limit int
	if raw := query.Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "limit must be a non-negative integer"))
			return
		}
	}

	page, err := h.registry.GetHistoryPage(r.Context(), addr, cursor, limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toPageResponse(addr, page))
}

func (h *Handler) handleCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.registry.GetCount(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, CountResponse{Count: count})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.registry.GetStats(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toStatsResponse(stats))
}

func (h *Handler) handleGetAuthority(w http.ResponseWriter, r *http.Request) {
	owner, err := h.registry.Authority(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, AuthorityResponse{Owner: owner.String()})
}

func (h *Handler) handleTransfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := requestcontext.Caller(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}
	cred := authority.NewCredential(caller)
	if err := h.registry.Authorize(ctx, cred); err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req TransferRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	newOwner, err := parseAddress(req.NewOwner)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.registry.TransferAuthority(ctx, cred, newOwner); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, AuthorityResponse{Owner: newOwner.String()})
}

// handleEvents streams change notifications as server-sent events until the
// client disconnects.
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rc := http.NewResponseController(w)

	ch, cancel := h.events.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		h.logger.WarnContext(ctx, "event stream not flushable",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		case n, ok := <-ch:
			if !ok {
				return
			}
			data, err := notification.Encode(n)
			if err != nil {
				h.logger.ErrorContext(ctx, "failed to encode change notification", "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", n.Sequence, contract.EventVerificationUpdated, data); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func parseAddress(raw string) (domain.Address, error) {
	addr, err := domain.ParseAddress(raw)
	if err != nil {
		return domain.Address{}, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid account address")
	}
	return addr, nil
}
