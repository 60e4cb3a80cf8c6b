package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"autoshield/internal/registry/models"
	"autoshield/pkg/domain"
	dErrors "autoshield/pkg/domain-errors"
	"autoshield/pkg/platform/circuit"
	"autoshield/pkg/platform/middleware/request"
	"autoshield/pkg/requestcontext"
)

// maxResponseBytes bounds a scoring response body.
const maxResponseBytes = 1 << 20

type predictRequest struct {
	WalletAddress string `json:"wallet_address"`
}

type predictResponse struct {
	Status          string   `json:"status"`
	ConfidenceScore float64  `json:"confidence_score"`
	RiskScore       int      `json:"risk_score"`
	RiskLevel       string   `json:"risk_level"`
	RiskFactors     []string `json:"risk_factors"`
	ModelVersion    string   `json:"model_version"`
	AnalyzedAt      string   `json:"analyzed_at"`
}

// probeInterval spaces the calls let through while the breaker is open.
const probeInterval = 5 * time.Second

// HTTPScorer calls POST {base}/predict on the scoring service. Consecutive
// unavailability opens a breaker; while open, calls fail fast with
// ErrUnavailable except for one probe per probeInterval.
type HTTPScorer struct {
	baseURL    string
	httpClient *http.Client
	breaker    *circuit.Breaker
	logger     *slog.Logger

	mu        sync.Mutex
	lastProbe time.Time
}

type HTTPOption func(*HTTPScorer)

func WithHTTPClient(c *http.Client) HTTPOption {
	return func(s *HTTPScorer) {
		if c != nil {
			s.httpClient = c
		}
	}
}

func WithBreaker(b *circuit.Breaker) HTTPOption {
	return func(s *HTTPScorer) {
		if b != nil {
			s.breaker = b
		}
	}
}

func WithLogger(logger *slog.Logger) HTTPOption {
	return func(s *HTTPScorer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewHTTPScorer(baseURL string, timeout time.Duration, opts ...HTTPOption) *HTTPScorer {
	s := &HTTPScorer{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		breaker:    circuit.New("scoring"),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *HTTPScorer) Score(ctx context.Context, addr domain.Address) (Assessment, error) {
	if s.breaker.IsOpen() && !s.takeProbe() {
		return Assessment{}, ErrUnavailable
	}
	assessment, err := s.predict(ctx, addr)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeUnavailable) {
			if _, change := s.breaker.RecordFailure(); change.Opened {
				s.logger.WarnContext(ctx, "scoring circuit opened",
					"breaker", s.breaker.Name(),
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
			}
		}
		return Assessment{}, err
	}
	if _, change := s.breaker.RecordSuccess(); change.Closed {
		s.logger.InfoContext(ctx, "scoring circuit closed", "breaker", s.breaker.Name())
	}
	return assessment, nil
}

func (s *HTTPScorer) takeProbe() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if now.Sub(s.lastProbe) < probeInterval {
		return false
	}
	s.lastProbe = now
	return true
}

func (s *HTTPScorer) predict(ctx context.Context, addr domain.Address) (Assessment, error) {
	body, err := json.Marshal(predictRequest{WalletAddress: addr.String()})
	if err != nil {
		return Assessment{}, fmt.Errorf("encode predict request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return Assessment{}, fmt.Errorf("build predict request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		req.Header.Set(request.HeaderRequestID, requestID)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return Assessment{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "scoring service unavailable")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Assessment{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "scoring service unavailable")
	}
	if err := mapStatus(resp.StatusCode); err != nil {
		return Assessment{}, err
	}

	var out predictResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return Assessment{}, dErrors.Wrap(err, dErrors.CodeInternal, "invalid scoring response")
	}
	return out.toAssessment()
}

func mapStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusBadRequest || code == http.StatusUnprocessableEntity:
		return dErrors.New(dErrors.CodeInvalidInput, "scoring service rejected the address")
	case code == http.StatusTooManyRequests:
		return dErrors.New(dErrors.CodeRateLimited, "scoring service rate limited")
	case code == http.StatusGatewayTimeout:
		return dErrors.New(dErrors.CodeUnavailable, "scoring service timeout")
	case code >= 500:
		return dErrors.New(dErrors.CodeUnavailable, fmt.Sprintf("scoring service error: status %d", code))
	default:
		return dErrors.New(dErrors.CodeInternal, fmt.Sprintf("unexpected scoring status %d", code))
	}
}

func (r predictResponse) toAssessment() (Assessment, error) {
	status, err := models.ParseStatus(r.Status)
	if err != nil {
		return Assessment{}, dErrors.Wrap(err, dErrors.CodeInternal, "invalid scoring status")
	}
	if r.ConfidenceScore < 0 || r.ConfidenceScore > 100 {
		return Assessment{}, dErrors.New(dErrors.CodeInternal, "scoring confidence out of range")
	}
	a := Assessment{
		Status:       status,
		Confidence:   r.ConfidenceScore,
		RiskScore:    r.RiskScore,
		RiskLevel:    r.RiskLevel,
		RiskFactors:  r.RiskFactors,
		ModelVersion: r.ModelVersion,
	}
	if r.AnalyzedAt != "" {
		if t, err := time.Parse(time.RFC3339Nano, r.AnalyzedAt); err == nil {
			a.AnalyzedAt = t
		}
	}
	return a, nil
}
