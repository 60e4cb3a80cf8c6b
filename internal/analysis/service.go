// Package analysis runs the scoring model against accounts and records the
// verdicts in the registry. It is the authority process: it holds the
// authority credential and is the only writer in a default deployment.
package analysis

import (
	"context"
	"encoding/hex"
	"errors"
	"log/slog"
	"math"
	"strconv"
	"time"

	"golang.org/x/crypto/sha3"
	"golang.org/x/sync/errgroup"

	"autoshield/internal/authority"
	"autoshield/internal/registry/models"
	"autoshield/internal/scoring"
	"autoshield/pkg/domain"
	dErrors "autoshield/pkg/domain-errors"
	"autoshield/pkg/requestcontext"
)

const (
	// MaxBatch caps addresses per batch request.
	MaxBatch = 50
	// batchConcurrency bounds in-flight scoring calls per batch.
	batchConcurrency = 8
)

var (
	ErrEmptyBatch    = dErrors.New(dErrors.CodeInvalidInput, "batch must name at least one address")
	ErrBatchTooLarge = dErrors.New(dErrors.CodeInvalidInput, "batch exceeds 50 addresses")
)

// Registry is the write side of the verification registry.
type Registry interface {
	SetStatus(ctx context.Context, cred authority.Credential, addr domain.Address, statusCode int, attestationRef string, confidenceScore uint64) (models.Commit, error)
}

// Result is one recorded analysis.
type Result struct {
	Address        domain.Address
	Assessment     scoring.Assessment
	AttestationRef string
	// ConfidenceScore is the recorded score: the model confidence in basis points.
	ConfidenceScore uint64
	Commit          models.Commit
	ProcessingTime  time.Duration
}

// BatchItem is one address of a batch. Err is set when that address failed;
// the rest of the batch still runs.
type BatchItem struct {
	Address domain.Address
	Result  Result
	Err     error
}

type Service struct {
	scorer   scoring.Scorer
	registry Registry
	cred     authority.Credential
	logger   *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func New(scorer scoring.Scorer, registry Registry, cred authority.Credential, opts ...Option) (*Service, error) {
	if scorer == nil {
		return nil, errors.New("scorer is required")
	}
	if registry == nil {
		return nil, errors.New("registry is required")
	}
	s := &Service{
		scorer:   scorer,
		registry: registry,
		cred:     cred,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Analyze scores addr and records the verdict.
func (s *Service) Analyze(ctx context.Context, addr domain.Address) (Result, error) {
	start := time.Now()
	requestID := requestcontext.RequestID(ctx)

	assessment, err := s.scorer.Score(ctx, addr)
	if err != nil {
		s.logger.WarnContext(ctx, "account scoring failed",
			"address", addr.String(),
			"error", err,
			"request_id", requestID,
		)
		if dErrors.CodeOf(err) == dErrors.CodeInternal {
			return Result{}, dErrors.Wrap(err, dErrors.CodeInternal, "account analysis failed")
		}
		return Result{}, err
	}

	analyzedAt := assessment.AnalyzedAt
	if analyzedAt.IsZero() {
		analyzedAt = requestcontext.Now(ctx)
	}
	score := BasisPoints(assessment.Confidence)
	ref := AttestationRef(addr, assessment.Status, score, assessment.ModelVersion, analyzedAt)

	commit, err := s.registry.SetStatus(ctx, s.cred, addr, int(assessment.Status.Code()), ref, score)
	if err != nil {
		return Result{}, err
	}

	s.logger.InfoContext(ctx, "account analyzed",
		"address", addr.String(),
		"status", assessment.Status.String(),
		"confidence_score", score,
		"model_version", assessment.ModelVersion,
		"request_id", requestID,
	)
	return Result{
		Address:         addr,
		Assessment:      assessment,
		AttestationRef:  ref,
		ConfidenceScore: score,
		Commit:          commit,
		ProcessingTime:  time.Since(start),
	}, nil
}

// BatchAnalyze analyzes up to MaxBatch addresses with bounded concurrency.
// Items come back in input order.
func (s *Service) BatchAnalyze(ctx context.Context, addrs []domain.Address) ([]BatchItem, error) {
	if len(addrs) == 0 {
		return nil, ErrEmptyBatch
	}
	if len(addrs) > MaxBatch {
		return nil, ErrBatchTooLarge
	}

	items := make([]BatchItem, len(addrs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)
	for i, addr := range addrs {
		g.Go(func() error {
			result, err := s.Analyze(gctx, addr)
			items[i] = BatchItem{Address: addr, Result: result, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return items, nil
}

// BasisPoints converts a percentage confidence to the integer score the
// registry stores: 87.25 becomes 8725.
func BasisPoints(confidence float64) uint64 {
	if confidence <= 0 || math.IsNaN(confidence) {
		return 0
	}
	return uint64(math.Round(confidence * 100))
}

// AttestationRef derives the attestation reference for a verdict as a
// keccak-256 digest over its inputs.
func AttestationRef(addr domain.Address, status models.Status, score uint64, modelVersion string, at time.Time) string {
	h := sha3.NewLegacyKeccak256()
	h.Write(addr[:])
	h.Write([]byte{byte(status.Code())})
	h.Write([]byte(strconv.FormatUint(score, 10)))
	h.Write([]byte{0})
	h.Write([]byte(modelVersion))
	h.Write([]byte{0})
	h.Write([]byte(at.UTC().Format(time.RFC3339Nano)))
	return "0x" + hex.EncodeToString(h.Sum(nil))
}
