// Package service implements the verification registry: authority-gated
// writes that replace an account's record, append to its history and bump the
// global write counter, plus the read-only query surface over that state.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"autoshield/internal/authority"
	"autoshield/internal/registry/metrics"
	"autoshield/internal/registry/models"
	"autoshield/internal/registry/store"
	"autoshield/pkg/domain"
	dErrors "autoshield/pkg/domain-errors"
	"autoshield/pkg/platform/sentinel"
	"autoshield/pkg/requestcontext"
)

const (
	// DefaultPageLimit applies when a history page request names no limit.
	DefaultPageLimit = 100
	// MaxPageLimit caps a single history page.
	MaxPageLimit = 1000
	// MaxLookupAddresses caps a batch status lookup.
	MaxLookupAddresses = 100
)

var (
	// ErrZeroAddress is returned for writes to the zero address.
	ErrZeroAddress = dErrors.New(dErrors.CodeInvalidInput, "account address must be non-zero")
	// ErrTooManyAddresses is returned for batch lookups over MaxLookupAddresses.
	ErrTooManyAddresses = dErrors.New(dErrors.CodeInvalidInput, "too many addresses in one lookup")
)

// Notifier receives a change notification after every committed write.
type Notifier interface {
	Publish(ctx context.Context, n models.ChangeNotification) error
}

// QuerySurface is the read-only view of the registry. Implementations are safe
// for concurrent use and have no side effects.
type QuerySurface interface {
	GetStatus(ctx context.Context, addr domain.Address) (models.StatusView, error)
	GetStatuses(ctx context.Context, addrs []domain.Address) ([]models.StatusView, error)
	GetHistory(ctx context.Context, addr domain.Address) ([]models.HistoryEntry, error)
	GetHistoryPage(ctx context.Context, addr domain.Address, cursor uint64, limit int) (models.HistoryPage, error)
	GetCount(ctx context.Context) (uint64, error)
	GetStats(ctx context.Context) (models.Stats, error)
}

// Service is the verification registry.
type Service struct {
	// writeMu serializes authorize, validate and commit for every write.
	writeMu   sync.Mutex
	authority *authority.Authority
	store     store.Store
	notifier  Notifier
	metrics   *metrics.Metrics
	logger    *slog.Logger
	tracer    trace.Tracer
}

var _ QuerySurface = (*Service)(nil)

// Option configures a Service.
type Option func(*Service)

func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// New builds the registry over an authority and a store.
func New(auth *authority.Authority, st store.Store, opts ...Option) (*Service, error) {
	if auth == nil {
		return nil, errors.New("authority is required")
	}
	if st == nil {
		return nil, errors.New("store is required")
	}
	s := &Service{
		authority: auth,
		store:     st,
		logger:    slog.Default(),
		tracer:    otel.Tracer("autoshield/registry"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// SetStatus records a verification outcome for addr. The credential is checked
// first and the status code second; a rejected write changes nothing.
// On success the account's record is replaced, one history entry is appended,
// the write counter is incremented, and a change notification is published.
func (s *Service) SetStatus(
	ctx context.Context,
	cred authority.Credential,
	addr domain.Address,
	statusCode int,
	attestationRef string,
	confidenceScore uint64,
) (models.Commit, error) {
	ctx, span := s.tracer.Start(ctx, "registry.SetStatus", trace.WithAttributes(
		attribute.String("registry.address", addr.Hex()),
		attribute.Int("registry.status_code", statusCode),
	))
	defer span.End()
	requestID := requestcontext.RequestID(ctx)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.authorize(ctx, cred); err != nil {
		if errors.Is(err, models.ErrUnauthorized) {
			s.metrics.IncrementWriteOutcome("unauthorized")
			s.logger.WarnContext(ctx, "unauthorized verification write",
				"caller", cred.Caller().String(),
				"address", addr.String(),
				"request_id", requestID,
			)
			span.SetStatus(codes.Error, "unauthorized")
		} else {
			s.metrics.IncrementWriteOutcome("error")
			span.RecordError(err)
			span.SetStatus(codes.Error, "authority lookup failed")
		}
		return models.Commit{}, err
	}

	status, err := models.ParseStatusCode(statusCode)
	if err != nil {
		s.metrics.IncrementWriteOutcome("invalid_status")
		span.SetStatus(codes.Error, "invalid status")
		return models.Commit{}, err
	}
	if addr.IsZero() {
		s.metrics.IncrementWriteOutcome("invalid_address")
		span.SetStatus(codes.Error, "zero address")
		return models.Commit{}, ErrZeroAddress
	}

	start := time.Now()
	commit, err := s.store.Apply(ctx, models.Write{
		Address:         addr,
		Status:          status,
		AttestationRef:  attestationRef,
		ConfidenceScore: confidenceScore,
		At:              requestcontext.Now(ctx).UTC().Truncate(time.Second),
	})
	if err != nil {
		s.metrics.IncrementWriteOutcome("error")
		s.logger.ErrorContext(ctx, "failed to commit verification write",
			"address", addr.String(),
			"error", err,
			"request_id", requestID,
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, "commit failed")
		return models.Commit{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record verification")
	}
	s.metrics.IncrementWriteOutcome("committed")
	s.metrics.ObserveWriteLatency(time.Since(start))
	span.SetAttributes(
		attribute.Int64("registry.seq", int64(commit.Entry.Seq)),
		attribute.Int64("registry.count", int64(commit.Count)),
	)

	s.logger.InfoContext(ctx, "verification updated",
		"address", addr.String(),
		"status", status.String(),
		"confidence_score", confidenceScore,
		"seq", commit.Entry.Seq,
		"request_id", requestID,
	)

	// Published while still holding writeMu so notifications leave in commit order.
	s.notify(ctx, commit, attestationRef)
	return commit, nil
}

func (s *Service) notify(ctx context.Context, commit models.Commit, attestationRef string) {
	if s.notifier == nil {
		return
	}
	n := models.ChangeNotification{
		ID:              uuid.New(),
		Address:         commit.Record.Address,
		Status:          commit.Record.Status,
		AttestationRef:  attestationRef,
		ConfidenceScore: commit.Record.ConfidenceScore,
		Sequence:        commit.Count,
		Timestamp:       commit.Record.LastChecked,
	}
	if err := s.notifier.Publish(ctx, n); err != nil {
		s.logger.WarnContext(ctx, "failed to publish verification change",
			"address", n.Address.String(),
			"notification_id", n.ID.String(),
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
}

// TransferAuthority hands write access to newOwner. It takes the write lock so
// no write is authorized against a stale owner.
func (s *Service) TransferAuthority(ctx context.Context, cred authority.Credential, newOwner domain.Address) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	previous, err := s.authority.TransferOwnership(ctx, cred, newOwner)
	if err != nil {
		s.logger.WarnContext(ctx, "authority transfer rejected",
			"caller", cred.Caller().String(),
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return err
	}
	s.logger.InfoContext(ctx, "authority transferred",
		"previous_owner", previous.String(),
		"new_owner", newOwner.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return nil
}

// Authorize checks cred against the current owner without writing anything.
// Callers use it to reject a non-owner before validating the rest of a request.
func (s *Service) Authorize(ctx context.Context, cred authority.Credential) error {
	return s.authorize(ctx, cred)
}

// authorize reloads a shared owner before checking cred.
func (s *Service) authorize(ctx context.Context, cred authority.Credential) error {
	if err := s.authority.Sync(ctx); err != nil {
		s.logger.ErrorContext(ctx, "failed to load registry authority",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load registry authority")
	}
	if err := s.authority.Authorize(cred); err != nil {
		return models.ErrUnauthorized
	}
	return nil
}

// Authority returns the current owner.
func (s *Service) Authority(ctx context.Context) (domain.Address, error) {
	if err := s.authority.Sync(ctx); err != nil {
		return domain.ZeroAddress, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load registry authority")
	}
	return s.authority.Owner(), nil
}

// GetStatus returns the current record. Accounts never written read as the
// zero record with Exists false.
func (s *Service) GetStatus(ctx context.Context, addr domain.Address) (models.StatusView, error) {
	defer s.observe("status", time.Now())
	record, err := s.store.GetRecord(ctx, addr)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.StatusView{}, nil
		}
		return models.StatusView{}, s.readError(ctx, "status", err)
	}
	return models.ViewOf(record), nil
}

// GetStatuses returns one view per address, in input order.
func (s *Service) GetStatuses(ctx context.Context, addrs []domain.Address) ([]models.StatusView, error) {
	defer s.observe("statuses", time.Now())
	if len(addrs) > MaxLookupAddresses {
		return nil, ErrTooManyAddresses
	}
	records, err := s.store.GetRecords(ctx, addrs)
	if err != nil {
		return nil, s.readError(ctx, "statuses", err)
	}
	out := make([]models.StatusView, len(addrs))
	for i, addr := range addrs {
		if record, ok := records[addr]; ok {
			out[i] = models.ViewOf(record)
		}
	}
	return out, nil
}

// GetHistory returns every history entry for addr, oldest first.
func (s *Service) GetHistory(ctx context.Context, addr domain.Address) ([]models.HistoryEntry, error) {
	defer s.observe("history", time.Now())
	entries, err := s.store.History(ctx, addr)
	if err != nil {
		return nil, s.readError(ctx, "history", err)
	}
	if entries == nil {
		entries = []models.HistoryEntry{}
	}
	return entries, nil
}

// GetHistoryPage returns entries after cursor, oldest first. A zero limit means
// DefaultPageLimit; limits above MaxPageLimit are clamped.
func (s *Service) GetHistoryPage(ctx context.Context, addr domain.Address, cursor uint64, limit int) (models.HistoryPage, error) {
	defer s.observe("history_page", time.Now())
	switch {
	case limit <= 0:
		limit = DefaultPageLimit
	case limit > MaxPageLimit:
		limit = MaxPageLimit
	}
	entries, more, err := s.store.HistoryPage(ctx, addr, cursor, limit)
	if err != nil {
		return models.HistoryPage{}, s.readError(ctx, "history_page", err)
	}
	if entries == nil {
		entries = []models.HistoryEntry{}
	}
	page := models.HistoryPage{Entries: entries}
	if more && len(entries) > 0 {
		page.NextCursor = entries[len(entries)-1].Seq
	}
	return page, nil
}

// GetCount returns the number of successful writes across all accounts.
func (s *Service) GetCount(ctx context.Context) (uint64, error) {
	defer s.observe("count", time.Now())
	count, err := s.store.Count(ctx)
	if err != nil {
		return 0, s.readError(ctx, "count", err)
	}
	return count, nil
}

// GetStats returns current record counts per status and total writes.
func (s *Service) GetStats(ctx context.Context) (models.Stats, error) {
	defer s.observe("stats", time.Now())
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return models.Stats{}, s.readError(ctx, "stats", err)
	}
	return stats, nil
}

func (s *Service) observe(operation string, start time.Time) {
	s.metrics.ObserveLookupLatency(operation, time.Since(start))
}

func (s *Service) readError(ctx context.Context, operation string, err error) error {
	s.logger.ErrorContext(ctx, "registry read failed",
		"operation", operation,
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read registry")
}
