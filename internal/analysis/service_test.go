package analysis

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"autoshield/internal/authority"
	"autoshield/internal/registry/models"
	"autoshield/internal/registry/service"
	"autoshield/internal/registry/store"
	"autoshield/internal/scoring"
	"autoshield/pkg/domain"
	dErrors "autoshield/pkg/domain-errors"
	"autoshield/pkg/requestcontext"
)

var (
	owner      = domain.MustParseAddress("0x00000000000000000000000000000000000000aa")
	analyzedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
)

func account(n byte) domain.Address {
	var a domain.Address
	a[19] = n
	return a
}

type failingScorer struct{ err error }

func (f failingScorer) Score(context.Context, domain.Address) (scoring.Assessment, error) {
	return scoring.Assessment{}, f.err
}

type AnalysisServiceSuite struct {
	suite.Suite
	registry *service.Service
	scorer   scoring.StaticScorer
	svc      *Service
}

func TestAnalysisServiceSuite(t *testing.T) {
	suite.Run(t, new(AnalysisServiceSuite))
}

func (s *AnalysisServiceSuite) SetupTest() {
	auth, err := authority.New(owner)
	s.Require().NoError(err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.registry, err = service.New(auth, store.NewInMemory(), service.WithLogger(logger))
	s.Require().NoError(err)

	s.scorer = scoring.StaticScorer{
		Assessment: scoring.Assessment{
			Status:       models.StatusVerified,
			Confidence:   87.25,
			ModelVersion: "rf-1.2",
			AnalyzedAt:   analyzedAt,
		},
		Overrides: map[domain.Address]scoring.Assessment{
			account(2): {Status: models.StatusSuspected, Confidence: 64.5, ModelVersion: "rf-1.2", AnalyzedAt: analyzedAt},
		},
	}
	s.svc, err = New(s.scorer, s.registry, authority.NewCredential(owner), WithLogger(logger))
	s.Require().NoError(err)
}

func (s *AnalysisServiceSuite) TestAnalyzeRecordsVerdict() {
	ctx := requestcontext.WithTime(context.Background(), analyzedAt)
	result, err := s.svc.Analyze(ctx, account(1))
	s.Require().NoError(err)

	s.Equal(uint64(8725), result.ConfidenceScore)
	s.True(strings.HasPrefix(result.AttestationRef, "0x"))
	s.Len(result.AttestationRef, 66)
	s.Equal(uint64(1), result.Commit.Count)

	view, err := s.registry.GetStatus(ctx, account(1))
	s.Require().NoError(err)
	s.True(view.Exists)
	s.Equal(models.StatusVerified, view.Status)
	s.Equal(result.AttestationRef, view.AttestationRef)
	s.Equal(uint64(8725), view.ConfidenceScore)
}

func (s *AnalysisServiceSuite) TestAnalyzeWithoutAuthority() {
	svc, err := New(s.scorer, s.registry, authority.NewCredential(account(9)))
	s.Require().NoError(err)

	_, err = svc.Analyze(context.Background(), account(1))
	s.ErrorIs(err, models.ErrUnauthorized)

	count, err := s.registry.GetCount(context.Background())
	s.Require().NoError(err)
	s.Zero(count)
}

func (s *AnalysisServiceSuite) TestScorerFailureLeavesRegistryUntouched() {
	svc, err := New(failingScorer{err: scoring.ErrUnavailable}, s.registry, authority.NewCredential(owner))
	s.Require().NoError(err)

	_, err = svc.Analyze(context.Background(), account(1))
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))

	svc, err = New(failingScorer{err: errors.New("boom")}, s.registry, authority.NewCredential(owner))
	s.Require().NoError(err)
	_, err = svc.Analyze(context.Background(), account(1))
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))

	count, err := s.registry.GetCount(context.Background())
	s.Require().NoError(err)
	s.Zero(count)
}

func (s *AnalysisServiceSuite) TestBatchAnalyze() {
	s.Run("keeps input order", func() {
		addrs := []domain.Address{account(3), account(2), account(1)}
		items, err := s.svc.BatchAnalyze(context.Background(), addrs)
		s.Require().NoError(err)
		s.Require().Len(items, 3)
		for i, item := range items {
			s.NoError(item.Err)
			s.Equal(addrs[i], item.Address)
		}
		s.Equal(models.StatusSuspected, items[1].Result.Assessment.Status)

		count, err := s.registry.GetCount(context.Background())
		s.Require().NoError(err)
		s.Equal(uint64(3), count)
	})

	s.Run("rejects empty and oversized batches", func() {
		_, err := s.svc.BatchAnalyze(context.Background(), nil)
		s.ErrorIs(err, ErrEmptyBatch)

		addrs := make([]domain.Address, MaxBatch+1)
		for i := range addrs {
			addrs[i] = account(byte(i + 1))
		}
		_, err = s.svc.BatchAnalyze(context.Background(), addrs)
		s.ErrorIs(err, ErrBatchTooLarge)
	})
}

func TestBasisPoints(t *testing.T) {
	assert.Equal(t, uint64(8725), BasisPoints(87.25))
	assert.Equal(t, uint64(10000), BasisPoints(100))
	assert.Equal(t, uint64(1), BasisPoints(0.005))
	assert.Equal(t, uint64(0), BasisPoints(-3))
}

func TestAttestationRef(t *testing.T) {
	a := AttestationRef(account(1), models.StatusVerified, 8725, "rf-1.2", analyzedAt)
	b := AttestationRef(account(1), models.StatusVerified, 8725, "rf-1.2", analyzedAt)
	require.Equal(t, a, b)

	assert.NotEqual(t, a, AttestationRef(account(2), models.StatusVerified, 8725, "rf-1.2", analyzedAt))
	assert.NotEqual(t, a, AttestationRef(account(1), models.StatusSuspected, 8725, "rf-1.2", analyzedAt))
	assert.NotEqual(t, a, AttestationRef(account(1), models.StatusVerified, 8725, "rf-1.3", analyzedAt))
	assert.NotEqual(t, a, AttestationRef(account(1), models.StatusVerified, 8725, "rf-1.2", analyzedAt.Add(time.Second)))
}
