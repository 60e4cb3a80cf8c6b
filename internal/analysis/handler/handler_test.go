package handler

//go:generate mockgen -source=handler.go -destination=mocks/service-mocks.go -package=mocks Service

import (
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"autoshield/internal/analysis"
	"autoshield/internal/analysis/handler/mocks"
	"autoshield/internal/registry/models"
	"autoshield/internal/scoring"
	"autoshield/pkg/domain"
	dErrors "autoshield/pkg/domain-errors"
	"autoshield/pkg/testutil"
)

var (
	accountA = domain.MustParseAddress("0x000000000000000000000000000000000000000a")
	accountB = domain.MustParseAddress("0x000000000000000000000000000000000000000b")
)

type AnalysisHandlerSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	service *mocks.MockService
	router  chi.Router
}

func TestAnalysisHandlerSuite(t *testing.T) {
	suite.Run(t, new(AnalysisHandlerSuite))
}

func (s *AnalysisHandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.service = mocks.NewMockService(s.ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.router = chi.NewRouter()
	New(s.service, nil, logger, nil).Register(s.router)
}

func (s *AnalysisHandlerSuite) TearDownTest() {
	s.ctrl.Finish()
}

func verdict(addr domain.Address) analysis.Result {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return analysis.Result{
		Address: addr,
		Assessment: scoring.Assessment{
			Status:       models.StatusVerified,
			Confidence:   87.25,
			RiskScore:    12,
			ModelVersion: "rf-1.2",
		},
		AttestationRef:  "0xabc",
		ConfidenceScore: 8725,
		Commit: models.Commit{
			Record: models.Record{Address: addr, Status: models.StatusVerified, LastChecked: at},
			Entry:  models.HistoryEntry{Seq: 1},
			Count:  1,
		},
	}
}

func (s *AnalysisHandlerSuite) TestAnalyze() {
	s.Run("returns the recorded verdict", func() {
		s.service.EXPECT().Analyze(gomock.Any(), accountA).Return(verdict(accountA), nil)

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/analysis", AnalyzeRequest{Address: accountA.Hex()})
		rr := testutil.DoRequest(s.router, req)

		s.Equal(http.StatusOK, rr.Code)
		resp := testutil.DecodeJSON[AnalyzeResponse](s.T(), rr)
		s.Equal(1, resp.Status)
		s.Equal(uint64(8725), resp.ConfidenceScore)
		s.Equal("0xabc", resp.AttestationHash)
		s.Equal([]string{}, resp.RiskFactors)
		s.Equal(uint64(1), resp.Sequence)
	})

	s.Run("scoring outage is 503", func() {
		s.service.EXPECT().Analyze(gomock.Any(), accountA).Return(analysis.Result{}, scoring.ErrUnavailable)

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/analysis", AnalyzeRequest{Address: accountA.Hex()})
		rr := testutil.DoRequest(s.router, req)
		s.Equal(http.StatusServiceUnavailable, rr.Code)
	})

	s.Run("bad address is 400", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/analysis", AnalyzeRequest{Address: "wallet"})
		rr := testutil.DoRequest(s.router, req)
		s.Equal(http.StatusBadRequest, rr.Code)
	})
}

func (s *AnalysisHandlerSuite) TestBatch() {
	s.Run("reports per-address outcomes", func() {
		s.service.EXPECT().BatchAnalyze(gomock.Any(), []domain.Address{accountA, accountB}).Return([]analysis.BatchItem{
			{Address: accountA, Result: verdict(accountA)},
			{Address: accountB, Err: dErrors.New(dErrors.CodeInternal, "db exploded")},
		}, nil)

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/analysis/batch", BatchRequest{
			Addresses: []string{accountA.Hex(), accountB.Hex()},
		})
		rr := testutil.DoRequest(s.router, req)

		s.Equal(http.StatusOK, rr.Code)
		resp := testutil.DecodeJSON[BatchResponse](s.T(), rr)
		s.Equal(1, resp.Succeeded)
		s.Equal(1, resp.Failed)
		s.Require().Len(resp.Results, 2)
		s.NotNil(resp.Results[0].Result)
		s.Equal("internal_error", resp.Results[1].Error)
		s.NotContains(rr.Body.String(), "db exploded")
	})

	s.Run("oversized batch is rejected before analysis", func() {
		addrs := make([]string, analysis.MaxBatch+1)
		for i := range addrs {
			addrs[i] = accountA.Hex()
		}
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/analysis/batch", BatchRequest{Addresses: addrs})
		rr := testutil.DoRequest(s.router, req)
		s.Equal(http.StatusBadRequest, rr.Code)
	})
}
