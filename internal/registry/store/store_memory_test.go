package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"autoshield/internal/registry/models"
	"autoshield/pkg/domain"
	"autoshield/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func addr(n int) domain.Address {
	return domain.MustParseAddress(fmt.Sprintf("0x%040x", n))
}

func write(a domain.Address, status models.Status, ref string, score uint64, at time.Time) models.Write {
	return models.Write{Address: a, Status: status, AttestationRef: ref, ConfidenceScore: score, At: at}
}

func (s *InMemoryStoreSuite) TestUnwrittenAccount() {
	_, err := s.store.GetRecord(s.ctx, addr(1))
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	history, err := s.store.History(s.ctx, addr(1))
	s.Require().NoError(err)
	s.Empty(history)
	s.NotNil(history)

	count, err := s.store.Count(s.ctx)
	s.Require().NoError(err)
	s.Zero(count)
}

func (s *InMemoryStoreSuite) TestApply() {
	t0 := time.Unix(1_700_000_000, 0).UTC()

	s.Run("replaces record and appends history", func() {
		c1, err := s.store.Apply(s.ctx, write(addr(1), models.StatusSuspected, "h1", 40, t0))
		s.Require().NoError(err)
		s.Equal(uint64(1), c1.Entry.Seq)
		s.Equal(uint64(1), c1.Count)

		c2, err := s.store.Apply(s.ctx, write(addr(1), models.StatusVerified, "h2", 90, t0.Add(time.Second)))
		s.Require().NoError(err)
		s.Equal(uint64(2), c2.Entry.Seq)
		s.Equal(uint64(2), c2.Count)

		record, err := s.store.GetRecord(s.ctx, addr(1))
		s.Require().NoError(err)
		s.Equal(models.StatusVerified, record.Status)
		s.Equal("h2", record.AttestationRef)
		s.Equal(uint64(90), record.ConfidenceScore)
		s.Equal(t0.Add(time.Second), record.LastChecked)
		s.Equal(uint64(2), record.Seq)
		s.Equal(uint64(2), c2.Record.Seq)

		history, err := s.store.History(s.ctx, addr(1))
		s.Require().NoError(err)
		s.Require().Len(history, 2)
		s.Equal(models.StatusSuspected, history[0].Status)
		s.Equal(models.StatusVerified, history[1].Status)
	})

	s.Run("does not touch other accounts", func() {
		_, err := s.store.GetRecord(s.ctx, addr(2))
		s.ErrorIs(err, sentinel.ErrNotFound)
		history, err := s.store.History(s.ctx, addr(2))
		s.Require().NoError(err)
		s.Empty(history)
	})

	s.Run("clock going backwards keeps lastChecked monotonic", func() {
		c, err := s.store.Apply(s.ctx, write(addr(1), models.StatusUnverified, "h3", 1, t0.Add(-time.Hour)))
		s.Require().NoError(err)
		s.Equal(t0.Add(time.Second), c.Record.LastChecked)
		s.Equal(t0.Add(time.Second), c.Entry.Timestamp)
	})
}

func (s *InMemoryStoreSuite) TestHistoryAcrossSegments() {
	const writes = segmentSize*2 + 7
	t0 := time.Unix(1_000, 0).UTC()
	for i := range writes {
		_, err := s.store.Apply(s.ctx, write(addr(9), models.Status(i%3), "", uint64(i), t0.Add(time.Duration(i)*time.Second)))
		s.Require().NoError(err)
		// Interleave another account so segments are not contiguous.
		_, err = s.store.Apply(s.ctx, write(addr(10), models.StatusVerified, "", 0, t0))
		s.Require().NoError(err)
	}

	history, err := s.store.History(s.ctx, addr(9))
	s.Require().NoError(err)
	s.Require().Len(history, writes)
	for i, e := range history {
		s.Equal(uint64(i+1), e.Seq)
		s.Equal(uint64(i), e.ConfidenceScore)
	}

	count, err := s.store.Count(s.ctx)
	s.Require().NoError(err)
	s.Equal(uint64(writes*2), count)
}

func (s *InMemoryStoreSuite) TestHistoryPage() {
	t0 := time.Unix(1_000, 0).UTC()
	for i := range 5 {
		_, err := s.store.Apply(s.ctx, write(addr(1), models.StatusVerified, "", uint64(i), t0))
		s.Require().NoError(err)
	}

	page, more, err := s.store.HistoryPage(s.ctx, addr(1), 0, 2)
	s.Require().NoError(err)
	s.True(more)
	s.Require().Len(page, 2)
	s.Equal(uint64(1), page[0].Seq)

	page, more, err = s.store.HistoryPage(s.ctx, addr(1), 4, 2)
	s.Require().NoError(err)
	s.False(more)
	s.Require().Len(page, 1)
	s.Equal(uint64(5), page[0].Seq)

	page, more, err = s.store.HistoryPage(s.ctx, addr(1), 5, 2)
	s.Require().NoError(err)
	s.False(more)
	s.Empty(page)

	page, _, err = s.store.HistoryPage(s.ctx, addr(2), 0, 10)
	s.Require().NoError(err)
	s.Empty(page)
}

func (s *InMemoryStoreSuite) TestGetRecordsAndStats() {
	t0 := time.Unix(1_000, 0).UTC()
	_, _ = s.store.Apply(s.ctx, write(addr(1), models.StatusVerified, "a", 1, t0))
	_, _ = s.store.Apply(s.ctx, write(addr(2), models.StatusSuspected, "b", 2, t0))
	_, _ = s.store.Apply(s.ctx, write(addr(2), models.StatusVerified, "c", 3, t0))

	records, err := s.store.GetRecords(s.ctx, []domain.Address{addr(1), addr(2), addr(3)})
	s.Require().NoError(err)
	s.Len(records, 2)
	s.Equal("c", records[addr(2)].AttestationRef)

	stats, err := s.store.Stats(s.ctx)
	s.Require().NoError(err)
	s.Equal(uint64(3), stats.TotalWrites)
	s.Equal(uint64(2), stats.Accounts)
	s.Equal(uint64(2), stats.ByStatus[models.StatusVerified])
	s.Equal(uint64(0), stats.ByStatus[models.StatusSuspected])
	s.Equal(uint64(0), stats.ByStatus[models.StatusUnverified])
}

func (s *InMemoryStoreSuite) TestConcurrentWrites() {
	const goroutines = 20
	const perGoroutine = 50
	var wg sync.WaitGroup
	for g := range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perGoroutine {
				_, err := s.store.Apply(s.ctx, write(addr(g%4), models.StatusVerified, "", 1, time.Now()))
				s.NoError(err)
				_, _ = s.store.History(s.ctx, addr(g%4))
			}
		}()
	}
	wg.Wait()

	count, err := s.store.Count(s.ctx)
	s.Require().NoError(err)
	s.Equal(uint64(goroutines*perGoroutine), count)

	var total int
	for i := range 4 {
		history, err := s.store.History(s.ctx, addr(i))
		s.Require().NoError(err)
		total += len(history)
		for j, e := range history {
			s.Equal(uint64(j+1), e.Seq)
			if j > 0 {
				s.False(e.Timestamp.Before(history[j-1].Timestamp))
			}
		}
	}
	s.Equal(goroutines*perGoroutine, total)
}
