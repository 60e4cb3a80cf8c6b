package store

import (
	"context"
	"sync"

	"autoshield/internal/registry/models"
	"autoshield/pkg/domain"
	"autoshield/pkg/platform/sentinel"
)

// segmentSize is the number of history entries per arena segment.
const segmentSize = 128

// segment is a fixed-size block of history. Slots below an account's length
// are written once and never modified.
type segment [segmentSize]models.HistoryEntry

type account struct {
	record   models.Record
	segments []int // indexes into InMemoryStore.arena, in history order
	length   uint64
}

// InMemoryStore keeps all state in process memory. History is held in an
// arena of fixed-size segments so appends never copy earlier entries and
// readers can copy out a range under the read lock.
type InMemoryStore struct {
	mu       sync.RWMutex
	accounts map[domain.Address]*account
	arena    []*segment
	count    uint64
	byStatus map[models.Status]uint64
}

// NewInMemory creates an empty store.
func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		accounts: make(map[domain.Address]*account),
		byStatus: make(map[models.Status]uint64),
	}
}

func (s *InMemoryStore) Apply(_ context.Context, w models.Write) (models.Commit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, existed := s.accounts[w.Address]
	if !existed {
		acc = &account{}
		s.accounts[w.Address] = acc
	} else {
		s.byStatus[acc.record.Status]--
	}

	at := commitTime(w.At, acc.record.LastChecked)
	entry := models.HistoryEntry{
		Seq:             acc.length + 1,
		Timestamp:       at,
		Status:          w.Status,
		ConfidenceScore: w.ConfidenceScore,
	}
	s.appendEntry(acc, entry)

	acc.record = models.Record{
		Address:         w.Address,
		Status:          w.Status,
		AttestationRef:  w.AttestationRef,
		LastChecked:     at,
		ConfidenceScore: w.ConfidenceScore,
		Seq:             entry.Seq,
	}
	s.byStatus[w.Status]++
	s.count++

	return models.Commit{Record: acc.record, Entry: entry, Count: s.count}, nil
}

func (s *InMemoryStore) appendEntry(acc *account, entry models.HistoryEntry) {
	offset := acc.length % segmentSize
	if offset == 0 {
		s.arena = append(s.arena, new(segment))
		acc.segments = append(acc.segments, len(s.arena)-1)
	}
	seg := s.arena[acc.segments[len(acc.segments)-1]]
	seg[offset] = entry
	acc.length++
}

// entriesLocked copies entries [from, to) out of the arena. Caller holds mu.
func (s *InMemoryStore) entriesLocked(acc *account, from, to uint64) []models.HistoryEntry {
	out := make([]models.HistoryEntry, 0, to-from)
	for i := from; i < to; i++ {
		seg := s.arena[acc.segments[i/segmentSize]]
		out = append(out, seg[i%segmentSize])
	}
	return out
}

func (s *InMemoryStore) GetRecord(_ context.Context, addr domain.Address) (models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accounts[addr]
	if !ok {
		return models.Record{}, sentinel.ErrNotFound
	}
	return acc.record, nil
}

func (s *InMemoryStore) GetRecords(_ context.Context, addrs []domain.Address) (map[domain.Address]models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[domain.Address]models.Record, len(addrs))
	for _, addr := range addrs {
		if acc, ok := s.accounts[addr]; ok {
			out[addr] = acc.record
		}
	}
	return out, nil
}

func (s *InMemoryStore) History(_ context.Context, addr domain.Address) ([]models.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accounts[addr]
	if !ok {
		return []models.HistoryEntry{}, nil
	}
	return s.entriesLocked(acc, 0, acc.length), nil
}

func (s *InMemoryStore) HistoryPage(_ context.Context, addr domain.Address, after uint64, limit int) ([]models.HistoryEntry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accounts[addr]
	if !ok || after >= acc.length || limit <= 0 {
		return []models.HistoryEntry{}, false, nil
	}
	end := min(after+uint64(limit), acc.length)
	return s.entriesLocked(acc, after, end), end < acc.length, nil
}

func (s *InMemoryStore) Count(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count, nil
}

func (s *InMemoryStore) Stats(_ context.Context) (models.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byStatus := make(map[models.Status]uint64, len(models.Statuses))
	for _, st := range models.Statuses {
		byStatus[st] = s.byStatus[st]
	}
	return models.Stats{
		TotalWrites: s.count,
		Accounts:    uint64(len(s.accounts)),
		ByStatus:    byStatus,
	}, nil
}
