package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoshield/internal/registry/models"
	"autoshield/pkg/domain"
)

type recordingSink struct {
	mu    sync.Mutex
	got   []models.ChangeNotification
	err   error
	delay time.Duration
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Deliver(_ context.Context, n models.ChangeNotification) error {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.got = append(s.got, n)
	return nil
}

func (s *recordingSink) received() []models.ChangeNotification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ChangeNotification(nil), s.got...)
}

func notificationFor(seq uint64) models.ChangeNotification {
	return models.ChangeNotification{
		ID:              uuid.New(),
		Address:         domain.MustParseAddress("0x00000000000000000000000000000000000000aa"),
		Status:          models.StatusVerified,
		AttestationRef:  "h1",
		ConfidenceScore: 90,
		Sequence:        seq,
		Timestamp:       time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestPublisher_SyncMode(t *testing.T) {
	sink := &recordingSink{}
	pub := NewPublisher([]Sink{sink})
	defer pub.Close()

	require.NoError(t, pub.Publish(context.Background(), notificationFor(1)))

	got := sink.received()
	require.Len(t, got, 1)
	assert.Equal(t, uint64(1), got[0].Sequence)
}

func TestPublisher_AsyncMode(t *testing.T) {
	sink := &recordingSink{}
	pub := NewPublisher([]Sink{sink}, WithAsyncBuffer(10))
	defer pub.Close()

	require.NoError(t, pub.Publish(context.Background(), notificationFor(1)))

	require.Eventually(t, func() bool {
		return len(sink.received()) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestPublisher_AsyncDrainsOnCloseInOrder(t *testing.T) {
	sink := &recordingSink{}
	pub := NewPublisher([]Sink{sink}, WithAsyncBuffer(100))

	for i := range 10 {
		require.NoError(t, pub.Publish(context.Background(), notificationFor(uint64(i+1))))
	}
	pub.Close()

	got := sink.received()
	require.Len(t, got, 10, "all notifications should be drained on close")
	for i, n := range got {
		assert.Equal(t, uint64(i+1), n.Sequence)
	}
}

func TestPublisher_BufferFullDrops(t *testing.T) {
	sink := &recordingSink{delay: 50 * time.Millisecond}
	pub := NewPublisher([]Sink{sink}, WithAsyncBuffer(1))
	defer pub.Close()

	var dropped int
	for i := range 10 {
		if err := pub.Publish(context.Background(), notificationFor(uint64(i+1))); err != nil {
			assert.ErrorIs(t, err, ErrBufferFull)
			dropped++
		}
	}
	assert.Positive(t, dropped)
}

func TestPublisher_PublishAfterClose(t *testing.T) {
	pub := NewPublisher(nil, WithAsyncBuffer(4))
	pub.Close()
	pub.Close()

	err := pub.Publish(context.Background(), notificationFor(1))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestPublisher_SinkFailureIsNotReturned(t *testing.T) {
	failing := &recordingSink{err: errors.New("broker down")}
	healthy := &recordingSink{}
	pub := NewPublisher([]Sink{failing, healthy})
	defer pub.Close()

	require.NoError(t, pub.Publish(context.Background(), notificationFor(1)))
	assert.Len(t, healthy.received(), 1, "one failing sink must not starve the others")
}
