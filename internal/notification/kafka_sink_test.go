package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProducer struct {
	key     []byte
	value   []byte
	headers map[string]string
	err     error
}

func (p *fakeProducer) Produce(_ context.Context, key, value []byte, headers map[string]string) error {
	p.key, p.value, p.headers = key, value, headers
	return p.err
}

func TestKafkaSink(t *testing.T) {
	t.Run("keys by lowercase address and encodes the contract event", func(t *testing.T) {
		producer := &fakeProducer{}
		sink := NewKafkaSink(producer)
		n := notificationFor(3)

		require.NoError(t, sink.Deliver(context.Background(), n))

		assert.Equal(t, "0x00000000000000000000000000000000000000aa", string(producer.key))
		assert.Equal(t, "VerificationUpdated", producer.headers["event"])
		assert.Equal(t, n.ID.String(), producer.headers["notification_id"])

		var body map[string]any
		require.NoError(t, json.Unmarshal(producer.value, &body))
		assert.Equal(t, "VerificationUpdated", body["event"])
		assert.Equal(t, float64(1), body["status"])
		assert.Equal(t, "h1", body["attestation_hash"])
		assert.Equal(t, float64(90), body["confidence_score"])
		assert.Equal(t, float64(3), body["sequence"])
	})

	t.Run("returns producer errors", func(t *testing.T) {
		sink := NewKafkaSink(&fakeProducer{err: errors.New("not leader")})
		assert.Error(t, sink.Deliver(context.Background(), notificationFor(1)))
	})
}

func TestDecode(t *testing.T) {
	n := notificationFor(9)
	value, err := Encode(n)
	require.NoError(t, err)

	got, err := Decode(value)
	require.NoError(t, err)
	assert.Equal(t, n.ID, got.ID)
	assert.Equal(t, n.Address, got.Address)
	assert.Equal(t, n.Status, got.Status)
	assert.Equal(t, n.Sequence, got.Sequence)
	assert.True(t, n.Timestamp.Equal(got.Timestamp))

	_, err = Decode([]byte(`{"event":"Other"}`))
	assert.Error(t, err)
}
