//go:build integration

package notification_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoshield/internal/notification"
	"autoshield/internal/platform/kafka/consumer"
	"autoshield/internal/platform/kafka/producer"
	"autoshield/internal/registry/models"
	"autoshield/pkg/domain"
	"autoshield/pkg/testutil/containers"
)

func TestKafkaSinkRoundTrip(t *testing.T) {
	rp := containers.GetManager().GetRedpanda(t)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	topic := "verification-updates-" + uuid.NewString()[:8]
	prod, err := producer.New(producer.Config{Brokers: rp.Brokers, Topic: topic}, nil)
	require.NoError(t, err)
	defer prod.Close(ctx)
	require.NoError(t, prod.EnsureTopic(ctx, 1, 1))
	require.NoError(t, prod.EnsureTopic(ctx, 1, 1), "ensuring an existing topic is a no-op")

	pub := notification.NewPublisher([]notification.Sink{notification.NewKafkaSink(prod)})
	defer pub.Close()

	addr := domain.MustParseAddress("0x00000000000000000000000000000000000000bb")
	for i, status := range []models.Status{models.StatusSuspected, models.StatusVerified} {
		require.NoError(t, pub.Publish(ctx, models.ChangeNotification{
			ID:              uuid.New(),
			Address:         addr,
			Status:          status,
			AttestationRef:  "h",
			ConfidenceScore: 50,
			Sequence:        uint64(i + 1),
			Timestamp:       time.Now().UTC(),
		}))
	}

	cons, err := consumer.New(consumer.Config{Brokers: rp.Brokers, Topics: []string{topic}, FromStart: true}, nil)
	require.NoError(t, err)
	defer cons.Close()

	var got []models.ChangeNotification
	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	err = cons.Run(runCtx, consumer.HandlerFunc(func(_ context.Context, msg *consumer.Message) error {
		n, err := notification.Decode(msg.Value)
		if err != nil {
			return err
		}
		got = append(got, n)
		if len(got) == 2 {
			stop()
		}
		return nil
	}))
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, models.StatusSuspected, got[0].Status)
	assert.Equal(t, models.StatusVerified, got[1].Status)
	assert.Equal(t, addr, got[1].Address)
}
