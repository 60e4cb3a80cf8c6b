package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	contract "autoshield/contracts/registry"
	"autoshield/internal/registry/models"
	"autoshield/pkg/domain"
)

// Producer writes one keyed record to Kafka.
type Producer interface {
	Produce(ctx context.Context, key, value []byte, headers map[string]string) error
}

// Payload is the JSON body of a notification record.
type Payload struct {
	ID              string              `json:"id"`
	Event           string              `json:"event"`
	User            string              `json:"user"`
	Status          contract.StatusCode `json:"status"`
	AttestationHash string              `json:"attestation_hash"`
	ConfidenceScore uint64              `json:"confidence_score"`
	Sequence        uint64              `json:"sequence"`
	Timestamp       time.Time           `json:"timestamp"`
}

// KafkaSink publishes notifications keyed by account so every update to one
// account lands on the same partition in order.
type KafkaSink struct {
	producer Producer
}

func NewKafkaSink(p Producer) *KafkaSink {
	return &KafkaSink{producer: p}
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Deliver(ctx context.Context, n models.ChangeNotification) error {
	value, err := Encode(n)
	if err != nil {
		return err
	}
	headers := map[string]string{
		"event":           contract.EventVerificationUpdated,
		"notification_id": n.ID.String(),
	}
	return s.producer.Produce(ctx, []byte(strings.ToLower(n.Address.Hex())), value, headers)
}

// Encode renders a notification as a record payload.
func Encode(n models.ChangeNotification) ([]byte, error) {
	event := n.Event()
	body, err := json.Marshal(Payload{
		ID:              n.ID.String(),
		Event:           contract.EventVerificationUpdated,
		User:            event.User,
		Status:          event.Status,
		AttestationHash: event.AttestationHash,
		ConfidenceScore: event.ConfidenceScore,
		Sequence:        n.Sequence,
		Timestamp:       n.Timestamp.UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("encode notification: %w", err)
	}
	return body, nil
}

// Decode parses a record payload back into a notification.
func Decode(value []byte) (models.ChangeNotification, error) {
	var p Payload
	if err := json.Unmarshal(value, &p); err != nil {
		return models.ChangeNotification{}, fmt.Errorf("decode notification: %w", err)
	}
	if p.Event != contract.EventVerificationUpdated {
		return models.ChangeNotification{}, fmt.Errorf("unexpected event %q", p.Event)
	}
	addr, err := domain.ParseAddress(p.User)
	if err != nil {
		return models.ChangeNotification{}, fmt.Errorf("decode notification user: %w", err)
	}
	status, err := models.ParseStatusCode(int(p.Status))
	if err != nil {
		return models.ChangeNotification{}, err
	}
	id, err := uuid.Parse(p.ID)
	if err != nil {
		return models.ChangeNotification{}, fmt.Errorf("decode notification id: %w", err)
	}
	return models.ChangeNotification{
		ID:              id,
		Address:         addr,
		Status:          status,
		AttestationRef:  p.AttestationHash,
		ConfidenceScore: p.ConfidenceScore,
		Sequence:        p.Sequence,
		Timestamp:       p.Timestamp,
	}, nil
}
