package registry

import (
	"encoding/json"
	"testing"
)

func TestStatusCodeValid(t *testing.T) {
	for _, c := range []StatusCode{StatusUnverified, StatusVerified, StatusSuspected} {
		if !c.Valid() {
			t.Fatalf("expected %d to be valid", c)
		}
	}
	if StatusCode(3).Valid() {
		t.Fatalf("expected 3 to be invalid")
	}
}

func TestVerificationHistory(t *testing.T) {
	t.Run("empty history encodes as empty arrays", func(t *testing.T) {
		body, err := json.Marshal(NewVerificationHistory(0))
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		want := `{"timestamps":[],"statuses":[],"confidence_scores":[]}`
		if string(body) != want {
			t.Fatalf("expected %s, got %s", want, body)
		}
	})

	t.Run("statuses encode as numbers", func(t *testing.T) {
		h := NewVerificationHistory(2)
		h.Append(100, StatusSuspected, 40)
		h.Append(200, StatusVerified, 90)
		body, err := json.Marshal(h)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		want := `{"timestamps":[100,200],"statuses":[2,1],"confidence_scores":[40,90]}`
		if string(body) != want {
			t.Fatalf("expected %s, got %s", want, body)
		}
		if err := h.Validate(); err != nil {
			t.Fatalf("expected valid history: %v", err)
		}
	})

	t.Run("mismatched arrays are rejected", func(t *testing.T) {
		h := VerificationHistory{Timestamps: []uint64{1}, Statuses: []int{}, ConfidenceScores: []uint64{1}}
		if err := h.Validate(); err == nil {
			t.Fatalf("expected error for mismatched arrays")
		}
	})

	t.Run("out of range status is rejected", func(t *testing.T) {
		h := VerificationHistory{Timestamps: []uint64{1}, Statuses: []int{7}, ConfidenceScores: []uint64{1}}
		if err := h.Validate(); err == nil {
			t.Fatalf("expected error for status 7")
		}
	})
}
