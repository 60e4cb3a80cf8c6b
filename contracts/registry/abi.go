// Package registry describes the wire surface of the verification registry
// contract: status codes, return tuples, and the change event. Off-chain
// services use these types so the HTTP API and the event stream stay
// byte-compatible with what an on-chain indexer would decode.
package registry

import "fmt"

// Contract function and event names.
const (
	FnUpdateVerification     = "updateVerification"
	FnGetVerificationStatus  = "getVerificationStatus"
	FnGetVerificationHistory = "getVerificationHistory"
	FnGetVerificationCount   = "getVerificationCount"

	EventVerificationUpdated = "VerificationUpdated"
)

// StatusCode is the uint8 enum the contract stores per account.
type StatusCode uint8

const (
	StatusUnverified StatusCode = 0
	StatusVerified   StatusCode = 1
	StatusSuspected  StatusCode = 2

	// MaxStatusCode is the highest code updateVerification accepts.
	MaxStatusCode = StatusSuspected
)

// Valid reports whether c is one of the defined codes.
func (c StatusCode) Valid() bool {
	return c <= MaxStatusCode
}

// VerificationStatus is the getVerificationStatus return tuple.
type VerificationStatus struct {
	Status          StatusCode `json:"status"`
	AttestationHash string     `json:"attestation_hash"`
	LastChecked     uint64     `json:"last_checked"`
	ConfidenceScore uint64     `json:"confidence_score"`
}

// VerificationHistory is the getVerificationHistory return tuple. The three
// arrays are parallel: index i of each describes the i-th write.
type VerificationHistory struct {
	Timestamps       []uint64 `json:"timestamps"`
	Statuses         []int    `json:"statuses"`
	ConfidenceScores []uint64 `json:"confidence_scores"`
}

// NewVerificationHistory returns an empty history with capacity for n rows.
// Arrays are never nil so they encode as [] rather than null.
func NewVerificationHistory(n int) VerificationHistory {
	return VerificationHistory{
		Timestamps:       make([]uint64, 0, n),
		Statuses:         make([]int, 0, n),
		ConfidenceScores: make([]uint64, 0, n),
	}
}

// Append adds one row to all three arrays.
func (h *VerificationHistory) Append(timestamp uint64, status StatusCode, score uint64) {
	h.Timestamps = append(h.Timestamps, timestamp)
	h.Statuses = append(h.Statuses, int(status))
	h.ConfidenceScores = append(h.ConfidenceScores, score)
}

// Len returns the number of rows.
func (h VerificationHistory) Len() int {
	return len(h.Timestamps)
}

// Validate checks the arrays are parallel and every status is in range.
func (h VerificationHistory) Validate() error {
	if len(h.Statuses) != len(h.Timestamps) || len(h.ConfidenceScores) != len(h.Timestamps) {
		return fmt.Errorf("history arrays differ in length: %d timestamps, %d statuses, %d scores",
			len(h.Timestamps), len(h.Statuses), len(h.ConfidenceScores))
	}
	for i, s := range h.Statuses {
		if s < 0 || !StatusCode(s).Valid() {
			return fmt.Errorf("history row %d: invalid status code %d", i, s)
		}
	}
	return nil
}

// VerificationUpdated is the event emitted on every successful write.
type VerificationUpdated struct {
	User            string     `json:"user"`
	Status          StatusCode `json:"status"`
	AttestationHash string     `json:"attestation_hash"`
	ConfidenceScore uint64     `json:"confidence_score"`
}
