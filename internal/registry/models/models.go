package models

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	contract "autoshield/contracts/registry"
	"autoshield/internal/authority"
	"autoshield/pkg/domain"
	dErrors "autoshield/pkg/domain-errors"
)

var (
	// ErrUnauthorized is returned for writes whose credential is not the authority.
	ErrUnauthorized = authority.ErrUnauthorized
	// ErrInvalidStatus is returned for status codes outside 0..2.
	ErrInvalidStatus = dErrors.New(dErrors.CodeInvalidInput, "status code must be 0 (unverified), 1 (verified) or 2 (suspected)")
)

// Status is the tri-state verification outcome. Codes match the contract enum.
type Status uint8

const (
	StatusUnverified Status = Status(contract.StatusUnverified)
	StatusVerified   Status = Status(contract.StatusVerified)
	StatusSuspected  Status = Status(contract.StatusSuspected)
)

// Statuses lists every status in code order.
var Statuses = []Status{StatusUnverified, StatusVerified, StatusSuspected}

// ParseStatusCode validates a raw status code before any state is touched.
func ParseStatusCode(code int) (Status, error) {
	if code < 0 || code > int(contract.MaxStatusCode) {
		return 0, ErrInvalidStatus
	}
	return Status(code), nil
}

// ParseStatus accepts a status name ("verified") or its numeric code ("1").
func ParseStatus(s string) (Status, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "UNVERIFIED":
		return StatusUnverified, nil
	case "VERIFIED":
		return StatusVerified, nil
	case "SUSPECTED":
		return StatusSuspected, nil
	}
	code, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, ErrInvalidStatus
	}
	return ParseStatusCode(code)
}

func (s Status) String() string {
	switch s {
	case StatusUnverified:
		return "UNVERIFIED"
	case StatusVerified:
		return "VERIFIED"
	case StatusSuspected:
		return "SUSPECTED"
	default:
		return "UNKNOWN(" + strconv.Itoa(int(s)) + ")"
	}
}

// Code returns the contract enum value.
func (s Status) Code() contract.StatusCode {
	return contract.StatusCode(s)
}

// Record is the current verification state of one account.
type Record struct {
	Address         domain.Address
	Status          Status
	AttestationRef  string
	LastChecked     time.Time
	ConfidenceScore uint64
	// Seq is the history sequence of the write that produced this record,
	// which is also the account's history length.
	Seq uint64
}

// HistoryEntry is one immutable row of an account's history. Seq is the
// 1-based position of the write within that account's history.
type HistoryEntry struct {
	Seq             uint64
	Timestamp       time.Time
	Status          Status
	ConfidenceScore uint64
}

// StatusView is the read model for GetStatus. Exists is false for accounts
// that were never written; the other fields then hold the zero record.
type StatusView struct {
	Status          Status
	AttestationRef  string
	LastChecked     time.Time
	ConfidenceScore uint64
	Exists          bool
}

// ViewOf projects a stored record.
func ViewOf(r Record) StatusView {
	return StatusView{
		Status:          r.Status,
		AttestationRef:  r.AttestationRef,
		LastChecked:     r.LastChecked,
		ConfidenceScore: r.ConfidenceScore,
		Exists:          true,
	}
}

// Tuple renders the view as the contract return tuple. Unwritten accounts
// render as (0, "", 0, 0).
func (v StatusView) Tuple() contract.VerificationStatus {
	out := contract.VerificationStatus{
		Status:          v.Status.Code(),
		AttestationHash: v.AttestationRef,
		ConfidenceScore: v.ConfidenceScore,
	}
	if v.Exists {
		out.LastChecked = UnixSeconds(v.LastChecked)
	}
	return out
}

// HistoryTuple renders entries as the contract's parallel arrays.
func HistoryTuple(entries []HistoryEntry) contract.VerificationHistory {
	h := contract.NewVerificationHistory(len(entries))
	for _, e := range entries {
		h.Append(UnixSeconds(e.Timestamp), e.Status.Code(), e.ConfidenceScore)
	}
	return h
}

// HistoryPage is a bounded slice of an account's history. NextCursor is the
// Seq to pass back to continue, or zero when the history is exhausted.
type HistoryPage struct {
	Entries    []HistoryEntry
	NextCursor uint64
}

// Stats summarises registry state.
type Stats struct {
	TotalWrites uint64
	Accounts    uint64
	ByStatus    map[Status]uint64
}

// Write is a validated, authorized mutation ready to commit.
type Write struct {
	Address         domain.Address
	Status          Status
	AttestationRef  string
	ConfidenceScore uint64
	At              time.Time
}

// Commit is what a store returns after applying a Write atomically.
// Record.LastChecked may be later than Write.At when the clock went backwards.
type Commit struct {
	Record Record
	Entry  HistoryEntry
	Count  uint64
}

// ChangeNotification is published after every committed write.
type ChangeNotification struct {
	ID              uuid.UUID
	Address         domain.Address
	Status          Status
	AttestationRef  string
	ConfidenceScore uint64
	Sequence        uint64
	Timestamp       time.Time
}

// Event renders the notification as the contract event.
func (n ChangeNotification) Event() contract.VerificationUpdated {
	return contract.VerificationUpdated{
		User:            n.Address.String(),
		Status:          n.Status.Code(),
		AttestationHash: n.AttestationRef,
		ConfidenceScore: n.ConfidenceScore,
	}
}

// UnixSeconds renders t the way the contract stores block timestamps: whole
// seconds, with the zero time and pre-epoch times as 0.
func UnixSeconds(t time.Time) uint64 {
	if t.IsZero() || t.Unix() < 0 {
		return 0
	}
	return uint64(t.Unix())
}
