package handler

import (
	contract "autoshield/contracts/registry"
	"autoshield/internal/registry/models"
	"autoshield/pkg/domain"
)

// UpdateVerificationRequest is the body of POST /v1/verifications.
// Status is a pointer so an omitted status is rejected rather than read as 0.
type UpdateVerificationRequest struct {
	Address         string `json:"address"`
	Status          *int   `json:"status"`
	AttestationHash string `json:"attestation_hash"`
	ConfidenceScore uint64 `json:"confidence_score"`
}

type UpdateVerificationResponse struct {
	Address         string `json:"address"`
	Status          int    `json:"status"`
	StatusName      string `json:"status_name"`
	AttestationHash string `json:"attestation_hash"`
	LastChecked     uint64 `json:"last_checked"`
	ConfidenceScore uint64 `json:"confidence_score"`
	// Sequence is this write's position in the account's history.
	Sequence uint64 `json:"sequence"`
	Count    uint64 `json:"count"`
}

// StatusResponse is the getVerificationStatus tuple plus the address it
// describes and whether the account was ever written.
type StatusResponse struct {
	Address string `json:"address"`
	contract.VerificationStatus
	StatusName string `json:"status_name"`
	Exists     bool   `json:"exists"`
}

type HistoryResponse struct {
	Address string `json:"address"`
	contract.VerificationHistory
}

type HistoryEntryResponse struct {
	Seq             uint64 `json:"seq"`
	Timestamp       uint64 `json:"timestamp"`
	Status          int    `json:"status"`
	ConfidenceScore uint64 `json:"confidence_score"`
}

type HistoryPageResponse struct {
	Address    string                 `json:"address"`
	Entries    []HistoryEntryResponse `json:"entries"`
	NextCursor *uint64                `json:"next_cursor,omitempty"`
}

type CountResponse struct {
	Count uint64 `json:"count"`
}

type StatsResponse struct {
	TotalWrites uint64            `json:"total_writes"`
	Accounts    uint64            `json:"accounts"`
	ByStatus    map[string]uint64 `json:"by_status"`
}

type LookupRequest struct {
	Addresses []string `json:"addresses"`
}

type LookupResponse struct {
	Results []StatusResponse `json:"results"`
}

type TransferRequest struct {
	NewOwner string `json:"new_owner"`
}

type AuthorityResponse struct {
	Owner string `json:"owner"`
}

func toStatusResponse(addr domain.Address, v models.StatusView) StatusResponse {
	return StatusResponse{
		Address:            addr.String(),
		VerificationStatus: v.Tuple(),
		StatusName:         v.Status.String(),
		Exists:             v.Exists,
	}
}

func toUpdateResponse(c models.Commit) UpdateVerificationResponse {
	view := models.ViewOf(c.Record)
	tuple := view.Tuple()
	return UpdateVerificationResponse{
		Address:         c.Record.Address.String(),
		Status:          int(tuple.Status),
		StatusName:      c.Record.Status.String(),
		AttestationHash: tuple.AttestationHash,
		LastChecked:     tuple.LastChecked,
		ConfidenceScore: tuple.ConfidenceScore,
		Sequence:        c.Entry.Seq,
		Count:           c.Count,
	}
}

func toPageResponse(addr domain.Address, page models.HistoryPage) HistoryPageResponse {
	out := HistoryPageResponse{
		Address: addr.String(),
		Entries: make([]HistoryEntryResponse, 0, len(page.Entries)),
	}
	for _, e := range page.Entries {
		out.Entries = append(out.Entries, HistoryEntryResponse{
			Seq:             e.Seq,
			Timestamp:       models.UnixSeconds(e.Timestamp),
			Status:          int(e.Status.Code()),
			ConfidenceScore: e.ConfidenceScore,
		})
	}
	if page.NextCursor > 0 {
		next := page.NextCursor
		out.NextCursor = &next
	}
	return out
}

func toStatsResponse(s models.Stats) StatsResponse {
	out := StatsResponse{
		TotalWrites: s.TotalWrites,
		Accounts:    s.Accounts,
		ByStatus:    make(map[string]uint64, len(models.Statuses)),
	}
	for _, status := range models.Statuses {
		out.ByStatus[status.String()] = s.ByStatus[status]
	}
	return out
}
