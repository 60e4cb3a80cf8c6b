package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jwttoken "autoshield/internal/jwt_token"
	"autoshield/internal/registry/handler"
)

const testAddress = "0x00000000000000000000000000000000000000aa"

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("AUTOSHIELD_TOKEN", "")
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestTokenCommand(t *testing.T) {
	out, err := execute(t, "token", "--caller", testAddress, "--signing-key", "k", "--issuer", "autoshield")
	require.NoError(t, err)

	svc := jwttoken.NewJWTService("k", "autoshield")
	claims, err := svc.ValidateToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, strings.ToLower(testAddress), strings.ToLower(claims.Subject))

	_, err = execute(t, "token", "--caller", "nope", "--signing-key", "k")
	require.Error(t, err)
}

func TestInvalidFormat(t *testing.T) {
	_, err := execute(t, "count", "--format", "yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestStatusCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/verifications/"+testAddress, r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"address":          testAddress,
			"status":           1,
			"status_name":      "VERIFIED",
			"attestation_hash": "h1",
			"last_checked":     1700000000,
			"confidence_score": 90,
			"exists":           true,
		})
	}))
	defer srv.Close()

	t.Run("text", func(t *testing.T) {
		out, err := execute(t, "--server", srv.URL, "status", testAddress)
		require.NoError(t, err)
		assert.Contains(t, out, "VERIFIED (1)")
		assert.Contains(t, out, "h1")
		assert.Contains(t, out, "2023-11-14T22:13:20Z")
		assert.NotContains(t, out, "never written")
	})

	t.Run("json", func(t *testing.T) {
		out, err := execute(t, "--server", srv.URL, "--format", "json", "status", testAddress)
		require.NoError(t, err)
		var resp handler.StatusResponse
		require.NoError(t, json.Unmarshal([]byte(out), &resp))
		assert.Equal(t, uint64(90), resp.ConfidenceScore)
		assert.True(t, resp.Exists)
	})
}

func TestHistoryFollowsCursors(t *testing.T) {
	var cursors []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cursor := r.URL.Query().Get("cursor")
		cursors = append(cursors, cursor)
		page := handler.HistoryPageResponse{Address: testAddress}
		switch cursor {
		case "0":
			next := uint64(1)
			page.Entries = []handler.HistoryEntryResponse{{Seq: 1, Timestamp: 100, Status: 2, ConfidenceScore: 40}}
			page.NextCursor = &next
		default:
			page.Entries = []handler.HistoryEntryResponse{{Seq: 2, Timestamp: 200, Status: 1, ConfidenceScore: 90}}
		}
		_ = json.NewEncoder(w).Encode(page)
	}))
	defer srv.Close()

	out, err := execute(t, "--server", srv.URL, "history", testAddress, "--all", "--limit", "1")
	require.NoError(t, err)
	assert.Equal(t, []string{"0", "1"}, cursors)
	assert.Contains(t, out, "SUSPECTED")
	assert.Contains(t, out, "VERIFIED")
	assert.Less(t, strings.Index(out, "SUSPECTED"), strings.Index(out, "VERIFIED"))
	assert.NotContains(t, out, "more entries")
}

func TestUpdateCommand(t *testing.T) {
	t.Run("sends the write with the bearer token", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			var req handler.UpdateVerificationRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			if assert.NotNil(t, req.Status) {
				assert.Equal(t, 2, *req.Status)
			}
			assert.Equal(t, "h2", req.AttestationHash)
			_ = json.NewEncoder(w).Encode(handler.UpdateVerificationResponse{
				Address: testAddress, Status: 2, StatusName: "SUSPECTED", Sequence: 1, Count: 1,
			})
		}))
		defer srv.Close()

		out, err := execute(t, "--server", srv.URL, "--token", "tok", "update", testAddress,
			"--status", "suspected", "--attestation", "h2", "--confidence", "40")
		require.NoError(t, err)
		assert.Contains(t, out, "SUSPECTED (seq 1, total writes 1)")
	})

	t.Run("surfaces API errors", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":"forbidden","error_description":"caller is not the authority"}`))
		}))
		defer srv.Close()

		_, err := execute(t, "--server", srv.URL, "--token", "tok", "update", testAddress, "--status", "1")
		require.Error(t, err)
		var apiErr *apiError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusForbidden, apiErr.Status)
		assert.Equal(t, "forbidden", apiErr.Code)
	})

	t.Run("rejects unknown statuses locally", func(t *testing.T) {
		_, err := execute(t, "--server", "http://127.0.0.1:1", "--token", "tok", "update", testAddress, "--status", "5")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "--status")
	})

	t.Run("requires a token", func(t *testing.T) {
		_, err := execute(t, "update", testAddress, "--status", "1")
		require.Error(t, err)
	})
}

func TestSplitBrokers(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, splitBrokers(" a:9092, ,b:9092 "))
	assert.Nil(t, splitBrokers(""))
}
