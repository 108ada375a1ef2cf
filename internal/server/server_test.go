package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/trustvault/backend/internal/accounting"
	"github.com/trustvault/backend/internal/auth"
	"github.com/trustvault/backend/internal/engine"
	"github.com/trustvault/backend/internal/invite"
	"github.com/trustvault/backend/internal/ledger"
	"github.com/trustvault/backend/internal/oracle"
	"github.com/trustvault/backend/internal/storage/sqlite"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tempDir, err := os.MkdirTemp("", "trustvault-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	store, err := sqlite.New(filepath.Join(tempDir, "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	groups := ledger.New(store)
	quotes := oracle.NewOffline()
	tokens := auth.NewJWTManager("test-secret", time.Hour)

	router := NewRouter(Deps{
		Store:         store,
		Groups:        groups,
		Engine:        engine.New(store, groups, quotes),
		Invites:       invite.New(store, groups),
		Accounting:    accounting.New(store, groups, quotes),
		Oracle:        quotes,
		Authenticator: auth.NewPasswordAuthenticator(store),
		Tokens:        tokens,
		Metrics:       prometheus.NewRegistry(),
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

// call issues a JSON request and decodes the response body into a map.
func call(t *testing.T, srv *httptest.Server, method, path, token string, body any) (int, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	if err != nil {
		t.Fatalf("Failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return resp.StatusCode, decoded
}

func signup(t *testing.T, srv *httptest.Server, username, email string) (userID, token string) {
	t.Helper()
	status, body := call(t, srv, http.MethodPost, "/auth/signup", "", map[string]any{
		"username": username,
		"email":    email,
		"password": "secret123",
	})
	if status != http.StatusCreated {
		t.Fatalf("signup %s: status %d, body %v", email, status, body)
	}
	return body["userId"].(string), body["token"].(string)
}

func TestAuthFlow(t *testing.T) {
	srv := newTestServer(t)

	userID, token := signup(t, srv, "alice", "alice@example.com")
	if userID == "" || token == "" {
		t.Fatal("signup returned empty identity")
	}

	t.Run("login returns a working token", func(t *testing.T) {
		status, body := call(t, srv, http.MethodPost, "/auth/login", "", map[string]any{
			"email":    "alice@example.com",
			"password": "secret123",
		})
		if status != http.StatusOK {
			t.Fatalf("status %d, body %v", status, body)
		}

		status, me := call(t, srv, http.MethodGet, "/users/me", body["token"].(string), nil)
		if status != http.StatusOK {
			t.Fatalf("status %d, body %v", status, me)
		}
		if me["email"] != "alice@example.com" {
			t.Errorf("email = %v", me["email"])
		}
		if _, ok := me["passwordHash"]; ok {
			t.Error("profile leaked the credential hash")
		}
	})

	t.Run("bad password is 401", func(t *testing.T) {
		status, _ := call(t, srv, http.MethodPost, "/auth/login", "", map[string]any{
			"email":    "alice@example.com",
			"password": "wrong-password",
		})
		if status != http.StatusUnauthorized {
			t.Errorf("status %d, want 401", status)
		}
	})

	t.Run("protected routes require a token", func(t *testing.T) {
		status, _ := call(t, srv, http.MethodGet, "/users/me", "", nil)
		if status != http.StatusUnauthorized {
			t.Errorf("status %d, want 401", status)
		}
		status, _ = call(t, srv, http.MethodGet, "/groups", "garbage-token", nil)
		if status != http.StatusUnauthorized {
			t.Errorf("status %d, want 401", status)
		}
	})
}

func TestGroupEndpoints(t *testing.T) {
	srv := newTestServer(t)
	ownerID, ownerToken := signup(t, srv, "owner", "owner@example.com")
	friendID, friendToken := signup(t, srv, "friend", "friend@example.com")

	status, created := call(t, srv, http.MethodPost, "/groups", ownerToken, map[string]any{
		"name": "Road Trip Fund",
	})
	if status != http.StatusCreated {
		t.Fatalf("create group: status %d, body %v", status, created)
	}
	groupID := created["groupId"].(string)

	t.Run("members can be added and listed", func(t *testing.T) {
		status, body := call(t, srv, http.MethodPost, "/groups/"+groupID+"/members", ownerToken, map[string]any{
			"userId": friendID,
		})
		if status != http.StatusOK {
			t.Fatalf("add member: status %d, body %v", status, body)
		}

		// Adding again conflicts at the HTTP surface.
		status, _ = call(t, srv, http.MethodPost, "/groups/"+groupID+"/members", ownerToken, map[string]any{
			"userId": friendID,
		})
		if status != http.StatusConflict {
			t.Errorf("repeat add: status %d, want 409", status)
		}

		status, members := call(t, srv, http.MethodGet, "/groups/"+groupID+"/members", friendToken, nil)
		if status != http.StatusOK {
			t.Fatalf("list members: status %d", status)
		}
		if members["count"].(float64) != 2 {
			t.Errorf("count = %v, want 2", members["count"])
		}
	})

	t.Run("group detail carries derived assets", func(t *testing.T) {
		status, body := call(t, srv, http.MethodGet, "/groups/"+groupID, ownerToken, nil)
		if status != http.StatusOK {
			t.Fatalf("status %d, body %v", status, body)
		}
		group := body["group"].(map[string]any)
		if group["memberCount"].(float64) != 2 {
			t.Errorf("memberCount = %v", group["memberCount"])
		}
		if _, ok := group["totalAssets"]; !ok {
			t.Error("totalAssets missing")
		}
		details := group["memberDetails"].([]any)
		if len(details) != 2 {
			t.Errorf("memberDetails = %d entries", len(details))
		}
	})

	t.Run("non-member is denied", func(t *testing.T) {
		_, strangerToken := signup(t, srv, "stranger", "stranger@example.com")
		status, _ := call(t, srv, http.MethodGet, "/groups/"+groupID, strangerToken, nil)
		if status != http.StatusForbidden {
			t.Errorf("status %d, want 403", status)
		}
	})

	t.Run("deposit without personal funds is rejected", func(t *testing.T) {
		status, body := call(t, srv, http.MethodPost, "/groups/"+groupID+"/deposit", ownerToken, map[string]any{
			"amount": 100,
		})
		if status != http.StatusBadRequest {
			t.Errorf("status %d, want 400, body %v", status, body)
		}
		if body["code"] != "insufficient_funds" {
			t.Errorf("code = %v", body["code"])
		}
	})

	t.Run("member cannot remove another member", func(t *testing.T) {
		status, _ := call(t, srv, http.MethodDelete,
			fmt.Sprintf("/groups/%s/members/%s", groupID, ownerID), friendToken, nil)
		if status != http.StatusForbidden {
			t.Errorf("status %d, want 403", status)
		}
	})

	t.Run("only the owner deletes the group", func(t *testing.T) {
		status, _ := call(t, srv, http.MethodDelete, "/groups/"+groupID, friendToken, nil)
		if status != http.StatusForbidden {
			t.Errorf("status %d, want 403", status)
		}
		status, _ = call(t, srv, http.MethodDelete, "/groups/"+groupID, ownerToken, nil)
		if status != http.StatusOK {
			t.Errorf("status %d, want 200", status)
		}
	})
}

func TestTransactionEndpoints(t *testing.T) {
	srv := newTestServer(t)
	_, aliceToken := signup(t, srv, "alice", "alice@example.com")
	bobID, bobToken := signup(t, srv, "bob", "bob@example.com")

	_, created := call(t, srv, http.MethodPost, "/groups", aliceToken, map[string]any{
		"name": "Voting Group",
	})
	groupID := created["groupId"].(string)
	call(t, srv, http.MethodPost, "/groups/"+groupID+"/members", aliceToken, map[string]any{"userId": bobID})

	status, proposed := call(t, srv, http.MethodPost, "/transactions", aliceToken, map[string]any{
		"groupId":     groupID,
		"amount":      75,
		"description": "Camping gear",
	})
	if status != http.StatusCreated {
		t.Fatalf("propose: status %d, body %v", status, proposed)
	}
	txnID := proposed["transactionId"].(string)

	t.Run("votes tally over HTTP", func(t *testing.T) {
		status, body := call(t, srv, http.MethodPost, "/transactions/"+txnID+"/vote", aliceToken, map[string]any{
			"vote": "approve",
		})
		if status != http.StatusOK {
			t.Fatalf("vote: status %d, body %v", status, body)
		}
		if body["status"] != "pending" {
			t.Errorf("status after 1/2 approvals = %v", body["status"])
		}

		status, body = call(t, srv, http.MethodPost, "/transactions/"+txnID+"/vote", bobToken, map[string]any{
			"vote": "approve",
		})
		if status != http.StatusOK {
			t.Fatalf("vote: status %d, body %v", status, body)
		}
		if body["status"] != "approved" {
			t.Errorf("status after 2/2 approvals = %v", body["status"])
		}
	})

	t.Run("double vote maps to 400", func(t *testing.T) {
		status, body := call(t, srv, http.MethodPost, "/transactions/"+txnID+"/vote", aliceToken, map[string]any{
			"vote": "reject",
		})
		if status != http.StatusBadRequest {
			t.Errorf("status %d, want 400", status)
		}
		if body["code"] != "already_voted" {
			t.Errorf("code = %v", body["code"])
		}
	})

	t.Run("executing without funds maps to 400", func(t *testing.T) {
		status, body := call(t, srv, http.MethodPost, "/transactions/"+txnID+"/execute", aliceToken, nil)
		if status != http.StatusBadRequest {
			t.Errorf("status %d, want 400, body %v", status, body)
		}
		if body["code"] != "insufficient_funds" {
			t.Errorf("code = %v", body["code"])
		}
	})

	t.Run("group listing and personal history", func(t *testing.T) {
		status, body := call(t, srv, http.MethodGet, "/transactions?groupId="+groupID, bobToken, nil)
		if status != http.StatusOK {
			t.Fatalf("list: status %d", status)
		}
		if body["count"].(float64) != 1 {
			t.Errorf("count = %v, want 1", body["count"])
		}

		status, body = call(t, srv, http.MethodGet, "/transactions/history/me", aliceToken, nil)
		if status != http.StatusOK {
			t.Fatalf("history: status %d", status)
		}
		if body["count"].(float64) != 1 {
			t.Errorf("history count = %v, want 1", body["count"])
		}
	})
}

func TestInviteEndpoints(t *testing.T) {
	srv := newTestServer(t)
	_, ownerToken := signup(t, srv, "owner", "owner@example.com")
	_, friendToken := signup(t, srv, "friend", "friend@example.com")

	_, created := call(t, srv, http.MethodPost, "/groups", ownerToken, map[string]any{
		"name": "Invite Group",
	})
	groupID := created["groupId"].(string)

	status, inv := call(t, srv, http.MethodPost, "/invites", ownerToken, map[string]any{
		"groupId": groupID,
		"email":   "friend@example.com",
	})
	if status != http.StatusCreated {
		t.Fatalf("create invite: status %d, body %v", status, inv)
	}
	inviteID := inv["inviteId"].(string)

	t.Run("recipient sees it pending", func(t *testing.T) {
		status, body := call(t, srv, http.MethodGet, "/invites", friendToken, nil)
		if status != http.StatusOK {
			t.Fatalf("status %d", status)
		}
		if body["count"].(float64) != 1 {
			t.Errorf("count = %v, want 1", body["count"])
		}
	})

	t.Run("accept joins the group", func(t *testing.T) {
		status, body := call(t, srv, http.MethodPost, "/invites/"+inviteID+"/accept", friendToken, nil)
		if status != http.StatusOK {
			t.Fatalf("accept: status %d, body %v", status, body)
		}

		status, groups := call(t, srv, http.MethodGet, "/groups", friendToken, nil)
		if status != http.StatusOK {
			t.Fatalf("list groups: status %d", status)
		}
		if len(groups["groups"].([]any)) != 1 {
			t.Errorf("friend belongs to %d groups, want 1", len(groups["groups"].([]any)))
		}
	})

	t.Run("second accept maps to 400", func(t *testing.T) {
		status, body := call(t, srv, http.MethodPost, "/invites/"+inviteID+"/accept", friendToken, nil)
		if status != http.StatusBadRequest {
			t.Errorf("status %d, want 400", status)
		}
		if body["code"] != "invalid_state" {
			t.Errorf("code = %v", body["code"])
		}
	})
}

func TestStockEndpoints(t *testing.T) {
	srv := newTestServer(t)
	_, token := signup(t, srv, "trader", "trader@example.com")

	t.Run("catalog lists categories", func(t *testing.T) {
		status, body := call(t, srv, http.MethodGet, "/stocks/lists", token, nil)
		if status != http.StatusOK {
			t.Fatalf("status %d", status)
		}
		lists := body["lists"].(map[string]any)
		if len(lists["blue_chips"].([]any)) == 0 {
			t.Error("blue_chips empty")
		}
	})

	t.Run("quote is deterministic and case-normalized", func(t *testing.T) {
		status, a := call(t, srv, http.MethodGet, "/stocks/quote/aapl", token, nil)
		if status != http.StatusOK {
			t.Fatalf("status %d", status)
		}
		_, b := call(t, srv, http.MethodGet, "/stocks/quote/AAPL", token, nil)
		if a["price"] != b["price"] {
			t.Errorf("prices differ: %v vs %v", a["price"], b["price"])
		}
	})

	t.Run("trade creates an investment proposal", func(t *testing.T) {
		_, created := call(t, srv, http.MethodPost, "/groups", token, map[string]any{
			"name": "Stock Club",
		})
		groupID := created["groupId"].(string)

		status, body := call(t, srv, http.MethodPost, "/stocks/trade", token, map[string]any{
			"groupId":  groupID,
			"symbol":   "AAPL",
			"quantity": 2,
		})
		if status != http.StatusCreated {
			t.Fatalf("trade: status %d, body %v", status, body)
		}
		if body["status"] != "pending" {
			t.Errorf("status = %v, want pending", body["status"])
		}
		trade := body["trade"].(map[string]any)
		if trade["symbol"] != "AAPL" || trade["side"] != "buy" {
			t.Errorf("trade = %v", trade)
		}
	})
}
