package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"
)

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()

	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeToken(t *testing.T, resp *http.Response) string {
	t.Helper()

	var body AuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode auth response: %v", err)
	}
	if body.Token == "" {
		t.Fatal("empty token in auth response")
	}
	return body.Token
}

func TestHealthEndpoint(t *testing.T) {
	ts, _ := startTestServer(t)

	resp, err := ts.Client().Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestRegisterLoginFlow(t *testing.T) {
	ts, authService := startTestServer(t)

	resp := postJSON(t, ts.URL+"/api/register", RegisterRequest{Username: "alice", Password: "password123"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d", resp.StatusCode)
	}
	token := decodeToken(t, resp)
	if _, err := authService.VerifyToken(token); err != nil {
		t.Fatalf("register token does not verify: %v", err)
	}

	resp = postJSON(t, ts.URL+"/api/register", RegisterRequest{Username: "alice", Password: "password456"})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate register: expected 409, got %d", resp.StatusCode)
	}

	resp = postJSON(t, ts.URL+"/api/login", LoginRequest{Username: "alice", Password: "password123"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: expected 200, got %d", resp.StatusCode)
	}
	decodeToken(t, resp)

	resp = postJSON(t, ts.URL+"/api/login", LoginRequest{Username: "alice", Password: "wrong"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad login: expected 401, got %d", resp.StatusCode)
	}
}

func TestRegisterValidation(t *testing.T) {
	ts, _ := startTestServer(t)

	resp := postJSON(t, ts.URL+"/api/register", RegisterRequest{Username: "ab", Password: "password123"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("short username: expected 400, got %d", resp.StatusCode)
	}

	resp = postJSON(t, ts.URL+"/api/register", RegisterRequest{Username: "alice", Password: "short"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("short password: expected 400, got %d", resp.StatusCode)
	}
}

func TestGuestLogin(t *testing.T) {
	ts, authService := startTestServer(t)

	resp := postJSON(t, ts.URL+"/api/guest", struct{}{})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("guest: expected 201, got %d", resp.StatusCode)
	}
	token := decodeToken(t, resp)

	identity, err := authService.VerifyToken(token)
	if err != nil {
		t.Fatalf("guest token does not verify: %v", err)
	}
	if !identity.IsGuest {
		t.Fatalf("expected guest identity, got %+v", identity)
	}
}
