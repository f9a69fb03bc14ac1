package sdkclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"
)

func portFromServer(t *testing.T, srv *httptest.Server) int {
	t.Helper()
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatal(err)
	}
	return port
}

func TestWaitForServer_SucceedsImmediately(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client, err := WaitForServer(context.Background(), portFromServer(t, srv), WaitForServerOptions{TimeoutMs: 1000})
	if err != nil {
		t.Fatalf("WaitForServer: %v", err)
	}
	if client == nil {
		t.Fatal("expected non-nil client")
	}
}

func TestWaitForServer_RetriesThenSucceeds(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	_, err := WaitForServer(context.Background(), portFromServer(t, srv), WaitForServerOptions{TimeoutMs: 5000})
	if err != nil {
		t.Fatalf("WaitForServer: %v", err)
	}
	if calls < 3 {
		t.Errorf("expected at least 3 probe attempts, got %d", calls)
	}
}

func TestWaitForServer_DeadlineExceeded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := WaitForServer(context.Background(), portFromServer(t, srv), WaitForServerOptions{TimeoutMs: 300})
	if err != ErrServerNotReady {
		t.Fatalf("WaitForServer() error = %v, want ErrServerNotReady", err)
	}
}

func TestClient_SendsBasicAuthWhenPasswordSet(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := CreateJobClient(portFromServer(t, srv), "hunter2")
	if err := client.SendPrompt(context.Background(), "sess-1", "hello", "", ""); err != nil {
		t.Fatalf("SendPrompt: %v", err)
	}

	if gotAuth == "" {
		t.Fatal("expected Authorization header to be set")
	}
	if want := "Basic b3BlbmNvZGU6aHVudGVyMg=="; gotAuth != want {
		t.Errorf("Authorization = %q, want %q", gotAuth, want)
	}
}

func TestClient_SendPromptFailureIsWrapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := CreateJobClient(portFromServer(t, srv), "")
	err := client.SendPrompt(context.Background(), "sess-1", "hello", "", "")
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestClient_CreateSessionAndPrompt(t *testing.T) {
	var promptedSessionID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/session.create":
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]string{"id": "sess-42"})
		case "/session.promptAsync":
			var body promptRequest
			_ = json.NewDecoder(r.Body).Decode(&body)
			promptedSessionID = body.SessionID
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := CreateJobClient(portFromServer(t, srv), "")
	id, err := client.CreateSessionAndPrompt(context.Background(), "hello", "", "")
	if err != nil {
		t.Fatalf("CreateSessionAndPrompt: %v", err)
	}
	if id != "sess-42" {
		t.Errorf("id = %q, want sess-42", id)
	}
	if promptedSessionID != "sess-42" {
		t.Errorf("prompted session = %q, want sess-42", promptedSessionID)
	}
}

func TestWaitForServer_RespectsOuterContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := WaitForServer(ctx, portFromServer(t, srv), WaitForServerOptions{TimeoutMs: 5000})
	if err == nil {
		t.Fatal("expected error when outer context is canceled")
	}
}
