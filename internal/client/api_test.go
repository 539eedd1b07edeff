package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSendMessageDecodesServerIdentity(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/messages" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer token-123" {
			t.Fatalf("unexpected auth header: %q", got)
		}

		var payload struct {
			RecipientID int64  `json:"recipient_id"`
			Text        string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if payload.RecipientID != 8 || payload.Text != "hello" {
			t.Fatalf("unexpected payload: %+v", payload)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]any{
				"id":              101,
				"conversation_id": 17,
				"sender_id":       42,
				"text":            "hello",
				"created_at":      time.Date(2026, 4, 2, 10, 30, 0, 0, time.UTC),
			},
			"conversation_id": 17,
		})
	}))
	defer server.Close()

	api := NewAPI(server.URL, "token-123")
	message, conversationID, err := api.SendMessage(context.Background(), 8, "hello")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if message.ID != 101 || conversationID != 17 {
		t.Fatalf("unexpected result: %+v %d", message, conversationID)
	}
}

func TestStatusCodeMapping(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusBadRequest, ErrValidation},
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusForbidden, ErrForbidden},
		{http.StatusNotFound, ErrNotFound},
		{http.StatusInternalServerError, ErrTransient},
		{http.StatusBadGateway, ErrTransient},
	}

	for _, tc := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tc.status)
		}))

		api := NewAPI(server.URL, "token")
		_, err := api.UnreadCount(context.Background())
		if !errors.Is(err, tc.want) {
			t.Errorf("status %d: expected %v, got %v", tc.status, tc.want, err)
		}
		server.Close()
	}
}

func TestTransportFailureIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	server.Close() // connection refused from here on

	api := NewAPI(server.URL, "token")
	if err := api.Ping(context.Background()); !errors.Is(err, ErrTransient) {
		t.Fatalf("expected ErrTransient, got %v", err)
	}
}

func TestSessionMarkReadRefreshesBadge(t *testing.T) {
	unread := 7
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/api/v1/messages/read/17":
			unread = 0
			_ = json.NewEncoder(w).Encode(map[string]any{"success": true})
		case r.Method == http.MethodGet && r.URL.Path == "/api/v1/messages/unread-count":
			_ = json.NewEncoder(w).Encode(map[string]any{"count": unread})
		default:
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	}))
	defer server.Close()

	session := NewSession(NewAPI(server.URL, "token"), time.Minute)

	if err := session.MarkRead(context.Background(), 17); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}

	count, fetchedAt := session.Badge().Last()
	if count != 0 {
		t.Fatalf("expected badge 0 after mark-read, got %d", count)
	}
	if fetchedAt.IsZero() {
		t.Fatalf("expected badge refresh timestamp")
	}
}
