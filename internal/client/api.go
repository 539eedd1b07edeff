package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/beyondthefold777/Barber-World-sub001/internal/models"
)

// Client-side error taxonomy. ErrTransient is the only class a user may
// retry; the retry is always an explicit new attempt, never automatic.
var (
	ErrValidation   = errors.New("validation error")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrTransient    = errors.New("transient error")
)

// API is the device-side REST client for the messaging endpoints.
type API struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewAPI(baseURL string, token string) *API {
	return &API{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

type sendMessagePayload struct {
	RecipientID int64  `json:"recipient_id"`
	Text        string `json:"text"`
}

type sendMessageResponse struct {
	Message        models.Message `json:"message"`
	ConversationID int64          `json:"conversation_id"`
}

func (a *API) SendMessage(ctx context.Context, recipientID int64, text string) (*models.Message, int64, error) {
	var out sendMessageResponse
	err := a.do(ctx, http.MethodPost, "/api/v1/messages",
		sendMessagePayload{RecipientID: recipientID, Text: text},
		http.StatusCreated, &out)
	if err != nil {
		return nil, 0, err
	}
	return &out.Message, out.ConversationID, nil
}

func (a *API) Thread(ctx context.Context, otherUserID int64) ([]models.ThreadMessage, error) {
	var out struct {
		Messages []models.ThreadMessage `json:"messages"`
	}
	path := fmt.Sprintf("/api/v1/messages/thread/%d", otherUserID)
	if err := a.do(ctx, http.MethodGet, path, nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

func (a *API) MarkRead(ctx context.Context, conversationID int64) error {
	path := fmt.Sprintf("/api/v1/messages/read/%d", conversationID)
	return a.do(ctx, http.MethodPut, path, nil, http.StatusOK, nil)
}

func (a *API) Conversations(ctx context.Context) ([]models.ConversationSummary, error) {
	var out struct {
		Conversations []models.ConversationSummary `json:"conversations"`
	}
	if err := a.do(ctx, http.MethodGet, "/api/v1/conversations", nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return out.Conversations, nil
}

func (a *API) UnreadCount(ctx context.Context) (int, error) {
	var out struct {
		Count int `json:"count"`
	}
	if err := a.do(ctx, http.MethodGet, "/api/v1/messages/unread-count", nil, http.StatusOK, &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

// Ping is the explicit "test connectivity" action surfaced to the user after
// a transient failure.
func (a *API) Ping(ctx context.Context) error {
	return a.do(ctx, http.MethodGet, "/health", nil, http.StatusOK, nil)
}

func (a *API) do(ctx context.Context, method, path string, payload any, wantStatus int, out any) error {
	var body *bytes.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("%w: encode request: %v", ErrValidation, err)
		}
		body = bytes.NewReader(encoded)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrTransient, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		return statusError(resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrTransient, err)
	}
	return nil
}

func statusError(status int) error {
	switch status {
	case http.StatusBadRequest:
		return ErrValidation
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	default:
		return fmt.Errorf("%w: unexpected status %d", ErrTransient, status)
	}
}
