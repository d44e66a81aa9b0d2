package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rmacedo/pigeon/internal/store"
)

// Client is the HTTP implementation of Gateway. Responses use a
// {"data": ...} envelope; a 404 maps to absent, not an error.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a gateway client. timeout bounds each request in
// addition to the caller's context.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// FetchConversation retrieves a conversation snapshot with its roster.
func (c *Client) FetchConversation(ctx context.Context, id string) (*ConversationSnapshot, error) {
	var snap ConversationSnapshot
	found, err := c.get(ctx, "/conversations/"+url.PathEscape(id), &snap)
	if err != nil || !found {
		return nil, err
	}
	return &snap, nil
}

// FetchUser retrieves one user profile.
func (c *Client) FetchUser(ctx context.Context, id string) (*User, error) {
	var u User
	found, err := c.get(ctx, "/users/"+url.PathEscape(id), &u)
	if err != nil || !found {
		return nil, err
	}
	return &u, nil
}

// FetchUsers retrieves profiles in bulk.
func (c *Client) FetchUsers(ctx context.Context, ids []string) ([]User, error) {
	var users []User
	if err := c.post(ctx, "/users/fetch", ids, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// SubmitJob delivers one outbox job. A nil error is the remote's ack.
func (c *Client) SubmitJob(ctx context.Context, job *store.OutboxJob) error {
	body := map[string]any{
		"job_id":          job.JobID,
		"action":          job.Action,
		"priority":        job.Priority,
		"payload":         json.RawMessage(job.Payload),
		"conversation_id": job.ConversationID,
		"user_id":         job.UserID,
		"order_id":        job.OrderID,
	}
	return c.post(ctx, "/jobs", body, nil)
}

// CreateGroupConversation asks the remote to create a group and returns
// its snapshot.
func (c *Client) CreateGroupConversation(ctx context.Context, name string, userIDs []string) (*ConversationSnapshot, error) {
	body := map[string]any{"name": name, "category": store.CategoryGroup, "user_ids": userIDs}
	var snap ConversationSnapshot
	if err := c.post(ctx, "/conversations", body, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// LeaveConversation removes the calling account from a group.
func (c *Client) LeaveConversation(ctx context.Context, id string) error {
	return c.post(ctx, "/conversations/"+url.PathEscape(id)+"/exit", nil, nil)
}

type envelope struct {
	Data json.RawMessage `json:"data"`
}

// get performs a GET and decodes the data envelope into out. The second
// return is false when the resource does not exist.
func (c *Client) get(ctx context.Context, path string, out any) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return false, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("GET %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("GET %s: unexpected status %d", path, resp.StatusCode)
	}
	if err := decodeEnvelope(resp.Body, out); err != nil {
		return false, fmt.Errorf("GET %s: %w", path, err)
	}
	return true, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return fmt.Errorf("encode body: %w", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("POST %s: unexpected status %d", path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := decodeEnvelope(resp.Body, out); err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	return nil
}

func decodeEnvelope(r io.Reader, out any) error {
	var env envelope
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	if len(env.Data) == 0 {
		return fmt.Errorf("empty data envelope")
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}
