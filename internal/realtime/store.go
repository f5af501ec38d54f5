package realtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fanforge/forum-service/internal/domain"
	"github.com/fanforge/forum-service/internal/wire"
)

// StoreClient performs the durable reads and writes against the forum
// service, independent of the realtime path. A successful create is echoed
// back through the change feed; callers must not assume synchronous
// visibility in their local view.
type StoreClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewStoreClient(baseURL, token string, client *http.Client) *StoreClient {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &StoreClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    client,
	}
}

type postMessageRequest struct {
	Content  string   `json:"content"`
	ParentID *string  `json:"parent_id,omitempty"`
	Media    []string `json:"media,omitempty"`
}

type messagesResponse struct {
	Items      []wire.Message `json:"items"`
	NextCursor string         `json:"next_cursor"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// CreateMessage performs the durable write. The returned row is the server's
// echo of the insert, not a view mutation.
func (c *StoreClient) CreateMessage(ctx context.Context, forumID, content string, parentID *string, media []string) (*domain.Message, error) {
	var out wire.Message
	err := c.do(ctx, http.MethodPost, "/forums/"+forumID+"/messages",
		postMessageRequest{Content: content, ParentID: parentID, Media: media}, &out)
	if err != nil {
		return nil, err
	}
	m := out.ToDomain()
	return &m, nil
}

// ListMessages fetches one newest-first history page.
func (c *StoreClient) ListMessages(ctx context.Context, forumID string, limit int, cursor string) ([]domain.Message, string, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	path := "/forums/" + forumID + "/messages"
	if enc := q.Encode(); enc != "" {
		path += "?" + enc
	}

	var out messagesResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, "", err
	}
	msgs := make([]domain.Message, 0, len(out.Items))
	for _, it := range out.Items {
		msgs = append(msgs, it.ToDomain())
	}
	return msgs, out.NextCursor, nil
}

// ToggleReaction flips the caller's reaction server-side and returns the row
// with the authoritative mapping. No optimistic local application: the view
// reconciles from this payload or from the subsequent update event.
func (c *StoreClient) ToggleReaction(ctx context.Context, forumID, messageID, emoji string) (*domain.Message, error) {
	var out wire.Message
	err := c.do(ctx, http.MethodPost, "/forums/"+forumID+"/messages/"+messageID+"/reactions",
		map[string]string{"emoji": emoji}, &out)
	if err != nil {
		return nil, err
	}
	m := out.ToDomain()
	return &m, nil
}

// SetPinned flips the pinned flag (community owner only).
func (c *StoreClient) SetPinned(ctx context.Context, forumID, messageID string, pinned bool) (*domain.Message, error) {
	var out wire.Message
	err := c.do(ctx, http.MethodPut, "/forums/"+forumID+"/messages/"+messageID+"/pin",
		map[string]bool{"pinned": pinned}, &out)
	if err != nil {
		return nil, err
	}
	m := out.ToDomain()
	return &m, nil
}

// LookupUser implements UserDirectory over the service's user endpoint.
func (c *StoreClient) LookupUser(ctx context.Context, userID string) (*domain.User, error) {
	var out struct {
		ID          string  `json:"id"`
		DisplayName string  `json:"display_name"`
		AvatarURL   *string `json:"avatar_url"`
	}
	if err := c.do(ctx, http.MethodGet, "/users/"+userID, nil, &out); err != nil {
		return nil, err
	}
	return &domain.User{ID: out.ID, DisplayName: out.DisplayName, AvatarURL: out.AvatarURL}, nil
}

func (c *StoreClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.asError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// asError maps the service's error envelope onto domain sentinels so callers
// branch with errors.Is, not status codes.
func (c *StoreClient) asError(resp *http.Response) error {
	var er errorResponse
	_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&er)

	switch resp.StatusCode {
	case http.StatusForbidden:
		return domain.ErrPermissionDenied
	case http.StatusNotFound:
		switch er.Error {
		case "message_not_found":
			return domain.ErrMessageNotFound
		case "user_not_found":
			return domain.ErrUserNotFound
		case "community_not_found":
			return domain.ErrCommunityNotFound
		default:
			return domain.ErrForumNotFound
		}
	default:
		if er.Error != "" {
			return fmt.Errorf("server: %s (status %d)", er.Error, resp.StatusCode)
		}
		return fmt.Errorf("server: status %d", resp.StatusCode)
	}
}
