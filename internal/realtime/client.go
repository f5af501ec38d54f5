// Package realtime is the client core of the community messaging layer: it
// opens one channel per observed forum, merges the initial history fetch with
// live change-feed events into a de-duplicated message tree, tracks presence,
// and relays typing signals.
package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/fanforge/forum-service/internal/domain"
)

// Options configure a Client. BaseURL, Token and UserID are required.
type Options struct {
	BaseURL string // forum service HTTP root, e.g. http://localhost:8080
	WSURL   string // channel endpoint root; derived from BaseURL when empty
	Token   string // bearer access token
	UserID  string // identity announced on presence/typing

	HTTPClient   *http.Client
	Logger       *slog.Logger
	PageLimit    int           // initial fetch size, default 50
	OrphanBuffer int           // reply buffer for out-of-order inserts
	LookupTTL    time.Duration // user metadata cache TTL
}

// Client is the one-per-process entry point. It is an injected dependency,
// not a package global: everything that opens channels receives a *Client.
// At most one channel per forum id is open at a time.
type Client struct {
	opts  Options
	log   *slog.Logger
	store *StoreClient
	users *cachedDirectory

	mu       sync.Mutex
	channels map[string]*Channel
}

func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("realtime: BaseURL is required")
	}
	if opts.Token == "" {
		return nil, fmt.Errorf("realtime: Token is required")
	}
	if opts.UserID == "" {
		return nil, fmt.Errorf("realtime: UserID is required")
	}
	if opts.PageLimit <= 0 {
		opts.PageLimit = 50
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	store := NewStoreClient(opts.BaseURL, opts.Token, opts.HTTPClient)
	return &Client{
		opts:     opts,
		log:      opts.Logger.With("component", "realtime"),
		store:    store,
		users:    newCachedDirectory(directoryFunc(store.LookupUser), opts.LookupTTL),
		channels: make(map[string]*Channel),
	}, nil
}

// Store exposes the durable read/write path directly, for callers that need
// it outside any open channel (e.g. posting without observing).
func (c *Client) Store() *StoreClient {
	return c.store
}

// Open subscribes to a forum and returns its channel after the socket is
// attached and the first history page is merged. A second Open for the same
// forum while a channel is live returns ErrAlreadyOpen; close the old view
// first; duplicate subscriptions compound event delivery.
func (c *Client) Open(ctx context.Context, forumID string, h Handlers) (*Channel, error) {
	if forumID == "" {
		return nil, fmt.Errorf("realtime: forum id is required")
	}

	c.mu.Lock()
	if _, exists := c.channels[forumID]; exists {
		c.mu.Unlock()
		return nil, ErrAlreadyOpen
	}
	ch := newChannel(c, forumID, h)
	c.channels[forumID] = ch
	c.mu.Unlock()

	if err := ch.open(ctx); err != nil {
		c.release(forumID, ch)
		return nil, fmt.Errorf("open forum %s: %w", forumID, err)
	}
	c.log.Info("channel opened", "forum", forumID)
	return ch, nil
}

// release frees the forum slot iff it is still held by ch. Idempotent, so
// Close and failed Opens may both call it.
func (c *Client) release(forumID string, ch *Channel) {
	c.mu.Lock()
	if cur, ok := c.channels[forumID]; ok && cur == ch {
		delete(c.channels, forumID)
	}
	c.mu.Unlock()
}

// Close tears down every open channel.
func (c *Client) Close() {
	c.mu.Lock()
	open := make([]*Channel, 0, len(c.channels))
	for _, ch := range c.channels {
		open = append(open, ch)
	}
	c.mu.Unlock()

	for _, ch := range open {
		_ = ch.Close()
	}
}

func (c *Client) wsURL(forumID string) string {
	root := c.opts.WSURL
	if root == "" {
		root = c.opts.BaseURL
		if strings.HasPrefix(root, "https://") {
			root = "wss://" + strings.TrimPrefix(root, "https://")
		} else {
			root = "ws://" + strings.TrimPrefix(root, "http://")
		}
	}
	root = strings.TrimRight(root, "/")
	return root + "/ws/forums/" + forumID + "?access_token=" + url.QueryEscape(c.opts.Token)
}

// directoryFunc adapts a lookup function to UserDirectory.
type directoryFunc func(ctx context.Context, userID string) (*domain.User, error)

func (f directoryFunc) Lookup(ctx context.Context, userID string) (*domain.User, error) {
	return f(ctx, userID)
}
