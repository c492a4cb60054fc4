package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/tgienger/taskboard/internal/remote"
)

const (
	dialTimeout = 10 * time.Second
	eventBuffer = 16
)

// Client subscribes to a feed server. It implements remote.Subscriber.
type Client struct {
	base   *url.URL
	logger *slog.Logger
}

// NewClient returns a client for the feed server at rawURL, which may
// use the ws, wss, http or https scheme.
func NewClient(rawURL string, logger *slog.Logger) (*Client, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid realtime url %q: %w", rawURL, err)
	}
	switch u.Scheme {
	case "ws", "wss", "http", "https":
	default:
		return nil, fmt.Errorf("invalid realtime url %q: unsupported scheme %q", rawURL, u.Scheme)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{base: u, logger: logger.With("component", "realtime-client")}, nil
}

// FeedURL returns the endpoint for table
func (c *Client) FeedURL(table remote.Table) string {
	u := *c.base
	u.Path = strings.TrimSuffix(u.Path, "/") + FeedPath
	u.RawQuery = url.Values{"table": {string(table)}}.Encode()
	return u.String()
}

// Subscribe dials the feed for table. The subscription ends when ctx is
// cancelled, Unsubscribe is called or the server goes away.
func (c *Client) Subscribe(ctx context.Context, table remote.Table) (remote.Subscription, error) {
	if !table.Valid() {
		return nil, remote.Errorf(remote.CodeInvalid, "unknown table %q", table)
	}

	dialCtx, cancelDial := context.WithTimeout(ctx, dialTimeout)
	defer cancelDial()

	conn, _, err := websocket.Dial(dialCtx, c.FeedURL(table), nil)
	if err != nil {
		return nil, &remote.Error{
			Code:    remote.CodeUnavailable,
			Message: fmt.Sprintf("failed to connect to %s feed", table),
			Err:     err,
		}
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := remote.NewChanSubscription(eventBuffer, func() {
		cancel()
		_ = conn.Close(websocket.StatusNormalClosure, "")
	})

	go c.readLoop(subCtx, conn, table, sub)
	return sub, nil
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn, table remote.Table, sub *remote.ChanSubscription) {
	defer sub.Unsubscribe()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() == nil {
				c.logger.Warn("feed connection lost", "table", table, "error", err)
			}
			return
		}

		var ev remote.ChangeEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			sub.Fail(fmt.Errorf("malformed change event: %w", err))
			continue
		}
		if ev.Table == "" {
			ev.Table = table
		}
		sub.Send(ev)
	}
}
