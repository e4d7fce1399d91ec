package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hupe1980/qsync/cache"
	"github.com/hupe1980/qsync/keyset"
)

// ChangeKind identifies the remote operation behind a change event.
type ChangeKind string

const (
	// ChangeInsert is a remote row creation.
	ChangeInsert ChangeKind = "insert"
	// ChangeUpdate is a remote row rewrite.
	ChangeUpdate ChangeKind = "update"
	// ChangeDelete is a remote row removal.
	ChangeDelete ChangeKind = "delete"
)

// Change is one row-level change reported by the backend's realtime
// stream.
type Change struct {
	Kind  ChangeKind `json:"kind"`
	Table string     `json:"table"`
	ID    string     `json:"id"`
}

// FeedOptions configure the realtime feed.
type FeedOptions struct {
	// Dialer is the websocket dialer. Defaults to
	// websocket.DefaultDialer.
	Dialer *websocket.Dialer

	// Session supplies the bearer token sent as the first message after
	// connecting. If nil, the feed connects anonymously.
	Session *Session

	// ReconnectDelay is the wait between reconnect attempts. Defaults to
	// 5 seconds.
	ReconnectDelay time.Duration

	// OnError is called for connection and decode failures. The feed
	// reconnects regardless. If nil, failures are dropped.
	OnError func(err error)
}

// Feed consumes the backend's realtime change stream over a websocket and
// dispatches Change events. Changes made by other clients reach this
// client only through the feed, so the usual reaction is a prefix
// invalidation (see Invalidator).
type Feed struct {
	url  string
	opts FeedOptions
}

// NewFeed creates a feed for the websocket endpoint at url.
func NewFeed(url string, optFns ...func(o *FeedOptions)) *Feed {
	opts := FeedOptions{
		Dialer:         websocket.DefaultDialer,
		ReconnectDelay: 5 * time.Second,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = 5 * time.Second
	}
	return &Feed{url: url, opts: opts}
}

// Run connects and dispatches changes to handler until ctx is canceled.
// Connection loss triggers reconnection after the configured delay.
func (f *Feed) Run(ctx context.Context, handler func(Change)) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := f.readLoop(ctx, handler); err != nil && f.opts.OnError != nil && ctx.Err() == nil {
			f.opts.OnError(err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(f.opts.ReconnectDelay):
		}
	}
}

func (f *Feed) readLoop(ctx context.Context, handler func(Change)) error {
	conn, _, err := f.opts.Dialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("rest: dial feed: %w", err)
	}
	defer conn.Close()

	// Close the connection when ctx is canceled so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	if f.opts.Session != nil {
		token, err := f.opts.Session.Token(ctx)
		if err != nil {
			return err
		}
		auth, _ := json.Marshal(map[string]string{"token": token})
		if err := conn.WriteMessage(websocket.TextMessage, auth); err != nil {
			return fmt.Errorf("rest: feed auth: %w", err)
		}
	}

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("rest: read feed: %w", err)
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var ch Change
		if err := json.Unmarshal(data, &ch); err != nil {
			if f.opts.OnError != nil {
				f.opts.OnError(fmt.Errorf("rest: decode change: %w", err))
			}
			continue
		}
		handler(ch)
	}
}

// Invalidator maps feed changes to cache prefix invalidations. mapper
// returns the key prefixes affected by a change; returning none ignores
// the change.
func Invalidator(store cache.Store, mapper func(Change) []keyset.Key) func(Change) {
	return func(ch Change) {
		for _, prefix := range mapper(ch) {
			store.Invalidate(prefix)
		}
	}
}
