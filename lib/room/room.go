package room

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samber/lo"

	"github.com/onkernel/browser-rooms/server/lib/browser"
	"github.com/onkernel/browser-rooms/server/lib/logger"
)

// Client is one viewer's outbound channel into a room. It mirrors only the
// subset of the websocket connection the room needs so the package stays
// decoupled from the transport.
type Client interface {
	ID() string
	Send(ctx context.Context, data []byte) error
}

// Room is one isolated browsing session: a single browser page shared by any
// number of attached viewers.
type Room struct {
	code       string
	controller browser.Controller

	mu           sync.Mutex
	clients      map[Client]struct{}
	lastActivity time.Time
	closed       bool

	frameSeq  atomic.Int64
	closeOnce sync.Once
	closeErr  error
}

func newRoom(code string, controller browser.Controller) *Room {
	return &Room{
		code:         code,
		controller:   controller,
		clients:      make(map[Client]struct{}),
		lastActivity: time.Now(),
	}
}

func (r *Room) Code() string { return r.code }

func (r *Room) Controller() browser.Controller { return r.controller }

// Attach adds a viewer to the room. Safe to call with an already attached
// client. Returns ErrRoomClosed when the caller lost a race with the reaper;
// the code must then be resolved again.
func (r *Room) Attach(c Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRoomClosed
	}
	r.clients[c] = struct{}{}
	r.lastActivity = time.Now()
	return nil
}

// Detach removes a viewer. When the last viewer leaves, the detach moment
// becomes the start of the idle window; the controller stays open so a fast
// reconnect reuses the live page. Destruction is the reaper's job.
func (r *Room) Detach(c Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, c)
	if len(r.clients) == 0 {
		r.lastActivity = time.Now()
	}
}

// Touch records viewer activity.
func (r *Room) Touch() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastActivity = time.Now()
}

// Idle reports how long the room has gone without activity.
func (r *Room) Idle(now time.Time) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return now.Sub(r.lastActivity)
}

func (r *Room) ClientCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// NextFrame increments and returns the room's frame sequence number.
func (r *Room) NextFrame() int64 {
	return r.frameSeq.Add(1)
}

// Clients returns a snapshot of the attached viewers.
func (r *Room) Clients() []Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	return lo.Keys(r.clients)
}

// Broadcast sends payload to every attached viewer. Send failures are logged
// and do not affect delivery to the remaining viewers.
func (r *Room) Broadcast(ctx context.Context, payload []byte) {
	r.broadcast(ctx, nil, payload)
}

// BroadcastExcept sends payload to every attached viewer other than sender.
func (r *Room) BroadcastExcept(ctx context.Context, sender Client, payload []byte) {
	r.broadcast(ctx, sender, payload)
}

func (r *Room) broadcast(ctx context.Context, skip Client, payload []byte) {
	log := logger.FromContext(ctx)
	for _, c := range r.Clients() {
		if c == skip {
			continue
		}
		if err := c.Send(ctx, payload); err != nil {
			log.Debug("broadcast send failed", "room", r.code, "client", c.ID(), "err", err)
		}
	}
}

// Closed reports whether the room has been shut down.
func (r *Room) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// closeIfIdle atomically marks the room closed when it has no viewers and has
// been idle past threshold. Sharing the mutex with Attach is what keeps the
// reaper from destroying a room a reconnecting viewer just joined.
func (r *Room) closeIfIdle(now time.Time, threshold time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || len(r.clients) > 0 || now.Sub(r.lastActivity) <= threshold {
		return false
	}
	r.closed = true
	return true
}

// CloseController shuts the room's browser page down. Idempotent; only the
// reaper and process shutdown call this. Once called, Attach fails and the
// registry no longer hands the room out.
func (r *Room) CloseController(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.closeOnce.Do(func() {
		r.closeErr = r.controller.Close(ctx)
	})
	return r.closeErr
}
