package room

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nrednav/cuid2"
	"golang.org/x/sync/singleflight"

	"github.com/onkernel/browser-rooms/server/lib/browser"
	"github.com/onkernel/browser-rooms/server/lib/logger"
)

const roomCodeLength = 8

// Registry maps room codes to live rooms. Creation is lazy: the first
// connection to an unknown code launches the browser page for it.
type Registry struct {
	launcher browser.Launcher
	opts     browser.Options
	relay    *DownloadRelay

	mu    sync.Mutex
	rooms map[string]*Room

	createGroup singleflight.Group
	newCode     func() string
}

// NewRegistry builds a registry. relay may be nil when download relaying is
// disabled (tests mostly run without it).
func NewRegistry(launcher browser.Launcher, opts browser.Options, relay *DownloadRelay) (*Registry, error) {
	if launcher == nil {
		return nil, fmt.Errorf("launcher cannot be nil")
	}
	gen, err := cuid2.Init(cuid2.WithLength(roomCodeLength))
	if err != nil {
		return nil, fmt.Errorf("failed to init code generator: %w", err)
	}
	return &Registry{
		launcher: launcher,
		opts:     opts,
		relay:    relay,
		rooms:    make(map[string]*Room),
		newCode:  gen,
	}, nil
}

// Resolve returns the room for code, creating it when absent. An empty code
// gets a freshly generated one; generated reports whether that happened so
// the caller can tell the viewer its new code. Creation is single-flight per
// code: concurrent resolves of the same unknown code launch exactly one
// browser. On launch failure nothing is registered.
func (r *Registry) Resolve(ctx context.Context, code string) (room *Room, generated bool, err error) {
	if code == "" {
		code = r.generateCode()
		generated = true
	}
	if room, ok := r.Get(code); ok && !room.Closed() {
		return room, generated, nil
	}

	v, err, _ := r.createGroup.Do(code, func() (any, error) {
		// A concurrent create may have won the race before we entered the group.
		if room, ok := r.Get(code); ok {
			if !room.Closed() {
				return room, nil
			}
			// The reaper closed it but has not evicted it yet; drop the stale
			// entry and build a fresh room under the same code.
			r.evict(code, room)
		}
		return r.create(ctx, code)
	})
	if err != nil {
		return nil, generated, err
	}
	return v.(*Room), generated, nil
}

func (r *Registry) create(ctx context.Context, code string) (*Room, error) {
	log := logger.FromContext(ctx)

	// The launch serves every waiter coalesced on this code, and the room it
	// produces outlives the request. A viewer disconnecting mid-launch must
	// not cancel either, so detach from the caller's context here.
	ctx = context.WithoutCancel(ctx)

	ctrl, err := r.launcher.Launch(ctx, r.opts)
	if err != nil {
		return nil, fmt.Errorf("failed to launch room %q: %w", code, err)
	}

	room := newRoom(code, ctrl)
	if r.relay != nil {
		r.relay.Subscribe(ctx, room)
	}

	r.mu.Lock()
	r.rooms[code] = room
	r.mu.Unlock()

	log.Info("created room", "code", code)
	return room, nil
}

func (r *Registry) generateCode() string {
	for {
		code := r.newCode()
		if _, ok := r.Get(code); !ok {
			return code
		}
	}
}

// Get returns the room for code if it exists.
func (r *Registry) Get(code string) (*Room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[code]
	return room, ok
}

// Rooms returns a snapshot of all registered rooms.
func (r *Registry) Rooms() []*Room {
	r.mu.Lock()
	defer r.mu.Unlock()
	rooms := make([]*Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		rooms = append(rooms, room)
	}
	return rooms
}

// Evict removes the room for code from the registry. The caller must have
// closed its controller already. No-op when absent.
func (r *Registry) Evict(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rooms, code)
}

// evict removes the entry for code only if it still maps to room, so a stale
// eviction can never take out a replacement created under the same code.
func (r *Registry) evict(code string, room *Room) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rooms[code] == room {
		delete(r.rooms, code)
	}
}

// CloseAll closes every room's controller and empties the registry. Used on
// process shutdown; close errors are collected but do not stop the sweep.
func (r *Registry) CloseAll(ctx context.Context) error {
	log := logger.FromContext(ctx)

	var errs []error
	for _, room := range r.Rooms() {
		if err := room.CloseController(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to close room %q: %w", room.Code(), err))
			log.Error("failed to close room during shutdown", "code", room.Code(), "err", err)
		}
		r.evict(room.Code(), room)
	}
	return errors.Join(errs...)
}
