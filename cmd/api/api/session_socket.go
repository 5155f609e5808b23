package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/onkernel/browser-rooms/server/lib/logger"
	"github.com/onkernel/browser-rooms/server/lib/room"
)

const writeTimeout = 2 * time.Second

// HandleSessionSocket upgrades a viewer connection, places it in its room,
// and runs the frame stream plus the inbound input pump until the socket
// closes.
func (s *ApiService) HandleSessionSocket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		log.Error("failed to accept session websocket", "err", err)
		return
	}

	code := r.URL.Query().Get("room")
	rm, generated, err := s.registry.Resolve(ctx, code)
	if err != nil {
		log.Error("failed to resolve room", "code", code, "err", err)
		_ = conn.Close(websocket.StatusInternalError, "room launch failed")
		return
	}

	client := &wsClient{id: uuid.New().String(), conn: conn}
	log = log.With("room", rm.Code(), "client", client.ID())
	ctx = logger.AddToContext(ctx, log)

	if generated {
		client.sendJSON(ctx, roomMessage{Type: "room", Room: rm.Code()})
	}
	client.sendJSON(ctx, statusMessage{Type: "status", Text: "connected"})

	if err := rm.Attach(client); err != nil {
		// Lost a race with the reaper between resolve and attach. The code no
		// longer maps to a live room, so resolve it again; the registry builds
		// a fresh room under the same code.
		fresh, _, rerr := s.registry.Resolve(ctx, rm.Code())
		if rerr == nil {
			rerr = fresh.Attach(client)
		}
		if rerr != nil {
			log.Error("failed to join room", "err", rerr)
			_ = conn.Close(websocket.StatusInternalError, "room unavailable")
			return
		}
		rm = fresh
	}
	log.Info("viewer attached", "viewers", rm.ClientCount())
	defer func() {
		rm.Detach(client)
		log.Info("viewer detached", "viewers", rm.ClientCount())
	}()

	streamCtx, cancelStream := context.WithCancel(ctx)
	defer cancelStream()
	go s.streamFrames(streamCtx, rm, client)

	// Inbound pump. Any read error means the peer is gone.
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			_ = conn.Close(websocket.StatusNormalClosure, "")
			return
		}
		// Activity counts no matter what the message turns out to be.
		rm.Touch()

		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		s.applyInput(ctx, rm, client, msg)
	}
}

// streamFrames pushes frames to one viewer on a fixed period. Captures run
// inline on this goroutine, so a slow capture never stacks up behind the
// ticker; intervening ticks are simply dropped.
func (s *ApiService) streamFrames(ctx context.Context, rm *room.Room, client *wsClient) {
	log := logger.FromContext(ctx)

	ready := false
	s.captureAndSend(ctx, rm, client, &ready, log)

	ticker := time.NewTicker(s.framePeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.captureAndSend(ctx, rm, client, &ready, log)
		}
	}
}

func (s *ApiService) captureAndSend(ctx context.Context, rm *room.Room, client *wsClient, ready *bool, log *slog.Logger) {
	captureCtx, cancel := context.WithTimeout(ctx, s.captureTimeout)
	defer cancel()

	img, err := rm.Controller().Screenshot(captureCtx)
	if err != nil {
		// Transient: navigation races and timeouts are expected. Retry next tick.
		log.Debug("frame capture skipped", "err", err)
		return
	}

	if !*ready {
		*ready = true
		client.sendJSON(ctx, readyMessage{Type: "ready"})
	}

	client.sendJSON(ctx, screenshotMessage{
		Type:  "screenshot",
		Data:  base64.StdEncoding.EncodeToString(img),
		Frame: rm.NextFrame(),
	})
}

// applyInput maps one viewer message onto the room's controller. Controller
// errors are logged and swallowed: input failures are expected under page
// navigation and must never tear the session down.
func (s *ApiService) applyInput(ctx context.Context, rm *room.Room, client *wsClient, msg inboundMessage) {
	log := logger.FromContext(ctx)
	ctrl := rm.Controller()

	var err error
	switch msg.Type {
	case "mouse":
		switch msg.Action {
		case "move":
			err = ctrl.MouseMove(ctx, msg.X, msg.Y)
		case "down":
			err = ctrl.MouseDown(ctx, msg.X, msg.Y, msg.Button)
		case "up":
			err = ctrl.MouseUp(ctx, msg.X, msg.Y, msg.Button)
		}
	case "keyboard":
		switch msg.Action {
		case "down":
			err = ctrl.KeyDown(ctx, msg.Key)
		case "up":
			err = ctrl.KeyUp(ctx, msg.Key)
		}
	case "scroll":
		err = ctrl.Wheel(ctx, msg.DeltaX, msg.DeltaY)
	case "cursor":
		payload, merr := json.Marshal(cursorMessage{Type: "cursor", ID: msg.ID, X: msg.X, Y: msg.Y})
		if merr == nil {
			rm.BroadcastExcept(ctx, client, payload)
		}
	}

	if err != nil {
		log.Debug("input apply failed", "type", msg.Type, "action", msg.Action, "err", err)
	}
}

// wsClient adapts a coder/websocket connection to the room.Client interface.
type wsClient struct {
	id   string
	conn *websocket.Conn
}

func (c *wsClient) ID() string { return c.id }

func (c *wsClient) Send(ctx context.Context, data []byte) error {
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return c.conn.Write(writeCtx, websocket.MessageText, data)
}

// sendJSON marshals and sends v, dropping it on failure. Delivery problems
// surface through the read pump, which owns connection teardown.
func (c *wsClient) sendJSON(ctx context.Context, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		logger.FromContext(ctx).Error("failed to marshal outbound message", "err", err)
		return
	}
	if err := c.Send(ctx, payload); err != nil {
		logger.FromContext(ctx).Debug("outbound send failed", "err", err)
	}
}
