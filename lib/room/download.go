package room

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/nrednav/cuid2"

	"github.com/onkernel/browser-rooms/server/lib/browser"
	"github.com/onkernel/browser-rooms/server/lib/logger"
)

// fileMessage carries a completed download to viewers.
type fileMessage struct {
	Type     string `json:"type"`
	Filename string `json:"filename"`
	Data     string `json:"data"`
}

// DownloadRelay persists each page download to a transient path, broadcasts
// it to the room's viewers, and deletes the transient copy afterwards.
type DownloadRelay struct {
	dir    string
	linger time.Duration
}

// NewDownloadRelay stages downloads under dir. linger is how long the
// transient copy is kept after broadcast before deletion.
func NewDownloadRelay(dir string, linger time.Duration) *DownloadRelay {
	return &DownloadRelay{dir: dir, linger: linger}
}

// Subscribe wires the relay to a room's controller. Called once at room
// creation.
func (dr *DownloadRelay) Subscribe(ctx context.Context, r *Room) {
	r.Controller().OnDownload(func(d browser.Download) {
		go dr.relay(ctx, r, d)
	})
}

func (dr *DownloadRelay) relay(ctx context.Context, r *Room, d browser.Download) {
	log := logger.FromContext(ctx).With("room", r.Code(), "filename", d.Filename())

	staging := filepath.Join(dr.dir, cuid2.Generate())
	if err := os.MkdirAll(staging, 0o755); err != nil {
		log.Error("failed to create download staging dir", "err", err)
		return
	}
	dest := filepath.Join(staging, filepath.Base(d.Filename()))

	if err := d.SaveTo(dest); err != nil {
		log.Error("failed to save download", "err", err)
		_ = os.RemoveAll(staging)
		return
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		log.Error("failed to read saved download", "err", err)
		_ = os.RemoveAll(staging)
		return
	}

	payload, err := json.Marshal(fileMessage{
		Type:     "file",
		Filename: d.Filename(),
		Data:     base64.StdEncoding.EncodeToString(data),
	})
	if err != nil {
		log.Error("failed to encode download message", "err", err)
		_ = os.RemoveAll(staging)
		return
	}

	r.Broadcast(ctx, payload)
	log.Info("relayed download", "size", len(data), "clients", r.ClientCount())

	// Deleting immediately can race a save that is still flushing; keep the
	// transient copy around briefly, then remove it regardless of outcome.
	time.AfterFunc(dr.linger, func() {
		_ = os.RemoveAll(staging)
	})
}
