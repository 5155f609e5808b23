package room

import (
	"context"
	"time"

	"github.com/samber/lo"

	"github.com/onkernel/browser-rooms/server/lib/logger"
)

// Reaper periodically closes and evicts rooms that have sat empty past the
// idle threshold. It is the only steady-state code path that destroys a
// room's controller.
type Reaper struct {
	registry  *Registry
	interval  time.Duration
	threshold time.Duration
}

func NewReaper(registry *Registry, interval, threshold time.Duration) *Reaper {
	return &Reaper{
		registry:  registry,
		interval:  interval,
		threshold: threshold,
	}
}

// Run sweeps on a fixed period until ctx is cancelled.
func (rp *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(rp.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rp.sweep(ctx)
		}
	}
}

func (rp *Reaper) sweep(ctx context.Context) {
	log := logger.FromContext(ctx)
	now := time.Now()

	expired := lo.Filter(rp.registry.Rooms(), func(room *Room, _ int) bool {
		return room.ClientCount() == 0 && room.Idle(now) > rp.threshold
	})

	for _, room := range expired {
		// Re-check under the room's lock: a viewer may have attached since the
		// snapshot, and once closeIfIdle wins no further attach can land.
		if !room.closeIfIdle(now, rp.threshold) {
			continue
		}
		// Best-effort close so one stuck room never blocks reaping the rest.
		if err := room.CloseController(ctx); err != nil {
			log.Warn("failed to close idle room", "code", room.Code(), "err", err)
		}
		rp.registry.evict(room.Code(), room)
		log.Info("evicted idle room", "code", room.Code(), "idle", room.Idle(now).Round(time.Second))
	}
}
