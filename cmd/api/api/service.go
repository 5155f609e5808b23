package api

import (
	"context"
	"fmt"
	"time"

	"github.com/onkernel/browser-rooms/server/lib/room"
)

// ApiService multiplexes viewers onto shared browser rooms over websockets.
type ApiService struct {
	registry *room.Registry

	framePeriod    time.Duration
	captureTimeout time.Duration
}

func New(registry *room.Registry, framePeriod, captureTimeout time.Duration) (*ApiService, error) {
	switch {
	case registry == nil:
		return nil, fmt.Errorf("registry cannot be nil")
	case framePeriod <= 0:
		return nil, fmt.Errorf("framePeriod must be greater than 0")
	case captureTimeout <= 0:
		return nil, fmt.Errorf("captureTimeout must be greater than 0")
	}

	return &ApiService{
		registry:       registry,
		framePeriod:    framePeriod,
		captureTimeout: captureTimeout,
	}, nil
}

// Shutdown closes every room's browser.
func (s *ApiService) Shutdown(ctx context.Context) error {
	return s.registry.CloseAll(ctx)
}
