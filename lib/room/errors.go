package room

import "errors"

var (
	// ErrRoomClosed means the room's controller has been shut down; the code
	// must be resolved again to get a live room.
	ErrRoomClosed = errors.New("room is closed")
)
