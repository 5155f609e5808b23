package room

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomAttachDetach(t *testing.T) {
	t.Parallel()
	rm := newRoom("r1", &fakeController{})
	a := &fakeClient{id: "a"}
	b := &fakeClient{id: "b"}

	require.NoError(t, rm.Attach(a))
	require.NoError(t, rm.Attach(a)) // idempotent
	require.NoError(t, rm.Attach(b))
	assert.Equal(t, 2, rm.ClientCount())

	rm.Detach(a)
	assert.Equal(t, 1, rm.ClientCount())
	rm.Detach(a) // already gone
	assert.Equal(t, 1, rm.ClientCount())
}

func TestRoomDetachToEmptyStartsIdleWindow(t *testing.T) {
	t.Parallel()
	rm := newRoom("r1", &fakeController{})
	c := &fakeClient{id: "c"}

	require.NoError(t, rm.Attach(c))
	backdate(rm, 200*time.Second)
	rm.Detach(c)

	// The detach moment, not the stale activity, starts the idle window.
	assert.Less(t, rm.Idle(time.Now()), time.Second)
}

func TestRoomNextFrame(t *testing.T) {
	t.Parallel()
	rm := newRoom("r1", &fakeController{})

	prev := int64(0)
	for i := 0; i < 100; i++ {
		n := rm.NextFrame()
		require.Greater(t, n, prev)
		prev = n
	}
}

func TestRoomBroadcastExcept(t *testing.T) {
	t.Parallel()
	rm := newRoom("r1", &fakeController{})
	sender := &fakeClient{id: "sender"}
	peer1 := &fakeClient{id: "peer1"}
	peer2 := &fakeClient{id: "peer2"}
	require.NoError(t, rm.Attach(sender))
	require.NoError(t, rm.Attach(peer1))
	require.NoError(t, rm.Attach(peer2))

	rm.BroadcastExcept(t.Context(), sender, []byte("cursor"))

	assert.Empty(t, sender.received(), "sender must never see its own cursor")
	require.Len(t, peer1.received(), 1)
	require.Len(t, peer2.received(), 1)
	assert.Equal(t, []byte("cursor"), peer1.received()[0])
}

func TestRoomBroadcastSurvivesSendFailure(t *testing.T) {
	t.Parallel()
	rm := newRoom("r1", &fakeController{})
	broken := &fakeClient{id: "broken", sendErr: assert.AnError}
	healthy := &fakeClient{id: "healthy"}
	require.NoError(t, rm.Attach(broken))
	require.NoError(t, rm.Attach(healthy))

	rm.Broadcast(t.Context(), []byte("frame"))

	require.Len(t, healthy.received(), 1)
}

func TestRoomCloseControllerOnce(t *testing.T) {
	t.Parallel()
	ctrl := &fakeController{}
	rm := newRoom("r1", ctrl)

	require.NoError(t, rm.CloseController(t.Context()))
	require.NoError(t, rm.CloseController(t.Context()))
	assert.Equal(t, 1, ctrl.closed())
}

func TestRoomAttachAfterCloseFails(t *testing.T) {
	t.Parallel()
	rm := newRoom("r1", &fakeController{})
	require.NoError(t, rm.CloseController(t.Context()))

	err := rm.Attach(&fakeClient{id: "late"})
	require.ErrorIs(t, err, ErrRoomClosed)
	assert.Equal(t, 0, rm.ClientCount())
	assert.True(t, rm.Closed())
}

func TestRoomCloseIfIdle(t *testing.T) {
	t.Parallel()
	rm := newRoom("r1", &fakeController{})
	threshold := 3 * time.Minute

	// Recently active: not eligible.
	assert.False(t, rm.closeIfIdle(time.Now(), threshold))

	// Idle but occupied: not eligible.
	viewer := &fakeClient{id: "viewer"}
	require.NoError(t, rm.Attach(viewer))
	backdate(rm, time.Hour)
	assert.False(t, rm.closeIfIdle(time.Now(), threshold))

	// Idle and empty: closes exactly once.
	rm.Detach(viewer)
	backdate(rm, time.Hour)
	require.True(t, rm.closeIfIdle(time.Now(), threshold))
	assert.True(t, rm.Closed())
	assert.False(t, rm.closeIfIdle(time.Now(), threshold))
}

func TestRoomTouchResetsIdle(t *testing.T) {
	t.Parallel()
	rm := newRoom("r1", &fakeController{})
	backdate(rm, time.Hour)
	require.Greater(t, rm.Idle(time.Now()), 59*time.Minute)

	rm.Touch()
	assert.Less(t, rm.Idle(time.Now()), time.Second)
}
