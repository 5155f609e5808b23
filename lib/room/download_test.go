package room

import (
	"encoding/base64"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownloadRelay_BroadcastsFile(t *testing.T) {
	dir := t.TempDir()
	dr := NewDownloadRelay(dir, 10*time.Millisecond)
	rm := newRoom("r1", &fakeController{})
	a := &fakeClient{id: "a"}
	b := &fakeClient{id: "b"}
	require.NoError(t, rm.Attach(a))
	require.NoError(t, rm.Attach(b))

	content := []byte("report contents")
	dr.relay(t.Context(), rm, fakeDownload{name: "report.pdf", content: content})

	for _, c := range []*fakeClient{a, b} {
		msgs := c.received()
		require.Len(t, msgs, 1)

		var got fileMessage
		require.NoError(t, json.Unmarshal(msgs[0], &got))
		assert.Equal(t, "file", got.Type)
		assert.Equal(t, "report.pdf", got.Filename)
		assert.Equal(t, base64.StdEncoding.EncodeToString(content), got.Data)
	}

	// The transient copy is deleted shortly after broadcast.
	require.Eventually(t, func() bool {
		entries, err := os.ReadDir(dir)
		return err == nil && len(entries) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestDownloadRelay_SaveErrorNoBroadcast(t *testing.T) {
	t.Parallel()
	dr := NewDownloadRelay(t.TempDir(), 10*time.Millisecond)
	rm := newRoom("r1", &fakeController{})
	c := &fakeClient{id: "c"}
	require.NoError(t, rm.Attach(c))

	dr.relay(t.Context(), rm, fakeDownload{name: "broken.bin", saveErr: assert.AnError})

	assert.Empty(t, c.received())
}

func TestDownloadRelay_SubscribeWiresController(t *testing.T) {
	t.Parallel()
	ctrl := &fakeController{}
	rm := newRoom("r1", ctrl)
	c := &fakeClient{id: "c"}
	require.NoError(t, rm.Attach(c))

	dr := NewDownloadRelay(t.TempDir(), 10*time.Millisecond)
	dr.Subscribe(t.Context(), rm)
	require.NotNil(t, ctrl.onDownload)

	ctrl.onDownload(fakeDownload{name: "wired.txt", content: []byte("hi")})

	require.Eventually(t, func() bool {
		return len(c.received()) == 1
	}, time.Second, 10*time.Millisecond)
}
