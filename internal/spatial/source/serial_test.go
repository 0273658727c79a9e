package source

import (
	"context"
	"testing"
	"time"

	"github.com/banshee-data/spatialpointer/internal/serialmux"
	"github.com/banshee-data/spatialpointer/internal/spatial"
	"github.com/banshee-data/spatialpointer/internal/spatial/l1samples"
	"github.com/banshee-data/spatialpointer/internal/timeutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerialBridge_HandleLine(t *testing.T) {
	t.Parallel()
	sink := &recordingSink{}
	clock := timeutil.NewMockClock(epoch)
	b := NewSerialBridge(serialmux.NewDisabledSerialMux(), sink, clock)

	line, err := l1samples.EncodeLine([]spatial.RawSample{sample(7, spatial.RawActive), sample(8, spatial.RawEnded)})
	require.NoError(t, err)

	b.HandleLine(line)
	b.HandleLine(`{"status":"streaming"}`)
	b.HandleLine("bridge firmware 1.4")
	b.HandleLine(`{"samples": [`)

	batches, decode := sink.snapshot()
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 2)
	assert.Equal(t, int32(7), batches[0][0].RawID)
	assert.Equal(t, spatial.RawEnded, batches[0][1].Phase)
	assert.Equal(t, epoch, batches[0][0].Timestamp)
	assert.Equal(t, 2, decode.Records)
	assert.Equal(t, 1, decode.Rejected)
}

func TestSerialBridge_RunOverMux(t *testing.T) {
	t.Parallel()
	port := serialmux.NewTestableSerialPort()
	mux := serialmux.NewSerialMux(port)
	sink := &recordingSink{}
	b := NewSerialBridge(mux, sink, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bridgeDone := make(chan error, 1)
	go func() { bridgeDone <- b.Run(ctx) }()

	// Wait for the bridge to subscribe before lines flow.
	require.Eventually(t, func() bool {
		return mux.Subscribers() == 1
	}, 2*time.Second, 5*time.Millisecond)

	go mux.Monitor(ctx)

	line, err := l1samples.EncodeLine([]spatial.RawSample{sample(3, spatial.RawActive)})
	require.NoError(t, err)
	port.AddReadData([]byte("ready\n" + line + "\n"))

	require.Eventually(t, func() bool {
		batches, _ := sink.snapshot()
		return len(batches) == 1
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-bridgeDone:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("bridge did not stop")
	}
}

func TestSerialBridge_StopsWhenMuxCloses(t *testing.T) {
	t.Parallel()
	mux := serialmux.NewDisabledSerialMux()
	b := NewSerialBridge(mux, &recordingSink{}, nil)

	done := make(chan error, 1)
	go func() { done <- b.Run(context.Background()) }()

	require.Eventually(t, func() bool {
		require.NoError(t, mux.Close())
		select {
		case err := <-done:
			return err == nil
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}
