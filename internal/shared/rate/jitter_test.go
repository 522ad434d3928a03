package rate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestJitterDeliversTicks(t *testing.T) {
	j := NewJitter(context.Background(), 1000)

	for i := 0; i < 10; i++ {
		select {
		case <-j.Chan():
		case <-time.After(time.Second):
			t.Fatal("expected a tick within a second")
		}
	}
}

func TestJitterStopsOnCtxCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	j := NewJitter(ctx, 10)
	j.Take()

	// When the test context dies the provider closes the channel.
	t.Cleanup(func() {
		require.Eventually(t, func() bool {
			select {
			case _, ok := <-j.Chan():
				return !ok
			default:
				return false
			}
		}, 2*time.Second, 10*time.Millisecond)
	})
	cancel()
}
