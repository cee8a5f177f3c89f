package wsconn

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/eventgateway/core/realtime"
)

func TestSessionSend(t *testing.T) {
	t.Parallel()

	t.Run("full queue reports a slow consumer", func(t *testing.T) {
		t.Parallel()
		s := newSession(nil, 1)

		require.NoError(t, s.Send(context.Background(), realtime.Frame{Type: "a"}))
		assert.ErrorIs(t, s.Send(context.Background(), realtime.Frame{Type: "b"}), realtime.ErrSlowConsumer)
	})

	t.Run("closed session rejects frames", func(t *testing.T) {
		t.Parallel()
		s := newSession(nil, 4)

		require.NoError(t, s.Close())
		require.NoError(t, s.Close())
		assert.ErrorIs(t, s.Send(context.Background(), realtime.Frame{Type: "a"}), realtime.ErrConnectionClosed)
	})
}
