package payment

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rifas-mx/rifas/internal/domain"
)

func TestSimulated_CaptureAndVoid(t *testing.T) {
	gw := NewSimulated()
	ctx := context.Background()

	ref, err := gw.Capture(ctx, 10000, "buyer-1")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(ref, "sim_"))
	require.Equal(t, domain.Money(10000), gw.Captured("buyer-1"))

	require.NoError(t, gw.Void(ctx, ref))
	require.NoError(t, gw.Void(ctx, ref), "void is idempotent")
	require.Equal(t, domain.Money(0), gw.Captured("buyer-1"))

	require.ErrorIs(t, gw.Void(ctx, "sim_unknown"), domain.ErrPaymentNotFound)
}

func TestSimulated_Declines(t *testing.T) {
	gw := NewSimulated(WithDeclineAbove(5000))

	_, err := gw.Capture(context.Background(), 5001, "buyer-1")
	require.Error(t, err)

	_, err = gw.Capture(context.Background(), 5000, "buyer-1")
	require.NoError(t, err)

	_, err = gw.Capture(context.Background(), 0, "buyer-1")
	require.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestSimulated_LatencyHonoursContext(t *testing.T) {
	gw := NewSimulated(WithLatency(time.Hour))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := gw.Capture(ctx, 100, "buyer-1")
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, domain.Money(0), gw.Captured("buyer-1"))
}
