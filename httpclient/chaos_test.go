package httpclient

import (
	"context"
	"errors"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChaosConfig_Enabled(t *testing.T) {
	assert.False(t, ChaosConfig{}.Enabled())
	assert.True(t, ChaosConfig{Latency: time.Millisecond}.Enabled())
	assert.True(t, ChaosConfig{ErrorRate: 0.1}.Enabled())
	assert.Nil(t, ChaosHandler(ChaosConfig{}))
}

func TestChaosConfig_Delay(t *testing.T) {
	cfg := ChaosConfig{Latency: 10 * time.Millisecond, LatencyJitter: 5 * time.Millisecond}

	for range 20 {
		d := cfg.Delay()
		assert.GreaterOrEqual(t, d, 10*time.Millisecond)
		assert.Less(t, d, 15*time.Millisecond)
	}
}

func TestChaosHandler(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ChaosConfig
		ctx     func() (context.Context, context.CancelFunc)
		wantErr func(t *testing.T, err error)
	}{
		{
			name: "given certain timeout, then returns net timeout error",
			cfg:  ChaosConfig{TimeoutRate: 1},
			wantErr: func(t *testing.T, err error) {
				var netErr net.Error
				require.ErrorAs(t, err, &netErr)
				assert.True(t, netErr.Timeout())
				assert.ErrorIs(t, err, ErrChaosInjected)
			},
		},
		{
			name: "given certain error, then returns connection error",
			cfg:  ChaosConfig{ErrorRate: 1},
			wantErr: func(t *testing.T, err error) {
				var opErr *net.OpError
				require.ErrorAs(t, err, &opErr)
				assert.Equal(t, "dial", opErr.Op)
				assert.ErrorIs(t, err, ErrChaosInjected)
			},
		},
		{
			name: "given latency longer than deadline, then returns context error",
			cfg:  ChaosConfig{Latency: time.Second},
			ctx: func() (context.Context, context.CancelFunc) {
				return context.WithTimeout(context.Background(), 10*time.Millisecond)
			},
			wantErr: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, context.DeadlineExceeded)
			},
		},
		{
			name: "given short latency, then forwards request",
			cfg:  ChaosConfig{Latency: time.Millisecond},
			wantErr: func(t *testing.T, err error) {
				assert.NoError(t, err)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.Background(), context.CancelFunc(func() {})
			if tt.ctx != nil {
				ctx, cancel = tt.ctx()
			}
			defer cancel()

			mt := NewMockTransport().StubResponse(http.StatusOK, "")
			rt := ChaosHandler(tt.cfg)(mt)

			req, _ := http.NewRequestWithContext(ctx, http.MethodGet, "http://api.local/", nil)
			resp, err := rt.RoundTrip(req)
			if err == nil {
				resp.Body.Close()
			}

			tt.wantErr(t, err)
		})
	}
}

func TestChaosHandler_ThroughClient(t *testing.T) {
	boom := NewMockTransport().StubResponse(http.StatusOK, "")
	c := newTestClient(t,
		WithBaseURL("http://api.local"),
		WithMockTransport(boom),
		WithHandler(ChaosHandler(ChaosConfig{ErrorRate: 1})),
	)

	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	_, err := c.Send(context.Background(), req)

	assert.True(t, errors.Is(err, ErrChaosInjected))
	assert.Zero(t, boom.RequestCount())
}
