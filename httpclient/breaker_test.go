package httpclient

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/kroma-labs/httprequester/httpclient/mocks"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type NetError struct {
	Msg string
}

func (e *NetError) Error() string   { return e.Msg }
func (e *NetError) Timeout() bool   { return false }
func (e *NetError) Temporary() bool { return false }

func TestDefaultBreakerConfig(t *testing.T) {
	cfg := DefaultBreakerConfig()

	assert.Equal(t, uint32(1), cfg.MaxRequests)
	assert.Equal(t, 10*time.Second, cfg.Interval)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
	assert.Equal(t, uint32(20), cfg.FailureThreshold)
	assert.InEpsilon(t, 0.5, cfg.FailureRatio, 0.001)
	assert.Equal(t, uint32(5), cfg.ConsecutiveFailures)
	assert.Nil(t, cfg.Store)
	assert.NotNil(t, cfg.Classifier)
}

func TestDefaultBreakerClassifier(t *testing.T) {
	tests := []struct {
		name string
		resp *http.Response
		err  error
		want bool
	}{
		{name: "given 200, then not a failure", resp: &http.Response{StatusCode: http.StatusOK}, want: false},
		{name: "given 404, then not a failure", resp: &http.Response{StatusCode: http.StatusNotFound}, want: false},
		{name: "given 503, then failure", resp: &http.Response{StatusCode: http.StatusServiceUnavailable}, want: true},
		{name: "given network error, then failure", err: &NetError{Msg: "reset"}, want: true},
		{name: "given deadline exceeded, then failure", err: context.DeadlineExceeded, want: true},
		{name: "given plain error, then not a failure", err: errors.New("bad request body"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DefaultBreakerClassifier(tt.resp, tt.err))
		})
	}
}

func TestReadyToTrip(t *testing.T) {
	cfg := DefaultBreakerConfig()
	trip := readyToTrip(cfg)

	tests := []struct {
		name   string
		counts gobreaker.Counts
		want   bool
	}{
		{name: "given few failures, then stays closed", counts: gobreaker.Counts{Requests: 3, TotalFailures: 2, ConsecutiveFailures: 2}, want: false},
		{name: "given consecutive failures, then trips", counts: gobreaker.Counts{Requests: 5, TotalFailures: 5, ConsecutiveFailures: 5}, want: true},
		{name: "given high ratio over threshold, then trips", counts: gobreaker.Counts{Requests: 20, TotalFailures: 10, ConsecutiveFailures: 1}, want: true},
		{name: "given low ratio over threshold, then stays closed", counts: gobreaker.Counts{Requests: 40, TotalFailures: 4, ConsecutiveFailures: 1}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, trip(tt.counts))
		})
	}
}

func TestBreakerTransport_RoundTrip(t *testing.T) {
	netErr := &NetError{Msg: "network error"}

	tests := []struct {
		name    string
		mockFn  func(*mocks.CircuitBreaker, *mocks.RoundTripper)
		wantErr assert.ErrorAssertionFunc
		wantSC  int
	}{
		{
			name: "given successful execution, then returns response and no error",
			mockFn: func(cb *mocks.CircuitBreaker, rt *mocks.RoundTripper) {
				cb.EXPECT().
					Execute(mock.Anything).
					RunAndReturn(func(req func() (interface{}, error)) (interface{}, error) {
						return req()
					}).Once()
				rt.EXPECT().
					RoundTrip(mock.Anything).
					Return(&http.Response{StatusCode: http.StatusOK}, nil).Once()
			},
			wantErr: assert.NoError,
			wantSC:  http.StatusOK,
		},
		{
			name: "given circuit open, then returns ErrCircuitOpen",
			mockFn: func(cb *mocks.CircuitBreaker, _ *mocks.RoundTripper) {
				cb.EXPECT().
					Execute(mock.Anything).
					Return(nil, gobreaker.ErrOpenState).Once()
			},
			wantErr: func(t assert.TestingT, err error, _ ...interface{}) bool {
				return assert.ErrorIs(t, err, ErrCircuitOpen) &&
					assert.ErrorIs(t, err, gobreaker.ErrOpenState)
			},
		},
		{
			name: "given 500 response, then counts failure but returns response",
			mockFn: func(cb *mocks.CircuitBreaker, rt *mocks.RoundTripper) {
				cb.EXPECT().
					Execute(mock.Anything).
					RunAndReturn(func(req func() (interface{}, error)) (interface{}, error) {
						return req()
					}).Once()
				rt.EXPECT().
					RoundTrip(mock.Anything).
					Return(&http.Response{StatusCode: http.StatusInternalServerError}, nil).Once()
			},
			wantErr: assert.NoError,
			wantSC:  http.StatusInternalServerError,
		},
		{
			name: "given network error, then returns error",
			mockFn: func(cb *mocks.CircuitBreaker, rt *mocks.RoundTripper) {
				cb.EXPECT().
					Execute(mock.Anything).
					RunAndReturn(func(req func() (interface{}, error)) (interface{}, error) {
						return req()
					}).Once()
				rt.EXPECT().
					RoundTrip(mock.Anything).
					Return(nil, netErr).Once()
			},
			wantErr: func(t assert.TestingT, err error, _ ...interface{}) bool {
				return assert.ErrorIs(t, err, netErr)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockBreaker := mocks.NewCircuitBreaker(t)
			mockRT := mocks.NewRoundTripper(t)
			tt.mockFn(mockBreaker, mockRT)

			tr := &circuitBreakerTransport{
				breaker:    mockBreaker,
				next:       mockRT,
				classifier: DefaultBreakerClassifier,
				name:       "test-service",
			}

			req, _ := http.NewRequest(http.MethodGet, "http://example.com", nil)
			resp, err := tr.RoundTrip(req)

			tt.wantErr(t, err)
			if err == nil {
				require.NotNil(t, resp)
				assert.Equal(t, tt.wantSC, resp.StatusCode)
			}
		})
	}
}

func TestWithBreaker_TripsAfterConsecutiveFailures(t *testing.T) {
	mt := NewMockTransport().StubResponse(http.StatusServiceUnavailable, "down")

	cfg := DefaultBreakerConfig()
	cfg.ConsecutiveFailures = 2
	cfg.Timeout = time.Minute

	var transitions []gobreaker.State
	cfg.OnStateChange = func(_ string, _, to gobreaker.State) {
		transitions = append(transitions, to)
	}

	c := newTestClient(t,
		WithBaseURL("http://api.local"),
		WithServiceName("breaker-test"),
		WithMockTransport(mt),
		WithBreaker(cfg),
	)

	send := func() (*http.Response, error) {
		req, _ := http.NewRequest(http.MethodGet, "/status/503", nil)
		return c.Send(context.Background(), req)
	}

	for range 2 {
		resp, err := send()
		require.NoError(t, err)
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		resp.Body.Close()
	}

	_, err := send()
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 2, mt.RequestCount(), "rejected request never reaches the network")
	assert.Equal(t, []gobreaker.State{gobreaker.StateOpen}, transitions)
}

func TestWithDistributedBreaker_SharesState(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	cfg := DistributedBreakerConfig(NewRedisStore(rdb))
	cfg.ConsecutiveFailures = 1
	cfg.Timeout = time.Minute

	failing := NewMockTransport().StubResponse(http.StatusBadGateway, "")
	first := newTestClient(t,
		WithBaseURL("http://api.local"),
		WithServiceName("shared-breaker"),
		WithMockTransport(failing),
		WithBreaker(cfg),
	)

	healthy := NewMockTransport().StubResponse(http.StatusOK, "")
	second := newTestClient(t,
		WithBaseURL("http://api.local"),
		WithServiceName("shared-breaker"),
		WithMockTransport(healthy),
		WithBreaker(cfg),
	)

	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	resp, err := first.Send(context.Background(), req)
	require.NoError(t, err)
	resp.Body.Close()

	_, err = second.Send(context.Background(), req)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Zero(t, healthy.RequestCount())
}
