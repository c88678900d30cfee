package scheduler_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2/gqlerror"

	"github.com/xzzpig/graph-gateway/internal/core/errs"
	"github.com/xzzpig/graph-gateway/internal/core/scheduler"
	"github.com/xzzpig/graph-gateway/internal/core/upstream"
)

// MockClient is a mock for the UpstreamClient interface
type MockClient struct {
	mock.Mock
}

func (m *MockClient) Do(ctx context.Context, svc upstream.Service, req upstream.Request) (*upstream.Result, error) {
	args := m.Called(ctx, svc.Name, req.Query)
	res, _ := args.Get(0).(*upstream.Result)
	return res, args.Error(1)
}

// countingClient answers every probe successfully.
type countingClient struct {
	calls atomic.Int32
}

func (c *countingClient) Do(context.Context, upstream.Service, upstream.Request) (*upstream.Result, error) {
	c.calls.Add(1)
	return &upstream.Result{Data: []byte(`{"__typename":"Query"}`)}, nil
}

func newRegistry(t *testing.T) *upstream.Registry {
	t.Helper()
	registry, err := upstream.NewRegistry([]upstream.Service{
		{Name: "states", URL: "http://states.local/graphql", RootFields: []string{"states"}},
		{Name: "reviews", URL: "http://reviews.local/graphql", RootFields: []string{"reviews"}},
		{Name: "users", URL: "http://users.local/graphql", RootFields: []string{"users"}},
	})
	require.NoError(t, err)
	return registry
}

func TestValidateSchedule(t *testing.T) {
	tests := []struct {
		name      string
		schedule  string
		expectErr bool
	}{
		{name: "every 30 seconds", schedule: "@every 30s"},
		{name: "every 6 hours", schedule: "0 */6 * * *"},
		{name: "descriptor @hourly", schedule: "@hourly"},
		{name: "complex expression", schedule: "15,30,45 8-17 * * 1-5"},
		{name: "with seconds (6 fields)", schedule: "0 */6 * * * *", expectErr: true},
		{name: "invalid minute range", schedule: "99 0 * * *", expectErr: true},
		{name: "garbage input", schedule: "invalid cron", expectErr: true},
		{name: "empty", schedule: "", expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := scheduler.ValidateSchedule(tt.schedule)
			if tt.expectErr {
				assert.ErrorIs(t, err, errs.ErrInvalidInput)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestHealthScheduler_StatusesBeforeProbe(t *testing.T) {
	s := scheduler.NewHealthScheduler(newRegistry(t), &countingClient{}, "")

	statuses := s.Statuses()
	require.Len(t, statuses, 3)
	for _, st := range statuses {
		assert.Equal(t, upstream.StateUnknown, st.State)
		assert.True(t, st.CheckedAt.IsZero())
	}
	assert.Equal(t, []string{"states", "reviews", "users"},
		[]string{statuses[0].Service, statuses[1].Service, statuses[2].Service})
}

func TestHealthScheduler_ProbeAll(t *testing.T) {
	client := &MockClient{}
	client.On("Do", mock.Anything, "states", "query HealthProbe { __typename }").
		Return(&upstream.Result{Data: []byte(`{"__typename":"Query"}`)}, nil)
	client.On("Do", mock.Anything, "reviews", mock.Anything).
		Return(nil, errors.New("connection refused"))
	client.On("Do", mock.Anything, "users", mock.Anything).
		Return(&upstream.Result{Errors: gqlerror.List{{Message: "unauthorized"}}}, nil)

	s := scheduler.NewHealthScheduler(newRegistry(t), client, "")
	s.ProbeAll(context.Background())

	statuses := s.Statuses()
	require.Len(t, statuses, 3)

	assert.Equal(t, upstream.StateUp, statuses[0].State)
	assert.Empty(t, statuses[0].Error)
	assert.False(t, statuses[0].CheckedAt.IsZero())

	assert.Equal(t, upstream.StateDown, statuses[1].State)
	assert.Contains(t, statuses[1].Error, "connection refused")

	assert.Equal(t, upstream.StateDown, statuses[2].State)
	assert.Contains(t, statuses[2].Error, "unauthorized")

	client.AssertExpectations(t)
}

func TestHealthScheduler_StartStop(t *testing.T) {
	client := &countingClient{}
	s := scheduler.NewHealthScheduler(newRegistry(t), client, "@every 1h")

	require.NoError(t, s.Start())
	require.NoError(t, s.Start(), "second start is a no-op")

	// Start runs an initial probe of every service.
	require.Eventually(t, func() bool { return client.calls.Load() == 3 }, time.Second, 10*time.Millisecond)

	s.Stop()
	s.Stop()
}

func TestHealthScheduler_StartInvalidSchedule(t *testing.T) {
	s := scheduler.NewHealthScheduler(newRegistry(t), &countingClient{}, "not a schedule")

	err := s.Start()
	assert.ErrorIs(t, err, errs.ErrInvalidInput)
}
