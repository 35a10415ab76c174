package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matrimonyai/backend/matching"
)

// countingBatcher records every batch it is asked for.
type countingBatcher struct {
	mu       sync.Mutex
	batches  [][]int
	profiles map[int]matching.Profile
	err      error
}

func (c *countingBatcher) ProfilesByUserIDs(_ context.Context, ids []int) (map[int]matching.Profile, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batches = append(c.batches, append([]int(nil), ids...))
	if c.err != nil {
		return nil, c.err
	}
	out := make(map[int]matching.Profile)
	for _, id := range ids {
		if p, ok := c.profiles[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func TestLoadProfilesBatches(t *testing.T) {
	b := &countingBatcher{profiles: map[int]matching.Profile{
		1: {UserID: 1, FullName: "Aarav Shah"},
		2: {UserID: 2, FullName: "Diya Iyer"},
		3: {UserID: 3, FullName: "Isha Rao"},
	}}
	ctx := WithDataLoaders(context.Background(), NewDataLoaders(b, time.Second))

	got, err := loadProfiles(ctx, b, time.Second, []int{1, 2, 3, 99})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "Diya Iyer", got[2].FullName)
	assert.NotContains(t, got, 99)
	assert.Len(t, b.batches, 1)
	assert.ElementsMatch(t, []int{1, 2, 3, 99}, b.batches[0])

	// cached per request
	_, err = loadProfiles(ctx, b, time.Second, []int{1, 2})
	require.NoError(t, err)
	assert.Len(t, b.batches, 1)
}

func TestLoadProfilesWithoutRequestLoader(t *testing.T) {
	b := &countingBatcher{profiles: map[int]matching.Profile{5: {UserID: 5}}}
	got, err := loadProfiles(context.Background(), b, time.Second, []int{5})
	require.NoError(t, err)
	assert.Contains(t, got, 5)

	empty, err := loadProfiles(context.Background(), b, time.Second, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
	assert.Len(t, b.batches, 1)
}

func TestLoadProfilesError(t *testing.T) {
	b := &countingBatcher{err: errors.New("db down")}
	_, err := loadProfiles(context.Background(), b, time.Second, []int{1})
	require.Error(t, err)
	assert.ErrorIs(t, err, matching.ErrStoreUnavailable)
}

// blockingBatcher never answers before its context ends.
type blockingBatcher struct{}

func (blockingBatcher) ProfilesByUserIDs(ctx context.Context, _ []int) (map[int]matching.Profile, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestLoadProfilesTimeout(t *testing.T) {
	tests := []struct {
		name    string
		loaders func(profileBatcher) *DataLoaders
	}{
		{"fresh loader", func(profileBatcher) *DataLoaders { return nil }},
		{"request loader", func(b profileBatcher) *DataLoaders { return NewDataLoaders(b, 10*time.Millisecond) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			if dl := tt.loaders(blockingBatcher{}); dl != nil {
				ctx = WithDataLoaders(ctx, dl)
			}
			start := time.Now()
			_, err := loadProfiles(ctx, blockingBatcher{}, 10*time.Millisecond, []int{1})
			require.Error(t, err)
			assert.ErrorIs(t, err, context.DeadlineExceeded)
			assert.ErrorIs(t, err, matching.ErrStoreUnavailable)
			assert.Less(t, time.Since(start), 5*time.Second)
		})
	}
}

func TestDataLoaderMiddleware(t *testing.T) {
	b := &countingBatcher{}
	var seen *DataLoaders
	h := DataLoaderMiddleware(b, time.Second)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetDataLoadersFromContext(r.Context())
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotNil(t, seen)
	assert.NotNil(t, seen.ProfileLoader)

	assert.Nil(t, GetDataLoadersFromContext(context.Background()))
}
