package main

import (
	"context"
	"time"

	"github.com/graph-gophers/dataloader/v7"

	"github.com/matrimonyai/backend/matching"
)

// DataLoaderContextKey is the key used to store dataloaders in context
type DataLoaderContextKey string

const dataLoaderKey DataLoaderContextKey = "dataloader"

const loaderWait = 16 * time.Millisecond

// profileBatcher is the part of Store the loaders read from.
type profileBatcher interface {
	ProfilesByUserIDs(ctx context.Context, ids []int) (map[int]matching.Profile, error)
}

// DataLoaders holds the per-request loaders.
type DataLoaders struct {
	ProfileLoader *dataloader.Loader[int, *matching.Profile]
}

// NewDataLoaders creates new dataloaders reading from store, each batch
// bounded by timeout.
func NewDataLoaders(store profileBatcher, timeout time.Duration) *DataLoaders {
	return &DataLoaders{
		ProfileLoader: dataloader.NewBatchedLoader(profileBatchFn(store, timeout), dataloader.WithWait[int, *matching.Profile](loaderWait)),
	}
}

// GetDataLoadersFromContext retrieves dataloaders from context
func GetDataLoadersFromContext(ctx context.Context) *DataLoaders {
	if dl, ok := ctx.Value(dataLoaderKey).(*DataLoaders); ok {
		return dl
	}
	return nil
}

// WithDataLoaders adds dataloaders to context
func WithDataLoaders(ctx context.Context, dl *DataLoaders) context.Context {
	return context.WithValue(ctx, dataLoaderKey, dl)
}

// profileBatchFn loads profiles by user id in one store call. Users without
// a profile resolve to nil without an error.
func profileBatchFn(store profileBatcher, timeout time.Duration) dataloader.BatchFunc[int, *matching.Profile] {
	return func(ctx context.Context, keys []int) []*dataloader.Result[*matching.Profile] {
		results := make([]*dataloader.Result[*matching.Profile], len(keys))

		var found map[int]matching.Profile
		err := storeCall(ctx, timeout, "batch load profiles", func(ctx context.Context) (err error) {
			found, err = store.ProfilesByUserIDs(ctx, keys)
			return err
		})

		for i, key := range keys {
			if err != nil {
				results[i] = &dataloader.Result[*matching.Profile]{Error: err}
				continue
			}
			result := &dataloader.Result[*matching.Profile]{}
			if p, ok := found[key]; ok {
				result.Data = &p
			}
			results[i] = result
		}
		return results
	}
}

// loadProfiles resolves ids through the request loader when present and
// falls back to a fresh loader otherwise.
func loadProfiles(ctx context.Context, store profileBatcher, timeout time.Duration, ids []int) (map[int]*matching.Profile, error) {
	out := make(map[int]*matching.Profile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	dl := GetDataLoadersFromContext(ctx)
	if dl == nil {
		dl = NewDataLoaders(store, timeout)
	}
	// queue every key before resolving so the loader batches them
	thunks := make([]dataloader.Thunk[*matching.Profile], len(ids))
	for i, id := range ids {
		thunks[i] = dl.ProfileLoader.Load(ctx, id)
	}
	for i, thunk := range thunks {
		p, err := thunk()
		if err != nil {
			return nil, err
		}
		if p != nil {
			out[ids[i]] = p
		}
	}
	return out, nil
}
