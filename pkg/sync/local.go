package sync

import (
	"context"

	"github.com/stefanpenner/horizon/pkg/cache"
	"github.com/stefanpenner/horizon/pkg/store"
)

// Local is a Remote backed by a cache, for running without a server. The
// cache then is the store of record.
type Local struct {
	Cache cache.Cache
}

func (l Local) Fetch(ctx context.Context, c store.Category) ([]store.Goal, error) {
	goals, ok, err := l.Cache.Get(ctx, c)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []store.Goal{}, nil
	}
	return goals, nil
}

func (l Local) Save(ctx context.Context, c store.Category, goals []store.Goal) error {
	return l.Cache.Put(ctx, c, goals)
}

func (l Local) Reset(ctx context.Context) error {
	for _, c := range store.Categories {
		if err := l.Cache.Put(ctx, c, []store.Goal{}); err != nil {
			return err
		}
	}
	return nil
}
