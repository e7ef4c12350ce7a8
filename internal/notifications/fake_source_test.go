package notifications

import (
	"context"
	"sync"
	"time"

	"github.com/anonto42/apollo/backend/internal/livequery"
	"github.com/anonto42/apollo/backend/internal/models"
)

type commentWatch struct {
	postIDs    []string
	onSnapshot func([]models.Comment)
	errs       chan error
	sub        *livequery.Subscription
}

type postWatch struct {
	ownerID    string
	onSnapshot func([]models.Post)
	errs       chan error
	sub        *livequery.Subscription
}

// fakeSource records every watch so tests can push snapshots by hand
type fakeSource struct {
	mu       sync.Mutex
	posts    map[string][]models.Post
	postsErr error
	queries  int
	comments []*commentWatch
	owned    []*postWatch
}

func newFakeSource() *fakeSource {
	return &fakeSource{posts: make(map[string][]models.Post)}
}

func watchLoop(errs chan error) func(context.Context) error {
	return func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errs:
			return err
		}
	}
}

func (f *fakeSource) PostsByOwner(_ context.Context, ownerID string) ([]models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries++
	if f.postsErr != nil {
		return nil, f.postsErr
	}
	return f.posts[ownerID], nil
}

func (f *fakeSource) WatchOwnedPosts(ctx context.Context, ownerID string, onSnapshot func([]models.Post), onError func(error)) *livequery.Subscription {
	w := &postWatch{ownerID: ownerID, onSnapshot: onSnapshot, errs: make(chan error, 1)}
	w.sub = livequery.Run(ctx, watchLoop(w.errs), onError)
	f.mu.Lock()
	f.owned = append(f.owned, w)
	f.mu.Unlock()
	return w.sub
}

func (f *fakeSource) WatchComments(ctx context.Context, postIDs []string, onSnapshot func([]models.Comment), onError func(error)) *livequery.Subscription {
	w := &commentWatch{postIDs: postIDs, onSnapshot: onSnapshot, errs: make(chan error, 1)}
	w.sub = livequery.Run(ctx, watchLoop(w.errs), onError)
	f.mu.Lock()
	f.comments = append(f.comments, w)
	f.mu.Unlock()
	return w.sub
}

func (f *fakeSource) commentWatches() []*commentWatch {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*commentWatch(nil), f.comments...)
}

func (f *fakeSource) postWatches() []*postWatch {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*postWatch(nil), f.owned...)
}

func (f *fakeSource) allSubs() []*livequery.Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	var subs []*livequery.Subscription
	for _, w := range f.comments {
		subs = append(subs, w.sub)
	}
	for _, w := range f.owned {
		subs = append(subs, w.sub)
	}
	return subs
}

func at(sec int64) time.Time {
	return time.Unix(1_700_000_000+sec, 0).UTC()
}
