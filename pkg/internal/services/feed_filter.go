package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"git.solsynth.dev/hypernet/feedsync/pkg/internal/models"
	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// Selector picks what the view shows. Scope is carried for cache keys only,
// the store already holds whatever the scope's endpoint returned.
type Selector struct {
	Hashtag string       `json:"hashtag"`
	Scope   models.Scope `json:"scope"`
}

func normalizeHashtag(tag string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(tag), "#"))
}

// MatchHashtag reports whether the post carries the tag as a structured
// hashtag or mentions it literally in its body.
func MatchHashtag(post models.Post, tag string) bool {
	expected := normalizeHashtag(tag)
	if lo.ContainsBy(post.Hashtags, func(item string) bool {
		return normalizeHashtag(item) == expected
	}) {
		return true
	}
	return strings.Contains(post.Body, tag)
}

// Project is the filter applied on a snapshot, it never modifies posts.
func Project(posts []models.Post, sel Selector) []models.Post {
	if len(strings.TrimSpace(sel.Hashtag)) == 0 {
		return posts
	}
	return lo.Filter(posts, func(item models.Post, _ int) bool {
		return MatchHashtag(item, sel.Hashtag)
	})
}

type FilterListener func(posts []models.Post)

// FilterView keeps the projection of a store for the current selector and
// tells its listeners whenever it changes.
type FilterView struct {
	store *FeedStore
	cache *cache.Cache[any]

	mu       sync.RWMutex
	selector Selector

	listenerMu  sync.RWMutex
	listeners   map[uint64]FilterListener
	listenerSeq uint64

	unsubscribe func()
}

// NewFilterView attaches a view to the store, projections are memoized in cacheStore.
func NewFilterView(feed *FeedStore, cacheStore store.StoreInterface, sel Selector) *FilterView {
	v := &FilterView{
		store:     feed,
		cache:     cache.New[any](cacheStore),
		selector:  sel,
		listeners: make(map[uint64]FilterListener),
	}
	v.unsubscribe = feed.Subscribe(func(snapshot *FeedSnapshot) {
		v.notify(v.Project(snapshot, v.Selector()))
	})
	return v
}

func (v *FilterView) Selector() Selector {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.selector
}

func (v *FilterView) SetSelector(sel Selector) {
	v.mu.Lock()
	v.selector = sel
	v.mu.Unlock()
	v.notify(v.Project(v.store.Snapshot(), sel))
}

// Posts returns the projection for the current selector.
func (v *FilterView) Posts() []models.Post {
	return v.Project(v.store.Snapshot(), v.Selector())
}

func (v *FilterView) Subscribe(listener FilterListener) (unsubscribe func()) {
	v.listenerMu.Lock()
	v.listenerSeq++
	id := v.listenerSeq
	v.listeners[id] = listener
	v.listenerMu.Unlock()

	return func() {
		v.listenerMu.Lock()
		delete(v.listeners, id)
		v.listenerMu.Unlock()
	}
}

// Close detaches the view from its store.
func (v *FilterView) Close() {
	if v.unsubscribe != nil {
		v.unsubscribe()
	}
}

// Project returns the memoized projection of snapshot for sel, the view's
// own selector is left alone.
func (v *FilterView) Project(snapshot *FeedSnapshot, sel Selector) []models.Post {
	if len(strings.TrimSpace(sel.Hashtag)) == 0 {
		return snapshot.Posts
	}

	ctx := context.Background()
	cacheKey := fmt.Sprintf(
		"feed-projection#%d:%d:%s:%s",
		snapshot.Epoch, snapshot.Revision, sel.Scope, sel.Hashtag,
	)
	if val, err := v.cache.Get(ctx, cacheKey); err == nil {
		if posts, ok := val.([]models.Post); ok {
			return posts
		}
	}

	posts := Project(snapshot.Posts, sel)
	if err := v.cache.Set(ctx, cacheKey, posts, store.WithCost(int64(len(posts)+1))); err != nil {
		log.Debug().Err(err).Str("key", cacheKey).Msg("Unable to cache feed projection...")
	}
	return posts
}

func (v *FilterView) notify(posts []models.Post) {
	v.listenerMu.RLock()
	listeners := lo.Values(v.listeners)
	v.listenerMu.RUnlock()
	for _, listener := range listeners {
		listener(posts)
	}
}
