package services

import (
	"slices"
	"sort"
	"sync"
	"sync/atomic"

	"git.solsynth.dev/hypernet/feedsync/pkg/internal/models"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// FeedSnapshot is an immutable view of the store at one revision.
type FeedSnapshot struct {
	Posts    []models.Post `json:"posts"`
	Revision uint64        `json:"revision"`
	// Epoch counts ReplaceAll calls, revision restarts from zero on each.
	Epoch uint64 `json:"epoch"`

	index map[string]int
}

// Get looks a post up by id without scanning the feed.
func (v *FeedSnapshot) Get(id string) (models.Post, bool) {
	idx, ok := v.index[id]
	if !ok {
		return models.Post{}, false
	}
	return v.Posts[idx], true
}

type FeedListener func(snapshot *FeedSnapshot)

// FeedStore owns the ordered, de-duplicated posts of the current view.
// Every mutation publishes a fresh snapshot and notifies the listeners
// synchronously, listeners must not write back into the store.
type FeedStore struct {
	mu       sync.Mutex
	posts    []models.Post
	index    map[string]int
	local    map[string]map[models.PostField]bool
	revision uint64
	epoch    uint64

	snapshot atomic.Pointer[FeedSnapshot]

	listenerMu  sync.RWMutex
	listeners   map[uint64]FeedListener
	listenerSeq uint64
}

func NewFeedStore() *FeedStore {
	s := &FeedStore{
		index:     make(map[string]int),
		local:     make(map[string]map[models.PostField]bool),
		listeners: make(map[uint64]FeedListener),
	}
	s.snapshot.Store(&FeedSnapshot{index: s.index})
	return s
}

func (s *FeedStore) Snapshot() *FeedSnapshot {
	return s.snapshot.Load()
}

func (s *FeedStore) Has(id string) bool {
	_, ok := s.Get(id)
	return ok
}

func (s *FeedStore) Get(id string) (models.Post, bool) {
	return s.Snapshot().Get(id)
}

// Origin reports whether the field of the post still holds an unconfirmed local guess.
func (s *FeedStore) Origin(id string, field models.PostField) models.Origin {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.local[id][field] {
		return models.OriginLocal
	}
	return models.OriginRemote
}

func (s *FeedStore) Subscribe(listener FeedListener) (unsubscribe func()) {
	s.listenerMu.Lock()
	s.listenerSeq++
	id := s.listenerSeq
	s.listeners[id] = listener
	s.listenerMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.listenerMu.Lock()
			delete(s.listeners, id)
			s.listenerMu.Unlock()
		})
	}
}

// ReplaceAll discards the current feed and loads posts ordered by creation time, newest first.
func (s *FeedStore) ReplaceAll(posts []models.Post) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := lo.UniqBy(posts, func(item models.Post) string {
		return item.ID
	})
	items = lo.Map(items, func(item models.Post, _ int) models.Post {
		return sanitizePost(item)
	})
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})

	s.local = make(map[string]map[models.PostField]bool)
	s.revision = 0
	s.epoch++
	s.commit(items)

	log.Debug().Int("count", len(items)).Uint64("epoch", s.epoch).Msg("Replaced feed contents...")
}

// Apply merges one event into the feed. Patches, deletions and view updates
// for posts outside the loaded window return ErrOrphanPatch and change nothing.
func (s *FeedStore) Apply(event models.FeedEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev := event.(type) {
	case models.PostCreated:
		if _, ok := s.index[ev.Post.ID]; ok {
			patch := presentFields(ev.Post)
			if ev.Patch != nil {
				patch = *ev.Patch
			}
			return s.patch(ev.Post.ID, patch, models.OriginRemote)
		}
		items := make([]models.Post, 0, len(s.posts)+1)
		items = append(items, sanitizePost(ev.Post))
		items = append(items, s.posts...)
		s.revision++
		s.commit(items)
	case models.PostPatched:
		return s.patch(ev.ID, ev.Patch, ev.Origin)
	case models.PostDeleted:
		idx, ok := s.index[ev.ID]
		if !ok {
			log.Debug().Str("post", ev.ID).Msg("Skipped deleting post not in feed...")
			return ErrOrphanPatch
		}
		items := make([]models.Post, 0, len(s.posts)-1)
		items = append(items, s.posts[:idx]...)
		items = append(items, s.posts[idx+1:]...)
		delete(s.local, ev.ID)
		s.revision++
		s.commit(items)
	case models.ViewIncremented:
		idx, ok := s.index[ev.ID]
		if !ok {
			log.Debug().Str("post", ev.ID).Int64("views", ev.Views).Msg("Dropped view count for post not in feed...")
			return ErrOrphanPatch
		}
		if ev.Views <= s.posts[idx].ViewCount {
			return nil
		}
		items := slices.Clone(s.posts)
		items[idx].ViewCount = ev.Views
		s.revision++
		s.commit(items)
	default:
		return ErrMalformedEvent
	}

	return nil
}

// Insert puts a post back at the given position, used to undo an optimistic removal.
func (s *FeedStore) Insert(post models.Post, position int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[post.ID]; ok {
		return
	}
	position = lo.Clamp(position, 0, len(s.posts))
	items := make([]models.Post, 0, len(s.posts)+1)
	items = append(items, s.posts[:position]...)
	items = append(items, sanitizePost(post))
	items = append(items, s.posts[position:]...)
	s.revision++
	s.commit(items)
}

func (s *FeedStore) patch(id string, patch models.PostPatch, origin models.Origin) error {
	idx, ok := s.index[id]
	if !ok {
		log.Debug().Str("post", id).Msg("Dropped patch for post not in feed...")
		return ErrOrphanPatch
	}

	fields := patch.Fields()
	if origin == models.OriginLocal {
		if s.local[id] == nil {
			s.local[id] = make(map[models.PostField]bool)
		}
		for _, field := range fields {
			s.local[id][field] = true
		}
	} else if marks, ok := s.local[id]; ok {
		for _, field := range fields {
			delete(marks, field)
		}
		if len(marks) == 0 {
			delete(s.local, id)
		}
	}

	items := slices.Clone(s.posts)
	items[idx] = MergePost(items[idx], patch)
	s.revision++
	s.commit(items)
	return nil
}

// commit publishes items as the new snapshot, callers hold s.mu.
func (s *FeedStore) commit(items []models.Post) {
	s.posts = items
	s.index = make(map[string]int, len(items))
	for idx, item := range items {
		s.index[item.ID] = idx
	}

	snapshot := &FeedSnapshot{
		Posts:    items,
		Revision: s.revision,
		Epoch:    s.epoch,
		index:    s.index,
	}
	s.snapshot.Store(snapshot)

	s.listenerMu.RLock()
	listeners := lo.Values(s.listeners)
	s.listenerMu.RUnlock()
	for _, listener := range listeners {
		listener(snapshot)
	}
}

// MergePost applies a field-level union of patch onto post. Author keys merge
// one by one, comments are replaced as a whole, views never go backwards.
func MergePost(post models.Post, patch models.PostPatch) models.Post {
	if patch.Author != nil {
		if patch.Author.ID != nil {
			post.Author.ID = *patch.Author.ID
		}
		if patch.Author.Handle != nil {
			post.Author.Handle = *patch.Author.Handle
		}
		if patch.Author.Name != nil {
			post.Author.Name = *patch.Author.Name
		}
		if patch.Author.Avatar != nil {
			post.Author.Avatar = *patch.Author.Avatar
		}
	}
	if patch.Body != nil {
		post.Body = *patch.Body
	}
	if patch.Media != nil {
		post.Media = patch.Media
	}
	if patch.Poll != nil {
		post.Poll = patch.Poll
	}
	if patch.Hashtags != nil {
		post.Hashtags = patch.Hashtags
	}
	if patch.LikeUserIDs != nil {
		post.LikeUserIDs = lo.Uniq(patch.LikeUserIDs)
	}
	if patch.Comments != nil {
		post.Comments = normalizeComments(post.Comments, patch.Comments)
	}
	if patch.IsPinned != nil {
		post.IsPinned = *patch.IsPinned
	}
	if patch.ViewCount != nil && *patch.ViewCount > post.ViewCount {
		post.ViewCount = *patch.ViewCount
	}
	return post
}

// presentFields builds a patch out of the non-empty fields of post, for
// creations that come without a record of which fields were sent.
func presentFields(post models.Post) models.PostPatch {
	patch := models.PostPatch{
		Body:        lo.EmptyableToPtr(post.Body),
		Media:       post.Media,
		Poll:        post.Poll,
		Hashtags:    post.Hashtags,
		LikeUserIDs: post.LikeUserIDs,
		Comments:    post.Comments,
		ViewCount:   lo.EmptyableToPtr(post.ViewCount),
	}
	if post.Author != (models.Author{}) {
		patch.Author = &models.AuthorPatch{
			ID:     lo.EmptyableToPtr(post.Author.ID),
			Handle: lo.EmptyableToPtr(post.Author.Handle),
			Name:   lo.EmptyableToPtr(post.Author.Name),
			Avatar: lo.EmptyableToPtr(post.Author.Avatar),
		}
	}
	if post.IsPinned {
		patch.IsPinned = lo.ToPtr(true)
	}
	return patch
}

func sanitizePost(post models.Post) models.Post {
	if post.LikeUserIDs != nil {
		post.LikeUserIDs = lo.Uniq(post.LikeUserIDs)
	}
	if post.Comments != nil {
		post.Comments = normalizeComments(nil, post.Comments)
	}
	return post
}

// normalizeComments leaves at most one comment pinned. When several are
// pinned the one that was not pinned in previous wins, otherwise the first
// pinned one stays. Order is left untouched.
func normalizeComments(previous, comments []models.Comment) []models.Comment {
	pinned := lo.Filter(comments, func(item models.Comment, _ int) bool {
		return item.IsPinned
	})
	if len(pinned) <= 1 {
		return comments
	}

	wasPinned := make(map[string]bool, len(previous))
	for _, item := range previous {
		if item.IsPinned {
			wasPinned[item.ID] = true
		}
	}
	keep := pinned[0].ID
	if fresh, ok := lo.Find(pinned, func(item models.Comment) bool {
		return !wasPinned[item.ID]
	}); ok {
		keep = fresh.ID
	}

	out := slices.Clone(comments)
	for idx := range out {
		out[idx].IsPinned = out[idx].ID == keep
	}
	return out
}
