package services

import (
	"context"
	"sync"
	"time"

	"git.solsynth.dev/hypernet/feedsync/pkg/internal/models"
	"github.com/stretchr/testify/mock"
)

var baseTime = time.Date(2024, 11, 1, 12, 0, 0, 0, time.UTC)

func fixturePost(id string, offset time.Duration) models.Post {
	return models.Post{
		ID: id,
		Author: models.Author{
			ID:     "author-" + id,
			Handle: "handle-" + id,
			Name:   "Name " + id,
		},
		Body:      "body of " + id,
		CreatedAt: baseTime.Add(offset),
	}
}

func postIDs(posts []models.Post) []string {
	out := make([]string, 0, len(posts))
	for _, item := range posts {
		out = append(out, item.ID)
	}
	return out
}

type stubSource struct {
	mu      sync.Mutex
	feeds   map[models.Scope][]models.Post
	gates   map[models.Scope]chan struct{}
	entered chan models.Scope
}

func newStubSource() *stubSource {
	return &stubSource{
		feeds:   make(map[models.Scope][]models.Post),
		gates:   make(map[models.Scope]chan struct{}),
		entered: make(chan models.Scope, 16),
	}
}

func (s *stubSource) set(scope models.Scope, posts ...models.Post) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feeds[scope] = posts
}

func (s *stubSource) block(scope models.Scope) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	gate := make(chan struct{})
	s.gates[scope] = gate
	return gate
}

func (s *stubSource) FetchFeed(ctx context.Context, scope models.Scope) ([]models.Post, error) {
	s.mu.Lock()
	gate := s.gates[scope]
	posts := s.feeds[scope]
	s.mu.Unlock()

	s.entered <- scope
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return posts, nil
}

type mockAPI struct {
	mock.Mock
}

func (m *mockAPI) LikePost(ctx context.Context, postID string) error {
	args := m.Called(ctx, postID)
	return args.Error(0)
}

func (m *mockAPI) DeletePost(ctx context.Context, postID string) error {
	args := m.Called(ctx, postID)
	return args.Error(0)
}

func (m *mockAPI) AddComment(ctx context.Context, postID, text string) (*models.Post, error) {
	args := m.Called(ctx, postID, text)
	post, _ := args.Get(0).(*models.Post)
	return post, args.Error(1)
}

func (m *mockAPI) DeleteComment(ctx context.Context, postID, commentID string) (*models.Post, error) {
	args := m.Called(ctx, postID, commentID)
	post, _ := args.Get(0).(*models.Post)
	return post, args.Error(1)
}

func (m *mockAPI) PinComment(ctx context.Context, postID, commentID string) (*models.Post, error) {
	args := m.Called(ctx, postID, commentID)
	post, _ := args.Get(0).(*models.Post)
	return post, args.Error(1)
}

type recordingNotifier struct {
	mu    sync.Mutex
	items []Notification
}

func (r *recordingNotifier) Notify(notification Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, notification)
}

func (r *recordingNotifier) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.items...)
}

// loadedScheduler returns a scheduler whose store already holds posts under the all scope.
func loadedScheduler(posts ...models.Post) (*Scheduler, *stubSource) {
	source := newStubSource()
	source.set(models.ScopeAll, posts...)
	scheduler := NewScheduler(NewFeedStore(), source, SchedulerOptions{})
	if err := scheduler.LoadScope(context.Background(), models.ScopeAll); err != nil {
		panic(err)
	}
	<-source.entered
	return scheduler, source
}
