package services

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"git.solsynth.dev/hypernet/feedsync/pkg/internal/models"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// MutationAPI is the server side of user actions. Comment actions may return
// the updated post, a nil post means the server only acknowledged.
type MutationAPI interface {
	LikePost(ctx context.Context, postID string) error
	DeletePost(ctx context.Context, postID string) error
	AddComment(ctx context.Context, postID, text string) (*models.Post, error)
	DeleteComment(ctx context.Context, postID, commentID string) (*models.Post, error)
	PinComment(ctx context.Context, postID, commentID string) (*models.Post, error)
}

// Removal remembers where an optimistically removed post used to be.
type Removal struct {
	Post     models.Post
	Position int
}

// Mutator applies user actions to the feed. Likes and removals land before
// the server answers, comment changes only after it acknowledged them.
type Mutator struct {
	scheduler *Scheduler
	api       MutationAPI
}

func NewMutator(scheduler *Scheduler, api MutationAPI) *Mutator {
	return &Mutator{scheduler: scheduler, api: api}
}

// ToggleLike flips the user's like on the post and returns the post as the UI should show it now.
func (v *Mutator) ToggleLike(postID, userID string) (models.Post, error) {
	var out models.Post
	err := v.scheduler.Mutate(func(store *FeedStore) error {
		post, ok := store.Get(postID)
		if !ok {
			return ErrPostNotFound
		}

		var likes []string
		if post.LikedBy(userID) {
			likes = lo.Without(post.LikeUserIDs, userID)
		} else {
			likes = append(slices.Clone(post.LikeUserIDs), userID)
		}

		if err := store.Apply(models.PostPatched{
			ID:     postID,
			Patch:  models.PostPatch{LikeUserIDs: likes},
			Origin: models.OriginLocal,
		}); err != nil {
			return err
		}
		out, _ = store.Get(postID)
		return nil
	})
	return out, err
}

// RemovePost drops the post from the feed right away.
func (v *Mutator) RemovePost(postID string) (Removal, error) {
	var removal Removal
	err := v.scheduler.Mutate(func(store *FeedStore) error {
		position := lo.IndexOf(lo.Map(store.Snapshot().Posts, func(item models.Post, _ int) string {
			return item.ID
		}), postID)
		if position < 0 {
			return ErrPostNotFound
		}
		removal = Removal{Post: store.Snapshot().Posts[position], Position: position}
		return store.Apply(models.PostDeleted{ID: postID})
	})
	return removal, err
}

// RestorePost undoes RemovePost after the server refused the deletion.
func (v *Mutator) RestorePost(removal Removal) {
	_ = v.scheduler.Mutate(func(store *FeedStore) error {
		store.Insert(removal.Post, removal.Position)
		return nil
	})
}

func (v *Mutator) AddComment(ctx context.Context, postID, text string) (models.Post, error) {
	text = strings.TrimSpace(text)
	if len(text) == 0 {
		return models.Post{}, fmt.Errorf("comment cannot be empty")
	}
	if len([]rune(text)) > models.MaxCommentLength {
		return models.Post{}, fmt.Errorf("comment exceeds %d characters", models.MaxCommentLength)
	}
	if !v.scheduler.Store().Has(postID) {
		return models.Post{}, ErrPostNotFound
	}

	updated, err := v.api.AddComment(ctx, postID, text)
	if err != nil {
		return models.Post{}, fmt.Errorf("failed to add comment: %v", err)
	}
	if updated == nil {
		// Comment ids are assigned by the server, wait for the push event
		log.Debug().Str("post", postID).Msg("Comment acknowledged without post, waiting for push update...")
		post, _ := v.scheduler.Store().Get(postID)
		return post, nil
	}
	return v.replaceComments(postID, updated.Comments)
}

func (v *Mutator) DeleteComment(ctx context.Context, postID, commentID string) (models.Post, error) {
	post, ok := v.scheduler.Store().Get(postID)
	if !ok {
		return models.Post{}, ErrPostNotFound
	}

	updated, err := v.api.DeleteComment(ctx, postID, commentID)
	if err != nil {
		return post, fmt.Errorf("failed to delete comment: %v", err)
	}
	if updated != nil {
		return v.replaceComments(postID, updated.Comments)
	}

	current, _ := v.scheduler.Store().Get(postID)
	return v.replaceComments(postID, lo.Filter(current.Comments, func(item models.Comment, _ int) bool {
		return item.ID != commentID
	}))
}

func (v *Mutator) PinComment(ctx context.Context, postID, commentID string) (models.Post, error) {
	post, ok := v.scheduler.Store().Get(postID)
	if !ok {
		return models.Post{}, ErrPostNotFound
	}

	updated, err := v.api.PinComment(ctx, postID, commentID)
	if err != nil {
		return post, fmt.Errorf("failed to pin comment: %v", err)
	}
	if updated != nil {
		return v.replaceComments(postID, updated.Comments)
	}

	current, _ := v.scheduler.Store().Get(postID)
	comments, err := PinCommentFirst(current.Comments, commentID)
	if err != nil {
		return current, err
	}
	return v.replaceComments(postID, comments)
}

func (v *Mutator) replaceComments(postID string, comments []models.Comment) (models.Post, error) {
	if comments == nil {
		comments = []models.Comment{}
	}
	var out models.Post
	err := v.scheduler.Mutate(func(store *FeedStore) error {
		if err := store.Apply(models.PostPatched{
			ID:    postID,
			Patch: models.PostPatch{Comments: comments},
		}); err != nil {
			return err
		}
		out, _ = store.Get(postID)
		return nil
	})
	return out, err
}

// PinCommentFirst marks the comment as the only pinned one and moves it to the front.
func PinCommentFirst(comments []models.Comment, commentID string) ([]models.Comment, error) {
	target, idx, ok := lo.FindIndexOf(comments, func(item models.Comment) bool {
		return item.ID == commentID
	})
	if !ok {
		return comments, ErrCommentNotFound
	}

	out := make([]models.Comment, 0, len(comments))
	target.IsPinned = true
	out = append(out, target)
	for i, item := range comments {
		if i == idx {
			continue
		}
		item.IsPinned = false
		out = append(out, item)
	}
	return out, nil
}
