package services

import (
	"context"
	"fmt"

	"git.solsynth.dev/hypernet/feedsync/pkg/internal/metrics"
	"git.solsynth.dev/hypernet/feedsync/pkg/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Notification is the user visible message of a failed action.
type Notification struct {
	Topic string `json:"topic"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

type Notifier interface {
	Notify(notification Notification)
}

// LogNotifier writes notifications into the log, used when no UI is attached.
type LogNotifier struct{}

func (LogNotifier) Notify(notification Notification) {
	log.Warn().
		Str("topic", notification.Topic).
		Str("title", notification.Title).
		Msg(notification.Body)
}

// FeedActions runs user actions end to end: optimistic change, server call,
// rollback and notification when the server refuses.
type FeedActions struct {
	mutator  *Mutator
	store    *FeedStore
	api      MutationAPI
	notifier Notifier
	metrics  *metrics.Metrics
	userID   string
}

func NewFeedActions(scheduler *Scheduler, api MutationAPI, notifier Notifier, userID string) *FeedActions {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &FeedActions{
		mutator:  NewMutator(scheduler, api),
		store:    scheduler.Store(),
		api:      api,
		notifier: notifier,
		metrics:  scheduler.Metrics(),
		userID:   userID,
	}
}

func (v *FeedActions) UserID() string {
	return v.userID
}

// LikePost toggles the current user's like. When the server call fails the
// toggle is inverted again, unless a remote update already settled the likes.
func (v *FeedActions) LikePost(ctx context.Context, postID string) (models.Post, error) {
	mutationID := uuid.NewString()
	post, err := v.mutator.ToggleLike(postID, v.userID)
	if err != nil {
		return post, err
	}
	log.Debug().Str("mutation", mutationID).Str("post", postID).Bool("liked", post.LikedBy(v.userID)).Msg("Applied optimistic like...")

	if err := v.api.LikePost(ctx, postID); err != nil {
		v.metrics.ActionErrors.WithLabelValues("like").Inc()
		log.Error().Err(err).Str("mutation", mutationID).Str("post", postID).Msg("An error occurred when liking post...")

		if v.store.Origin(postID, models.PostFieldLikes) == models.OriginLocal {
			if reverted, rerr := v.mutator.ToggleLike(postID, v.userID); rerr == nil {
				post = reverted
				v.metrics.Rollbacks.WithLabelValues("like").Inc()
			}
		} else if current, ok := v.store.Get(postID); ok {
			post = current
		}

		v.notifier.Notify(Notification{
			Topic: "feed.like",
			Title: "Unable to update like",
			Body:  err.Error(),
		})
		return post, fmt.Errorf("%w: failed to like post: %v", ErrRollbackRequired, err)
	}
	return post, nil
}

// DeletePost removes the post right away and puts it back where it was if the server refuses.
func (v *FeedActions) DeletePost(ctx context.Context, postID string) error {
	removal, err := v.mutator.RemovePost(postID)
	if err != nil {
		return err
	}

	if err := v.api.DeletePost(ctx, postID); err != nil {
		v.metrics.ActionErrors.WithLabelValues("delete").Inc()
		v.metrics.Rollbacks.WithLabelValues("delete").Inc()
		log.Error().Err(err).Str("post", postID).Msg("An error occurred when deleting post...")

		v.mutator.RestorePost(removal)
		v.notifier.Notify(Notification{
			Topic: "feed.delete",
			Title: "Unable to delete post",
			Body:  err.Error(),
		})
		return fmt.Errorf("%w: failed to delete post: %v", ErrRollbackRequired, err)
	}
	return nil
}

func (v *FeedActions) AddComment(ctx context.Context, postID, text string) (models.Post, error) {
	post, err := v.mutator.AddComment(ctx, postID, text)
	if err != nil {
		v.reportComment("add", "Unable to add comment", err)
	}
	return post, err
}

func (v *FeedActions) DeleteComment(ctx context.Context, postID, commentID string) (models.Post, error) {
	post, err := v.mutator.DeleteComment(ctx, postID, commentID)
	if err != nil {
		v.reportComment("delete", "Unable to delete comment", err)
	}
	return post, err
}

func (v *FeedActions) PinComment(ctx context.Context, postID, commentID string) (models.Post, error) {
	post, err := v.mutator.PinComment(ctx, postID, commentID)
	if err != nil {
		v.reportComment("pin", "Unable to pin comment", err)
	}
	return post, err
}

func (v *FeedActions) reportComment(action, title string, err error) {
	v.metrics.ActionErrors.WithLabelValues("comment_" + action).Inc()
	log.Error().Err(err).Str("action", action).Msg("An error occurred when updating comments...")
	v.notifier.Notify(Notification{
		Topic: "feed.comment",
		Title: title,
		Body:  err.Error(),
	})
}
