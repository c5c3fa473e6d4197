package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"git.solsynth.dev/hypernet/feedsync/pkg/internal/models"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func commentIDs(comments []models.Comment) []string {
	return lo.Map(comments, func(item models.Comment, _ int) string {
		return item.ID
	})
}

func TestToggleLikeFlipsMembership(t *testing.T) {
	post := fixturePost("p1", 0)
	post.LikeUserIDs = []string{"u1"}
	scheduler, _ := loadedScheduler(post)
	mutator := NewMutator(scheduler, &mockAPI{})

	liked, err := mutator.ToggleLike("p1", "u2")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, liked.LikeUserIDs)
	assert.Equal(t, models.OriginLocal, scheduler.Store().Origin("p1", models.PostFieldLikes))

	unliked, err := mutator.ToggleLike("p1", "u2")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, unliked.LikeUserIDs)

	_, err = mutator.ToggleLike("ghost", "u2")
	assert.ErrorIs(t, err, ErrPostNotFound)
}

func TestRemoveAndRestorePost(t *testing.T) {
	scheduler, _ := loadedScheduler(
		fixturePost("p1", 2*time.Hour),
		fixturePost("p2", time.Hour),
		fixturePost("p3", 0),
	)
	mutator := NewMutator(scheduler, &mockAPI{})

	removal, err := mutator.RemovePost("p2")
	require.NoError(t, err)
	assert.Equal(t, 1, removal.Position)
	assert.Equal(t, []string{"p1", "p3"}, postIDs(scheduler.Store().Snapshot().Posts))

	mutator.RestorePost(removal)
	assert.Equal(t, []string{"p1", "p2", "p3"}, postIDs(scheduler.Store().Snapshot().Posts))

	_, err = mutator.RemovePost("ghost")
	assert.ErrorIs(t, err, ErrPostNotFound)
}

func TestAddCommentValidatesBeforeCallingServer(t *testing.T) {
	scheduler, _ := loadedScheduler(fixturePost("p1", 0))
	api := &mockAPI{}
	mutator := NewMutator(scheduler, api)

	_, err := mutator.AddComment(context.Background(), "p1", "   ")
	assert.Error(t, err)

	_, err = mutator.AddComment(context.Background(), "p1", strings.Repeat("字", models.MaxCommentLength+1))
	assert.Error(t, err)

	_, err = mutator.AddComment(context.Background(), "ghost", "hi")
	assert.ErrorIs(t, err, ErrPostNotFound)

	api.AssertNotCalled(t, "AddComment", mock.Anything, mock.Anything, mock.Anything)
}

func TestAddCommentAppliesAcknowledgedPost(t *testing.T) {
	post := fixturePost("p1", 0)
	post.Comments = []models.Comment{{ID: "c1", Text: "first"}}
	scheduler, _ := loadedScheduler(post)

	acked := post
	acked.Comments = []models.Comment{{ID: "c1", Text: "first"}, {ID: "c2", Text: "hello"}}
	api := &mockAPI{}
	api.On("AddComment", mock.Anything, "p1", "hello").Return(&acked, nil)
	mutator := NewMutator(scheduler, api)

	updated, err := mutator.AddComment(context.Background(), "p1", "  hello ")
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2"}, commentIDs(updated.Comments))
	api.AssertExpectations(t)
}

func TestAddCommentWithoutPostWaitsForPush(t *testing.T) {
	post := fixturePost("p1", 0)
	post.Comments = []models.Comment{{ID: "c1"}}
	scheduler, _ := loadedScheduler(post)

	api := &mockAPI{}
	api.On("AddComment", mock.Anything, "p1", "hello").Return(nil, nil)
	mutator := NewMutator(scheduler, api)

	updated, err := mutator.AddComment(context.Background(), "p1", "hello")
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, commentIDs(updated.Comments))
}

func TestAddCommentFailureChangesNothing(t *testing.T) {
	post := fixturePost("p1", 0)
	post.Comments = []models.Comment{{ID: "c1"}}
	scheduler, _ := loadedScheduler(post)
	before := scheduler.Store().Snapshot()

	api := &mockAPI{}
	api.On("AddComment", mock.Anything, "p1", "hello").Return(nil, errors.New("boom"))
	mutator := NewMutator(scheduler, api)

	_, err := mutator.AddComment(context.Background(), "p1", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to add comment")
	assert.Same(t, before, scheduler.Store().Snapshot())
}

func TestDeleteCommentDerivesListLocally(t *testing.T) {
	post := fixturePost("p1", 0)
	post.Comments = []models.Comment{{ID: "c1"}, {ID: "c2"}, {ID: "c3"}}
	scheduler, _ := loadedScheduler(post)

	api := &mockAPI{}
	api.On("DeleteComment", mock.Anything, "p1", "c2").Return(nil, nil)
	mutator := NewMutator(scheduler, api)

	updated, err := mutator.DeleteComment(context.Background(), "p1", "c2")
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c3"}, commentIDs(updated.Comments))
}

func TestDeleteCommentFailureKeepsComments(t *testing.T) {
	post := fixturePost("p1", 0)
	post.Comments = []models.Comment{{ID: "c1"}, {ID: "c2"}}
	scheduler, _ := loadedScheduler(post)

	api := &mockAPI{}
	api.On("DeleteComment", mock.Anything, "p1", "c2").Return(nil, errors.New("forbidden"))
	mutator := NewMutator(scheduler, api)

	current, err := mutator.DeleteComment(context.Background(), "p1", "c2")
	assert.Error(t, err)
	assert.Equal(t, []string{"c1", "c2"}, commentIDs(current.Comments))
}

func TestPinCommentMovesItFirst(t *testing.T) {
	post := fixturePost("p1", 0)
	post.Comments = []models.Comment{{ID: "c1", IsPinned: true}, {ID: "c2"}, {ID: "c3"}}
	scheduler, _ := loadedScheduler(post)

	api := &mockAPI{}
	api.On("PinComment", mock.Anything, "p1", "c3").Return(nil, nil)
	mutator := NewMutator(scheduler, api)

	updated, err := mutator.PinComment(context.Background(), "p1", "c3")
	require.NoError(t, err)
	assert.Equal(t, []string{"c3", "c1", "c2"}, commentIDs(updated.Comments))
	assert.Equal(t, 1, lo.CountBy(updated.Comments, func(item models.Comment) bool {
		return item.IsPinned
	}))
	assert.True(t, updated.Comments[0].IsPinned)
}

func TestPinCommentFirstUnknownComment(t *testing.T) {
	comments := []models.Comment{{ID: "c1"}}
	out, err := PinCommentFirst(comments, "c9")
	assert.ErrorIs(t, err, ErrCommentNotFound)
	assert.Equal(t, comments, out)
}
