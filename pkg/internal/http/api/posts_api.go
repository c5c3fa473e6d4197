package api

import (
	"errors"

	"git.solsynth.dev/hypernet/feedsync/pkg/internal/http/exts"
	"git.solsynth.dev/hypernet/feedsync/pkg/internal/services"
	"github.com/gofiber/fiber/v2"
)

func actionError(err error) error {
	switch {
	case errors.Is(err, services.ErrPostNotFound), errors.Is(err, services.ErrCommentNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrRollbackRequired):
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	case errors.Is(err, services.ErrSchedulerClosed):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	default:
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
}

func (v *FeedController) likePost(c *fiber.Ctx) error {
	post, err := v.actions.LikePost(c.UserContext(), c.Params("postId"))
	if err != nil {
		return actionError(err)
	}

	return c.JSON(post)
}

func (v *FeedController) deletePost(c *fiber.Ctx) error {
	if err := v.actions.DeletePost(c.UserContext(), c.Params("postId")); err != nil {
		return actionError(err)
	}

	return c.SendStatus(fiber.StatusOK)
}

func (v *FeedController) addComment(c *fiber.Ctx) error {
	var data struct {
		Text string `json:"text" validate:"required,max=1000"`
	}

	if err := exts.BindAndValidate(c, &data); err != nil {
		return err
	}

	post, err := v.actions.AddComment(c.UserContext(), c.Params("postId"), data.Text)
	if err != nil {
		return actionError(err)
	}

	return c.JSON(post)
}

func (v *FeedController) deleteComment(c *fiber.Ctx) error {
	post, err := v.actions.DeleteComment(c.UserContext(), c.Params("postId"), c.Params("commentId"))
	if err != nil {
		return actionError(err)
	}

	return c.JSON(post)
}

func (v *FeedController) pinComment(c *fiber.Ctx) error {
	post, err := v.actions.PinComment(c.UserContext(), c.Params("postId"), c.Params("commentId"))
	if err != nil {
		return actionError(err)
	}

	return c.JSON(post)
}
