package api

import (
	"errors"

	"git.solsynth.dev/hypernet/feedsync/pkg/internal/http/exts"
	"git.solsynth.dev/hypernet/feedsync/pkg/internal/models"
	"git.solsynth.dev/hypernet/feedsync/pkg/internal/services"
	"github.com/gofiber/fiber/v2"
)

// FeedController serves the feed to the local UI.
type FeedController struct {
	scheduler *services.Scheduler
	view      *services.FilterView
	actions   *services.FeedActions
}

func NewFeedController(scheduler *services.Scheduler, view *services.FilterView, actions *services.FeedActions) *FeedController {
	return &FeedController{scheduler: scheduler, view: view, actions: actions}
}

func (v *FeedController) listFeed(c *fiber.Ctx) error {
	snapshot := v.scheduler.Store().Snapshot()
	selector := services.Selector{
		Hashtag: c.Query("tag"),
		Scope:   v.scheduler.Scope(),
	}
	if len(selector.Hashtag) == 0 {
		selector.Hashtag = v.view.Selector().Hashtag
	}

	posts := v.view.Project(snapshot, selector)

	return c.JSON(fiber.Map{
		"scope":    selector.Scope,
		"hashtag":  selector.Hashtag,
		"revision": snapshot.Revision,
		"epoch":    snapshot.Epoch,
		"count":    len(posts),
		"data":     posts,
	})
}

func (v *FeedController) getSnapshot(c *fiber.Ctx) error {
	return c.JSON(v.scheduler.Store().Snapshot())
}

func (v *FeedController) switchScope(c *fiber.Ctx) error {
	var data struct {
		Scope   models.Scope `json:"scope" validate:"required,oneof=all following"`
		Hashtag string       `json:"hashtag"`
	}

	if err := exts.BindAndValidate(c, &data); err != nil {
		return err
	}

	if err := v.scheduler.LoadScope(c.UserContext(), data.Scope); err != nil {
		switch {
		case errors.Is(err, services.ErrStaleScopeResult):
			return fiber.NewError(fiber.StatusConflict, err.Error())
		case errors.Is(err, services.ErrUnsupportedScope):
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		default:
			return fiber.NewError(fiber.StatusBadGateway, err.Error())
		}
	}
	v.view.SetSelector(services.Selector{Hashtag: data.Hashtag, Scope: data.Scope})

	snapshot := v.scheduler.Store().Snapshot()
	return c.JSON(fiber.Map{
		"scope":      data.Scope,
		"generation": v.scheduler.Generation(),
		"epoch":      snapshot.Epoch,
		"count":      len(snapshot.Posts),
	})
}
