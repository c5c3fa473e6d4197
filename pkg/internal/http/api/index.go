package api

import "github.com/gofiber/fiber/v2"

func MapControllers(app *fiber.App, baseURL string, feed *FeedController) {
	api := app.Group(baseURL)
	{
		api.Get("/feed", feed.listFeed)
		api.Get("/feed/snapshot", feed.getSnapshot)
		api.Put("/feed/scope", feed.switchScope)

		api.Post("/posts/:postId/like", feed.likePost)
		api.Delete("/posts/:postId", feed.deletePost)
		api.Post("/posts/:postId/comments", feed.addComment)
		api.Delete("/posts/:postId/comments/:commentId", feed.deleteComment)
		api.Post("/posts/:postId/comments/:commentId/pin", feed.pinComment)
	}
}
