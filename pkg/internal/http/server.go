package http

import (
	"git.solsynth.dev/hypernet/feedsync/pkg/internal/http/api"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

type App struct {
	app *fiber.App
}

func NewServer(feed *api.FeedController, gatherer prometheus.Gatherer) *App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ServerHeader:          "Hypernet.FeedSync",
		AppName:               "Hypernet.FeedSync",
		JSONEncoder:           jsoniter.ConfigCompatibleWithStandardLibrary.Marshal,
		JSONDecoder:           jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal,
		BodyLimit:             1 * 1024 * 1024,
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "${status} | ${latency} | ${method} ${path}\n",
		Output: log.Logger,
	}))

	api.MapControllers(app, "/api", feed)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	return &App{app}
}

// Fiber exposes the underlying app, mainly for app.Test.
func (v *App) Fiber() *fiber.App {
	return v.app
}

func (v *App) Listen(bind string) error {
	log.Info().Str("bind", bind).Msg("Serving the feed API...")
	return v.app.Listen(bind)
}

func (v *App) Shutdown() error {
	return v.app.Shutdown()
}
