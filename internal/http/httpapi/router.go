package httpapi

import (
	"net/http"
	"time"

	"studio/internal/http/handlers"
	"studio/internal/infra"
	mw "studio/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Options configures the cross-cutting middleware.
type Options struct {
	AllowedOrigins  []string
	RateLimitPerMin int
	Logger          infra.Logger
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(
		mw.RequestID,
		middleware.RealIP,
		mw.Logger(opts.Logger),
		middleware.Recoverer,
		mw.CORS(opts.AllowedOrigins),
	)

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/openapi.json", app.OpenAPIJSON)
	r.Get("/v1/docs", app.OpenAPIDocs)
	r.Get("/v1/gallery", app.GalleryList)

	r.Group(func(r chi.Router) {
		r.Use(mw.RateLimit(opts.RateLimitPerMin, time.Minute))

		r.Route("/v1/credentials/gemini", func(r chi.Router) {
			r.Get("/", app.GeminiKeyStatus)
			r.Post("/", app.SetGeminiKey)
		})

		r.Route("/v1/videos", func(r chi.Router) {
			r.Post("/generate", app.VideosGenerate)
			r.Get("/{job_id}", app.VideoStatus)
			r.Get("/{job_id}/results", app.VideoResults)
			r.Get("/{job_id}/archive", app.VideoArchive)
		})

		r.Route("/v1/results/{id}", func(r chi.Router) {
			r.Get("/download", app.DownloadResult)
			r.Post("/extend", app.ExtendResult)
		})

		r.Route("/v1/composites", func(r chi.Router) {
			r.Post("/merge", app.CompositeMerge)
			r.Post("/caption", app.CompositeCaption)
			r.Get("/{id}", app.CompositeStatus)
			r.Delete("/{id}", app.CompositeCancel)
			r.Patch("/{id}/order", app.CompositeReorder)
			r.Post("/{id}/start", app.CompositeStart)
			r.Get("/{id}/events", app.CompositeEvents)
			r.Get("/{id}/download", app.CompositeDownload)
		})

		r.Post("/v1/captions/preview", app.CaptionPreview)
	})

	return r
}
