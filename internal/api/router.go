package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter builds the full HTTP surface of spec §6, with the auth
// middleware applied to every route under /api/v1 except /authenticate.
func NewRouter(app *App, staticDir string) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(RequestLogger(app.Log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	h := newHandlers(app)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/authenticate/", h.authenticate)

		r.Group(func(r chi.Router) {
			r.Use(Authenticate(app.Tokens, app.lookupUser))

			r.Post("/path/", h.createPath)
			r.Get("/paths/", h.listPaths)

			r.Get("/stream/{app}/{env}/", h.streamFlags)

			r.Post("/{app}/{env}/flag/", h.createFlag)
			r.Get("/{app}/{env}/flag/{key}/", h.getFlag)
			r.Post("/{app}/{env}/flag/{key}/", h.updateFlag)
			r.Delete("/{app}/{env}/flag/{key}/", h.deleteFlag)
			r.Get("/{app}/{env}/flags/", h.listFlags)

			r.Route("/users", func(r chi.Router) {
				r.Use(RequireAdmin)
				r.Post("/", h.createUser)
				r.Get("/", h.listUsers)
				r.Get("/{key}/", h.getUser)
				r.Post("/{key}/", h.updateUser)
				r.Delete("/{key}/", h.deleteUser)
			})
		})
	})

	if staticDir != "" {
		fs := http.FileServer(http.Dir(staticDir))
		r.Handle("/*", fs)
	}

	return r
}
