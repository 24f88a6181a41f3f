package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/evimeria/evimeria-api/app/api"
	"github.com/evimeria/evimeria-api/app/catalog"
	"github.com/evimeria/evimeria-api/app/categories"
	"github.com/evimeria/evimeria-api/app/orders"
	"github.com/evimeria/evimeria-api/app/users"
	"github.com/evimeria/evimeria-api/internal/config"
	"github.com/evimeria/evimeria-api/internal/logging"
	"github.com/evimeria/evimeria-api/internal/metrics"
)

type handlers struct {
	catalog    *catalog.CatalogHandler
	categories *categories.CategoryHandler
	orders     *orders.OrderHandler
	users      *users.UserHandler
}

func newRouter(cfg config.ServerConfig, h handlers, m *metrics.Registry) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(m.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		api.Error(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		api.Error(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", m.Handler())

	r.Route("/api", func(r chi.Router) {
		if cfg.RateLimit > 0 {
			r.Use(httprate.LimitByIP(cfg.RateLimit, time.Minute))
		}

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", h.categories.HandleGetAll)
			r.Post("/", h.categories.HandleCreate)
			r.Get("/{slug}", h.categories.HandleGet)
			r.Get("/{slug}/products", h.categories.HandleProducts)
			r.Get("/{slug}/subcategories", h.categories.HandleSubCategories)
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.catalog.HandleGet)
			r.Get("/featured", h.catalog.HandleFeatured)
			r.Get("/search", h.catalog.HandleSearch)
			r.Get("/{slug}", h.catalog.HandleGetProduct)
		})

		r.Post("/orders", h.orders.HandleCreate)
		r.Get("/orders/{number}", h.orders.HandleGet)

		r.Post("/users", h.users.HandleCreate)
		r.Get("/users/{id}", h.users.HandleGet)
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		logging.Debug().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}
