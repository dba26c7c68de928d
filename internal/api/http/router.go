// Package http exposes the URL shortener over a JSON HTTP API.
package http

import (
	"context"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	"github.com/go-playground/validator/v10"
	"github.com/linkpulse/url-shortener/internal/models"
	"github.com/linkpulse/url-shortener/internal/service"
	"github.com/linkpulse/url-shortener/pkg/middleware/recoverer"

	httpSwagger "github.com/swaggo/http-swagger"
)

type URLService interface {
	ShortenURL(ctx context.Context, params service.ShortenParams) (*models.URL, error)
	ResolveShortCode(ctx context.Context, shortCode string, meta service.ClickMeta) (*models.URL, error)
	GetURLStats(ctx context.Context, shortCode string) (*models.URL, error)
	Ping(ctx context.Context) error
}

func getValidate() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return validate
}

// NewRouter wires the API routes. baseURL prefixes the shortUrl returned on
// creation.
func NewRouter(logger *httplog.Logger, urlSvc URLService, baseURL string) http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           86400,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httplog.RequestLogger(logger))
	r.Use(recoverer.New(logger.Logger))

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/docs/swagger.yml"),
	))
	r.Get("/docs/swagger.yml", handleSwaggerDocument())

	r.Get("/health", handleHealth(urlSvc))

	r.Route("/shorturls", func(r chi.Router) {
		validate := getValidate()

		r.Post("/", handleShortenURL(urlSvc, validate, strings.TrimRight(baseURL, "/")))

		r.Route("/{shortCode}", func(r chi.Router) {
			r.Get("/", handleRedirect(urlSvc))
			r.Get("/stats", handleGetURLStats(urlSvc))
		})
	})

	return r
}
