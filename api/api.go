package api

import (
	"context"
	"net/http"

	"catalog-services/db"
	"catalog-services/log_helpers"
	"catalog-services/types"

	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/microcosm-cc/bluemonday"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// ConnPool is the slice of pgxpool.Pool the dispatcher needs: bounded,
// deadline-aware acquisition of a releasable connection.
type ConnPool interface {
	Acquire(ctx context.Context) (PooledConn, error)
}

// PooledConn is a borrowed connection; Release must be called exactly once.
type PooledConn interface {
	db.Conn
	Release()
}

type poolAdapter struct {
	pool *pgxpool.Pool
}

func (p poolAdapter) Acquire(ctx context.Context) (PooledConn, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// API server
type API struct {
	Log          *zerolog.Logger
	Routes       chi.Router
	Addr         string
	Pool         ConnPool
	HTMLSanitize *bluemonday.Policy
	Config       *types.Config
}

// NewAPI registers routes
func NewAPI(
	log *zerolog.Logger,
	pool *pgxpool.Pool,
	addr string,
	HTMLSanitize *bluemonday.Policy,
	config *types.Config,
) *API {
	api := &API{
		Log:          log_helpers.NamedLogger(log, "api"),
		Routes:       chi.NewRouter(),
		Addr:         addr,
		Pool:         poolAdapter{pool: pool},
		HTMLSanitize: HTMLSanitize,
		Config:       config,
	}

	api.Routes.Use(middleware.RequestID)
	api.Routes.Use(middleware.RealIP)
	api.Routes.Use(cors.New(cors.Options{
		AllowedOrigins: config.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}).Handler)

	api.Routes.Handle("/metrics", promhttp.Handler())

	imagesC := &ImagesController{
		Log: log_helpers.NamedLogger(log, "images"),
		API: api,
	}
	productsC := &ProductsController{
		Log: log_helpers.NamedLogger(log, "products"),
		API: api,
	}

	sentryHandler := sentryhttp.New(sentryhttp.Options{})
	api.Routes.Group(func(r chi.Router) {
		r.Use(sentryHandler.Handle)
		r.Get("/health", api.WithError(api.HealthCheck))
		r.Post("/upload", api.WithTimeout(config.UploadTimeout, imagesC.Upload))
		r.Route("/image", func(r chi.Router) {
			r.Get("/{id}", api.WithTimeout(config.RequestTimeout, imagesC.Get))
			r.Delete("/{id}", api.WithTimeout(config.RequestTimeout, imagesC.Delete))
		})
		r.Route("/products", func(r chi.Router) {
			r.Get("/", api.WithTimeout(config.RequestTimeout, productsC.List))
			r.Post("/", api.WithTimeout(config.RequestTimeout, productsC.Create))
			r.Get("/{id}", api.WithTimeout(config.RequestTimeout, productsC.Get))
			r.Put("/{id}", api.WithTimeout(config.RequestTimeout, productsC.Update))
			r.Delete("/{id}", api.WithTimeout(config.RequestTimeout, productsC.Delete))
		})
	})

	return api
}

// Run the API service
func (api *API) Run(ctx context.Context) error {
	api.Log.Info().Str("addr", api.Addr).Msg("Starting API")

	server := &http.Server{
		Addr:    api.Addr,
		Handler: api.Routes,
	}

	go func() {
		<-ctx.Done()
		api.Log.Info().Msg("Stopping API")
		err := server.Shutdown(context.Background())
		if err != nil {
			api.Log.Warn().Err(err).Msg("")
		}
	}()

	return server.ListenAndServe()
}
