package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"catalog-services/api"
	"catalog-services/catdb"
	"catalog-services/catlog"
	"catalog-services/db"
	"catalog-services/log_helpers"
	"catalog-services/types"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/joho/godotenv"
	"github.com/microcosm-cc/bluemonday"
	"github.com/ninja-software/terror/v2"
	"github.com/oklog/run"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

// Variable passed in at compile time using `-ldflags`
var (
	Version   string // -X main.Version=$(git describe --tags --abbrev=0)
	GitHash   string // -X main.GitHash=$(git rev-parse HEAD)
	BuildDate string // -X main.BuildDate=$(date -u +%Y%m%d%H%M%S)
)

const SentryReleasePrefix = "catalog_api"
const envPrefix = "CATALOG"

func dbFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "database_dsn", Value: "", EnvVars: []string{envPrefix + "_DATABASE_DSN", "DATABASE_URL"}, Usage: "Full database connection string; overrides the individual database flags"},
		&cli.StringFlag{Name: "database_user", Value: "catalog", EnvVars: []string{envPrefix + "_DATABASE_USER", "DATABASE_USER"}, Usage: "The database user"},
		&cli.StringFlag{Name: "database_pass", Value: "dev", EnvVars: []string{envPrefix + "_DATABASE_PASS", "DATABASE_PASS"}, Usage: "The database pass"},
		&cli.StringFlag{Name: "database_host", Value: "localhost", EnvVars: []string{envPrefix + "_DATABASE_HOST", "DATABASE_HOST"}, Usage: "The database host"},
		&cli.StringFlag{Name: "database_port", Value: "5432", EnvVars: []string{envPrefix + "_DATABASE_PORT", "DATABASE_PORT"}, Usage: "The database port"},
		&cli.StringFlag{Name: "database_name", Value: "catalog", EnvVars: []string{envPrefix + "_DATABASE_NAME", "DATABASE_NAME"}, Usage: "The database name"},
		&cli.StringFlag{Name: "database_application_name", Value: "API Server", EnvVars: []string{envPrefix + "_DATABASE_APPLICATION_NAME"}, Usage: "Postgres application name"},
		&cli.IntFlag{Name: "database_max_conns", Value: 5, EnvVars: []string{envPrefix + "_DATABASE_MAX_CONNS", "DATABASE_MAX_CONNS"}, Usage: "Upper bound on pooled connections; worker processes multiply, the backing store does not"},
	}
}

func main() {
	// optional, flags fall back to real env when absent
	_ = godotenv.Load()

	app := &cli.App{
		Compiled: time.Now(),
		Usage:    "Run the catalog server or database administration commands",
		Commands: []*cli.Command{
			{
				Name: "version",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "full", Usage: "Prints full version and build info", Value: false},
				},
				Action: func(c *cli.Context) error {
					if c.Bool("full") {
						fmt.Printf("Version=%s\n", Version)
						fmt.Printf("Commit=%s\n", GitHash)
						fmt.Printf("BuildDate=%s\n", BuildDate)
						return nil
					}
					fmt.Printf("%s\n", Version)
					return nil
				},
			},
			{
				Name:    "serve",
				Aliases: []string{"s"},
				Flags: append(dbFlags(),
					&cli.StringFlag{Name: "api_addr", Value: ":8080", EnvVars: []string{envPrefix + "_API_ADDR", "API_ADDR"}, Usage: "host:port to run the API"},
					&cli.StringFlag{Name: "environment", Value: "development", DefaultText: "development", EnvVars: []string{envPrefix + "_ENVIRONMENT", "ENVIRONMENT"}, Usage: "This program environment (development, testing, staging, production), it sets the log levels"},
					&cli.StringFlag{Name: "log_level", Value: "info", EnvVars: []string{envPrefix + "_LOG_LEVEL"}, Usage: "Set the log level for zerolog (trace, debug, info, warn, error)"},
					&cli.StringFlag{Name: "allowed_origins", Value: "*", EnvVars: []string{envPrefix + "_ALLOWED_ORIGINS", "ALLOWED_ORIGINS"}, Usage: "Comma separated list of CORS origins"},
					&cli.IntFlag{Name: "request_timeout_ms", Value: 8000, EnvVars: []string{envPrefix + "_REQUEST_TIMEOUT_MS"}, Usage: "Per-request deadline in milliseconds"},
					&cli.IntFlag{Name: "upload_timeout_ms", Value: 10000, EnvVars: []string{envPrefix + "_UPLOAD_TIMEOUT_MS"}, Usage: "Deadline for the upload route in milliseconds"},
					&cli.Int64Flag{Name: "max_upload_bytes", Value: 5 << 20, EnvVars: []string{envPrefix + "_MAX_UPLOAD_BYTES"}, Usage: "Upload size ceiling in bytes"},
					&cli.StringFlag{Name: "sentry_dsn_backend", Value: "", EnvVars: []string{envPrefix + "_SENTRY_DSN_BACKEND", "SENTRY_DSN_BACKEND"}, Usage: "Sends error to remote server. If set, it will send error."},
					&cli.StringFlag{Name: "sentry_server_name", Value: "dev-pc", EnvVars: []string{envPrefix + "_SENTRY_SERVER_NAME", "SENTRY_SERVER_NAME"}, Usage: "The machine name that this program is running on."},
					&cli.Float64Flag{Name: "sentry_sample_rate", Value: 1, EnvVars: []string{envPrefix + "_SENTRY_SAMPLE_RATE", "SENTRY_SAMPLE_RATE"}, Usage: "The percentage of trace sample to collect (0.0-1)"},
				),
				Usage: "run server",
				Action: func(c *cli.Context) error {
					ctx, cancel := context.WithCancel(c.Context)
					environment := c.String("environment")
					level := c.String("log_level")
					log := catlog.New(environment, level)

					g := &run.Group{}
					// Listen for os.interrupt
					g.Add(run.SignalHandler(ctx, os.Interrupt))
					// start the server
					g.Add(func() error { return ServeFunc(c, log) }, func(err error) { cancel() })

					err := g.Run()
					if errors.Is(err, run.SignalError{Signal: os.Interrupt}) {
						err = terror.Warn(err)
					}
					if err != nil {
						log_helpers.TerrorEcho(err, log)
					}
					return nil
				},
			},
			{
				Name: "db",
				Flags: append(dbFlags(),
					&cli.BoolFlag{Name: "down", Value: false, Usage: "Roll the schema all the way down instead of up"},
					&cli.StringFlag{Name: "environment", Value: "development", EnvVars: []string{envPrefix + "_ENVIRONMENT", "ENVIRONMENT"}, Usage: "This program environment (development, testing, staging, production), it sets the log levels"},
					&cli.StringFlag{Name: "log_level", Value: "info", EnvVars: []string{envPrefix + "_LOG_LEVEL"}, Usage: "Set the log level for zerolog (trace, debug, info, warn, error)"},
				),
				Usage: "migrate the database",
				Action: func(c *cli.Context) error {
					log := catlog.New(c.String("environment"), c.String("log_level"))
					connString := connStringFromFlags(c)
					err := db.Migrate(connString, c.Bool("down"))
					if err != nil {
						return terror.Error(err)
					}
					log.Info().Msg("migrations applied")
					return nil
				},
			},
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		terror.Echo(err)
		os.Exit(1) // so ci knows it no good
	}
}

func connStringFromFlags(ctxCLI *cli.Context) string {
	if dsn := ctxCLI.String("database_dsn"); dsn != "" {
		return dsn
	}
	params := url.Values{}
	params.Add("sslmode", "disable")
	if appName := ctxCLI.String("database_application_name"); appName != "" {
		params.Add("application_name", fmt.Sprintf("%s %s", appName, Version))
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?%s",
		ctxCLI.String("database_user"),
		ctxCLI.String("database_pass"),
		ctxCLI.String("database_host"),
		ctxCLI.String("database_port"),
		ctxCLI.String("database_name"),
		params.Encode(),
	)
}

func pgxconnect(connString string, maxConns int) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, terror.Panic(err, "could not initialise database")
	}
	poolConfig.MaxConns = int32(maxConns)
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	ctx := context.Background()
	conn, err := pgxpool.ConnectConfig(ctx, poolConfig)
	if err != nil {
		return nil, terror.Panic(err, "could not initialise database")
	}

	return conn, nil
}

func ServeFunc(ctxCLI *cli.Context, log *zerolog.Logger) error {
	environment := ctxCLI.String("environment")
	sentryDSNBackend := ctxCLI.String("sentry_dsn_backend")
	sentryServerName := ctxCLI.String("sentry_server_name")
	sentryTraceRate := ctxCLI.Float64("sentry_sample_rate")
	sentryRelease := fmt.Sprintf("%s@%s", SentryReleasePrefix, Version)
	err := log_helpers.SentryInit(sentryDSNBackend, sentryServerName, sentryRelease, environment, sentryTraceRate, log)
	switch errors.Unwrap(err) {
	case log_helpers.ErrSentryInitEnvironment:
		return terror.Error(err, fmt.Sprintf("got environment %s", environment))
	case log_helpers.ErrSentryInitDSN, log_helpers.ErrSentryInitVersion:
		if terror.GetLevel(err) == terror.ErrLevelPanic {
			return terror.Panic(err)
		}
	default:
		if err != nil {
			return terror.Error(err)
		}
	}

	apiAddr := ctxCLI.String("api_addr")
	connString := connStringFromFlags(ctxCLI)
	maxConns := ctxCLI.Int("database_max_conns")

	pool, err := pgxconnect(connString, maxConns)
	if err != nil {
		return terror.Error(err)
	}
	err = catdb.New(pool)
	if err != nil {
		return terror.Error(err)
	}

	config := &types.Config{
		Environment:    environment,
		AllowedOrigins: strings.Split(ctxCLI.String("allowed_origins"), ","),
		RequestTimeout: time.Duration(ctxCLI.Int("request_timeout_ms")) * time.Millisecond,
		UploadTimeout:  time.Duration(ctxCLI.Int("upload_timeout_ms")) * time.Millisecond,
		MaxUploadBytes: ctxCLI.Int64("max_upload_bytes"),
	}

	HTMLSanitize := bluemonday.StrictPolicy()

	apiServer := api.NewAPI(log, pool, apiAddr, HTMLSanitize, config)
	return apiServer.Run(ctxCLI.Context)
}
