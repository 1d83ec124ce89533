// Command sample serves the users API from internal/testsamples/userapi
// over SQLite.
//
// Run:
//
//	go run ./cmd/sample
//
// Print the OpenAPI document instead of serving:
//
//	go run ./cmd/sample --spec
//	go run ./cmd/sample --spec -o openapi.json
//
// Then explore:
//
//	GET    http://localhost:8080/users
//	POST   http://localhost:8080/users
//	GET    http://localhost:8080/users/{userId}
//	PUT    http://localhost:8080/users/{userId}
//	DELETE http://localhost:8080/users/{userId}
//	GET    http://localhost:8080/metrics
//
// USERS_DB_DRIVER and USERS_DB_DSN select the database. They default to an
// in-memory SQLite database.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/bjaus/apimda/config"
	"github.com/bjaus/apimda/internal/testsamples/userapi"
	"github.com/bjaus/apimda/metadata"
	"github.com/bjaus/apimda/openapi"
	"github.com/bjaus/apimda/runtime"
	"github.com/bjaus/apimda/runtime/nethttp"
	"github.com/bjaus/apimda/scan"
	"github.com/bjaus/apimda/validation"
)

const usersPackage = "github.com/bjaus/apimda/internal/testsamples/userapi"

var defaults = runtime.MapEnv{
	"USERS_DB_DRIVER": "sqlite3",
	"USERS_DB_DSN":    "file:users?mode=memory&cache=shared",
}

func main() {
	flags := pflag.NewFlagSet("sample", pflag.ExitOnError)
	spec := flags.Bool("spec", false, "Print the OpenAPI document and exit")
	out := flags.StringP("out", "o", "", "Output file for the document (requires --spec)")
	cfgPath := flags.StringP("config", "c", "", "Path to configuration file")
	_ = flags.Parse(os.Args[1:])

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, log, *cfgPath, *spec, *out); err != nil {
		log.WithError(err).Error("Sample failed")
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, log *logrus.Logger, cfgPath string, spec bool, out string) error {
	cfg := config.Default()
	if cfgPath != "" {
		var err error
		if cfg, err = config.Load(cfgPath); err != nil {
			return err
		}
	}

	app, err := scan.Extract(ctx, scan.Config{Logger: log}, usersPackage)
	if err != nil {
		return err
	}
	if err := validation.Validate(app).Err(); err != nil {
		return err
	}

	if spec {
		return writeSpec(app, cfg, out)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	opts := append(cfg.Server.HandlerOptions(),
		nethttp.WithLogger(log),
		nethttp.WithRegisterer(reg),
		nethttp.WithEnv(runtime.EnvFunc(lookup)),
	)
	h, err := nethttp.New(app.Runtime(), nethttp.Factories{
		"UserController": func(values []string) (any, error) {
			return userapi.NewUserController(values[0], values[1])
		},
	}, opts...)
	if err != nil {
		return err
	}

	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	r.Handle("/*", h)

	return nethttp.Serve(ctx, cfg.Server.Listen, r, log)
}

func lookup(name string) (string, bool) {
	if v, ok := os.LookupEnv(name); ok {
		return v, true
	}
	return defaults.Lookup(name)
}

func writeSpec(app *metadata.App, cfg *config.Config, out string) error {
	opts, err := cfg.OpenAPI.Options()
	if err != nil {
		return err
	}
	doc, err := openapi.Generate(app, opts)
	if err != nil {
		return err
	}

	if out == "" {
		return openapi.WriteJSON(os.Stdout, doc)
	}
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("creating %s: %w", out, err)
	}
	if err := openapi.WriteJSON(f, doc); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
